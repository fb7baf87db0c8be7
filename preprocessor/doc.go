// Package preprocessor implements the GLSL ES preprocessor.
//
// The preprocessor is organized as a stack of lexers, each wrapping
// the one below and transforming its token stream:
//
//	Input → Tokenizer → DirectiveParser → MacroExpander
//
// Input concatenates the source strings and folds line
// continuations. The Tokenizer produces raw tokens plus newline
// markers. The DirectiveParser interprets #define, #undef,
// conditionals, #error, #pragma, #extension, #version, and #line,
// and suppresses the token stream inside excluded conditional
// groups. The MacroExpander sits on top, substituting object- and
// function-like macros in the tokens that remain.
//
// Diagnostics are reported to a sink and never abort processing:
// tokens keep flowing so downstream errors stay localized.
package preprocessor
