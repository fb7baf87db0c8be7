package preprocessor

// Options configure a preprocessor instance.
type Options struct {
	// MaxMacroExpansionDepth bounds macro invocation chains; zero
	// selects the default.
	MaxMacroExpansionDepth int
}

// Preprocessor ties the stages together:
// Input → Tokenizer → DirectiveParser → MacroExpander.
type Preprocessor struct {
	diag      Sink
	handler   DirectiveHandler
	macros    MacroSet
	directive *DirectiveParser
	expander  *MacroExpander
}

// New creates a preprocessor over the concatenated source strings.
// lengths may be nil, or per-string byte counts with -1 meaning the
// whole string.
func New(sources []string, lengths []int, diag Sink, handler DirectiveHandler, opts Options) *Preprocessor {
	macros := NewMacroSet()
	input := NewInput(sources, lengths)
	tokenizer := NewTokenizer(input, diag)
	directive := NewDirectiveParser(tokenizer, macros, diag, handler, opts.MaxMacroExpansionDepth)
	expander := NewMacroExpander(directive, macros, diag, opts.MaxMacroExpansionDepth)
	return &Preprocessor{
		diag:      diag,
		handler:   handler,
		macros:    macros,
		directive: directive,
		expander:  expander,
	}
}

// Lex returns the next fully preprocessed token.
func (p *Preprocessor) Lex() Token {
	return p.expander.Lex()
}

// ShaderVersion returns the declared shading language version.
func (p *Preprocessor) ShaderVersion() int {
	return p.directive.ShaderVersion()
}

// Macros exposes the macro table (for tests and tooling).
func (p *Preprocessor) Macros() MacroSet {
	return p.macros
}

// Preprocess runs the sources to completion and returns every token
// up to and including the EOF marker.
func Preprocess(sources []string, diag Sink, handler DirectiveHandler, opts Options) []Token {
	p := New(sources, nil, diag, handler, opts)
	var tokens []Token
	for {
		t := p.Lex()
		tokens = append(tokens, t)
		if t.Kind == TokenEOF {
			return tokens
		}
	}
}

// ExtensionBehavior is the requested handling of one extension.
type ExtensionBehavior int

const (
	BehaviorDisable ExtensionBehavior = iota
	BehaviorEnable
	BehaviorWarn
	BehaviorRequire
)

// ParseBehavior converts the directive keyword, defaulting to disable.
func ParseBehavior(s string) ExtensionBehavior {
	switch s {
	case "require":
		return BehaviorRequire
	case "enable":
		return BehaviorEnable
	case "warn":
		return BehaviorWarn
	}
	return BehaviorDisable
}

// Pragma is one recorded #pragma directive.
type Pragma struct {
	Name  string
	Value string
	STDGL bool
}

// ErrorDirective is one recorded #error directive.
type ErrorDirective struct {
	Location Location
	Message  string
}

// DefaultHandler records versions, pragmas, extensions, and #error
// messages. It is the handler used when the caller needs nothing
// more elaborate.
type DefaultHandler struct {
	Version    int
	Pragmas    []Pragma
	Extensions map[string]ExtensionBehavior
	Errors     []ErrorDirective
}

// NewDefaultHandler returns a handler with the extension map ready.
func NewDefaultHandler() *DefaultHandler {
	return &DefaultHandler{Version: 100, Extensions: make(map[string]ExtensionBehavior)}
}

// HandleError implements DirectiveHandler.
func (h *DefaultHandler) HandleError(loc Location, msg string) {
	h.Errors = append(h.Errors, ErrorDirective{Location: loc, Message: msg})
}

// HandlePragma implements DirectiveHandler.
func (h *DefaultHandler) HandlePragma(loc Location, name, value string, stdgl bool) {
	h.Pragmas = append(h.Pragmas, Pragma{Name: name, Value: value, STDGL: stdgl})
}

// HandleExtension implements DirectiveHandler.
func (h *DefaultHandler) HandleExtension(loc Location, name, behavior string) {
	h.Extensions[name] = ParseBehavior(behavior)
}

// HandleVersion implements DirectiveHandler.
func (h *DefaultHandler) HandleVersion(loc Location, version int) {
	h.Version = version
}
