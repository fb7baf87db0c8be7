package preprocessor

import (
	"strings"
	"testing"
)

// preprocess runs the full pipeline over one source string and
// returns the non-newline output tokens, the sink, and the handler.
func preprocess(t *testing.T, source string) ([]Token, *CountingSink, *DefaultHandler) {
	t.Helper()
	sink := &CountingSink{}
	handler := NewDefaultHandler()
	all := Preprocess([]string{source}, sink, handler, Options{})
	var tokens []Token
	for _, tk := range all {
		if tk.Kind != TokenNewline && tk.Kind != TokenEOF {
			tokens = append(tokens, tk)
		}
	}
	return tokens, sink, handler
}

func tokenTexts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func hasDiag(sink *CountingSink, id DiagnosticID) bool {
	for _, d := range sink.Diagnostics {
		if d.ID == id {
			return true
		}
	}
	return false
}

func TestObjectMacro(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define PI 3.14159\nfloat x = PI;")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), " ")
	if got != "float x = 3.14159 ;" {
		t.Errorf("output = %q", got)
	}
}

func TestFunctionMacro(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define MAX(a, b) ((a) > (b) ? (a) : (b))\nMAX(1, 2)")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), "")
	if got != "((1)>(2)?(1):(2))" {
		t.Errorf("output = %q", got)
	}
}

func TestFunctionMacroRequiresAdjacentParen(t *testing.T) {
	// A space before '(' makes the definition object-like.
	tokens, sink, _ := preprocess(t, "#define F (x)\nF")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), "")
	if got != "(x)" {
		t.Errorf("output = %q, want (x)", got)
	}
}

func TestFunctionMacroNameWithoutInvocation(t *testing.T) {
	tokens, _, _ := preprocess(t, "#define F(x) x\nF;")
	got := strings.Join(tokenTexts(tokens), "")
	if got != "F;" {
		t.Errorf("output = %q, want F;", got)
	}
}

func TestMacroDuplicateParameterNames(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define A(x,x) x\nA(1,2)")
	if !hasDiag(sink, DiagMacroDuplicateParameterNames) {
		t.Fatal("expected duplicate-parameter diagnostic")
	}
	// The macro must not be registered: A remains an identifier.
	texts := tokenTexts(tokens)
	if len(texts) == 0 || texts[0] != "A" {
		t.Errorf("output = %v, macro should not expand", texts)
	}
}

func TestMacroRedefinition(t *testing.T) {
	// Identical redefinition is silent.
	_, sink, _ := preprocess(t, "#define X 1\n#define X 1\n")
	if sink.HasErrors() {
		t.Errorf("identical redefinition reported: %v", sink.Diagnostics)
	}

	// Differing redefinition is an error.
	_, sink2, _ := preprocess(t, "#define X 1\n#define X 2\n")
	if !hasDiag(sink2, DiagMacroRedefined) {
		t.Error("expected redefinition diagnostic")
	}
}

func TestMacroReservedNames(t *testing.T) {
	_, sink, _ := preprocess(t, "#define GL_FOO 1\n")
	if !hasDiag(sink, DiagMacroNameReserved) {
		t.Error("GL_ prefix should be reserved")
	}

	_, sink2, _ := preprocess(t, "#define a__b 1\n")
	if !hasDiag(sink2, DiagWarningMacroNameReserved) {
		t.Error("double underscore should warn")
	}
	if sink2.ErrorCount != 0 {
		t.Error("double underscore must be a warning, not an error")
	}
}

func TestUndefPredefined(t *testing.T) {
	_, sink, _ := preprocess(t, "#undef __VERSION__\n")
	if !hasDiag(sink, DiagMacroPredefinedUndefined) {
		t.Error("undefining a predefined macro should be reported")
	}
	_, sink2, _ := preprocess(t, "#define X 1\n#undef X\nX")
	if sink2.HasErrors() {
		t.Errorf("plain undef failed: %v", sink2.Diagnostics)
	}
}

func TestRedefinePredefined(t *testing.T) {
	_, sink, _ := preprocess(t, "#define __LINE__ 5\n")
	if !hasDiag(sink, DiagMacroPredefinedRedefined) {
		t.Error("redefining a predefined macro should be reported")
	}
}

func TestPredefinedLineAndVersion(t *testing.T) {
	tokens, sink, _ := preprocess(t, "x\n__LINE__ __VERSION__ GL_ES")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	texts := tokenTexts(tokens)
	if len(texts) != 4 || texts[1] != "2" || texts[2] != "100" || texts[3] != "1" {
		t.Errorf("output = %v, want [x 2 100 1]", texts)
	}
}

func TestConditionals(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"if taken", "#if 1\na\n#else\nb\n#endif\n", "a"},
		{"if not taken", "#if 0\na\n#else\nb\n#endif\n", "b"},
		{"ifdef", "#define X\n#ifdef X\na\n#endif\n", "a"},
		{"ifndef", "#ifndef X\na\n#endif\n", "a"},
		{"elif taken", "#if 0\na\n#elif 1\nb\n#else\nc\n#endif\n", "b"},
		{"elif after true group", "#if 1\na\n#elif 1\nb\n#endif\n", "a"},
		{"nested skipped", "#if 0\n#if 1\na\n#endif\nb\n#endif\nc\n", "c"},
		{"expression", "#if 2 + 2 == 4\na\n#endif\n", "a"},
		{"defined operator", "#define X\n#if defined(X) && !defined(Y)\na\n#endif\n", "a"},
		{"defined no parens", "#define X\n#if defined X\na\n#endif\n", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, sink, _ := preprocess(t, tt.source)
			if sink.HasErrors() {
				t.Fatalf("diagnostics: %v", sink.Diagnostics)
			}
			got := strings.Join(tokenTexts(tokens), " ")
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestElifAfterTrueGroupNotEvaluated(t *testing.T) {
	// The elif expression would divide by zero; it must not be
	// evaluated because the first group was taken.
	_, sink, _ := preprocess(t, "#if 1\na\n#elif 1/0\nb\n#endif\n")
	if sink.HasErrors() {
		t.Errorf("skipped elif expression was evaluated: %v", sink.Diagnostics)
	}
}

func TestConditionalErrors(t *testing.T) {
	tests := []struct {
		source string
		want   DiagnosticID
	}{
		{"#else\n", DiagConditionalElseWithoutIf},
		{"#elif 1\n", DiagConditionalElifWithoutIf},
		{"#endif\n", DiagConditionalEndifWithoutIf},
		{"#if 1\n#else\n#else\n#endif\n", DiagConditionalElseAfterElse},
		{"#if 1\n#else\n#elif 1\n#endif\n", DiagConditionalElifAfterElse},
		{"#if 1\na\n", DiagConditionalUnterminated},
		{"#if 1/0\n#endif\n", DiagDivisionByZero},
	}
	for _, tt := range tests {
		_, sink, _ := preprocess(t, tt.source)
		if !hasDiag(sink, tt.want) {
			t.Errorf("%q: expected diagnostic %v, got %v", tt.source, tt.want, sink.Diagnostics)
		}
	}
}

func TestVersionDirective(t *testing.T) {
	_, sink, handler := preprocess(t, "#version 300 es\nvoid")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	if handler.Version != 300 {
		t.Errorf("version = %d, want 300", handler.Version)
	}

	_, sink2, _ := preprocess(t, "#version 300\n")
	if !hasDiag(sink2, DiagInvalidVersionDirective) {
		t.Error("300 without es should be invalid")
	}

	_, sink3, _ := preprocess(t, "#version 310 es\n")
	if !hasDiag(sink3, DiagUnsupportedShaderVersion) {
		t.Error("310 es should be unsupported")
	}

	_, sink4, _ := preprocess(t, "x\n#version 100\n")
	if !hasDiag(sink4, DiagVersionNotFirstStatement) {
		t.Error("version after a statement should be reported")
	}

	_, sink5, _ := preprocess(t, "\n#version 300 es\n")
	if !hasDiag(sink5, DiagVersionNotFirstLine) {
		t.Error("300 es not on line 1 should be reported")
	}

	// __VERSION__ tracks the directive.
	tokens, _, _ := preprocess(t, "#version 300 es\n__VERSION__")
	if texts := tokenTexts(tokens); len(texts) != 1 || texts[0] != "300" {
		t.Errorf("__VERSION__ = %v, want [300]", texts)
	}
}

func TestExtensionDirective(t *testing.T) {
	_, sink, handler := preprocess(t, "#extension GL_OES_standard_derivatives : enable\n")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	if handler.Extensions["GL_OES_standard_derivatives"] != BehaviorEnable {
		t.Error("extension behavior not recorded")
	}

	_, sink2, _ := preprocess(t, "#extension foo : maybe\n")
	if !hasDiag(sink2, DiagInvalidExtensionBehavior) {
		t.Error("invalid behavior should be reported")
	}

	_, sink3, _ := preprocess(t, "#version 300 es\nfloat x;\n#extension foo : enable\n")
	if !hasDiag(sink3, DiagNonPPTokenBeforeExtension) {
		t.Error("extension after tokens should be reported under ESSL3")
	}
}

func TestPragmaDirective(t *testing.T) {
	_, sink, handler := preprocess(t, "#pragma optimize(off)\n#pragma STDGL invariant(all)\n#pragma debug\n")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	if len(handler.Pragmas) != 3 {
		t.Fatalf("pragmas = %+v", handler.Pragmas)
	}
	if handler.Pragmas[0].Name != "optimize" || handler.Pragmas[0].Value != "off" {
		t.Errorf("pragma 0 = %+v", handler.Pragmas[0])
	}
	if !handler.Pragmas[1].STDGL || handler.Pragmas[1].Name != "invariant" {
		t.Errorf("pragma 1 = %+v", handler.Pragmas[1])
	}

	_, sink2, _ := preprocess(t, "#pragma 123\n")
	if !hasDiag(sink2, DiagUnrecognizedPragma) {
		t.Error("non-identifier pragma should be reported")
	}
}

func TestErrorDirective(t *testing.T) {
	_, _, handler := preprocess(t, "#error shader is broken\n")
	if len(handler.Errors) != 1 || !strings.Contains(handler.Errors[0].Message, "shader is broken") {
		t.Errorf("errors = %+v", handler.Errors)
	}
}

func TestLineDirective(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#line 100\nx\n#line 7 3\ny")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	if tokens[0].Location.Line != 100 {
		t.Errorf("x at line %d, want 100", tokens[0].Location.Line)
	}
	if tokens[1].Location.Line != 7 || tokens[1].Location.File != 3 {
		t.Errorf("y at %v, want 3:7", tokens[1].Location)
	}
}

func TestLineDirectiveWithMacro(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define L 40\n#line L\nx")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	if tokens[0].Location.Line != 40 {
		t.Errorf("x at line %d, want 40", tokens[0].Location.Line)
	}
}

func TestInvalidDirectiveName(t *testing.T) {
	_, sink, _ := preprocess(t, "#frobnicate\n")
	if !hasDiag(sink, DiagDirectiveInvalidName) {
		t.Error("unknown directive should be reported")
	}
}

func TestEmptyDirective(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#\nx")
	if sink.HasErrors() {
		t.Errorf("empty directive reported: %v", sink.Diagnostics)
	}
	if len(tokens) != 1 || tokens[0].Text != "x" {
		t.Errorf("output = %v", tokenTexts(tokens))
	}
}

func TestDirectivesInsideSkippedBlock(t *testing.T) {
	// Non-conditional directives in a skipped group have no effect.
	tokens, sink, _ := preprocess(t, "#if 0\n#define X 1\n#error nope\n#endif\nX")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	if len(tokens) != 1 || tokens[0].Text != "X" {
		t.Errorf("output = %v, X must not be defined", tokenTexts(tokens))
	}
}
