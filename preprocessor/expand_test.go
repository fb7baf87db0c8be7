package preprocessor

import (
	"strings"
	"testing"
)

func TestMacroInReplacementList(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define A 1\n#define B A A\nB")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), " ")
	if got != "1 1" {
		t.Errorf("output = %q, want \"1 1\"", got)
	}
}

func TestSelfRecursiveMacro(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define A A+1\nA")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), "")
	if got != "A+1" {
		t.Errorf("output = %q, want A+1", got)
	}
}

func TestMutuallyRecursiveMacros(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define X Y\n#define Y X\nX")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), "")
	if got != "X" {
		t.Errorf("output = %q, want X", got)
	}
}

func TestNestedFunctionMacros(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define ADD(a,b) (a+b)\n#define DOUBLE(x) ADD(x,x)\nDOUBLE(3)")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), "")
	if got != "(3+3)" {
		t.Errorf("output = %q, want (3+3)", got)
	}
}

func TestMacroArgumentCounts(t *testing.T) {
	_, sink, _ := preprocess(t, "#define F(a,b) a b\nF(1)")
	if !hasDiag(sink, DiagMacroTooFewArgs) {
		t.Error("expected too-few-args diagnostic")
	}

	_, sink2, _ := preprocess(t, "#define F(a,b) a b\nF(1,2,3)")
	if !hasDiag(sink2, DiagMacroTooManyArgs) {
		t.Error("expected too-many-args diagnostic")
	}
}

func TestMacroUnterminatedInvocation(t *testing.T) {
	_, sink, _ := preprocess(t, "#define F(a) a\nF(1")
	if !hasDiag(sink, DiagMacroUnterminatedInvocation) {
		t.Error("expected unterminated-invocation diagnostic")
	}
}

func TestMacroInvocationSpansLines(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define F(a,b) a b\nF(1,\n2)")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), " ")
	if got != "1 2" {
		t.Errorf("output = %q, want \"1 2\"", got)
	}
}

func TestMacroNestedParensInArgument(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define ID(x) x\nID((a, b))")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	got := strings.Join(tokenTexts(tokens), "")
	if got != "(a,b)" {
		t.Errorf("output = %q, want (a,b)", got)
	}
}

func TestExpansionIdempotence(t *testing.T) {
	// Preprocessing already preprocessed output again yields the same
	// token stream modulo locations.
	source := "#define SCALE(v) (v * 2.0)\n#define BIAS 0.5\nfloat f = SCALE(x) + BIAS;\n"

	sink := &CountingSink{}
	first := Preprocess([]string{source}, sink, NewDefaultHandler(), Options{})
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}

	printed := PrintTokens(first)
	sink2 := &CountingSink{}
	second := Preprocess([]string{printed}, sink2, NewDefaultHandler(), Options{})
	if sink2.HasErrors() {
		t.Fatalf("second pass diagnostics: %v", sink2.Diagnostics)
	}

	norm := func(tokens []Token) []Token {
		var out []Token
		for _, tk := range tokens {
			if tk.Kind == TokenNewline || tk.Kind == TokenEOF {
				continue
			}
			tk.Location = Location{}
			tk.LeadingSpace = false
			tk.ExpansionDisabled = false
			out = append(out, tk)
		}
		return out
	}

	a, b := norm(first), norm(second)
	if len(a) != len(b) {
		t.Fatalf("token counts differ: %d vs %d\nfirst: %v\nsecond: %v", len(a), len(b), tokenTexts(a), tokenTexts(b))
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Text != b[i].Text {
			t.Errorf("token %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestLineMacroInsideMacro(t *testing.T) {
	tokens, sink, _ := preprocess(t, "#define HERE __LINE__\nx\nHERE")
	if sink.HasErrors() {
		t.Fatalf("diagnostics: %v", sink.Diagnostics)
	}
	// HERE is invoked on line 3.
	texts := tokenTexts(tokens)
	if len(texts) != 2 || texts[1] != "3" {
		t.Errorf("output = %v, want [x 3]", texts)
	}
}
