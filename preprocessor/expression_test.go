package preprocessor

import "testing"

// sliceLexer replays a fixed token slice.
type sliceLexer struct {
	tokens []Token
	pos    int
}

func (s *sliceLexer) Lex() Token {
	if s.pos >= len(s.tokens) {
		return Token{Kind: TokenEOF}
	}
	t := s.tokens[s.pos]
	s.pos++
	return t
}

func lexExpression(t *testing.T, source string) Lexer {
	t.Helper()
	tokens, sink := lexAll(t, source)
	if sink.HasErrors() {
		t.Fatalf("lex %q: %v", source, sink.Diagnostics)
	}
	return &sliceLexer{tokens: tokens}
}

func TestExpressionEvaluation(t *testing.T) {
	tests := []struct {
		source string
		want   int
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 3", 3},
		{"10 % 3", 1},
		{"1 << 4", 16},
		{"256 >> 4", 16},
		{"-5 + 3", -2},
		{"!0", 1},
		{"!42", 0},
		{"~0", -1},
		{"1 < 2", 1},
		{"2 <= 1", 0},
		{"3 == 3", 1},
		{"3 != 3", 0},
		{"1 && 0", 0},
		{"1 || 0", 1},
		{"6 & 3", 2},
		{"6 | 3", 7},
		{"6 ^ 3", 5},
		{"1 ? 10 : 20", 10},
		{"0 ? 10 : 20", 20},
		{"0 ? 10 : 1 ? 20 : 30", 20},
		{"0x10", 16},
		{"010", 8},
		{"2147483647", 2147483647},
		// Arithmetic wraps at 32 bits in #if expressions.
		{"2147483647 + 1", -2147483648},
	}
	for _, tt := range tests {
		v, _, valid := ParseExpression(lexExpression(t, tt.source), &CountingSink{}, ExpressionOptions{})
		if !valid {
			t.Errorf("%q: parse invalid", tt.source)
			continue
		}
		if v != tt.want {
			t.Errorf("%q = %d, want %d", tt.source, v, tt.want)
		}
	}
}

func TestExpressionErrors(t *testing.T) {
	tests := []struct {
		source string
		want   DiagnosticID
	}{
		{"1 +", DiagInvalidExpression},
		{"(1", DiagInvalidExpression},
		{"foo", DiagInvalidExpression},
		{"1 / 0", DiagDivisionByZero},
		{"1 % 0", DiagDivisionByZero},
		{"4294967296", DiagIntegerOverflow},
	}
	for _, tt := range tests {
		sink := &CountingSink{}
		_, _, valid := ParseExpression(lexExpression(t, tt.source), sink, ExpressionOptions{})
		if valid {
			t.Errorf("%q: expected invalid parse", tt.source)
		}
		if !hasDiag(sink, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.source, tt.want, sink.Diagnostics)
		}
	}
}

func TestExpressionMustFit32(t *testing.T) {
	sink := &CountingSink{}
	_, _, valid := ParseExpression(lexExpression(t, "2147483648"), sink, ExpressionOptions{MustFit32Bit: true})
	if valid || !hasDiag(sink, DiagIntegerOverflow) {
		t.Error("literal above int32 range must fail when MustFit32Bit is set")
	}

	v, _, valid2 := ParseExpression(lexExpression(t, "2147483648"), &CountingSink{}, ExpressionOptions{})
	if !valid2 {
		t.Error("literal above int32 range should wrap without MustFit32Bit")
	}
	if v != -2147483648 {
		t.Errorf("wrapped value = %d", v)
	}
}

func TestLineNumberOverflowReportsEOF(t *testing.T) {
	// A #line directive pushing the counter to the limit makes the
	// input report EOF rather than wrapping.
	source := "#line 2147483647\nx\ny\n"
	sink := &CountingSink{}
	tokens := Preprocess([]string{source}, sink, NewDefaultHandler(), Options{})
	// x survives at the limit; advancing past it truncates input.
	var texts []string
	for _, tk := range tokens {
		if tk.Kind == TokenIdentifier {
			texts = append(texts, tk.Text)
		}
	}
	if len(texts) == 0 || texts[0] != "x" {
		t.Fatalf("texts = %v", texts)
	}
	if len(texts) > 1 {
		t.Errorf("tokens past the line-counter overflow: %v", texts)
	}
}
