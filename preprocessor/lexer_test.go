package preprocessor

import "testing"

func lexAll(t *testing.T, source string) ([]Token, *CountingSink) {
	t.Helper()
	sink := &CountingSink{}
	tok := NewTokenizer(NewInput([]string{source}, nil), sink)
	var tokens []Token
	for {
		tk := tok.Lex()
		tokens = append(tokens, tk)
		if tk.Kind == TokenEOF {
			return tokens, sink
		}
		if len(tokens) > 10000 {
			t.Fatal("tokenizer did not terminate")
		}
	}
}

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizerBasic(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenKind
	}{
		{"void main", []TokenKind{TokenIdentifier, TokenIdentifier, TokenEOF}},
		{"1 2.0 0x1F 017", []TokenKind{TokenConstInt, TokenConstFloat, TokenConstInt, TokenConstInt, TokenEOF}},
		{"a+b", []TokenKind{TokenIdentifier, TokenPlus, TokenIdentifier, TokenEOF}},
		{"( ) { } [ ]", []TokenKind{TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace, TokenLeftBracket, TokenRightBracket, TokenEOF}},
		{"== != <= >= && || ^^", []TokenKind{TokenEqualEqual, TokenBangEqual, TokenLessEqual, TokenGreaterEqual, TokenAmpAmp, TokenPipePipe, TokenCaretCaret, TokenEOF}},
		{"<<= >>=", []TokenKind{TokenLessLessEqual, TokenGreaterGreaterEqual, TokenEOF}},
		{"a\nb", []TokenKind{TokenIdentifier, TokenNewline, TokenIdentifier, TokenEOF}},
		{"1.5e-3 2E+4 3e2", []TokenKind{TokenConstFloat, TokenConstFloat, TokenConstFloat, TokenEOF}},
		{".5 1.", []TokenKind{TokenConstFloat, TokenConstFloat, TokenEOF}},
	}

	for _, tt := range tests {
		tokens, sink := lexAll(t, tt.input)
		if sink.HasErrors() {
			t.Errorf("%q: unexpected diagnostics %v", tt.input, sink.Diagnostics)
		}
		got := kinds(tokens)
		if len(got) != len(tt.expected) {
			t.Errorf("%q: got %d tokens, want %d: %v", tt.input, len(got), len(tt.expected), tokens)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("%q: token %d kind = %d, want %d", tt.input, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestTokenizerHashOnlyAtLineStart(t *testing.T) {
	tokens, sink := lexAll(t, "a # b\n#define")
	want := []TokenKind{TokenIdentifier, TokenInvalid, TokenIdentifier, TokenNewline, TokenHash, TokenIdentifier, TokenEOF}
	got := kinds(tokens)
	if len(got) != len(want) {
		t.Fatalf("got %v", tokens)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("token %d kind = %d, want %d", i, got[i], want[i])
		}
	}
	if !sink.HasErrors() {
		t.Error("mid-line '#' should report an invalid character")
	}
}

func TestTokenizerComments(t *testing.T) {
	tokens, sink := lexAll(t, "a /* comment \n more */ b // trailing\nc")
	var ids []string
	lines := []int{}
	for _, tk := range tokens {
		if tk.Kind == TokenIdentifier {
			ids = append(ids, tk.Text)
			lines = append(lines, tk.Location.Line)
		}
	}
	if sink.HasErrors() {
		t.Errorf("unexpected diagnostics %v", sink.Diagnostics)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("identifiers = %v", ids)
	}
	if lines[1] != 2 {
		t.Errorf("b on line %d, want 2 (block comment advances lines)", lines[1])
	}
	if !tokens[1].LeadingSpace && tokens[1].Text == "b" {
		t.Error("comment should count as leading whitespace")
	}
}

func TestTokenizerUnterminatedComment(t *testing.T) {
	_, sink := lexAll(t, "a /* never closed")
	found := false
	for _, d := range sink.Diagnostics {
		if d.ID == DiagEOFInComment {
			found = true
		}
	}
	if !found {
		t.Error("expected EOF-in-comment diagnostic")
	}
}

func TestLineContinuation(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"lf", "ab\\\ncd"},
		{"crlf", "ab\\\r\ncd"},
		{"cr", "ab\\\rcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, _ := lexAll(t, tt.input)
			if tokens[0].Kind != TokenIdentifier || tokens[0].Text != "abcd" {
				t.Errorf("token = %+v, want identifier abcd", tokens[0])
			}
			// The joined identifier is the only token before EOF.
			if tokens[1].Kind != TokenEOF {
				t.Fatalf("want EOF after abcd, got %+v", tokens[1])
			}
		})
	}
}

func TestLineContinuationAdvancesLine(t *testing.T) {
	tokens, _ := lexAll(t, "a\\\nb c")
	// "ab" then "c"; c is on logical line 2.
	if tokens[0].Text != "ab" {
		t.Fatalf("first token %q", tokens[0].Text)
	}
	if tokens[1].Text != "c" || tokens[1].Location.Line != 2 {
		t.Errorf("c at line %d, want 2", tokens[1].Location.Line)
	}
}

func TestInputSpansSourceStrings(t *testing.T) {
	sink := &CountingSink{}
	tok := NewTokenizer(NewInput([]string{"ab", "cd ", "ef"}, nil), sink)
	first := tok.Lex()
	if first.Text != "abcd" {
		t.Errorf("identifier across strings = %q, want abcd", first.Text)
	}
	second := tok.Lex()
	if second.Text != "ef" || !second.LeadingSpace {
		t.Errorf("second = %+v, want ef with leading space", second)
	}
}

func TestInputLengths(t *testing.T) {
	sink := &CountingSink{}
	tok := NewTokenizer(NewInput([]string{"abcdef"}, []int{3}), sink)
	first := tok.Lex()
	if first.Text != "abc" {
		t.Errorf("truncated identifier = %q, want abc", first.Text)
	}
}

func TestTokenizerLeadingSpaceFlag(t *testing.T) {
	tokens, _ := lexAll(t, "A (x) B(y)")
	// A has no leading space (first), '(' after A has one, B's '('
	// does not.
	var bIndex int
	for i, tk := range tokens {
		if tk.Text == "B" {
			bIndex = i
		}
	}
	if !tokens[1].LeadingSpace {
		t.Error("'(' after 'A ' should have leading space")
	}
	if tokens[bIndex+1].LeadingSpace {
		t.Error("'(' directly after B should not have leading space")
	}
}
