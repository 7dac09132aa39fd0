package compiler

import (
	"errors"
	"strings"
	"testing"
)

func TestLexerSimpleTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"(", []TokenType{TokenParenOpen, TokenEOF}},
		{")", []TokenType{TokenParenClose, TokenEOF}},
		{"{}", []TokenType{TokenBraceOpen, TokenBraceClose, TokenEOF}},
		{"=", []TokenType{TokenEqual, TokenEOF}},
		{"=>", []TokenType{TokenFatArrow, TokenEOF}},
		{"==>", []TokenType{TokenEqual, TokenFatArrow, TokenEOF}},
		{"+", []TokenType{TokenPlus, TokenEOF}},
		{"a\nb", []TokenType{TokenName, TokenNewline, TokenName, TokenEOF}},
		{"  \t\r ", []TokenType{TokenEOF}},
		{"12ab", []TokenType{TokenInteger, TokenName, TokenEOF}},
	}

	for _, tt := range tests {
		l := NewLexer(tt.input)
		for i, want := range tt.expected {
			tok := l.NextToken()
			if tok.Type != want {
				t.Errorf("input %q, token %d: got %s, want %s", tt.input, i, tok.Type, want)
			}
		}
	}
}

func TestLexerNames(t *testing.T) {
	tests := []string{"x", "add_1", "Foo", "été", "a2b"}
	for _, input := range tests {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenName || tok.Literal != input {
			t.Errorf("input %q: got %s %q", input, tok.Type, tok.Literal)
		}
	}
	// A name cannot start with an underscore.
	if tok := NewLexer("_x").NextToken(); tok.Type != TokenError {
		t.Errorf("_x lexed as %s", tok.Type)
	}
}

func TestLexerIntegers(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"42", 42},
		{"007", 7},
		{"9223372036854775807", 9223372036854775807},
	}
	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != TokenInteger || tok.Value != tt.want {
			t.Errorf("input %q: got %s %d", tt.input, tok.Type, tok.Value)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("a =\n  (é) b")
	want := []struct {
		typ       TokenType
		line, col int
	}{
		{TokenName, 0, 0},
		{TokenEqual, 0, 2},
		{TokenNewline, 0, 3},
		{TokenParenOpen, 1, 2},
		{TokenName, 1, 3},
		{TokenParenClose, 1, 4},
		{TokenName, 1, 6},
		{TokenEOF, 1, 7},
	}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w.typ || tok.Pos.Line != w.line || tok.Pos.Column != w.col {
			t.Errorf("token %d: got %s at %s, want %s at %d:%d", i, tok.Type, tok.Pos, w.typ, w.line, w.col)
		}
	}
}

func TestTokensString(t *testing.T) {
	toks, err := TokensFromSource("add = (x y) => { x + y }\nadd(1 2)")
	if err != nil {
		t.Fatal(err)
	}
	want := "<Name add> <Equal> <ParenOpen> <Name x> <Name y> <ParenClose> <FatArrow> " +
		"<BraceOpen> <Name x> <Plus> <Name y> <BraceClose> <Newline> " +
		"<Name add> <ParenOpen> <Integer 1> <Integer 2> <ParenClose>"
	if got := toks.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestTokensCollectsAllErrors(t *testing.T) {
	_, err := TokensFromSource("a $ b\n  99999999999999999999 ? c")
	if err == nil {
		t.Fatal("expected errors")
	}
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("err = %T, want ErrorList", err)
	}
	want := []string{
		"unexpected token '$' at 0:2",
		"integer token too large 99999999999999999999 at 1:2",
		"unexpected token '?' at 1:23",
	}
	if len(list) != len(want) {
		t.Fatalf("got %d errors: %v", len(list), err)
	}
	for i, w := range want {
		if list[i].Error() != w {
			t.Errorf("error %d = %q, want %q", i, list[i].Error(), w)
		}
	}
	if err.Error() != strings.Join(want, "\n") {
		t.Errorf("joined = %q", err.Error())
	}
}

func TestTokensEmpty(t *testing.T) {
	toks, err := TokensFromSource("")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks.List) != 0 || toks.String() != "" {
		t.Errorf("tokens = %v", toks.List)
	}
}
