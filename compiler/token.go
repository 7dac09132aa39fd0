package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the clasp lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger // 42
	TokenName    // foo, add_1

	// Delimiters
	TokenParenOpen  // (
	TokenParenClose // )
	TokenBraceOpen  // {
	TokenBraceClose // }
	TokenEqual      // =
	TokenFatArrow   // =>
	TokenPlus       // +
	TokenNewline    // \n
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "Error",
	TokenInteger:    "Integer",
	TokenName:       "Name",
	TokenParenOpen:  "ParenOpen",
	TokenParenClose: "ParenClose",
	TokenBraceOpen:  "BraceOpen",
	TokenBraceClose: "BraceClose",
	TokenEqual:      "Equal",
	TokenFatArrow:   "FatArrow",
	TokenPlus:       "Plus",
	TokenNewline:    "Newline",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the message for TokenError
	Value   int64    // parsed value of a TokenInteger
	Pos     Position // start position
	End     Position // position just past the token
}

// String renders the token the way token streams are listed:
// <Integer 1>, <Name x>, <ParenOpen>.
func (t Token) String() string {
	switch t.Type {
	case TokenInteger:
		return fmt.Sprintf("<Integer %d>", t.Value)
	case TokenName:
		return fmt.Sprintf("<Name %s>", t.Literal)
	case TokenError:
		return fmt.Sprintf("<Error %s>", t.Literal)
	}
	return "<" + t.Type.String() + ">"
}

// describe names the token for error messages.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenNewline:
		return "newline"
	}
	return fmt.Sprintf("'%s'", t.Literal)
}
