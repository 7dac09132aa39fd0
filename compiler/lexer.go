package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for clasp source
// ---------------------------------------------------------------------------

// Lexer tokenizes clasp source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch
	col     int  // column of ch
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, col: -1}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) token(t TokenType, literal string, pos Position) Token {
	return Token{Type: t, Literal: literal, Pos: pos, End: l.position()}
}

// NextToken returns the next token. Malformed input yields a TokenError
// whose Literal is the message; lexing can continue after it.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.position()
	if l.atEOF() {
		return l.token(TokenEOF, "", pos)
	}

	switch ch := l.ch; {
	case ch == '(':
		l.readChar()
		return l.token(TokenParenOpen, "(", pos)

	case ch == ')':
		l.readChar()
		return l.token(TokenParenClose, ")", pos)

	case ch == '{':
		l.readChar()
		return l.token(TokenBraceOpen, "{", pos)

	case ch == '}':
		l.readChar()
		return l.token(TokenBraceClose, "}", pos)

	case ch == '\n':
		l.readChar()
		return l.token(TokenNewline, "\n", pos)

	case ch == '+':
		l.readChar()
		return l.token(TokenPlus, "+", pos)

	case ch == '=':
		l.readChar()
		if l.ch == '>' && !l.atEOF() {
			l.readChar()
			return l.token(TokenFatArrow, "=>", pos)
		}
		return l.token(TokenEqual, "=", pos)

	case isDigit(ch):
		return l.readInteger(pos)

	case unicode.IsLetter(ch):
		return l.readName(pos)

	default:
		l.readChar()
		return l.token(TokenError, fmt.Sprintf("unexpected token '%c'", ch), pos)
	}
}

// skipWhitespace skips spaces, tabs and carriage returns. Newlines are tokens.
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\r') {
		l.readChar()
	}
}

func (l *Lexer) readInteger(pos Position) Token {
	start := l.pos
	for !l.atEOF() && isDigit(l.ch) {
		l.readChar()
	}
	text := l.input[start:l.pos]
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return l.token(TokenError, "integer token too large "+text, pos)
	}
	tok := l.token(TokenInteger, text, pos)
	tok.Value = n
	return tok
}

func (l *Lexer) readName(pos Position) Token {
	start := l.pos
	for !l.atEOF() && (unicode.IsLetter(l.ch) || unicode.IsNumber(l.ch) || l.ch == '_') {
		l.readChar()
	}
	return l.token(TokenName, l.input[start:l.pos], pos)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// ---------------------------------------------------------------------------
// Token streams
// ---------------------------------------------------------------------------

// Tokens is the complete token sequence of a source text, without the EOF
// marker.
type Tokens struct {
	Source string
	List   []Token
	End    Position // position of the end of input
}

// TokensFromSource scans all of source. Every lexical error is collected;
// if there is at least one, the result is nil and the error is an ErrorList.
func TokensFromSource(source string) (*Tokens, error) {
	var errs ErrorList
	toks := &Tokens{Source: source}
	l := NewLexer(source)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case TokenEOF:
			toks.End = tok.Pos
			if err := errs.Err(); err != nil {
				return nil, err
			}
			return toks, nil
		case TokenError:
			errs.Add(Span{tok.Pos, tok.End}, "%s", tok.Literal)
		default:
			toks.List = append(toks.List, tok)
		}
	}
}

// String renders the sequence separated by single spaces.
func (t *Tokens) String() string {
	parts := make([]string, len(t.List))
	for i, tok := range t.List {
		parts[i] = tok.String()
	}
	return strings.Join(parts, " ")
}
