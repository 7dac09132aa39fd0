package compiler

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for clasp syntax
// ---------------------------------------------------------------------------
//
//	program := sep* (stmt (sep+ stmt)*)? sep*
//	stmt    := name '=' expr | expr
//	expr    := call ('+' call)*
//	call    := primary ('(' expr* ')')*
//	primary := integer | name | lambda | '(' expr ')'
//	lambda  := '(' name* ')' '=>' (expr | block)
//	block   := '{' sep* (stmt (sep+ stmt)*)? sep* '}'
//
// sep is a newline. Inside parentheses newlines are insignificant; inside
// a block they separate statements again. The '(' of a call must follow
// the callee without whitespace, so f(1 (2)) passes two arguments.

// Parser parses a token stream into an AST.
type Parser struct {
	toks   []Token
	pos    int
	errors ErrorList

	// One entry per open delimiter; true when newlines are skipped.
	skipNL []bool
}

// NewParser creates a parser over toks.
func NewParser(toks *Tokens) *Parser {
	list := append([]Token(nil), toks.List...)
	list = append(list, Token{Type: TokenEOF, Pos: toks.End, End: toks.End})
	return &Parser{toks: list}
}

// Parse tokenizes and parses source. Lexical errors are reported before any
// parsing is attempted.
func Parse(source string) (*SourceFile, error) {
	toks, err := TokensFromSource(source)
	if err != nil {
		return nil, err
	}
	p := NewParser(toks)
	file := p.ParseFile()
	if err := p.Errors().Err(); err != nil {
		return file, err
	}
	return file, nil
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() ErrorList {
	return p.errors
}

// cur returns the current token, skipping newlines where they do not count.
func (p *Parser) cur() Token {
	if n := len(p.skipNL); n > 0 && p.skipNL[n-1] {
		for p.toks[p.pos].Type == TokenNewline {
			p.pos++
		}
	}
	return p.toks[p.pos]
}

func (p *Parser) peek(offset int) Token {
	p.cur()
	if i := p.pos + offset; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

// adjacent reports whether the current token starts right where the
// previous one ended.
func (p *Parser) adjacent() bool {
	tok := p.cur()
	if p.pos == 0 {
		return false
	}
	prev := p.toks[p.pos-1]
	return prev.Type != TokenNewline && prev.End.Offset == tok.Pos.Offset
}

func (p *Parser) curIs(t TokenType) bool {
	return p.cur().Type == t
}

// next consumes and returns the current token.
func (p *Parser) next() Token {
	tok := p.cur()
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

// expect consumes a token of type t or records an error.
func (p *Parser) expect(t TokenType, what string) (Token, bool) {
	tok := p.cur()
	if tok.Type != t {
		p.errorAt(tok, "expected %s, found %s", what, tok.describe())
		return tok, false
	}
	return p.next(), true
}

func (p *Parser) errorAt(tok Token, format string, args ...any) {
	p.errors.Add(Span{tok.Pos, tok.End}, format, args...)
}

func (p *Parser) open(skip bool) { p.skipNL = append(p.skipNL, skip) }
func (p *Parser) close()         { p.skipNL = p.skipNL[:len(p.skipNL)-1] }

func (p *Parser) skipSeparators() {
	for p.curIs(TokenNewline) {
		p.next()
	}
}

// sync skips to the end of the current statement after an error.
func (p *Parser) sync(end TokenType) {
	depth := 0
	for {
		tok := p.cur()
		switch tok.Type {
		case TokenEOF:
			return
		case TokenNewline:
			if depth == 0 {
				return
			}
		case TokenParenOpen, TokenBraceOpen:
			depth++
		case TokenParenClose, TokenBraceClose:
			if depth == 0 {
				if tok.Type == end {
					return
				}
			} else {
				depth--
			}
		}
		p.next()
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseFile parses the whole token stream.
func (p *Parser) ParseFile() *SourceFile {
	start := p.cur().Pos
	stmts := p.parseStatements(TokenEOF)
	return &SourceFile{SpanVal: Span{start, p.cur().End}, Statements: stmts}
}

// parseStatements parses newline separated statements up to end, which is
// not consumed.
func (p *Parser) parseStatements(end TokenType) []Stmt {
	var stmts []Stmt
	p.skipSeparators()
	for !p.curIs(end) && !p.curIs(TokenEOF) {
		errs := len(p.errors)
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
		if len(p.errors) > errs {
			p.sync(end)
		} else if !p.curIs(TokenNewline) && !p.curIs(end) && !p.curIs(TokenEOF) {
			tok := p.cur()
			p.errorAt(tok, "expected newline, found %s", tok.describe())
			p.sync(end)
		}
		p.skipSeparators()
	}
	return stmts
}

func (p *Parser) parseStatement() Stmt {
	if p.curIs(TokenName) && p.peek(1).Type == TokenEqual {
		nameTok := p.next()
		p.next() // =
		name := &Ident{SpanVal: Span{nameTok.Pos, nameTok.End}, Name: nameTok.Literal}
		value := p.parseExpr()
		if value == nil {
			return nil
		}
		if lambda, ok := value.(*Lambda); ok {
			lambda.Name = name.Name
		}
		return &Binding{SpanVal: Span{nameTok.Pos, value.Span().End}, Name: name, Value: value}
	}
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	return &ExprStmt{SpanVal: expr.Span(), Expr: expr}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpr() Expr {
	left := p.parseCall()
	if left == nil {
		return nil
	}
	for p.curIs(TokenPlus) {
		p.next()
		right := p.parseCall()
		if right == nil {
			return nil
		}
		left = &Sum{SpanVal: Span{left.Span().Start, right.Span().End}, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseCall() Expr {
	fn := p.parsePrimary()
	if fn == nil {
		return nil
	}
	for p.curIs(TokenParenOpen) && p.adjacent() {
		p.next()
		p.open(true)
		var args []Expr
		for !p.curIs(TokenParenClose) && !p.curIs(TokenEOF) {
			arg := p.parseExpr()
			if arg == nil {
				p.close()
				return nil
			}
			args = append(args, arg)
		}
		closeTok, ok := p.expect(TokenParenClose, "')'")
		p.close()
		if !ok {
			return nil
		}
		fn = &Call{SpanVal: Span{fn.Span().Start, closeTok.End}, Fn: fn, Args: args}
	}
	return fn
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	switch tok.Type {
	case TokenInteger:
		p.next()
		return &IntLiteral{SpanVal: Span{tok.Pos, tok.End}, Value: tok.Value}

	case TokenName:
		p.next()
		return &Ident{SpanVal: Span{tok.Pos, tok.End}, Name: tok.Literal}

	case TokenParenOpen:
		if p.isLambda() {
			return p.parseLambda()
		}
		p.next()
		p.open(true)
		inner := p.parseExpr()
		if inner == nil {
			p.close()
			return nil
		}
		_, ok := p.expect(TokenParenClose, "')'")
		p.close()
		if !ok {
			return nil
		}
		return inner
	}
	p.errorAt(tok, "expected expression, found %s", tok.describe())
	return nil
}

// isLambda looks ahead from '(' for name* ')' '=>'.
func (p *Parser) isLambda() bool {
	i := p.pos + 1
	for ; i < len(p.toks); i++ {
		switch p.toks[i].Type {
		case TokenName, TokenNewline:
			continue
		case TokenParenClose:
			return i+1 < len(p.toks) && p.toks[i+1].Type == TokenFatArrow
		}
		return false
	}
	return false
}

func (p *Parser) parseLambda() Expr {
	start := p.next() // (
	p.open(true)
	var params []*Ident
	seen := make(map[string]bool)
	for p.curIs(TokenName) {
		tok := p.next()
		if seen[tok.Literal] {
			p.errorAt(tok, "duplicate parameter '%s'", tok.Literal)
		}
		seen[tok.Literal] = true
		params = append(params, &Ident{SpanVal: Span{tok.Pos, tok.End}, Name: tok.Literal})
	}
	p.expect(TokenParenClose, "')'")
	p.close()
	p.expect(TokenFatArrow, "'=>'")

	lambda := &Lambda{Params: params}
	if p.curIs(TokenBraceOpen) {
		openTok := p.next()
		p.open(false)
		lambda.Body = p.parseStatements(TokenBraceClose)
		closeTok, ok := p.expect(TokenBraceClose, "'}'")
		p.close()
		if !ok {
			return nil
		}
		lambda.Braced = true
		lambda.SpanVal = Span{start.Pos, closeTok.End}
		if len(lambda.Body) == 0 {
			p.errors.Add(Span{openTok.Pos, closeTok.End}, "empty function body")
		}
		return lambda
	}

	body := p.parseExpr()
	if body == nil {
		return nil
	}
	lambda.Body = []Stmt{&ExprStmt{SpanVal: body.Span(), Expr: body}}
	lambda.SpanVal = Span{start.Pos, body.Span().End}
	return lambda
}
