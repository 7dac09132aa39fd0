package compiler

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// Ident represents a reference to a name.
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// Sum represents left + right.
type Sum struct {
	SpanVal Span
	Left    Expr
	Right   Expr
}

func (n *Sum) Span() Span { return n.SpanVal }
func (n *Sum) node()      {}
func (n *Sum) expr()      {}

// Call represents fn(args...).
type Call struct {
	SpanVal Span
	Fn      Expr
	Args    []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// Lambda represents (params...) => body. An expression body is stored as a
// single statement.
type Lambda struct {
	SpanVal Span
	Params  []*Ident
	Body    []Stmt
	Braced  bool   // body was written as a { } block
	Name    string // binding name when the lambda is bound directly, else ""
}

func (n *Lambda) Span() Span { return n.SpanVal }
func (n *Lambda) node()      {}
func (n *Lambda) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Binding represents name = value.
type Binding struct {
	SpanVal Span
	Name    *Ident
	Value   Expr
}

func (n *Binding) Span() Span { return n.SpanVal }
func (n *Binding) node()      {}
func (n *Binding) stmt()      {}

// ExprStmt is an expression evaluated for its value.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// SourceFile is a parsed program: the top-level statements in order.
type SourceFile struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *SourceFile) Span() Span { return n.SpanVal }
func (n *SourceFile) node()      {}

// ---------------------------------------------------------------------------
// Walking
// ---------------------------------------------------------------------------

// Inspect calls f for n and, if f returns true, for each child of n in
// source order.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *SourceFile:
		for _, s := range n.Statements {
			Inspect(s, f)
		}
	case *Binding:
		Inspect(n.Name, f)
		Inspect(n.Value, f)
	case *ExprStmt:
		Inspect(n.Expr, f)
	case *Sum:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *Call:
		for _, a := range n.Args {
			Inspect(a, f)
		}
		Inspect(n.Fn, f)
	case *Lambda:
		for _, p := range n.Params {
			Inspect(p, f)
		}
		for _, s := range n.Body {
			Inspect(s, f)
		}
	}
}
