package compiler

// ---------------------------------------------------------------------------
// Name resolution for editor tooling
// ---------------------------------------------------------------------------

// SymbolKind says how a name was introduced.
type SymbolKind int

const (
	SymbolBinding SymbolKind = iota // name = value
	SymbolParam                     // lambda parameter
)

func (k SymbolKind) String() string {
	if k == SymbolParam {
		return "parameter"
	}
	return "binding"
}

// Symbol is one declaration and every identifier that refers to it.
// Rebinding a name declares a new symbol.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Decl  *Ident
	Value Expr // bound value, nil for parameters
	Owner *Lambda
	Uses  []*Ident
}

// IsFunction reports whether the symbol is bound directly to a lambda.
func (s *Symbol) IsFunction() bool {
	_, ok := s.Value.(*Lambda)
	return ok
}

// Resolution maps identifiers in a source file to their symbols.
type Resolution struct {
	Symbols []*Symbol
	idents  map[*Ident]*Symbol
}

// Resolve binds every identifier in file using the same scoping rules as
// the code generator. Undefined names are left unresolved.
func Resolve(file *SourceFile) *Resolution {
	r := &Resolution{idents: make(map[*Ident]*Symbol)}
	r.statements(file.Statements, newScope(nil))
	return r
}

// Lookup returns the symbol an identifier declares or refers to.
func (r *Resolution) Lookup(id *Ident) *Symbol {
	return r.idents[id]
}

// At returns the identifier under pos and its symbol. A position just past
// the end of a name still selects it.
func (r *Resolution) At(pos Position) (*Ident, *Symbol) {
	for id, sym := range r.idents {
		s := id.SpanVal
		if s.Start.Line == pos.Line && s.Start.Column <= pos.Column && pos.Column <= s.End.Column {
			return id, sym
		}
	}
	return nil, nil
}

type scope struct {
	names  map[string]*Symbol
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{names: make(map[string]*Symbol), parent: parent}
}

func (s *scope) lookup(name string) *Symbol {
	for ; s != nil; s = s.parent {
		if sym, ok := s.names[name]; ok {
			return sym
		}
	}
	return nil
}

func (r *Resolution) declare(sc *scope, sym *Symbol) {
	sc.names[sym.Name] = sym
	r.Symbols = append(r.Symbols, sym)
	r.idents[sym.Decl] = sym
}

func (r *Resolution) statements(stmts []Stmt, sc *scope) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *Binding:
			sym := &Symbol{Name: s.Name.Name, Kind: SymbolBinding, Decl: s.Name, Value: s.Value}
			if l, ok := s.Value.(*Lambda); ok && l.Name != "" {
				r.lambda(l, sc, sym)
			} else {
				r.expr(s.Value, sc)
			}
			r.declare(sc, sym)
		case *ExprStmt:
			r.expr(s.Expr, sc)
		}
	}
}

func (r *Resolution) expr(e Expr, sc *scope) {
	switch e := e.(type) {
	case *Ident:
		if sym := sc.lookup(e.Name); sym != nil {
			sym.Uses = append(sym.Uses, e)
			r.idents[e] = sym
		}
	case *Sum:
		r.expr(e.Left, sc)
		r.expr(e.Right, sc)
	case *Call:
		for _, a := range e.Args {
			r.expr(a, sc)
		}
		r.expr(e.Fn, sc)
	case *Lambda:
		r.lambda(e, sc, nil)
	}
}

// lambda resolves a function body. self is the binding the lambda is
// directly assigned to, which the body can call by name.
func (r *Resolution) lambda(l *Lambda, sc *scope, self *Symbol) {
	inner := newScope(sc)
	if self != nil {
		inner.names[self.Name] = self
	}
	for _, p := range l.Params {
		r.declare(inner, &Symbol{Name: p.Name, Kind: SymbolParam, Decl: p, Owner: l})
	}
	r.statements(l.Body, newScope(inner))
}
