package compiler

import (
	"fmt"

	"github.com/chazu/clasp/vm"
)

// ---------------------------------------------------------------------------
// Codegen: compile AST to bytecode
// ---------------------------------------------------------------------------

// Compiler compiles a parsed source file into a vm.Program.
//
// The top-level statements run in the entry frame, which is placed at
// address 0. Function bodies are emitted after it, breadth first, each
// behind the label its MakeClosure refers to.
type Compiler struct {
	builder *vm.Builder
	pending []pendingBody
	labels  map[vm.Address]string
	errors  ErrorList
}

type pendingBody struct {
	lambda   *Lambda
	label    *vm.Label
	captures []*Ident
}

// frame tracks where each visible name lives in the current activation and
// how many values the frame holds at the current point of the code.
type frame struct {
	locals map[string]int
	height int
}

func (f *frame) push(n int) { f.height += n }

// NewCompiler creates a new compiler.
func NewCompiler() *Compiler {
	return &Compiler{
		builder: vm.NewBuilder(),
		labels:  make(map[vm.Address]string),
	}
}

// Compile parses and compiles source.
func Compile(name, source string) (*vm.Program, error) {
	file, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return NewCompiler().CompileFile(name, file)
}

// Errors returns accumulated compilation errors.
func (c *Compiler) Errors() ErrorList {
	return c.errors
}

// CompileFile compiles file into a program named name.
func (c *Compiler) CompileFile(name string, file *SourceFile) (*vm.Program, error) {
	if len(file.Statements) == 0 {
		c.errors.Add(file.SpanVal, "empty program")
		return nil, c.errors
	}

	c.labels[c.builder.Len()] = "main"
	c.compileBody(file.Statements, &frame{locals: make(map[string]int)})

	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.compileLambdaBody(next)
	}

	if len(c.errors) > 0 {
		c.errors.Sort()
		return nil, c.errors
	}
	code, err := c.builder.Code()
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	return &vm.Program{Name: name, Entry: 0, Code: code, Labels: c.labels}, nil
}

// compileBody compiles statements and returns the value of the last one.
func (c *Compiler) compileBody(stmts []Stmt, f *frame) {
	for _, s := range stmts {
		c.compileStmt(s, f)
	}
	c.builder.Emit(vm.Return())
}

// compileLambdaBody lays out the callee frame per the calling convention:
// parameters, the function itself, then its captured values.
func (c *Compiler) compileLambdaBody(p pendingBody) {
	l := p.lambda
	c.builder.Mark(p.label)
	name := l.Name
	if name == "" {
		name = fmt.Sprintf("lambda@%s", l.SpanVal.Start)
	}
	c.labels[c.builder.Len()] = name

	n := len(l.Params)
	f := &frame{locals: make(map[string]int), height: n + 1 + len(p.captures)}
	if l.Name != "" {
		f.locals[l.Name] = n
	}
	for i, param := range l.Params {
		f.locals[param.Name] = i
	}
	for i, id := range p.captures {
		f.locals[id.Name] = n + 1 + i
	}
	c.compileBody(l.Body, f)
}

func (c *Compiler) compileStmt(s Stmt, f *frame) {
	switch s := s.(type) {
	case *Binding:
		c.compileExpr(s.Value, f)
		f.locals[s.Name.Name] = f.height - 1
	case *ExprStmt:
		c.compileExpr(s.Expr, f)
	}
}

func (c *Compiler) compileExpr(e Expr, f *frame) {
	switch e := e.(type) {
	case *IntLiteral:
		c.builder.Emit(vm.LiteralInt(e.Value))
		f.push(1)

	case *Ident:
		slot, ok := f.locals[e.Name]
		if !ok {
			c.errors.Add(e.SpanVal, "undefined name '%s'", e.Name)
		}
		c.builder.Emit(vm.Load(slot))
		f.push(1)

	case *Sum:
		c.compileExpr(e.Left, f)
		c.compileExpr(e.Right, f)
		c.builder.Emit(vm.Add())
		f.push(-1)

	case *Call:
		for _, arg := range e.Args {
			c.compileExpr(arg, f)
		}
		c.compileExpr(e.Fn, f)
		c.builder.Emit(vm.Call(uint32(len(e.Args))))
		f.push(-len(e.Args))

	case *Lambda:
		captures := freeVars(e)
		for _, id := range captures {
			c.compileExpr(id, f)
		}
		label := c.builder.NewLabel()
		c.builder.EmitTo(vm.MakeClosure(0, uint32(len(e.Params)), uint32(len(captures))), label)
		f.push(1 - len(captures))
		c.pending = append(c.pending, pendingBody{lambda: e, label: label, captures: captures})

	default:
		c.errors.Add(e.Span(), "unsupported expression %T", e)
	}
}

// ---------------------------------------------------------------------------
// Free variables
// ---------------------------------------------------------------------------

// freeVars returns the names l uses but does not bind, each as its first
// occurrence in evaluation order.
func freeVars(l *Lambda) []*Ident {
	bound := make(map[string]bool)
	for _, p := range l.Params {
		bound[p.Name] = true
	}
	if l.Name != "" {
		bound[l.Name] = true
	}
	fv := &freeSet{seen: make(map[string]bool)}
	for _, s := range l.Body {
		switch s := s.(type) {
		case *Binding:
			fv.walk(s.Value, bound)
			bound[s.Name.Name] = true
		case *ExprStmt:
			fv.walk(s.Expr, bound)
		}
	}
	return fv.list
}

type freeSet struct {
	seen map[string]bool
	list []*Ident
}

func (fv *freeSet) add(id *Ident) {
	if !fv.seen[id.Name] {
		fv.seen[id.Name] = true
		fv.list = append(fv.list, id)
	}
}

// walk visits e in the order the generated code evaluates it.
func (fv *freeSet) walk(e Expr, bound map[string]bool) {
	switch e := e.(type) {
	case *Ident:
		if !bound[e.Name] {
			fv.add(e)
		}
	case *Sum:
		fv.walk(e.Left, bound)
		fv.walk(e.Right, bound)
	case *Call:
		for _, arg := range e.Args {
			fv.walk(arg, bound)
		}
		fv.walk(e.Fn, bound)
	case *Lambda:
		for _, id := range freeVars(e) {
			if !bound[id.Name] {
				fv.add(id)
			}
		}
	}
}
