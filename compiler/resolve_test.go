package compiler

import "testing"

func TestResolveBindingsAndParams(t *testing.T) {
	res := Resolve(mustParse(t, "add = (x y) => x + y\nadd(1 2)\nadd(3 4)"))

	var add, x *Symbol
	for _, sym := range res.Symbols {
		switch sym.Name {
		case "add":
			add = sym
		case "x":
			x = sym
		}
	}
	if add == nil || x == nil {
		t.Fatalf("symbols = %+v", res.Symbols)
	}
	if add.Kind != SymbolBinding || !add.IsFunction() {
		t.Errorf("add = %+v", add)
	}
	if len(add.Uses) != 2 {
		t.Errorf("add has %d uses, want 2", len(add.Uses))
	}
	if x.Kind != SymbolParam || x.Owner == nil || len(x.Uses) != 1 {
		t.Errorf("x = %+v", x)
	}
	if res.Lookup(add.Decl) != add || res.Lookup(add.Uses[0]) != add {
		t.Error("Lookup does not map declaration and uses to their symbol")
	}
	if x.Kind.String() != "parameter" || add.Kind.String() != "binding" {
		t.Errorf("kind names = %s, %s", x.Kind, add.Kind)
	}
}

func TestResolveRebinding(t *testing.T) {
	res := Resolve(mustParse(t, "x = 1\nx = x + 1\nx"))

	var decls []*Symbol
	for _, sym := range res.Symbols {
		if sym.Name == "x" {
			decls = append(decls, sym)
		}
	}
	if len(decls) != 2 {
		t.Fatalf("got %d declarations of x, want 2", len(decls))
	}
	// The right-hand side of the rebinding sees the first x.
	if len(decls[0].Uses) != 1 || decls[0].Uses[0].SpanVal.Start.Line != 1 {
		t.Errorf("first x uses = %+v", decls[0].Uses)
	}
	if len(decls[1].Uses) != 1 || decls[1].Uses[0].SpanVal.Start.Line != 2 {
		t.Errorf("second x uses = %+v", decls[1].Uses)
	}
}

func TestResolveSelfReference(t *testing.T) {
	res := Resolve(mustParse(t, "me = () => me\nme()"))
	if len(res.Symbols) != 1 {
		t.Fatalf("symbols = %+v", res.Symbols)
	}
	if got := len(res.Symbols[0].Uses); got != 2 {
		t.Errorf("me has %d uses, want 2", got)
	}
}

func TestResolveParamShadowsSelf(t *testing.T) {
	res := Resolve(mustParse(t, "f = (f) => f\nf(1)"))
	for _, sym := range res.Symbols {
		if sym.Kind == SymbolParam && len(sym.Uses) != 1 {
			t.Errorf("param f uses = %d, want 1", len(sym.Uses))
		}
		if sym.Kind == SymbolBinding && len(sym.Uses) != 1 {
			t.Errorf("binding f uses = %d, want 1", len(sym.Uses))
		}
	}
}

func TestResolveUndefinedIsUnresolved(t *testing.T) {
	file := mustParse(t, "y + 1")
	res := Resolve(file)
	if len(res.Symbols) != 0 {
		t.Errorf("symbols = %+v", res.Symbols)
	}
	id, sym := res.At(Position{Line: 0, Column: 0})
	if id != nil || sym != nil {
		t.Errorf("At = %v, %v", id, sym)
	}
}

func TestResolveAt(t *testing.T) {
	res := Resolve(mustParse(t, "value = 2\nvalue + value"))
	tests := []struct {
		pos  Position
		want bool
	}{
		{Position{Line: 0, Column: 0}, true},
		{Position{Line: 0, Column: 5}, true},
		{Position{Line: 0, Column: 7}, false},
		{Position{Line: 1, Column: 8}, true},
		{Position{Line: 1, Column: 13}, true},
		{Position{Line: 2, Column: 0}, false},
	}
	for _, tt := range tests {
		id, sym := res.At(tt.pos)
		if (sym != nil) != tt.want {
			t.Errorf("At(%s) = %v, want found=%v", tt.pos, id, tt.want)
			continue
		}
		if sym != nil && sym.Name != "value" {
			t.Errorf("At(%s) = %s", tt.pos, sym.Name)
		}
	}
}

func TestResolveBlockScope(t *testing.T) {
	res := Resolve(mustParse(t, "n = 1\nf = () => {\n  n = 5\n  n\n}\nn"))
	var outer, inner *Symbol
	for _, sym := range res.Symbols {
		if sym.Name != "n" {
			continue
		}
		if sym.Decl.SpanVal.Start.Line == 0 {
			outer = sym
		} else {
			inner = sym
		}
	}
	if outer == nil || inner == nil {
		t.Fatalf("symbols = %+v", res.Symbols)
	}
	if len(outer.Uses) != 1 || outer.Uses[0].SpanVal.Start.Line != 5 {
		t.Errorf("outer n uses = %+v", outer.Uses)
	}
	if len(inner.Uses) != 1 || inner.Uses[0].SpanVal.Start.Line != 3 {
		t.Errorf("inner n uses = %+v", inner.Uses)
	}
}
