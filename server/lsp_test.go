package server

import (
	"context"
	"strings"
	"testing"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "adder(1)", protocol.Position{Line: 0, Character: 3}, "add"},
		{"at end", "add", protocol.Position{Line: 0, Character: 3}, "add"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "x = 1\ny = 2\nsec", protocol.Position{Line: 2, Character: 3}, "sec"},
		{"after operator", "x + ab", protocol.Position{Line: 0, Character: 6}, "ab"},
		{"after paren", "f(ab", protocol.Position{Line: 0, Character: 4}, "ab"},
		{"with underscore", "my_val", protocol.Position{Line: 0, Character: 6}, "my_val"},
		{"past end of line", "ab", protocol.Position{Line: 0, Character: 40}, "ab"},
		{"line out of range", "ab", protocol.Position{Line: 3, Character: 0}, ""},
		{"non ascii", "é = 1\néa", protocol.Position{Line: 1, Character: 2}, "éa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle of word", "adder(1)", protocol.Position{Line: 0, Character: 2}, "adder"},
		{"start of word", "adder", protocol.Position{Line: 0, Character: 0}, "adder"},
		{"end of word", "adder", protocol.Position{Line: 0, Character: 5}, "adder"},
		{"on space", "a + b", protocol.Position{Line: 0, Character: 2}, ""},
		{"second line", "x = 1\nfoo + x", protocol.Position{Line: 1, Character: 1}, "foo"},
		{"line out of range", "x", protocol.Position{Line: 9, Character: 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		msgs  []string
		start protocol.Position
		end   protocol.Position
	}{
		{name: "valid", text: "x = 1\nx + 2"},
		{name: "blank", text: "\n  \n"},
		{
			name:  "undefined name",
			text:  "x = 1\nx + yy",
			msgs:  []string{"undefined name 'yy'"},
			start: protocol.Position{Line: 1, Character: 4},
			end:   protocol.Position{Line: 1, Character: 6},
		},
		{
			name:  "lexical error",
			text:  "x = $",
			msgs:  []string{"unexpected token '$'"},
			start: protocol.Position{Line: 0, Character: 4},
			end:   protocol.Position{Line: 0, Character: 5},
		},
		{
			name:  "syntax error",
			text:  "f = (x) => x\nf(1",
			msgs:  []string{"expected ')', found end of input"},
			start: protocol.Position{Line: 1, Character: 3},
			end:   protocol.Position{Line: 1, Character: 3},
		},
		{
			name:  "every undefined name",
			text:  "a + b\nc",
			msgs:  []string{"undefined name 'a'", "undefined name 'b'", "undefined name 'c'"},
			start: protocol.Position{Line: 0, Character: 0},
			end:   protocol.Position{Line: 0, Character: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := diagnostics(tt.text)
			if diags == nil {
				t.Fatal("diagnostics returned nil, want a non-nil slice")
			}
			if len(diags) != len(tt.msgs) {
				t.Fatalf("got %d diagnostics %+v, want %d", len(diags), diags, len(tt.msgs))
			}
			for i, d := range diags {
				if d.Message != tt.msgs[i] {
					t.Errorf("diagnostic %d = %q, want %q", i, d.Message, tt.msgs[i])
				}
				if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
					t.Errorf("diagnostic %d severity = %v", i, d.Severity)
				}
				if d.Source == nil || *d.Source != lspName {
					t.Errorf("diagnostic %d source = %v", i, d.Source)
				}
			}
			if len(diags) > 0 {
				r := diags[0].Range
				if r.Start != tt.start || r.End != tt.end {
					t.Errorf("range = %+v, want %+v-%+v", r, tt.start, tt.end)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Navigation and completion
// ---------------------------------------------------------------------------

const navDoc = "adder = (x) => (y) => x + y\nadd2 = adder(2)\nadd2(1) + add2(5)"

func TestComplete(t *testing.T) {
	items := complete(navDoc, "add")
	if len(items) != 2 {
		t.Fatalf("got %d items %+v, want 2", len(items), items)
	}
	if items[0].Label != "add2" || items[1].Label != "adder" {
		t.Errorf("labels = %s, %s", items[0].Label, items[1].Label)
	}
	if *items[1].Kind != protocol.CompletionItemKindFunction || *items[1].Detail != "function of 1" {
		t.Errorf("adder item = kind %v detail %q", *items[1].Kind, *items[1].Detail)
	}
	if *items[0].Kind != protocol.CompletionItemKindVariable {
		t.Errorf("add2 kind = %v", *items[0].Kind)
	}

	if items := complete(navDoc, "adder"); len(items) != 0 {
		t.Errorf("exact match completed: %+v", items)
	}
	if items := complete("x = $", "x"); items != nil {
		t.Errorf("completion on unlexable text = %+v", items)
	}
}

func TestDefinition(t *testing.T) {
	uri := protocol.DocumentUri("file:///nav.clasp")

	// add2 in its second call on line 2
	locs := definition(uri, navDoc, protocol.Position{Line: 2, Character: 12})
	if len(locs) != 1 {
		t.Fatalf("locations = %+v", locs)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 1, Character: 0},
		End:   protocol.Position{Line: 1, Character: 4},
	}
	if locs[0].URI != uri || locs[0].Range != want {
		t.Errorf("definition = %+v, want %+v", locs[0], want)
	}

	// x inside the inner lambda resolves to the outer parameter
	locs = definition(uri, navDoc, protocol.Position{Line: 0, Character: 22})
	if len(locs) != 1 || locs[0].Range.Start != (protocol.Position{Line: 0, Character: 9}) {
		t.Errorf("definition of x = %+v", locs)
	}

	if locs := definition(uri, navDoc, protocol.Position{Line: 0, Character: 6}); locs != nil {
		t.Errorf("definition on '=' = %+v", locs)
	}
}

func TestReferences(t *testing.T) {
	uri := protocol.DocumentUri("file:///nav.clasp")
	pos := protocol.Position{Line: 1, Character: 1}

	locs := references(uri, navDoc, pos, true)
	if len(locs) != 3 {
		t.Fatalf("got %d references, want 3: %+v", len(locs), locs)
	}
	if locs[0].Range.Start.Line != 1 {
		t.Errorf("declaration first: %+v", locs[0])
	}

	locs = references(uri, navDoc, pos, false)
	if len(locs) != 2 {
		t.Fatalf("got %d references without declaration, want 2", len(locs))
	}
	for _, loc := range locs {
		if loc.Range.Start.Line != 2 {
			t.Errorf("use at %+v, want line 2", loc.Range.Start)
		}
	}
}

// ---------------------------------------------------------------------------
// Hover and evaluation
// ---------------------------------------------------------------------------

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	if h == nil {
		t.Fatal("hover = nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("contents = %T", h.Contents)
	}
	return mc.Value
}

func TestHoverShowsResult(t *testing.T) {
	s := NewLSP("test")
	defer s.Close()

	h := s.hover(context.Background(), navDoc, protocol.Position{Line: 0, Character: 2})
	text := hoverText(t, h)
	for _, want := range []string{"**adder** binding (function of 1)", "line 1", "Program result: `10`"} {
		if !strings.Contains(text, want) {
			t.Errorf("hover %q missing %q", text, want)
		}
	}
	if h.Range == nil || h.Range.End.Character != 5 {
		t.Errorf("hover range = %+v", h.Range)
	}
}

func TestHoverParameter(t *testing.T) {
	s := NewLSP("test")
	defer s.Close()

	text := hoverText(t, s.hover(context.Background(), "f = (n) => n + n\nf(4)", protocol.Position{Line: 0, Character: 11}))
	if !strings.Contains(text, "**n** parameter") || !strings.Contains(text, "`8`") {
		t.Errorf("hover = %q", text)
	}
}

func TestHoverRuntimeError(t *testing.T) {
	s := NewLSP("test")
	defer s.Close()

	text := hoverText(t, s.hover(context.Background(), "f = (x) => x + 1\nf(f)", protocol.Position{Line: 1, Character: 0}))
	if !strings.Contains(text, "Program failed") || !strings.Contains(text, "type mismatch") {
		t.Errorf("hover = %q", text)
	}
}

func TestHoverUndefined(t *testing.T) {
	s := NewLSP("test")
	defer s.Close()

	text := hoverText(t, s.hover(context.Background(), "zz + 1", protocol.Position{Line: 0, Character: 1}))
	if text != "**zz** is not defined here" {
		t.Errorf("hover = %q", text)
	}
	if h := s.hover(context.Background(), "1 + 2", protocol.Position{Line: 0, Character: 0}); h != nil {
		t.Errorf("hover on literal = %+v", h)
	}
}

func TestHoverTimeout(t *testing.T) {
	s := NewLSP("test")
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	text := hoverText(t, s.hover(ctx, "loop = () => loop()\nloop()", protocol.Position{Line: 1, Character: 0}))
	if !strings.Contains(text, "did not finish") {
		t.Errorf("hover = %q", text)
	}
}
