package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Position is a location in source text. Line and Column are 0-based and
// Column counts characters, not bytes.
type Position struct {
	Offset int // byte offset
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Error is a lexical, syntax or compile error tied to a source range.
type Error struct {
	Pos Position
	End Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s", e.Msg, e.Pos)
}

// ErrorList collects every error found in one pass over the source.
type ErrorList []*Error

// Add appends an error covering span.
func (l *ErrorList) Add(span Span, format string, args ...any) {
	*l = append(*l, &Error{Pos: span.Start, End: span.End, Msg: fmt.Sprintf(format, args...)})
}

// Sort orders the list by source position.
func (l ErrorList) Sort() {
	sort.SliceStable(l, func(i, j int) bool { return l[i].Pos.Offset < l[j].Pos.Offset })
}

// Error joins the messages with newlines.
func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns l as an error, or nil if it is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
