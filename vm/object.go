package vm

import "fmt"

// ---------------------------------------------------------------------------
// Object: heap-resident kinds stored in a Pool
// ---------------------------------------------------------------------------

// ObjectKind identifies the concrete type of a pool object.
type ObjectKind uint8

const (
	KindFunction ObjectKind = iota + 1
	KindContext
)

func (k ObjectKind) String() string {
	switch k {
	case KindFunction:
		return "Function"
	case KindContext:
		return "Context"
	default:
		return fmt.Sprintf("ObjectKind(%d)", k)
	}
}

// Object is implemented by every heap kind. The set is closed: *Function
// and *Context.
type Object interface {
	Kind() ObjectKind
	// refs calls fn with a pointer to every Value the object embeds that may
	// hold a handle. Frame program counters are plain addresses and are not
	// visited.
	refs(fn func(*Value))
}

// Function is a callable closure: an entry address, an arity, and the values
// captured when it was built. A Function is never mutated after allocation.
type Function struct {
	Entry     Address
	NumParams uint32
	Closure   []Value
}

// Kind implements Object.
func (f *Function) Kind() ObjectKind { return KindFunction }

func (f *Function) refs(fn func(*Value)) {
	for i := range f.Closure {
		if f.Closure[i].IsHandle() {
			fn(&f.Closure[i])
		}
	}
}

// Kind implements Object.
func (c *Context) Kind() ObjectKind { return KindContext }

func (c *Context) refs(fn func(*Value)) {
	for i := range c.stack {
		if c.stack[i].IsHandle() {
			fn(&c.stack[i])
		}
	}
}
