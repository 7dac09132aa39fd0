package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Pool: arena of heap objects addressed by Handle
// ---------------------------------------------------------------------------

// Pool owns every Function and Context of a machine. Objects are only ever
// appended; Compact is the single operation that discards or renumbers them,
// and it does so by producing a new generation rather than mutating the
// receiver.
type Pool struct {
	objects    []Object
	generation int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Len returns the number of objects in the pool.
func (p *Pool) Len() int {
	return len(p.objects)
}

// Generation returns how many compactions produced this pool.
func (p *Pool) Generation() int {
	return p.generation
}

// Allocate appends obj and returns a handle to it.
func (p *Pool) Allocate(obj Object) Value {
	h := Handle(len(p.objects))
	p.objects = append(p.objects, obj)
	return FromHandle(h)
}

// snapshot returns a view of p that later appends to p cannot disturb.
func (p *Pool) snapshot() *Pool {
	n := len(p.objects)
	return &Pool{objects: p.objects[:n:n], generation: p.generation}
}

func (p *Pool) lookup(v Value) (Object, error) {
	h, ok := v.Handle()
	if !ok {
		return nil, typeMismatch("expected object, got %s", v.kindName())
	}
	if h < 0 || int(h) >= len(p.objects) {
		return nil, newError(InvalidHandle, "handle %d outside pool of %d", h, len(p.objects))
	}
	return p.objects[h], nil
}

// Object returns the object v refers to.
func (p *Pool) Object(v Value) (Object, error) {
	return p.lookup(v)
}

// Function resolves v to a Function.
func (p *Pool) Function(v Value) (*Function, error) {
	obj, err := p.lookup(v)
	if err != nil {
		return nil, err
	}
	fn, ok := obj.(*Function)
	if !ok {
		return nil, typeMismatch("expected Function, got %s", obj.Kind())
	}
	return fn, nil
}

// Context resolves v to a Context.
func (p *Pool) Context(v Value) (*Context, error) {
	obj, err := p.lookup(v)
	if err != nil {
		return nil, err
	}
	ctx, ok := obj.(*Context)
	if !ok {
		return nil, typeMismatch("expected Context, got %s", obj.Kind())
	}
	return ctx, nil
}

// PoolStats counts pool objects by kind.
type PoolStats struct {
	Functions int
	Contexts  int
}

// Stats returns per-kind object counts.
func (p *Pool) Stats() PoolStats {
	var s PoolStats
	for _, obj := range p.objects {
		switch obj.Kind() {
		case KindFunction:
			s.Functions++
		case KindContext:
			s.Contexts++
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// Compaction
// ---------------------------------------------------------------------------

// Updater carries the old-to-new handle mapping produced by Compact. Every
// Value held outside the pool across a compaction must be passed through it
// before it is used against the new pool.
type Updater struct {
	mapping   map[Handle]Handle
	reclaimed int
}

// Update rewrites *v in place if it is a handle.
func (u *Updater) Update(v *Value) {
	*v = u.Remap(*v)
}

// Remap returns v translated into the new generation. Remapping a handle
// that did not survive is a contract violation and panics.
func (u *Updater) Remap(v Value) Value {
	h, ok := v.Handle()
	if !ok {
		return v
	}
	nh, ok := u.mapping[h]
	if !ok {
		panic(fmt.Sprintf("vm: handle %d did not survive compaction", h))
	}
	return FromHandle(nh)
}

// Live returns the number of objects that survived.
func (u *Updater) Live() int {
	return len(u.mapping)
}

// Reclaimed returns the number of objects discarded.
func (u *Updater) Reclaimed() int {
	return u.reclaimed
}

// Compact copies every object reachable from roots into a new pool, in
// original allocation order, and rewrites their internal handles. The
// receiver is left as it was. Values outside the pool must be remapped
// through the returned Updater; any Value that was neither a root nor
// remapped must not be used against the new pool.
func (p *Pool) Compact(roots ...Value) (*Pool, *Updater) {
	// Mark
	var queue []Handle
	for _, v := range roots {
		if h, ok := v.Handle(); ok {
			queue = append(queue, h)
		}
	}
	marked := make([]bool, len(p.objects))
	for len(queue) > 0 {
		h := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if marked[h] {
			continue
		}
		marked[h] = true
		p.objects[h].refs(func(v *Value) {
			ref, _ := v.Handle()
			if !marked[ref] {
				queue = append(queue, ref)
			}
		})
	}

	// Compact
	mapping := make(map[Handle]Handle)
	next := &Pool{generation: p.generation + 1}
	for i, obj := range p.objects {
		if marked[i] {
			mapping[Handle(i)] = Handle(len(next.objects))
			next.objects = append(next.objects, clone(obj))
		}
	}

	// Fixup
	u := &Updater{mapping: mapping, reclaimed: len(p.objects) - len(next.objects)}
	for _, obj := range next.objects {
		obj.refs(u.Update)
	}
	return next, u
}

// clone copies the handle-bearing parts of obj so fixup never writes through
// to the previous generation.
func clone(obj Object) Object {
	switch o := obj.(type) {
	case *Function:
		return &Function{
			Entry:     o.Entry,
			NumParams: o.NumParams,
			Closure:   append([]Value(nil), o.Closure...),
		}
	case *Context:
		return &Context{
			stack:  append([]Value(nil), o.stack...),
			frames: append([]Frame(nil), o.frames...),
		}
	}
	panic(fmt.Sprintf("vm: unknown object kind %T", obj))
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// Describe renders v, following handles into the pool. Output does not
// depend on handle numbering, so a value renders the same before and after
// a compaction that preserves it.
func (p *Pool) Describe(v Value) string {
	var sb strings.Builder
	p.describe(&sb, v, make(map[Handle]bool))
	return sb.String()
}

func (p *Pool) describe(sb *strings.Builder, v Value, path map[Handle]bool) {
	h, ok := v.Handle()
	if !ok {
		sb.WriteString(v.String())
		return
	}
	if h < 0 || int(h) >= len(p.objects) {
		fmt.Fprintf(sb, "<invalid %s>", v)
		return
	}
	if path[h] {
		sb.WriteString("<cycle>")
		return
	}
	path[h] = true
	defer delete(path, h)

	switch o := p.objects[h].(type) {
	case *Function:
		fmt.Fprintf(sb, "Function{entry: %d, params: %d, closure: ", o.Entry, o.NumParams)
		p.describeList(sb, o.Closure, path)
		sb.WriteString("}")
	case *Context:
		fmt.Fprintf(sb, "Context{frames: %d, stack: ", len(o.frames))
		p.describeList(sb, o.stack, path)
		sb.WriteString("}")
	}
}

func (p *Pool) describeList(sb *strings.Builder, values []Value, path map[Handle]bool) {
	sb.WriteString("[")
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		p.describe(sb, v, path)
	}
	sb.WriteString("]")
}
