package vm

import "strconv"

// Value is a tagged union of nil, a 64-bit integer, or a handle into a Pool.
//
// Values are small and passed by copy everywhere. A Value never owns heap
// storage; a handle Value is only meaningful relative to the pool generation
// that produced it.
//
// The zero Value is Nil.
type Value struct {
	tag  valueTag
	bits int64
}

type valueTag uint8

const (
	tagNil valueTag = iota
	tagInt
	tagHandle
)

// Handle identifies an object within one pool generation.
type Handle int

// Address is an index into an instruction stream.
type Address int

// Nil is the nil value.
var Nil = Value{}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromInt returns an integer Value.
func FromInt(n int64) Value {
	return Value{tag: tagInt, bits: n}
}

// FromHandle returns a Value referring to the pool object at h.
func FromHandle(h Handle) Value {
	return Value{tag: tagHandle, bits: int64(h)}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsNil returns true if v is nil.
func (v Value) IsNil() bool { return v.tag == tagNil }

// IsInt returns true if v is an integer.
func (v Value) IsInt() bool { return v.tag == tagInt }

// IsHandle returns true if v refers to a pool object.
func (v Value) IsHandle() bool { return v.tag == tagHandle }

// ---------------------------------------------------------------------------
// Projections
// ---------------------------------------------------------------------------

// AsInt returns the integer held by v, or a TypeMismatch error.
func (v Value) AsInt() (int64, error) {
	if v.tag != tagInt {
		return 0, typeMismatch("expected integer, got %s", v.kindName())
	}
	return v.bits, nil
}

// Handle returns the handle held by v. The second result is false if v is
// not a handle.
func (v Value) Handle() (Handle, bool) {
	if v.tag != tagHandle {
		return 0, false
	}
	return Handle(v.bits), true
}

func (v Value) kindName() string {
	switch v.tag {
	case tagInt:
		return "integer"
	case tagHandle:
		return "handle"
	default:
		return "nil"
	}
}

// String renders v without consulting a pool. Use Pool.Describe to render
// the object behind a handle.
func (v Value) String() string {
	switch v.tag {
	case tagInt:
		return strconv.FormatInt(v.bits, 10)
	case tagHandle:
		return "#" + strconv.FormatInt(v.bits, 10)
	default:
		return "Nil"
	}
}
