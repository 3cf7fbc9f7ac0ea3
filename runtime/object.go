package runtime

import (
	"fmt"
	"strconv"
)

// ObjType discriminates the heap object variants.
type ObjType int

const (
	ObjStringType ObjType = iota
	ObjFunctionType
	ObjClosureType
	ObjUpvalueType
	ObjNativeType
	ObjClassType
	ObjInstanceType
	ObjBoundMethodType
)

// ObjHeader is the common prefix every heap object carries: a discriminator,
// the collector's mark bit, and the "next" link threading every live object
// into the VM's allocation list. In the source this system is drawn from,
// every object struct begins with this header and downcasts are tag checks;
// here that becomes an embedded struct and a type assertion on the Object
// interface.
type ObjHeader struct {
	Type   ObjType
	Marked bool
	Next   Object
	// size is the byte count allocate() charged vm.bytesAllocated when this
	// object was created, so sweep can give it back when the object dies.
	size int
}

func (h *ObjHeader) header() *ObjHeader { return h }

// Object is any heap-allocated value. Every concrete object type embeds
// ObjHeader, which supplies this method.
type Object interface {
	header() *ObjHeader
	String() string
}

// ObjString is an immutable byte sequence plus its precomputed FNV-1a hash.
// All strings are interned: two live strings with equal content never both
// appear in the intern pool, so reference equality implies content equality.
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

func (s *ObjString) String() string { return s.Chars }

// hashString computes the FNV-1a 32-bit hash spec.md names as the string
// hash function.
func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// ObjFunction is a compiled function body: arity, how many variables it
// captures as upvalues, an optional name (nil for the top-level script), and
// its chunk.
type ObjFunction struct {
	ObjHeader
	Arity        int
	UpvalueCount int
	Name         *ObjString
	Chunk        *Chunk
}

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// ObjUpvalue stands in for a variable captured by a closure. While open, it
// points at a live slot on the VM's value stack; once closed, it owns the
// value inline and no longer participates in the open-upvalue list.
type ObjUpvalue struct {
	ObjHeader
	// Location indexes into the VM stack while open. Closed becomes valid,
	// and Location stops being read, once the upvalue is closed.
	Location int
	Closed   Value
	IsClosed bool
	// NextOpen threads the VM's open-upvalue list, sorted by Location
	// descending (topmost stack slot first) so closeUpvalues can stop at
	// the first entry below the watermark.
	NextOpen *ObjUpvalue
}

func (u *ObjUpvalue) String() string { return "<upvalue>" }

// ObjClosure pairs a Function with the upvalues it captured at creation.
type ObjClosure struct {
	ObjHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) String() string { return c.Function.String() }

// NativeFn is a host-provided callable: given the arguments (argCount of
// them), it returns a Value or an error message for a runtime error.
type NativeFn func(vm *VM, args []Value) (Value, error)

// ObjNative wraps a host function as a callable Ember value.
type ObjNative struct {
	ObjHeader
	Name string
	Fn   NativeFn
}

func (n *ObjNative) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// ObjClass is a name plus its method table (String -> Closure).
type ObjClass struct {
	ObjHeader
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) String() string { return c.Name.Chars }

// ObjInstance is a class reference plus its fields table (String -> Value).
type ObjInstance struct {
	ObjHeader
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) String() string { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// ObjBoundMethod pairs a receiver with the closure looked up on its class,
// so a method reference taken off an instance still knows who `this` is.
type ObjBoundMethod struct {
	ObjHeader
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) String() string { return b.Method.String() }

// formatNumber renders a float64 the way Ember's `print` does: 6 significant
// digits, matching the source system's printf("%g", ...).
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', 6, 64)
}

func objectKind(o Object) string {
	switch o.header().Type {
	case ObjStringType:
		return "string"
	case ObjFunctionType:
		return "function"
	case ObjClosureType:
		return "function"
	case ObjUpvalueType:
		return "upvalue"
	case ObjNativeType:
		return "native function"
	case ObjClassType:
		return "class"
	case ObjInstanceType:
		return "instance"
	case ObjBoundMethodType:
		return "bound method"
	default:
		return "object"
	}
}

// TypeName returns the name the `type` native (natives.typeOf) reports for v.
func TypeName(v Value) string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValObject:
		return objectKind(v.obj)
	default:
		return "unknown"
	}
}
