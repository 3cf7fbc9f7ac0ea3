// Package runtime is the CORE of the language: value representation, the
// hash table, string interning, the bytecode chunk, the single-pass Pratt
// compiler and the stack-based virtual machine that runs its output. They
// live in one package, the way the teacher keeps compiler, vm, value and
// errors together in `runtime` — splitting Value/Chunk from the compiler and
// VM would force an import cycle, since both sides of the compile/run split
// share the same object graph and GC.
package runtime

// ValueKind discriminates the tagged union that every Ember value is.
type ValueKind int

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
	ValObject
)

// Value is Ember's tagged value: Nil, Bool, Number (float64) or Object (a
// reference into the GC heap). Values are copied by value; only the Object
// variant carries a reference into GC-owned memory.
type Value struct {
	Kind    ValueKind
	number  float64
	boolean bool
	obj     Object
}

func NilValue() Value            { return Value{Kind: ValNil} }
func BoolValue(b bool) Value      { return Value{Kind: ValBool, boolean: b} }
func NumberValue(n float64) Value { return Value{Kind: ValNumber, number: n} }
func ObjectValue(o Object) Value  { return Value{Kind: ValObject, obj: o} }

func (v Value) IsNil() bool    { return v.Kind == ValNil }
func (v Value) IsBool() bool   { return v.Kind == ValBool }
func (v Value) IsNumber() bool { return v.Kind == ValNumber }
func (v Value) IsObject() bool { return v.Kind == ValObject }

func (v Value) AsBool() bool      { return v.boolean }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) AsObject() Object  { return v.obj }

// IsObjType reports whether v is an object of the given kind.
func (v Value) IsObjType(t ObjType) bool {
	return v.Kind == ValObject && v.obj != nil && v.obj.header().Type == t
}

func (v Value) IsString() bool      { return v.IsObjType(ObjStringType) }
func (v Value) IsFunction() bool    { return v.IsObjType(ObjFunctionType) }
func (v Value) IsClosure() bool     { return v.IsObjType(ObjClosureType) }
func (v Value) IsNative() bool      { return v.IsObjType(ObjNativeType) }
func (v Value) IsClass() bool       { return v.IsObjType(ObjClassType) }
func (v Value) IsInstance() bool    { return v.IsObjType(ObjInstanceType) }
func (v Value) IsBoundMethod() bool { return v.IsObjType(ObjBoundMethodType) }

func (v Value) AsString() *ObjString           { return v.obj.(*ObjString) }
func (v Value) AsFunction() *ObjFunction       { return v.obj.(*ObjFunction) }
func (v Value) AsClosure() *ObjClosure         { return v.obj.(*ObjClosure) }
func (v Value) AsNative() *ObjNative           { return v.obj.(*ObjNative) }
func (v Value) AsClass() *ObjClass             { return v.obj.(*ObjClass) }
func (v Value) AsInstance() *ObjInstance       { return v.obj.(*ObjInstance) }
func (v Value) AsBoundMethod() *ObjBoundMethod { return v.obj.(*ObjBoundMethod) }

// IsFalsey implements Ember truthiness: Nil and Bool(false) are falsy,
// everything else (including 0 and "") is truthy.
func IsFalsey(v Value) bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// ValuesEqual implements Ember's equality: same kind and same bits. Object
// equality is reference equality, except strings, where interning makes
// reference equality and content equality coincide.
func ValuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValNil:
		return true
	case ValBool:
		return a.boolean == b.boolean
	case ValNumber:
		return a.number == b.number // NaN != NaN falls out of this, per IEEE-754
	case ValObject:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders v for `print` and string concatenation contexts.
func (v Value) String() string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.number)
	case ValObject:
		return v.obj.String()
	default:
		return "<unknown value>"
	}
}
