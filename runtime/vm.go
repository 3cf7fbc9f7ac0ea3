package runtime

import (
	"fmt"
	"io"

	"github.com/emberlang/ember/config"
)

// frame is one call's activation record: the closure it is executing, the
// instruction pointer into that closure's chunk, and the stack index its
// local slot 0 sits at.
type frame struct {
	closure *ObjClosure
	ip      int
	base    int // stack index of this frame's slot 0
}

// InterpretResult reports how Interpret finished.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// VM is a single-threaded bytecode interpreter plus the tracing collector
// that owns every heap object it allocates. Nothing here is safe to share
// across goroutines, matching the single-threaded model described in the
// concurrency section: one VM, one stack, one story.
type VM struct {
	stack  []Value
	sp     int
	frames []frame

	openUpvalues *ObjUpvalue

	globals *Table
	strings *Table // the string intern pool

	// objects threads every live heap allocation, newest first; sweep walks
	// it to free the unmarked and keep the rest.
	objects        Object
	bytesAllocated int
	nextGC         int
	grayStack      []Object

	// currentCompiler roots whatever ObjFunction the compiler is presently
	// building, so a GC triggered mid-compile doesn't collect it out from
	// under the parser.
	currentCompiler *compilerState

	initString *ObjString

	cfg *config.Config
	out io.Writer
	err io.Writer

	// lastError carries a *RuntimeError out of callValue/invoke/
	// invokeFromClass when they return false, since bool is the signal
	// run()'s switch reacts to while the message still needs to propagate
	// up as a real error value.
	lastError *RuntimeError

	// compileErrors and lastRuntimeError hold the detail behind Interpret's
	// last non-OK result, for the caller to format at the edge.
	compileErrors    []*CompileError
	lastRuntimeError *RuntimeError
}

const (
	framesMax   = 64
	stackMaxDef = framesMax * 256
)

// New returns a VM ready to Interpret source. cfg may be nil, in which case
// config.Defaults() governs stack/heap sizing and GC verbosity.
func New(cfg *config.Config, out, errOut io.Writer) *VM {
	if cfg == nil {
		cfg = config.Defaults()
	}
	vm := &VM{
		globals: NewTable(),
		strings: NewTable(),
		cfg:     cfg,
		out:     out,
		err:     errOut,
		nextGC:  1024 * 1024,
	}
	vm.stack = make([]Value, 0, stackSize(cfg))
	vm.frames = make([]frame, 0, frameLimit(cfg))
	vm.initString = vm.internString("init")
	return vm
}

func stackSize(cfg *config.Config) int {
	if cfg.StackMax > 0 {
		return cfg.StackMax
	}
	return stackMaxDef
}

func frameLimit(cfg *config.Config) int {
	if cfg.FrameMax > 0 {
		return cfg.FrameMax
	}
	return framesMax
}

// --- stack ---

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Value{} // clear so a dead object isn't pinned by the backing array
	vm.stack = vm.stack[:vm.sp]
	return v
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
	vm.sp = 0
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

// --- entry point ---

// Interpret compiles and runs source to completion, writing `print`
// statement output to vm's configured writer. Compile and runtime errors
// are not formatted here: InterpretResult alone tells the caller which
// happened, and CompileErrors/LastRuntimeError carry the detail for
// whoever sits at the edge (cmd/ember) to format and print.
func (vm *VM) Interpret(source string) InterpretResult {
	fn, errs := Compile(vm, source)
	if fn == nil {
		vm.compileErrors = errs
		return InterpretCompileError
	}

	vm.push(ObjectValue(fn))
	closure := vm.newClosure(fn)
	vm.pop()
	vm.push(ObjectValue(closure))
	vm.callValue(ObjectValue(closure), 0)

	if err := vm.run(); err != nil {
		vm.lastRuntimeError = err
		vm.resetStack()
		return InterpretRuntimeError
	}
	return InterpretOK
}

// CompileErrors returns the errors from the most recent Interpret call that
// returned InterpretCompileError.
func (vm *VM) CompileErrors() []*CompileError { return vm.compileErrors }

// LastRuntimeError returns the error from the most recent Interpret call
// that returned InterpretRuntimeError.
func (vm *VM) LastRuntimeError() *RuntimeError { return vm.lastRuntimeError }

func (vm *VM) currentFrame() *frame { return &vm.frames[len(vm.frames)-1] }

func (vm *VM) readByte(fr *frame) byte {
	b := fr.closure.Function.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readShort(fr *frame) uint16 {
	hi := fr.closure.Function.Chunk.Code[fr.ip]
	lo := fr.closure.Function.Chunk.Code[fr.ip+1]
	fr.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant(fr *frame) Value {
	return fr.closure.Function.Chunk.Constants[vm.readByte(fr)]
}

func (vm *VM) readString(fr *frame) *ObjString {
	return vm.readConstant(fr).AsString()
}

// run is the dispatch loop: it decodes and executes instructions from the
// top call frame until a OP_RETURN unwinds the last one or a runtime error
// aborts execution.
func (vm *VM) run() *RuntimeError {
	fr := vm.currentFrame()

	for {
		op := OpCode(vm.readByte(fr))
		switch op {
		case OpConstant:
			vm.push(vm.readConstant(fr))

		case OpNil:
			vm.push(NilValue())
		case OpTrue:
			vm.push(BoolValue(true))
		case OpFalse:
			vm.push(BoolValue(false))
		case OpPop:
			vm.pop()

		case OpGetLocal:
			slot := vm.readByte(fr)
			vm.push(vm.stack[fr.base+int(slot)])
		case OpSetLocal:
			slot := vm.readByte(fr)
			vm.stack[fr.base+int(slot)] = vm.peek(0)

		case OpGetGlobal:
			name := vm.readString(fr)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case OpDefineGlobal:
			name := vm.readString(fr)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case OpSetGlobal:
			name := vm.readString(fr)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case OpGetUpvalue:
			slot := vm.readByte(fr)
			uv := fr.closure.Upvalues[slot]
			vm.push(vm.upvalueValue(uv))
		case OpSetUpvalue:
			slot := vm.readByte(fr)
			uv := fr.closure.Upvalues[slot]
			vm.setUpvalueValue(uv, vm.peek(0))

		case OpGetProperty:
			if !vm.peek(0).IsInstance() {
				return vm.runtimeError("Only instances have properties.")
			}
			inst := vm.peek(0).AsInstance()
			name := vm.readString(fr)
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return vm.runtimeError("Undefined property '%s'.", name.Chars)
			}

		case OpSetProperty:
			if !vm.peek(1).IsInstance() {
				return vm.runtimeError("Only instances have fields.")
			}
			inst := vm.peek(1).AsInstance()
			name := vm.readString(fr)
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case OpGetSuper:
			name := vm.readString(fr)
			superclass := vm.pop().AsClass()
			if !vm.bindMethod(superclass, name) {
				return vm.runtimeError("Undefined property '%s'.", name.Chars)
			}

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolValue(ValuesEqual(a, b)))
		case OpGreater:
			if err := vm.binaryCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case OpLess:
			if err := vm.binaryCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case OpSubtract:
			if err := vm.binaryArith(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case OpMultiply:
			if err := vm.binaryArith(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case OpDivide:
			if err := vm.binaryArith(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case OpNot:
			vm.push(BoolValue(IsFalsey(vm.pop())))
		case OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(NumberValue(-vm.pop().AsNumber()))

		case OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case OpJump:
			offset := vm.readShort(fr)
			fr.ip += int(offset)
		case OpJumpIfFalse:
			offset := vm.readShort(fr)
			if IsFalsey(vm.peek(0)) {
				fr.ip += int(offset)
			}
		case OpLoop:
			offset := vm.readShort(fr)
			fr.ip -= int(offset)

		case OpCall:
			argCount := int(vm.readByte(fr))
			if !vm.callValue(vm.peek(argCount), argCount) {
				return vm.lastError
			}
			fr = vm.currentFrame()

		case OpInvoke:
			method := vm.readString(fr)
			argCount := int(vm.readByte(fr))
			if !vm.invoke(method, argCount) {
				return vm.lastError
			}
			fr = vm.currentFrame()

		case OpSuperInvoke:
			method := vm.readString(fr)
			argCount := int(vm.readByte(fr))
			superclass := vm.pop().AsClass()
			if !vm.invokeFromClass(superclass, method, argCount) {
				return vm.lastError
			}
			fr = vm.currentFrame()

		case OpClosure:
			fn := vm.readConstant(fr).AsFunction()
			closure := vm.newClosure(fn)
			vm.push(ObjectValue(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(fr)
				index := vm.readByte(fr)
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(fr.base + int(index))
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}

		case OpCloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(fr.base)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop()
				return nil
			}
			vm.stack = vm.stack[:fr.base]
			vm.sp = fr.base
			vm.push(result)
			fr = vm.currentFrame()

		case OpClass:
			name := vm.readString(fr)
			vm.push(ObjectValue(vm.newClass(name)))

		case OpInherit:
			superVal := vm.peek(1)
			if !superVal.IsClass() {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).AsClass()
			AddAll(superVal.AsClass().Methods, subclass.Methods)
			vm.pop() // subclass

		case OpMethod:
			name := vm.readString(fr)
			vm.defineMethod(name)

		default:
			return vm.runtimeError("Unknown opcode.")
		}
	}
}

// lastError stashes the error from a call-handling helper that needs to
// signal failure through a bool return (to match callValue's use both as
// a normal call and as a call the outer run() loop must react to).
//
// It is read immediately after callValue/invoke/invokeFromClass return
// false and is never left stale across instructions.

func (vm *VM) binaryArith(f func(a, b float64) float64) *RuntimeError {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(NumberValue(f(a, b)))
	return nil
}

func (vm *VM) binaryCompare(f func(a, b float64) bool) *RuntimeError {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(BoolValue(f(a, b)))
	return nil
}

func (vm *VM) add() *RuntimeError {
	switch {
	case vm.peek(0).IsString() && vm.peek(1).IsString():
		b := vm.peek(0).AsString()
		a := vm.peek(1).AsString()
		result := vm.internString(a.Chars + b.Chars)
		vm.pop()
		vm.pop()
		vm.push(ObjectValue(result))
	case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
		b := vm.pop().AsNumber()
		a := vm.pop().AsNumber()
		vm.push(NumberValue(a + b))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

// --- calls ---

func (vm *VM) callValue(callee Value, argCount int) bool {
	if !callee.IsObject() {
		vm.lastError = vm.runtimeError("Can only call functions and classes.")
		return false
	}
	switch {
	case callee.IsClosure():
		return vm.call(callee.AsClosure(), argCount)
	case callee.IsNative():
		native := callee.AsNative()
		args := vm.stack[vm.sp-argCount:]
		result, err := native.Fn(vm, args)
		if err != nil {
			vm.lastError = vm.runtimeError("%s", err.Error())
			return false
		}
		vm.stack = vm.stack[:vm.sp-argCount-1]
		vm.sp -= argCount + 1
		vm.push(result)
		return true
	case callee.IsClass():
		class := callee.AsClass()
		inst := vm.newInstance(class)
		vm.stack[vm.sp-argCount-1] = ObjectValue(inst)
		if initializer, ok := class.Methods.Get(vm.initString); ok {
			return vm.call(initializer.AsClosure(), argCount)
		} else if argCount != 0 {
			vm.lastError = vm.runtimeError("Expected 0 arguments but got %d.", argCount)
			return false
		}
		return true
	case callee.IsBoundMethod():
		bound := callee.AsBoundMethod()
		vm.stack[vm.sp-argCount-1] = bound.Receiver
		return vm.call(bound.Method, argCount)
	default:
		vm.lastError = vm.runtimeError("Can only call functions and classes.")
		return false
	}
}

func (vm *VM) call(closure *ObjClosure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.lastError = vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
		return false
	}
	if len(vm.frames) >= frameLimit(vm.cfg) {
		vm.lastError = vm.runtimeError("Stack overflow.")
		return false
	}
	vm.frames = append(vm.frames, frame{closure: closure, ip: 0, base: vm.sp - argCount - 1})
	return true
}

func (vm *VM) invoke(name *ObjString, argCount int) bool {
	receiver := vm.peek(argCount)
	if !receiver.IsInstance() {
		vm.lastError = vm.runtimeError("Only instances have methods.")
		return false
	}
	inst := receiver.AsInstance()
	if v, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.sp-argCount-1] = v
		return vm.callValue(v, argCount)
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *ObjClass, name *ObjString, argCount int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.lastError = vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	return vm.call(method.AsClosure(), argCount)
}

func (vm *VM) bindMethod(class *ObjClass, name *ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return false
	}
	bound := vm.newBoundMethod(vm.peek(0), method.AsClosure())
	vm.pop()
	vm.push(ObjectValue(bound))
	return true
}

func (vm *VM) defineMethod(name *ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).AsClass()
	class.Methods.Set(name, method)
	vm.pop()
}

// --- upvalues ---

// captureUpvalue returns the open upvalue for stack slot, reusing one
// already in the open list if one closes over the same slot, otherwise
// allocating and splicing a new one in, keeping the list sorted by
// descending slot so closeUpvalues can stop at the first entry below the
// watermark it is closing.
func (vm *VM) captureUpvalue(slot int) *ObjUpvalue {
	var prev *ObjUpvalue
	up := vm.openUpvalues
	for up != nil && up.Location > slot {
		prev = up
		up = up.NextOpen
	}
	if up != nil && up.Location == slot {
		return up
	}

	created := vm.newUpvalue(slot)
	created.NextOpen = up
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= last {
		up := vm.openUpvalues
		up.Closed = vm.stack[up.Location]
		up.IsClosed = true
		vm.openUpvalues = up.NextOpen
	}
}

func (vm *VM) upvalueValue(uv *ObjUpvalue) Value {
	if uv.IsClosed {
		return uv.Closed
	}
	return vm.stack[uv.Location]
}

func (vm *VM) setUpvalueValue(uv *ObjUpvalue, v Value) {
	if uv.IsClosed {
		uv.Closed = v
		return
	}
	vm.stack[uv.Location] = v
}

// --- errors ---

func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	re := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		line := fn.Chunk.Lines[fr.ip-1]
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		re.Stack = append(re.Stack, StackFrame{Function: name, Line: line})
	}
	vm.resetStack()
	return re
}

func (vm *VM) reportCompileError(e *CompileError) {
	// Collected into Compile's return value; nothing to do at report time
	// beyond what errorAt already records. Kept as a hook so future
	// diagnostics (e.g. a language server) have somewhere to subscribe.
	_ = e
}

// --- allocation ---

const objStringSize = 32
const objGenericSize = 48

// allocate accounts size and runs the collector, if due, before o is linked
// into vm.objects -- the same order clox's reallocate/allocateObject split
// keeps, so a collection this call provokes can never see (and sweep) the
// very object being constructed, which isn't reachable from any root yet.
func (vm *VM) allocate(o Object, t ObjType, size int) {
	vm.bytesAllocated += size
	if vm.cfg.StressGC || vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}

	h := o.header()
	h.Type = t
	h.Marked = false
	h.Next = vm.objects
	h.size = size
	vm.objects = o
}

// InternString exposes internString to other packages (natives, cmd/ember)
// that need to hand Ember-visible strings back from host code.
func (vm *VM) InternString(s string) *ObjString { return vm.internString(s) }

// internString returns the interned ObjString for s, allocating and
// registering a new one only if the pool doesn't already have it.
func (vm *VM) internString(s string) *ObjString {
	hash := hashString(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &ObjString{Chars: s, Hash: hash}
	vm.allocate(str, ObjStringType, objStringSize+len(s))

	vm.push(ObjectValue(str)) // anchor across the table's possible growth
	vm.strings.Set(str, NilValue())
	vm.pop()
	return str
}

func (vm *VM) newFunction() *ObjFunction {
	fn := &ObjFunction{Chunk: NewChunk()}
	vm.allocate(fn, ObjFunctionType, objGenericSize)
	return fn
}

func (vm *VM) newClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	vm.allocate(c, ObjClosureType, objGenericSize)
	return c
}

func (vm *VM) newUpvalue(slot int) *ObjUpvalue {
	uv := &ObjUpvalue{Location: slot}
	vm.allocate(uv, ObjUpvalueType, objGenericSize)
	return uv
}

func (vm *VM) newNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	vm.allocate(n, ObjNativeType, objGenericSize)
	return n
}

func (vm *VM) newClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name, Methods: NewTable()}
	vm.allocate(c, ObjClassType, objGenericSize)
	return c
}

func (vm *VM) newInstance(class *ObjClass) *ObjInstance {
	inst := &ObjInstance{Class: class, Fields: NewTable()}
	vm.allocate(inst, ObjInstanceType, objGenericSize)
	return inst
}

func (vm *VM) newBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	vm.allocate(b, ObjBoundMethodType, objGenericSize)
	return b
}

// DefineNative installs a native function as a global, used by the natives
// package to wire in `clock`, `type`, and the math library.
func (vm *VM) DefineNative(name string, fn NativeFn) {
	vm.push(ObjectValue(vm.internString(name)))
	vm.push(ObjectValue(vm.newNative(name, fn)))
	vm.globals.Set(vm.peek(1).AsString(), vm.peek(0))
	vm.pop()
	vm.pop()
}

// --- garbage collector ---

func (vm *VM) markValue(v Value) {
	if v.IsObject() {
		vm.markObject(v.obj)
	}
}

func (vm *VM) markObject(o Object) {
	if o == nil {
		return
	}
	h := o.header()
	if h.Marked {
		return
	}
	h.Marked = true
	vm.grayStack = append(vm.grayStack, o)
}

func (vm *VM) markTable(t *Table) { t.mark(vm) }

func (vm *VM) markRoots() {
	for i := 0; i < vm.sp; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := range vm.frames {
		vm.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		vm.markObject(uv)
	}
	vm.markTable(vm.globals)
	for c := vm.currentCompiler; c != nil; c = c.enclosing {
		vm.markObject(c.function)
	}
	vm.markObject(vm.initString)
}

func (vm *VM) blackenObject(o Object) {
	switch v := o.(type) {
	case *ObjString, *ObjNative:
		// no outgoing references
	case *ObjUpvalue:
		vm.markValue(v.Closed)
	case *ObjFunction:
		vm.markObject(v.Name)
		for _, c := range v.Chunk.Constants {
			vm.markValue(c)
		}
	case *ObjClosure:
		vm.markObject(v.Function)
		for _, uv := range v.Upvalues {
			vm.markObject(uv)
		}
	case *ObjClass:
		vm.markObject(v.Name)
		vm.markTable(v.Methods)
	case *ObjInstance:
		vm.markObject(v.Class)
		vm.markTable(v.Fields)
	case *ObjBoundMethod:
		vm.markValue(v.Receiver)
		vm.markObject(v.Method)
	}
}

func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blackenObject(o)
	}
}

// sweep walks the allocation list, freeing everything still unmarked and
// clearing the mark bit on what survives, for the next cycle. Freeing an
// object gives back the bytes allocate() charged against it, so
// bytesAllocated tracks what's actually live.
func (vm *VM) sweep() {
	var prev Object
	obj := vm.objects
	for obj != nil {
		h := obj.header()
		if h.Marked {
			h.Marked = false
			prev = obj
			obj = h.Next
			continue
		}
		unreached := obj
		obj = h.Next
		if prev != nil {
			prev.header().Next = obj
		} else {
			vm.objects = obj
		}
		vm.bytesAllocated -= unreached.header().size
	}
}

// collectGarbage runs one full mark-sweep cycle: mark every root, trace
// until the gray stack is dry, sweep the string pool's dead weak
// references, sweep the object list, then grow the next trigger.
func (vm *VM) collectGarbage() {
	vm.markRoots()
	vm.traceReferences()
	vm.strings.removeWhite()
	vm.sweep()

	factor := vm.cfg.HeapGrowFactor
	if factor <= 0 {
		factor = 2
	}
	vm.nextGC = vm.bytesAllocated * factor

	if vm.cfg.VerboseGC {
		fmt.Fprintf(vm.err, "-- gc collected, next at %d bytes\n", vm.nextGC)
	}
}

// Free releases the VM's heap-tracking state. The objects themselves are
// ordinary Go values collected by the host runtime once unreachable; this
// only drops the VM's own references so nothing pins them past this call.
func (vm *VM) Free() {
	vm.objects = nil
	vm.grayStack = nil
	vm.strings = NewTable()
	vm.globals = NewTable()
}
