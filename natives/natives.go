// Package natives installs the host-provided globals Ember programs can
// call: `clock`, `type`, and a small math library, adapted from the
// teacher's time.go/fmaths.go bridges into the runtime.NativeFn shape the
// bytecode VM calls directly instead of the interpreter's variadic
// Function/BuiltinFunction types.
package natives

import (
	"fmt"
	"math"
	"time"

	"github.com/emberlang/ember/runtime"
)

// Install defines every native function as a global on vm.
func Install(vm *runtime.VM) {
	vm.DefineNative("clock", clock)
	vm.DefineNative("type", typeOf)

	for name, fn := range mathFuncs {
		vm.DefineNative(name, fn)
	}
}

func clock(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
	return runtime.NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
}

func typeOf(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
	if len(args) != 1 {
		return runtime.Value{}, argError("type", 1, len(args))
	}
	return runtime.ObjectValue(vm.InternString(runtime.TypeName(args[0]))), nil
}

var mathFuncs = map[string]runtime.NativeFn{
	"sqrt":  unaryMath("sqrt", math.Sqrt, nonNegative),
	"abs":   unaryMath("abs", math.Abs, nil),
	"floor": unaryMath("floor", math.Floor, nil),
	"ceil":  unaryMath("ceil", math.Ceil, nil),
	"sin":   unaryMath("sin", math.Sin, nil),
	"cos":   unaryMath("cos", math.Cos, nil),
	"log":   unaryMath("log", math.Log, positive),
	"exp":   unaryMath("exp", math.Exp, nil),
	"pow":   binaryMath("pow", math.Pow),
}

func nonNegative(x float64) error {
	if x < 0 {
		return fmt.Errorf("sqrt of negative number")
	}
	return nil
}

func positive(x float64) error {
	if x <= 0 {
		return fmt.Errorf("log of non-positive number")
	}
	return nil
}

// unaryMath wraps a float64->float64 host function as a native taking one
// numeric argument. validate, if non-nil, runs before calling f and may
// reject the argument (e.g. sqrt of a negative number).
func unaryMath(name string, f func(float64) float64, validate func(float64) error) runtime.NativeFn {
	return func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		if len(args) != 1 {
			return runtime.Value{}, argError(name, 1, len(args))
		}
		if !args[0].IsNumber() {
			return runtime.Value{}, typeError(name)
		}
		x := args[0].AsNumber()
		if validate != nil {
			if err := validate(x); err != nil {
				return runtime.Value{}, err
			}
		}
		return runtime.NumberValue(f(x)), nil
	}
}

func binaryMath(name string, f func(a, b float64) float64) runtime.NativeFn {
	return func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		if len(args) != 2 {
			return runtime.Value{}, argError(name, 2, len(args))
		}
		if !args[0].IsNumber() || !args[1].IsNumber() {
			return runtime.Value{}, typeError(name)
		}
		return runtime.NumberValue(f(args[0].AsNumber(), args[1].AsNumber())), nil
	}
}
