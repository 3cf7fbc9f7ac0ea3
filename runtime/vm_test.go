package runtime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/config"
)

func newTestVM() (*VM, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	vm := New(config.Defaults(), &out, &errOut)
	return vm, &out, &errOut
}

func run(t *testing.T, source string) (string, string, InterpretResult) {
	t.Helper()
	vm, out, errOut := newTestVM()
	result := vm.Interpret(source)

	var diagnostics string
	switch result {
	case InterpretCompileError:
		for _, e := range vm.CompileErrors() {
			diagnostics += e.Error() + "\n"
		}
	case InterpretRuntimeError:
		diagnostics = vm.LastRuntimeError().Error()
	}
	return out.String(), diagnostics + errOut.String(), result
}

func TestArithmeticPrecedence(t *testing.T) {
	out, errOut, result := run(t, `print (1 + 2) * 3 - 4 / 2;`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "7\n", out)
}

func TestGlobalsDeclareAndReassign(t *testing.T) {
	out, errOut, result := run(t, `
		var greeting = "hi";
		greeting = greeting + " there";
		print greeting;
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "hi there\n", out)
}

func TestClosureCapturesVariableByReference(t *testing.T) {
	out, errOut, result := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClassesMethodsAndThis(t *testing.T) {
	out, errOut, result := run(t, `
		class Counter {
			init(start) {
				this.value = start;
			}
			bump() {
				this.value = this.value + 1;
				return this.value;
			}
		}
		var c = Counter(10);
		print c.bump();
		print c.bump();
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "11\n12\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out, errOut, result := run(t, `
		class Animal {
			speak() {
				return "...";
			}
			describe() {
				return "an animal that says " + this.speak();
			}
		}
		class Dog < Animal {
			speak() {
				return "woof";
			}
			describe() {
				return super.describe() + "!";
			}
		}
		print Dog().describe();
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "an animal that says woof!\n", out)
}

func TestRuntimeErrorReportsStackTrace(t *testing.T) {
	_, errOut, result := run(t, `
		fun a() {
			b();
		}
		fun b() {
			return 1 + nil;
		}
		a();
	`)
	require.Equal(t, InterpretRuntimeError, result)
	lines := strings.Split(strings.TrimRight(errOut, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "Operands must be two numbers or two strings.", lines[0])
	assert.Contains(t, lines[1], "in b()")
	assert.Contains(t, lines[2], "in a()")
	assert.Contains(t, lines[3], "in script")
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `print nope;`)
	require.Equal(t, InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Undefined variable 'nope'.")
}

func TestCompileErrorReportsLineAndLexeme(t *testing.T) {
	_, errOut, result := run(t, "var x = ;\n")
	require.Equal(t, InterpretCompileError, result)
	assert.Contains(t, errOut, "[line 1] Error at ';': Expect expression.")
}

func TestStringConcatenationInterns(t *testing.T) {
	out, errOut, result := run(t, `
		var a = "foo" + "bar";
		var b = "foo" + "bar";
		print a == b;
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "true\n", out)
}

func TestNaNIsNeverEqualToItself(t *testing.T) {
	out, errOut, result := run(t, `
		var x = 0;
		print (0 / x) == (0 / x);
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "false\n", out)
}

func TestBoundMethodRetainsReceiver(t *testing.T) {
	out, errOut, result := run(t, `
		class Box {
			init(v) { this.v = v; }
			get() { return this.v; }
		}
		var box = Box(42);
		var getter = box.get;
		print getter();
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "42\n", out)
}

func TestWhileAndForLoops(t *testing.T) {
	out, errOut, result := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		for (var j = 0; j < 3; j = j + 1) {
			sum = sum + j;
		}
		print sum;
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "13\n", out)
}
