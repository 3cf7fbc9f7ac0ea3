package natives

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/config"
	"github.com/emberlang/ember/runtime"
)

func newTestVM() (*runtime.VM, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	vm := runtime.New(config.Defaults(), &out, &errOut)
	Install(vm)
	return vm, &out, &errOut
}

func TestClockReturnsANumber(t *testing.T) {
	vm, out, errOut := newTestVM()
	result := vm.Interpret(`print type(clock());`)
	require.Equal(t, runtime.InterpretOK, result, errOut.String())
	assert.Equal(t, "number\n", out.String())
}

func TestTypeReportsEveryKind(t *testing.T) {
	vm, out, errOut := newTestVM()
	result := vm.Interpret(`
		class C {}
		print type(1);
		print type("s");
		print type(true);
		print type(nil);
		print type(C);
		print type(C());
	`)
	require.Equal(t, runtime.InterpretOK, result, errOut.String())
	assert.Equal(t, "number\nstring\nbool\nnil\nclass\ninstance\n", out.String())
}

func TestMathLibraryBasics(t *testing.T) {
	vm, out, errOut := newTestVM()
	result := vm.Interpret(`
		print sqrt(16);
		print abs(-3);
		print floor(1.9);
		print ceil(1.1);
		print pow(2, 10);
	`)
	require.Equal(t, runtime.InterpretOK, result, errOut.String())
	assert.Equal(t, "4\n3\n1\n2\n1024\n", out.String())
}

func TestSqrtOfNegativeNumberIsARuntimeError(t *testing.T) {
	vm, _, _ := newTestVM()
	result := vm.Interpret(`sqrt(-1);`)
	assert.Equal(t, runtime.InterpretRuntimeError, result)
}

func TestMathFunctionRejectsWrongArgumentCount(t *testing.T) {
	vm, _, _ := newTestVM()
	result := vm.Interpret(`sqrt(1, 2);`)
	assert.Equal(t, runtime.InterpretRuntimeError, result)
}

func TestMathFunctionRejectsNonNumericArgument(t *testing.T) {
	vm, _, _ := newTestVM()
	result := vm.Interpret(`sqrt("nope");`)
	assert.Equal(t, runtime.InterpretRuntimeError, result)
}
