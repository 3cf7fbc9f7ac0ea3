package runtime

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/config"
)

func compile(t *testing.T, source string) (*ObjFunction, []*CompileError) {
	t.Helper()
	vm := New(config.Defaults(), &bytes.Buffer{}, &bytes.Buffer{})
	return Compile(vm, source)
}

func TestLocalSlotsAreReusedAcrossSiblingScopes(t *testing.T) {
	fn, errs := compile(t, `
		fun f() {
			{
				var a = 1;
			}
			{
				var b = 2;
				print b;
			}
		}
	`)
	require.Empty(t, errs)
	require.NotNil(t, fn)

	var inner *ObjFunction
	for _, c := range fn.Chunk.Constants {
		if c.IsFunction() {
			inner = c.AsFunction()
		}
	}
	require.NotNil(t, inner)
	listing := Disassemble(inner.Chunk, "f")
	assert.Contains(t, listing, fmt.Sprintf("%-16s %4d", "OP_GET_LOCAL", 1))
}

func TestShadowingInNestedScopeIsAllowed(t *testing.T) {
	out, errOut, result := run(t, `
		var x = "outer";
		{
			var x = "inner";
			print x;
		}
		print x;
	`)
	require.Equal(t, InterpretOK, result, errOut)
	assert.Equal(t, "inner\nouter\n", out)
}

func TestRedeclaringALocalInTheSameScopeIsACompileError(t *testing.T) {
	_, errs := compile(t, `
		fun f() {
			var a = 1;
			var a = 2;
		}
	`)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "Already a variable with this name in this scope.") {
			found = true
		}
	}
	assert.True(t, found, "%v", errs)
}

func TestReadingALocalInItsOwnInitializerIsACompileError(t *testing.T) {
	_, errs := compile(t, `
		fun f() {
			var a = a;
		}
	`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Can't read local variable in its own initializer.")
}

func TestParseErrorSynchronizesAtTheNextStatement(t *testing.T) {
	_, errs := compile(t, `
		var a = ;
		var b = 2;
		print b;
	`)
	require.Len(t, errs, 1, "%v", errs)
	assert.Equal(t, 2, errs[0].Line)
}

func TestMultipleErrorsAreAllReported(t *testing.T) {
	_, errs := compile(t, `
		var a = ;
		var b = ;
		var c = ;
	`)
	require.Len(t, errs, 3)
	assert.Equal(t, 2, errs[0].Line)
	assert.Equal(t, 3, errs[1].Line)
	assert.Equal(t, 4, errs[2].Line)
}

func TestReturnAtTopLevelIsACompileError(t *testing.T) {
	_, errs := compile(t, `return 1;`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Can't return from top-level code.")
}

func TestReturnAValueFromAnInitializerIsACompileError(t *testing.T) {
	_, errs := compile(t, `
		class C {
			init() {
				return 1;
			}
		}
	`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Can't return a value from an initializer.")
}

func TestThisOutsideAClassIsACompileError(t *testing.T) {
	_, errs := compile(t, `print this;`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Can't use 'this' outside of a class.")
}

func TestSuperWithNoSuperclassIsACompileError(t *testing.T) {
	_, errs := compile(t, `
		class C {
			m() {
				super.m();
			}
		}
	`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Can't use 'super' in a class with no superclass.")
}

func TestClassCannotInheritFromItself(t *testing.T) {
	_, errs := compile(t, `class C < C {}`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "A class can't inherit from itself.")
}

func TestTooManyParametersIsACompileError(t *testing.T) {
	var b strings.Builder
	b.WriteString("fun f(")
	for i := 0; i < 256; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("a")
		b.WriteString(itoa(i))
	}
	b.WriteString(") {}")

	_, errs := compile(t, b.String())
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "Can't have more than 255 parameters.") {
			found = true
		}
	}
	assert.True(t, found, "%v", errs)
}

func TestTooManyArgumentsIsACompileError(t *testing.T) {
	var call strings.Builder
	call.WriteString("f(")
	for i := 0; i < 256; i++ {
		if i > 0 {
			call.WriteString(", ")
		}
		call.WriteString("nil")
	}
	call.WriteString(");")

	_, errs := compile(t, "fun f() {}\n"+call.String())
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "Can't have more than 255 arguments.") {
			found = true
		}
	}
	assert.True(t, found, "%v", errs)
}

func TestErrorAtEndOfFileIsReportedDistinctly(t *testing.T) {
	_, errs := compile(t, "fun f() {")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1].Error(), "Error at end:")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
