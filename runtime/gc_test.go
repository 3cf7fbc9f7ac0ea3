package runtime

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/config"
)

func TestStressGCDoesNotChangeObservableBehavior(t *testing.T) {
	source := `
		class Node {
			init(value, next) {
				this.value = value;
				this.next = next;
			}
		}
		fun sum(node) {
			if (node == nil) {
				return 0;
			}
			return node.value + sum(node.next);
		}
		var list = nil;
		for (var i = 0; i < 50; i = i + 1) {
			list = Node(i, list);
		}
		print sum(list);
	`

	var normalOut bytes.Buffer
	vm := New(config.Defaults(), &normalOut, &bytes.Buffer{})
	result := vm.Interpret(source)
	require.Equal(t, InterpretOK, result)

	stressCfg := config.Defaults()
	stressCfg.StressGC = true
	var stressOut bytes.Buffer
	stressVM := New(stressCfg, &stressOut, &bytes.Buffer{})
	stressResult := stressVM.Interpret(source)
	require.Equal(t, InterpretOK, stressResult)

	assert.Equal(t, normalOut.String(), stressOut.String())
}

func TestStringInterningGivesReferenceIdentity(t *testing.T) {
	vm := New(config.Defaults(), &bytes.Buffer{}, &bytes.Buffer{})
	a := vm.internString("hello")
	b := vm.internString("hello")
	assert.Same(t, a, b)
}

func TestInternPoolSurvivesACollection(t *testing.T) {
	vm := New(config.Defaults(), &bytes.Buffer{}, &bytes.Buffer{})
	vm.push(ObjectValue(vm.internString("kept")))
	vm.collectGarbage()
	kept := vm.peek(0)
	require.True(t, kept.IsString())
	assert.Equal(t, "kept", kept.AsString().Chars)
}

func TestDoubleNegationRoundTrips(t *testing.T) {
	vm, out, errOut := newTestVM()
	result := vm.Interpret(`print -(-((1 + 2) * 3));`)
	require.Equal(t, InterpretOK, result, errOut.String())
	assert.Equal(t, "9\n", out.String())
}

func countObjects(vm *VM) int {
	n := 0
	for o := vm.objects; o != nil; o = o.header().Next {
		n++
	}
	return n
}

// Nothing declared at the top level (no fun/class/var escaping to globals)
// should outlive the statement that created it: once the enclosing script
// returns, its chunk, locals and any interned temporaries it alone
// referenced are unreachable, so a collection afterward should find the
// heap back where it started.
func TestEveryAllocationIsFreedWhenNothingIsLiveAnymore(t *testing.T) {
	vm, _, errOut := newTestVM()
	vm.collectGarbage()
	baseline := countObjects(vm)

	result := vm.Interpret(`
		{
			var a = "ephemeral" + "value";
			print a;
		}
	`)
	require.Equal(t, InterpretOK, result, errOut.String())

	vm.collectGarbage()
	assert.Equal(t, baseline, countObjects(vm))
}

func TestUnreferencedInternedStringIsSweptFromThePool(t *testing.T) {
	vm := New(config.Defaults(), &bytes.Buffer{}, &bytes.Buffer{})
	s := vm.internString("ephemeral")
	hash := s.Hash
	vm.collectGarbage()
	assert.Nil(t, vm.strings.FindString("ephemeral", hash))
}
