package runtime

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// TestMethodTableAppendAssignsIndices exercises the method table in
// isolation, without going through ClassLibrary: Append assigns
// sequential indices, Count reports one past the last, and Data/Kind
// report the appended data with an Interpreted implementation.
func TestMethodTableAppendAssignsIndices(t *testing.T) {
	mt := NewMethodTable()
	if mt.Count() != 0 {
		t.Fatalf("Count on empty table: got %d, want 0", mt.Count())
	}

	data := &MethodData{Name: "m", ArgumentCount: 0, ReturnType: classfile.Int, IsStatic: true}
	mi := mt.Append(data)
	if mi != 0 {
		t.Errorf("first MethodIndex: got %d, want 0", mi)
	}
	if mt.Count() != 1 {
		t.Errorf("Count after one Append: got %d, want 1", mt.Count())
	}
	if mt.Data(mi) != data {
		t.Error("Data did not return the same MethodData pointer that was appended")
	}
	if mt.Kind(mi) != Interpreted {
		t.Errorf("initial Kind: got %v, want Interpreted", mt.Kind(mi))
	}

	second := mt.Append(&MethodData{Name: "n"})
	if second != 1 {
		t.Errorf("second MethodIndex: got %d, want 1", second)
	}
	if mt.Count() != 2 {
		t.Errorf("Count after two Appends: got %d, want 2", mt.Count())
	}
}

// TestMethodTableSetCompiledSwitchesCallTarget confirms SetCompiled
// rewrites only the call_table slot, leaving Data untouched, and that
// Invoke subsequently reaches the new implementation.
func TestMethodTableSetCompiledSwitchesCallTarget(t *testing.T) {
	mt := NewMethodTable()
	data := &MethodData{Name: "m", ReturnType: classfile.Int}
	mi := mt.Append(data)

	called := false
	mt.SetCompiled(mi, func(stack *Stack) (Value, bool, error) {
		called = true
		return IntValue(99), true, nil
	})
	if mt.Kind(mi) != NativeCompiled {
		t.Errorf("Kind after SetCompiled: got %v, want NativeCompiled", mt.Kind(mi))
	}
	if mt.Data(mi) != data {
		t.Error("SetCompiled must not change the MethodData pointer")
	}

	s := NewStack(4)
	result, hasReturn, err := mt.Invoke(mi, s)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !called {
		t.Error("Invoke did not reach the compiled call_table entry")
	}
	if !hasReturn || result.Int != 99 {
		t.Errorf("Invoke result: got %+v (hasReturn=%v), want int 99", result, hasReturn)
	}
}
