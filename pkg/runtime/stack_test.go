package runtime

import "testing"

// TestStackRoundTrip is spec.md §8's round-trip law: a value pushed with
// width w and popped with width w equals the original, for every
// primitive kind.
func TestStackRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		wide bool
	}{
		{"int", IntValue(42), false},
		{"int-negative", IntValue(-7), false},
		{"float", FloatValue(3.5), false},
		{"long", LongValue(1 << 40), true},
		{"double", DoubleValue(2.718281828), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := NewStack(16)
			if c.wide {
				s.PushWide(c.v)
			} else {
				s.Push(c.v)
			}
			var got Value
			if c.wide {
				got = s.PopWide()
			} else {
				got = s.Pop()
			}
			if got != c.v {
				t.Errorf("round trip: got %+v, want %+v", got, c.v)
			}
			if s.SP() != 0 {
				t.Errorf("SP after round trip: got %d, want 0", s.SP())
			}
		})
	}
}

// TestStackOverflowPanics asserts the programmer-error-only overflow
// condition spec.md §5 calls for: exceeding the reserved capacity is
// fatal, not a recoverable error.
func TestStackOverflowPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on stack overflow")
		} else if e, ok := r.(*Error); !ok || e.Kind != StackOverflow {
			t.Errorf("expected StackOverflow panic, got %v", r)
		}
	}()
	s := NewStack(1)
	s.Push(IntValue(1))
	s.Push(IntValue(2))
}

// TestPrepareFrame exercises §4.8's frame-opening algorithm: frame_base =
// stack.sp - argc, locals 0..argc-1 pre-filled from the caller's pushed
// arguments, locals argc..maxLocals-1 zeroed, and the evaluation area
// starting right after the locals.
func TestPrepareFrame(t *testing.T) {
	s := NewStack(32)
	s.Push(IntValue(10))
	s.Push(IntValue(20))

	f := Prepare(s, 2, 4, nil, nil)
	if f.Base != 0 {
		t.Errorf("frame base: got %d, want 0", f.Base)
	}
	if got := f.GetLocal(0); got.Int != 10 {
		t.Errorf("local 0: got %v, want 10", got)
	}
	if got := f.GetLocal(1); got.Int != 20 {
		t.Errorf("local 1: got %v, want 20", got)
	}
	if got := f.GetLocal(2); got.Int != 0 {
		t.Errorf("local 2 (beyond argc): got %v, want zeroed int 0", got)
	}
	if got := f.GetLocal(3); got.Int != 0 {
		t.Errorf("local 3 (beyond argc): got %v, want zeroed int 0", got)
	}
	if s.SP() != 4 {
		t.Errorf("evaluation area start (stack SP after Prepare): got %d, want 4", s.SP())
	}

	f.Push(IntValue(99))
	if s.SP() != 5 {
		t.Errorf("after one push onto the evaluation area, SP: got %d, want 5", s.SP())
	}
}

// TestFrameReturnRestoresCallerSP is spec.md §8's invariant: after
// executing a method, the stack's SP equals the caller's SP minus argc
// plus slots(return_type).
func TestFrameReturnRestoresCallerSP(t *testing.T) {
	s := NewStack(32)
	s.Push(IntValue(1))
	s.Push(IntValue(2))
	s.Push(IntValue(3)) // argc=3 arguments pushed by a hypothetical caller
	callerSP := 0        // SP before the arguments were pushed

	f := Prepare(s, 3, 3, nil, nil)
	f.Return(IntValue(42), true)

	want := callerSP + 1 // caller SP at call (3) - argc (3) + slots(int) (1)
	if s.SP() != want {
		t.Errorf("SP after return: got %d, want %d", s.SP(), want)
	}
	if got := s.Pop(); got.Int != 42 {
		t.Errorf("returned value: got %v, want 42", got)
	}
}
