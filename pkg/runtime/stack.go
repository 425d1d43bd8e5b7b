package runtime

import (
	"unsafe"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// Stack is the single shared linear operand-stack region (spec.md §4.8):
// one array of slots, pushed and popped by every active frame at once.
// Frames do not own separate buffers; a frame is just a view (Base,
// MaxLocals) into this same array, and nested calls push their frames
// further up the same region the caller is using.
//
// A long or double value occupies two consecutive slots (the whole value
// then a continuation slot); everything else, including a reference, is one
// slot — matching the argument-slot counting rule in spec.md §3
// ("counting each long/double as 2").
type Stack struct {
	slots []Value
	sp    int
}

// NewStack allocates a stack with a fixed slot capacity. Per spec.md §5,
// this capacity is reserved once at startup; exceeding it is a fatal,
// not a recoverable, condition.
func NewStack(capacity int) *Stack {
	return &Stack{slots: make([]Value, capacity)}
}

// SP returns the current top-of-stack slot index.
func (s *Stack) SP() int { return s.sp }

func (s *Stack) push(v Value) {
	if s.sp >= len(s.slots) {
		panic(&Error{Kind: StackOverflow, Context: "operand stack"})
	}
	s.slots[s.sp] = v
	s.sp++
}

func (s *Stack) pop() Value {
	if s.sp <= 0 {
		panic(&Error{Kind: StackUnderflow, Context: "operand stack"})
	}
	s.sp--
	return s.slots[s.sp]
}

// Push pushes a single-slot value (int, float, or reference).
func (s *Stack) Push(v Value) { s.push(v) }

// Pop pops a single-slot value.
func (s *Stack) Pop() Value { return s.pop() }

// PushWide pushes a two-slot (long or double) value.
func (s *Stack) PushWide(v Value) {
	s.push(v)
	s.push(Value{}) // continuation slot; never independently read
}

// PopWide pops a two-slot (long or double) value.
func (s *Stack) PopWide() Value {
	s.pop() // discard the continuation slot
	return s.pop()
}

// PushValue pushes v using the slot width its own Kind implies.
func (s *Stack) PushValue(v Value) {
	if v.Slots() == 2 {
		s.PushWide(v)
	} else {
		s.Push(v)
	}
}

// PopType pops a value of the slot width t implies.
func (s *Stack) PopType(t classfile.JvmType) Value {
	if t.Slots() == 2 {
		return s.PopWide()
	}
	return s.Pop()
}

// Peek looks past the top of stack by n slots (0 is the current top).
func (s *Stack) Peek(n int) Value {
	idx := s.sp - 1 - n
	if idx < 0 {
		panic(&Error{Kind: StackUnderflow, Context: "peek past bottom of stack"})
	}
	return s.slots[idx]
}

// SlotsPointer exposes the backing array's address for pkg/compiler: the
// native-code compiler addresses stack slots directly from machine code
// using the same layout the interpreter uses, rather than going through
// Push/Pop. Not for any other caller.
func (s *Stack) SlotsPointer() unsafe.Pointer { return unsafe.Pointer(&s.slots[0]) }

// SlotAt returns a pointer to the raw slot at absolute index i, so the
// compiler's call wrapper can read a compiled method's return value
// straight out of shared stack memory once generated code returns.
func (s *Stack) SlotAt(i int) *Value { return &s.slots[i] }

// SetSP forcibly repositions the stack pointer. Generated native code
// never calls Frame.Return (it has no Go frame to call through), so the
// compiler's call wrapper replicates Return's bookkeeping using this.
func (s *Stack) SetSP(sp int) { s.sp = sp }

// Frame is the region of the shared stack owned by one active call:
// locals (argc pre-filled from the caller's pushed arguments, the rest
// zeroed) followed by the evaluation area.
type Frame struct {
	stack     *Stack
	Base      int // frame_base = stack.sp (at call time) - argc
	MaxLocals int
	Code      []byte
	PC        int
	Class     *Class // owning class of the executing method; resolves its constant pool
}

// Prepare opens a new frame on stack: the top argc slots already pushed
// by the caller become the callee's locals 0..argc-1; locals
// argc..maxLocals-1 are zeroed; the evaluation area begins right after
// the locals, at frame_base+maxLocals.
func Prepare(stack *Stack, argc, maxLocals int, code []byte, cls *Class) *Frame {
	base := stack.sp - argc
	if base < 0 {
		panic(&Error{Kind: StackUnderflow, Context: "preparing frame: fewer than argc values on stack"})
	}
	for i := argc; i < maxLocals; i++ {
		stack.slots[base+i] = IntValue(0)
	}
	stack.sp = base + maxLocals
	return &Frame{stack: stack, Base: base, MaxLocals: maxLocals, Code: code, Class: cls}
}

func (f *Frame) GetLocal(i int) Value { return f.stack.slots[f.Base+i] }
func (f *Frame) SetLocal(i int, v Value) {
	f.stack.slots[f.Base+i] = v
}

func (f *Frame) Push(v Value)          { f.stack.Push(v) }
func (f *Frame) Pop() Value            { return f.stack.Pop() }
func (f *Frame) PushWide(v Value)      { f.stack.PushWide(v) }
func (f *Frame) PopWide() Value        { return f.stack.PopWide() }
func (f *Frame) PushValue(v Value)     { f.stack.PushValue(v) }
func (f *Frame) PopType(t classfile.JvmType) Value { return f.stack.PopType(t) }
func (f *Frame) Peek(n int) Value      { return f.stack.Peek(n) }

// Return terminates the frame: the stack pointer resets to the frame's
// base (dropping locals and any leftover evaluation-area values), and if
// the method has a return value it is pushed onto what is now the
// caller's stack.
func (f *Frame) Return(v Value, hasReturn bool) {
	f.stack.sp = f.Base
	if hasReturn {
		f.stack.PushValue(v)
	}
}

// ReadU8 reads a uint8 operand and advances PC.
func (f *Frame) ReadU8() uint8 {
	v := f.Code[f.PC]
	f.PC++
	return v
}

// ReadI8 reads an int8 operand and advances PC.
func (f *Frame) ReadI8() int8 {
	v := int8(f.Code[f.PC])
	f.PC++
	return v
}

// ReadU16 reads a big-endian uint16 operand and advances PC by 2.
func (f *Frame) ReadU16() uint16 {
	v := uint16(f.Code[f.PC])<<8 | uint16(f.Code[f.PC+1])
	f.PC += 2
	return v
}

// ReadI16 reads a big-endian int16 operand and advances PC by 2.
func (f *Frame) ReadI16() int16 {
	v := int16(f.Code[f.PC])<<8 | int16(f.Code[f.PC+1])
	f.PC += 2
	return v
}
