package runtime

import (
	"fmt"
	"math"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/sirupsen/logrus"
)

// Opcodes this interpreter dispatches (spec.md §4.9), plus IINC and the
// wide LDC forms (SPEC_FULL.md's SUPPLEMENTED FEATURES). Values are the
// standard JVMS 6 opcode bytes.
const (
	opAconstNull = 0x01
	opIconstM1   = 0x02
	opIconst0    = 0x03
	opIconst1    = 0x04
	opIconst2    = 0x05
	opIconst3    = 0x06
	opIconst4    = 0x07
	opIconst5    = 0x08
	opLconst0    = 0x09
	opLconst1    = 0x0A
	opFconst0    = 0x0B
	opFconst1    = 0x0C
	opFconst2    = 0x0D
	opDconst0    = 0x0E
	opDconst1    = 0x0F
	opBipush     = 0x10
	opSipush     = 0x11
	opLdc        = 0x12
	opLdcW       = 0x13
	opLdc2W      = 0x14
	opIload      = 0x15
	opLload      = 0x16
	opFload      = 0x17
	opDload      = 0x18
	opAload      = 0x19
	opIload0     = 0x1A
	opIload1     = 0x1B
	opIload2     = 0x1C
	opIload3     = 0x1D
	opLload0     = 0x1E
	opLload1     = 0x1F
	opLload2     = 0x20
	opLload3     = 0x21
	opFload0     = 0x22
	opFload1     = 0x23
	opFload2     = 0x24
	opFload3     = 0x25
	opDload0     = 0x26
	opDload1     = 0x27
	opDload2     = 0x28
	opDload3     = 0x29
	opAload0     = 0x2A
	opAload1     = 0x2B
	opAload2     = 0x2C
	opAload3     = 0x2D
	opIstore     = 0x36
	opLstore     = 0x37
	opFstore     = 0x38
	opDstore     = 0x39
	opAstore     = 0x3A
	opIstore0    = 0x3B
	opIstore1    = 0x3C
	opIstore2    = 0x3D
	opIstore3    = 0x3E
	opLstore0    = 0x3F
	opLstore1    = 0x40
	opLstore2    = 0x41
	opLstore3    = 0x42
	opFstore0    = 0x43
	opFstore1    = 0x44
	opFstore2    = 0x45
	opFstore3    = 0x46
	opDstore0    = 0x47
	opDstore1    = 0x48
	opDstore2    = 0x49
	opDstore3    = 0x4A
	opAstore0    = 0x4B
	opAstore1    = 0x4C
	opAstore2    = 0x4D
	opAstore3    = 0x4E
	opPop        = 0x57
	opPop2       = 0x58
	opDup        = 0x59
	opDupX1      = 0x5A
	opDupX2      = 0x5B
	opDup2       = 0x5C
	opSwap       = 0x5F
	opIadd       = 0x60
	opLadd       = 0x61
	opFadd       = 0x62
	opDadd       = 0x63
	opIsub       = 0x64
	opLsub       = 0x65
	opFsub       = 0x66
	opDsub       = 0x67
	opImul       = 0x68
	opLmul       = 0x69
	opFmul       = 0x6A
	opDmul       = 0x6B
	opIdiv       = 0x6C
	opLdiv       = 0x6D
	opFdiv       = 0x6E
	opDdiv       = 0x6F
	opIrem       = 0x70
	opLrem       = 0x71
	opFrem       = 0x72
	opDrem       = 0x73
	opIneg       = 0x74
	opLneg       = 0x75
	opFneg       = 0x76
	opDneg       = 0x77
	opIand       = 0x7E
	opLand       = 0x7F
	opIor        = 0x80
	opLor        = 0x81
	opIxor       = 0x82
	opLxor       = 0x83
	opIinc       = 0x84
	opI2l        = 0x85
	opI2f        = 0x86
	opI2d        = 0x87
	opL2i        = 0x88
	opL2f        = 0x89
	opL2d        = 0x8A
	opF2i        = 0x8B
	opF2l        = 0x8C
	opF2d        = 0x8D
	opD2i        = 0x8E
	opD2l        = 0x8F
	opD2f        = 0x90
	opI2b        = 0x91
	opI2c        = 0x92
	opI2s        = 0x93
	opLcmp       = 0x94
	opFcmpl      = 0x95
	opFcmpg      = 0x96
	opDcmpl      = 0x97
	opDcmpg      = 0x98
	opIfeq       = 0x99
	opIfne       = 0x9A
	opIflt       = 0x9B
	opIfge       = 0x9C
	opIfgt       = 0x9D
	opIfle       = 0x9E
	opIfIcmpeq   = 0x9F
	opIfIcmpne   = 0xA0
	opIfIcmplt   = 0xA1
	opIfIcmpge   = 0xA2
	opIfIcmpgt   = 0xA3
	opIfIcmple   = 0xA4
	opGoto       = 0xA7
	opIreturn    = 0xAC
	opLreturn    = 0xAD
	opFreturn    = 0xAE
	opDreturn    = 0xAF
	opAreturn    = 0xB0
	opReturn     = 0xB1
	opGetstatic  = 0xB2
	opPutstatic  = 0xB3
	opGetfield   = 0xB4
	opPutfield   = 0xB5
	opInvokevirtual = 0xB6
	opInvokespecial = 0xB7
	opInvokestatic  = 0xB8
	opNew           = 0xBB
)

// Interpreter owns the shared state a running program needs: the class
// library (and through it, the method table and heap), and the one
// linear operand stack every frame is opened on (spec.md §4.9, §5).
type Interpreter struct {
	library     *ClassLibrary
	methodTable *MethodTable
	heap        *Heap
	stack       *Stack
	log         *logrus.Entry
}

// NewInterpreter wires a class library, method table, heap, and operand
// stack together and binds each back-reference, per the circular
// dependency spec.md §3/§4.7 describes (a method table's trampoline
// needs the interpreter; the interpreter needs the method table to
// invoke anything).
func NewInterpreter(provider ClassProvider, stackCapacity int) *Interpreter {
	mt := NewMethodTable()
	heap := NewHeap()
	lib := NewClassLibrary(provider, mt, heap)
	interp := &Interpreter{
		library:     lib,
		methodTable: mt,
		heap:        heap,
		stack:       NewStack(stackCapacity),
		log:         logrus.WithField("component", "interpreter"),
	}
	lib.bindInterpreter(interp)
	mt.bindInterpreter(interp)
	return interp
}

// Library exposes the class library this interpreter drives, for a
// caller (e.g. the native compiler, or cmd/jvmrun) that needs to trigger
// a load directly.
func (interp *Interpreter) Library() *ClassLibrary { return interp.library }

// MethodTable exposes the method table, so compiled code can be
// installed into a method's call_table slot.
func (interp *Interpreter) MethodTable() *MethodTable { return interp.methodTable }

// Heap exposes the object heap.
func (interp *Interpreter) Heap() *Heap { return interp.heap }

// bootstrapStack is the stack <clinit> runs on. Every method in this
// single-threaded system runs on the same stack, so this is simply the
// interpreter's one Stack.
func (interp *Interpreter) bootstrapStack() *Stack { return interp.stack }

// Execute is the system entry point (spec.md §6): load className
// (recursively loading its supertypes and running their <clinit>s), then
// invoke its static method methodName with no arguments.
func (interp *Interpreter) Execute(className, methodName string) (Value, error) {
	cls, err := interp.library.Load(className)
	if err != nil {
		return Value{}, fmt.Errorf("loading %s: %w", className, err)
	}
	info, ok := cls.StaticMethods[methodName]
	if !ok {
		return Value{}, &Error{Kind: MethodNotFound, Context: fmt.Sprintf("%s.%s", className, methodName)}
	}
	interp.log.Debugf("executing %s.%s (method index %d)", className, methodName, info.MethodIndex)
	val, _, err := interp.methodTable.Invoke(info.MethodIndex, interp.stack)
	return val, err
}

// runTrampoline is the shared stub every interpreted method's call_table
// slot points at (spec.md §4.7's "Trampoline"): it opens a frame for mi
// on stack and drives the dispatch loop to completion.
func (interp *Interpreter) runTrampoline(mi MethodIndex, stack *Stack) (Value, bool, error) {
	data := interp.methodTable.Data(mi)
	if data.Bytecode == nil {
		return Value{}, false, &Error{Kind: MissingReturn, Context: fmt.Sprintf("%s has no Code (native or abstract)", data.Name)}
	}
	cls := interp.library.ClassAt(data.OwningClass)
	frame := Prepare(stack, data.ArgumentCount, data.MaxLocals, data.Bytecode, cls)

	for frame.PC < len(frame.Code) {
		opcodePC := frame.PC
		op := frame.ReadU8()
		val, isReturn, err := interp.step(frame, op, opcodePC)
		if err != nil {
			return Value{}, false, fmt.Errorf("in %s#%s at pc=%d: %w", cls.Name, data.Name, opcodePC, err)
		}
		if isReturn {
			hasReturn := data.ReturnType != classfile.Void
			frame.Return(val, hasReturn)
			return val, hasReturn, nil
		}
	}
	return Value{}, false, &Error{Kind: MissingReturn, Context: fmt.Sprintf("%s#%s", cls.Name, data.Name)}
}

// step executes a single bytecode instruction. The returned bool is
// "this instruction terminated the frame" (any return opcode); the
// returned Value is only meaningful when it is true.
func (interp *Interpreter) step(frame *Frame, op byte, opcodePC int) (Value, bool, error) {
	pool := frame.Class.Pool
	lib := interp.library

	switch op {
	case opAconstNull:
		frame.Push(NullValue())
	case opIconstM1:
		frame.Push(IntValue(-1))
	case opIconst0:
		frame.Push(IntValue(0))
	case opIconst1:
		frame.Push(IntValue(1))
	case opIconst2:
		frame.Push(IntValue(2))
	case opIconst3:
		frame.Push(IntValue(3))
	case opIconst4:
		frame.Push(IntValue(4))
	case opIconst5:
		frame.Push(IntValue(5))
	case opLconst0:
		frame.PushWide(LongValue(0))
	case opLconst1:
		frame.PushWide(LongValue(1))
	case opFconst0:
		frame.Push(FloatValue(0))
	case opFconst1:
		frame.Push(FloatValue(1))
	case opFconst2:
		frame.Push(FloatValue(2))
	case opDconst0:
		frame.PushWide(DoubleValue(0))
	case opDconst1:
		frame.PushWide(DoubleValue(1))

	case opBipush:
		frame.Push(IntValue(int32(frame.ReadI8())))
	case opSipush:
		frame.Push(IntValue(int32(frame.ReadI16())))

	case opLdc:
		return interp.execLdc(frame, uint16(frame.ReadU8()))
	case opLdcW:
		return interp.execLdc(frame, frame.ReadU16())
	case opLdc2W:
		return interp.execLdc(frame, frame.ReadU16())

	case opIload, opFload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))
	case opLload, opDload:
		i := int(frame.ReadU8())
		frame.PushWide(frame.GetLocal(i))
	case opAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))
	case opIload0, opFload0:
		frame.Push(frame.GetLocal(0))
	case opIload1, opFload1:
		frame.Push(frame.GetLocal(1))
	case opIload2, opFload2:
		frame.Push(frame.GetLocal(2))
	case opIload3, opFload3:
		frame.Push(frame.GetLocal(3))
	case opLload0, opDload0:
		frame.PushWide(frame.GetLocal(0))
	case opLload1, opDload1:
		frame.PushWide(frame.GetLocal(1))
	case opLload2, opDload2:
		frame.PushWide(frame.GetLocal(2))
	case opLload3, opDload3:
		frame.PushWide(frame.GetLocal(3))
	case opAload0:
		frame.Push(frame.GetLocal(0))
	case opAload1:
		frame.Push(frame.GetLocal(1))
	case opAload2:
		frame.Push(frame.GetLocal(2))
	case opAload3:
		frame.Push(frame.GetLocal(3))

	case opIstore, opFstore, opAstore:
		frame.SetLocal(int(frame.ReadU8()), frame.Pop())
	case opLstore, opDstore:
		frame.SetLocal(int(frame.ReadU8()), frame.PopWide())
	case opIstore0, opFstore0, opAstore0:
		frame.SetLocal(0, frame.Pop())
	case opIstore1, opFstore1, opAstore1:
		frame.SetLocal(1, frame.Pop())
	case opIstore2, opFstore2, opAstore2:
		frame.SetLocal(2, frame.Pop())
	case opIstore3, opFstore3, opAstore3:
		frame.SetLocal(3, frame.Pop())
	case opLstore0, opDstore0:
		frame.SetLocal(0, frame.PopWide())
	case opLstore1, opDstore1:
		frame.SetLocal(1, frame.PopWide())
	case opLstore2, opDstore2:
		frame.SetLocal(2, frame.PopWide())
	case opLstore3, opDstore3:
		frame.SetLocal(3, frame.PopWide())

	case opIinc:
		idx := int(frame.ReadU8())
		delta := int32(frame.ReadI8())
		frame.SetLocal(idx, IntValue(frame.GetLocal(idx).Int+delta))

	// --- Raw-slot stack manipulation: DUP2/DUP_X2 work on the top two
	// raw slots whether those slots are two single-width values or one
	// wide value's [data, continuation] pair, exactly matching the real
	// JVM's word-level definition of these opcodes.
	case opPop:
		frame.stack.pop()
	case opPop2:
		frame.stack.pop()
		frame.stack.pop()
	case opDup:
		v := frame.stack.pop()
		frame.stack.push(v)
		frame.stack.push(v)
	case opDupX1:
		v1 := frame.stack.pop()
		v2 := frame.stack.pop()
		frame.stack.push(v1)
		frame.stack.push(v2)
		frame.stack.push(v1)
	case opDupX2:
		v1 := frame.stack.pop()
		v2 := frame.stack.pop()
		v3 := frame.stack.pop()
		frame.stack.push(v1)
		frame.stack.push(v3)
		frame.stack.push(v2)
		frame.stack.push(v1)
	case opDup2:
		v1 := frame.stack.pop()
		v2 := frame.stack.pop()
		frame.stack.push(v2)
		frame.stack.push(v1)
		frame.stack.push(v2)
		frame.stack.push(v1)
	case opSwap:
		v1 := frame.stack.pop()
		v2 := frame.stack.pop()
		frame.stack.push(v1)
		frame.stack.push(v2)

	// --- Arithmetic ---
	case opIadd:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(a.Int + b.Int))
	case opLadd:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(LongValue(a.Long + b.Long))
	case opFadd:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(a.Float + b.Float))
	case opDadd:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(DoubleValue(a.Double + b.Double))
	case opIsub:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(a.Int - b.Int))
	case opLsub:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(LongValue(a.Long - b.Long))
	case opFsub:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(a.Float - b.Float))
	case opDsub:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(DoubleValue(a.Double - b.Double))
	case opImul:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(a.Int * b.Int))
	case opLmul:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(LongValue(a.Long * b.Long))
	case opFmul:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(a.Float * b.Float))
	case opDmul:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(DoubleValue(a.Double * b.Double))
	case opIdiv:
		b, a := frame.Pop(), frame.Pop()
		if b.Int == 0 {
			return Value{}, false, &Error{Kind: DivisionByZero}
		}
		frame.Push(IntValue(a.Int / b.Int))
	case opLdiv:
		b, a := frame.PopWide(), frame.PopWide()
		if b.Long == 0 {
			return Value{}, false, &Error{Kind: DivisionByZero}
		}
		frame.PushWide(LongValue(a.Long / b.Long))
	case opFdiv:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(a.Float / b.Float))
	case opDdiv:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(DoubleValue(a.Double / b.Double))
	case opIrem:
		b, a := frame.Pop(), frame.Pop()
		if b.Int == 0 {
			return Value{}, false, &Error{Kind: DivisionByZero}
		}
		frame.Push(IntValue(a.Int % b.Int))
	case opLrem:
		b, a := frame.PopWide(), frame.PopWide()
		if b.Long == 0 {
			return Value{}, false, &Error{Kind: DivisionByZero}
		}
		frame.PushWide(LongValue(a.Long % b.Long))
	case opFrem:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(FloatValue(float32(math.Mod(float64(a.Float), float64(b.Float)))))
	case opDrem:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(DoubleValue(math.Mod(a.Double, b.Double)))
	case opIneg:
		frame.Push(IntValue(-frame.Pop().Int))
	case opLneg:
		frame.PushWide(LongValue(-frame.PopWide().Long))
	case opFneg:
		frame.Push(FloatValue(-frame.Pop().Float))
	case opDneg:
		frame.PushWide(DoubleValue(-frame.PopWide().Double))
	case opIand:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(a.Int & b.Int))
	case opLand:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(LongValue(a.Long & b.Long))
	case opIor:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(a.Int | b.Int))
	case opLor:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(LongValue(a.Long | b.Long))
	case opIxor:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(a.Int ^ b.Int))
	case opLxor:
		b, a := frame.PopWide(), frame.PopWide()
		frame.PushWide(LongValue(a.Long ^ b.Long))

	// --- Width conversions ---
	case opI2l:
		frame.PushWide(LongValue(int64(frame.Pop().Int)))
	case opI2f:
		frame.Push(FloatValue(float32(frame.Pop().Int)))
	case opI2d:
		frame.PushWide(DoubleValue(float64(frame.Pop().Int)))
	case opL2i:
		frame.Push(IntValue(int32(frame.PopWide().Long)))
	case opL2f:
		frame.Push(FloatValue(float32(frame.PopWide().Long)))
	case opL2d:
		frame.PushWide(DoubleValue(float64(frame.PopWide().Long)))
	case opF2i:
		frame.Push(IntValue(int32(frame.Pop().Float)))
	case opF2l:
		frame.PushWide(LongValue(int64(frame.Pop().Float)))
	case opF2d:
		frame.PushWide(DoubleValue(float64(frame.Pop().Float)))
	case opD2i:
		frame.Push(IntValue(int32(frame.PopWide().Double)))
	case opD2l:
		frame.PushWide(LongValue(int64(frame.PopWide().Double)))
	case opD2f:
		frame.Push(FloatValue(float32(frame.PopWide().Double)))
	case opI2b:
		frame.Push(IntValue(int32(int8(frame.Pop().Int))))
	case opI2c:
		frame.Push(IntValue(int32(uint16(frame.Pop().Int))))
	case opI2s:
		frame.Push(IntValue(int32(int16(frame.Pop().Int))))

	// --- Comparisons ---
	case opLcmp:
		b, a := frame.PopWide(), frame.PopWide()
		frame.Push(IntValue(compareInt64(a.Long, b.Long)))
	case opFcmpg:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(compareFloat(float64(a.Float), float64(b.Float), 1)))
	case opFcmpl:
		b, a := frame.Pop(), frame.Pop()
		frame.Push(IntValue(compareFloat(float64(a.Float), float64(b.Float), -1)))
	case opDcmpg:
		b, a := frame.PopWide(), frame.PopWide()
		frame.Push(IntValue(compareFloat(a.Double, b.Double, 1)))
	case opDcmpl:
		b, a := frame.PopWide(), frame.PopWide()
		frame.Push(IntValue(compareFloat(a.Double, b.Double, -1)))

	// --- Branches ---
	case opIfeq:
		return interp.branchUnary(frame, opcodePC, func(v int32) bool { return v == 0 })
	case opIfne:
		return interp.branchUnary(frame, opcodePC, func(v int32) bool { return v != 0 })
	case opIflt:
		return interp.branchUnary(frame, opcodePC, func(v int32) bool { return v < 0 })
	case opIfge:
		return interp.branchUnary(frame, opcodePC, func(v int32) bool { return v >= 0 })
	case opIfgt:
		return interp.branchUnary(frame, opcodePC, func(v int32) bool { return v > 0 })
	case opIfle:
		return interp.branchUnary(frame, opcodePC, func(v int32) bool { return v <= 0 })
	case opIfIcmpeq:
		return interp.branchBinary(frame, opcodePC, func(a, b int32) bool { return a == b })
	case opIfIcmpne:
		return interp.branchBinary(frame, opcodePC, func(a, b int32) bool { return a != b })
	case opIfIcmplt:
		return interp.branchBinary(frame, opcodePC, func(a, b int32) bool { return a < b })
	case opIfIcmpge:
		return interp.branchBinary(frame, opcodePC, func(a, b int32) bool { return a >= b })
	case opIfIcmpgt:
		return interp.branchBinary(frame, opcodePC, func(a, b int32) bool { return a > b })
	case opIfIcmple:
		return interp.branchBinary(frame, opcodePC, func(a, b int32) bool { return a <= b })
	case opGoto:
		offset := frame.ReadI16()
		frame.PC = opcodePC + int(offset)

	// --- Returns ---
	case opIreturn, opFreturn, opAreturn:
		return frame.Pop(), true, nil
	case opLreturn, opDreturn:
		return frame.PopWide(), true, nil
	case opReturn:
		return Value{}, true, nil

	// --- Fields ---
	case opGetstatic:
		return interp.execGetstatic(frame, pool, lib)
	case opPutstatic:
		return interp.execPutstatic(frame, pool, lib)
	case opGetfield:
		return interp.execGetfield(frame, pool, lib)
	case opPutfield:
		return interp.execPutfield(frame, pool, lib)

	// --- Invocations ---
	case opInvokestatic:
		return interp.execInvoke(frame, pool, lib, false)
	case opInvokespecial:
		return interp.execInvoke(frame, pool, lib, false)
	case opInvokevirtual:
		return interp.execInvoke(frame, pool, lib, true)

	// --- Allocation ---
	case opNew:
		return interp.execNew(frame, pool, lib)

	default:
		return Value{}, false, &Error{Kind: UnknownOpcode, Context: fmt.Sprintf("0x%02X", op)}
	}

	return Value{}, false, nil
}

func (interp *Interpreter) execLdc(frame *Frame, index uint16) (Value, bool, error) {
	v, err := frame.Class.Pool.LoadableConstant(index)
	if err != nil {
		return Value{}, false, err
	}
	frame.PushValue(v)
	return Value{}, false, nil
}

func (interp *Interpreter) branchUnary(frame *Frame, opcodePC int, cond func(int32) bool) (Value, bool, error) {
	offset := frame.ReadI16()
	if cond(frame.Pop().Int) {
		frame.PC = opcodePC + int(offset)
	}
	return Value{}, false, nil
}

func (interp *Interpreter) branchBinary(frame *Frame, opcodePC int, cond func(a, b int32) bool) (Value, bool, error) {
	offset := frame.ReadI16()
	b, a := frame.Pop(), frame.Pop()
	if cond(a.Int, b.Int) {
		frame.PC = opcodePC + int(offset)
	}
	return Value{}, false, nil
}

func (interp *Interpreter) execGetstatic(frame *Frame, pool *ConstantPool, lib *ClassLibrary) (Value, bool, error) {
	idx := frame.ReadU16()
	ref, err := pool.ResolveField(idx, lib)
	if err != nil {
		return Value{}, false, err
	}
	owner := lib.ClassAt(ref.ClassIndex)
	frame.PushValue(owner.GetStaticField(lib, ref.Slot))
	return Value{}, false, nil
}

func (interp *Interpreter) execPutstatic(frame *Frame, pool *ConstantPool, lib *ClassLibrary) (Value, bool, error) {
	idx := frame.ReadU16()
	ref, err := pool.ResolveField(idx, lib)
	if err != nil {
		return Value{}, false, err
	}
	owner := lib.ClassAt(ref.ClassIndex)
	v := frame.PopType(ref.Slot.Type)
	owner.SetStaticField(lib, ref.Slot, v)
	return Value{}, false, nil
}

func (interp *Interpreter) execGetfield(frame *Frame, pool *ConstantPool, lib *ClassLibrary) (Value, bool, error) {
	idx := frame.ReadU16()
	ref, err := pool.ResolveField(idx, lib)
	if err != nil {
		return Value{}, false, err
	}
	recv := frame.Pop()
	if recv.Kind == KindNull || recv.Ref == nil {
		return Value{}, false, &Error{Kind: NullReference, Context: "getfield"}
	}
	frame.PushValue(recv.Ref.GetField(ref.Slot))
	return Value{}, false, nil
}

func (interp *Interpreter) execPutfield(frame *Frame, pool *ConstantPool, lib *ClassLibrary) (Value, bool, error) {
	idx := frame.ReadU16()
	ref, err := pool.ResolveField(idx, lib)
	if err != nil {
		return Value{}, false, err
	}
	v := frame.PopType(ref.Slot.Type)
	recv := frame.Pop()
	if recv.Kind == KindNull || recv.Ref == nil {
		return Value{}, false, &Error{Kind: NullReference, Context: "putfield"}
	}
	recv.Ref.SetField(ref.Slot, v)
	return Value{}, false, nil
}

// execInvoke handles INVOKESTATIC/INVOKESPECIAL (virtualCall=false, a
// direct call to the resolved MethodIndex) and INVOKEVIRTUAL
// (virtualCall=true, receiver's dispatch table selects the target). The
// caller's argc values are left exactly where they are on the shared
// stack — MethodTable.Invoke's callee opens its frame directly on top of
// them via Prepare, per spec.md §4.8.
func (interp *Interpreter) execInvoke(frame *Frame, pool *ConstantPool, lib *ClassLibrary, virtualCall bool) (Value, bool, error) {
	idx := frame.ReadU16()
	ref, err := pool.ResolveMethod(idx, lib, virtualCall)
	if err != nil {
		return Value{}, false, err
	}

	target := ref.MethodIndex
	if virtualCall {
		recv := frame.Peek(ref.ArgumentCount - 1)
		if recv.Kind == KindNull || recv.Ref == nil {
			return Value{}, false, &Error{Kind: NullReference, Context: "invokevirtual"}
		}
		target = recv.Ref.DispatchVirtual(lib, ref.VirtualIndex)
	}

	if _, _, err := interp.methodTable.Invoke(target, frame.stack); err != nil {
		return Value{}, false, err
	}
	return Value{}, false, nil
}

func (interp *Interpreter) execNew(frame *Frame, pool *ConstantPool, lib *ClassLibrary) (Value, bool, error) {
	idx := frame.ReadU16()
	name, err := pool.ClassName(idx)
	if err != nil {
		return Value{}, false, err
	}
	cls, err := lib.Load(name)
	if err != nil {
		return Value{}, false, fmt.Errorf("new %s: %w", name, err)
	}
	inst := interp.heap.Instantiate(cls)
	frame.Push(RefValue(inst))
	return Value{}, false, nil
}

// compareInt64 implements LCMP's +1/0/-1 mapping.
func compareInt64(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// compareFloat implements FCMPx/DCMPx's +1/0/-1 mapping; nanResult is
// the value returned when either operand is NaN (+1 for the G variants,
// -1 for the L variants), per spec.md §4.9 and §8.
func compareFloat(a, b float64, nanResult int32) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
