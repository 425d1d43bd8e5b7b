//go:build amd64

package compiler

import (
	"fmt"
	"math"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// JVM opcode bytes this compiler knows how to translate. Kept as local
// constants (rather than importing unexported ones from pkg/runtime)
// since these are fixed values from the class-file format itself, not
// an internal choice either package owns.
const (
	opIconstM1 = 0x02
	opIconst0  = 0x03
	opIconst5  = 0x08
	opLconst0  = 0x09
	opLconst1  = 0x0A
	opFconst0  = 0x0B
	opFconst1  = 0x0C
	opFconst2  = 0x0D
	opDconst0  = 0x0E
	opDconst1  = 0x0F
	opBipush   = 0x10
	opSipush   = 0x11
	opIload    = 0x15
	opLload    = 0x16
	opFload    = 0x17
	opDload    = 0x18
	opIload0   = 0x1A
	opIload3   = 0x1D
	opLload0   = 0x1E
	opLload3   = 0x21
	opFload0   = 0x22
	opFload3   = 0x25
	opDload0   = 0x26
	opDload3   = 0x29
	opIstore   = 0x36
	opLstore   = 0x37
	opFstore   = 0x38
	opDstore   = 0x39
	opIstore0  = 0x3B
	opIstore3  = 0x3E
	opLstore0  = 0x3F
	opLstore3  = 0x42
	opFstore0  = 0x43
	opFstore3  = 0x46
	opDstore0  = 0x47
	opDstore3  = 0x4A
	opIadd     = 0x60
	opLadd     = 0x61
	opFadd     = 0x62
	opDadd     = 0x63
	opIsub     = 0x64
	opLsub     = 0x65
	opFsub     = 0x66
	opDsub     = 0x67
	opImul     = 0x68
	opLmul     = 0x69
	opFmul     = 0x6A
	opDmul     = 0x6B
	opIdiv     = 0x6C
	opLdiv     = 0x6D
	opFdiv     = 0x6E
	opDdiv     = 0x6F
	opIrem     = 0x70
	opLrem     = 0x71
	opIneg     = 0x74
	opLneg     = 0x75
	opFneg     = 0x76
	opDneg     = 0x77
	opIshl     = 0x78
	opLshl     = 0x79
	opIshr     = 0x7A
	opLshr     = 0x7B
	opIushr    = 0x7C
	opLushr    = 0x7D
	opIand     = 0x7E
	opLand     = 0x7F
	opIor      = 0x80
	opLor      = 0x81
	opIxor     = 0x82
	opLxor     = 0x83
	opIinc     = 0x84
	opI2l      = 0x85
	opL2i      = 0x88
	opIfeq     = 0x99
	opIfne     = 0x9A
	opIflt     = 0x9B
	opIfge     = 0x9C
	opIfgt     = 0x9D
	opIfle     = 0x9E
	opIfIcmpeq = 0x9F
	opIfIcmpne = 0xA0
	opIfIcmplt = 0xA1
	opIfIcmpge = 0xA2
	opIfIcmpgt = 0xA3
	opIfIcmple = 0xA4
	opGoto     = 0xA7
	opIreturn  = 0xAC
	opLreturn  = 0xAD
	opFreturn  = 0xAE
	opDreturn  = 0xAF
	opReturn   = 0xB1
)

// branchPatch records a not-yet-resolved jump target: targetPC is the
// JVM bytecode offset, resolved against pcToProg once the whole method
// has been walked (a forward branch's target hasn't been emitted yet
// when the jump instruction itself is).
type branchPatch struct {
	prog     *obj.Prog
	targetPC int
}

// codeGen walks one method's bytecode exactly once, in bytecode order,
// emitting one or more obj.Prog per opcode. depth is the compile-time
// evaluation-stack depth in slot units (matching runtime.Stack's
// 2-slots-per-wide convention) — valid because a verifiable method's
// stack depth at any offset is path-independent, so a single linear
// forward pass computes it correctly regardless of which branch most
// recently reached that offset (spec.md explicitly doesn't verify
// bytecode; this relies on the input already being well-formed, same
// trust assumption the interpreter makes).
type codeGen struct {
	builder         asmBuilder
	code            []byte
	pc              int
	depth           int
	maxLocals       int
	pcToProg        map[int]*obj.Prog
	pendingBranches []branchPatch
}

// asmBuilder is the subset of *asm.Builder this file uses; kept as a
// named type only so codegen_amd64.go doesn't import asm directly twice.
type asmBuilder = interface {
	NewProg() *obj.Prog
	AddInstruction(p *obj.Prog)
}

func (g *codeGen) newProg() *obj.Prog {
	return g.builder.NewProg()
}

func (g *codeGen) add(p *obj.Prog) {
	g.builder.AddInstruction(p)
}

func (g *codeGen) readU8() uint8 {
	v := g.code[g.pc]
	g.pc++
	return v
}
func (g *codeGen) readI8() int8 {
	return int8(g.readU8())
}
func (g *codeGen) readU16() uint16 {
	v := uint16(g.code[g.pc])<<8 | uint16(g.code[g.pc+1])
	g.pc += 2
	return v
}
func (g *codeGen) readI16() int16 {
	return int16(g.readU16())
}

// localOffset returns the byte offset of local slot i from frameBaseReg.
func (g *codeGen) localOffset(i int) int64 { return int64(i) * slotSize }

// evalOffset returns the byte offset of the eval-stack slot at the given
// 0-based depth (slots below it are already pushed).
func (g *codeGen) evalOffset(depthBelowTop int) int64 {
	return int64(g.maxLocals)*slotSize + int64(depthBelowTop)*slotSize
}

// emit translates one opcode starting at g.pc (already advanced past the
// opcode byte itself). It returns the first obj.Prog emitted for this
// opcode (used as a branch-target anchor) or nil if nothing was emitted
// for this opcode, and an error if op is outside the translatable
// subset.
func (g *codeGen) emit(op byte) (*obj.Prog, error) {
	switch {
	case op == opIconstM1:
		return g.pushConstInt(-1), nil
	case op >= opIconst0 && op <= opIconst5:
		return g.pushConstInt(int32(op) - int32(opIconst0)), nil
	case op == opLconst0 || op == opLconst1:
		return g.pushConstLong(int64(op) - int64(opLconst0)), nil
	case op >= opFconst0 && op <= opFconst2:
		return g.pushConstFloat(float32(int(op) - opFconst0)), nil
	case op == opDconst0 || op == opDconst1:
		return g.pushConstDouble(float64(int(op) - opDconst0)), nil
	case op == opBipush:
		return g.pushConstInt(int32(g.readI8())), nil
	case op == opSipush:
		return g.pushConstInt(int32(g.readI16())), nil

	case op == opIload || op == opFload:
		return g.loadLocal32(int(g.readU8())), nil
	case op >= opIload0 && op <= opIload3:
		return g.loadLocal32(int(op) - opIload0), nil
	case op >= opFload0 && op <= opFload3:
		return g.loadLocal32(int(op) - opFload0), nil
	case op == opLload || op == opDload:
		return g.loadLocal64(int(g.readU8())), nil
	case op >= opLload0 && op <= opLload3:
		return g.loadLocal64(int(op) - opLload0), nil
	case op >= opDload0 && op <= opDload3:
		return g.loadLocal64(int(op) - opDload0), nil

	case op == opIstore || op == opFstore:
		return g.storeLocal32(int(g.readU8())), nil
	case op >= opIstore0 && op <= opIstore3:
		return g.storeLocal32(int(op) - opIstore0), nil
	case op >= opFstore0 && op <= opFstore3:
		return g.storeLocal32(int(op) - opFstore0), nil
	case op == opLstore || op == opDstore:
		return g.storeLocal64(int(g.readU8())), nil
	case op >= opLstore0 && op <= opLstore3:
		return g.storeLocal64(int(op) - opLstore0), nil
	case op >= opDstore0 && op <= opDstore3:
		return g.storeLocal64(int(op) - opDstore0), nil

	case op == opIinc:
		idx := int(g.readU8())
		delta := int32(g.readI8())
		return g.iinc(idx, delta), nil

	case op == opIadd:
		return g.binInt32(x86.AADDL), nil
	case op == opIsub:
		return g.binInt32(x86.ASUBL), nil
	case op == opImul:
		return g.binInt32(x86.AIMULL), nil
	case op == opIand:
		return g.binInt32(x86.AANDL), nil
	case op == opIor:
		return g.binInt32(x86.AORL), nil
	case op == opIxor:
		return g.binInt32(x86.AXORL), nil
	case op == opIdiv:
		return g.divInt32(false), nil
	case op == opIrem:
		return g.divInt32(true), nil

	case op == opLadd:
		return g.binInt64(x86.AADDQ), nil
	case op == opLsub:
		return g.binInt64(x86.ASUBQ), nil
	case op == opLmul:
		return g.binInt64(x86.AIMULQ), nil
	case op == opLand:
		return g.binInt64(x86.AANDQ), nil
	case op == opLor:
		return g.binInt64(x86.AORQ), nil
	case op == opLxor:
		return g.binInt64(x86.AXORQ), nil
	case op == opLdiv:
		return g.divInt64(false), nil
	case op == opLrem:
		return g.divInt64(true), nil

	case op == opFadd:
		return g.binFloat32(x86.AADDSS), nil
	case op == opFsub:
		return g.binFloat32(x86.ASUBSS), nil
	case op == opFmul:
		return g.binFloat32(x86.AMULSS), nil
	case op == opFdiv:
		return g.binFloat32(x86.ADIVSS), nil

	case op == opDadd:
		return g.binFloat64(x86.AADDSD), nil
	case op == opDsub:
		return g.binFloat64(x86.ASUBSD), nil
	case op == opDmul:
		return g.binFloat64(x86.AMULSD), nil
	case op == opDdiv:
		return g.binFloat64(x86.ADIVSD), nil

	case op == opIneg:
		return g.negInt32(), nil
	case op == opLneg:
		return g.negInt64(), nil
	case op == opFneg:
		return g.negFloat32(), nil
	case op == opDneg:
		return g.negFloat64(), nil

	case op == opIshl:
		return g.shiftInt32(x86.ASHLL), nil
	case op == opIshr:
		return g.shiftInt32(x86.ASARL), nil
	case op == opIushr:
		return g.shiftInt32(x86.ASHRL), nil
	case op == opLshl:
		return g.shiftInt64(x86.ASHLQ), nil
	case op == opLshr:
		return g.shiftInt64(x86.ASARQ), nil
	case op == opLushr:
		return g.shiftInt64(x86.ASHRQ), nil

	case op == opI2l:
		return g.widenI2L(), nil
	case op == opL2i:
		return g.narrowL2I(), nil

	case op == opGoto:
		return g.jump(obj.AJMP, 0), nil
	case op == opIfeq:
		return g.ifUnary(x86.AJEQ), nil
	case op == opIfne:
		return g.ifUnary(x86.AJNE), nil
	case op == opIflt:
		return g.ifUnary(x86.AJLT), nil
	case op == opIfge:
		return g.ifUnary(x86.AJGE), nil
	case op == opIfgt:
		return g.ifUnary(x86.AJGT), nil
	case op == opIfle:
		return g.ifUnary(x86.AJLE), nil
	case op == opIfIcmpeq:
		return g.ifBinary(x86.AJEQ), nil
	case op == opIfIcmpne:
		return g.ifBinary(x86.AJNE), nil
	case op == opIfIcmplt:
		return g.ifBinary(x86.AJLT), nil
	case op == opIfIcmpge:
		return g.ifBinary(x86.AJGE), nil
	case op == opIfIcmpgt:
		return g.ifBinary(x86.AJGT), nil
	case op == opIfIcmple:
		return g.ifBinary(x86.AJLE), nil

	case op == opIreturn || op == opFreturn:
		return g.returnSingle(), nil
	case op == opLreturn || op == opDreturn:
		return g.returnWide(), nil
	case op == opReturn:
		return g.returnVoid(), nil

	default:
		return nil, fmt.Errorf("opcode not in native subset")
	}
}

// --- constants ---

func (g *codeGen) pushConstInt(v int32) *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AMOVL
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(v)
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = frameBaseReg
	prog.To.Offset = g.evalOffset(g.depth) + offInt
	g.add(prog)
	g.depth++
	return prog
}

func (g *codeGen) pushConstLong(v int64) *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = v
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = frameBaseReg
	prog.To.Offset = g.evalOffset(g.depth) + offLong
	g.add(prog)
	g.depth += 2
	return prog
}

// pushConstFloat/Double route the literal through a scratch GP register
// as raw bits, since golang-asm has no direct float-immediate-to-memory
// move (same reasoning as the grounding file's movConstToRegister use
// for 64-bit constants).
func (g *codeGen) pushConstFloat(v float32) *obj.Prog {
	bits := int64(int32FromFloat32Bits(v))
	prog := g.movConstToReg(bits, x86.REG_AX)
	store := g.newProg()
	store.As = x86.AMOVL
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.evalOffset(g.depth) + offFloat
	g.add(store)
	g.depth++
	return prog
}

func (g *codeGen) pushConstDouble(v float64) *obj.Prog {
	bits := int64FromFloat64Bits(v)
	prog := g.movConstToReg(bits, x86.REG_AX)
	store := g.newProg()
	store.As = x86.AMOVQ
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.evalOffset(g.depth) + offDouble
	g.add(store)
	g.depth += 2
	return prog
}

func (g *codeGen) movConstToReg(val int64, reg int16) *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = val
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = reg
	g.add(prog)
	return prog
}

// --- locals ---

func (g *codeGen) loadLocal32(i int) *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AMOVL
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = frameBaseReg
	prog.From.Offset = g.localOffset(i) + offInt
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_AX
	g.add(prog)
	store := g.newProg()
	store.As = x86.AMOVL
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.evalOffset(g.depth) + offInt
	g.add(store)
	g.depth++
	return prog
}

func (g *codeGen) loadLocal64(i int) *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = frameBaseReg
	prog.From.Offset = g.localOffset(i) + offLong
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_AX
	g.add(prog)
	store := g.newProg()
	store.As = x86.AMOVQ
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.evalOffset(g.depth) + offLong
	g.add(store)
	g.depth += 2
	return prog
}

func (g *codeGen) storeLocal32(i int) *obj.Prog {
	g.depth--
	prog := g.newProg()
	prog.As = x86.AMOVL
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = frameBaseReg
	prog.From.Offset = g.evalOffset(g.depth) + offInt
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_AX
	g.add(prog)
	store := g.newProg()
	store.As = x86.AMOVL
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.localOffset(i) + offInt
	g.add(store)
	return prog
}

func (g *codeGen) storeLocal64(i int) *obj.Prog {
	g.depth -= 2
	prog := g.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = frameBaseReg
	prog.From.Offset = g.evalOffset(g.depth) + offLong
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_AX
	g.add(prog)
	store := g.newProg()
	store.As = x86.AMOVQ
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.localOffset(i) + offLong
	g.add(store)
	return prog
}

func (g *codeGen) iinc(idx int, delta int32) *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AADDL
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(delta)
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = frameBaseReg
	prog.To.Offset = g.localOffset(idx) + offInt
	g.add(prog)
	return prog
}

// --- arithmetic: load both operands to AX/CX, op, store to the new top ---

func (g *codeGen) binInt32(as obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVL, offInt, 1, x86.REG_CX)
	g.loadOperand(x86.AMOVL, offInt, 2, x86.REG_AX)
	op := g.newProg()
	op.As = as
	op.From.Type = obj.TYPE_REG
	op.From.Reg = x86.REG_CX
	op.To.Type = obj.TYPE_REG
	op.To.Reg = x86.REG_AX
	g.add(op)
	g.depth--
	g.storeResultReg(x86.AMOVL, offInt, x86.REG_AX)
	return first
}

func (g *codeGen) binInt64(as obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVQ, offLong, 2, x86.REG_CX)
	g.loadOperand(x86.AMOVQ, offLong, 4, x86.REG_AX)
	op := g.newProg()
	op.As = as
	op.From.Type = obj.TYPE_REG
	op.From.Reg = x86.REG_CX
	op.To.Type = obj.TYPE_REG
	op.To.Reg = x86.REG_AX
	g.add(op)
	g.depth -= 2
	g.storeResultRegAtDepth(x86.AMOVQ, offLong, x86.REG_AX, g.depth-2)
	return first
}

func (g *codeGen) binFloat32(as obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVSS, offFloat, 1, x86.REG_X1)
	g.loadOperand(x86.AMOVSS, offFloat, 2, x86.REG_X0)
	op := g.newProg()
	op.As = as
	op.From.Type = obj.TYPE_REG
	op.From.Reg = x86.REG_X1
	op.To.Type = obj.TYPE_REG
	op.To.Reg = x86.REG_X0
	g.add(op)
	g.depth--
	g.storeResultReg(x86.AMOVSS, offFloat, x86.REG_X0)
	return first
}

func (g *codeGen) binFloat64(as obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVSD, offDouble, 2, x86.REG_X1)
	g.loadOperand(x86.AMOVSD, offDouble, 4, x86.REG_X0)
	op := g.newProg()
	op.As = as
	op.From.Type = obj.TYPE_REG
	op.From.Reg = x86.REG_X1
	op.To.Type = obj.TYPE_REG
	op.To.Reg = x86.REG_X0
	g.add(op)
	g.depth -= 2
	g.storeResultRegAtDepth(x86.AMOVSD, offDouble, x86.REG_X0, g.depth-2)
	return first
}

// loadOperand loads the value field of the operand that starts
// slotsFromTop slots below the current depth into reg (1 = the top
// single-width value, 2 = the top wide value). slotsFromTop is measured
// before any pop this opcode performs; call it for the topmost operand
// (the second pushed operand, "b") first, passing 1 (or 2 for wide),
// then for the first-pushed operand ("a"), passing 2 (or 4).
func (g *codeGen) loadOperand(as obj.As, fieldOff int64, slotsFromTop int, reg int16) *obj.Prog {
	prog := g.newProg()
	prog.As = as
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = frameBaseReg
	prog.From.Offset = g.evalOffset(g.depth-slotsFromTop) + fieldOff
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = reg
	g.add(prog)
	return prog
}

func (g *codeGen) storeResultReg(as obj.As, fieldOff int64, reg int16) *obj.Prog {
	prog := g.newProg()
	prog.As = as
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = reg
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = frameBaseReg
	prog.To.Offset = g.evalOffset(g.depth-1) + fieldOff
	g.add(prog)
	return prog
}

// divInt32/divInt64 check the divisor against zero first; on a zero
// divisor they set AX to 0 (the jitcall trap status) and RET directly,
// skipping the normal method epilogue, so wrapNative can translate that
// into a runtime.DivisionByZero error instead of crashing.
func (g *codeGen) divInt32(rem bool) *obj.Prog {
	divisor := g.loadOperand(x86.AMOVL, offInt, 1, x86.REG_CX)
	g.loadOperand(x86.AMOVL, offInt, 2, x86.REG_AX)
	g.emitZeroCheckAndTrap32(x86.REG_CX)
	cdq := g.newProg()
	cdq.As = x86.ACDQ
	g.add(cdq)
	div := g.newProg()
	div.As = x86.AIDIVL
	div.From.Type = obj.TYPE_REG
	div.From.Reg = x86.REG_CX
	g.add(div)
	g.depth--
	resultReg := int16(x86.REG_AX)
	if rem {
		resultReg = x86.REG_DX
	}
	g.storeResultReg(x86.AMOVL, offInt, resultReg)
	return divisor
}

func (g *codeGen) divInt64(rem bool) *obj.Prog {
	divisor := g.loadOperand(x86.AMOVQ, offLong, 2, x86.REG_CX)
	g.loadOperand(x86.AMOVQ, offLong, 4, x86.REG_AX)
	g.emitZeroCheckAndTrap64(x86.REG_CX)
	cqo := g.newProg()
	cqo.As = x86.ACQO
	g.add(cqo)
	div := g.newProg()
	div.As = x86.AIDIVQ
	div.From.Type = obj.TYPE_REG
	div.From.Reg = x86.REG_CX
	g.add(div)
	g.depth -= 2
	resultReg := int16(x86.REG_AX)
	if rem {
		resultReg = x86.REG_DX
	}
	g.storeResultRegAtDepth(x86.AMOVQ, offLong, resultReg, g.depth-2)
	return divisor
}

func (g *codeGen) emitZeroCheckAndTrap32(reg int16) {
	cmp := g.newProg()
	cmp.As = x86.ACMPL
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = reg
	cmp.To.Type = obj.TYPE_CONST
	cmp.To.Offset = 0
	g.add(cmp)
	g.emitTrapIfEqual()
}

func (g *codeGen) emitZeroCheckAndTrap64(reg int16) {
	cmp := g.newProg()
	cmp.As = x86.ACMPQ
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = reg
	cmp.To.Type = obj.TYPE_CONST
	cmp.To.Offset = 0
	g.add(cmp)
	g.emitTrapIfEqual()
}

func (g *codeGen) emitTrapIfEqual() {
	jne := g.newProg()
	jne.As = x86.AJNE
	jne.To.Type = obj.TYPE_BRANCH
	g.add(jne)

	zero := g.newProg()
	zero.As = x86.AMOVQ
	zero.From.Type = obj.TYPE_CONST
	zero.From.Offset = 0
	zero.To.Type = obj.TYPE_REG
	zero.To.Reg = x86.REG_AX
	g.add(zero)
	ret := g.newProg()
	ret.As = obj.ARET
	g.add(ret)

	after := g.newProg()
	after.As = obj.ANOP
	g.add(after)
	jne.To.SetTarget(after)
}

// --- unary ---

func (g *codeGen) negInt32() *obj.Prog {
	prog := g.newProg()
	prog.As = x86.ANEGL
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = frameBaseReg
	prog.To.Offset = g.evalOffset(g.depth-1) + offInt
	g.add(prog)
	return prog
}

func (g *codeGen) negInt64() *obj.Prog {
	prog := g.newProg()
	prog.As = x86.ANEGQ
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = frameBaseReg
	prog.To.Offset = g.evalOffset(g.depth-2) + offLong
	g.add(prog)
	return prog
}

func (g *codeGen) negFloat32() *obj.Prog {
	g.loadOperand(x86.AMOVSS, offFloat, 1, x86.REG_X0)
	xor := g.newProg()
	xor.As = x86.AXORPS
	xor.From.Type = obj.TYPE_CONST
	xor.From.Offset = int64(int32(1) << 31)
	xor.To.Type = obj.TYPE_REG
	xor.To.Reg = x86.REG_X0
	g.add(xor)
	return g.storeResultRegAtDepth(x86.AMOVSS, offFloat, x86.REG_X0, g.depth-1)
}

func (g *codeGen) negFloat64() *obj.Prog {
	g.loadOperand(x86.AMOVSD, offDouble, 2, x86.REG_X0)
	xor := g.newProg()
	xor.As = x86.AXORPD
	xor.From.Type = obj.TYPE_CONST
	xor.From.Offset = int64(int64(1) << 63)
	xor.To.Type = obj.TYPE_REG
	xor.To.Reg = x86.REG_X0
	g.add(xor)
	return g.storeResultRegAtDepth(x86.AMOVSD, offDouble, x86.REG_X0, g.depth-2)
}

func (g *codeGen) storeResultRegAtDepth(as obj.As, fieldOff int64, reg int16, depthBelowTop int) *obj.Prog {
	prog := g.newProg()
	prog.As = as
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = reg
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = frameBaseReg
	prog.To.Offset = g.evalOffset(depthBelowTop) + fieldOff
	g.add(prog)
	return prog
}

// --- shifts ---

func (g *codeGen) shiftInt32(as obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVL, offInt, 1, x86.REG_CX)
	g.loadOperand(x86.AMOVL, offInt, 2, x86.REG_AX)
	mask := g.newProg()
	mask.As = x86.AANDL
	mask.From.Type = obj.TYPE_CONST
	mask.From.Offset = 0x1F
	mask.To.Type = obj.TYPE_REG
	mask.To.Reg = x86.REG_CX
	g.add(mask)
	op := g.newProg()
	op.As = as
	op.From.Type = obj.TYPE_REG
	op.From.Reg = x86.REG_CX
	op.To.Type = obj.TYPE_REG
	op.To.Reg = x86.REG_AX
	g.add(op)
	g.depth--
	g.storeResultReg(x86.AMOVL, offInt, x86.REG_AX)
	return first
}

func (g *codeGen) shiftInt64(as obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVL, offInt, 1, x86.REG_CX)
	g.loadOperand(x86.AMOVQ, offLong, 3, x86.REG_AX)
	mask := g.newProg()
	mask.As = x86.AANDL
	mask.From.Type = obj.TYPE_CONST
	mask.From.Offset = 0x3F
	mask.To.Type = obj.TYPE_REG
	mask.To.Reg = x86.REG_CX
	g.add(mask)
	op := g.newProg()
	op.As = as
	op.From.Type = obj.TYPE_REG
	op.From.Reg = x86.REG_CX
	op.To.Type = obj.TYPE_REG
	op.To.Reg = x86.REG_AX
	g.add(op)
	g.depth--
	g.storeResultRegAtDepth(x86.AMOVQ, offLong, x86.REG_AX, g.depth-2)
	return first
}

// --- conversions ---

func (g *codeGen) widenI2L() *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AMOVLQSX
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = frameBaseReg
	prog.From.Offset = g.evalOffset(g.depth-1) + offInt
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_AX
	g.add(prog)
	g.depth++ // int (1 slot) becomes long (2 slots)
	store := g.newProg()
	store.As = x86.AMOVQ
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.evalOffset(g.depth-2) + offLong
	g.add(store)
	return prog
}

func (g *codeGen) narrowL2I() *obj.Prog {
	prog := g.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = frameBaseReg
	prog.From.Offset = g.evalOffset(g.depth-2) + offLong
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_AX
	g.add(prog)
	g.depth-- // long (2 slots) becomes int (1 slot)
	store := g.newProg()
	store.As = x86.AMOVL
	store.From.Type = obj.TYPE_REG
	store.From.Reg = x86.REG_AX
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = frameBaseReg
	store.To.Offset = g.evalOffset(g.depth-1) + offInt
	g.add(store)
	return prog
}

// --- branches ---

func (g *codeGen) jump(as obj.As, _ int) *obj.Prog {
	offset := g.readI16PreAdvance()
	prog := g.newProg()
	prog.As = as
	prog.To.Type = obj.TYPE_BRANCH
	g.add(prog)
	g.pendingBranches = append(g.pendingBranches, branchPatch{prog: prog, targetPC: offset})
	return prog
}

// readI16PreAdvance reads the branch's signed 16-bit offset (the opcode
// byte has already been consumed by the caller's loop) and returns the
// absolute target PC: opcode's own PC + the signed offset.
func (g *codeGen) readI16PreAdvance() int {
	opcodePC := g.pc - 1
	off := g.readI16()
	return opcodePC + int(off)
}

func (g *codeGen) ifUnary(jcc obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVL, offInt, 1, x86.REG_AX)
	g.depth--
	cmp := g.newProg()
	cmp.As = x86.ACMPL
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = x86.REG_AX
	cmp.To.Type = obj.TYPE_CONST
	cmp.To.Offset = 0
	g.add(cmp)
	target := g.readI16PreAdvance()
	prog := g.newProg()
	prog.As = jcc
	prog.To.Type = obj.TYPE_BRANCH
	g.add(prog)
	g.pendingBranches = append(g.pendingBranches, branchPatch{prog: prog, targetPC: target})
	return first
}

func (g *codeGen) ifBinary(jcc obj.As) *obj.Prog {
	first := g.loadOperand(x86.AMOVL, offInt, 1, x86.REG_CX)
	g.loadOperand(x86.AMOVL, offInt, 2, x86.REG_AX)
	g.depth -= 2
	cmp := g.newProg()
	cmp.As = x86.ACMPL
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = x86.REG_AX
	cmp.To.Type = obj.TYPE_REG
	cmp.To.Reg = x86.REG_CX
	g.add(cmp)
	target := g.readI16PreAdvance()
	prog := g.newProg()
	prog.As = jcc
	prog.To.Type = obj.TYPE_BRANCH
	g.add(prog)
	g.pendingBranches = append(g.pendingBranches, branchPatch{prog: prog, targetPC: target})
	return first
}

// --- returns ---

func (g *codeGen) returnSingle() *obj.Prog {
	g.depth--
	return g.emitReturnCommon()
}

func (g *codeGen) returnWide() *obj.Prog {
	g.depth -= 2
	return g.emitReturnCommon()
}

// emitReturnCommon copies the Value at the (already-popped) top of the
// eval stack into local slot 0 — which Prepare guarantees is never read
// again once a return is reached, so it doubles as the return slot
// wrapNative reads via stack.SlotAt(frame.Base) — then sets the jitcall
// success status and returns.
func (g *codeGen) emitReturnCommon() *obj.Prog {
	copyWhole := g.newProg()
	copyWhole.As = x86.AMOVQ
	copyWhole.From.Type = obj.TYPE_MEM
	copyWhole.From.Reg = frameBaseReg
	copyWhole.From.Offset = g.evalOffset(g.depth)
	copyWhole.To.Type = obj.TYPE_REG
	copyWhole.To.Reg = x86.REG_AX
	g.add(copyWhole)
	g.copySlotWords()
	ok := g.newProg()
	ok.As = x86.AMOVQ
	ok.From.Type = obj.TYPE_CONST
	ok.From.Offset = 1
	ok.To.Type = obj.TYPE_REG
	ok.To.Reg = x86.REG_AX
	g.add(ok)
	ret := g.newProg()
	ret.As = obj.ARET
	g.add(ret)
	return copyWhole
}

// copySlotWords copies every 8-byte word of the Value at the popped top
// of stack into local slot 0, word by word (runtime.Value has no single
// machine-word representation, so it can't move in one instruction).
func (g *codeGen) copySlotWords() {
	src := g.evalOffset(g.depth)
	dst := int64(0)
	for w := int64(0); w < slotSize; w += 8 {
		load := g.newProg()
		load.As = x86.AMOVQ
		load.From.Type = obj.TYPE_MEM
		load.From.Reg = frameBaseReg
		load.From.Offset = src + w
		load.To.Type = obj.TYPE_REG
		load.To.Reg = x86.REG_AX
		g.add(load)
		store := g.newProg()
		store.As = x86.AMOVQ
		store.From.Type = obj.TYPE_REG
		store.From.Reg = x86.REG_AX
		store.To.Type = obj.TYPE_MEM
		store.To.Reg = frameBaseReg
		store.To.Offset = dst + w
		g.add(store)
	}
}

func (g *codeGen) returnVoid() *obj.Prog {
	ok := g.newProg()
	ok.As = x86.AMOVQ
	ok.From.Type = obj.TYPE_CONST
	ok.From.Offset = 1
	ok.To.Type = obj.TYPE_REG
	ok.To.Reg = x86.REG_AX
	g.add(ok)
	ret := g.newProg()
	ret.As = obj.ARET
	g.add(ret)
	return ok
}

func int32FromFloat32Bits(v float32) int32 {
	return int32(math.Float32bits(v))
}

func int64FromFloat64Bits(v float64) int64 {
	return int64(math.Float64bits(v))
}
