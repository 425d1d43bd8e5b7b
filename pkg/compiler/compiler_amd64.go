//go:build amd64

// Package compiler implements the ahead-of-demand native-code compiler
// (spec.md §4.10): given a method already present in a runtime.MethodTable,
// translate its bytecode into host machine code and install it as that
// method's call_table entry, sharing the exact calling convention the
// interpreter's trampoline uses (runtime.CallFunc) so a compiled method
// and an interpreted one are interchangeable to every caller.
//
// This is a single-pass, register-light compiler: every operand lives in
// its shared-stack slot between opcodes (no cross-opcode register
// allocation), the same way the interpreter does, and it only translates
// a bounded subset of opcodes natively — straight-line arithmetic,
// locals, comparisons, branches and returns. An opcode outside that
// subset (field access, invocation, allocation, the stack-shuffle
// family, reference loads/stores) fails Compile with a
// runtime.NotNativelyCompilable error; the method simply keeps running
// interpreted, the same bail-to-fallback pattern the grounding file for
// this package uses for every wazeroir operation it doesn't yet lower.
package compiler

import (
	"fmt"
	"unsafe"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
	"golang.org/x/sys/unix"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/runtime"
)

// jitcall is implemented in asm_amd64.s. It calls into the machine code at
// codeSegment (the address of a mmap'd PROT_EXEC region) with basePtr — a
// pointer already advanced to the callee's frame base, i.e.
// stack.SlotsPointer() + frame.Base*slotSize — loaded into the reserved
// base register (R12), and returns a status word: 1 if the generated
// code ran to a normal return opcode, 0 if it trapped (currently, only
// possible trap is integer division by zero).
//
//go:noescape
func jitcall(codeSegment uintptr, basePtr uintptr) uintptr

// Reserved register: R12 holds the callee's frame-base byte address for
// the whole of a compiled method's execution, recomputed fresh on every
// call by the Go-side wrapper (never by the generated code itself).
// Grounded on other_examples' wazero JIT, which reserves R12/R14 the
// same way for its engine pointer and cached stack base.
const frameBaseReg = x86.REG_R12

var (
	slotSize     = int64(unsafe.Sizeof(runtime.Value{}))
	offKind      = int64(unsafe.Offsetof(runtime.Value{}.Kind))
	offInt       = int64(unsafe.Offsetof(runtime.Value{}.Int))
	offLong      = int64(unsafe.Offsetof(runtime.Value{}.Long))
	offFloat     = int64(unsafe.Offsetof(runtime.Value{}.Float))
	offDouble    = int64(unsafe.Offsetof(runtime.Value{}.Double))
)

// Compile translates method mi's bytecode into host machine code and
// installs it as mi's call_table entry. It leaves mi untouched (still
// interpreted) and returns a *runtime.Error{Kind: NotNativelyCompilable}
// if the bytecode isn't fully within the translatable subset.
func Compile(mt *runtime.MethodTable, mi runtime.MethodIndex) error {
	data := mt.Data(mi)
	if data.Bytecode == nil {
		return &runtime.Error{Kind: runtime.NotNativelyCompilable, Context: "no bytecode (native or abstract method)"}
	}

	b, err := asm.NewBuilder("amd64", len(data.Bytecode)*4+64)
	if err != nil {
		return fmt.Errorf("creating assembler: %w", err)
	}
	g := &codeGen{builder: b, code: data.Bytecode, maxLocals: data.MaxLocals, pcToProg: map[int]*obj.Prog{}}

	for g.pc < len(g.code) {
		startPC := g.pc
		op := g.code[g.pc]
		g.pc++
		prog, err := g.emit(op)
		if err != nil {
			return &runtime.Error{Kind: runtime.NotNativelyCompilable, Context: fmt.Sprintf("opcode 0x%02X at pc=%d: %v", op, startPC, err)}
		}
		if prog != nil {
			g.pcToProg[startPC] = prog
		}
	}
	for _, patch := range g.pendingBranches {
		target, ok := g.pcToProg[patch.targetPC]
		if !ok {
			return &runtime.Error{Kind: runtime.NotNativelyCompilable, Context: fmt.Sprintf("branch target pc=%d has no instruction", patch.targetPC)}
		}
		patch.prog.To.SetTarget(target)
	}

	assembled, err := b.Assemble()
	if err != nil {
		return fmt.Errorf("assembling compiled method %s: %w", data.Name, err)
	}
	codeSegment, err := mmapExecutable(assembled)
	if err != nil {
		return fmt.Errorf("mapping compiled method %s executable: %w", data.Name, err)
	}

	mt.SetCompiled(mi, wrapNative(codeSegment, data))
	return nil
}

// wrapNative adapts the raw jitcall ABI to runtime.CallFunc: it performs
// the same frame-open/frame-close bookkeeping runtime.Prepare and
// Frame.Return do for an interpreted call, since generated code has no
// Go frame of its own to call through those directly.
func wrapNative(codeSegment []byte, data *runtime.MethodData) runtime.CallFunc {
	codeAddr := uintptr(unsafe.Pointer(&codeSegment[0]))
	hasReturn := data.ReturnType != classfile.Void
	returnSlots := data.ReturnType.Slots()
	returnKind := runtime.KindInt
	switch data.ReturnType {
	case classfile.Long:
		returnKind = runtime.KindLong
	case classfile.Float:
		returnKind = runtime.KindFloat
	case classfile.Double:
		returnKind = runtime.KindDouble
	}
	return func(stack *runtime.Stack) (runtime.Value, bool, error) {
		frame := runtime.Prepare(stack, data.ArgumentCount, data.MaxLocals, nil, nil)
		basePtr := uintptr(stack.SlotsPointer()) + uintptr(frame.Base)*uintptr(slotSize)
		status := jitcall(codeAddr, basePtr)
		if status == 0 {
			stack.SetSP(frame.Base)
			return runtime.Value{}, false, &runtime.Error{Kind: runtime.DivisionByZero, Context: "in compiled method " + data.Name}
		}
		result := *stack.SlotAt(frame.Base)
		stack.SetSP(frame.Base)
		if hasReturn {
			// emitReturnCommon copies the Value's raw words but never
			// stamps Kind, so the copied Kind is stale: set it from the
			// declared return type, and push by that type's slot count
			// so a long/double takes two slots on the caller's stack.
			result.Kind = returnKind
			if returnSlots == 2 {
				stack.PushWide(result)
			} else {
				stack.Push(result)
			}
		}
		return result, hasReturn, nil
	}
}

// mmapExecutable copies code into an anonymous PROT_EXEC mapping. Go's
// heap is never executable, so the assembled bytes must live in their
// own region; this mapping is intentionally leaked for the process
// lifetime, same as every other compiled method's code segment (methods
// are never unloaded, matching the append-only ClassLibrary/MethodTable
// they belong to).
func mmapExecutable(code []byte) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap anonymous: %w", err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return nil, fmt.Errorf("mprotect exec: %w", err)
	}
	return mem, nil
}
