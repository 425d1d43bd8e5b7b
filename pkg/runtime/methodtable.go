package runtime

import "github.com/daimatz/gojvm/pkg/classfile"

// MethodIndex is a stable, monotonically assigned index into a
// MethodTable. Once assigned it never changes, even when the method's
// implementation is later recompiled.
type MethodIndex int

// CallKind names which representation a method entry currently holds.
type CallKind int

const (
	Interpreted CallKind = iota
	NativeCompiled
)

// MethodData is the immutable half of a method entry (spec.md §3): it
// never changes after the method is first appended, even across
// recompilation.
type MethodData struct {
	Name          string
	Bytecode      []byte
	MaxStack      int
	MaxLocals     int
	OwningClass   int
	ArgumentCount int
	ReturnType    classfile.JvmType
	IsStatic      bool
}

// CallFunc is the shape every call_table slot holds: an entry point
// callable against the shared stack, with argc values already pushed by
// the caller. This is this system's stand-in for "a 64-bit function
// pointer" — both the interpreter's trampoline and a compiled method's
// native entry (pkg/compiler) present this same signature, which is what
// lets one call the other without a translation stub.
type CallFunc func(stack *Stack) (Value, bool, error)

type methodEntry struct {
	data *MethodData
	kind CallKind
}

// MethodTable is the append-only registry of method implementations,
// paired with a parallel call_table of function values (spec.md §4.7).
// resolve(mi) — here, Invoke — is the only address any caller, interpreted
// or compiled, ever uses to reach a method; recompiling a method rewrites
// only its call_table slot, which is what makes recompilation visible to
// every existing caller immediately.
type MethodTable struct {
	entries   []*methodEntry
	callTable []CallFunc
	interp    *Interpreter // bound after both exist; see NewInterpreter
}

// NewMethodTable returns an empty method table. Its interpreter
// back-reference is nil until bindInterpreter is called, which
// NewInterpreter does as its last step — methods may be appended before
// that point (class construction happens before any code runs), they
// simply cannot be invoked yet.
func NewMethodTable() *MethodTable {
	return &MethodTable{}
}

func (mt *MethodTable) bindInterpreter(i *Interpreter) { mt.interp = i }

// Append assigns the next MethodIndex, stores data with an Interpreted
// implementation, and wires the call_table slot to a trampoline closure
// that dispatches to the interpreter for this specific method index.
func (mt *MethodTable) Append(data *MethodData) MethodIndex {
	mi := MethodIndex(len(mt.entries))
	mt.entries = append(mt.entries, &methodEntry{data: data, kind: Interpreted})
	mt.callTable = append(mt.callTable, func(stack *Stack) (Value, bool, error) {
		return mt.interp.runTrampoline(mi, stack)
	})
	return mi
}

// SetCompiled overwrites mi's call_table slot with a native entry point,
// atomically (from the point of view of this single-threaded system) and
// without touching Data(mi).
func (mt *MethodTable) SetCompiled(mi MethodIndex, call CallFunc) {
	mt.entries[mi].kind = NativeCompiled
	mt.callTable[mi] = call
}

// Count returns the number of methods appended so far, i.e. one past the
// highest valid MethodIndex. cmd/jvmrun's ahead-of-demand compiler walks
// 0..Count() to compile every method registered so far.
func (mt *MethodTable) Count() int { return len(mt.entries) }

// Data returns the immutable method data for mi.
func (mt *MethodTable) Data(mi MethodIndex) *MethodData { return mt.entries[mi].data }

// Kind reports whether mi currently runs interpreted or compiled.
func (mt *MethodTable) Kind(mi MethodIndex) CallKind { return mt.entries[mi].kind }

// Invoke calls through call_table[mi] — the single indirection every
// invocation opcode and every compiled call instruction goes through.
func (mt *MethodTable) Invoke(mi MethodIndex, stack *Stack) (Value, bool, error) {
	return mt.callTable[mi](stack)
}
