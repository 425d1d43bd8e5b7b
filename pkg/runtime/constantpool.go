package runtime

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// ResolvedFieldRef is the resolved form of a CONSTANT_Fieldref entry
// (spec.md §3): which class declares the field, and its layout slot.
type ResolvedFieldRef struct {
	ClassIndex int
	Slot       fieldSlot
	IsStatic   bool
}

// ResolvedMethodRef is the resolved form of a CONSTANT_Methodref entry.
// VirtualIndex is -1 for a statically-resolved call (INVOKESTATIC or
// INVOKESPECIAL, which both always call MethodIndex directly); it is the
// dispatch-table slot for an INVOKEVIRTUAL call site.
type ResolvedMethodRef struct {
	ClassIndex    int
	MethodIndex   MethodIndex
	VirtualIndex  int
	IsVirtual     bool
	ArgumentCount int
}

// ConstantPool wraps a decoded class's raw constant pool with lazy,
// monotonic in-place resolution of field and method references (spec.md
// §3, §4.2). Resolution never reverts: once cp.fields[i] (or
// cp.methods[i]) is set, every later call with the same index returns
// the cached value without re-resolving.
type ConstantPool struct {
	raw     []classfile.RawConstant
	fields  []*ResolvedFieldRef
	methods []*ResolvedMethodRef
}

func newConstantPool(raw []classfile.RawConstant) *ConstantPool {
	return &ConstantPool{
		raw:     raw,
		fields:  make([]*ResolvedFieldRef, len(raw)),
		methods: make([]*ResolvedMethodRef, len(raw)),
	}
}

func (cp *ConstantPool) checkIndex(i uint16) error {
	if int(i) >= len(cp.raw) || cp.raw[i] == nil {
		return &Error{Kind: InvalidConstantPoolIndex, Context: fmt.Sprintf("%d", i)}
	}
	return nil
}

// Utf8 returns the Utf8 string at index i.
func (cp *ConstantPool) Utf8(i uint16) (string, error) { return classfile.GetUtf8(cp.raw, i) }

// ClassName returns the class name a CONSTANT_Class entry refers to.
func (cp *ConstantPool) ClassName(i uint16) (string, error) { return classfile.GetClassName(cp.raw, i) }

// LoadableConstant returns the value an LDC/LDC_W/LDC2_W instruction
// would push for pool index i: an int, float, long or double. A
// CONSTANT_String, like any other entry, fails with NotLoadable — this
// system has no String object representation.
func (cp *ConstantPool) LoadableConstant(i uint16) (Value, error) {
	if err := cp.checkIndex(i); err != nil {
		return Value{}, err
	}
	switch c := cp.raw[i].(type) {
	case *classfile.ConstantInteger:
		return IntValue(c.Value), nil
	case *classfile.ConstantFloat:
		return FloatValue(c.Value), nil
	case *classfile.ConstantLong:
		return LongValue(c.Value), nil
	case *classfile.ConstantDouble:
		return DoubleValue(c.Value), nil
	case *classfile.ConstantString:
		return Value{}, &Error{Kind: NotLoadable, Context: fmt.Sprintf("CONSTANT_String at index %d (string objects are out of scope)", i)}
	default:
		return Value{}, &Error{Kind: NotLoadable, Context: fmt.Sprintf("index %d (tag=%d)", i, cp.raw[i].Tag())}
	}
}

// ResolveField resolves a CONSTANT_Fieldref entry, recursively loading
// its declaring class if necessary.
func (cp *ConstantPool) ResolveField(i uint16, lib *ClassLibrary) (*ResolvedFieldRef, error) {
	if err := cp.checkIndex(i); err != nil {
		return nil, err
	}
	if cp.fields[i] != nil {
		return cp.fields[i], nil
	}
	fref, ok := cp.raw[i].(*classfile.ConstantFieldref)
	if !ok {
		return nil, &Error{Kind: NotAFieldref, Context: fmt.Sprintf("index %d", i)}
	}
	className, err := classfile.GetClassName(cp.raw, fref.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Fieldref class: %w", err)
	}
	nat, ok := cp.raw[fref.NameAndTypeIndex].(*classfile.ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("Fieldref name_and_type_index %d is not NameAndType", fref.NameAndTypeIndex)
	}
	fieldName, err := classfile.GetUtf8(cp.raw, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Fieldref name: %w", err)
	}

	cls, err := lib.Load(className)
	if err != nil {
		return nil, fmt.Errorf("loading %s for field resolution: %w", className, err)
	}
	slot, isStatic, ok := cls.FindField(fieldName)
	if !ok {
		return nil, &Error{Kind: FieldNotFound, Context: fmt.Sprintf("%s.%s", className, fieldName)}
	}

	resolved := &ResolvedFieldRef{ClassIndex: cls.Index, Slot: slot, IsStatic: isStatic}
	cp.fields[i] = resolved
	return resolved, nil
}

// ResolveMethod resolves a CONSTANT_Methodref entry. When virtualCall is
// true (INVOKEVIRTUAL) it requires the target to be in the declaring
// class's virtual_methods map and records its dispatch-table slot; when
// false (INVOKESTATIC, INVOKESPECIAL) it accepts either a static method
// or a virtual one (a constructor, or any other statically-targeted
// call) and always resolves to that method's own MethodIndex directly,
// never through a dispatch table.
//
// The cache below is keyed only by pool index, not by virtualCall: a
// given methodref is only ever reached by one invoke opcode in
// well-formed bytecode (the class file format ties an invocation's
// opcode to its operand at compile time), so the same index is never
// resolved both ways.
func (cp *ConstantPool) ResolveMethod(i uint16, lib *ClassLibrary, virtualCall bool) (*ResolvedMethodRef, error) {
	if err := cp.checkIndex(i); err != nil {
		return nil, err
	}
	if cp.methods[i] != nil {
		return cp.methods[i], nil
	}
	mref, ok := cp.raw[i].(*classfile.ConstantMethodref)
	if !ok {
		return nil, &Error{Kind: NotAMethodref, Context: fmt.Sprintf("index %d", i)}
	}
	className, err := classfile.GetClassName(cp.raw, mref.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Methodref class: %w", err)
	}
	nat, ok := cp.raw[mref.NameAndTypeIndex].(*classfile.ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("Methodref name_and_type_index %d is not NameAndType", mref.NameAndTypeIndex)
	}
	methodName, err := classfile.GetUtf8(cp.raw, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Methodref name: %w", err)
	}

	cls, err := lib.Load(className)
	if err != nil {
		return nil, fmt.Errorf("loading %s for method resolution: %w", className, err)
	}

	var resolved *ResolvedMethodRef
	if virtualCall {
		vm, ok := cls.VirtualMethods[methodName]
		if !ok {
			return nil, &Error{Kind: MethodNotFound, Context: fmt.Sprintf("%s.%s (virtual)", className, methodName)}
		}
		resolved = &ResolvedMethodRef{ClassIndex: cls.Index, MethodIndex: vm.MethodIndex, VirtualIndex: vm.VirtualIndex, IsVirtual: true, ArgumentCount: vm.Argc}
	} else if sm, ok := cls.StaticMethods[methodName]; ok {
		resolved = &ResolvedMethodRef{ClassIndex: cls.Index, MethodIndex: sm.MethodIndex, VirtualIndex: -1, ArgumentCount: sm.Argc}
	} else if vm, ok := cls.VirtualMethods[methodName]; ok {
		resolved = &ResolvedMethodRef{ClassIndex: cls.Index, MethodIndex: vm.MethodIndex, VirtualIndex: -1, ArgumentCount: vm.Argc}
	} else {
		return nil, &Error{Kind: MethodNotFound, Context: fmt.Sprintf("%s.%s", className, methodName)}
	}

	cp.methods[i] = resolved
	return resolved, nil
}
