package runtime

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// StaticMethodInfo is a class's static_methods map entry (spec.md §3).
type StaticMethodInfo struct {
	MethodIndex MethodIndex
	Argc        int
}

// VirtualMethodInfo is a class's virtual_methods map entry (spec.md §3).
type VirtualMethodInfo struct {
	MethodIndex  MethodIndex
	VirtualIndex int
	Argc         int
}

// Class owns everything about one loaded class: its constant pool, field
// layouts, static storage, dispatch table, and method maps (spec.md §3,
// §4.4). Once appended to a ClassLibrary its Index never changes, and its
// instance/static layouts, method maps, and dispatch table never change
// either — only the constant pool's entries and the method table's
// call_table slots mutate after construction.
type Class struct {
	Index      int
	Name       string
	SuperIndex int // -1 for a root class
	Pool       *ConstantPool

	InstanceLayout    *FieldLayout
	StaticLayout      *FieldLayout
	InstanceConstants map[string]*classfile.ConstantValue
	StaticConstants   map[string]*classfile.ConstantValue

	StaticMethods  map[string]StaticMethodInfo
	VirtualMethods map[string]VirtualMethodInfo

	staticOffset                   int
	dispatchOffset, dispatchLength int

	Initialized bool
}

// FindField looks up a field by name across both the instance and static
// layouts. The instance layout already carries every ancestor's fields at
// their original offsets (the field-layout inheritance invariant); the
// static layout holds only this class's own static fields.
func (c *Class) FindField(name string) (slot fieldSlot, isStatic bool, ok bool) {
	if slot, ok := c.InstanceLayout.Offset(name); ok {
		return slot, false, true
	}
	if slot, ok := c.StaticLayout.Offset(name); ok {
		return slot, true, true
	}
	return fieldSlot{}, false, false
}

// DispatchTable returns this class's view into the library's shared
// dispatch-table region.
func (c *Class) DispatchTable(lib *ClassLibrary) []MethodIndex {
	return lib.dispatchRegion[c.dispatchOffset : c.dispatchOffset+c.dispatchLength]
}

// staticBytes returns this class's view into the library's shared
// static-field byte region.
func (c *Class) staticBytes(lib *ClassLibrary) []byte {
	return lib.staticBytes[c.staticOffset : c.staticOffset+c.StaticLayout.TotalBytes]
}

// GetStaticField reads the value at a static field slot.
func (c *Class) GetStaticField(lib *ClassLibrary, slot fieldSlot) Value {
	return readValueAt(c.staticBytes(lib), slot.Offset, slot.Type, lib.heap)
}

// SetStaticField writes the value at a static field slot.
func (c *Class) SetStaticField(lib *ClassLibrary, slot fieldSlot, v Value) {
	writeValueAt(c.staticBytes(lib), slot.Offset, slot.Type, v)
}

// constructClass builds a Class from its descriptor and (possibly nil)
// parent, registering its methods with lib's method table and carving
// its static bytes and dispatch-table entries out of lib's shared
// regions, per spec.md §4.4. It does not append the class to the
// library or run <clinit>; ClassLibrary.Load does both.
func constructClass(lib *ClassLibrary, name string, cd *classfile.ClassDescriptor, parent *Class) (*Class, error) {
	c := &Class{
		Name:              name,
		SuperIndex:        -1,
		Pool:              newConstantPool(cd.ConstantPool),
		InstanceConstants: map[string]*classfile.ConstantValue{},
		StaticConstants:   map[string]*classfile.ConstantValue{},
		StaticMethods:     map[string]StaticMethodInfo{},
		VirtualMethods:    map[string]VirtualMethodInfo{},
	}
	if parent != nil {
		c.SuperIndex = parent.Index
		for k, v := range parent.InstanceConstants {
			c.InstanceConstants[k] = v
		}
		for k, v := range parent.StaticMethods {
			c.StaticMethods[k] = v
		}
		for k, v := range parent.VirtualMethods {
			c.VirtualMethods[k] = v
		}
	}

	var staticFields, instanceFields []classfile.FieldDescriptor
	for _, f := range cd.Fields {
		if f.IsStatic() {
			staticFields = append(staticFields, f)
			if f.ConstantValue != nil {
				c.StaticConstants[f.Name] = f.ConstantValue
			}
		} else {
			instanceFields = append(instanceFields, f)
			if f.ConstantValue != nil {
				c.InstanceConstants[f.Name] = f.ConstantValue
			}
		}
	}

	// 1. Static fields: a fresh layout per class (statics are never
	// inherited storage — a subclass's static fields live in their own
	// region, looked up only through the declaring class).
	c.StaticLayout = LayoutFields(nil, staticFields)
	c.staticOffset = len(lib.staticBytes)
	lib.staticBytes = append(lib.staticBytes, make([]byte, c.StaticLayout.TotalBytes)...)
	for name, cv := range c.StaticConstants {
		slot, ok := c.StaticLayout.Offset(name)
		if !ok {
			continue
		}
		writeConstant(lib.staticBytes, c.staticOffset+slot.Offset, slot.Type, cv)
	}

	// 2. Instance fields: packed on top of the parent's instance layout.
	var parentInstanceLayout *FieldLayout
	if parent != nil {
		parentInstanceLayout = parent.InstanceLayout
	}
	c.InstanceLayout = LayoutFields(parentInstanceLayout, instanceFields)

	// 3 & 4. Methods: static methods are simply appended; virtual
	// methods either override an inherited dispatch slot or append a
	// new one, and a newly-declared abstract method reserves neither.
	dispatchTable := []MethodIndex{}
	if parent != nil {
		dispatchTable = append(dispatchTable, parent.DispatchTable(lib)...)
	}

	for i := range cd.Methods {
		m := &cd.Methods[i]
		data := &MethodData{
			Name:          m.Name,
			MaxStack:      0,
			MaxLocals:     0,
			OwningClass:   -1, // patched in below once c.Index is known
			ArgumentCount: m.ArgumentCount,
			ReturnType:    m.Return,
			IsStatic:      m.IsStatic(),
		}
		if m.Code != nil {
			data.Bytecode = m.Code.Code
			data.MaxStack = int(m.Code.MaxStack)
			data.MaxLocals = int(m.Code.MaxLocals)
		}

		if m.IsStatic() {
			mi := lib.methodTable.Append(data)
			c.StaticMethods[m.Name] = StaticMethodInfo{MethodIndex: mi, Argc: m.ArgumentCount}
			continue
		}

		existing, hasInherited := c.VirtualMethods[m.Name]
		if m.IsAbstract() {
			// Reserves neither a method_index nor a dispatch slot; if a
			// concrete ancestor already provided one, it stays exactly
			// as inherited.
			continue
		}
		mi := lib.methodTable.Append(data)
		if hasInherited {
			dispatchTable[existing.VirtualIndex] = mi
			c.VirtualMethods[m.Name] = VirtualMethodInfo{MethodIndex: mi, VirtualIndex: existing.VirtualIndex, Argc: m.ArgumentCount}
		} else {
			vIndex := len(dispatchTable)
			dispatchTable = append(dispatchTable, mi)
			c.VirtualMethods[m.Name] = VirtualMethodInfo{MethodIndex: mi, VirtualIndex: vIndex, Argc: m.ArgumentCount}
		}
	}

	// 5. Copy the finished dispatch table into the library's shared region.
	c.dispatchOffset = len(lib.dispatchRegion)
	lib.dispatchRegion = append(lib.dispatchRegion, dispatchTable...)
	c.dispatchLength = len(dispatchTable)

	return c, nil
}

// bindOwningClass patches OwningClass into every MethodData this class
// registered, once its own Index is known (constructClass runs before
// the class has a library-assigned index).
func (c *Class) bindOwningClass(lib *ClassLibrary) {
	for _, info := range c.StaticMethods {
		if d := lib.methodTable.Data(info.MethodIndex); d.OwningClass == -1 {
			d.OwningClass = c.Index
		}
	}
	for _, info := range c.VirtualMethods {
		if d := lib.methodTable.Data(info.MethodIndex); d.OwningClass == -1 {
			d.OwningClass = c.Index
		}
	}
}

func (c *Class) String() string {
	return fmt.Sprintf("Class{%s #%d}", c.Name, c.Index)
}
