package runtime

import "encoding/binary"

// Heap is a single bump-allocated byte region (spec.md §3, §4.6). It
// never reclaims; instances live for the process's lifetime once
// allocated. Offset 0 is reserved so that a zero HeapIndex always means
// null, matching the "null is a distinguished zero" invariant.
type Heap struct {
	bytes []byte
}

// NewHeap returns an empty heap with its null-sentinel region reserved.
func NewHeap() *Heap {
	return &Heap{bytes: make([]byte, 8)}
}

// Instance is a typed view over one object's bytes in the heap: an
// 8-byte big-endian class tag followed by its packed field bytes.
type Instance struct {
	heap   *Heap
	Offset int // the HeapIndex this instance was allocated at
}

// ClassIndex reads the 8-byte class tag prefixing this instance's bytes.
func (inst *Instance) ClassIndex() int {
	return int(binary.BigEndian.Uint64(inst.heap.bytes[inst.Offset : inst.Offset+8]))
}

// GetField reads the value at the given field slot.
func (inst *Instance) GetField(slot fieldSlot) Value {
	base := inst.Offset + 8 + slot.Offset
	return readValueAt(inst.heap.bytes, base, slot.Type, inst.heap)
}

// SetField writes the value at the given field slot.
func (inst *Instance) SetField(slot fieldSlot, v Value) {
	base := inst.Offset + 8 + slot.Offset
	writeValueAt(inst.heap.bytes, base, slot.Type, v)
}

// DispatchVirtual reads the dispatch-table slot at virtualIndex for this
// instance's concrete class.
func (inst *Instance) DispatchVirtual(lib *ClassLibrary, virtualIndex int) MethodIndex {
	cls := lib.ClassAt(inst.ClassIndex())
	return cls.DispatchTable(lib)[virtualIndex]
}

// Instantiate bump-allocates a new instance of cls: an 8-byte class tag
// followed by cls's instance layout's bytes, zero-filled except where
// the class (or an ancestor) declares a field ConstantValue.
func (h *Heap) Instantiate(cls *Class) *Instance {
	start := len(h.bytes)
	total := 8 + cls.InstanceLayout.TotalBytes
	h.bytes = append(h.bytes, make([]byte, total)...)
	binary.BigEndian.PutUint64(h.bytes[start:start+8], uint64(cls.Index))

	inst := &Instance{heap: h, Offset: start}
	for name, cv := range cls.InstanceConstants {
		slot, ok := cls.InstanceLayout.Offset(name)
		if !ok {
			continue
		}
		writeConstant(h.bytes, start+8+slot.Offset, slot.Type, cv)
	}
	return inst
}

// Resolve reconstructs a typed view over an already-allocated instance.
// A zero index (null) resolves to a nil *Instance.
func (h *Heap) Resolve(index int) *Instance {
	if index == 0 {
		return nil
	}
	return &Instance{heap: h, Offset: index}
}
