package runtime

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// TestLayoutFieldsInheritance exercises spec.md §8's concrete scenario 2:
// a parent declaring long a; byte b (16 bytes with a 7-byte tail pad) and
// a child adding int c; short d on top should total 24 bytes, with the
// parent's fields keeping their original offsets.
func TestLayoutFieldsInheritance(t *testing.T) {
	parent := LayoutFields(nil, []classfile.FieldDescriptor{
		{Name: "a", Type: classfile.Long},
		{Name: "b", Type: classfile.Byte},
	})
	if parent.TotalBytes != 16 {
		t.Fatalf("parent TotalBytes: got %d, want 16", parent.TotalBytes)
	}
	aSlot, ok := parent.Offset("a")
	if !ok || aSlot.Offset != 0 {
		t.Errorf("a offset: got %+v, want offset 0", aSlot)
	}
	bSlot, ok := parent.Offset("b")
	if !ok || bSlot.Offset != 8 {
		t.Errorf("b offset: got %+v, want offset 8", bSlot)
	}

	child := LayoutFields(parent, []classfile.FieldDescriptor{
		{Name: "c", Type: classfile.Int},
		{Name: "d", Type: classfile.Short},
	})
	if child.TotalBytes != 24 {
		t.Fatalf("child TotalBytes: got %d, want 24", child.TotalBytes)
	}

	// Parent's fields keep their offsets unchanged in the child.
	if s, ok := child.Offset("a"); !ok || s.Offset != aSlot.Offset {
		t.Errorf("inherited a offset changed: got %+v, want %+v", s, aSlot)
	}
	if s, ok := child.Offset("b"); !ok || s.Offset != bSlot.Offset {
		t.Errorf("inherited b offset changed: got %+v, want %+v", s, bSlot)
	}

	cSlot, ok := child.Offset("c")
	if !ok || cSlot.Offset != 16 {
		t.Errorf("c offset: got %+v, want offset 16", cSlot)
	}
	dSlot, ok := child.Offset("d")
	if !ok || dSlot.Offset != 20 {
		t.Errorf("d offset: got %+v, want offset 20", dSlot)
	}
}

// TestLayoutFieldsRootEquivalence is spec.md §8's round-trip law: laying
// out a set of fields on top of an empty parent equals the layout those
// fields would receive declared directly at the root.
func TestLayoutFieldsRootEquivalence(t *testing.T) {
	fields := []classfile.FieldDescriptor{
		{Name: "x", Type: classfile.Int},
		{Name: "y", Type: classfile.Double},
		{Name: "z", Type: classfile.Boolean},
	}
	onNilParent := LayoutFields(nil, fields)
	onEmptyParent := LayoutFields(LayoutFields(nil, nil), fields)

	if onNilParent.TotalBytes != onEmptyParent.TotalBytes {
		t.Fatalf("TotalBytes differ: nil=%d empty=%d", onNilParent.TotalBytes, onEmptyParent.TotalBytes)
	}
	for _, f := range fields {
		a, _ := onNilParent.Offset(f.Name)
		b, _ := onEmptyParent.Offset(f.Name)
		if a != b {
			t.Errorf("field %s offset differs: nil-parent=%+v empty-parent=%+v", f.Name, a, b)
		}
	}
}

// TestLayoutFieldsSizeAccounting is spec.md §8's invariant that summing
// sizes and paddings produced by LayoutFields always equals TotalBytes:
// every byte up to TotalBytes is accounted for by either a declared
// field or a free-space gap.
func TestLayoutFieldsSizeAccounting(t *testing.T) {
	l := LayoutFields(nil, []classfile.FieldDescriptor{
		{Name: "a", Type: classfile.Byte},
		{Name: "b", Type: classfile.Long},
		{Name: "c", Type: classfile.Short},
	})
	accounted := 0
	for _, slot := range l.Fields {
		accounted += slot.Type.Size()
	}
	for _, fs := range l.free {
		accounted += fs.Length
	}
	// Dead tail padding (the final round-to-8 pad) is not tracked as a
	// free space, so it must make up the remainder.
	deadTail := l.TotalBytes - accounted
	if deadTail < 0 || deadTail >= 8 {
		t.Errorf("unaccounted bytes outside a single tail pad: got %d of %d total", deadTail, l.TotalBytes)
	}
}
