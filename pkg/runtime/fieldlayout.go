package runtime

import (
	"sort"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// fieldSlot names where a single field lives and how wide it is.
type fieldSlot struct {
	Offset int
	Type   classfile.JvmType
}

type freeSpace struct {
	Start, Length int
}

// FieldLayout packs a set of fields into a contiguous byte region on top
// of a parent layout (nil for a root class), per spec.md §4.3. Every
// layout this package produces already carries its own trailing
// round-to-8-bytes pad, so a subclass always starts packing at a
// multiple of 8 — that trailing pad is never added to the free list, so
// it is never reused by a subclass's fields (only the gaps genuinely
// left over from alignment padding inside the parent's own fields are
// reusable).
type FieldLayout struct {
	TotalBytes int
	Fields     map[string]fieldSlot
	free       []freeSpace
}

// Offset returns the byte offset and type of a named field, or ok=false
// if no field by that name exists in this layout (including inherited
// fields, since the map is copied forward from the parent).
func (l *FieldLayout) Offset(name string) (fieldSlot, bool) {
	s, ok := l.Fields[name]
	return s, ok
}

// LayoutFields packs fields on top of parent (which may be nil for the
// root of a class hierarchy). Fields are ordered by decreasing size;
// ties keep declaration order (sort.SliceStable). For each field: reuse
// an exact-fit free space, or split the smallest sufficient free space,
// or append after an alignment pad (which itself becomes a reusable free
// space). Finally the whole layout is padded, non-reusably, to the next
// multiple of 8 bytes.
func LayoutFields(parent *FieldLayout, fields []classfile.FieldDescriptor) *FieldLayout {
	l := &FieldLayout{Fields: make(map[string]fieldSlot, len(fields))}
	if parent != nil {
		for name, slot := range parent.Fields {
			l.Fields[name] = slot
		}
		l.TotalBytes = parent.TotalBytes
		l.free = append([]freeSpace(nil), parent.free...)
	}

	ordered := make([]classfile.FieldDescriptor, len(fields))
	copy(ordered, fields)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Type.Size() > ordered[j].Type.Size()
	})

	for _, f := range ordered {
		size := f.Type.Size()
		offset, ok := l.takeFree(size)
		if !ok {
			align := size
			if pad := (align - l.TotalBytes%align) % align; pad > 0 {
				l.free = append(l.free, freeSpace{Start: l.TotalBytes, Length: pad})
				l.TotalBytes += pad
			}
			offset = l.TotalBytes
			l.TotalBytes += size
		}
		l.Fields[f.Name] = fieldSlot{Offset: offset, Type: f.Type}
	}

	if rem := l.TotalBytes % 8; rem != 0 {
		l.TotalBytes += 8 - rem // dead tail padding, intentionally not added to l.free
	}
	return l
}

// takeFree consumes an exact-fit free space if one exists, otherwise
// splits the smallest free space large enough to hold size bytes.
func (l *FieldLayout) takeFree(size int) (int, bool) {
	for i, fs := range l.free {
		if fs.Length == size {
			l.free = append(l.free[:i], l.free[i+1:]...)
			return fs.Start, true
		}
	}
	best := -1
	for i, fs := range l.free {
		if fs.Length > size && (best == -1 || fs.Length < l.free[best].Length) {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	offset := l.free[best].Start
	l.free[best].Start += size
	l.free[best].Length -= size
	return offset, true
}
