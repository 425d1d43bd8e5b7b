package runtime

import (
	"encoding/binary"
	"math"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// readValueAt and writeValueAt translate between a Value and its
// big-endian packed byte representation at a field offset — the same
// representation used for instance fields (heap.go) and static fields
// (classlibrary.go). A reference field stores the referent's heap
// offset as an 8-byte unsigned integer; 0 means null.

func readValueAt(buf []byte, offset int, t classfile.JvmType, heap *Heap) Value {
	switch t {
	case classfile.Byte, classfile.Boolean:
		return IntValue(int32(int8(buf[offset])))
	case classfile.Char:
		return IntValue(int32(binary.BigEndian.Uint16(buf[offset:])))
	case classfile.Short:
		return IntValue(int32(int16(binary.BigEndian.Uint16(buf[offset:]))))
	case classfile.Int:
		return IntValue(int32(binary.BigEndian.Uint32(buf[offset:])))
	case classfile.Long:
		return LongValue(int64(binary.BigEndian.Uint64(buf[offset:])))
	case classfile.Float:
		return FloatValue(math.Float32frombits(binary.BigEndian.Uint32(buf[offset:])))
	case classfile.Double:
		return DoubleValue(math.Float64frombits(binary.BigEndian.Uint64(buf[offset:])))
	case classfile.Reference:
		idx := binary.BigEndian.Uint64(buf[offset:])
		if idx == 0 {
			return NullValue()
		}
		return RefValue(heap.Resolve(int(idx)))
	default:
		return IntValue(0)
	}
}

func writeValueAt(buf []byte, offset int, t classfile.JvmType, v Value) {
	switch t {
	case classfile.Byte, classfile.Boolean:
		buf[offset] = byte(v.Int)
	case classfile.Char, classfile.Short:
		binary.BigEndian.PutUint16(buf[offset:], uint16(v.Int))
	case classfile.Int:
		binary.BigEndian.PutUint32(buf[offset:], uint32(v.Int))
	case classfile.Long:
		binary.BigEndian.PutUint64(buf[offset:], uint64(v.Long))
	case classfile.Float:
		binary.BigEndian.PutUint32(buf[offset:], math.Float32bits(v.Float))
	case classfile.Double:
		binary.BigEndian.PutUint64(buf[offset:], math.Float64bits(v.Double))
	case classfile.Reference:
		if v.Kind == KindNull || v.Ref == nil {
			binary.BigEndian.PutUint64(buf[offset:], 0)
		} else {
			binary.BigEndian.PutUint64(buf[offset:], uint64(v.Ref.Offset))
		}
	}
}

// writeConstant writes a field's declared ConstantValue literal, used
// when materializing a freshly instantiated object or a class's static
// region.
func writeConstant(buf []byte, offset int, t classfile.JvmType, cv *classfile.ConstantValue) {
	switch t {
	case classfile.Long:
		writeValueAt(buf, offset, t, LongValue(cv.Long))
	case classfile.Float:
		writeValueAt(buf, offset, t, FloatValue(cv.Float))
	case classfile.Double:
		writeValueAt(buf, offset, t, DoubleValue(cv.Double))
	default:
		writeValueAt(buf, offset, t, IntValue(cv.Int))
	}
}
