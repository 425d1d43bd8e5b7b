package runtime

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// rtClassBuilder assembles a well-formed class file byte buffer by hand,
// the same way pkg/classfile's own decoder test does, extended with
// field and superclass support so interpreter-level scenarios (field
// access, virtual dispatch, inheritance) can be built without a Java
// toolchain.
type rtClassBuilder struct {
	pool [][]byte
}

func newRTClassBuilder() *rtClassBuilder { return &rtClassBuilder{} }

func (b *rtClassBuilder) addUtf8(s string) uint16 {
	var e bytes.Buffer
	e.WriteByte(1) // TagUtf8
	binary.Write(&e, binary.BigEndian, uint16(len(s)))
	e.WriteString(s)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *rtClassBuilder) addInteger(v int32) uint16 {
	var e bytes.Buffer
	e.WriteByte(3) // TagInteger
	binary.Write(&e, binary.BigEndian, v)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *rtClassBuilder) addClass(nameIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(7) // TagClass
	binary.Write(&e, binary.BigEndian, nameIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *rtClassBuilder) addNameAndType(nameIdx, descIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(12) // TagNameAndType
	binary.Write(&e, binary.BigEndian, nameIdx)
	binary.Write(&e, binary.BigEndian, descIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *rtClassBuilder) addFieldref(classIdx, natIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(9) // TagFieldref
	binary.Write(&e, binary.BigEndian, classIdx)
	binary.Write(&e, binary.BigEndian, natIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *rtClassBuilder) addMethodref(classIdx, natIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(10) // TagMethodref
	binary.Write(&e, binary.BigEndian, classIdx)
	binary.Write(&e, binary.BigEndian, natIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

// rtEncodeCode builds a Code attribute's attribute body.
func rtEncodeCode(maxStack, maxLocals uint16, code []byte) []byte {
	var e bytes.Buffer
	binary.Write(&e, binary.BigEndian, maxStack)
	binary.Write(&e, binary.BigEndian, maxLocals)
	binary.Write(&e, binary.BigEndian, uint32(len(code)))
	e.Write(code)
	binary.Write(&e, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&e, binary.BigEndian, uint16(0)) // attributes_count
	return e.Bytes()
}

type rtAttr struct {
	nameIdx uint16
	data    []byte
}

type rtField struct {
	accessFlags uint16
	nameIdx     uint16
	descIdx     uint16
	attrs       []rtAttr
}

type rtMethod struct {
	accessFlags uint16
	nameIdx     uint16
	descIdx     uint16
	attrs       []rtAttr
}

// build assembles the full class file byte stream.
func (b *rtClassBuilder) build(thisClassIdx, superClassIdx uint16, fields []rtField, methods []rtMethod) []byte {
	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(55)) // major

	binary.Write(&out, binary.BigEndian, uint16(len(b.pool)+1))
	for _, e := range b.pool {
		out.Write(e)
	}

	binary.Write(&out, binary.BigEndian, uint16(0x0001|0x0020)) // AccPublic|AccSuper
	binary.Write(&out, binary.BigEndian, thisClassIdx)
	binary.Write(&out, binary.BigEndian, superClassIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count

	binary.Write(&out, binary.BigEndian, uint16(len(fields)))
	for _, f := range fields {
		binary.Write(&out, binary.BigEndian, f.accessFlags)
		binary.Write(&out, binary.BigEndian, f.nameIdx)
		binary.Write(&out, binary.BigEndian, f.descIdx)
		binary.Write(&out, binary.BigEndian, uint16(len(f.attrs)))
		for _, a := range f.attrs {
			binary.Write(&out, binary.BigEndian, a.nameIdx)
			binary.Write(&out, binary.BigEndian, uint32(len(a.data)))
			out.Write(a.data)
		}
	}

	binary.Write(&out, binary.BigEndian, uint16(len(methods)))
	for _, m := range methods {
		binary.Write(&out, binary.BigEndian, m.accessFlags)
		binary.Write(&out, binary.BigEndian, m.nameIdx)
		binary.Write(&out, binary.BigEndian, m.descIdx)
		binary.Write(&out, binary.BigEndian, uint16(len(m.attrs)))
		for _, a := range m.attrs {
			binary.Write(&out, binary.BigEndian, a.nameIdx)
			binary.Write(&out, binary.BigEndian, uint32(len(a.data)))
			out.Write(a.data)
		}
	}

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count
	return out.Bytes()
}

// stubProvider is an in-memory ClassProvider backed by a name->bytes map,
// standing in for cmd/jvmrun's classpath/jmod provider in tests that
// don't want to touch the filesystem.
type stubProvider struct {
	classes map[string][]byte
}

func newStubProvider() *stubProvider { return &stubProvider{classes: map[string][]byte{}} }

func (p *stubProvider) add(name string, data []byte) { p.classes[name] = data }

func (p *stubProvider) LoadClass(name string) ([]byte, error) {
	data, ok := p.classes[name]
	if !ok {
		return nil, fmt.Errorf("stubProvider: no class named %s", name)
	}
	return data, nil
}
