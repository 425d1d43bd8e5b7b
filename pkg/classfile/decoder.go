package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// DecodeFile opens and decodes a .class file from the given path.
func DecodeFile(path string) (*ClassDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a .class file from r and returns its descriptor.
func Decode(r io.Reader) (*ClassDescriptor, error) {
	cd := &ClassDescriptor{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", wrapEOF(err))
	}
	if magic != classMagic {
		return nil, &Error{Kind: MissingMagicNumber, Context: fmt.Sprintf("got 0x%X", magic)}
	}

	if err := binary.Read(r, binary.BigEndian, &cd.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", wrapEOF(err))
	}
	if err := binary.Read(r, binary.BigEndian, &cd.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", wrapEOF(err))
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", wrapEOF(err))
	}
	pool, err := decodeConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("decoding constant pool: %w", err)
	}
	cd.ConstantPool = pool

	if err := binary.Read(r, binary.BigEndian, &cd.AccessFlags); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", wrapEOF(err))
	}
	if err := binary.Read(r, binary.BigEndian, &cd.ThisClass); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", wrapEOF(err))
	}
	if err := binary.Read(r, binary.BigEndian, &cd.SuperClass); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", wrapEOF(err))
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", wrapEOF(err))
	}
	cd.Interfaces = make([]uint16, interfacesCount)
	for i := uint16(0); i < interfacesCount; i++ {
		if err := binary.Read(r, binary.BigEndian, &cd.Interfaces[i]); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, wrapEOF(err))
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", wrapEOF(err))
	}
	cd.Fields, err = decodeFields(r, cd.ConstantPool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, fmt.Errorf("reading methods count: %w", wrapEOF(err))
	}
	cd.Methods, err = decodeMethods(r, cd.ConstantPool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("decoding methods: %w", err)
	}

	// Class-level attributes carry nothing this system's scope needs
	// (SourceFile, InnerClasses, BootstrapMethods and the like are all
	// either metadata or invokedynamic-only); read and discard them so
	// the stream ends in a defined state.
	if _, err := decodeAttributes(r, cd.ConstantPool); err != nil {
		return nil, fmt.Errorf("decoding class attributes: %w", err)
	}

	return cd, nil
}

func decodeFields(r io.Reader, pool []RawConstant, count uint16) ([]FieldDescriptor, error) {
	fields := make([]FieldDescriptor, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading field %d access flags: %w", i, wrapEOF(err))
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading field %d name index: %w", i, wrapEOF(err))
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading field %d descriptor index: %w", i, wrapEOF(err))
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, fmt.Errorf("reading field %d attributes count: %w", i, wrapEOF(err))
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d name: %w", i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d descriptor: %w", i, err)
		}
		fieldType, err := ParseFieldType(desc)
		if err != nil {
			return nil, fmt.Errorf("field %d %s: %w", i, name, err)
		}

		attrs, err := decodeAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("decoding field %d attributes: %w", i, err)
		}

		f := FieldDescriptor{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Type:        fieldType,
		}
		for _, attr := range attrs {
			if attr.Name == "ConstantValue" {
				cv, err := decodeConstantValueAttribute(pool, attr.Data, fieldType)
				if err != nil {
					return nil, fmt.Errorf("decoding ConstantValue for field %s: %w", name, err)
				}
				f.ConstantValue = cv
			}
		}
		fields[i] = f
	}
	return fields, nil
}

func decodeConstantValueAttribute(pool []RawConstant, data []byte, fieldType JvmType) (*ConstantValue, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("ConstantValue attribute too short")
	}
	index := binary.BigEndian.Uint16(data[0:2])
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid ConstantValue index %d", index)
	}
	switch c := pool[index].(type) {
	case *ConstantInteger:
		return &ConstantValue{Type: fieldType, Int: c.Value}, nil
	case *ConstantLong:
		return &ConstantValue{Type: fieldType, Long: c.Value}, nil
	case *ConstantFloat:
		return &ConstantValue{Type: fieldType, Float: c.Value}, nil
	case *ConstantDouble:
		return &ConstantValue{Type: fieldType, Double: c.Value}, nil
	default:
		return nil, fmt.Errorf("ConstantValue index %d is not a numeric constant (tag=%d)", index, pool[index].Tag())
	}
}

func decodeMethods(r io.Reader, pool []RawConstant, count uint16) ([]MethodDescriptor, error) {
	methods := make([]MethodDescriptor, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading method %d access flags: %w", i, wrapEOF(err))
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading method %d name index: %w", i, wrapEOF(err))
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading method %d descriptor index: %w", i, wrapEOF(err))
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, fmt.Errorf("reading method %d attributes count: %w", i, wrapEOF(err))
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d descriptor: %w", i, err)
		}
		params, ret, argSlots, err := ParseMethodDescriptor(desc)
		if err != nil {
			return nil, fmt.Errorf("method %d %s: %w", i, name, err)
		}

		attrs, err := decodeAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("decoding method %d attributes: %w", i, err)
		}

		m := MethodDescriptor{
			AccessFlags:   accessFlags,
			Name:          name,
			Descriptor:    desc,
			Params:        params,
			Return:        ret,
			ArgumentCount: argSlots,
		}
		if !m.IsStatic() {
			m.ArgumentCount++ // receiver occupies local slot 0
		}

		for _, attr := range attrs {
			if attr.Name == "Code" {
				code, err := decodeCodeAttribute(attr.Data)
				if err != nil {
					return nil, fmt.Errorf("decoding Code attribute for method %s: %w", name, err)
				}
				m.Code = code
				break
			}
		}
		if m.Code == nil && !m.IsNative() && !m.IsAbstract() {
			return nil, &Error{Kind: MissingCode, Context: fmt.Sprintf("method %s%s", name, desc)}
		}

		methods[i] = m
	}
	return methods, nil
}

func decodeAttributeInfos(r io.Reader, pool []RawConstant, count uint16) ([]rawAttribute, error) {
	attrs := make([]rawAttribute, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, wrapEOF(err))
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, wrapEOF(err))
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, wrapEOF(err))
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = rawAttribute{Name: name, Data: data}
	}
	return attrs, nil
}

// decodeAttributes reads a class-level (or otherwise top-level)
// attribute_info table and discards it; nothing outside a field's
// ConstantValue or a method's Code attribute is interpreted.
func decodeAttributes(r io.Reader, pool []RawConstant) ([]rawAttribute, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, wrapEOF(err)
	}
	return decodeAttributeInfos(r, pool, count)
}

func decodeCodeAttribute(data []byte) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}
	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])
	if len(data) < 8+int(codeLength) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}
	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])
	return &CodeAttribute{MaxStack: maxStack, MaxLocals: maxLocals, Code: code}, nil
}
