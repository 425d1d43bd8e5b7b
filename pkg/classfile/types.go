// Package classfile decodes the Java class file binary format into an
// internal descriptor. It performs no symbolic resolution: constant pool
// entries are exposed as the raw, unresolved tagged union the file format
// defines. Resolving a methodref/fieldref against a loaded class library is
// the runtime package's job.
package classfile

import "fmt"

// Access flags (JVMS 4.1, 4.5, 4.6). Only the subset the runtime inspects
// is named; the rest of the bit space is preserved in AccessFlags as-is.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccNative    = 0x0100
	AccAbstract  = 0x0400
)

// JvmType is one of the primitive or reference kinds the data model
// tracks. Sizes are fixed: void=0, byte=1, char=1, short=2, boolean=1,
// int=4, long=8, float=4, double=8, reference=8.
type JvmType uint8

const (
	Void JvmType = iota
	Byte
	Char
	Short
	Boolean
	Int
	Long
	Float
	Double
	Reference
)

var typeSizes = [...]int{0, 1, 1, 2, 1, 4, 8, 4, 8, 8}
var typeNames = [...]string{"void", "byte", "char", "short", "boolean", "int", "long", "float", "double", "reference"}

// Size returns the type's fixed byte width, and its natural alignment.
func (t JvmType) Size() int { return typeSizes[t] }

// Slots returns how many operand-stack/local-variable slots a value of
// this type occupies: 2 for long and double, 1 for everything else that
// isn't void, 0 for void.
func (t JvmType) Slots() int {
	switch t {
	case Long, Double:
		return 2
	case Void:
		return 0
	default:
		return 1
	}
}

func (t JvmType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("JvmType(%d)", uint8(t))
}

// ClassDescriptor is the decoded form of a class file, prior to any
// symbolic resolution of its constant pool.
type ClassDescriptor struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16 // 0 means "no supertype", legal only for the root of the hierarchy
	Interfaces   []uint16
	Fields       []FieldDescriptor
	Methods      []MethodDescriptor
	ConstantPool []RawConstant
}

// ClassName returns the fully-qualified name of the class this descriptor
// describes.
func (cd *ClassDescriptor) ClassName() (string, error) {
	return GetClassName(cd.ConstantPool, cd.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cd *ClassDescriptor) FindMethod(name, descriptor string) *MethodDescriptor {
	for i := range cd.Methods {
		if cd.Methods[i].Name == name && cd.Methods[i].Descriptor == descriptor {
			return &cd.Methods[i]
		}
	}
	return nil
}

// ConstantValue holds a field's literal initializer, taken from a
// ConstantValue attribute at decode time.
type ConstantValue struct {
	Type   JvmType
	Int    int32
	Long   int64
	Float  float32
	Double float64
}

// FieldDescriptor is a decoded field_info entry.
type FieldDescriptor struct {
	AccessFlags   uint16
	Name          string
	Descriptor    string
	Type          JvmType
	ConstantValue *ConstantValue
}

// IsStatic reports whether ACC_STATIC is set.
func (f *FieldDescriptor) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }

// MethodDescriptor is a decoded method_info entry.
type MethodDescriptor struct {
	AccessFlags   uint16
	Name          string
	Descriptor    string
	Params        []JvmType
	Return        JvmType
	ArgumentCount int // caller-side slot count, this included for non-static methods
	Code          *CodeAttribute
}

// IsStatic reports whether ACC_STATIC is set.
func (m *MethodDescriptor) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }

// IsNative reports whether ACC_NATIVE is set.
func (m *MethodDescriptor) IsNative() bool { return m.AccessFlags&AccNative != 0 }

// IsAbstract reports whether ACC_ABSTRACT is set.
func (m *MethodDescriptor) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// CodeAttribute is the decoded Code attribute of a method.
type CodeAttribute struct {
	MaxStack  uint16
	MaxLocals uint16
	Code      []byte
}

// rawAttribute is an attribute_info entry before any attribute-specific
// interpretation.
type rawAttribute struct {
	Name string
	Data []byte
}
