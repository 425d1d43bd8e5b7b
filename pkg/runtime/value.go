package runtime

import (
	"fmt"
)

// ValueKind tags what a Value holds. It mirrors classfile.JvmType but
// additionally distinguishes a null reference from a populated one, since
// the two need different handling on the heap and in isInstanceOf-style
// checks a caller might add later.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindNull
)

// Value is a single operand-stack or local-variable slot. Long and double
// values occupy two consecutive stack/local slots per JVMS convention; the
// second slot of such a pair is never read, mirroring the constant pool's
// own long/double double-slot rule (§3).
type Value struct {
	Kind   ValueKind
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Ref    *Instance
}

func IntValue(v int32) Value       { return Value{Kind: KindInt, Int: v} }
func LongValue(v int64) Value      { return Value{Kind: KindLong, Long: v} }
func FloatValue(v float32) Value   { return Value{Kind: KindFloat, Float: v} }
func DoubleValue(v float64) Value  { return Value{Kind: KindDouble, Double: v} }
func RefValue(ref *Instance) Value { return Value{Kind: KindRef, Ref: ref} }
func NullValue() Value             { return Value{Kind: KindNull} }

// Slots reports how many stack/local slots this value's kind occupies.
func (v Value) Slots() int {
	if v.Kind == KindLong || v.Kind == KindDouble {
		return 2
	}
	return 1
}

// String renders a Value for diagnostic output (cmd/jvmrun's result
// line, log messages); it is not used by any resolution or comparison
// logic.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("int %d", v.Int)
	case KindLong:
		return fmt.Sprintf("long %d", v.Long)
	case KindFloat:
		return fmt.Sprintf("float %g", v.Float)
	case KindDouble:
		return fmt.Sprintf("double %g", v.Double)
	case KindRef:
		return fmt.Sprintf("reference %v", v.Ref)
	default:
		return "null"
	}
}
