//go:build amd64

package compiler_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/daimatz/gojvm/pkg/compiler"
	"github.com/daimatz/gojvm/pkg/runtime"
)

// ctClassBuilder is a minimal class-file byte builder for this package's
// own interop test; it can't reach into pkg/runtime's or pkg/classfile's
// unexported test helpers across a package boundary, so it only builds
// what this one scenario needs: a handful of methods, no fields, no
// superclass.
type ctClassBuilder struct {
	pool [][]byte
}

func (b *ctClassBuilder) addUtf8(s string) uint16 {
	var e bytes.Buffer
	e.WriteByte(1)
	binary.Write(&e, binary.BigEndian, uint16(len(s)))
	e.WriteString(s)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *ctClassBuilder) addClass(nameIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(7)
	binary.Write(&e, binary.BigEndian, nameIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *ctClassBuilder) addNameAndType(nameIdx, descIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(12)
	binary.Write(&e, binary.BigEndian, nameIdx)
	binary.Write(&e, binary.BigEndian, descIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

func (b *ctClassBuilder) addMethodref(classIdx, natIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(10)
	binary.Write(&e, binary.BigEndian, classIdx)
	binary.Write(&e, binary.BigEndian, natIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool))
}

type ctMethod struct {
	nameIdx   uint16
	descIdx   uint16
	codeName  uint16
	maxStack  uint16
	maxLocals uint16
	code      []byte
}

func (b *ctClassBuilder) build(thisClassIdx uint16, methods []ctMethod) []byte {
	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(55))

	binary.Write(&out, binary.BigEndian, uint16(len(b.pool)+1))
	for _, e := range b.pool {
		out.Write(e)
	}

	binary.Write(&out, binary.BigEndian, uint16(0x0001|0x0020)) // public|super
	binary.Write(&out, binary.BigEndian, thisClassIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // super_class = none
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces
	binary.Write(&out, binary.BigEndian, uint16(0)) // fields

	binary.Write(&out, binary.BigEndian, uint16(len(methods)))
	for _, m := range methods {
		binary.Write(&out, binary.BigEndian, uint16(0x0001|0x0008)) // public static
		binary.Write(&out, binary.BigEndian, m.nameIdx)
		binary.Write(&out, binary.BigEndian, m.descIdx)
		binary.Write(&out, binary.BigEndian, uint16(1)) // one attribute: Code

		var code bytes.Buffer
		binary.Write(&code, binary.BigEndian, m.maxStack)
		binary.Write(&code, binary.BigEndian, m.maxLocals)
		binary.Write(&code, binary.BigEndian, uint32(len(m.code)))
		code.Write(m.code)
		binary.Write(&code, binary.BigEndian, uint16(0)) // exception table
		binary.Write(&code, binary.BigEndian, uint16(0)) // attributes

		binary.Write(&out, binary.BigEndian, m.codeName)
		binary.Write(&out, binary.BigEndian, uint32(code.Len()))
		out.Write(code.Bytes())
	}

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes
	return out.Bytes()
}

type ctProvider struct{ classes map[string][]byte }

func (p *ctProvider) LoadClass(name string) ([]byte, error) {
	data, ok := p.classes[name]
	if !ok {
		return nil, &runtime.Error{Kind: runtime.ClassNotFound, Context: name}
	}
	return data, nil
}

// TestCompiledMethodCallableFromInterpreter is spec.md §8's scenario 5:
// a compiled method (Callee.g, BIPUSH 7; IRETURN) invoked through
// INVOKESTATIC from an interpreted caller (Caller.callIt) returns the
// same result a fully-interpreted call would, and leaves the shared
// stack balanced for a second, independent call.
func TestCompiledMethodCallableFromInterpreter(t *testing.T) {
	calleeB := &ctClassBuilder{}
	calleeNameIdx := calleeB.addUtf8("Callee")
	calleeClassIdx := calleeB.addClass(calleeNameIdx)
	gNameIdx := calleeB.addUtf8("g")
	gDescIdx := calleeB.addUtf8("()I")
	codeNameIdx := calleeB.addUtf8("Code")
	calleeRaw := calleeB.build(calleeClassIdx, []ctMethod{{
		nameIdx: gNameIdx, descIdx: gDescIdx, codeName: codeNameIdx,
		maxStack: 2, maxLocals: 1,
		code: []byte{0x10, 0x07, 0xAC}, // bipush 7, ireturn
	}})

	callerB := &ctClassBuilder{}
	callerNameIdx := callerB.addUtf8("Caller")
	callerClassIdx := callerB.addClass(callerNameIdx)
	calleeNameIdx2 := callerB.addUtf8("Callee")
	calleeClassIdx2 := callerB.addClass(calleeNameIdx2)
	gNameIdx2 := callerB.addUtf8("g")
	gDescIdx2 := callerB.addUtf8("()I")
	natIdx := callerB.addNameAndType(gNameIdx2, gDescIdx2)
	methodrefIdx := callerB.addMethodref(calleeClassIdx2, natIdx)
	callItNameIdx := callerB.addUtf8("callIt")
	callItDescIdx := callerB.addUtf8("()I")
	callerCodeNameIdx := callerB.addUtf8("Code")

	code := []byte{0xB8, byte(methodrefIdx >> 8), byte(methodrefIdx), 0xAC} // invokestatic, ireturn
	callerRaw := callerB.build(callerClassIdx, []ctMethod{{
		nameIdx: callItNameIdx, descIdx: callItDescIdx, codeName: callerCodeNameIdx,
		maxStack: 2, maxLocals: 0,
		code: code,
	}})

	provider := &ctProvider{classes: map[string][]byte{
		"Callee": calleeRaw,
		"Caller": callerRaw,
	}}
	interp := runtime.NewInterpreter(provider, 64)

	calleeCls, err := interp.Library().Load("Callee")
	if err != nil {
		t.Fatalf("loading Callee: %v", err)
	}
	gInfo, ok := calleeCls.StaticMethods["g"]
	if !ok {
		t.Fatal("Callee.g not registered")
	}
	if err := compiler.Compile(interp.MethodTable(), gInfo.MethodIndex); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if interp.MethodTable().Kind(gInfo.MethodIndex) != runtime.NativeCompiled {
		t.Fatal("Callee.g did not switch to NativeCompiled after Compile")
	}

	for i := 0; i < 2; i++ {
		result, err := interp.Execute("Caller", "callIt")
		if err != nil {
			t.Fatalf("Execute call %d: %v", i, err)
		}
		if result.Kind != runtime.KindInt || result.Int != 7 {
			t.Errorf("call %d result: got %+v, want int 7", i, result)
		}
	}
}

// TestCompiledLongReturnLeavesStackBalanced guards against a compiled
// method's return value being pushed with the wrong slot width: a
// compiled callee returning long must leave two slots on the shared
// stack, not one, or the interpreted caller's own LRETURN (which pops
// wide) would desynchronize the stack pointer on the very next call.
func TestCompiledLongReturnLeavesStackBalanced(t *testing.T) {
	calleeB := &ctClassBuilder{}
	calleeNameIdx := calleeB.addUtf8("LongCallee")
	calleeClassIdx := calleeB.addClass(calleeNameIdx)
	gNameIdx := calleeB.addUtf8("g")
	gDescIdx := calleeB.addUtf8("()J")
	codeNameIdx := calleeB.addUtf8("Code")
	calleeRaw := calleeB.build(calleeClassIdx, []ctMethod{{
		nameIdx: gNameIdx, descIdx: gDescIdx, codeName: codeNameIdx,
		maxStack: 2, maxLocals: 2,
		code: []byte{0x0A, 0xAD}, // lconst_1, lreturn
	}})

	callerB := &ctClassBuilder{}
	callerNameIdx := callerB.addUtf8("LongCaller")
	callerClassIdx := callerB.addClass(callerNameIdx)
	calleeNameIdx2 := callerB.addUtf8("LongCallee")
	calleeClassIdx2 := callerB.addClass(calleeNameIdx2)
	gNameIdx2 := callerB.addUtf8("g")
	gDescIdx2 := callerB.addUtf8("()J")
	natIdx := callerB.addNameAndType(gNameIdx2, gDescIdx2)
	methodrefIdx := callerB.addMethodref(calleeClassIdx2, natIdx)
	callItNameIdx := callerB.addUtf8("callIt")
	callItDescIdx := callerB.addUtf8("()J")
	callerCodeNameIdx := callerB.addUtf8("Code")

	code := []byte{0xB8, byte(methodrefIdx >> 8), byte(methodrefIdx), 0xAD} // invokestatic, lreturn
	callerRaw := callerB.build(callerClassIdx, []ctMethod{{
		nameIdx: callItNameIdx, descIdx: callItDescIdx, codeName: callerCodeNameIdx,
		maxStack: 2, maxLocals: 0,
		code: code,
	}})

	provider := &ctProvider{classes: map[string][]byte{
		"LongCallee": calleeRaw,
		"LongCaller": callerRaw,
	}}
	interp := runtime.NewInterpreter(provider, 64)

	calleeCls, err := interp.Library().Load("LongCallee")
	if err != nil {
		t.Fatalf("loading LongCallee: %v", err)
	}
	gInfo, ok := calleeCls.StaticMethods["g"]
	if !ok {
		t.Fatal("LongCallee.g not registered")
	}
	if err := compiler.Compile(interp.MethodTable(), gInfo.MethodIndex); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if interp.MethodTable().Kind(gInfo.MethodIndex) != runtime.NativeCompiled {
		t.Fatal("LongCallee.g did not switch to NativeCompiled after Compile")
	}

	// Two independent calls: a stray slot left behind by the first call
	// would desynchronize frame bases for the second, producing a wrong
	// result (or a stack underflow panic) rather than a repeat of long 1.
	for i := 0; i < 2; i++ {
		result, err := interp.Execute("LongCaller", "callIt")
		if err != nil {
			t.Fatalf("Execute call %d: %v", i, err)
		}
		if result.Kind != runtime.KindLong || result.Long != 1 {
			t.Errorf("call %d result: got %+v, want long 1", i, result)
		}
	}
}
