package runtime

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// TestExecuteStaticArithmetic is spec.md §8's scenario 1: a static method
// with no arguments computing 2+3 returns 5.
func TestExecuteStaticArithmetic(t *testing.T) {
	b := newRTClassBuilder()
	nameIdx := b.addUtf8("Arith")
	classIdx := b.addClass(nameIdx)
	methodNameIdx := b.addUtf8("compute")
	methodDescIdx := b.addUtf8("()I")
	codeAttrNameIdx := b.addUtf8("Code")

	code := []byte{0x05, 0x06, 0x60, 0xAC} // iconst_2, iconst_3, iadd, ireturn
	raw := b.build(classIdx, 0, nil, []rtMethod{{
		accessFlags: classfile.AccPublic | classfile.AccStatic,
		nameIdx:     methodNameIdx,
		descIdx:     methodDescIdx,
		attrs: []rtAttr{{
			nameIdx: codeAttrNameIdx,
			data:    rtEncodeCode(2, 0, code),
		}},
	}})

	provider := newStubProvider()
	provider.add("Arith", raw)
	interp := NewInterpreter(provider, 64)

	result, err := interp.Execute("Arith", "compute")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind != KindInt || result.Int != 5 {
		t.Errorf("result: got %+v, want int 5", result)
	}
}

// TestExecuteWideningRoundTrip is spec.md §8's scenario 6: widening an
// int to long and narrowing back produces the original value.
func TestExecuteWideningRoundTrip(t *testing.T) {
	b := newRTClassBuilder()
	nameIdx := b.addUtf8("Widen")
	classIdx := b.addClass(nameIdx)
	methodNameIdx := b.addUtf8("id")
	methodDescIdx := b.addUtf8("()I")
	codeAttrNameIdx := b.addUtf8("Code")

	code := []byte{0x08, 0x85, 0x88, 0xAC} // iconst_5, i2l, l2i, ireturn
	raw := b.build(classIdx, 0, nil, []rtMethod{{
		accessFlags: classfile.AccPublic | classfile.AccStatic,
		nameIdx:     methodNameIdx,
		descIdx:     methodDescIdx,
		attrs: []rtAttr{{
			nameIdx: codeAttrNameIdx,
			data:    rtEncodeCode(2, 0, code),
		}},
	}})

	provider := newStubProvider()
	provider.add("Widen", raw)
	interp := NewInterpreter(provider, 64)

	result, err := interp.Execute("Widen", "id")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind != KindInt || result.Int != 5 {
		t.Errorf("result: got %+v, want int 5", result)
	}
}

// TestExecuteVirtualDispatch is spec.md §8's scenario 3: class B extends
// A and overrides greet()I; calling greet through a statically-typed-A
// methodref on a B instance dispatches to B's override.
func TestExecuteVirtualDispatch(t *testing.T) {
	// Class A: a root class declaring a concrete virtual greet()I.
	ab := newRTClassBuilder()
	aNameIdx := ab.addUtf8("A")
	aClassIdx := ab.addClass(aNameIdx)
	greetNameIdx := ab.addUtf8("greet")
	greetDescIdx := ab.addUtf8("()I")
	codeAttrNameIdx := ab.addUtf8("Code")
	aRaw := ab.build(aClassIdx, 0, nil, []rtMethod{{
		accessFlags: classfile.AccPublic,
		nameIdx:     greetNameIdx,
		descIdx:     greetDescIdx,
		attrs: []rtAttr{{
			nameIdx: codeAttrNameIdx,
			data:    rtEncodeCode(1, 1, []byte{0x04, 0xAC}), // iconst_1, ireturn
		}},
	}})

	// Class B: extends A, overrides greet()I to return 2.
	bb := newRTClassBuilder()
	bNameIdx := bb.addUtf8("B")
	bClassIdx := bb.addClass(bNameIdx)
	aNameIdx2 := bb.addUtf8("A")
	aClassIdx2 := bb.addClass(aNameIdx2)
	bGreetNameIdx := bb.addUtf8("greet")
	bGreetDescIdx := bb.addUtf8("()I")
	bCodeAttrNameIdx := bb.addUtf8("Code")
	bRaw := bb.build(bClassIdx, aClassIdx2, nil, []rtMethod{{
		accessFlags: classfile.AccPublic,
		nameIdx:     bGreetNameIdx,
		descIdx:     bGreetDescIdx,
		attrs: []rtAttr{{
			nameIdx: bCodeAttrNameIdx,
			data:    rtEncodeCode(1, 1, []byte{0x05, 0xAC}), // iconst_2, ireturn
		}},
	}})

	// Class Test: static run()I does `new B(); invokevirtual A.greet()I;
	// ireturn`, dispatching through A's statically-resolved methodref.
	tb := newRTClassBuilder()
	tNameIdx := tb.addUtf8("Test")
	tClassIdx := tb.addClass(tNameIdx)
	tbClassNameIdx := tb.addUtf8("B")
	tbClassIdx := tb.addClass(tbClassNameIdx)
	taClassNameIdx := tb.addUtf8("A")
	taClassIdx := tb.addClass(taClassNameIdx)
	tGreetNameIdx := tb.addUtf8("greet")
	tGreetDescIdx := tb.addUtf8("()I")
	tNatIdx := tb.addNameAndType(tGreetNameIdx, tGreetDescIdx)
	tMethodrefIdx := tb.addMethodref(taClassIdx, tNatIdx)
	tRunNameIdx := tb.addUtf8("run")
	tRunDescIdx := tb.addUtf8("()I")
	tCodeAttrNameIdx := tb.addUtf8("Code")

	var code []byte
	code = append(code, 0xBB, byte(tbClassIdx>>8), byte(tbClassIdx)) // new #B
	code = append(code, 0xB6, byte(tMethodrefIdx>>8), byte(tMethodrefIdx)) // invokevirtual #A.greet
	code = append(code, 0xAC) // ireturn

	tRaw := tb.build(tClassIdx, 0, nil, []rtMethod{{
		accessFlags: classfile.AccPublic | classfile.AccStatic,
		nameIdx:     tRunNameIdx,
		descIdx:     tRunDescIdx,
		attrs: []rtAttr{{
			nameIdx: tCodeAttrNameIdx,
			data:    rtEncodeCode(2, 0, code),
		}},
	}})

	provider := newStubProvider()
	provider.add("A", aRaw)
	provider.add("B", bRaw)
	provider.add("Test", tRaw)
	interp := NewInterpreter(provider, 64)

	result, err := interp.Execute("Test", "run")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind != KindInt || result.Int != 2 {
		t.Errorf("result: got %+v, want int 2 (B's override)", result)
	}
}

// TestConstantPoolFieldResolutionIsCached is spec.md §8's scenario 4: a
// method reading the same static field twice through GETSTATIC resolves
// the constant pool entry once, and the second access reuses the cached
// ResolvedFieldRef rather than re-resolving it.
func TestConstantPoolFieldResolutionIsCached(t *testing.T) {
	b := newRTClassBuilder()
	nameIdx := b.addUtf8("X")
	classIdx := b.addClass(nameIdx)
	yNameIdx := b.addUtf8("y")
	yDescIdx := b.addUtf8("I")
	constValIdx := b.addInteger(7)
	natIdx := b.addNameAndType(yNameIdx, yDescIdx)
	fieldrefIdx := b.addFieldref(classIdx, natIdx)
	readNameIdx := b.addUtf8("readTwice")
	readDescIdx := b.addUtf8("()I")
	constantValueAttrNameIdx := b.addUtf8("ConstantValue")
	codeAttrNameIdx := b.addUtf8("Code")

	var constValBytes []byte
	constValBytes = append(constValBytes, byte(constValIdx>>8), byte(constValIdx))

	var code []byte
	code = append(code, 0xB2, byte(fieldrefIdx>>8), byte(fieldrefIdx)) // getstatic
	code = append(code, 0xB2, byte(fieldrefIdx>>8), byte(fieldrefIdx)) // getstatic
	code = append(code, 0x60)                                          // iadd
	code = append(code, 0xAC)                                          // ireturn

	raw := b.build(classIdx, 0, []rtField{{
		accessFlags: classfile.AccStatic,
		nameIdx:     yNameIdx,
		descIdx:     yDescIdx,
		attrs: []rtAttr{{
			nameIdx: constantValueAttrNameIdx,
			data:    constValBytes,
		}},
	}}, []rtMethod{{
		accessFlags: classfile.AccPublic | classfile.AccStatic,
		nameIdx:     readNameIdx,
		descIdx:     readDescIdx,
		attrs: []rtAttr{{
			nameIdx: codeAttrNameIdx,
			data:    rtEncodeCode(2, 0, code),
		}},
	}})

	provider := newStubProvider()
	provider.add("X", raw)
	interp := NewInterpreter(provider, 64)

	result, err := interp.Execute("X", "readTwice")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Kind != KindInt || result.Int != 14 {
		t.Errorf("result: got %+v, want int 14 (7+7)", result)
	}

	cls, ok := interp.Library().ByName("X")
	if !ok {
		t.Fatal("class X not found after execution")
	}
	first, err := cls.Pool.ResolveField(fieldrefIdx, interp.Library())
	if err != nil {
		t.Fatalf("ResolveField (first): %v", err)
	}
	second, err := cls.Pool.ResolveField(fieldrefIdx, interp.Library())
	if err != nil {
		t.Fatalf("ResolveField (second): %v", err)
	}
	if first != second {
		t.Errorf("resolution not cached: first=%p second=%p", first, second)
	}
}
