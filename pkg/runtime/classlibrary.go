package runtime

import (
	"bytes"
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// ClassProvider is the external byte provider (spec.md §6): given a
// class name in slash-separated package form, return its raw class-file
// bytes. cmd/jvmrun's classProvider (classpath directories, jmod
// archives) is the concrete implementation; this package only depends on
// the interface.
type ClassProvider interface {
	LoadClass(name string) ([]byte, error)
}

// ClassLibrary is the append-only registry of loaded classes (spec.md
// §3, §4.5): a name→index map plus two bump regions — static-field bytes
// and dispatch-table entries — shared across every class so that a
// class's storage pointers never move once it's appended.
type ClassLibrary struct {
	classes []*Class
	byName  map[string]int

	staticBytes    []byte
	dispatchRegion []MethodIndex

	methodTable *MethodTable
	heap        *Heap
	provider    ClassProvider
	interp      *Interpreter

	loading map[string]bool // reentrancy guard: a class may not recursively load itself
}

// NewClassLibrary returns an empty library backed by provider for class
// bytes, registering method implementations in mt and instances in heap.
func NewClassLibrary(provider ClassProvider, mt *MethodTable, heap *Heap) *ClassLibrary {
	return &ClassLibrary{
		byName:      map[string]int{},
		methodTable: mt,
		heap:        heap,
		provider:    provider,
		loading:     map[string]bool{},
	}
}

func (lib *ClassLibrary) bindInterpreter(i *Interpreter) { lib.interp = i }

// ClassAt returns the class at a stable library index.
func (lib *ClassLibrary) ClassAt(index int) *Class { return lib.classes[index] }

// ByName looks up an already-loaded class by name without triggering a load.
func (lib *ClassLibrary) ByName(name string) (*Class, bool) {
	i, ok := lib.byName[name]
	if !ok {
		return nil, false
	}
	return lib.classes[i], true
}

// Load returns the class named name, loading (and recursively loading
// its supertype) if it isn't already present. A class is registered
// under its name once it has been constructed and appended, before its
// <clinit> runs, so a <clinit> that refers back to its own class finds
// it; an attempt to recursively load the same class while its own
// construction (decode, supertype load, constructClass) is still in
// flight fails rather than looping.
func (lib *ClassLibrary) Load(name string) (*Class, error) {
	if cls, ok := lib.ByName(name); ok {
		return cls, nil
	}
	if lib.loading[name] {
		return nil, fmt.Errorf("cyclic class load: %s is already being loaded", name)
	}
	lib.loading[name] = true
	defer delete(lib.loading, name)

	data, err := lib.provider.LoadClass(name)
	if err != nil {
		return nil, &Error{Kind: ClassNotFound, Context: name, Err: err}
	}
	cd, err := classfile.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: DecodeFailed, Context: name, Err: err}
	}

	var parent *Class
	if cd.SuperClass != 0 {
		superName, err := classfile.GetClassName(cd.ConstantPool, cd.SuperClass)
		if err != nil {
			return nil, fmt.Errorf("resolving super_class of %s: %w", name, err)
		}
		parent, err = lib.Load(superName)
		if err != nil {
			return nil, fmt.Errorf("loading supertype %s of %s: %w", superName, name, err)
		}
	}

	cls, err := constructClass(lib, name, cd, parent)
	if err != nil {
		return nil, fmt.Errorf("constructing class %s: %w", name, err)
	}
	cls.Index = len(lib.classes)
	lib.classes = append(lib.classes, cls)
	cls.bindOwningClass(lib)

	// Register the name before running <clinit>, not after: <clinit>
	// overwhelmingly references its own class's static fields (e.g.
	// `static int x; static { x = 5; }` compiles to a PUTSTATIC on this
	// very class), which resolves through ResolveField -> lib.Load(name).
	// The class is already fully constructed and appended at this point,
	// so that lookup must succeed rather than trip the reentrancy guard
	// above, which only needs to forbid reentering construction itself.
	lib.byName[name] = cls.Index

	if err := lib.runClinit(cls); err != nil {
		return nil, fmt.Errorf("running <clinit> of %s: %w", name, err)
	}

	return cls, nil
}

// runClinit invokes a class's <clinit>, if it declared one, through the
// interpreter.
func (lib *ClassLibrary) runClinit(cls *Class) error {
	info, ok := cls.StaticMethods["<clinit>"]
	if !ok {
		return nil
	}
	_, _, err := lib.methodTable.Invoke(info.MethodIndex, lib.interp.bootstrapStack())
	return err
}
