//go:build !amd64

// This build keeps pkg/compiler importable (and MethodTable fully
// functional, interpreter-only) on architectures this package has no
// native backend for.
package compiler

import "github.com/daimatz/gojvm/pkg/runtime"

// Compile always fails on a non-amd64 host; every method simply stays
// interpreted.
func Compile(mt *runtime.MethodTable, mi runtime.MethodIndex) error {
	return &runtime.Error{Kind: runtime.UnsupportedPlatform, Context: "native compiler has no backend for this architecture"}
}
