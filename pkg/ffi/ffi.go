// Package ffi is a thin wrapper around github.com/ebitengine/purego, the
// one dependency in this project's reference corpus that calls into
// dynamically loaded native code without cgo. It supplies exactly the
// operations the harness needs: opening a shared object with a chosen
// symbol visibility, resolving a symbol to an address, reading native
// size_t/pointer-sized values out of a symbol's storage, and invoking a
// resolved function through an arbitrary number of pointer arguments.
//
// Grounded on ebiten-purego's dlfcn.go (Dlopen/Dlsym signatures and the
// RTLD_* mode constants) and func.go (calling convention).
package ffi

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Visibility selects the dlopen mode used to load an object, mirroring
// ccheck.c's subject-vs-tester distinction (spec.md §9 "Macro-generated
// ABI" note, §6): subjects load with Global so testers can resolve their
// symbols; testers load Local since nothing needs to see inside them.
type Visibility int

const (
	Local Visibility = iota
	Global
)

func (v Visibility) mode() int {
	switch v {
	case Global:
		return purego.RTLD_NOW | purego.RTLD_GLOBAL
	default:
		return purego.RTLD_NOW | purego.RTLD_LOCAL
	}
}

// Handle is an open dynamic object.
type Handle struct {
	path string
	ptr  uintptr
}

// Open dlopen()s path with the given visibility.
func Open(path string, vis Visibility) (*Handle, error) {
	h, err := purego.Dlopen(path, vis.mode())
	if err != nil {
		return nil, fmt.Errorf("dlopen %q: %w", path, err)
	}
	return &Handle{path: path, ptr: h}, nil
}

// Close dlclose()s the handle.
func (h *Handle) Close() error {
	return purego.Dlclose(h.ptr)
}

// Path returns the path this handle was opened from.
func (h *Handle) Path() string {
	return h.path
}

// Sym resolves a symbol's address within the handle.
func (h *Handle) Sym(name string) (uintptr, error) {
	addr, err := purego.Dlsym(h.ptr, name)
	if err != nil {
		return 0, fmt.Errorf("dlsym(%q, %q): %w", h.path, name, err)
	}
	return addr, nil
}

// ReadUintptr dereferences a pointer-sized (native size_t/uintptr) value
// out of process memory at addr, used for reading a _SIZEOF_PROVIDER_*
// symbol's value.
func ReadUintptr(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// ReadBytes copies n bytes out of process memory starting at addr, used
// for reading a _SIG_TEST_*/_PROVIDER_* symbol's string contents.
func ReadBytes(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// ReadCString reads a NUL-terminated string out of process memory starting
// at addr, used for _PROVIDER_<name>'s type-name string.
func ReadCString(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(addr + uintptr(n))) != 0 {
		n++
	}
	return string(ReadBytes(addr, n))
}

// WalkPairedStrings reads consecutive NUL-terminated string pairs starting
// at addr, stopping as soon as a pair's first string is empty (the
// doubly-NUL terminator written by interface.h's JOIN() macro), or once
// maxPairs pairs have been read. It mirrors ccheck.c's runTests walking a
// _SIG_TEST_ symbol's live bytes directly with a `for(;*cur;)` loop, rather
// than requiring the caller to know the buffer's length up front.
func WalkPairedStrings(addr uintptr, maxPairs int) [][2]string {
	var pairs [][2]string
	cur := addr

	for i := 0; i < maxPairs; i++ {
		typ := ReadCString(cur)
		if typ == "" {
			break
		}
		cur += uintptr(len(typ) + 1)

		name := ReadCString(cur)
		cur += uintptr(len(name) + 1)

		pairs = append(pairs, [2]string{typ, name})
	}

	return pairs
}

// Call invokes the function at fn with up to sentinel.MaxArity pointer
// arguments, returning its size_t-equivalent return value. This mirrors
// ccheck.c's switch(arity) dispatch in runSingleTest/loadOneProvider, but
// purego.SyscallN already accepts a variable argument count, so no
// hand-rolled switch is needed.
func Call(fn uintptr, args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(fn, args...)
	return r1
}
