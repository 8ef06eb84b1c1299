// Package elf implements the ELF discovery engine: it reads the dynamic
// section of a shared object, resolves the length of its dynamic symbol
// table via DT_HASH or DT_GNU_HASH, and exposes the resulting symbols by
// name and value.
//
// This mirrors the algorithm the ccheck.c reference implementation runs
// against a live link_map, but against the object's on-disk bytes: Go has
// no portable, cgo-free way to reach the dynamic linker's internal
// bookkeeping for an object it dlopen'd through purego. The dynamic
// section and symbol/string tables of an ELF shared object are identical
// on disk and once mapped, so every invariant of the hash-walking
// algorithm below is preserved; only the base address used to turn a
// symbol's value into a live address is supplied separately, by the FFI
// layer's real dlsym call.
package elf

import (
	"debug/elf"
	"fmt"
	"os"
)

// Symbol is a single dynamic symbol table entry, identified by name with
// its st_value (an offset from the object's load base, not a live address).
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

// Object is a parsed view of one shared object's dynamic section, dynamic
// symbol table and dynamic string table.
type Object struct {
	path    string
	f       *os.File
	file    *elf.File
	symbols []Symbol
}

// Open parses the ELF dynamic section of the object at path and determines
// its dynamic symbol count via the same DT_HASH/DT_GNU_HASH algorithm
// ccheck.c's loadDL() runs. Returns a load error wrapping any failure, per
// spec.md §4.1 ("Missing DT_SYMTAB or DT_STRTAB, or inability to determine
// symbol count -> module-load error").
func Open(path string) (*Object, error) {
	raw, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	f, err := elf.NewFile(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("parse ELF file %q: %w", path, err)
	}

	o := &Object{path: path, f: raw, file: f}

	if err := o.load(); err != nil {
		o.Close()
		return nil, err
	}

	return o, nil
}

// Close releases the underlying file handle. The Object must not be used
// afterward.
func (o *Object) Close() error {
	return o.f.Close()
}

// Symbols returns every dynamic symbol found, skipping the reserved index 0
// entry (the undefined symbol), in definition order.
func (o *Object) Symbols() []Symbol {
	return o.symbols
}

// Class reports whether the object is 32- or 64-bit, needed by callers that
// must size native pointers/size_t values read out of symbol storage.
func (o *Object) Class() elf.Class {
	return o.file.Class
}

func (o *Object) load() error {
	dyn, err := readDynamicTags(o.file)
	if err != nil {
		return err
	}

	symtabOff, ok := vaddrToOffset(o.file, dyn.symtab)
	if !ok {
		return fmt.Errorf("couldn't find symbol table")
	}
	strtabOff, ok := vaddrToOffset(o.file, dyn.strtab)
	if !ok {
		return fmt.Errorf("couldn't find strings table")
	}

	count, err := symbolCount(o.file, o.f, dyn)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("couldn't determine symbol table size")
	}

	if dyn.syment != 0 && dyn.syment != symentSize(o.file) {
		// Sanity-check only: a mismatch is reported but does not fail the load.
		fmt.Fprintf(os.Stderr, "warning: %s: DT_SYMENT is %d, expected %d\n", o.path, dyn.syment, symentSize(o.file))
	}

	syms, err := readSymbols(o.file, o.f, symtabOff, strtabOff, count)
	if err != nil {
		return err
	}

	o.symbols = syms
	return nil
}

type dynamicTags struct {
	symtab  uint64
	strtab  uint64
	syment  uint64
	hash    uint64
	gnuHash uint64
	hasHash bool
	hasGNU  bool
}

// dtGNUHash is DT_GNU_HASH (0x6ffffef5), the same value as debug/elf's
// elf.DT_GNU_HASH.
const dtGNUHash = elf.DynTag(0x6ffffef5)

func readDynamicTags(f *elf.File) (dynamicTags, error) {
	var dyn dynamicTags

	sec := f.Section(".dynamic")
	if sec == nil {
		return dyn, fmt.Errorf("object has no .dynamic section")
	}
	data, err := sec.Data()
	if err != nil {
		return dyn, fmt.Errorf("read .dynamic section: %w", err)
	}

	entSize := 16
	if f.Class == elf.ELFCLASS32 {
		entSize = 8
	}

	for i := 0; i+entSize <= len(data); i += entSize {
		var tag int64
		var val uint64
		if f.Class == elf.ELFCLASS32 {
			tag = int64(int32(f.ByteOrder.Uint32(data[i:])))
			val = uint64(f.ByteOrder.Uint32(data[i+4:]))
		} else {
			tag = int64(f.ByteOrder.Uint64(data[i:]))
			val = f.ByteOrder.Uint64(data[i+8:])
		}

		switch elf.DynTag(tag) {
		case elf.DT_NULL:
			return dyn, nil
		case elf.DT_SYMTAB:
			dyn.symtab = val
		case elf.DT_STRTAB:
			dyn.strtab = val
		case elf.DT_SYMENT:
			dyn.syment = val
		case elf.DT_HASH:
			dyn.hash = val
			dyn.hasHash = true
		case dtGNUHash:
			dyn.gnuHash = val
			dyn.hasGNU = true
		}
	}

	return dyn, nil
}

func symentSize(f *elf.File) uint64 {
	if f.Class == elf.ELFCLASS32 {
		return 16
	}
	return 24
}

// vaddrToOffset translates a virtual address into a file offset by finding
// the PT_LOAD segment containing it.
func vaddrToOffset(f *elf.File, vaddr uint64) (uint64, bool) {
	if vaddr == 0 {
		return 0, false
	}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if vaddr >= p.Vaddr && vaddr < p.Vaddr+p.Filesz {
			return p.Off + (vaddr - p.Vaddr), true
		}
	}
	return 0, false
}

func readAt(f *os.File, off uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, int64(off)); err != nil {
		return nil, err
	}
	return buf, nil
}

func readCString(f *os.File, off uint64) (string, error) {
	const chunk = 64
	var b []byte
	for {
		buf, err := readAt(f, off+uint64(len(b)), chunk)
		if err != nil {
			return "", err
		}
		if i := indexZero(buf); i >= 0 {
			b = append(b, buf[:i]...)
			return string(b), nil
		}
		b = append(b, buf...)
		if len(b) > 1<<16 {
			return "", fmt.Errorf("string table entry at offset %d exceeds sanity limit", off)
		}
	}
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func readSymbols(f *elf.File, raw *os.File, symtabOff, strtabOff uint64, count uint64) ([]Symbol, error) {
	entSize := 24
	if f.Class == elf.ELFCLASS32 {
		entSize = 16
	}

	syms := make([]Symbol, 0, count)

	// Index 0 is the reserved undefined symbol; spec.md §4.1 says to skip it.
	for i := uint64(1); i < count; i++ {
		buf, err := readAt(raw, symtabOff+i*uint64(entSize), entSize)
		if err != nil {
			return nil, fmt.Errorf("read symbol table entry %d: %w", i, err)
		}

		var nameOff uint32
		var value uint64
		var size uint64
		if f.Class == elf.ELFCLASS32 {
			nameOff = f.ByteOrder.Uint32(buf[0:])
			value = uint64(f.ByteOrder.Uint32(buf[4:]))
			size = uint64(f.ByteOrder.Uint32(buf[8:]))
		} else {
			nameOff = f.ByteOrder.Uint32(buf[0:])
			value = f.ByteOrder.Uint64(buf[8:])
			size = f.ByteOrder.Uint64(buf[16:])
		}

		name, err := readCString(raw, strtabOff+uint64(nameOff))
		if err != nil {
			return nil, fmt.Errorf("read symbol %d name: %w", i, err)
		}

		if name == "" {
			continue
		}

		syms = append(syms, Symbol{Name: name, Value: value, Size: size})
	}

	return syms, nil
}
