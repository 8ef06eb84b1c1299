// Package provider implements loading of a single provider: resolving its
// sentinel symbols, running its size-query and fill calls under the fault
// guard, and inserting the resulting dataset into the registry. Grounded on
// ccheck.c's loadOneProvider.
package provider

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/loglob/ccheck/pkg/ffi"
	"github.com/loglob/ccheck/pkg/guard"
	"github.com/loglob/ccheck/pkg/registry"
	"github.com/loglob/ccheck/pkg/sentinel"
)

// Discover scans a module's symbol table for _SIZEOF_PROVIDER_* sentinels
// and loads each one found, inserting successfully loaded datasets into reg.
// fallbackVariantCount is used in place of a provider's size-query result
// when that query returns 0, matching ccheck.c's FALLBACK_VARIANT_COUNT and
// config.ExecutionConfig.FallbackVariantCount. Returns the number of
// providers successfully loaded, matching ccheck.c::loadProviders' return
// value, and a LoadError per provider that failed (loading continues past
// individual failures, exactly as the C original's for-loop does).
func Discover(moduleName string, h *ffi.Handle, symbols []string, reg *registry.Registry, messageBufferSize, fallbackVariantCount int) (loaded int, errs []error) {
	for _, name := range symbols {
		if !isSizeofProviderSymbol(name) {
			continue
		}

		providerName := sentinel.ProviderName(name)
		if err := loadOne(moduleName, h, providerName, reg, messageBufferSize, fallbackVariantCount); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}

	return loaded, errs
}

// resolveVariantCount applies the FALLBACK_VARIANT_COUNT substitution: a
// provider that reports 0 available variants gets fallback instead, the way
// ccheck.c's loadOneProvider treats a size query of 0 as "generate some".
func resolveVariantCount(n, fallback int) int {
	if n == 0 {
		return fallback
	}
	return n
}

func isSizeofProviderSymbol(name string) bool {
	return len(name) > len(sentinel.SizeofProviderPrefix) &&
		name[:len(sentinel.SizeofProviderPrefix)] == sentinel.SizeofProviderPrefix
}

// LoadError reports a failure to load a single provider, naming the
// offending module and provider.
type LoadError struct {
	Module   string
	Provider string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load provider %s::%s: %v", e.Module, e.Provider, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadOne(moduleName string, h *ffi.Handle, name string, reg *registry.Registry, messageBufferSize, fallbackVariantCount int) error {
	wrap := func(err error) error {
		return &LoadError{Module: moduleName, Provider: name, Err: err}
	}

	typeAddr, err := h.Sym(sentinel.ProviderTypeSymbol(name))
	if err != nil {
		return wrap(fmt.Errorf("missing symbol %q: %w", sentinel.ProviderTypeSymbol(name), err))
	}
	typeName := ffi.ReadCString(typeAddr)

	// The provider function itself shares the bare name; _SIZEOF_PROVIDER_
	// and _PROVIDER_ are the prefixed sentinels around it.
	provFn, err := h.Sym(name)
	if err != nil {
		return wrap(fmt.Errorf("missing provider function symbol %q: %w", name, err))
	}

	formatSym := sentinel.FormatterSymbol(typeName)
	fmtFn, err := h.Sym(formatSym)
	if err != nil {
		return wrap(fmt.Errorf("missing formatter symbol %q: %w", formatSym, err))
	}

	sizeofAddr, err := h.Sym(sentinel.SizeofSymbol(name))
	if err != nil {
		return wrap(fmt.Errorf("missing symbol %q: %w", sentinel.SizeofSymbol(name), err))
	}
	elementSize := int(ffi.ReadUintptr(sizeofAddr))

	var n uintptr
	queryResult := guard.Invoke(messageBufferSize, func() {
		n = ffi.Call(provFn, 0, 0)
	})
	if !queryResult.Passed() {
		return wrap(fmt.Errorf("%s during size query: %s", queryResult.Kind, queryResult.Message))
	}

	count := resolveVariantCount(int(n), fallbackVariantCount)

	buf := make([]byte, count*elementSize)

	var m uintptr
	fillResult := guard.Invoke(messageBufferSize, func() {
		var bufPtr uintptr
		if len(buf) > 0 {
			bufPtr = uintptr(unsafe.Pointer(&buf[0]))
		}
		m = ffi.Call(provFn, uintptr(count), bufPtr)
	})
	runtime.KeepAlive(buf)
	if !fillResult.Passed() {
		return wrap(fmt.Errorf("%s during fill: %s", fillResult.Kind, fillResult.Message))
	}

	filled := int(m)
	if filled > count {
		return wrap(fmt.Errorf("provider returned unexpected size %d (requested %d)", filled, count))
	}
	if filled < count {
		buf = buf[:filled*elementSize]
	}

	dataset := &registry.Dataset{
		Module: moduleName,
		Name:   name,
		Count:  filled,
		Data:   buf,
		Format: makeFormatter(fmtFn, elementSize, messageBufferSize),
	}

	if err := reg.Insert(typeName, elementSize, dataset); err != nil {
		return wrap(err)
	}
	return nil
}

// makeFormatter wraps a dlsym'd format_f(char* buf, size_t n, const void*
// elt) -> size_t into a registry.Formatter.
func makeFormatter(fmtFn uintptr, elementSize, messageBufferSize int) registry.Formatter {
	if messageBufferSize <= 0 {
		messageBufferSize = guard.DefaultMessageBufferSize
	}

	return func(elt []byte) string {
		out := make([]byte, messageBufferSize)

		var eltPtr uintptr
		if len(elt) > 0 {
			eltPtr = uintptr(unsafe.Pointer(&elt[0]))
		}

		res := guard.Invoke(messageBufferSize, func() {
			ffi.Call(fmtFn, uintptr(unsafe.Pointer(&out[0])), uintptr(len(out)), eltPtr)
		})
		runtime.KeepAlive(out)
		runtime.KeepAlive(elt)

		if !res.Passed() {
			return fmt.Sprintf("<format error: %s>", res.Message)
		}

		n := 0
		for n < len(out) && out[n] != 0 {
			n++
		}
		return string(out[:n])
	}
}
