// Package registry implements the provider registry: a set of per-type
// buckets, each holding every dataset loaded for that type across all
// tester modules.
package registry

import (
	"fmt"
	"sync"
)

// Formatter renders a single element of a dataset for diagnostic output.
// It wraps the C ABI's format_f: given an element's bytes, it returns the
// rendered text, already truncated to the formatter's own buffer size.
type Formatter func(elt []byte) string

// Dataset is one provider's contribution to a bucket: spec.md's Provider.
type Dataset struct {
	// Module is the name of the tester module that produced this dataset
	// (the CLI argument used to load it).
	Module string
	// Name is the provider's human-readable dataset name (PROVIDER()'s
	// second argument).
	Name string
	// Count is the number of elements in Data.
	Count int
	// Data is the contiguous buffer of Count*ElementSize bytes.
	Data []byte
	// Format renders one element for diagnostics.
	Format Formatter
}

// Element returns the i'th element's raw bytes, given the owning bucket's
// element size.
func (d *Dataset) Element(elementSize, i int) []byte {
	off := i * elementSize
	return d.Data[off : off+elementSize]
}

// Bucket is the registry node for one type name: every dataset providing
// values of that type, plus the element size all of them must agree on.
type Bucket struct {
	Type        string
	ElementSize int
	Datasets    []*Dataset
}

// Registry is the set of buckets, keyed by type name. It is built
// single-threaded during the provider-loading phase (spec.md §4.3:
// "provider loading runs on the main thread, one module at a time, before
// any test worker is spawned") and is immutable and lock-free to read once
// workers start; Insert must not be called concurrently with Bucket
// lookups from worker goroutines.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{buckets: make(map[string]*Bucket)}
}

// Lookup returns the bucket for a type name, or nil if no provider has
// supplied data of that type.
func (r *Registry) Lookup(typeName string) *Bucket {
	return r.buckets[typeName]
}

// Insert adds a dataset to the bucket for typeName, creating the bucket if
// absent. It rejects the dataset (returning an error, leaving the registry
// unchanged for that dataset while retaining any other datasets already in
// the bucket) if elementSize disagrees with the bucket's existing element
// size, matching spec.md §3's bucket invariant.
func (r *Registry) Insert(typeName string, elementSize int, d *Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[typeName]
	if ok && b.ElementSize != elementSize {
		return fmt.Errorf("size mismatch between other %s providers: expected %d bytes, got %d", typeName, b.ElementSize, elementSize)
	}

	if len(d.Data) != d.Count*elementSize {
		return fmt.Errorf("dataset %s::%s has %d bytes for %d elements of size %d", d.Module, d.Name, len(d.Data), d.Count, elementSize)
	}

	if !ok {
		b = &Bucket{Type: typeName, ElementSize: elementSize}
		r.buckets[typeName] = b
	}

	b.Datasets = append(b.Datasets, d)
	return nil
}

// Buckets returns every bucket currently in the registry. Safe to call
// once the registry is immutable (post provider-load phase).
func (r *Registry) Buckets() []*Bucket {
	out := make([]*Bucket, 0, len(r.buckets))
	for _, b := range r.buckets {
		out = append(out, b)
	}
	return out
}
