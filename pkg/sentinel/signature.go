package sentinel

import (
	"bytes"
	"fmt"
)

// MaxArity is the maximum number of arguments a TEST() function may take,
// matching interface.h's MAX_ARITY.
const MaxArity = 8

// Arg is one argument slot of a test's signature: its C type name and its
// argument name, in declaration order.
type Arg struct {
	Type string
	Name string
}

// Signature is a parsed _SIG_TEST_<name> value: the test's arguments in
// declaration order, plus the distinct set of types it references, each
// with the index into Types that the corresponding Args entry uses.
type Signature struct {
	Args      []Arg
	Types     []string
	TypeIndex []int // len(TypeIndex) == len(Args)
}

// ParseSignature decodes a doubly-NUL-terminated "type\0argname\0..." byte
// sequence as produced by interface.h's JOIN() macro, deduplicating type
// names in declaration order. Returns an error if arity exceeds MaxArity
// or the fields do not form pairs (an odd number of NUL-delimited fields).
// Trailing NULs are stripped before splitting, so input that lacks the
// final empty pair is not rejected.
func ParseSignature(raw []byte) (Signature, error) {
	raw = bytes.TrimRight(raw, "\x00")
	fields := splitNUL(raw)

	if len(fields) == 1 && fields[0] == "" {
		// Arity 0: JOIN() with no arguments still appends the terminating
		// "\0\0", which TrimRight strips entirely, leaving one empty field.
		return Signature{}, nil
	}

	if len(fields)%2 != 0 {
		return Signature{}, fmt.Errorf("malformed test signature: odd number of NUL-delimited fields")
	}

	arity := len(fields) / 2
	if arity > MaxArity {
		return Signature{}, fmt.Errorf("arity %d exceeds maximum of %d", arity, MaxArity)
	}

	b := NewSignatureBuilder()
	for i := 0; i < arity; i++ {
		b.Add(fields[2*i], fields[2*i+1])
	}
	return b.Build(), nil
}

// SignatureBuilder accumulates (type, argname) pairs one at a time,
// deduplicating type names in declaration order, the way ccheck.c's
// runTests walks a _SIG_TEST_ string live from process memory one
// NUL-terminated pair at a time rather than from a pre-sliced buffer. Used
// directly by pkg/testdriver's live-memory walk, and internally by
// ParseSignature for the buffer-based case tests exercise.
type SignatureBuilder struct {
	sig Signature
}

// NewSignatureBuilder returns an empty builder.
func NewSignatureBuilder() *SignatureBuilder {
	return &SignatureBuilder{}
}

// Add appends one argument to the signature being built.
func (b *SignatureBuilder) Add(typ, name string) {
	idx := -1
	for j, t := range b.sig.Types {
		if t == typ {
			idx = j
			break
		}
	}
	if idx == -1 {
		idx = len(b.sig.Types)
		b.sig.Types = append(b.sig.Types, typ)
	}

	b.sig.Args = append(b.sig.Args, Arg{Type: typ, Name: name})
	b.sig.TypeIndex = append(b.sig.TypeIndex, idx)
}

// Build returns the accumulated signature.
func (b *SignatureBuilder) Build() Signature {
	return b.sig
}

// Arity returns the number of arguments described by the signature.
func (s Signature) Arity() int {
	return len(s.Args)
}

func splitNUL(b []byte) []string {
	if len(b) == 0 {
		return []string{""}
	}
	parts := bytes.Split(b, []byte{0})
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}
