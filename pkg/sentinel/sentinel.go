// Package sentinel implements the ABI between the macro layer (the user's
// PROVIDER()/TEST() macros, treated as an external wire format per spec.md
// §1) and the harness: the sentinel symbol naming conventions and the
// doubly-NUL-terminated test signature encoding.
package sentinel

import "strings"

// Symbol name prefixes that classify a dynamic symbol as part of the ABI.
// Discovery iterates symbols in definition order and classifies by prefix;
// everything else is ignored.
const (
	SizeofProviderPrefix = "_SIZEOF_PROVIDER_"
	ProviderPrefix       = "_PROVIDER_"
	SigTestPrefix        = "_SIG_TEST_"
	TestTrampolinePrefix = "_TEST_"
	FormatPrefix         = "format_"
)

// ProviderName strips the _SIZEOF_PROVIDER_ prefix from a symbol name,
// yielding the provider's human-readable name.
func ProviderName(sizeofSymbol string) string {
	return strings.TrimPrefix(sizeofSymbol, SizeofProviderPrefix)
}

// TestName strips the _SIG_TEST_ prefix from a symbol name, yielding the
// test's human-readable name.
func TestName(sigSymbol string) string {
	return strings.TrimPrefix(sigSymbol, SigTestPrefix)
}

// MungeType replaces spaces with underscores so that a type name like
// "struct foo" becomes the formatter symbol suffix "struct_foo", matching
// ccheck.c's `tr ' ' '_'` pass over the PROVIDER() type name.
func MungeType(typeName string) string {
	return strings.ReplaceAll(typeName, " ", "_")
}

// FormatterSymbol returns the dlsym name of the formatter function for a
// given provided type name, e.g. "struct foo" -> "format_struct_foo".
func FormatterSymbol(typeName string) string {
	return FormatPrefix + MungeType(typeName)
}

// SizeofSymbol returns the _SIZEOF_PROVIDER_<name> symbol name for a
// provider called name.
func SizeofSymbol(name string) string {
	return SizeofProviderPrefix + name
}

// ProviderTypeSymbol returns the _PROVIDER_<name> symbol name for a
// provider called name.
func ProviderTypeSymbol(name string) string {
	return ProviderPrefix + name
}

// TrampolineSymbol returns the _TEST_<name> symbol name for a test called
// name.
func TrampolineSymbol(name string) string {
	return TestTrampolinePrefix + name
}

// SigSymbol returns the _SIG_TEST_<name> symbol name for a test called
// name.
func SigSymbol(name string) string {
	return SigTestPrefix + name
}
