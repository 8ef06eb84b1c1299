package reporting

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// Conjugate pluralizes noun based on n, matching ccheck.c's CONJUGATE
// macro ("%zu %s" with an "s" appended when n != 1).
func Conjugate(n uint64, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// ANSI escape sequences matching ccheck.c's RED_BOLD/RED/YELLOW macros.
const (
	ansiReset    = "\x1B[0m"
	ansiRed      = "\x1B[31m"
	ansiRedBold  = "\x1B[91m"
	ansiYellow   = "\x1B[33m"
	ansiGreenish = "\x1B[92m"
)

// Colorizer wraps text in ANSI color codes when color output is enabled.
type Colorizer struct {
	enabled bool
}

// NewColorizer builds a Colorizer. When auto is true, color is enabled
// only if out is a terminal (golang.org/x/term.IsTerminal), matching
// common CLI convention for auto-detecting a piped/redirected stdout.
func NewColorizer(out io.Writer, forceColor, auto bool) *Colorizer {
	enabled := forceColor
	if auto {
		enabled = false
		if f, ok := out.(fder); ok {
			enabled = term.IsTerminal(int(f.Fd()))
		}
	}
	return &Colorizer{enabled: enabled}
}

type fder interface {
	Fd() uintptr
}

func (c *Colorizer) wrap(code, s string) string {
	if !c.enabled {
		return s
	}
	return code + s + ansiReset
}

// Red colors s the way ccheck.c's RED() macro does.
func (c *Colorizer) Red(s string) string { return c.wrap(ansiRed, s) }

// RedBold colors s the way ccheck.c's RED_BOLD() macro does.
func (c *Colorizer) RedBold(s string) string { return c.wrap(ansiRedBold, s) }

// Yellow colors s the way ccheck.c's YELLOW() macro does.
func (c *Colorizer) Yellow(s string) string { return c.wrap(ansiYellow, s) }

// Green colors s the way ccheck.c colors a passing module's report line
// (ANSI code 92, bright green).
func (c *Colorizer) Green(s string) string { return c.wrap(ansiGreenish, s) }

// ModuleLine renders a tester module's one-line report, matching ccheck.c's
// runTests trailer, which is a three-way branch on `if(!dl->provider)`
// rather than a plain zero-variants check: a module that ran no tests but
// does carry providers (e.g. a pure data source with no TEST() functions of
// its own) contributes nothing to the trailer at all, matching the C
// original's silence there. hasProvider is Module.HasProvider.
//
//   - variants > 0: the normal colorized "Ran N tests..." line.
//   - variants == 0 && !hasProvider: yellow "provided no data and
//     contained no tests".
//   - variants == 0 && hasProvider: nothing; callers should skip printing
//     when this returns "".
func ModuleLine(col *Colorizer, name string, tests, variants, failures uint64, hasProvider bool) string {
	if variants == 0 {
		if hasProvider {
			return ""
		}
		return col.Yellow(fmt.Sprintf("Module %s provided no data and contained no tests", name))
	}

	line := fmt.Sprintf("Module %s: Ran %s with %s, %s",
		name, Conjugate(tests, "test"), Conjugate(variants, "variant"), Conjugate(failures, "failure"))

	if failures > 0 {
		return col.Red(line)
	}
	return col.Green(line)
}

// SummaryLine renders the final aggregate report line across all modules.
func SummaryLine(col *Colorizer, tests, modules, variants, failures uint64) string {
	line := fmt.Sprintf("Summary: Ran %s from %s with %s, got %s",
		Conjugate(tests, "test"), Conjugate(modules, "module"), Conjugate(variants, "variant"), Conjugate(failures, "failure"))

	if failures > 0 {
		return col.RedBold(line)
	}
	return col.Green(line)
}
