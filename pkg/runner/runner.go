// Package runner drives a full ccheck invocation: loading subjects and
// testers, building the provider registry, running every tester module's
// tests in parallel (one goroutine per module, mirroring ccheck.c's
// pthread_create/pthread_join loop over dl's), and reporting results.
package runner

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/loglob/ccheck/pkg/config"
	"github.com/loglob/ccheck/pkg/guard"
	"github.com/loglob/ccheck/pkg/metrics"
	"github.com/loglob/ccheck/pkg/module"
	"github.com/loglob/ccheck/pkg/provider"
	"github.com/loglob/ccheck/pkg/registry"
	"github.com/loglob/ccheck/pkg/reporting"
	"github.com/loglob/ccheck/pkg/sentinel"
	"github.com/loglob/ccheck/pkg/testdriver"
)

// Run holds everything needed to execute one ccheck invocation.
type Run struct {
	Config    *config.Config
	Logger    *reporting.Logger
	Colorizer *reporting.Colorizer
	Metrics   *metrics.Collector

	// SelfPath is the harness's own executable (cmd/ccheck passes
	// os.Executable(), or os.Args[0] if that fails), used to re-exec a
	// subprocess-mode worker. Only
	// consulted when Config.Execution.Mode == "subprocess".
	SelfPath string

	// SubjectPaths are passed through to a subprocess worker so it can
	// reload the same subjects before running its one assigned test.
	SubjectPaths []string
}

// Summary is the aggregate outcome of a full run.
type Summary struct {
	Modules      int
	LoadFailures int
	Tests        uint64
	Variants     uint64
	Failures     uint64
}

// ExitCode returns the process exit code for this summary, matching the
// harness's convention of a non-zero exit on any load failure or test
// failure.
func (s Summary) ExitCode() int {
	if s.LoadFailures > 0 || s.Failures > 0 {
		return 1
	}
	return 0
}

// Execute loads subjects and testers, builds the registry, runs every
// tester module's tests, and returns the aggregate summary. A subject or
// tester path that fails to load does not abort the run: it is counted into
// the summary's LoadFailures and every module that did load still runs,
// matching ccheck.c's main(), which keeps walking argv past a bad path.
func (r *Run) Execute(subjectPaths, testerPaths []string) (Summary, error) {
	r.SubjectPaths = subjectPaths

	subjects, testers, loadErrs := module.LoadAll(subjectPaths, testerPaths)
	defer closeAll(subjects, testers)

	loadFailures := len(loadErrs)
	for _, e := range loadErrs {
		r.Logger.ModuleLoadFailed(e)
	}

	reg := registry.New()

	for _, m := range testers {
		loaded, errs := provider.Discover(m.Name, m.Handle, symbolNames(m), reg,
			r.Config.Execution.MessageBufferSize, r.Config.Execution.FallbackVariantCount)
		for _, e := range errs {
			r.Logger.ProviderLoadFailed(m.Name, e)
			loadFailures++
		}
		m.HasProvider = loaded > 0
	}

	var wg sync.WaitGroup
	wg.Add(len(testers))

	// A buffered channel used as a counting semaphore: MaxConcurrentWorkers
	// == 0 means unlimited, so every goroutine launches immediately (Go
	// goroutines never fail to start the way pthread_create can; this path
	// exists for the documented throttled case, not as a fallback for a
	// launch failure that cannot occur).
	var sem chan struct{}
	if n := r.Config.Execution.MaxConcurrentWorkers; n > 0 {
		sem = make(chan struct{}, n)
	}

	for _, m := range testers {
		m := m
		go func() {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			r.runModule(m, reg)
		}()
	}
	wg.Wait()

	summary := summarize(testers, loadFailures)

	for _, m := range testers {
		c := m.Counters()
		line := reporting.ModuleLine(r.Colorizer, m.Name, c.Succeeded+c.Failed, c.Variants, c.Failed, m.HasProvider)
		if line != "" {
			fmt.Println(line)
		}
	}

	fmt.Println(reporting.SummaryLine(r.Colorizer, summary.Tests, uint64(summary.Modules), summary.Variants, summary.Failures))

	if r.Metrics != nil {
		r.Metrics.Set(uint64(summary.Modules), summary.Tests, summary.Variants, summary.Failures)
	}

	return summary, nil
}

// runModule runs every test discovered in m against reg, dispatching each
// one through the fault guard mode configured for this run.
func (r *Run) runModule(m *module.Module, reg *registry.Registry) {
	for _, s := range m.Symbols() {
		if !strings.HasPrefix(s.Name, sentinel.SigTestPrefix) {
			continue
		}

		desc, err := testdriver.Resolve(m.Handle, s.Name)
		if err != nil {
			r.Logger.TestFailed(m.Name, s.Name, err)
			m.AddResult(false)
			continue
		}

		outcome := r.runTest(m, desc, reg)

		for i := 0; i < outcome.Variants; i++ {
			m.AddVariant()
		}
		m.AddResult(outcome.Passed)

		if !outcome.Passed {
			fmt.Println(r.Colorizer.RedBold(outcome.Message))
		}
	}
}

// runTest dispatches desc through either an in-process native call or a
// re-exec'd subprocess worker, per r.Config.Execution.Mode. If the worker
// process itself never got running (guard.StartError), this falls back to
// running the test in-process for this run rather than reporting a
// synthetic failure, logging a warning about the fallback.
func (r *Run) runTest(m *module.Module, desc testdriver.Descriptor, reg *registry.Registry) testdriver.Outcome {
	if r.Config.Execution.Mode == "subprocess" && r.SelfPath != "" {
		outcome, err := r.runTestSubprocess(m, desc)
		var startErr *guard.StartError
		if err == nil {
			return outcome
		}
		if errors.As(err, &startErr) {
			r.Logger.WorkerFallback(m.Name, desc.Name, startErr)
			return r.runTestInProcess(m, desc, reg)
		}
		return testdriver.Outcome{
			Passed:  false,
			Message: fmt.Sprintf("Failed test %s::%s( ): %v", m.Name, desc.Name, err),
		}
	}

	return r.runTestInProcess(m, desc, reg)
}

func (r *Run) runTestInProcess(m *module.Module, desc testdriver.Descriptor, reg *registry.Registry) testdriver.Outcome {
	invoke := testdriver.NativeInvoker(desc.Func, r.Config.Execution.MessageBufferSize)
	return testdriver.RunTest(m.Name, desc, reg, invoke)
}

// summarize aggregates every tester module's final counters into a single
// Summary, the post-join reduction spec.md's §5 happens-before-via-join
// invariant describes: safe to call only once every worker goroutine for
// testers has returned.
func summarize(testers []*module.Module, loadFailures int) Summary {
	summary := Summary{Modules: len(testers), LoadFailures: loadFailures}

	for _, m := range testers {
		c := m.Counters()
		summary.Tests += c.Succeeded + c.Failed
		summary.Variants += c.Variants
		summary.Failures += c.Failed
	}

	return summary
}

func closeAll(groups ...[]*module.Module) {
	for _, g := range groups {
		for _, m := range g {
			m.Close()
		}
	}
}

func symbolNames(m *module.Module) []string {
	syms := m.Symbols()
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.Name
	}
	return names
}
