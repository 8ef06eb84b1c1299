package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/loglob/ccheck/pkg/guard"
	"github.com/loglob/ccheck/pkg/module"
	"github.com/loglob/ccheck/pkg/provider"
	"github.com/loglob/ccheck/pkg/registry"
	"github.com/loglob/ccheck/pkg/testdriver"
)

// workerJob describes a single test to a re-exec'd subprocess worker:
// enough to reload the subjects and the one tester module that declares
// it, and rebuild just the registry entries that tester contributes.
type workerJob struct {
	SubjectPaths         []string
	TesterPath           string
	SigSymbol            string
	MessageBufferSize    int
	FallbackVariantCount int
}

// runTestSubprocess runs desc in a freshly re-exec'd child process via
// guard.RunWorker, isolating the parent from a crash or fault inside the
// native test function. The child rebuilds its own registry from m's
// provider symbols rather than inheriting the parent's, since memory
// (including dlopen'd mappings) isn't shared across the fork+exec.
func (r *Run) runTestSubprocess(m *module.Module, desc testdriver.Descriptor) (testdriver.Outcome, error) {
	job := workerJob{
		SubjectPaths:         r.SubjectPaths,
		TesterPath:           m.Name,
		SigSymbol:            sigSymbolFor(desc),
		MessageBufferSize:    r.Config.Execution.MessageBufferSize,
		FallbackVariantCount: r.Config.Execution.FallbackVariantCount,
	}

	out, err := guard.RunWorker(r.SelfPath, job, r.Config.Execution.WorkerTimeout, "--ccheck-worker")
	if err != nil {
		return testdriver.Outcome{}, err
	}

	var outcome testdriver.Outcome
	if jsonErr := json.Unmarshal(out, &outcome); jsonErr != nil {
		return testdriver.Outcome{}, fmt.Errorf("decoding worker output %q: %w", out, jsonErr)
	}
	return outcome, nil
}

func sigSymbolFor(desc testdriver.Descriptor) string {
	return "_SIG_TEST_" + desc.Name
}

// RunWorkerMain is the entry point for a re-exec'd subprocess worker: it
// reads one workerJob as a JSON line from in, loads the named subjects and
// tester, runs the single requested test in-process (this process IS the
// isolation boundary), and writes the resulting testdriver.Outcome as one
// JSON line to out. Called from cmd/ccheck when --ccheck-worker is set.
//
// A subject that fails to load, or a provider that fails within the tester
// module, is logged to stderr and skipped rather than aborting the worker:
// the single test this worker was asked to run may not even touch the
// failed provider's type, matching the in-process path's tolerance of
// partial provider failures. Only the tester module itself failing to load
// is fatal, since there is then nothing left to test.
func RunWorkerMain(in io.Reader, out io.Writer) error {
	var job workerJob
	if err := json.NewDecoder(in).Decode(&job); err != nil {
		return fmt.Errorf("decoding worker job: %w", err)
	}

	subjects, testers, loadErrs := module.LoadAll(job.SubjectPaths, []string{job.TesterPath})
	defer func() {
		for _, m := range testers {
			m.Close()
		}
		for _, m := range subjects {
			m.Close()
		}
	}()
	for _, e := range loadErrs {
		fmt.Fprintln(os.Stderr, e.Error())
	}
	if len(testers) == 0 {
		return fmt.Errorf("failed to load tester %q", job.TesterPath)
	}

	m := testers[0]

	reg := registry.New()
	if _, errs := provider.Discover(m.Name, m.Handle, symbolNames(m), reg, job.MessageBufferSize, job.FallbackVariantCount); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
	}

	desc, err := testdriver.Resolve(m.Handle, job.SigSymbol)
	if err != nil {
		return err
	}

	invoke := testdriver.NativeInvoker(desc.Func, job.MessageBufferSize)
	outcome := testdriver.RunTest(m.Name, desc, reg, invoke)

	enc := json.NewEncoder(out)
	return enc.Encode(outcome)
}
