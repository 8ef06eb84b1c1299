// Command ccheck dlopen's subject and tester shared objects, discovers
// their provider and test sentinel symbols, and runs every test against
// the Cartesian product of applicable provider data.
package main

import (
	"os"

	"github.com/loglob/ccheck/pkg/runner"
)

var (
	cfgFile     string
	verbose     bool
	modeFlag    string
	metricsAddr string
	noColor     bool
	version     = "dev"
)

// workerFlag is handled before cobra ever sees the argument list: a
// subprocess worker's stdin carries a single JSON job, not a line cobra
// should try to parse as a flag/arg.
const workerFlag = "--ccheck-worker"

func main() {
	if isWorkerInvocation(os.Args[1:]) {
		if err := runner.RunWorkerMain(os.Stdin, os.Stdout); err != nil {
			os.Exit(2)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isWorkerInvocation(args []string) bool {
	for _, a := range args {
		if a == workerFlag {
			return true
		}
	}
	return false
}
