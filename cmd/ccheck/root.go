package main

import (
	"fmt"
	"os"

	"github.com/loglob/ccheck/pkg/metrics"
	"github.com/loglob/ccheck/pkg/module"
	"github.com/loglob/ccheck/pkg/reporting"
	"github.com/loglob/ccheck/pkg/runner"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "ccheck SUBJECT... -- TESTER...",
	Short:   "Property-based test harness for native shared libraries",
	Long:    `ccheck dlopen's subject and tester shared objects, discovers their provider and test sentinel symbols, and runs every test against the Cartesian product of applicable provider data.`,
	Version: version,
	Args:    cobra.ArbitraryArgs,
	RunE:    runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ccheck.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&modeFlag, "mode", "", "fault guard mode: inprocess or subprocess (overrides config)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (overrides config)")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if modeFlag != "" {
		cfg.Execution.Mode = modeFlag
	}
	if metricsAddr != "" {
		cfg.Metrics.ListenAddr = metricsAddr
	}
	if noColor {
		cfg.Reporting.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := reporting.LogLevel(cfg.Framework.LogLevel)
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stderr,
	})

	// Zero testers is a valid invocation (e.g. ccheck run with only subjects,
	// or no arguments at all): Execute returns an empty summary and exit
	// code 0 rather than treating it as an error.
	subjects, testers := module.Partition(args, cmd.ArgsLenAtDash())

	col := reporting.NewColorizer(os.Stdout, cfg.Reporting.Color, cfg.Reporting.Color)

	var collector *metrics.Collector
	if cfg.Metrics.ListenAddr != "" {
		collector = metrics.NewCollector()
		metricsServer := metrics.NewServer(cfg.Metrics.ListenAddr, collector)
		errs := metricsServer.Start()
		go func() {
			if err := <-errs; err != nil {
				logger.Warn("metrics server failed, continuing without it", "error", err.Error())
			}
		}()
	}

	selfPath, err := os.Executable()
	if err != nil {
		selfPath = os.Args[0]
	}

	run := &runner.Run{
		Config:    cfg,
		Logger:    logger,
		Colorizer: col,
		Metrics:   collector,
		SelfPath:  selfPath,
	}

	summary, err := run.Execute(subjects, testers)
	if err != nil {
		return err
	}

	if code := summary.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}
