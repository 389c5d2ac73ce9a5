package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gzhole/pipecheck/internal/config"
	"github.com/gzhole/pipecheck/internal/env"
	"github.com/gzhole/pipecheck/internal/logger"
	"github.com/gzhole/pipecheck/internal/logging"
	"github.com/gzhole/pipecheck/internal/runner"
	"github.com/gzhole/pipecheck/internal/suite"
	"github.com/gzhole/pipecheck/internal/sys"

	_ "github.com/gzhole/pipecheck/internal/shadow"
)

// loadConfig reads the layered configuration and applies the command-line
// flags on top.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	if opts.logPath != "" {
		cfg.LogPath = opts.logPath
	}
	if opts.noResults {
		cfg.Results = false
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	cfg.Run = config.RunConfig{
		ShadowPassing: opts.shadowPassing,
		LibcPassing:   opts.libcPassing,
		Summarize:     opts.summarize,
		Pattern:       opts.pattern,
	}
	return cfg, nil
}

func filterFor(cfg *config.Config) runner.Filter {
	return runner.Filter{
		ShadowPassing: cfg.Run.ShadowPassing,
		LibcPassing:   cfg.Run.LibcPassing,
		Pattern:       cfg.Run.Pattern,
	}
}

func suiteOptions(t config.TransferConfig) suite.Options {
	return suite.Options{
		TransferSize:  t.Size,
		MaxIterations: t.MaxIterations,
		Seed:          t.Seed,
	}
}

func runSuite(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	defer func() { _ = log.Sync() }()

	backend, err := sys.Open(cfg.Backend)
	if err != nil {
		return err
	}

	cases, err := filterFor(cfg).Apply(suite.AllTestCases())
	if err != nil {
		return err
	}

	var recorder runner.Recorder
	if cfg.Results {
		resultLog, err := logger.New(cfg.LogPath)
		if err != nil {
			return fmt.Errorf("failed to initialize results log: %w", err)
		}
		defer resultLog.Close()
		log.Debug("recording results", zap.String("path", resultLog.Path()))
		recorder = newResultRecorder(resultLog, backend.Environment(), cases)
	}

	r := runner.New(backend, log, recorder, runner.Options{
		Summarize: cfg.Run.Summarize,
		Suite:     suiteOptions(cfg.Transfer),
	})

	out := cmd.OutOrStdout()
	report, runErr := r.Run(cases)
	printReport(out, report, useIcons(out))

	if runErr != nil {
		return &ExitError{Code: ExitFailed, Err: runErr}
	}
	fmt.Fprintln(out, "Success.")
	return nil
}

func printReport(w io.Writer, report *runner.Report, icons bool) {
	for _, res := range report.Results {
		fmt.Fprintf(w, "  %s  %-34s %s\n", statusIcon(string(res.Status), icons), res.Name, formatDuration(res.Duration))
	}
	fmt.Fprintf(w, "\n  %s: %d/%d passed\n\n", report.Backend, report.Passed(), len(report.Results))
}

// resultRecorder appends every runner result to the results log.
type resultRecorder struct {
	log      *logger.ResultLogger
	env      env.Environment
	expected map[string]env.Set
	now      func() time.Time
}

func newResultRecorder(l *logger.ResultLogger, e env.Environment, cases []suite.TestCase) *resultRecorder {
	expected := make(map[string]env.Set, len(cases))
	for _, tc := range cases {
		expected[tc.Name] = tc.Envs
	}
	return &resultRecorder{log: l, env: e, expected: expected, now: time.Now}
}

func (r *resultRecorder) Record(res runner.Result) error {
	event := logger.ResultEvent{
		Timestamp:  r.now().UTC().Format(time.RFC3339),
		RunID:      res.RunID,
		Test:       res.Name,
		Backend:    res.Backend,
		Env:        r.env.String(),
		Expected:   r.expected[res.Name].String(),
		Result:     string(res.Status),
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}
	return r.log.Log(event)
}
