// Package runner executes pipe cases in order and aggregates their results.
package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gzhole/pipecheck/internal/suite"
	"github.com/gzhole/pipecheck/internal/sys"
)

// Status is the outcome of one case.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Result describes one executed case.
type Result struct {
	RunID    string
	Name     string
	Backend  string
	Status   Status
	Err      error
	Duration time.Duration
}

// Recorder receives every result as soon as its case finishes.
type Recorder interface {
	Record(Result) error
}

// Failure is a case that did not pass.
type Failure struct {
	Name string
	Err  error
}

// Report aggregates a run.
type Report struct {
	RunID    string
	Backend  string
	Results  []Result
	Failures []Failure
}

// Passed counts the passing cases.
func (r *Report) Passed() int {
	return len(r.Results) - len(r.Failures)
}

// CaseError is the fail-fast error: the first case that failed.
type CaseError struct {
	Name string
	Err  error
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("test %s failed: %v", e.Name, e.Err)
}

func (e *CaseError) Unwrap() error { return e.Err }

// SummaryError lists every failure of a summarize-mode run.
type SummaryError struct {
	Failures []Failure
	Total    int
}

func (e *SummaryError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d tests failed:", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  %s: %v", f.Name, f.Err)
	}
	return sb.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *SummaryError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Options controls a run.
type Options struct {
	// Summarize keeps running after a failure and reports every failure
	// at the end.
	Summarize bool
	Suite     suite.Options
}

// Runner executes cases against one backend.
type Runner struct {
	sys      sys.Interface
	log      *zap.Logger
	recorder Recorder
	opts     Options
}

// New returns a Runner. log and recorder may be nil.
func New(s sys.Interface, log *zap.Logger, recorder Recorder, opts Options) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{sys: s, log: log, recorder: recorder, opts: opts}
}

// Run executes cases sequentially in list order. Without summarize mode the
// first failure stops the run and is returned as a *CaseError; with it, all
// cases run and any failures come back as a *SummaryError. The report is
// returned in both cases.
func (r *Runner) Run(cases []suite.TestCase) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Backend: r.sys.Name()}
	r.log.Info("starting run",
		zap.String("run_id", report.RunID),
		zap.String("backend", report.Backend),
		zap.Int("cases", len(cases)),
		zap.Bool("summarize", r.opts.Summarize))

	for _, tc := range cases {
		res := r.runOne(report.RunID, tc)
		report.Results = append(report.Results, res)

		if r.recorder != nil {
			if err := r.recorder.Record(res); err != nil {
				r.log.Warn("failed to record result", zap.String("test", tc.Name), zap.Error(err))
			}
		}

		if res.Status == StatusPass {
			continue
		}
		report.Failures = append(report.Failures, Failure{Name: tc.Name, Err: res.Err})
		if !r.opts.Summarize {
			return report, &CaseError{Name: tc.Name, Err: res.Err}
		}
	}

	if len(report.Failures) > 0 {
		return report, &SummaryError{Failures: report.Failures, Total: len(report.Results)}
	}
	return report, nil
}

func (r *Runner) runOne(runID string, tc suite.TestCase) Result {
	log := r.log.With(zap.String("test", tc.Name))
	fixture := &suite.Fixture{Sys: r.sys, Log: log, Options: r.opts.Suite}

	start := time.Now()
	err := invoke(tc, fixture)
	res := Result{
		RunID:    runID,
		Name:     tc.Name,
		Backend:  r.sys.Name(),
		Status:   StatusPass,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Status = StatusFail
		res.Err = err
		log.Error("test failed", zap.Error(err), zap.Duration("duration", res.Duration))
		return res
	}
	log.Debug("test passed", zap.Duration("duration", res.Duration))
	return res
}

// invoke turns a panicking body into an ordinary failure.
func invoke(tc suite.TestCase, f *suite.Fixture) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return tc.Run(f)
}
