package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gzhole/pipecheck/internal/env"
	"github.com/gzhole/pipecheck/internal/logger"
	"github.com/gzhole/pipecheck/internal/runner"
	"github.com/gzhole/pipecheck/internal/shadow"
	"github.com/gzhole/pipecheck/internal/suite"
	"github.com/gzhole/pipecheck/internal/sys"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRoot()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// brokenWrites is a simulated host whose writes always fail with EIO.
type brokenWrites struct{ *shadow.Host }

func (brokenWrites) Name() string { return "broken-writes" }

func (brokenWrites) Write(int, []byte) (int, error) { return -1, unix.EIO }

func init() {
	sys.Register("broken-writes", func() (sys.Interface, error) {
		return brokenWrites{shadow.New()}, nil
	})
}

// Every case except test_pipe and test_pipe2_nonblock_empty_read writes.
var writingCases = []string{
	"test_read_write",
	"test_large_read_write",
	"test_read_write_empty",
	"test_dup",
	"test_write_to_read_end",
	"test_read_from_write_end",
	"test_read_after_write_end_closed",
	"test_write_after_read_end_closed",
}

func TestRoot_FailingRunStopsAtFirstFailure(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "--backend", "broken-writes")
	if err == nil {
		t.Fatalf("expected failure, got output:\n%s", out)
	}

	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	if ee.Code != ExitFailed || ExitCode(err) != ExitFailed {
		t.Errorf("exit code = %d, want %d", ee.Code, ExitFailed)
	}
	var ce *runner.CaseError
	if !errors.As(err, &ce) || ce.Name != "test_read_write" {
		t.Errorf("expected test_read_write to stop the run, got %v", err)
	}
	if !errors.Is(err, unix.EIO) {
		t.Errorf("error should wrap EIO: %v", err)
	}
	if strings.Contains(out, "Success.") {
		t.Errorf("failing run must not print Success.:\n%s", out)
	}
	if strings.Contains(out, "test_large_read_write") {
		t.Errorf("cases after the first failure should not run:\n%s", out)
	}
}

func TestRoot_FailingRunSummarize(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "--backend", "broken-writes", "--summarize")
	if ExitCode(err) != ExitFailed {
		t.Fatalf("exit code = %d, want %d (err %v)", ExitCode(err), ExitFailed, err)
	}
	if strings.Contains(out, "Success.") {
		t.Errorf("failing run must not print Success.:\n%s", out)
	}

	var se *runner.SummaryError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SummaryError, got %T: %v", err, err)
	}
	if !strings.HasPrefix(err.Error(), "8 of 10 tests failed:") {
		t.Errorf("unexpected summary: %v", err)
	}
	for _, name := range writingCases {
		if !strings.Contains(err.Error(), "\n  "+name+": ") {
			t.Errorf("summary is missing %s:\n%v", name, err)
		}
	}
	for _, name := range []string{"test_pipe:", "test_pipe2_nonblock_empty_read:"} {
		if strings.Contains(err.Error(), name) {
			t.Errorf("%s passed and should not be listed:\n%v", name, err)
		}
	}
	if !strings.Contains(out, "broken-writes: 2/10 passed") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != ExitOK {
		t.Errorf("ExitCode(nil) = %d", got)
	}
	if got := ExitCode(errors.New("bad flag")); got != ExitSetup {
		t.Errorf("ExitCode(plain) = %d, want %d", got, ExitSetup)
	}
	wrapped := fmt.Errorf("run: %w", &ExitError{Code: 7})
	if got := ExitCode(wrapped); got != 7 {
		t.Errorf("ExitCode(wrapped) = %d, want 7", got)
	}
	if msg := (&ExitError{Code: 3}).Error(); msg != "exit status 3" {
		t.Errorf("bare ExitError message = %q", msg)
	}
}

func TestRoot_ShadowPassing(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "--backend", "shadow", "--shadow-passing")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.HasSuffix(out, "Success.\n") {
		t.Errorf("expected output to end with Success., got:\n%s", out)
	}
	if strings.Contains(out, "test_dup") {
		t.Errorf("test_dup is not tagged Shadow and should be filtered out:\n%s", out)
	}
}

func TestRoot_SummarizeAllOnShadow(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "--backend", "shadow", "--summarize")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	for _, tc := range suite.AllTestCases() {
		if !strings.Contains(out, tc.Name) {
			t.Errorf("expected %s in report", tc.Name)
		}
	}
	if !strings.Contains(out, "Success.") {
		t.Errorf("expected Success., got:\n%s", out)
	}
}

func TestRoot_RunPattern(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "--backend", "shadow", "--run", "^test_pipe$")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "shadow: 1/1 passed") {
		t.Errorf("expected exactly one case, got:\n%s", out)
	}
}

func TestRoot_InvalidPattern(t *testing.T) {
	setHome(t)

	if _, err := runCLI(t, "--backend", "shadow", "--run", "("); err == nil {
		t.Fatal("expected an error for an invalid --run pattern")
	}
}

func TestRoot_UnknownBackend(t *testing.T) {
	setHome(t)

	_, err := runCLI(t, "--backend", "bogus")
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
	if ExitCode(err) != ExitSetup {
		t.Errorf("exit code = %d, want %d", ExitCode(err), ExitSetup)
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error should name the backend, got %v", err)
	}
}

func TestRoot_WritesResultsLog(t *testing.T) {
	setHome(t)
	logPath := filepath.Join(t.TempDir(), "results.jsonl")

	if out, err := runCLI(t, "--backend", "shadow", "--shadow-passing", "--log", logPath); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	events, err := logger.ReadAll(logPath)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := 0
	for _, tc := range suite.AllTestCases() {
		if tc.Passing(env.Shadow) {
			want++
		}
	}
	if len(events) != want {
		t.Fatalf("expected %d events, got %d", want, len(events))
	}
	runID := events[0].RunID
	for _, e := range events {
		if e.Result != "PASS" {
			t.Errorf("%s: expected PASS, got %s (%s)", e.Test, e.Result, e.Error)
		}
		if e.Backend != "shadow" || e.Env != "shadow" {
			t.Errorf("%s: unexpected backend/env %s/%s", e.Test, e.Backend, e.Env)
		}
		if e.RunID != runID {
			t.Errorf("%s: run id %s differs from %s", e.Test, e.RunID, runID)
		}
	}
}

func TestRoot_NoResults(t *testing.T) {
	setHome(t)
	logPath := filepath.Join(t.TempDir(), "results.jsonl")

	if out, err := runCLI(t, "--backend", "shadow", "--shadow-passing", "--log", logPath, "--no-results"); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Errorf("results log should not exist, stat err = %v", err)
	}
}

func TestList_Filters(t *testing.T) {
	setHome(t)

	out, err := runCLI(t, "list", "--shadow-passing")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "test_large_read_write") {
		t.Errorf("expected test_large_read_write in list:\n%s", out)
	}
	if strings.Contains(out, "test_write_to_read_end") {
		t.Errorf("libc-only case should be filtered out:\n%s", out)
	}

	out, err = runCLI(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "test_dup") || !strings.Contains(out, "libc,shadow") {
		t.Errorf("unfiltered list missing entries:\n%s", out)
	}
}

func TestLog_EmptyAndSummary(t *testing.T) {
	setHome(t)
	logPath := filepath.Join(t.TempDir(), "results.jsonl")

	out, err := runCLI(t, "log", "--log", logPath)
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if !strings.Contains(out, "No results log entries found.") {
		t.Errorf("unexpected output for empty log:\n%s", out)
	}

	l, err := logger.New(logPath)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339)
	for _, e := range []logger.ResultEvent{
		{Timestamp: ts, RunID: "r1", Test: "test_pipe", Backend: "shadow", Env: "shadow", Result: "PASS"},
		{Timestamp: ts, RunID: "r1", Test: "test_dup", Backend: "shadow", Env: "shadow", Result: "FAIL", Error: "boom"},
		{Timestamp: ts, RunID: "r2", Test: "test_dup", Backend: "libc", Env: "libc", Result: "PASS"},
	} {
		if err := l.Log(e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	l.Close()

	out, err = runCLI(t, "log", "--log", logPath, "--result", "fail")
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if !strings.Contains(out, "boom") || strings.Contains(out, "test_pipe") {
		t.Errorf("--result fail filtered incorrectly:\n%s", out)
	}

	out, err = runCLI(t, "log", "--log", logPath, "--env", "LIBC")
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if strings.Count(out, "Run: ") != 1 || !strings.Contains(out, "[libc]") {
		t.Errorf("--env libc should show only the libc event:\n%s", out)
	}

	if _, err := runCLI(t, "log", "--log", logPath, "--env", "kernel"); err == nil {
		t.Error("expected an error for an unknown environment")
	}
	if _, err := runCLI(t, "log", "--log", logPath, "--test", "test_nope"); err == nil {
		t.Error("expected an error for an unknown test name")
	}

	out, err = runCLI(t, "log", "--log", logPath, "--test", "test_dup")
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if strings.Count(out, "Run: ") != 2 || strings.Contains(out, "test_pipe ") {
		t.Errorf("--test test_dup filtered incorrectly:\n%s", out)
	}

	out, err = runCLI(t, "log", "--log", logPath, "--summary")
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if !strings.Contains(out, "Runs:     2") || !strings.Contains(out, "Results:  3") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	out, err = runCLI(t, "log", "--log", logPath, "--last", "1")
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if strings.Count(out, "Run: ") != 1 || !strings.Contains(out, "[libc]") {
		t.Errorf("--last 1 should show only the final event:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "pipecheck "+Version) {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestResultRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	l, err := logger.New(path)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	cases := []suite.TestCase{suite.New("test_x", nil, env.Libc)}
	rec := newResultRecorder(l, env.Libc, cases)
	rec.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	if err := rec.Record(runner.Result{
		RunID:    "run-1",
		Name:     "test_x",
		Backend:  "kernel",
		Status:   runner.StatusFail,
		Err:      errors.New("EBADF"),
		Duration: 3 * time.Millisecond,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	l.Close()

	events, err := logger.ReadAll(path)
	if err != nil || len(events) != 1 {
		t.Fatalf("ReadAll: %v, %d events", err, len(events))
	}
	e := events[0]
	if e.Timestamp != "2024-05-06T07:08:09Z" || e.Expected != "libc" || e.Env != "libc" ||
		e.Result != "FAIL" || e.Error != "EBADF" || e.DurationMS != 3 {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestStatusIcon(t *testing.T) {
	if got := statusIcon("PASS", false); got != "PASS" {
		t.Errorf("plain PASS: got %q", got)
	}
	if got := statusIcon("FAIL", true); got == "FAIL" {
		t.Error("expected an icon for FAIL on a terminal")
	}
}
