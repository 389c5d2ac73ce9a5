package suite

import (
	"go.uber.org/zap"

	"github.com/gzhole/pipecheck/internal/env"
	"github.com/gzhole/pipecheck/internal/sys"
)

// Options tunes the scenarios that have knobs.
type Options struct {
	// TransferSize is the byte count of the large round trip.
	TransferSize int
	// MaxIterations caps the partial write/read loop of the large round trip.
	MaxIterations int
	// Seed makes the large round trip payload reproducible.
	Seed uint64
}

// DefaultOptions transfers two 8096-byte pages.
func DefaultOptions() Options {
	return Options{
		TransferSize:  8096 * 2,
		MaxIterations: 4096,
		Seed:          1,
	}
}

// Fixture is what a case body runs against.
type Fixture struct {
	Sys     sys.Interface
	Log     *zap.Logger
	Options Options
}

// logger returns f.Log, or a no-op logger when none was set.
func (f *Fixture) logger() *zap.Logger {
	if f.Log == nil {
		return zap.NewNop()
	}
	return f.Log
}

// Func is a case body.
type Func func(f *Fixture) error

// TestCase is a named pipe scenario and the environments it must pass under.
type TestCase struct {
	Name string
	Func Func
	Envs env.Set
}

// New builds a TestCase.
func New(name string, fn Func, envs ...env.Environment) TestCase {
	return TestCase{Name: name, Func: fn, Envs: env.NewSet(envs...)}
}

// Passing reports whether the case is expected to pass under e.
func (tc TestCase) Passing(e env.Environment) bool {
	return tc.Envs.Contains(e)
}

// Run executes the body against f.
func (tc TestCase) Run(f *Fixture) error {
	return tc.Func(f)
}
