// Package sys defines the raw pipe syscall layer the suite exercises and the
// native backends that provide it.
//
// Every operation mirrors its C counterpart: the first result is the raw
// return value (-1 on failure) and the error, when non-nil, is the unix.Errno
// observed for that call.
package sys

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gzhole/pipecheck/internal/env"
)

// PipeBufferSize is the default pipe capacity on Linux, which the simulator
// also uses.
const PipeBufferSize = 65536

// Backend names accepted by Open.
const (
	BackendLibc   = "libc"
	BackendKernel = "kernel"
	BackendShadow = "shadow"
)

// ErrUnsupported is returned when a native backend is not available on the
// running platform.
var ErrUnsupported = errors.New("backend not supported on this platform")

// Interface is the syscall surface consumed by the pipe cases.
type Interface interface {
	// Name is the backend name, e.g. "libc".
	Name() string
	// Environment is the tag cases are filtered against when run here.
	Environment() env.Environment

	Pipe(fds *[2]int) (int, error)
	Pipe2(fds *[2]int, flags int) (int, error)
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
	Dup(fd int) (int, error)
	Close(fd int) (int, error)
}

// PipeSizer is implemented by backends that can report the capacity of a
// pipe.
type PipeSizer interface {
	PipeSize(fd int) (int, error)
}

// PipeSize returns the capacity of the pipe fd belongs to. Backends that
// cannot tell are assumed to use PipeBufferSize.
func PipeSize(s Interface, fd int) int {
	if ps, ok := s.(PipeSizer); ok {
		if n, err := ps.PipeSize(fd); err == nil && n > 0 {
			return n
		}
	}
	return PipeBufferSize
}

// Factory constructs a backend.
type Factory func() (Interface, error)

var factories = map[string]Factory{
	BackendLibc:   NewLibc,
	BackendKernel: NewKernel,
}

// Register adds or replaces a named backend factory. Backends that live in
// other packages (the simulator) register themselves at init.
func Register(name string, f Factory) {
	factories[name] = f
}

// Open constructs the backend registered under name.
func Open(name string) (Interface, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	b, err := f()
	if err != nil {
		return nil, fmt.Errorf("open backend %s: %w", name, err)
	}
	return b, nil
}

// Names lists the registered backend names in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
