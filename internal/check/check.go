// Package check validates raw syscall results against an allow-list of
// error codes and provides the assertions pipe cases are written with.
package check

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sys/unix"
)

// SyscallError reports a syscall whose outcome was not allowed: either it
// failed with an errno outside the allow-list, or it was expected to fail and
// succeeded.
type SyscallError struct {
	// Site is the file:line of the checked call.
	Site string
	// Errno is the observed error code; zero when the call succeeded.
	Errno unix.Errno
	// Allowed lists the acceptable error codes.
	Allowed []unix.Errno
	// Succeeded is set when the call was expected to fail but did not.
	Succeeded bool
	// Value is the raw return value.
	Value int
	// Err holds a failure that carried no errno at all.
	Err error
}

func (e *SyscallError) Error() string {
	switch {
	case e.Succeeded:
		return fmt.Sprintf("%s: expected failure with %s, but call returned %d", e.Site, formatErrnos(e.Allowed), e.Value)
	case e.Err != nil:
		return fmt.Sprintf("%s: syscall failed: %v", e.Site, e.Err)
	default:
		return fmt.Sprintf("%s: unexpected error %s (%s); allowed: %s",
			e.Site, errnoName(e.Errno), e.Errno.Error(), formatErrnos(e.Allowed))
	}
}

func (e *SyscallError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Errno != 0 {
		return e.Errno
	}
	return nil
}

// Call invokes fn once. A successful result is returned as is. A failure
// whose errno is in allowed returns the raw failure value and a nil error;
// any other failure is reported as a *SyscallError.
func Call(fn func() (int, error), allowed ...unix.Errno) (int, error) {
	rv, err := fn()
	if err == nil {
		return rv, nil
	}

	var errno unix.Errno
	if !errors.As(err, &errno) {
		return rv, &SyscallError{Site: caller(2), Value: rv, Err: err, Allowed: allowed}
	}
	if slices.Contains(allowed, errno) {
		return rv, nil
	}
	return rv, &SyscallError{Site: caller(2), Errno: errno, Allowed: allowed, Value: rv}
}

// Expect invokes fn once and requires it to fail with one of want.
func Expect(fn func() (int, error), want ...unix.Errno) error {
	if len(want) == 0 {
		return errors.New("check.Expect: no error codes given")
	}

	rv, err := fn()
	if err == nil {
		return &SyscallError{Site: caller(2), Allowed: want, Succeeded: true, Value: rv}
	}

	var errno unix.Errno
	if !errors.As(err, &errno) {
		return &SyscallError{Site: caller(2), Value: rv, Err: err, Allowed: want}
	}
	if !slices.Contains(want, errno) {
		return &SyscallError{Site: caller(2), Errno: errno, Allowed: want, Value: rv}
	}
	return nil
}

// caller returns the file:line skip frames above the function calling it.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func errnoName(e unix.Errno) string {
	if name := unix.ErrnoName(e); name != "" {
		return name
	}
	return fmt.Sprintf("errno %d", int(e))
}

func formatErrnos(errnos []unix.Errno) string {
	if len(errnos) == 0 {
		return "none"
	}
	names := make([]string, len(errnos))
	for i, e := range errnos {
		names[i] = errnoName(e)
	}
	return "[" + strings.Join(names, " ") + "]"
}

// AssertionError reports an invariant a case checks about return values or
// buffer contents.
type AssertionError struct {
	Message string
	Detail  string
}

func (e *AssertionError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + " (" + e.Detail + ")"
}

// Assert fails with msg when cond is false.
func Assert(cond bool, msg string) error {
	if cond {
		return nil
	}
	return &AssertionError{Message: msg}
}

// Equal fails with msg when got != want.
func Equal[T comparable](got, want T, msg string) error {
	if got == want {
		return nil
	}
	return &AssertionError{Message: msg, Detail: fmt.Sprintf("got %v, want %v", got, want)}
}

// BytesEqual fails with msg when the buffers differ, naming the first
// differing offset.
func BytesEqual(got, want []byte, msg string) error {
	if bytes.Equal(got, want) {
		return nil
	}
	n := min(len(got), len(want))
	for i := 0; i < n; i++ {
		if got[i] != want[i] {
			return &AssertionError{Message: msg, Detail: fmt.Sprintf("first difference at offset %d: got 0x%02x, want 0x%02x", i, got[i], want[i])}
		}
	}
	return &AssertionError{Message: msg, Detail: fmt.Sprintf("length %d, want %d", len(got), len(want))}
}
