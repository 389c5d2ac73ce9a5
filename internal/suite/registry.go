// Package suite holds the pipe conformance cases and the registry that
// orders them.
package suite

import "github.com/gzhole/pipecheck/internal/env"

// AllTestCases returns every case in registration order.
func AllTestCases() []TestCase {
	return []TestCase{
		New("test_pipe", testPipe, env.Libc, env.Shadow),
		New("test_read_write", testReadWrite, env.Libc, env.Shadow),
		New("test_large_read_write", testLargeReadWrite, env.Libc, env.Shadow),
		New("test_read_write_empty", testReadWriteEmpty, env.Libc, env.Shadow),
		New("test_dup", testDup, env.Libc),
		New("test_write_to_read_end", testWriteToReadEnd, env.Libc),
		New("test_read_from_write_end", testReadFromWriteEnd, env.Libc),
		New("test_pipe2_nonblock_empty_read", testPipe2NonblockEmptyRead, env.Libc, env.Shadow),
		New("test_read_after_write_end_closed", testReadAfterWriteEndClosed, env.Libc, env.Shadow),
		New("test_write_after_read_end_closed", testWriteAfterReadEndClosed, env.Libc, env.Shadow),
	}
}

// Lookup returns the case registered under name.
func Lookup(name string) (TestCase, bool) {
	for _, tc := range AllTestCases() {
		if tc.Name == name {
			return tc, true
		}
	}
	return TestCase{}, false
}
