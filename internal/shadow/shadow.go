// Package shadow is an in-process simulation of the pipe syscalls. It is the
// Shadow environment the suite compares against the native kernel.
//
// The model follows a Shadow pipe channel: each pipe owns a bounded byte
// queue, zero-length reads and writes are no-ops, a read with no data returns
// 0 once every write end is closed, and a write with no read end fails with
// EPIPE. Non-blocking descriptors report EAGAIN when an operation cannot make
// progress. Nothing else runs inside the simulation to drain or fill a pipe, so
// a blocking descriptor in the same situation would wait forever; it reports
// EDEADLK instead.
package shadow

import (
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gzhole/pipecheck/internal/env"
	"github.com/gzhole/pipecheck/internal/sys"
)

const (
	// firstFD skips the standard streams.
	firstFD = 3
	// DefaultMaxFDs matches the usual RLIMIT_NOFILE soft limit.
	DefaultMaxFDs = 1024

	supportedPipe2Flags = unix.O_NONBLOCK | unix.O_CLOEXEC
)

func init() {
	sys.Register(sys.BackendShadow, func() (sys.Interface, error) {
		return New(), nil
	})
}

type pipe struct {
	queue   *byteQueue
	readers int
	writers int
}

// description is one open end of a pipe. Descriptors produced by dup share
// the description they were duplicated from.
type description struct {
	pipe     *pipe
	writable bool
	nonblock bool
}

func (d *description) wouldBlock() unix.Errno {
	if d.nonblock {
		return unix.EAGAIN
	}
	return unix.EDEADLK
}

// Option configures a Host.
type Option func(*Host)

// WithBufferSize sets the capacity of pipes created afterwards.
func WithBufferSize(n int) Option {
	return func(h *Host) { h.bufferSize = n }
}

// WithMaxFDs caps the descriptor table.
func WithMaxFDs(n int) Option {
	return func(h *Host) { h.maxFDs = n }
}

// Host is a simulated process descriptor table. It implements sys.Interface.
type Host struct {
	mu         sync.Mutex
	fds        map[int]*description
	bufferSize int
	maxFDs     int
}

// New returns an empty simulated host.
func New(opts ...Option) *Host {
	h := &Host{
		fds:        make(map[int]*description),
		bufferSize: sys.PipeBufferSize,
		maxFDs:     DefaultMaxFDs,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Name() string                 { return sys.BackendShadow }
func (h *Host) Environment() env.Environment { return env.Shadow }

func (h *Host) Pipe(fds *[2]int) (int, error) {
	return h.Pipe2(fds, 0)
}

func (h *Host) Pipe2(fds *[2]int, flags int) (int, error) {
	if flags&^supportedPipe2Flags != 0 {
		return -1, unix.EINVAL
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rfd, ok := h.lowestFree(firstFD)
	if !ok {
		return -1, unix.EMFILE
	}
	wfd, ok := h.lowestFree(rfd + 1)
	if !ok {
		return -1, unix.EMFILE
	}

	p := &pipe{queue: newByteQueue(h.bufferSize), readers: 1, writers: 1}
	nonblock := flags&unix.O_NONBLOCK != 0
	h.fds[rfd] = &description{pipe: p, nonblock: nonblock}
	h.fds[wfd] = &description{pipe: p, writable: true, nonblock: nonblock}

	fds[0], fds[1] = rfd, wfd
	return 0, nil
}

func (h *Host) Read(fd int, p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.fds[fd]
	if !ok || d.writable {
		return -1, unix.EBADF
	}
	if len(p) == 0 {
		return 0, nil
	}

	q := d.pipe.queue
	if q.Len() == 0 {
		if d.pipe.writers == 0 {
			return 0, nil
		}
		return -1, d.wouldBlock()
	}
	return q.Pop(p), nil
}

func (h *Host) Write(fd int, p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.fds[fd]
	if !ok || !d.writable {
		return -1, unix.EBADF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if d.pipe.readers == 0 {
		return -1, unix.EPIPE
	}

	q := d.pipe.queue
	if q.Available() == 0 {
		return -1, d.wouldBlock()
	}
	return q.Push(p), nil
}

func (h *Host) Dup(fd int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.fds[fd]
	if !ok {
		return -1, unix.EBADF
	}
	nfd, ok := h.lowestFree(firstFD)
	if !ok {
		return -1, unix.EMFILE
	}

	if d.writable {
		d.pipe.writers++
	} else {
		d.pipe.readers++
	}
	h.fds[nfd] = d
	return nfd, nil
}

func (h *Host) Close(fd int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.fds[fd]
	if !ok {
		return -1, unix.EBADF
	}
	delete(h.fds, fd)

	if d.writable {
		d.pipe.writers--
	} else {
		d.pipe.readers--
	}
	return 0, nil
}

// PipeSize reports the capacity of the pipe fd belongs to.
func (h *Host) PipeSize(fd int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.fds[fd]
	if !ok {
		return -1, unix.EBADF
	}
	return d.pipe.queue.capacity, nil
}

// OpenFDs returns the open descriptors in ascending order.
func (h *Host) OpenFDs() []int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]int, 0, len(h.fds))
	for fd := range h.fds {
		out = append(out, fd)
	}
	sort.Ints(out)
	return out
}

// Buffered reports how many bytes are queued in the pipe fd belongs to.
func (h *Host) Buffered(fd int) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.fds[fd]
	if !ok {
		return 0, false
	}
	return d.pipe.queue.Len(), true
}

func (h *Host) lowestFree(from int) (int, bool) {
	for fd := from; fd < h.maxFDs; fd++ {
		if _, used := h.fds[fd]; !used {
			return fd, true
		}
	}
	return 0, false
}
