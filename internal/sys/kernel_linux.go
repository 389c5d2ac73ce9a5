package sys

import (
	"golang.org/x/sys/unix"

	"github.com/gzhole/pipecheck/internal/env"
)

// kernel issues raw syscalls through golang.org/x/sys/unix, bypassing libc.
type kernel struct{}

// NewKernel returns the raw-syscall backend.
func NewKernel() (Interface, error) {
	return kernel{}, nil
}

func (kernel) Name() string                 { return BackendKernel }
func (kernel) Environment() env.Environment { return env.Libc }

func (kernel) Pipe(fds *[2]int) (int, error) {
	p := make([]int, 2)
	if err := unix.Pipe(p); err != nil {
		return -1, err
	}
	fds[0], fds[1] = p[0], p[1]
	return 0, nil
}

func (kernel) Pipe2(fds *[2]int, flags int) (int, error) {
	p := make([]int, 2)
	if err := unix.Pipe2(p, flags); err != nil {
		return -1, err
	}
	fds[0], fds[1] = p[0], p[1]
	return 0, nil
}

func (kernel) Read(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		return -1, err
	}
	return n, nil
}

func (kernel) Write(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		return -1, err
	}
	return n, nil
}

func (kernel) Dup(fd int) (int, error) {
	nfd, err := unix.Dup(fd)
	if err != nil {
		return -1, err
	}
	return nfd, nil
}

func (kernel) Close(fd int) (int, error) {
	if err := unix.Close(fd); err != nil {
		return -1, err
	}
	return 0, nil
}

// PipeSize queries the kernel with F_GETPIPE_SZ. The capacity can be below
// PipeBufferSize once the user exceeds pipe-user-pages-soft.
func (kernel) PipeSize(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_GETPIPE_SZ, 0)
}
