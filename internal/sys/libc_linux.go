package sys

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"

	"github.com/gzhole/pipecheck/internal/env"
)

const libcName = "libc.so.6"

var (
	libcOnce sync.Once
	libcInst *libc
	libcErr  error
)

// libc calls the C library's pipe family through purego, so errno is read
// from the calling thread exactly as a C program would see it.
type libc struct {
	handle uintptr

	pipe          func(fds unsafe.Pointer) int32
	pipe2         func(fds unsafe.Pointer, flags int32) int32
	read          func(fd int32, buf unsafe.Pointer, n uintptr) int
	write         func(fd int32, buf unsafe.Pointer, n uintptr) int
	dup           func(fd int32) int32
	close         func(fd int32) int32
	errnoLocation func() *int32
}

// NewLibc loads the C library and binds the pipe syscalls. The library is
// loaded once per process.
func NewLibc() (Interface, error) {
	libcOnce.Do(func() {
		handle, err := purego.Dlopen(libcName, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			libcErr = fmt.Errorf("failed to load %s: %w", libcName, err)
			return
		}

		l := &libc{handle: handle}
		purego.RegisterLibFunc(&l.pipe, handle, "pipe")
		purego.RegisterLibFunc(&l.pipe2, handle, "pipe2")
		purego.RegisterLibFunc(&l.read, handle, "read")
		purego.RegisterLibFunc(&l.write, handle, "write")
		purego.RegisterLibFunc(&l.dup, handle, "dup")
		purego.RegisterLibFunc(&l.close, handle, "close")
		purego.RegisterLibFunc(&l.errnoLocation, handle, "__errno_location")
		libcInst = l
	})
	if libcErr != nil {
		return nil, libcErr
	}
	return libcInst, nil
}

func (l *libc) Name() string                 { return BackendLibc }
func (l *libc) Environment() env.Environment { return env.Libc }

// call runs fn on a locked OS thread and, when fn reports failure, reads that
// thread's errno before anything else can overwrite it.
func (l *libc) call(fn func() int) (int, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rv := fn()
	if rv == -1 {
		return rv, unix.Errno(*l.errnoLocation())
	}
	return rv, nil
}

func (l *libc) Pipe(fds *[2]int) (int, error) {
	var c [2]int32
	rv, err := l.call(func() int { return int(l.pipe(unsafe.Pointer(&c[0]))) })
	if err == nil {
		fds[0], fds[1] = int(c[0]), int(c[1])
	}
	return rv, err
}

func (l *libc) Pipe2(fds *[2]int, flags int) (int, error) {
	var c [2]int32
	rv, err := l.call(func() int { return int(l.pipe2(unsafe.Pointer(&c[0]), int32(flags))) })
	if err == nil {
		fds[0], fds[1] = int(c[0]), int(c[1])
	}
	return rv, err
}

func (l *libc) Read(fd int, p []byte) (int, error) {
	rv, err := l.call(func() int { return l.read(int32(fd), bufPtr(p), uintptr(len(p))) })
	runtime.KeepAlive(p)
	return rv, err
}

func (l *libc) Write(fd int, p []byte) (int, error) {
	rv, err := l.call(func() int { return l.write(int32(fd), bufPtr(p), uintptr(len(p))) })
	runtime.KeepAlive(p)
	return rv, err
}

func (l *libc) Dup(fd int) (int, error) {
	return l.call(func() int { return int(l.dup(int32(fd))) })
}

func (l *libc) Close(fd int) (int, error) {
	return l.call(func() int { return int(l.close(int32(fd))) })
}

// PipeSize asks the kernel directly; fcntl is variadic, which purego cannot
// bind portably, and libc adds nothing to F_GETPIPE_SZ.
func (l *libc) PipeSize(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_GETPIPE_SZ, 0)
}

// bufPtr passes NULL for empty buffers, matching the zero-length calls of
// the C suite.
func bufPtr(p []byte) unsafe.Pointer {
	if len(p) == 0 {
		return nil
	}
	return unsafe.Pointer(&p[0])
}
