package suite

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/gzhole/pipecheck/internal/check"
	"github.com/gzhole/pipecheck/internal/fdguard"
	"github.com/gzhole/pipecheck/internal/sys"
)

// ErrNoProgress is returned when the large round trip stops moving bytes.
var ErrNoProgress = errors.New("transfer made no progress")

// openPipe creates a pipe and checks both descriptors were set.
func openPipe(s sys.Interface) (readFD, writeFD int, err error) {
	var fds [2]int
	if _, err := check.Call(func() (int, error) { return s.Pipe(&fds) }); err != nil {
		return 0, 0, err
	}
	if err := check.Assert(fds[0] > 0, "fds[0] not set"); err != nil {
		return 0, 0, err
	}
	if err := check.Assert(fds[1] > 0, "fds[1] not set"); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func write(s sys.Interface, fd int, buf []byte) (int, error) {
	return check.Call(func() (int, error) { return s.Write(fd, buf) })
}

func read(s sys.Interface, fd int, buf []byte) (int, error) {
	return check.Call(func() (int, error) { return s.Read(fd, buf) })
}

func testPipe(f *Fixture) error {
	readFD, writeFD, err := openPipe(f.Sys)
	if err != nil {
		return err
	}
	return fdguard.Run(f.Sys, []int{writeFD, readFD}, func() error { return nil })
}

func testReadWrite(f *Fixture) error {
	s := f.Sys
	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{writeFD, readFD}, func() error {
		writeBuf := []byte{1, 2, 3, 4}

		rv, err := write(s, writeFD, writeBuf)
		if err != nil {
			return err
		}
		if err := check.Equal(rv, 4, "Expected to write 4 bytes"); err != nil {
			return err
		}

		readBuf := make([]byte, 4)
		rv, err = read(s, readFD, readBuf)
		if err != nil {
			return err
		}
		if err := check.Equal(rv, 4, "Expected to read 4 bytes"); err != nil {
			return err
		}

		return check.BytesEqual(readBuf, writeBuf, "Buffers differ")
	})
}

func testLargeReadWrite(f *Fixture) error {
	s := f.Sys
	log := f.logger()
	opts := f.Options.withDefaults()

	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{writeFD, readFD}, func() error {
		rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
		writeBuf := make([]byte, opts.TransferSize)
		for i := range writeBuf {
			writeBuf[i] = byte(rng.Uint32())
		}
		readBuf := make([]byte, len(writeBuf))

		capacity := sys.PipeSize(s, writeFD)
		log.Debug("pipe capacity", zap.Int("bytes", capacity))

		written, nread := 0, 0
		for iter := 0; nread < len(writeBuf); iter++ {
			if iter == opts.MaxIterations {
				return fmt.Errorf("%w: read %d of %d bytes in %d iterations",
					ErrNoProgress, nread, len(writeBuf), iter)
			}

			// Never queue more than the pipe holds, so the write cannot
			// block on a native pipe.
			chunk := min(len(writeBuf)-written, capacity-(written-nread))
			if chunk > 0 {
				rv, err := write(s, writeFD, writeBuf[written:written+chunk])
				if err != nil {
					return err
				}
				if rv == 0 {
					return fmt.Errorf("%w: write returned 0 with %d bytes left", ErrNoProgress, len(writeBuf)-written)
				}
				log.Debug("wrote", zap.Int("bytes", rv), zap.Int("total", written+rv))
				written += rv
			}

			rv, err := read(s, readFD, readBuf[nread:])
			if err != nil {
				return err
			}
			if rv == 0 {
				return fmt.Errorf("%w: read returned 0 with %d bytes outstanding", ErrNoProgress, written-nread)
			}
			log.Debug("read", zap.Int("bytes", rv), zap.Int("total", nread+rv))

			if err := check.BytesEqual(readBuf[nread:nread+rv], writeBuf[nread:nread+rv], "Buffers differ"); err != nil {
				return fmt.Errorf("at offset %d: %w", nread, err)
			}
			nread += rv
		}
		return nil
	})
}

// Zero-length reads and writes on a pipe are no-ops. pipe(2) only says so
// for O_DIRECT writes, but it holds for plain pipes too.
func testReadWriteEmpty(f *Fixture) error {
	s := f.Sys
	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{writeFD, readFD}, func() error {
		rv, err := write(s, writeFD, nil)
		if err != nil {
			return err
		}
		if err := check.Equal(rv, 0, "Expected to write 0 bytes"); err != nil {
			return err
		}

		rv, err = read(s, readFD, nil)
		if err != nil {
			return err
		}
		if err := check.Equal(rv, 0, "Expected to read 0 bytes"); err != nil {
			return err
		}

		// There are no zero-byte datagrams on a pipe; a second empty read
		// must neither block nor fail.
		rv, err = read(s, readFD, nil)
		if err != nil {
			return err
		}
		return check.Equal(rv, 0, "Expected to read 0 bytes")
	})
}

func testDup(f *Fixture) error {
	s := f.Sys
	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{writeFD, readFD}, func() error {
		dupFD, err := check.Call(func() (int, error) { return s.Dup(writeFD) })
		if err != nil {
			return err
		}

		return fdguard.Run(s, []int{dupFD}, func() error {
			writeBuf := []byte{1, 2, 3, 4}

			rv, err := write(s, writeFD, writeBuf)
			if err != nil {
				return err
			}
			if err := check.Equal(rv, 4, "Expected to write 4 bytes"); err != nil {
				return err
			}

			rv, err = write(s, dupFD, writeBuf)
			if err != nil {
				return err
			}
			if err := check.Equal(rv, 4, "Expected to write 4 bytes"); err != nil {
				return err
			}

			readBuf := make([]byte, 8)
			rv, err = read(s, readFD, readBuf)
			if err != nil {
				return err
			}
			if err := check.Equal(rv, 8, "Expected to read 8 bytes"); err != nil {
				return err
			}

			if err := check.BytesEqual(readBuf[:4], writeBuf, "First 4 bytes differ"); err != nil {
				return err
			}
			return check.BytesEqual(readBuf[4:8], writeBuf, "Last 4 bytes differ")
		})
	})
}

func testWriteToReadEnd(f *Fixture) error {
	s := f.Sys
	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{writeFD, readFD}, func() error {
		writeBuf := []byte{1, 2, 3, 4}
		return check.Expect(func() (int, error) { return s.Write(readFD, writeBuf) }, unix.EBADF)
	})
}

func testReadFromWriteEnd(f *Fixture) error {
	s := f.Sys
	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{writeFD, readFD}, func() error {
		writeBuf := []byte{1, 2, 3, 4}
		rv, err := write(s, writeFD, writeBuf)
		if err != nil {
			return err
		}
		if err := check.Equal(rv, 4, "Expected to write 4 bytes"); err != nil {
			return err
		}

		readBuf := make([]byte, 4)
		return check.Expect(func() (int, error) { return s.Read(writeFD, readBuf) }, unix.EBADF)
	})
}

func testPipe2NonblockEmptyRead(f *Fixture) error {
	s := f.Sys
	var fds [2]int
	if _, err := check.Call(func() (int, error) { return s.Pipe2(&fds, unix.O_NONBLOCK) }); err != nil {
		return err
	}
	readFD, writeFD := fds[0], fds[1]

	return fdguard.Run(s, []int{writeFD, readFD}, func() error {
		readBuf := make([]byte, 4)
		return check.Expect(func() (int, error) { return s.Read(readFD, readBuf) }, unix.EAGAIN)
	})
}

func testReadAfterWriteEndClosed(f *Fixture) error {
	s := f.Sys
	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{readFD}, func() error {
		err := fdguard.Run(s, []int{writeFD}, func() error {
			rv, err := write(s, writeFD, []byte{1, 2, 3, 4})
			if err != nil {
				return err
			}
			return check.Equal(rv, 4, "Expected to write 4 bytes")
		})
		if err != nil {
			return err
		}

		// Buffered bytes survive the writer; EOF follows them.
		readBuf := make([]byte, 8)
		rv, err := read(s, readFD, readBuf)
		if err != nil {
			return err
		}
		if err := check.Equal(rv, 4, "Expected to read 4 bytes"); err != nil {
			return err
		}

		rv, err = read(s, readFD, readBuf)
		if err != nil {
			return err
		}
		return check.Equal(rv, 0, "Expected end of file")
	})
}

func testWriteAfterReadEndClosed(f *Fixture) error {
	s := f.Sys
	readFD, writeFD, err := openPipe(s)
	if err != nil {
		return err
	}

	return fdguard.Run(s, []int{writeFD}, func() error {
		if _, err := check.Call(func() (int, error) { return s.Close(readFD) }); err != nil {
			return err
		}
		return check.Expect(func() (int, error) { return s.Write(writeFD, []byte{1, 2, 3, 4}) }, unix.EPIPE)
	})
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TransferSize <= 0 {
		o.TransferSize = def.TransferSize
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	return o
}
