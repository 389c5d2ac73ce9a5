// Package fdguard scopes file descriptors to a function body.
package fdguard

// Closer closes a raw descriptor. sys.Interface satisfies it.
type Closer interface {
	Close(fd int) (int, error)
}

// Run calls body and then closes every descriptor in fds, whatever way body
// exits: a returned error, an early return, or a panic. Close errors are
// ignored. The body's error is returned unchanged.
//
// Scopes nest: a descriptor created inside body, such as a dup of one of fds,
// belongs to an inner Run.
func Run(c Closer, fds []int, body func() error) error {
	owned := append([]int(nil), fds...)
	defer func() {
		for _, fd := range owned {
			_, _ = c.Close(fd)
		}
	}()
	return body()
}
