//go:build !linux

package sys

// NewLibc is only implemented on Linux.
func NewLibc() (Interface, error) {
	return nil, ErrUnsupported
}

// NewKernel is only implemented on Linux.
func NewKernel() (Interface, error) {
	return nil, ErrUnsupported
}
