//go:build unix

package buffer

import "golang.org/x/sys/unix"

// allocPinned maps anonymous memory outside the Go heap. The kernel commits
// pages on first touch, so large slots cost nothing until they are written.
func allocPinned(size int) ([]byte, bool, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func freePinned(data []byte) error {
	return unix.Munmap(data)
}
