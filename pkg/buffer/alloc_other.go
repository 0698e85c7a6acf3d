//go:build !unix

package buffer

func allocPinned(size int) ([]byte, bool, error) {
	return make([]byte, size), false, nil
}

func freePinned([]byte) error {
	return nil
}
