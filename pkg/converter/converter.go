// Package converter holds the codecs that turn application keys and values
// into the byte sequences an engine stores, and back.
//
// Converters must be stateless and safe for concurrent use: scan callbacks
// may decode on any goroutine that issued a call. FromBytes must not retain
// its argument, which aliases engine-owned memory that is only valid for the
// duration of the call.
package converter

import (
	"errors"
	"fmt"
)

var ErrInvalidEncoding = errors.New("converter: invalid encoding")

// Converter is a bidirectional codec between T and a byte sequence.
type Converter[T any] interface {
	ToBytes(v T) ([]byte, error)
	FromBytes(b []byte) (T, error)
}

// Appender is implemented by converters that can encode into a caller
// supplied slice, which lets the binding write straight into pooled memory.
type Appender[T any] interface {
	AppendBytes(dst []byte, v T) ([]byte, error)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidEncoding}, args...)...)
}
