package converter

import "github.com/eigerco/kvbind/pkg/buffer"

// Bytes stores byte slices as they are. Decoding copies.
type Bytes struct{}

func (Bytes) ToBytes(v []byte) ([]byte, error) { return v, nil }

func (Bytes) AppendBytes(dst []byte, v []byte) ([]byte, error) { return append(dst, v...), nil }

func (Bytes) FromBytes(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// String stores strings as their UTF-8 bytes.
type String struct{}

func (String) ToBytes(v string) ([]byte, error) { return []byte(v), nil }

func (String) AppendBytes(dst []byte, v string) ([]byte, error) { return append(dst, v...), nil }

func (String) FromBytes(b []byte) (string, error) { return string(b), nil }

// Buffer passes caller-owned buffers through. Pinned buffers reach the engine
// without being copied; decoding yields a new pinned buffer.
type Buffer struct{}

func (Buffer) ToBytes(v *buffer.Buffer) ([]byte, error) { return v.Bytes(), nil }

// ToBuffer returns v unchanged so that its pinned state is preserved.
func (Buffer) ToBuffer(v *buffer.Buffer) (*buffer.Buffer, error) { return v, nil }

func (Buffer) FromBytes(b []byte) (*buffer.Buffer, error) {
	out := buffer.NewPinned(len(b))
	if _, err := out.Write(b); err != nil {
		return nil, err
	}
	return out, nil
}
