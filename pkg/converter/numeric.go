package converter

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Uint64 encodes as 8 big-endian bytes, so byte-wise order equals numeric order.
type Uint64 struct{}

func (Uint64) ToBytes(v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, v), nil
}

func (Uint64) AppendBytes(dst []byte, v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(dst, v), nil
}

func (Uint64) FromBytes(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, invalid("uint64 needs 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// Int64 encodes as big-endian with the sign bit flipped, so negative values
// sort before positive ones under byte-wise order.
type Int64 struct{}

func (Int64) ToBytes(v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(v)^(1<<63)), nil
}

func (Int64) AppendBytes(dst []byte, v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(dst, uint64(v)^(1<<63)), nil
}

func (Int64) FromBytes(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, invalid("int64 needs 8 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
}

// GeneralNatural is a compact variable-length encoding of naturals up to 2^64.
// The prefix byte carries the number of trailing little-endian bytes in its
// leading one bits. It is not order preserving.
type GeneralNatural struct{}

func (g GeneralNatural) ToBytes(v uint64) ([]byte, error) {
	return g.AppendBytes(make([]byte, 0, 9), v)
}

func (GeneralNatural) AppendBytes(dst []byte, x uint64) ([]byte, error) {
	var l uint8
	// Determine the length needed to represent the value
	for l = 0; l < 8; l++ {
		if x < (1 << (7 * (l + 1))) {
			break
		}
	}
	if l < 8 {
		prefix := uint8((256 - (1 << (8 - l))) + (x>>(8*l))&math.MaxUint8)
		dst = append(dst, prefix)
	} else {
		dst = append(dst, math.MaxUint8)
	}
	for i := 0; i < int(l); i++ {
		dst = append(dst, uint8((x>>(8*i))&math.MaxUint8))
	}
	return dst, nil
}

func (GeneralNatural) FromBytes(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, invalid("empty general natural")
	}
	prefix := b[0]
	if prefix == math.MaxUint8 {
		if len(b) != 9 {
			return 0, invalid("9-byte general natural has %d bytes", len(b))
		}
		return binary.LittleEndian.Uint64(b[1:9]), nil
	}

	l := uint8(bits.LeadingZeros8(^prefix))
	if len(b) != int(l)+1 {
		return 0, invalid("general natural prefix announces %d bytes, got %d", l, len(b)-1)
	}
	var u uint64
	for i := uint8(0); i < l; i++ {
		u |= uint64(b[i+1]) << (8 * i)
	}
	u |= uint64(prefix&(math.MaxUint8>>l)) << (8 * l)
	return u, nil
}
