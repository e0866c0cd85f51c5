// Package protocol holds the wire primitives shared by replicated state.
package protocol

import (
	"bytes"
	"fmt"
	"io"
)

const (
	SEGMENT_BITS = 0x7F
	CONTINUE_BIT = 0x80

	maxVarintBytes = 5
)

func ReadVarint(r io.ByteReader) (value int32, err error) {
	var position uint
	for i := 0; ; i++ {
		if i >= maxVarintBytes {
			return 0, ErrVarIntTooLong
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= int32(b&SEGMENT_BITS) << position
		if b&CONTINUE_BIT == 0 {
			return value, nil
		}
		position += 7
	}
}

func AppendVarint(dst []byte, value int32) []byte {
	uvalue := uint32(value)
	for uvalue >= CONTINUE_BIT {
		dst = append(dst, byte(uvalue&SEGMENT_BITS)|CONTINUE_BIT)
		uvalue >>= 7
	}
	return append(dst, byte(uvalue))
}

// AppendVarintArray writes a length-prefixed array of varints.
func AppendVarintArray(dst []byte, values []int32) []byte {
	dst = AppendVarint(dst, int32(len(values)))
	for _, v := range values {
		dst = AppendVarint(dst, v)
	}
	return dst
}

// ReadVarintArray is the inverse of AppendVarintArray. The whole of data must
// be consumed.
func ReadVarintArray(data []byte) ([]int32, error) {
	r := bytes.NewReader(data)
	n, err := ReadVarint(r)
	if err != nil {
		return nil, fmt.Errorf("read array length: %w", err)
	}
	if n < 0 || int(n) > len(data) {
		return nil, fmt.Errorf("invalid array length %d", n)
	}
	values := make([]int32, n)
	for i := range values {
		if values[i], err = ReadVarint(r); err != nil {
			return nil, fmt.Errorf("read array element %d: %w", i, err)
		}
	}
	if r.Len() != 0 {
		return nil, ErrTrailingData
	}
	return values, nil
}
