package protocol

import "errors"

var (
	ErrVarIntTooLong = errors.New("varint is too long")
	ErrTrailingData  = errors.New("trailing bytes after payload")
)
