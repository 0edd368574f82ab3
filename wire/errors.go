package wire

import "errors"

var (
	// ErrMagicMismatch reports a frame whose magic bytes do not match.
	ErrMagicMismatch = errors.New("wire: invalid magic bytes")

	// ErrHeaderLength reports a header length field smaller than the fixed
	// header size.
	ErrHeaderLength = errors.New("wire: header length too small")
)
