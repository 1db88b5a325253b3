// Package wire implements the binary frame codec described in spec §4.1: a
// variable-length unsigned integer message-type tag followed by a
// type-specific payload, with length-prefixed byte strings using the same
// variable-length integer encoding.
//
// The encoding is LEB128 for non-negative integers, which is exactly what
// encoding/binary's Uvarint/PutUvarint already implement; this file is a
// thin, frame-codec-scoped wrapper over them, the same shape as the
// varint helpers vendored in the wider protocol stack this design is drawn
// from.
package wire

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrVarintTooShort is returned when a buffer ends before a varint does.
	ErrVarintTooShort = errors.New("wire: varint: buffer too short")
	// ErrVarintOverflow is returned when a varint does not fit in a uint64.
	ErrVarintOverflow = errors.New("wire: varint: overflows uint64")
	// ErrUnknownMessageType is returned by Decode when the leading tag does
	// not name a known message type.
	ErrUnknownMessageType = errors.New("wire: unknown message type tag")
)

// putUvarint appends the LEB128 encoding of x to buf and returns the result.
func putUvarint(buf []byte, x uint64) []byte {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], x)
	return append(buf, scratch[:n]...)
}

// getUvarint decodes a LEB128 varint from the front of buf, returning the
// value and the number of bytes consumed.
func getUvarint(buf []byte) (uint64, int, error) {
	x, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, ErrVarintTooShort
	}
	if n < 0 {
		return 0, 0, ErrVarintOverflow
	}
	return x, n, nil
}
