package wire

import (
	"bytes"

	"github.com/noteboard/realtime/pkg/domain"
)

// SyncTag distinguishes the three sub-frames nested inside a SYNC payload.
// The underlying CRDT library defines the exact byte-level semantics of
// each; this codec treats everything after the tag as an opaque blob.
type SyncTag uint64

const (
	SyncStep1  SyncTag = 0
	SyncStep2  SyncTag = 1
	SyncUpdate SyncTag = 2
)

// Decoder walks a byte slice position by position, handing out
// length-prefixed fields and raw varints without copying the backing
// array. It is returned by Decode so callers can route on the message
// type before consuming the payload.
type Decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Uvarint reads a single variable-length integer.
func (d *Decoder) Uvarint() (uint64, error) {
	x, n, err := getUvarint(d.buf[d.pos:])
	if err != nil {
		return 0, err
	}
	d.pos += n
	return x, nil
}

// Bytes reads a length-prefixed byte string.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	end := d.pos + int(n)
	if end > len(d.buf) || end < d.pos {
		return nil, ErrVarintTooShort
	}
	b := d.buf[d.pos:end]
	d.pos = end
	return b, nil
}

// Rest returns every byte not yet consumed, without a length prefix. The
// hub uses this to hand an AWARENESS payload to pkg/crdt unparsed.
func (d *Decoder) Rest() []byte {
	return d.buf[d.pos:]
}

// Len reports how many bytes remain unconsumed.
func (d *Decoder) Len() int {
	return len(d.buf) - d.pos
}

// Decode reads the leading message-type tag from buf and returns it
// alongside a Decoder positioned just after it. It fails with
// ErrVarintTooShort or ErrVarintOverflow if the tag is absent or
// unreadable, and with ErrUnknownMessageType if it is not one of the known
// message types; the caller wraps either in a *errors.Error of type
// ErrorTypeMalformedFrame.
func Decode(buf []byte) (domain.MessageType, *Decoder, error) {
	d := newDecoder(buf)
	tag, err := d.Uvarint()
	if err != nil {
		return 0, nil, err
	}
	switch domain.MessageType(tag) {
	case domain.MessageTypeSync, domain.MessageTypeAwareness, domain.MessageTypeHedgedoc:
		return domain.MessageType(tag), d, nil
	default:
		return 0, nil, ErrUnknownMessageType
	}
}

// encodeFrame writes a message-type tag followed by raw payload bytes,
// with no further framing — SYNC and AWARENESS payloads carry their own
// internal sub-frame tags.
func encodeFrame(tag domain.MessageType, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(putUvarint(nil, uint64(tag)))
	buf.Write(payload)
	return buf.Bytes()
}

// EncodeInitialSyncRequest builds the SYNC-STEP1 frame sent immediately
// on connect, carrying the document's current state vector.
func EncodeInitialSyncRequest(stateVector []byte) []byte {
	var sub bytes.Buffer
	sub.Write(putUvarint(nil, uint64(SyncStep1)))
	writeLengthPrefixed(&sub, stateVector)
	return encodeFrame(domain.MessageTypeSync, sub.Bytes())
}

// EncodeSyncStep2 builds the SYNC-STEP2 response to a peer's STEP1,
// carrying the diff the peer is missing.
func EncodeSyncStep2(diff []byte) []byte {
	var sub bytes.Buffer
	sub.Write(putUvarint(nil, uint64(SyncStep2)))
	writeLengthPrefixed(&sub, diff)
	return encodeFrame(domain.MessageTypeSync, sub.Bytes())
}

// EncodeUpdate builds a SYNC-UPDATE frame wrapping a raw incremental
// CRDT update.
func EncodeUpdate(rawUpdate []byte) []byte {
	var sub bytes.Buffer
	sub.Write(putUvarint(nil, uint64(SyncUpdate)))
	writeLengthPrefixed(&sub, rawUpdate)
	return encodeFrame(domain.MessageTypeSync, sub.Bytes())
}

// EncodeAwareness builds an AWARENESS frame from an already CRDT-encoded
// awareness update payload (see pkg/crdt), which this codec treats as
// opaque.
func EncodeAwareness(payload []byte) []byte {
	return encodeFrame(domain.MessageTypeAwareness, payload)
}

func writeLengthPrefixed(buf *bytes.Buffer, b []byte) {
	buf.Write(putUvarint(nil, uint64(len(b))))
	buf.Write(b)
}
