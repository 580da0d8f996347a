// Package message defines the wire/disk record format shared by the
// segment log and the consumer-facing API: a fixed header followed by a
// length-prefixed payload, all little-endian.
package message

import (
	"encoding/binary"
	"fmt"

	"flowlog/internal/apperr"
)

// ID is a producer-supplied 128-bit correlation id.
type ID [16]byte

func (id ID) String() string {
	return fmt.Sprintf("%x", [16]byte(id))
}

// HeaderSize is offset(8) + timestamp(8) + id(16) + payload_len(4).
const HeaderSize = 8 + 8 + 16 + 4

// Message is an immutable record. Offset and Timestamp are assigned by
// the partition on append; Payload is never mutated after construction.
type Message struct {
	Offset    uint64
	Timestamp uint64
	ID        ID
	Payload   []byte
}

// EncodedSize returns the number of bytes Encode writes for m.
func (m *Message) EncodedSize() int {
	return HeaderSize + len(m.Payload)
}

// Encode writes m's on-disk representation to dst, which must be at
// least m.EncodedSize() bytes.
func (m *Message) Encode(dst []byte) int {
	binary.LittleEndian.PutUint64(dst[0:8], m.Offset)
	binary.LittleEndian.PutUint64(dst[8:16], m.Timestamp)
	copy(dst[16:32], m.ID[:])
	binary.LittleEndian.PutUint32(dst[32:36], uint32(len(m.Payload)))
	copy(dst[36:], m.Payload)
	return m.EncodedSize()
}

// Decode reads one record from src, returning the message and the number
// of bytes consumed. It returns apperr.KindCorrupt if src is too short to
// contain a complete record.
func Decode(src []byte) (*Message, int, error) {
	if len(src) < HeaderSize {
		return nil, 0, apperr.New(apperr.KindCorrupt, "truncated record header")
	}

	m := &Message{
		Offset:    binary.LittleEndian.Uint64(src[0:8]),
		Timestamp: binary.LittleEndian.Uint64(src[8:16]),
	}
	copy(m.ID[:], src[16:32])
	payloadLen := binary.LittleEndian.Uint32(src[32:36])
	total := HeaderSize + int(payloadLen)
	if len(src) < total {
		return nil, 0, apperr.New(apperr.KindCorrupt, "truncated record payload")
	}

	m.Payload = make([]byte, payloadLen)
	copy(m.Payload, src[36:total])
	return m, total, nil
}
