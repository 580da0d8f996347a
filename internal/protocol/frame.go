package protocol

import (
	"encoding/binary"

	"flowlog/internal/apperr"
)

// MaxFrameSize bounds a single UDP datagram payload this broker will
// accept; well under the 64KiB datagram ceiling, with headroom for a
// batch of small append messages.
const MaxFrameSize = 60 * 1024

// FrameHeaderSize is total_len(4) + command_or_status(1).
const FrameHeaderSize = 5

// EncodeRequestFrame writes total_len | command | payload into a single
// buffer ready to hand to net.PacketConn.WriteTo.
func EncodeRequestFrame(cmd Command, payload []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(cmd)
	copy(buf[5:], payload)
	return buf
}

// DecodeRequestFrame parses a received datagram into its command byte
// and payload slice (a view into buf, not a copy).
func DecodeRequestFrame(buf []byte) (Command, []byte, error) {
	if len(buf) < FrameHeaderSize {
		return 0, nil, apperr.New(apperr.KindInvalidCommand, "frame shorter than header")
	}
	totalLen := binary.LittleEndian.Uint32(buf[0:4])
	if int(totalLen) != len(buf)-4 {
		return 0, nil, apperr.New(apperr.KindInvalidCommand, "frame length mismatch")
	}
	return Command(buf[4]), buf[5:], nil
}

// EncodeReplyFrame writes total_len | status | payload, mirroring the
// request framing so both directions share one mental model.
func EncodeReplyFrame(status Status, payload []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(status)
	copy(buf[5:], payload)
	return buf
}

// DecodeReplyFrame is DecodeRequestFrame's mirror for the client side.
func DecodeReplyFrame(buf []byte) (Status, []byte, error) {
	if len(buf) < FrameHeaderSize {
		return 0, nil, apperr.New(apperr.KindInvalidCommand, "frame shorter than header")
	}
	totalLen := binary.LittleEndian.Uint32(buf[0:4])
	if int(totalLen) != len(buf)-4 {
		return 0, nil, apperr.New(apperr.KindInvalidCommand, "frame length mismatch")
	}
	return Status(buf[4]), buf[5:], nil
}
