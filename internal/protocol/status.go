package protocol

import "flowlog/internal/apperr"

// Status is the reply frame's one-byte result code. StatusOK is always
// zero so a zeroed buffer defaults to success (never relied upon, but
// keeps the zero value sane).
type Status uint8

const (
	StatusOK Status = iota
	StatusInvalidCommand
	StatusInvalidOffset
	StatusInvalidStreamName
	StatusSegmentNotFound
	StatusSegmentClosed
	StatusIO
	StatusCorrupt
	StatusNotFound
)

// StatusFor maps a (possibly nil) engine error onto its wire status
// byte, one-to-one with apperr.Kind.
func StatusFor(err error) Status {
	switch apperr.KindOf(err) {
	case apperr.KindNone:
		return StatusOK
	case apperr.KindInvalidCommand:
		return StatusInvalidCommand
	case apperr.KindInvalidOffset:
		return StatusInvalidOffset
	case apperr.KindInvalidStreamName:
		return StatusInvalidStreamName
	case apperr.KindSegmentNotFound:
		return StatusSegmentNotFound
	case apperr.KindSegmentClosed:
		return StatusSegmentClosed
	case apperr.KindCorrupt:
		return StatusCorrupt
	case apperr.KindNotFound:
		return StatusNotFound
	default:
		return StatusIO
	}
}
