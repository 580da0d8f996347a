// Package apperr classifies engine errors into the kinds the wire layer
// maps onto a reply status byte (spec: InvalidCommand, InvalidOffset,
// InvalidStreamName, SegmentNotFound, SegmentClosed, IO, Corrupt, NotFound).
package apperr

import "errors"

type Kind uint8

const (
	KindNone Kind = iota
	KindInvalidCommand
	KindInvalidOffset
	KindInvalidStreamName
	KindSegmentNotFound
	KindSegmentClosed
	KindIO
	KindCorrupt
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCommand:
		return "invalid_command"
	case KindInvalidOffset:
		return "invalid_offset"
	case KindInvalidStreamName:
		return "invalid_stream_name"
	case KindSegmentNotFound:
		return "segment_not_found"
	case KindSegmentClosed:
		return "segment_closed"
	case KindIO:
		return "io"
	case KindCorrupt:
		return "corrupt"
	case KindNotFound:
		return "not_found"
	default:
		return "none"
	}
}

// Error is a classified engine error. The wire layer reads Kind to pick a
// status byte; everything else just sees a normal error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the classified kind of err, or KindIO for an
// unclassified non-nil error (every file-system failure that wasn't
// wrapped explicitly is, in practice, an IO failure).
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}
