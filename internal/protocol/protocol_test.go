package protocol

import (
	"testing"

	"flowlog/internal/apperr"
	"flowlog/internal/message"
	"flowlog/internal/registry"

	"github.com/stretchr/testify/require"
)

func TestRequestFrameRoundTrip(t *testing.T) {
	payload := []byte("hello")
	frame := EncodeRequestFrame(CmdGetFirstMessages, payload)

	cmd, body, err := DecodeRequestFrame(frame)
	require.NoError(t, err)
	require.Equal(t, CmdGetFirstMessages, cmd)
	require.Equal(t, payload, body)
}

func TestReplyFrameRoundTrip(t *testing.T) {
	payload := []byte("world")
	frame := EncodeReplyFrame(StatusSegmentNotFound, payload)

	status, body, err := DecodeReplyFrame(frame)
	require.NoError(t, err)
	require.Equal(t, StatusSegmentNotFound, status)
	require.Equal(t, payload, body)
}

func TestDecodeRequestFrameRejectsShortBuffer(t *testing.T) {
	_, _, err := DecodeRequestFrame([]byte{1, 2})
	require.Error(t, err)
}

func TestAppendMessagesRequestRoundTrip(t *testing.T) {
	req := AppendMessagesRequest{
		Addr: registry.Key{StreamID: "orders", TopicID: "events", PartitionID: 3},
		Messages: []*message.Message{
			{ID: message.ID{1}, Payload: []byte("a")},
			{ID: message.ID{2}, Payload: []byte("bb")},
		},
	}

	buf := EncodeAppendMessagesRequest(req)
	got, err := DecodeAppendMessagesRequest(buf)
	require.NoError(t, err)
	require.Equal(t, req.Addr, got.Addr)
	require.Len(t, got.Messages, 2)
	require.Equal(t, []byte("a"), got.Messages[0].Payload)
	require.Equal(t, []byte("bb"), got.Messages[1].Payload)
}

func TestMessagesReplyRoundTrip(t *testing.T) {
	reply := MessagesReply{Messages: []*message.Message{
		{Offset: 0, Timestamp: 10, Payload: []byte("x")},
		{Offset: 1, Timestamp: 20, Payload: []byte("yy")},
	}}

	buf := EncodeMessagesReply(reply)
	got, err := DecodeMessagesReply(buf)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	require.EqualValues(t, 1, got.Messages[1].Offset)
	require.Equal(t, []byte("yy"), got.Messages[1].Payload)
}

func TestConsumerOffsetReplyRoundTrip(t *testing.T) {
	reply := ConsumerOffsetReply{Found: true, Offset: 42, Timestamp: 999}
	buf := EncodeConsumerOffsetReply(reply)
	got, err := DecodeConsumerOffsetReply(buf)
	require.NoError(t, err)
	require.Equal(t, reply, got)
}

func TestStatusForMapsKindsOneToOne(t *testing.T) {
	require.Equal(t, StatusOK, StatusFor(nil))
	require.Equal(t, StatusInvalidCommand, StatusFor(apperr.New(apperr.KindInvalidCommand, "x")))
	require.Equal(t, StatusInvalidOffset, StatusFor(apperr.New(apperr.KindInvalidOffset, "x")))
	require.Equal(t, StatusInvalidStreamName, StatusFor(apperr.New(apperr.KindInvalidStreamName, "x")))
	require.Equal(t, StatusSegmentNotFound, StatusFor(apperr.New(apperr.KindSegmentNotFound, "x")))
	require.Equal(t, StatusSegmentClosed, StatusFor(apperr.New(apperr.KindSegmentClosed, "x")))
	require.Equal(t, StatusIO, StatusFor(apperr.New(apperr.KindIO, "x")))
	require.Equal(t, StatusCorrupt, StatusFor(apperr.New(apperr.KindCorrupt, "x")))
	require.Equal(t, StatusNotFound, StatusFor(apperr.New(apperr.KindNotFound, "x")))
}
