package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := &Message{
		Offset:    42,
		Timestamp: 1_700_000_000_000,
		ID:        ID{1, 2, 3, 4},
		Payload:   []byte("hello"),
	}

	buf := make([]byte, m.EncodedSize())
	n := m.Encode(buf)
	require.Equal(t, m.EncodedSize(), n)

	got, consumed, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, m.Offset, got.Offset)
	require.Equal(t, m.Timestamp, got.Timestamp)
	require.Equal(t, m.ID, got.ID)
	require.Equal(t, m.Payload, got.Payload)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeTruncatedPayload(t *testing.T) {
	m := &Message{Payload: []byte("payload-too-long")}
	buf := make([]byte, m.EncodedSize())
	m.Encode(buf)

	_, _, err := Decode(buf[:HeaderSize+3])
	require.Error(t, err)
}

func TestEmptyPayloadRoundTrip(t *testing.T) {
	m := &Message{Offset: 0, Timestamp: 1}
	buf := make([]byte, m.EncodedSize())
	m.Encode(buf)

	got, _, err := Decode(buf)
	require.NoError(t, err)
	require.Empty(t, got.Payload)
}
