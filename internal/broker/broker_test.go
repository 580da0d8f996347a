package broker

import (
	"net"
	"testing"
	"time"

	"flowlog/internal/message"
	"flowlog/internal/partition"
	"flowlog/internal/protocol"
	"flowlog/internal/registry"
	"flowlog/internal/segment"

	"github.com/stretchr/testify/require"
)

func startTestBroker(t *testing.T) (*Broker, string) {
	t.Helper()
	cfg := partition.DefaultConfig()
	cfg.Segment = segment.Config{MaxSizeBytes: 1 << 20, IndexMaxBytes: 64 * 1024}
	reg := registry.New(t.TempDir(), cfg, nil)

	b := NewBroker(Config{ListenAddr: "127.0.0.1:0"}, reg, nil)
	conn, err := net.ListenPacket("udp", b.Config.ListenAddr)
	require.NoError(t, err)
	b.conn = conn

	go func() {
		for {
			bufPtr := protocol.GetBuffer(protocol.MaxFrameSize)
			*bufPtr = (*bufPtr)[:protocol.MaxFrameSize]
			n, addr, err := conn.ReadFrom(*bufPtr)
			if err != nil {
				return
			}
			packet := append([]byte(nil), (*bufPtr)[:n]...)
			protocol.PutBuffer(bufPtr)
			go b.dispatch(addr, packet)
		}
	}()

	t.Cleanup(func() { b.Stop() })
	return b, conn.LocalAddr().String()
}

func roundTrip(t *testing.T, addr string, frame []byte) (protocol.Status, []byte) {
	t.Helper()
	client, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(frame)
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, protocol.MaxFrameSize)
	n, err := client.Read(buf)
	require.NoError(t, err)

	status, body, err := protocol.DecodeReplyFrame(buf[:n])
	require.NoError(t, err)
	return status, body
}

func TestBrokerAppendAndFetch(t *testing.T) {
	_, addr := startTestBroker(t)

	key := registry.Key{StreamID: "orders", TopicID: "events", PartitionID: 0}
	appendReq := protocol.EncodeAppendMessagesRequest(protocol.AppendMessagesRequest{
		Addr: key,
		Messages: []*message.Message{
			{Payload: []byte("hello")},
			{Payload: []byte("world")},
		},
	})
	status, body := roundTrip(t, addr, protocol.EncodeRequestFrame(protocol.CmdAppendMessages, appendReq))
	require.Equal(t, protocol.StatusOK, status)
	appendReply, err := protocol.DecodeAppendMessagesReply(body)
	require.NoError(t, err)
	require.EqualValues(t, 0, appendReply.FirstOffset)
	require.EqualValues(t, 2, appendReply.Count)

	readReq := protocol.EncodeOffsetReadRequest(protocol.OffsetReadRequest{Addr: key, Offset: 0, Count: 10})
	status, body = roundTrip(t, addr, protocol.EncodeRequestFrame(protocol.CmdGetMessagesByOffset, readReq))
	require.Equal(t, protocol.StatusOK, status)
	reply, err := protocol.DecodeMessagesReply(body)
	require.NoError(t, err)
	require.Len(t, reply.Messages, 2)
	require.Equal(t, []byte("hello"), reply.Messages[0].Payload)
}

func TestBrokerUnknownPartitionReturnsSegmentNotFound(t *testing.T) {
	_, addr := startTestBroker(t)

	key := registry.Key{StreamID: "missing", TopicID: "t", PartitionID: 0}
	readReq := protocol.EncodeOffsetReadRequest(protocol.OffsetReadRequest{Addr: key, Offset: 0, Count: 10})
	status, _ := roundTrip(t, addr, protocol.EncodeRequestFrame(protocol.CmdGetMessagesByOffset, readReq))
	require.Equal(t, protocol.StatusSegmentNotFound, status)
}

func TestBrokerMalformedFrameReturnsInvalidCommand(t *testing.T) {
	_, addr := startTestBroker(t)
	status, _ := roundTrip(t, addr, []byte{1, 2})
	require.Equal(t, protocol.StatusInvalidCommand, status)
}
