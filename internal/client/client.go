// Package client is a thin UDP client for the broker's wire protocol,
// used by the cmd/flowctl test producer/consumer. It mirrors the
// teacher's internal/client request/response round-trip shape, adapted
// from a persistent TCP connection to a UDP "connected" socket (Dial
// fixes the peer address so Read/Write work without addresses).
package client

import (
	"fmt"
	"net"
	"time"

	"flowlog/internal/message"
	"flowlog/internal/protocol"
	"flowlog/internal/registry"

	"github.com/google/uuid"
)

type Config struct {
	BrokerAddr string
	Timeout    time.Duration
}

type Client struct {
	cfg  Config
	conn net.Conn
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	conn, err := net.DialTimeout("udp", cfg.BrokerAddr, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// NewMessage builds a Message with a random correlation id, ready to
// hand to Produce; offset and timestamp are assigned by the broker.
func NewMessage(payload []byte) *message.Message {
	id := uuid.New()
	m := &message.Message{Payload: payload}
	copy(m.ID[:], id[:])
	return m
}

func (c *Client) roundTrip(cmd protocol.Command, payload []byte) (protocol.Status, []byte, error) {
	frame := protocol.EncodeRequestFrame(cmd, payload)
	if _, err := c.conn.Write(frame); err != nil {
		return 0, nil, err
	}

	c.conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
	buf := make([]byte, protocol.MaxFrameSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	return protocol.DecodeReplyFrame(buf[:n])
}

// Produce appends messages to the partition at key and returns the
// first offset the broker assigned them.
func (c *Client) Produce(key registry.Key, messages []*message.Message) (uint64, error) {
	req := protocol.EncodeAppendMessagesRequest(protocol.AppendMessagesRequest{Addr: key, Messages: messages})
	status, body, err := c.roundTrip(protocol.CmdAppendMessages, req)
	if err != nil {
		return 0, err
	}
	if status != protocol.StatusOK {
		return 0, fmt.Errorf("produce failed: status %d", status)
	}
	reply, err := protocol.DecodeAppendMessagesReply(body)
	if err != nil {
		return 0, err
	}
	return reply.FirstOffset, nil
}

// FetchByOffset reads up to count messages starting at offset.
func (c *Client) FetchByOffset(key registry.Key, offset uint64, count uint32) ([]*message.Message, error) {
	req := protocol.EncodeOffsetReadRequest(protocol.OffsetReadRequest{Addr: key, Offset: offset, Count: count})
	status, body, err := c.roundTrip(protocol.CmdGetMessagesByOffset, req)
	if err != nil {
		return nil, err
	}
	if status != protocol.StatusOK {
		return nil, fmt.Errorf("fetch failed: status %d", status)
	}
	reply, err := protocol.DecodeMessagesReply(body)
	if err != nil {
		return nil, err
	}
	return reply.Messages, nil
}
