// Package broker is the command dispatcher: it decodes wire frames off
// a UDP socket, calls into the registry/partition API, and encodes
// replies. Framing and buffer pooling are internal/protocol's job;
// this package only owns the read/dispatch/write loop.
package broker

import (
	"net"
	"sync"

	"flowlog/internal/protocol"
	"flowlog/internal/registry"

	"go.uber.org/zap"
)

// Broker owns the UDP socket and dispatches every datagram to
// handleRequest, matching the teacher's accept-loop shape but adapted
// to a connectionless transport: there is no per-client goroutine, only
// one read loop that fans work out per packet.
type Broker struct {
	Config   Config
	Registry *registry.Registry
	logger   *zap.Logger

	conn net.PacketConn
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewBroker(cfg Config, reg *registry.Registry, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		Config:   cfg,
		Registry: reg,
		logger:   logger,
		quit:     make(chan struct{}),
	}
}

// Start opens the UDP socket and blocks, dispatching datagrams until
// Stop closes the connection.
func (b *Broker) Start() error {
	conn, err := net.ListenPacket("udp", b.Config.ListenAddr)
	if err != nil {
		return err
	}
	b.conn = conn

	b.logger.Info("broker listening", zap.String("addr", b.Config.ListenAddr))

	go func() {
		<-b.quit
		b.logger.Info("broker stopping")
		conn.Close()
	}()

	for {
		bufPtr := protocol.GetBuffer(protocol.MaxFrameSize)
		*bufPtr = (*bufPtr)[:protocol.MaxFrameSize]
		n, addr, err := conn.ReadFrom(*bufPtr)
		if err != nil {
			protocol.PutBuffer(bufPtr)
			select {
			case <-b.quit:
				b.wg.Wait()
				return nil
			default:
				b.logger.Warn("read error", zap.Error(err))
				continue
			}
		}

		packet := append([]byte(nil), (*bufPtr)[:n]...)
		protocol.PutBuffer(bufPtr)

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.dispatch(addr, packet)
		}()
	}
}

// Stop signals the read loop to exit and closes the socket. It returns
// without waiting; Start waits for in-flight requests to finish before
// it returns.
func (b *Broker) Stop() {
	close(b.quit)
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Broker) dispatch(addr net.Addr, packet []byte) {
	status, replyPayload := b.handleRequest(packet)
	frame := protocol.EncodeReplyFrame(status, replyPayload)
	if _, err := b.conn.WriteTo(frame, addr); err != nil {
		b.logger.Warn("write error", zap.Stringer("peer", addr), zap.Error(err))
	}
}
