package broker

import (
	"flowlog/internal/protocol"

	"go.uber.org/zap"
)

// handleRequest decodes packet's frame and dispatches on its command
// byte, returning the status/payload pair the caller frames into a
// reply. A malformed frame or unknown command never panics the read
// loop — it is reported back to the sender as a status byte.
func (b *Broker) handleRequest(packet []byte) (protocol.Status, []byte) {
	cmd, body, err := protocol.DecodeRequestFrame(packet)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}

	switch cmd {
	case protocol.CmdAppendMessages:
		return b.handleAppendMessages(body)
	case protocol.CmdGetMessagesByOffset:
		return b.handleGetMessagesByOffset(body)
	case protocol.CmdGetMessagesByTimestamp:
		return b.handleGetMessagesByTimestamp(body)
	case protocol.CmdGetFirstMessages:
		return b.handleGetFirstMessages(body)
	case protocol.CmdGetLastMessages:
		return b.handleGetLastMessages(body)
	case protocol.CmdGetNextMessages:
		return b.handleGetNextMessages(body)
	case protocol.CmdStoreConsumerOffset:
		return b.handleStoreConsumerOffset(body)
	case protocol.CmdGetConsumerOffset:
		return b.handleGetConsumerOffset(body)
	default:
		b.logger.Warn("unknown command", zap.Uint8("command", uint8(cmd)))
		return protocol.StatusInvalidCommand, nil
	}
}

func (b *Broker) handleAppendMessages(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeAppendMessagesRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}

	if len(req.Messages) == 0 {
		return protocol.StatusInvalidCommand, nil
	}

	p, err := b.Registry.CreatePartition(req.Addr)
	if err != nil {
		return protocol.StatusFor(err), nil
	}

	if err := p.AppendMessages(req.Messages); err != nil {
		return protocol.StatusFor(err), nil
	}

	last := req.Messages[len(req.Messages)-1]
	first := last.Offset - uint64(len(req.Messages)) + 1
	reply := protocol.EncodeAppendMessagesReply(protocol.AppendMessagesReply{
		FirstOffset: first,
		Count:       uint32(len(req.Messages)),
	})
	return protocol.StatusOK, reply
}

func (b *Broker) handleGetMessagesByOffset(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeOffsetReadRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}
	p, ok := b.Registry.GetPartition(req.Addr)
	if !ok {
		return protocol.StatusSegmentNotFound, nil
	}
	msgs, err := p.GetMessagesByOffset(req.Offset, req.Count)
	if err != nil {
		return protocol.StatusFor(err), nil
	}
	return protocol.StatusOK, protocol.EncodeMessagesReply(protocol.MessagesReply{Messages: msgs})
}

func (b *Broker) handleGetMessagesByTimestamp(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeTimestampReadRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}
	p, ok := b.Registry.GetPartition(req.Addr)
	if !ok {
		return protocol.StatusSegmentNotFound, nil
	}
	msgs, err := p.GetMessagesByTimestamp(req.Timestamp, req.Count)
	if err != nil {
		return protocol.StatusFor(err), nil
	}
	return protocol.StatusOK, protocol.EncodeMessagesReply(protocol.MessagesReply{Messages: msgs})
}

func (b *Broker) handleGetFirstMessages(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeCountReadRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}
	p, ok := b.Registry.GetPartition(req.Addr)
	if !ok {
		return protocol.StatusSegmentNotFound, nil
	}
	msgs, err := p.GetFirstMessages(req.Count)
	if err != nil {
		return protocol.StatusFor(err), nil
	}
	return protocol.StatusOK, protocol.EncodeMessagesReply(protocol.MessagesReply{Messages: msgs})
}

func (b *Broker) handleGetLastMessages(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeCountReadRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}
	p, ok := b.Registry.GetPartition(req.Addr)
	if !ok {
		return protocol.StatusSegmentNotFound, nil
	}
	msgs, err := p.GetLastMessages(req.Count)
	if err != nil {
		return protocol.StatusFor(err), nil
	}
	return protocol.StatusOK, protocol.EncodeMessagesReply(protocol.MessagesReply{Messages: msgs})
}

func (b *Broker) handleGetNextMessages(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeConsumerReadRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}
	p, ok := b.Registry.GetPartition(req.Addr)
	if !ok {
		return protocol.StatusSegmentNotFound, nil
	}
	msgs, err := p.GetNextMessages(req.ConsumerID, req.Count)
	if err != nil {
		return protocol.StatusFor(err), nil
	}
	return protocol.StatusOK, protocol.EncodeMessagesReply(protocol.MessagesReply{Messages: msgs})
}

func (b *Broker) handleStoreConsumerOffset(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeStoreConsumerOffsetRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}
	p, ok := b.Registry.GetPartition(req.Addr)
	if !ok {
		return protocol.StatusSegmentNotFound, nil
	}
	if err := p.StoreConsumerOffset(req.ConsumerID, req.Offset); err != nil {
		return protocol.StatusFor(err), nil
	}
	return protocol.StatusOK, nil
}

func (b *Broker) handleGetConsumerOffset(body []byte) (protocol.Status, []byte) {
	req, err := protocol.DecodeGetConsumerOffsetRequest(body)
	if err != nil {
		return protocol.StatusInvalidCommand, nil
	}
	p, ok := b.Registry.GetPartition(req.Addr)
	if !ok {
		return protocol.StatusSegmentNotFound, nil
	}
	co, found := p.GetConsumerOffset(req.ConsumerID)
	reply := protocol.EncodeConsumerOffsetReply(protocol.ConsumerOffsetReply{
		Found:     found,
		Offset:    co.Offset,
		Timestamp: co.Timestamp,
	})
	return protocol.StatusOK, reply
}
