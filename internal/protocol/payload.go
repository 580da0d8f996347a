package protocol

import (
	"encoding/binary"

	"flowlog/internal/apperr"
	"flowlog/internal/message"
	"flowlog/internal/registry"
)

func putString(dst []byte, s string) int {
	binary.LittleEndian.PutUint16(dst[0:2], uint16(len(s)))
	copy(dst[2:], s)
	return 2 + len(s)
}

func getString(src []byte) (string, int, error) {
	if len(src) < 2 {
		return "", 0, apperr.New(apperr.KindInvalidCommand, "truncated string length")
	}
	n := int(binary.LittleEndian.Uint16(src[0:2]))
	if len(src) < 2+n {
		return "", 0, apperr.New(apperr.KindInvalidCommand, "truncated string body")
	}
	return string(src[2 : 2+n]), 2 + n, nil
}

func addrEncodedSize(a registry.Key) int {
	return 2 + len(a.StreamID) + 2 + len(a.TopicID) + 4
}

func putAddr(dst []byte, a registry.Key) int {
	off := putString(dst, a.StreamID)
	off += putString(dst[off:], a.TopicID)
	binary.LittleEndian.PutUint32(dst[off:off+4], a.PartitionID)
	return off + 4
}

func getAddr(src []byte) (registry.Key, int, error) {
	stream, n1, err := getString(src)
	if err != nil {
		return registry.Key{}, 0, err
	}
	topic, n2, err := getString(src[n1:])
	if err != nil {
		return registry.Key{}, 0, err
	}
	if len(src) < n1+n2+4 {
		return registry.Key{}, 0, apperr.New(apperr.KindInvalidCommand, "truncated partition id")
	}
	partitionID := binary.LittleEndian.Uint32(src[n1+n2 : n1+n2+4])
	return registry.Key{StreamID: stream, TopicID: topic, PartitionID: partitionID}, n1 + n2 + 4, nil
}

// AppendMessagesRequest carries unassigned messages (id + payload only;
// offset/timestamp are filled in server-side on append).
type AppendMessagesRequest struct {
	Addr     registry.Key
	Messages []*message.Message
}

func EncodeAppendMessagesRequest(r AppendMessagesRequest) []byte {
	size := addrEncodedSize(r.Addr) + 4
	for _, m := range r.Messages {
		size += 16 + 4 + len(m.Payload)
	}
	buf := make([]byte, size)
	off := putAddr(buf, r.Addr)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Messages)))
	off += 4
	for _, m := range r.Messages {
		copy(buf[off:off+16], m.ID[:])
		off += 16
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(m.Payload)))
		off += 4
		off += copy(buf[off:], m.Payload)
	}
	return buf
}

func DecodeAppendMessagesRequest(buf []byte) (AppendMessagesRequest, error) {
	addr, n, err := getAddr(buf)
	if err != nil {
		return AppendMessagesRequest{}, err
	}
	off := n
	if len(buf) < off+4 {
		return AppendMessagesRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated message count")
	}
	count := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4

	msgs := make([]*message.Message, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(buf) < off+16+4 {
			return AppendMessagesRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated message header")
		}
		var id message.ID
		copy(id[:], buf[off:off+16])
		off += 16
		payloadLen := binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
		if len(buf) < off+int(payloadLen) {
			return AppendMessagesRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated message payload")
		}
		payload := make([]byte, payloadLen)
		copy(payload, buf[off:off+int(payloadLen)])
		off += int(payloadLen)
		msgs = append(msgs, &message.Message{ID: id, Payload: payload})
	}
	return AppendMessagesRequest{Addr: addr, Messages: msgs}, nil
}

// AppendMessagesReply reports the offset range assigned to the batch.
type AppendMessagesReply struct {
	FirstOffset uint64
	Count       uint32
}

func EncodeAppendMessagesReply(r AppendMessagesReply) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], r.FirstOffset)
	binary.LittleEndian.PutUint32(buf[8:12], r.Count)
	return buf
}

func DecodeAppendMessagesReply(buf []byte) (AppendMessagesReply, error) {
	if len(buf) < 12 {
		return AppendMessagesReply{}, apperr.New(apperr.KindInvalidCommand, "truncated append reply")
	}
	return AppendMessagesReply{
		FirstOffset: binary.LittleEndian.Uint64(buf[0:8]),
		Count:       binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// OffsetReadRequest backs get_messages_by_offset.
type OffsetReadRequest struct {
	Addr   registry.Key
	Offset uint64
	Count  uint32
}

func EncodeOffsetReadRequest(r OffsetReadRequest) []byte {
	buf := make([]byte, addrEncodedSize(r.Addr)+12)
	off := putAddr(buf, r.Addr)
	binary.LittleEndian.PutUint64(buf[off:off+8], r.Offset)
	binary.LittleEndian.PutUint32(buf[off+8:off+12], r.Count)
	return buf
}

func DecodeOffsetReadRequest(buf []byte) (OffsetReadRequest, error) {
	addr, n, err := getAddr(buf)
	if err != nil {
		return OffsetReadRequest{}, err
	}
	if len(buf) < n+12 {
		return OffsetReadRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated offset read request")
	}
	return OffsetReadRequest{
		Addr:   addr,
		Offset: binary.LittleEndian.Uint64(buf[n : n+8]),
		Count:  binary.LittleEndian.Uint32(buf[n+8 : n+12]),
	}, nil
}

// TimestampReadRequest backs get_messages_by_timestamp.
type TimestampReadRequest struct {
	Addr      registry.Key
	Timestamp uint64
	Count     uint32
}

func EncodeTimestampReadRequest(r TimestampReadRequest) []byte {
	buf := make([]byte, addrEncodedSize(r.Addr)+12)
	off := putAddr(buf, r.Addr)
	binary.LittleEndian.PutUint64(buf[off:off+8], r.Timestamp)
	binary.LittleEndian.PutUint32(buf[off+8:off+12], r.Count)
	return buf
}

func DecodeTimestampReadRequest(buf []byte) (TimestampReadRequest, error) {
	addr, n, err := getAddr(buf)
	if err != nil {
		return TimestampReadRequest{}, err
	}
	if len(buf) < n+12 {
		return TimestampReadRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated timestamp read request")
	}
	return TimestampReadRequest{
		Addr:      addr,
		Timestamp: binary.LittleEndian.Uint64(buf[n : n+8]),
		Count:     binary.LittleEndian.Uint32(buf[n+8 : n+12]),
	}, nil
}

// CountReadRequest backs get_first_messages and get_last_messages.
type CountReadRequest struct {
	Addr  registry.Key
	Count uint32
}

func EncodeCountReadRequest(r CountReadRequest) []byte {
	buf := make([]byte, addrEncodedSize(r.Addr)+4)
	off := putAddr(buf, r.Addr)
	binary.LittleEndian.PutUint32(buf[off:off+4], r.Count)
	return buf
}

func DecodeCountReadRequest(buf []byte) (CountReadRequest, error) {
	addr, n, err := getAddr(buf)
	if err != nil {
		return CountReadRequest{}, err
	}
	if len(buf) < n+4 {
		return CountReadRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated count read request")
	}
	return CountReadRequest{Addr: addr, Count: binary.LittleEndian.Uint32(buf[n : n+4])}, nil
}

// ConsumerReadRequest backs get_next_messages.
type ConsumerReadRequest struct {
	Addr       registry.Key
	ConsumerID uint32
	Count      uint32
}

func EncodeConsumerReadRequest(r ConsumerReadRequest) []byte {
	buf := make([]byte, addrEncodedSize(r.Addr)+8)
	off := putAddr(buf, r.Addr)
	binary.LittleEndian.PutUint32(buf[off:off+4], r.ConsumerID)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], r.Count)
	return buf
}

func DecodeConsumerReadRequest(buf []byte) (ConsumerReadRequest, error) {
	addr, n, err := getAddr(buf)
	if err != nil {
		return ConsumerReadRequest{}, err
	}
	if len(buf) < n+8 {
		return ConsumerReadRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated consumer read request")
	}
	return ConsumerReadRequest{
		Addr:       addr,
		ConsumerID: binary.LittleEndian.Uint32(buf[n : n+4]),
		Count:      binary.LittleEndian.Uint32(buf[n+4 : n+8]),
	}, nil
}

// MessagesReply is the shared reply shape for every read command:
// zero or more full messages (offset, timestamp, id, payload).
type MessagesReply struct {
	Messages []*message.Message
}

func EncodeMessagesReply(r MessagesReply) []byte {
	size := 4
	for _, m := range r.Messages {
		size += m.EncodedSize()
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(r.Messages)))
	off := 4
	for _, m := range r.Messages {
		off += m.Encode(buf[off:])
	}
	return buf
}

func DecodeMessagesReply(buf []byte) (MessagesReply, error) {
	if len(buf) < 4 {
		return MessagesReply{}, apperr.New(apperr.KindInvalidCommand, "truncated messages reply count")
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	off := 4
	msgs := make([]*message.Message, 0, count)
	for i := uint32(0); i < count; i++ {
		m, n, err := message.Decode(buf[off:])
		if err != nil {
			return MessagesReply{}, err
		}
		msgs = append(msgs, m)
		off += n
	}
	return MessagesReply{Messages: msgs}, nil
}

// StoreConsumerOffsetRequest backs store_consumer_offset.
type StoreConsumerOffsetRequest struct {
	Addr       registry.Key
	ConsumerID uint32
	Offset     uint64
}

func EncodeStoreConsumerOffsetRequest(r StoreConsumerOffsetRequest) []byte {
	buf := make([]byte, addrEncodedSize(r.Addr)+12)
	off := putAddr(buf, r.Addr)
	binary.LittleEndian.PutUint32(buf[off:off+4], r.ConsumerID)
	binary.LittleEndian.PutUint64(buf[off+4:off+12], r.Offset)
	return buf
}

func DecodeStoreConsumerOffsetRequest(buf []byte) (StoreConsumerOffsetRequest, error) {
	addr, n, err := getAddr(buf)
	if err != nil {
		return StoreConsumerOffsetRequest{}, err
	}
	if len(buf) < n+12 {
		return StoreConsumerOffsetRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated store consumer offset request")
	}
	return StoreConsumerOffsetRequest{
		Addr:       addr,
		ConsumerID: binary.LittleEndian.Uint32(buf[n : n+4]),
		Offset:     binary.LittleEndian.Uint64(buf[n+4 : n+12]),
	}, nil
}

// GetConsumerOffsetRequest backs get_consumer_offset.
type GetConsumerOffsetRequest struct {
	Addr       registry.Key
	ConsumerID uint32
}

func EncodeGetConsumerOffsetRequest(r GetConsumerOffsetRequest) []byte {
	buf := make([]byte, addrEncodedSize(r.Addr)+4)
	off := putAddr(buf, r.Addr)
	binary.LittleEndian.PutUint32(buf[off:off+4], r.ConsumerID)
	return buf
}

func DecodeGetConsumerOffsetRequest(buf []byte) (GetConsumerOffsetRequest, error) {
	addr, n, err := getAddr(buf)
	if err != nil {
		return GetConsumerOffsetRequest{}, err
	}
	if len(buf) < n+4 {
		return GetConsumerOffsetRequest{}, apperr.New(apperr.KindInvalidCommand, "truncated get consumer offset request")
	}
	return GetConsumerOffsetRequest{Addr: addr, ConsumerID: binary.LittleEndian.Uint32(buf[n : n+4])}, nil
}

// ConsumerOffsetReply backs get_consumer_offset's response. Found is
// false when the consumer has no stored checkpoint yet.
type ConsumerOffsetReply struct {
	Found     bool
	Offset    uint64
	Timestamp uint64
}

func EncodeConsumerOffsetReply(r ConsumerOffsetReply) []byte {
	buf := make([]byte, 17)
	if r.Found {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint64(buf[1:9], r.Offset)
	binary.LittleEndian.PutUint64(buf[9:17], r.Timestamp)
	return buf
}

func DecodeConsumerOffsetReply(buf []byte) (ConsumerOffsetReply, error) {
	if len(buf) < 17 {
		return ConsumerOffsetReply{}, apperr.New(apperr.KindInvalidCommand, "truncated consumer offset reply")
	}
	return ConsumerOffsetReply{
		Found:     buf[0] != 0,
		Offset:    binary.LittleEndian.Uint64(buf[1:9]),
		Timestamp: binary.LittleEndian.Uint64(buf[9:17]),
	}, nil
}
