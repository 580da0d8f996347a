// Package protocol implements the broker's wire format: a length-prefixed,
// one-byte command/status frame carried over UDP, and the sync.Pool-backed
// reuse of datagram receive buffers.
package protocol

// Command identifies the operation a request frame carries. Values are
// stable across versions; never renumber an existing command.
type Command uint8

const (
	CmdAppendMessages Command = iota + 1
	CmdGetMessagesByOffset
	CmdGetMessagesByTimestamp
	CmdGetFirstMessages
	CmdGetLastMessages
	CmdGetNextMessages
	CmdStoreConsumerOffset
	CmdGetConsumerOffset
)

func (c Command) String() string {
	switch c {
	case CmdAppendMessages:
		return "append_messages"
	case CmdGetMessagesByOffset:
		return "get_messages_by_offset"
	case CmdGetMessagesByTimestamp:
		return "get_messages_by_timestamp"
	case CmdGetFirstMessages:
		return "get_first_messages"
	case CmdGetLastMessages:
		return "get_last_messages"
	case CmdGetNextMessages:
		return "get_next_messages"
	case CmdStoreConsumerOffset:
		return "store_consumer_offset"
	case CmdGetConsumerOffset:
		return "get_consumer_offset"
	default:
		return "unknown_command"
	}
}
