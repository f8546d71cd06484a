package protocol

// In-channel message type identifiers. Any other value read from the
// message-type position is a reliable command type hash.
const (
	MsgRoute uint32 = 0xE938445B // routed per-entity payload
	MsgFrame uint32 = 0x53FFFA3F // server frame marker (+ping on protocol >= 3)
	MsgEnd   uint32 = 0xCA569E63 // composite frame terminator
)

// OOBPrefix marks a datagram as out-of-band ASCII command text. Compared
// bitwise against the first four little-endian bytes of every datagram.
const OOBPrefix uint32 = 0xFFFFFFFF

const (
	// MaxReliableCommands bounds the unacknowledged outbound window.
	// Exceeding it is a fatal client error.
	MaxReliableCommands = 64

	// ReliableWindowSlack is how far ahead of the last processed id an
	// inbound reliable may run before the datagram is considered forged
	// or wildly reordered and dropped whole.
	ReliableWindowSlack = 64

	// LargeReliableFlag marks a reliable id whose payload length is
	// carried as a uint32 instead of a uint16.
	LargeReliableFlag uint32 = 0x80000000

	// MaxRoutedPayload is the nominal routed payload limit (64 KiB).
	// No send or receive path checks it; routed lengths travel as u16.
	MaxRoutedPayload = 65536

	// OOBBufferSize bounds outbound out-of-band command text.
	OOBBufferSize = 32768

	// DefaultFrameSize is the capacity hint for outbound composite frames.
	DefaultFrameSize = 24000
)

// Reliable command type names sent by the engine itself.
const (
	CommandQuit        = "msgIQuit"
	CommandHost        = "msgIHost"
	CommandNetEvent    = "msgNetEvent"
	CommandServerEvent = "msgServerEvent"
)

// ReliableCommand is one pending outbound reliable message. It stays in
// the send window, retransmitted on every outbound frame, until the
// server acknowledges its id.
type ReliableCommand struct {
	TypeHash uint32
	ID       uint32
	Payload  []byte
}

// EncodeReliable appends one reliable command to an outbound frame:
//
//	u32 type_hash
//	u32 id            (high bit set when the length field is u32)
//	u16/u32 length
//	payload bytes
func EncodeReliable(buf *NetBuffer, cmd ReliableCommand) {
	buf.WriteUint32(cmd.TypeHash)

	if len(cmd.Payload) > 0xFFFF {
		buf.WriteUint32(cmd.ID | LargeReliableFlag)
		buf.WriteUint32(uint32(len(cmd.Payload)))
	} else {
		buf.WriteUint32(cmd.ID)
		buf.WriteUint16(uint16(len(cmd.Payload)))
	}

	buf.Write(cmd.Payload)
}

// ReadReliableBody reads the id, length, and payload of a reliable
// command after its type hash has already been consumed. The high bit of
// the id selects the wide length encoding and is stripped from the
// returned id. ok is false when the buffer ran out mid-command.
func ReadReliableBody(buf *NetBuffer) (id uint32, payload []byte, ok bool) {
	id = buf.ReadUint32()

	var size uint32
	if id&LargeReliableFlag != 0 {
		size = buf.ReadUint32()
		id &^= LargeReliableFlag
	} else {
		size = uint32(buf.ReadUint16())
	}

	if buf.Exhausted() {
		return 0, nil, false
	}

	payload = buf.ReadBytes(int(size))
	if payload == nil {
		return 0, nil, false
	}

	return id, payload, true
}

// EncodeRoute appends one routed packet to an outbound frame:
//
//	u32 msgRoute
//	u16 net_id
//	u16 length
//	payload bytes
func EncodeRoute(buf *NetBuffer, netID uint16, payload []byte) {
	buf.WriteUint32(MsgRoute)
	buf.WriteUint16(netID)
	buf.WriteUint16(uint16(len(payload)))
	buf.Write(payload)
}
