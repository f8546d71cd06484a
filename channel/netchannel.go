// Package channel implements the single-peer framing layer between raw
// UDP datagrams and decoded in-channel messages. It adds sequence
// numbering for duplicate suppression and transparent fragmentation for
// messages larger than a safe datagram size, while preserving message
// boundaries for the layer above.
package channel

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/vicegrid/gridnet/protocol"
	"github.com/vicegrid/gridnet/transport"
)

// Datagram header: u32 sequence (little-endian). When FlagFragmented is
// set in the sequence word, a u8 fragment index and u8 fragment total
// follow; all fragments of one message share the same sequence number.
const (
	headerSize     = 4
	fragHeaderSize = 6

	// MaxFragmentSize keeps each datagram under typical path MTUs.
	MaxFragmentSize = 1200

	// FlagFragmented marks a sequence word as carrying fragment fields.
	FlagFragmented uint32 = 0x80000000

	// fragmentTimeoutMs is how long an incomplete fragment group may
	// wait for its remaining pieces before being discarded.
	fragmentTimeoutMs = 5000
)

var (
	ErrNoPeer          = errors.New("channel not bound to a peer")
	ErrMessageTooLarge = errors.New("message exceeds fragment capacity")
)

// Conduit is the narrow engine surface the channel needs: a way to put
// bytes on the wire toward the bound peer and a monotonic millisecond
// clock. The engine owns the channel; the channel never reaches back
// into engine state.
type Conduit interface {
	SendRaw(data []byte) error
	Now() int64
}

type fragmentGroup struct {
	total     uint8
	received  uint8
	data      [][]byte
	createdAt int64
}

// NetChannel frames one peer's message stream. It is not safe for
// concurrent use; the engine drives it exclusively under the frame lock.
type NetChannel struct {
	peer    transport.NetAddress
	conduit Conduit

	inSequence  uint32
	outSequence uint32

	fragments map[uint32]*fragmentGroup

	logger zerolog.Logger
}

// NewNetChannel creates an unbound channel. Reset must be called before
// the first Send or Process.
func NewNetChannel(logger zerolog.Logger) *NetChannel {
	return &NetChannel{
		fragments: make(map[uint32]*fragmentGroup),
		logger:    logger.With().Str("component", "netchannel").Logger(),
	}
}

// Reset clears all sequencing and reassembly state and binds the channel
// to a new peer and conduit.
func (c *NetChannel) Reset(peer transport.NetAddress, conduit Conduit) {
	c.peer = peer
	c.conduit = conduit
	c.inSequence = 0
	c.outSequence = 0
	c.fragments = make(map[uint32]*fragmentGroup)
}

// Peer returns the currently bound peer address.
func (c *NetChannel) Peer() transport.NetAddress {
	return c.peer
}

// Process accepts one raw inbound datagram and returns the decoded
// message it completes, or nil when the datagram was a duplicate, a
// fragment awaiting siblings, or malformed.
func (c *NetChannel) Process(raw []byte) *protocol.NetBuffer {
	if c.conduit == nil {
		return nil
	}

	c.expireFragments()

	buf := protocol.NetBufferFrom(raw)
	seqWord := buf.ReadUint32()
	if buf.Exhausted() {
		c.logger.Trace().Int("len", len(raw)).Msg("runt datagram")
		return nil
	}

	if seqWord&FlagFragmented == 0 {
		return c.completeMessage(seqWord, raw[headerSize:])
	}

	seq := seqWord &^ FlagFragmented
	index := buf.ReadUint8()
	total := buf.ReadUint8()
	if buf.Exhausted() || total == 0 || index >= total {
		c.logger.Trace().Uint32("seq", seq).Msg("malformed fragment header")
		return nil
	}

	if seq <= c.inSequence && c.inSequence != 0 {
		return nil
	}

	group, ok := c.fragments[seq]
	if !ok {
		group = &fragmentGroup{
			total:     total,
			data:      make([][]byte, total),
			createdAt: c.conduit.Now(),
		}
		c.fragments[seq] = group
	}

	if group.total != total {
		c.logger.Trace().Uint32("seq", seq).Msg("fragment total mismatch")
		delete(c.fragments, seq)
		return nil
	}

	if group.data[index] == nil {
		chunk := make([]byte, len(raw)-fragHeaderSize)
		copy(chunk, raw[fragHeaderSize:])
		group.data[index] = chunk
		group.received++
	}

	if group.received < group.total {
		return nil
	}

	delete(c.fragments, seq)

	size := 0
	for _, part := range group.data {
		size += len(part)
	}
	whole := make([]byte, 0, size)
	for _, part := range group.data {
		whole = append(whole, part...)
	}

	return c.completeMessage(seq, whole)
}

func (c *NetChannel) completeMessage(seq uint32, payload []byte) *protocol.NetBuffer {
	if seq <= c.inSequence && c.inSequence != 0 {
		c.logger.Trace().Uint32("seq", seq).Msg("duplicate or stale datagram")
		return nil
	}
	c.inSequence = seq

	return protocol.NetBufferFrom(payload)
}

// Send wraps one outbound composite message, fragmenting as needed, and
// hands the resulting datagrams to the conduit.
func (c *NetChannel) Send(msg *protocol.NetBuffer) error {
	if c.conduit == nil || !c.peer.IsValid() {
		return ErrNoPeer
	}

	data := msg.Bytes()
	c.outSequence++
	seq := c.outSequence

	if len(data) <= MaxFragmentSize {
		dgram := make([]byte, 0, headerSize+len(data))
		out := protocol.NetBufferFrom(dgram)
		out.WriteUint32(seq)
		out.Write(data)
		return c.conduit.SendRaw(out.Bytes())
	}

	total := (len(data) + MaxFragmentSize - 1) / MaxFragmentSize
	if total > 255 {
		return ErrMessageTooLarge
	}

	for i := 0; i < total; i++ {
		start := i * MaxFragmentSize
		end := start + MaxFragmentSize
		if end > len(data) {
			end = len(data)
		}

		out := protocol.NewNetBuffer(fragHeaderSize + (end - start))
		out.WriteUint32(seq | FlagFragmented)
		out.WriteUint8(uint8(i))
		out.WriteUint8(uint8(total))
		out.Write(data[start:end])

		if err := c.conduit.SendRaw(out.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

func (c *NetChannel) expireFragments() {
	if len(c.fragments) == 0 {
		return
	}

	now := c.conduit.Now()
	for seq, group := range c.fragments {
		if now-group.createdAt > fragmentTimeoutMs {
			delete(c.fragments, seq)
		}
	}
}
