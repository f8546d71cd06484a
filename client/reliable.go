package client

import (
	"errors"
	"sync"

	"github.com/vicegrid/gridnet/protocol"
)

// ErrReliableOverflow is reported when the unacknowledged outbound
// window exceeds protocol.MaxReliableCommands. The server has stopped
// acknowledging and the session cannot make progress.
var ErrReliableOverflow = errors.New("reliable client command overflow")

// inboundVerdict classifies one inbound reliable id against the
// receive window.
type inboundVerdict int

const (
	// inboundFresh means the id advances the window; the command
	// should be dispatched and then committed.
	inboundFresh inboundVerdict = iota
	// inboundDuplicate means the id was already processed; skip the
	// command but keep parsing the frame.
	inboundDuplicate
	// inboundDiscard means the id runs implausibly far ahead of the
	// window; the whole datagram is dropped.
	inboundDiscard
)

// reliableStore tracks both directions of the reliable command stream:
// the outbound retransmission window and the inbound dedup cursor with
// its handler table. The engine drives the hot paths under the frame
// lock; handler registration and Queue may happen from any goroutine.
type reliableStore struct {
	mu sync.Mutex

	pending      []protocol.ReliableCommand
	outSequence  uint32
	acknowledged uint32

	lastReceivedID uint32

	handlers map[uint32][]func(payload []byte)
}

func newReliableStore() *reliableStore {
	return &reliableStore{
		handlers: make(map[uint32][]func(payload []byte)),
	}
}

// Queue appends one outbound reliable command under a fresh id. It
// returns ErrReliableOverflow when the unacknowledged window has
// already outgrown its bound; the caller treats that as fatal. The
// command is queued either way so a final quit message still goes out.
func (r *reliableStore) Queue(typeName string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	overflowed := r.outSequence-r.acknowledged > protocol.MaxReliableCommands

	r.outSequence++
	r.pending = append(r.pending, protocol.ReliableCommand{
		TypeHash: protocol.HashRageString(typeName),
		ID:       r.outSequence,
		Payload:  payload,
	})

	if overflowed {
		return ErrReliableOverflow
	}
	return nil
}

// Ack records the server's acknowledgement cursor and drops every
// pending command it covers.
func (r *reliableStore) Ack(ack uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ack == r.acknowledged {
		return
	}

	kept := r.pending[:0]
	for _, cmd := range r.pending {
		if cmd.ID > ack {
			kept = append(kept, cmd)
		}
	}
	r.pending = kept
	r.acknowledged = ack
}

// EncodePending appends every unacknowledged command to an outbound
// frame in id order. Commands stay queued until acknowledged, so each
// is retransmitted on every frame until the server's ack covers it.
func (r *reliableStore) EncodePending(buf *protocol.NetBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range r.pending {
		protocol.EncodeReliable(buf, cmd)
	}
}

// PendingCount returns the current unacknowledged window size.
func (r *reliableStore) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Acknowledged returns the last acknowledgement cursor from the server.
func (r *reliableStore) Acknowledged() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acknowledged
}

// LastReceivedID returns the inbound dedup cursor, echoed to the
// server as the ack field of every outbound frame.
func (r *reliableStore) LastReceivedID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReceivedID
}

// Classify judges one inbound reliable id against the receive window
// without moving the cursor; Commit advances it once the payload has
// been read and dispatched.
func (r *reliableStore) Classify(id uint32) inboundVerdict {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id > r.lastReceivedID+protocol.ReliableWindowSlack {
		return inboundDiscard
	}
	if id <= r.lastReceivedID {
		return inboundDuplicate
	}
	return inboundFresh
}

// Commit advances the inbound dedup cursor to id.
func (r *reliableStore) Commit(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastReceivedID = id
}

// ResetInbound rewinds the inbound dedup cursor. Called when a new
// session is established and the server restarts its id sequence.
func (r *reliableStore) ResetInbound() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastReceivedID = 0
}

// ResetOutbound clears the outbound window and restarts its sequence.
func (r *reliableStore) ResetOutbound() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
	r.outSequence = 0
	r.acknowledged = 0
}

// AddHandler registers a callback for a reliable command type by name.
// Multiple handlers for one type all run, in registration order.
func (r *reliableStore) AddHandler(typeName string, fn func(payload []byte)) {
	hash := protocol.HashRageString(typeName)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[hash] = append(r.handlers[hash], fn)
}

// Dispatch runs every handler registered for typeHash. Unhandled types
// are silently ignored.
func (r *reliableStore) Dispatch(typeHash uint32, payload []byte) {
	r.mu.Lock()
	fns := r.handlers[typeHash]
	r.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}
