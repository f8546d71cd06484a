package client

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// outgoingQueueSize bounds game-to-network routed packets buffered
// between send ticks. Overflow drops the newest packet with a warning
// rather than blocking the game thread.
const outgoingQueueSize = 4096

// RoutingPacket is one per-entity payload crossing the game/network
// boundary, in either direction.
type RoutingPacket struct {
	NetID   uint16
	Payload []byte

	genTime int64
}

// routingQueues carries routed packets between the network tick and
// the game thread. Incoming packets queue until the game polls them;
// outgoing packets queue until the next send tick drains them into a
// frame.
type routingQueues struct {
	mu       sync.Mutex
	incoming []RoutingPacket
	// arrival is a one-slot auto-reset event: a send never blocks and
	// a waiter consumes at most one signal.
	arrival chan struct{}

	outgoing chan RoutingPacket

	clock  Clock
	logger zerolog.Logger
}

func newRoutingQueues(clock Clock, logger zerolog.Logger) *routingQueues {
	return &routingQueues{
		arrival:  make(chan struct{}, 1),
		outgoing: make(chan RoutingPacket, outgoingQueueSize),
		clock:    clock,
		logger:   logger.With().Str("component", "routing").Logger(),
	}
}

// EnqueueIncoming stores one network-to-game packet and wakes any
// waiter.
func (q *routingQueues) EnqueueIncoming(netID uint16, payload []byte) {
	q.mu.Lock()
	q.incoming = append(q.incoming, RoutingPacket{NetID: netID, Payload: payload, genTime: q.clock.Now()})
	q.mu.Unlock()

	select {
	case q.arrival <- struct{}{}:
	default:
	}
}

// DequeueIncoming pops the oldest queued inbound packet. delay is the
// milliseconds the packet sat in the queue. ok is false when the queue
// is empty.
func (q *routingQueues) DequeueIncoming() (pkt RoutingPacket, delay int64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.incoming) == 0 {
		return RoutingPacket{}, 0, false
	}

	pkt = q.incoming[0]
	q.incoming = q.incoming[1:]
	return pkt, q.clock.Now() - pkt.genTime, true
}

// WaitForIncoming blocks until at least one inbound packet is queued
// or the timeout elapses. It returns true when a packet is available.
func (q *routingQueues) WaitForIncoming(timeout time.Duration) bool {
	q.mu.Lock()
	ready := len(q.incoming) > 0
	q.mu.Unlock()
	if ready {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.arrival:
		return true
	case <-timer.C:
		q.mu.Lock()
		ready = len(q.incoming) > 0
		q.mu.Unlock()
		return ready
	}
}

// EnqueueOutgoing stores one game-to-network packet for the next send
// tick. A full queue drops the packet with a warning.
func (q *routingQueues) EnqueueOutgoing(netID uint16, payload []byte) {
	select {
	case q.outgoing <- RoutingPacket{NetID: netID, Payload: payload, genTime: q.clock.Now()}:
	default:
		q.logger.Warn().Int("queue", outgoingQueueSize).Msg("outgoing routed queue full, dropping packet")
	}
}

// DequeueOutgoing pops the oldest queued outbound packet without
// blocking.
func (q *routingQueues) DequeueOutgoing() (pkt RoutingPacket, ok bool) {
	select {
	case pkt = <-q.outgoing:
		return pkt, true
	default:
		return RoutingPacket{}, false
	}
}

// Reset discards all queued packets in both directions.
func (q *routingQueues) Reset() {
	q.mu.Lock()
	q.incoming = nil
	q.mu.Unlock()

	select {
	case <-q.arrival:
	default:
	}

	for {
		select {
		case <-q.outgoing:
		default:
			return
		}
	}
}
