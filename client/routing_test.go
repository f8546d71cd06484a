package client

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRouting(start int64) (*routingQueues, *FakeClock) {
	clock := NewFakeClock(start)
	return newRoutingQueues(clock, zerolog.Nop()), clock
}

func TestRoutingQueues_IncomingFIFO(t *testing.T) {
	q, _ := newTestRouting(0)

	q.EnqueueIncoming(1, []byte("a"))
	q.EnqueueIncoming(2, []byte("b"))

	pkt, _, ok := q.DequeueIncoming()
	if !ok || pkt.NetID != 1 || !bytes.Equal(pkt.Payload, []byte("a")) {
		t.Fatalf("first dequeue: got %+v ok=%v", pkt, ok)
	}
	pkt, _, ok = q.DequeueIncoming()
	if !ok || pkt.NetID != 2 {
		t.Fatalf("second dequeue: got %+v ok=%v", pkt, ok)
	}
	if _, _, ok = q.DequeueIncoming(); ok {
		t.Error("empty queue should report ok=false")
	}
}

func TestRoutingQueues_QueueDelayMeasured(t *testing.T) {
	q, clock := newTestRouting(1000)

	q.EnqueueIncoming(1, []byte("x"))
	clock.Advance(250)

	_, delay, ok := q.DequeueIncoming()
	if !ok {
		t.Fatal("expected a packet")
	}
	if delay != 250 {
		t.Errorf("delay: got %d, want 250", delay)
	}
}

func TestRoutingQueues_WaitForIncoming(t *testing.T) {
	q, _ := newTestRouting(0)

	if q.WaitForIncoming(10 * time.Millisecond) {
		t.Error("empty queue should time out")
	}

	q.EnqueueIncoming(1, nil)
	if !q.WaitForIncoming(10 * time.Millisecond) {
		t.Error("queued packet should satisfy the wait immediately")
	}

	// A waiter blocked before the enqueue wakes up on arrival.
	q.Reset()
	done := make(chan bool, 1)
	go func() {
		done <- q.WaitForIncoming(2 * time.Second)
	}()
	time.Sleep(20 * time.Millisecond)
	q.EnqueueIncoming(2, nil)

	select {
	case ok := <-done:
		if !ok {
			t.Error("waiter should report a packet after arrival")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestRoutingQueues_OutgoingDropsWhenFull(t *testing.T) {
	q, _ := newTestRouting(0)

	for i := 0; i < outgoingQueueSize+10; i++ {
		q.EnqueueOutgoing(uint16(i), nil)
	}

	count := 0
	for {
		if _, ok := q.DequeueOutgoing(); !ok {
			break
		}
		count++
	}
	if count != outgoingQueueSize {
		t.Errorf("drained %d packets, want %d", count, outgoingQueueSize)
	}
}

func TestRoutingQueues_Reset(t *testing.T) {
	q, _ := newTestRouting(0)

	q.EnqueueIncoming(1, nil)
	q.EnqueueOutgoing(2, nil)
	q.Reset()

	if _, _, ok := q.DequeueIncoming(); ok {
		t.Error("incoming queue should be empty after reset")
	}
	if _, ok := q.DequeueOutgoing(); ok {
		t.Error("outgoing queue should be empty after reset")
	}
	if q.WaitForIncoming(5 * time.Millisecond) {
		t.Error("stale arrival signal should not survive reset")
	}
}
