package client

import (
	"sync"

	"github.com/vicegrid/gridnet/protocol"
	"github.com/vicegrid/gridnet/transport"
)

// EventToken identifies one registered callback so it can be removed
// later.
type EventToken int

type registration[T any] struct {
	token EventToken
	fn    T
}

// callbackList is an ordered observer list with token-based removal.
// Callbacks run in registration order.
type callbackList[T any] struct {
	mu      sync.Mutex
	next    EventToken
	entries []registration[T]
}

// Add registers fn and returns its removal token.
func (l *callbackList[T]) Add(fn T) EventToken {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	l.entries = append(l.entries, registration[T]{token: l.next, fn: fn})
	return l.next
}

// Remove deregisters the callback registered under token. It reports
// whether a callback was found.
func (l *callbackList[T]) Remove(token EventToken) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, entry := range l.entries {
		if entry.token == token {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// each invokes visit for every registered callback. The snapshot is
// taken under the lock so callbacks may register or remove freely.
func (l *callbackList[T]) each(visit func(fn T)) {
	l.mu.Lock()
	snapshot := make([]registration[T], len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	for _, entry := range snapshot {
		visit(entry.fn)
	}
}

type (
	StateChangedFunc func(current, previous ConnectionState)
	ProgressFunc     func(message string, done, total int)
	MessageFunc      func(message string)
	ConnectOKFunc    func(clientNetID, hostNetID uint16, hostBase uint32)
	AddressFunc      func(server transport.NetAddress)
	BuildMessageFunc func(buf *protocol.NetBuffer)
	HostChangedFunc  func(hostNetID uint16, hostBase uint32)
)

// Events is the engine's observer hub. Callbacks fire on the goroutine
// that drives the engine call emitting them: the tick for most events,
// the caller of Connect, Disconnect, FinalizeDisconnect,
// ReportSessionError or SetHost for the events those raise. They must
// not call back into engine methods that take the frame lock;
// BuildMessage in particular runs while an outbound frame is being
// assembled and may only append to the provided buffer.
type Events struct {
	StateChanged       callbackList[StateChangedFunc]
	ConnectionProgress callbackList[ProgressFunc]
	ConnectionError    callbackList[MessageFunc]
	ConnectionTimedOut callbackList[MessageFunc]
	ConnectOKReceived  callbackList[ConnectOKFunc]
	InitReceived       callbackList[AddressFunc]
	AttemptDisconnect  callbackList[MessageFunc]
	FinalizeDisconnect callbackList[AddressFunc]
	BuildMessage       callbackList[BuildMessageFunc]
	HostChanged        callbackList[HostChangedFunc]
}

func (e *Events) emitStateChanged(current, previous ConnectionState) {
	e.StateChanged.each(func(fn StateChangedFunc) { fn(current, previous) })
}

func (e *Events) emitConnectionProgress(message string, done, total int) {
	e.ConnectionProgress.each(func(fn ProgressFunc) { fn(message, done, total) })
}

func (e *Events) emitConnectionError(message string) {
	e.ConnectionError.each(func(fn MessageFunc) { fn(message) })
}

func (e *Events) emitConnectionTimedOut(message string) {
	e.ConnectionTimedOut.each(func(fn MessageFunc) { fn(message) })
}

func (e *Events) emitConnectOKReceived(clientNetID, hostNetID uint16, hostBase uint32) {
	e.ConnectOKReceived.each(func(fn ConnectOKFunc) { fn(clientNetID, hostNetID, hostBase) })
}

func (e *Events) emitInitReceived(server transport.NetAddress) {
	e.InitReceived.each(func(fn AddressFunc) { fn(server) })
}

func (e *Events) emitAttemptDisconnect(reason string) {
	e.AttemptDisconnect.each(func(fn MessageFunc) { fn(reason) })
}

func (e *Events) emitFinalizeDisconnect(server transport.NetAddress) {
	e.FinalizeDisconnect.each(func(fn AddressFunc) { fn(server) })
}

func (e *Events) emitBuildMessage(buf *protocol.NetBuffer) {
	e.BuildMessage.each(func(fn BuildMessageFunc) { fn(buf) })
}

func (e *Events) emitHostChanged(hostNetID uint16, hostBase uint32) {
	e.HostChanged.each(func(fn HostChangedFunc) { fn(hostNetID, hostBase) })
}

// engineCreateHooks fire once per NewEngine call, letting integrations
// attach handlers before the first tick.
var engineCreateHooks callbackList[func(*Engine)]

// OnEngineCreate registers a hook invoked for every engine constructed
// after registration.
func OnEngineCreate(fn func(*Engine)) EventToken {
	return engineCreateHooks.Add(fn)
}

// RemoveEngineCreateHook deregisters a creation hook.
func RemoveEngineCreateHook(token EventToken) bool {
	return engineCreateHooks.Remove(token)
}
