// Package client implements the connection engine: the state machine
// that takes a session from address lookup through active play, the
// reliable-over-unreliable command stream, and the routed packet
// queues bridging the network tick and the game thread.
package client

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/vicegrid/gridnet/channel"
	"github.com/vicegrid/gridnet/protocol"
	"github.com/vicegrid/gridnet/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultProtocolVersion is the protocol revision this client
	// advertises during the handshake.
	DefaultProtocolVersion uint32 = 4

	// retryIntervalMs spaces handshake OOB attempts.
	retryIntervalMs = 5000

	// maxConnectAttempts bounds getinfo/connect retries before the
	// session times out.
	maxConnectAttempts = 3

	// activeTimeoutMs is the silence tolerance of an active session.
	activeTimeoutMs = 15000

	// sendIntervalMs paces outbound frames at 60 Hz.
	sendIntervalMs = 1000 / 60
)

// Wire is the datagram surface the engine drives. *transport.Transport
// satisfies it; tests substitute an in-memory pair.
type Wire interface {
	Send(addr transport.NetAddress, data []byte) error
	Drain(fn func(data []byte, from transport.NetAddress))
	Close() error
}

// Options configures a new Engine. Zero fields get working defaults.
type Options struct {
	// PlayerName overrides the environment-derived display name.
	PlayerName string
	// AuthTicket is the opaque identity ticket, if any.
	AuthTicket []byte
	// Identity overrides the default identity entirely.
	Identity IdentityProvider

	// HTTP performs the initConnect handshake request.
	HTTP HTTPClient
	// Wire overrides the UDP transport.
	Wire Wire
	// Clock overrides the monotonic millisecond clock.
	Clock Clock

	Metrics  MetricSink
	Presence PresenceSink

	// ProtocolVersion overrides DefaultProtocolVersion.
	ProtocolVersion uint32

	Logger zerolog.Logger
}

// Engine owns one client session: transport, channel, reliable stores,
// routing queues, connection state, and timers. One engine serves one
// server at a time; Connect while non-idle tears the old session down
// first.
//
// RunFrame is expected from the game loop; PreProcessNativeNet and
// PostProcessNativeNet may race it from a native callback. All three
// contend on the frame lock with a try-lock and skip when they lose.
type Engine struct {
	frameMu   sync.Mutex
	suspended atomic.Bool

	state     atomic.Int32
	lastState ConnectionState

	clock     Clock
	wire      Wire
	channel   *channel.NetChannel
	reliable  *reliableStore
	routing   *routingQueues
	handshake *handshaker
	identity  IdentityProvider
	events    Events
	metrics   MetricSink
	presence  PresenceSink

	protocolVersion uint32

	// sessionMu guards the handshake-populated context so accessors
	// and event callbacks never need the frame lock.
	sessionMu           sync.RWMutex
	currentServer       transport.NetAddress
	token               string
	serverProtocol      uint32
	enhancedHostSupport bool
	scripthookAllowed   bool
	infoString          string
	lastWorld           string

	serverNetID atomic.Uint32
	hostNetID   atomic.Uint32
	hostBase    atomic.Uint32
	gameLoaded  atomic.Bool

	// Frame-lock-only tick state.
	lastConnect     int64
	connectAttempts int
	lastReceivedAt  int64
	lastFrameNumber uint32
	lastSend        int64

	disconnectReason string

	errMu     sync.RWMutex
	errorFunc func(message string)

	logger zerolog.Logger
}

// engineConduit is the narrow surface the net channel sees.
type engineConduit struct {
	e *Engine
}

func (c engineConduit) SendRaw(data []byte) error {
	return c.e.wire.Send(c.e.server(), data)
}

func (c engineConduit) Now() int64 {
	return c.e.clock.Now()
}

// NewEngine builds an engine from opts, creating a UDP transport when
// none is supplied.
func NewEngine(opts Options) (*Engine, error) {
	logger := opts.Logger.With().Str("component", "engine").Logger()

	clock := opts.Clock
	if clock == nil {
		clock = NewSystemClock()
	}

	wire := opts.Wire
	if wire == nil {
		t, err := transport.NewTransport(opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		wire = t
	}

	identity := opts.Identity
	if identity == nil {
		identity = NewDefaultIdentity(opts.PlayerName, opts.AuthTicket)
	}

	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetricSink()
	}

	presence := opts.Presence
	if presence == nil {
		presence = NoopPresenceSink()
	}

	version := opts.ProtocolVersion
	if version == 0 {
		version = DefaultProtocolVersion
	}

	e := &Engine{
		clock:           clock,
		wire:            wire,
		channel:         channel.NewNetChannel(opts.Logger),
		reliable:        newReliableStore(),
		handshake:       newHandshaker(httpClient, opts.Logger),
		identity:        identity,
		metrics:         metrics,
		presence:        presence,
		protocolVersion: version,
		logger:          logger,
	}
	e.routing = newRoutingQueues(clock, opts.Logger)
	e.state.Store(int32(StateIdle))

	e.AddReliableHandler(protocol.CommandHost, func(payload []byte) {
		buf := protocol.NetBufferFrom(payload)
		hostNetID := buf.ReadUint16()
		hostBase := buf.ReadUint32()
		if buf.Exhausted() {
			e.logger.Trace().Msg("truncated host handoff")
			return
		}
		e.SetHost(hostNetID, hostBase)
	})

	engineCreateHooks.each(func(fn func(*Engine)) { fn(e) })

	return e, nil
}

// Events returns the engine's observer hub.
func (e *Engine) Events() *Events {
	return &e.events
}

// BindErrorHandler installs the sink for fatal session errors. Fatal
// errors leave connection state untouched; the handler decides whether
// to tear the process down.
func (e *Engine) BindErrorHandler(fn func(message string)) {
	e.errMu.Lock()
	e.errorFunc = fn
	e.errMu.Unlock()
}

func (e *Engine) fatal(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	e.logger.Error().Str("reason", message).Msg("fatal session error")

	e.errMu.RLock()
	fn := e.errorFunc
	e.errMu.RUnlock()
	if fn != nil {
		fn(message)
	}
}

// State returns the current connection state.
func (e *Engine) State() ConnectionState {
	return ConnectionState(e.state.Load())
}

func (e *Engine) setState(s ConnectionState) {
	e.state.Store(int32(s))
}

func (e *Engine) server() transport.NetAddress {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	return e.currentServer
}

// CurrentServer returns the address of the server this session targets,
// or the zero address when idle.
func (e *Engine) CurrentServer() transport.NetAddress {
	return e.server()
}

// ServerProtocol returns the protocol revision the server reported
// during the handshake.
func (e *Engine) ServerProtocol() uint32 {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	return e.serverProtocol
}

// EnhancedHostSupport reports the handshake's enhancedHostSupport flag.
func (e *Engine) EnhancedHostSupport() bool {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	return e.enhancedHostSupport
}

// ScripthookAllowed reports the handshake's sH flag.
func (e *Engine) ScripthookAllowed() bool {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	return e.scripthookAllowed
}

// InfoString returns the raw info string from the last infoResponse.
func (e *Engine) InfoString() string {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	return e.infoString
}

// ServerNetID returns this client's id as assigned by connectOK.
func (e *Engine) ServerNetID() uint16 {
	return uint16(e.serverNetID.Load())
}

// HostNetID returns the current session host's id.
func (e *Engine) HostNetID() uint16 {
	return uint16(e.hostNetID.Load())
}

// HostBase returns the current session host's base value.
func (e *Engine) HostBase() uint32 {
	return e.hostBase.Load()
}

// SetHost records a host handoff and notifies observers.
func (e *Engine) SetHost(netID uint16, base uint32) {
	e.hostNetID.Store(uint32(netID))
	e.hostBase.Store(base)
	e.events.emitHostChanged(netID, base)
}

// SetGameLoaded records whether a world is loaded locally. A loaded
// world pins the session to that world; joining a server running a
// different one fails.
func (e *Engine) SetGameLoaded(loaded bool) {
	e.gameLoaded.Store(loaded)
}

// Connect resolves the server address and starts the handshake. A
// non-idle engine disconnects from its current server first.
func (e *Engine) Connect(host string, port uint16) error {
	addr, err := transport.ResolveNetAddress(host, port)
	if err != nil {
		return err
	}

	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	if e.State() != StateIdle {
		e.disconnectReason = "Connecting to another server."
		e.events.emitAttemptDisconnect(e.disconnectReason)
		e.finalizeLocked()
	}

	e.sessionMu.Lock()
	e.currentServer = addr
	e.token = ""
	e.serverProtocol = 0
	e.infoString = ""
	e.sessionMu.Unlock()

	e.reliable.ResetOutbound()
	e.reliable.ResetInbound()
	e.routing.Reset()
	e.lastFrameNumber = 0
	e.lastConnect = 0
	e.connectAttempts = 0
	e.lastReceivedAt = e.clock.Now()

	e.handshake.Drain()
	e.setState(StateIniting)
	e.logger.Info().Stringer("server", addr).Msg("connecting")

	e.handshake.Begin(addr, e.identity, e.protocolVersion)

	return nil
}

// Disconnect records the reason and announces the intent; the actual
// teardown happens in FinalizeDisconnect. Safe to call repeatedly.
func (e *Engine) Disconnect(reason string) {
	e.frameMu.Lock()
	e.disconnectReason = reason
	e.frameMu.Unlock()

	e.events.emitAttemptDisconnect(reason)
}

// FinalizeDisconnect notifies the server, resets all session state,
// and returns the engine to idle.
func (e *Engine) FinalizeDisconnect() {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.finalizeLocked()
}

func (e *Engine) finalizeLocked() {
	state := e.State()

	if state == StateConnecting || state.Established() {
		// The quit payload carries a trailing NUL like every other
		// string the server parses.
		payload := append([]byte(e.disconnectReason), 0)
		if err := e.reliable.Queue(protocol.CommandQuit, payload); err != nil {
			e.logger.Warn().Err(err).Msg("quit command not queued")
		}

		// Two immediate frames give the quit message a fighting chance
		// on a lossy path before the channel goes away.
		if state == StateActive {
			e.sendFrameLocked()
			e.sendFrameLocked()
		}
	}

	if state != StateIdle {
		e.logger.Info().Str("reason", e.disconnectReason).Msg("session closed")
		e.events.emitFinalizeDisconnect(e.server())

		e.setState(StateIdle)
		e.sessionMu.Lock()
		e.currentServer = transport.NetAddress{}
		e.sessionMu.Unlock()

		e.reliable.ResetOutbound()
		e.routing.Reset()
	}
}

// ReportSessionError maps an error surfaced by the surrounding game
// initialization into the session lifecycle: a pre-active error aborts
// to idle, an in-game error disconnects with the first line of the
// message.
func (e *Engine) ReportSessionError(message string) {
	if e.State() != StateActive {
		e.events.emitConnectionError(message)

		e.frameMu.Lock()
		e.setState(StateIdle)
		e.frameMu.Unlock()
		return
	}

	line := message
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if len(line) > 100 {
		line = line[:100]
	}

	e.Disconnect(line)
	e.FinalizeDisconnect()
}

// Suspend halts all tick entry points until Resume. It replaces
// unlocking the frame mutex from a non-owner: the gate keeps the
// "tick never overlaps itself" contract without touching lock
// ownership.
func (e *Engine) Suspend() {
	e.suspended.Store(true)
}

// Resume re-enables tick processing after Suspend.
func (e *Engine) Resume() {
	e.suspended.Store(false)
}

// RunFrame drives one engine tick: pending handshake completion, state
// change notification, packet receive, frame send, and state timers.
// A contended frame lock skips the tick entirely.
func (e *Engine) RunFrame() {
	if e.suspended.Load() {
		return
	}
	if !e.frameMu.TryLock() {
		return
	}
	defer e.frameMu.Unlock()

	e.tickLocked()
}

// PreProcessNativeNet drains inbound datagrams from a native network
// callback. Skips when the frame lock is contended.
func (e *Engine) PreProcessNativeNet() {
	if e.suspended.Load() {
		return
	}
	if !e.frameMu.TryLock() {
		return
	}
	defer e.frameMu.Unlock()

	e.processPacketsLocked()
}

// PostProcessNativeNet flushes an outbound frame from a native network
// callback. Skips when the frame lock is contended.
func (e *Engine) PostProcessNativeNet() {
	if e.suspended.Load() {
		return
	}
	if !e.frameMu.TryLock() {
		return
	}
	defer e.frameMu.Unlock()

	e.processSendLocked()
}

// ProcessPreGameTick keeps a mid-handshake session alive while the
// game loop is not yet running its own frames. It reports whether the
// caller should proceed with its own tick.
func (e *Engine) ProcessPreGameTick() bool {
	switch e.State() {
	case StateActive, StateConnected, StateIdle:
		return true
	default:
		e.RunFrame()
		return false
	}
}

// DownloadsComplete advances a downloading session to the next phase.
// It reports whether the state actually moved.
func (e *Engine) DownloadsComplete() bool {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	if e.State() != StateDownloading {
		return false
	}
	e.setState(StateDownloadComplete)
	return true
}

func (e *Engine) tickLocked() {
	e.applyHandshakeLocked()

	if cur := e.State(); cur != e.lastState {
		prev := e.lastState
		e.lastState = cur
		e.logger.Debug().Stringer("from", prev).Stringer("to", cur).Msg("state changed")
		e.events.emitStateChanged(cur, prev)
	}

	e.processPacketsLocked()
	e.processSendLocked()

	switch e.State() {
	case StateInitReceived:
		e.setState(StateDownloading)
		e.events.emitConnectionProgress("Downloading content", 0, 1)
		e.events.emitInitReceived(e.server())

	case StateDownloadComplete:
		e.setState(StateFetching)
		e.lastConnect = 0
		e.connectAttempts = 0
		e.events.emitConnectionProgress("Downloading completed", 1, 1)

	case StateFetching:
		if e.lastConnect == 0 || e.clock.Now()-e.lastConnect > retryIntervalMs {
			e.SendOutOfBand(e.server(), "getinfo xyz")
			e.lastConnect = e.clock.Now()
			e.connectAttempts++

			e.events.emitConnectionProgress("Fetching info from server..."+attemptSuffix(e.connectAttempts), 1, 1)
		}

		if e.connectAttempts > maxConnectAttempts {
			e.timeOutLocked("Fetching info timed out.", "Failed to getinfo server after 3 attempts.")
		}

	case StateConnecting:
		if e.lastConnect == 0 || e.clock.Now()-e.lastConnect > retryIntervalMs {
			e.sessionMu.RLock()
			token := e.token
			e.sessionMu.RUnlock()

			e.SendOutOfBand(e.server(), "connect token=%s&guid=%d", token, e.identity.GUID())
			e.lastConnect = e.clock.Now()
			e.connectAttempts++

			e.events.emitConnectionProgress("Connecting to server..."+attemptSuffix(e.connectAttempts), 1, 1)
		}

		if e.connectAttempts > maxConnectAttempts {
			e.timeOutLocked("Connection timed out.", "Failed to connect to server after 3 attempts.")
		}

	case StateActive:
		if e.clock.Now()-e.lastReceivedAt > activeTimeoutMs {
			e.timeOutLocked("Connection timed out.", "Server connection timed out after 15 seconds.")
		}
	}
}

func attemptSuffix(attempt int) string {
	if attempt > 1 {
		return fmt.Sprintf(" (attempt %d)", attempt)
	}
	return ""
}

func (e *Engine) timeOutLocked(reason, fatalMsg string) {
	e.disconnectReason = reason
	e.finalizeLocked()
	e.events.emitConnectionTimedOut(reason)
	e.fatal("%s", fatalMsg)
}

func (e *Engine) applyHandshakeLocked() {
	res, ok := e.handshake.Poll()
	if !ok {
		return
	}
	if e.State() != StateIniting {
		// Result of a handshake abandoned by a disconnect.
		return
	}

	if res.failure != "" {
		e.setState(StateIdle)
		e.events.emitConnectionError(res.failure)
		return
	}

	e.sessionMu.Lock()
	e.token = res.token
	e.serverProtocol = res.serverProtocol
	e.scripthookAllowed = res.hardened
	e.enhancedHostSupport = res.enhancedHostSupport
	server := e.currentServer
	e.sessionMu.Unlock()

	e.presence.SetConnectString(fmt.Sprintf("+connect %s", server))

	e.logger.Info().Uint32("server_protocol", res.serverProtocol).Msg("handshake complete")
	e.setState(StateInitReceived)
}

func (e *Engine) processPacketsLocked() {
	e.wire.Drain(func(data []byte, from transport.NetAddress) {
		e.metrics.OnIncomingPacket(PacketMetrics{
			Bytes:  len(data),
			InBand: len(data) < 4 || binary.LittleEndian.Uint32(data) != protocol.OOBPrefix,
		})

		if len(data) >= 4 && binary.LittleEndian.Uint32(data) == protocol.OOBPrefix {
			e.processOOB(from, string(data[4:]))
			return
		}

		if from != e.server() {
			e.logger.Trace().Stringer("from", from).Msg("in-band datagram from stranger")
			return
		}

		if msg := e.channel.Process(data); msg != nil {
			e.processServerMessageLocked(msg)
		}
	})
}

func (e *Engine) processOOB(from transport.NetAddress, text string) {
	if from != e.server() {
		e.logger.Trace().Stringer("from", from).Msg("oob from stranger")
		return
	}

	switch {
	case hasPrefixFold(text, "infoResponse "):
		e.handleInfoResponse(text[len("infoResponse "):])
	case hasPrefixFold(text, "connectOK "):
		e.handleConnectOK(text[len("connectOK "):])
	case hasPrefixFold(text, "error "):
		e.fatal("%s", text[len("error "):])
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func (e *Engine) handleInfoResponse(info string) {
	e.sessionMu.Lock()
	e.infoString = info
	e.sessionMu.Unlock()

	hostname := protocol.StripColors(protocol.InfoValueForKey(info, "hostname"))
	if len(hostname) > 64 {
		hostname = hostname[:64]
	}

	e.presence.SetTemplate("{0}\n\n{2} on {3} with {1}")
	e.presence.SetValue(0, hostname+"...")
	e.presence.SetValue(1, "Connecting...")
	e.presence.SetValue(2, protocol.InfoValueForKey(info, "gametype"))
	e.presence.SetValue(3, protocol.InfoValueForKey(info, "mapname"))

	world := protocol.InfoValueForKey(info, "world")
	if world == "" {
		world = "gta5"
	}

	e.sessionMu.Lock()
	lastWorld := e.lastWorld
	e.sessionMu.Unlock()

	if lastWorld != "" && lastWorld != world && e.gameLoaded.Load() {
		e.fatal("Was loaded in world %s, but this server is world %s. Restart the game to join.", lastWorld, world)
		return
	}

	e.sessionMu.Lock()
	e.lastWorld = world
	e.sessionMu.Unlock()

	e.setState(StateConnecting)
	e.lastConnect = 0
	e.connectAttempts = 0
}

func (e *Engine) handleConnectOK(args string) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		e.logger.Trace().Str("args", args).Msg("malformed connectOK")
		return
	}

	clientNetID, err1 := strconv.ParseUint(fields[0], 10, 16)
	hostNetID, err2 := strconv.ParseUint(fields[1], 10, 16)
	hostBase, err3 := strconv.ParseUint(fields[2], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		e.logger.Trace().Str("args", args).Msg("malformed connectOK")
		return
	}

	e.serverNetID.Store(uint32(clientNetID))
	e.hostNetID.Store(uint32(hostNetID))
	e.hostBase.Store(uint32(hostBase))

	e.reliable.ResetInbound()

	e.logger.Info().
		Uint64("net_id", clientNetID).
		Uint64("host_id", hostNetID).
		Msg("connect ok")

	e.events.emitConnectOKReceived(uint16(clientNetID), uint16(hostNetID), uint32(hostBase))

	e.channel.Reset(e.server(), engineConduit{e})
	e.setState(StateConnected)
	e.lastReceivedAt = e.clock.Now()
}

func (e *Engine) processServerMessageLocked(msg *protocol.NetBuffer) {
	e.lastReceivedAt = e.clock.Now()

	ack := msg.ReadUint32()
	if msg.Exhausted() {
		return
	}
	e.reliable.Ack(ack)

	if e.State() == StateConnected {
		e.setState(StateActive)
	}
	if e.State() != StateActive {
		return
	}

	for !msg.End() {
		msgType := msg.ReadUint32()
		if msg.Exhausted() {
			return
		}

		switch msgType {
		case protocol.MsgEnd:
			return

		case protocol.MsgRoute:
			netID := msg.ReadUint16()
			length := msg.ReadUint16()
			if msg.Exhausted() {
				return
			}
			payload := msg.ReadBytes(int(length))
			if payload == nil {
				return
			}
			e.routing.EnqueueIncoming(netID, payload)

		case protocol.MsgFrame:
			e.lastFrameNumber = msg.ReadUint32()
			if e.ServerProtocol() >= 3 {
				ping := msg.ReadInt32()
				if !msg.Exhausted() {
					e.metrics.OnPingResult(int64(ping))
				}
			}

		default:
			// Anything else is a reliable command keyed by type hash.
			id := msg.ReadUint32()
			var size uint32
			if id&protocol.LargeReliableFlag != 0 {
				size = msg.ReadUint32()
				id &^= protocol.LargeReliableFlag
			} else {
				size = uint32(msg.ReadUint16())
			}
			if msg.Exhausted() {
				return
			}

			// An id running far ahead of the window means a forged or
			// wildly reordered datagram; nothing in it is trustworthy.
			if e.reliable.Classify(id) == inboundDiscard {
				e.logger.Trace().Uint32("id", id).Msg("reliable id out of window")
				return
			}

			payload := msg.ReadBytes(int(size))
			if payload == nil {
				return
			}

			if e.reliable.Classify(id) == inboundFresh {
				e.reliable.Dispatch(msgType, payload)
				e.reliable.Commit(id)
			}
		}
	}
}

func (e *Engine) processSendLocked() {
	if e.clock.Now()-e.lastSend < sendIntervalMs {
		return
	}
	if e.State() != StateActive {
		return
	}

	e.sendFrameLocked()
}

func (e *Engine) sendFrameLocked() {
	buf := protocol.GetFrameBuffer()
	defer protocol.PutFrameBuffer(buf)

	buf.WriteUint32(e.reliable.LastReceivedID())

	if e.ServerProtocol() >= 2 {
		buf.WriteUint32(e.lastFrameNumber)
	}

	for {
		pkt, ok := e.routing.DequeueOutgoing()
		if !ok {
			break
		}
		protocol.EncodeRoute(buf, pkt.NetID, pkt.Payload)
	}

	e.reliable.EncodePending(buf)

	e.events.emitBuildMessage(buf)

	buf.WriteUint32(protocol.MsgEnd)

	if err := e.channel.Send(buf); err != nil {
		e.logger.Error().Err(err).Msg("frame send failed")
	}

	e.lastSend = e.clock.Now()
	e.metrics.OnOutgoingPacket(PacketMetrics{Bytes: buf.Len(), InBand: true})
}

// SendOutOfBand transmits one out-of-band ASCII command datagram.
func (e *Engine) SendOutOfBand(addr transport.NetAddress, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	if len(text)+4 >= protocol.OOBBufferSize {
		e.fatal("Out-of-band command text overflow.")
		return
	}

	buf := protocol.NewNetBuffer(4 + len(text))
	buf.WriteUint32(protocol.OOBPrefix)
	buf.WriteString(text)

	if err := e.wire.Send(addr, buf.Bytes()); err != nil {
		e.logger.Error().Err(err).Stringer("to", addr).Msg("oob send failed")
		return
	}

	e.metrics.OnOutgoingPacket(PacketMetrics{Bytes: buf.Len()})
}

// SendReliableCommand queues one reliable command for transmission on
// every outbound frame until acknowledged. Window overflow is a fatal
// session error.
func (e *Engine) SendReliableCommand(typeName string, payload []byte) {
	if err := e.reliable.Queue(typeName, payload); err != nil {
		e.fatal("Reliable client command overflow.")
	}
}

// AddReliableHandler registers a callback for inbound reliable
// commands of the named type.
func (e *Engine) AddReliableHandler(typeName string, fn func(payload []byte)) {
	e.reliable.AddHandler(typeName, fn)
}

// SendNetEvent sends a named application event with a raw JSON
// payload. target >= 0 addresses one player, -1 broadcasts, and -2
// directs the event at the server itself.
func (e *Engine) SendNetEvent(eventName string, payload []byte, target int) {
	cmdType := protocol.CommandNetEvent

	if target == -1 {
		target = 0xFFFF
	} else if target == -2 {
		cmdType = protocol.CommandServerEvent
	}

	buf := protocol.NewNetBuffer(2 + 2 + len(eventName) + 1 + len(payload))

	if target >= 0 {
		buf.WriteUint16(uint16(target))
	}

	buf.WriteUint16(uint16(len(eventName) + 1))
	buf.WriteString(eventName)
	buf.WriteUint8(0)

	buf.Write(payload)

	e.SendReliableCommand(cmdType, buf.Bytes())
}

// SendNetEventObject marshals value to JSON and sends it as a net
// event.
func (e *Engine) SendNetEventObject(eventName string, value interface{}, target int) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventName, err)
	}

	e.SendNetEvent(eventName, payload, target)
	return nil
}

// RoutePacket queues one game-to-server routed payload for the next
// outbound frame. The payload is copied.
func (e *Engine) RoutePacket(netID uint16, payload []byte) {
	e.routing.EnqueueOutgoing(netID, append([]byte(nil), payload...))
}

// WaitForRoutedPacket blocks the game thread until an inbound routed
// packet is available or the timeout elapses.
func (e *Engine) WaitForRoutedPacket(timeout time.Duration) bool {
	return e.routing.WaitForIncoming(timeout)
}

// DequeueRoutedPacket pops the oldest inbound routed packet, reporting
// its queue delay to the metric sink.
func (e *Engine) DequeueRoutedPacket() (RoutingPacket, bool) {
	pkt, delay, ok := e.routing.DequeueIncoming()
	if !ok {
		return RoutingPacket{}, false
	}

	e.metrics.OnRouteDelayResult(delay)
	return pkt, true
}

// Close releases the underlying transport.
func (e *Engine) Close() error {
	return e.wire.Close()
}
