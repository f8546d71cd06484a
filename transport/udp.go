package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// readBufferSize covers the largest datagram the engine will ever see
// (composite frames are well under this, OOB text is capped at 32 KiB).
const readBufferSize = 65536

var ErrNoSocket = errors.New("no socket for address family")

// Transport owns one non-blocking UDP socket per address family, both
// bound to OS-chosen ephemeral ports. The IPv6 socket is optional; hosts
// without IPv6 connectivity simply never drain that family.
type Transport struct {
	conn4 *net.UDPConn
	conn6 *net.UDPConn

	readBuf [readBufferSize]byte
	logger  zerolog.Logger
}

// NewTransport binds the IPv4 socket and, when the host allows it, the
// IPv6 socket. IPv4 bind failure is fatal; IPv6 failure is logged and
// tolerated.
func NewTransport(logger zerolog.Logger) (*Transport, error) {
	t := &Transport{
		logger: logger.With().Str("component", "transport").Logger(),
	}

	conn4, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("bind ipv4 socket: %w", err)
	}
	t.conn4 = conn4

	conn6, err := net.ListenUDP("udp6", &net.UDPAddr{})
	if err != nil {
		t.logger.Warn().Err(err).Msg("ipv6 socket unavailable")
	} else {
		t.conn6 = conn6
	}

	return t, nil
}

func (t *Transport) conn(f Family) *net.UDPConn {
	switch f {
	case FamilyIPv4:
		return t.conn4
	case FamilyIPv6:
		return t.conn6
	default:
		return nil
	}
}

// Send transmits one datagram to addr over the socket matching its
// family.
func (t *Transport) Send(addr NetAddress, data []byte) error {
	conn := t.conn(addr.Family())
	if conn == nil {
		return fmt.Errorf("send to %s: %w", addr, ErrNoSocket)
	}

	if _, err := conn.WriteToUDP(data, addr.UDPAddr()); err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}

	return nil
}

// Drain reads every immediately-available datagram from both sockets and
// invokes fn for each. The data slice is only valid for the duration of
// the callback. A would-block condition ends the loop for that family;
// any other receive error is logged and also ends it.
func (t *Transport) Drain(fn func(data []byte, from NetAddress)) {
	t.drainConn(t.conn4, fn)
	if t.conn6 != nil {
		t.drainConn(t.conn6, fn)
	}
}

func (t *Transport) drainConn(conn *net.UDPConn, fn func(data []byte, from NetAddress)) {
	if conn == nil {
		return
	}

	for {
		// A deadline a millisecond out turns the blocking read into a
		// poll. An already-expired deadline would fail the read before
		// it looks at the socket, even with datagrams queued.
		if err := conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			t.logger.Error().Err(err).Msg("set read deadline")
			return
		}

		n, from, err := conn.ReadFromUDP(t.readBuf[:])
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return
			}
			t.logger.Error().Err(err).Msg("recv failed")
			return
		}

		fn(t.readBuf[:n], NetAddressFromUDP(from))
	}
}

// LocalPort returns the ephemeral port bound for the given family, or 0.
func (t *Transport) LocalPort(f Family) uint16 {
	conn := t.conn(f)
	if conn == nil {
		return 0
	}
	return uint16(conn.LocalAddr().(*net.UDPAddr).Port)
}

// Close releases both sockets.
func (t *Transport) Close() error {
	var errs []error
	if t.conn4 != nil {
		errs = append(errs, t.conn4.Close())
	}
	if t.conn6 != nil {
		errs = append(errs, t.conn6.Close())
	}
	return errors.Join(errs...)
}
