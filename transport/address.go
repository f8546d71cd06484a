package transport

import (
	"fmt"
	"net"
	"net/netip"
)

// Family is the address family of a NetAddress.
type Family int

const (
	FamilyNone Family = iota
	FamilyIPv4
	FamilyIPv6
)

// String returns a string representation of the address family.
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "none"
	}
}

// NetAddress identifies a remote UDP peer. It is immutable and
// comparable with ==; the zero value is the invalid "no peer" address.
// IPv4-mapped IPv6 addresses are unmapped on construction so that the
// same peer compares equal regardless of which socket family delivered
// the datagram.
type NetAddress struct {
	ap netip.AddrPort
}

// NetAddressFrom builds a NetAddress from a parsed address and port.
func NetAddressFrom(addr netip.Addr, port uint16) NetAddress {
	return NetAddress{ap: netip.AddrPortFrom(addr.Unmap(), port)}
}

// NetAddressFromUDP converts a socket-level UDP address.
func NetAddressFromUDP(addr *net.UDPAddr) NetAddress {
	if addr == nil {
		return NetAddress{}
	}
	ap := addr.AddrPort()
	return NetAddress{ap: netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())}
}

// ResolveNetAddress looks up a hostname or literal address and returns
// the first resolved UDP endpoint.
func ResolveNetAddress(host string, port uint16) (NetAddress, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return NetAddressFrom(addr, port), nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return NetAddress{}, fmt.Errorf("resolve %s: %w", host, err)
	}

	return NetAddressFromUDP(udpAddr), nil
}

// IsValid reports whether the address names a peer.
func (a NetAddress) IsValid() bool {
	return a.ap.IsValid()
}

// Family returns the address family.
func (a NetAddress) Family() Family {
	switch {
	case !a.ap.IsValid():
		return FamilyNone
	case a.ap.Addr().Is4():
		return FamilyIPv4
	default:
		return FamilyIPv6
	}
}

// Addr returns the IP portion of the address.
func (a NetAddress) Addr() netip.Addr {
	return a.ap.Addr()
}

// Port returns the UDP port.
func (a NetAddress) Port() uint16 {
	return a.ap.Port()
}

// UDPAddr converts back to a socket-level address for sendto.
func (a NetAddress) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(a.ap)
}

// String formats the address as host:port.
func (a NetAddress) String() string {
	if !a.ap.IsValid() {
		return "<none>"
	}
	return a.ap.String()
}
