package client

import (
	"os"

	"github.com/google/uuid"
)

// tempGUIDBase is the prefix of session-scoped player identifiers. The
// low 32 bits carry a random value, making collisions between two
// clients on one server unlikely for the lifetime of a session.
const tempGUIDBase uint64 = 0x0210000100000000

// IdentityProvider supplies the player identity the handshake presents
// to the server.
type IdentityProvider interface {
	// PlayerName returns the display name sent during the handshake.
	PlayerName() string
	// GUID returns the player identifier for this session.
	GUID() uint64
	// AuthTicket returns the opaque ticket proving identity ownership,
	// or nil when the session is unauthenticated.
	AuthTicket() []byte
}

// DefaultIdentity resolves the player name from configuration, the
// USERNAME environment variable, or the hostname, and mints a random
// temporary GUID per identity.
type DefaultIdentity struct {
	name   string
	guid   uint64
	ticket []byte
}

// NewDefaultIdentity builds an identity. name and ticket may be empty.
func NewDefaultIdentity(name string, ticket []byte) *DefaultIdentity {
	return &DefaultIdentity{
		name:   name,
		guid:   tempGUIDBase | uint64(uuid.New().ID()),
		ticket: ticket,
	}
}

func (d *DefaultIdentity) PlayerName() string {
	if d.name != "" {
		return d.name
	}
	if env := os.Getenv("USERNAME"); env != "" {
		return env
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "UnknownPlayer"
}

func (d *DefaultIdentity) GUID() uint64 {
	return d.guid
}

func (d *DefaultIdentity) AuthTicket() []byte {
	return d.ticket
}
