package config

import (
	"encoding/hex"
	"fmt"
)

// Client is the YAML configuration of one game client session.
type Client struct {
	Server     Server `yaml:"server"`
	PlayerName string `yaml:"player_name"`

	// AuthTicket is the hex-encoded identity ticket, if any.
	AuthTicket string `yaml:"auth_ticket"`

	// ProtocolVersion overrides the protocol revision advertised to
	// the server. Zero selects the built-in default.
	ProtocolVersion uint32 `yaml:"protocol_version"`
}

// Server names the remote endpoint of a session. The same port serves
// both the HTTP handshake and the UDP channel.
type Server struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// Address formats the endpoint as host:port.
func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Client) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

// Validate checks the configuration for usability.
func (c *Client) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.AuthTicket != "" {
		if _, err := hex.DecodeString(c.AuthTicket); err != nil {
			return fmt.Errorf("auth_ticket must be hex encoded: %w", err)
		}
	}

	return nil
}

// DecodedAuthTicket returns the raw ticket bytes, or nil when no
// ticket is configured. Call Validate first.
func (c *Client) DecodedAuthTicket() []byte {
	if c.AuthTicket == "" {
		return nil
	}
	ticket, err := hex.DecodeString(c.AuthTicket)
	if err != nil {
		return nil
	}
	return ticket
}
