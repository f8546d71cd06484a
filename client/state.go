package client

// ConnectionState is the connection lifecycle phase of the engine.
type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateIniting
	StateInitReceived
	StateDownloading
	StateDownloadComplete
	StateFetching
	StateConnecting
	StateConnected
	StateActive
)

// String returns a string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIniting:
		return "initing"
	case StateInitReceived:
		return "init-received"
	case StateDownloading:
		return "downloading"
	case StateDownloadComplete:
		return "download-complete"
	case StateFetching:
		return "fetching"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Established reports whether the state carries live in-channel traffic.
func (s ConnectionState) Established() bool {
	return s == StateConnected || s == StateActive
}
