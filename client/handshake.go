package client

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/vicegrid/gridnet/transport"
)

// HTTPClient is the slice of http.Client the handshake needs. Tests
// substitute a stub; production passes *http.Client.
type HTTPClient interface {
	PostForm(url string, data url.Values) (*http.Response, error)
}

// initConnectResponse is the YAML document the server returns from the
// initConnect request.
type initConnectResponse struct {
	Error               string `yaml:"error"`
	Token               string `yaml:"token"`
	Protocol            uint32 `yaml:"protocol"`
	Hardened            *bool  `yaml:"sH"`
	EnhancedHostSupport bool   `yaml:"enhancedHostSupport"`
}

// handshakeResult is the outcome of one initConnect exchange, posted
// from the request goroutine back to the tick loop.
type handshakeResult struct {
	// failure is a user-facing error message; empty on success.
	failure string

	token               string
	serverProtocol      uint32
	hardened            bool
	enhancedHostSupport bool
}

// handshaker performs the HTTP side of connection setup. Begin fires
// the request on its own goroutine; the engine polls Poll under the
// frame lock so completion is applied on the tick.
type handshaker struct {
	http    HTTPClient
	results chan handshakeResult
	logger  zerolog.Logger
}

func newHandshaker(httpClient HTTPClient, logger zerolog.Logger) *handshaker {
	return &handshaker{
		http:    httpClient,
		results: make(chan handshakeResult, 1),
		logger:  logger.With().Str("component", "handshake").Logger(),
	}
}

// Begin starts the initConnect POST toward server. The result arrives
// via Poll. Begin neither waits for nor cancels an earlier request; the
// result slot holds one outcome at a time.
func (h *handshaker) Begin(server transport.NetAddress, identity IdentityProvider, protocolVersion uint32) {
	form := url.Values{}
	form.Set("method", "initConnect")
	form.Set("name", identity.PlayerName())
	form.Set("protocol", strconv.FormatUint(uint64(protocolVersion), 10))
	form.Set("guid", strconv.FormatUint(identity.GUID(), 10))

	if ticket := identity.AuthTicket(); len(ticket) > 0 {
		form.Set("authTicket", strings.ToUpper(fmt.Sprintf("%x", ticket)))
	}

	endpoint := fmt.Sprintf("http://%s/client", server)

	go func() {
		h.results <- h.exchange(endpoint, form)
	}()
}

func (h *handshaker) exchange(endpoint string, form url.Values) handshakeResult {
	resp, err := h.http.PostForm(endpoint, form)
	if err != nil {
		h.logger.Error().Err(err).Msg("initConnect request failed")
		return handshakeResult{failure: fmt.Sprintf("Failed to connect to server: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return handshakeResult{failure: fmt.Sprintf("Failed to read server response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return handshakeResult{failure: fmt.Sprintf("Server returned HTTP %d.", resp.StatusCode)}
	}

	var node initConnectResponse
	if err := yaml.Unmarshal(body, &node); err != nil {
		h.logger.Error().Err(err).Msg("initConnect response unparsable")
		return handshakeResult{failure: "Failed to parse server response."}
	}

	if node.Error != "" {
		return handshakeResult{failure: node.Error}
	}

	if node.Hardened == nil {
		return handshakeResult{failure: "Legacy servers are incompatible with this client."}
	}

	if node.Token == "" {
		return handshakeResult{failure: "Server did not issue a connection token."}
	}

	return handshakeResult{
		token:               node.Token,
		serverProtocol:      node.Protocol,
		hardened:            *node.Hardened,
		enhancedHostSupport: node.EnhancedHostSupport,
	}
}

// Poll returns the completed handshake result, if any, without
// blocking.
func (h *handshaker) Poll() (handshakeResult, bool) {
	select {
	case res := <-h.results:
		return res, true
	default:
		return handshakeResult{}, false
	}
}

// Drain discards any stale result from an abandoned handshake.
func (h *handshaker) Drain() {
	select {
	case <-h.results:
	default:
	}
}
