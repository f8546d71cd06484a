package client

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

// TestMain ensures no goroutine leaks across all tests in this package
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestEngine_CloseAfterConnect_NoLeak verifies that tearing an engine
// down mid-session leaves no handshake or wire goroutines behind.
func TestEngine_CloseAfterConnect_NoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	for i := 0; i < 10; i++ {
		f := newTestEngine(t, func(url.Values) (*http.Response, error) {
			return yamlResponse(http.StatusOK, defaultHandshakeYAML)
		})
		f.connect(t)
		f.FinalizeDisconnect()
		f.Close()
	}

	// Allow goroutines to fully terminate
	time.Sleep(50 * time.Millisecond)
}

// TestHandshaker_AbandonedResult_NoLeak verifies the request goroutine
// exits even when nobody polls the result.
func TestHandshaker_AbandonedResult_NoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	for i := 0; i < 20; i++ {
		stub := &stubHTTP{respond: func(url.Values) (*http.Response, error) {
			return yamlResponse(http.StatusOK, defaultHandshakeYAML)
		}}
		h := newHandshaker(stub, zerolog.Nop())
		h.Begin(serverAddr(), staticIdentity{name: "t", guid: 1}, 4)
		awaitResultStaged(t, h)
		h.Drain()
	}
}
