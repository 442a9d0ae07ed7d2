package telegram

import (
	"net"
	"net/http"
	"time"

	"teobot/core/telegram/netutil"
)

// BuildHTTPClient returns the http.Client the bot uses against
// api.telegram.org. Long-poll requests hold the connection open for the poll
// timeout, so the client-wide deadline must stay well above it and no
// response-header timeout is set.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{
		Timeout: 75 * time.Second,
		Transport: &redialTransport{
			next:    base,
			redials: 2,
			wait:    time.Second,
		},
	}
}

// redialTransport repeats requests that failed before any response arrived.
// Only failures netutil.ShouldRetry accepts are repeated, and only when the
// request body can be replayed.
type redialTransport struct {
	next    http.RoundTripper
	redials int
	wait    time.Duration
}

func (t *redialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.next
	if rt == nil {
		rt = http.DefaultTransport
	}

	resp, err := rt.RoundTrip(req)
	for extra := 0; err != nil && extra < t.redials; extra++ {
		if !netutil.ShouldRetry(err) {
			break
		}
		replay, ok := replayable(req)
		if !ok {
			break
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.wait << extra):
		}
		resp, err = rt.RoundTrip(replay)
	}
	return resp, err
}

// replayable clones req with a fresh body. Bot API calls are form posts with
// GetBody set; anything streaming cannot be repeated safely.
func replayable(req *http.Request) (*http.Request, bool) {
	clone := req.Clone(req.Context())
	if req.Body == nil {
		return clone, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	clone.Body = body
	return clone, true
}
