package routing

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Callback receives the outcome of an asynchronous GET: the response body
// on success XOR the failure. Exactly one invocation per request.
type Callback func(body []byte, err error)

// Transport issues a request and delivers its result through a callback
// on a separate goroutine.
type Transport interface {
	Get(ctx context.Context, url string, cb Callback)
}

// httpTransport runs each request on its own goroutine with a plain
// http.Client. The client's timeout bounds how long an abandoned request
// can keep its goroutine alive.
type httpTransport struct {
	client *http.Client
}

func NewTransport(client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{client: client}
}

func (t *httpTransport) Get(ctx context.Context, url string, cb Callback) {
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			cb(nil, fmt.Errorf("build request: %w", err))
			return
		}
		req.Header.Set("Accept", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			cb(nil, err)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
			cb(nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b)))
			return
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			cb(nil, fmt.Errorf("read body: %w", err))
			return
		}
		cb(body, nil)
	}()
}
