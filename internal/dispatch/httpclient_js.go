//go:build js

package dispatch

import (
	"net/http"
	"time"
)

// NewHTTPClient returns a client backed by the browser's fetch. The default
// transport must be kept: setting a dialer disables fetch under js/wasm.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// opaque switches fetch to no-cors mode. The response becomes unreadable
// and its status is always zero.
func opaque(req *http.Request) {
	req.Header.Set("js.fetch:mode", "no-cors")
}
