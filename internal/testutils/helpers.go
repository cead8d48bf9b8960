// Package testutils holds fakes shared by tests across packages.
package testutils

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Request is one request a Destination received.
type Request struct {
	Method      string
	ContentType string
	Header      http.Header
	Body        []byte
	// Form holds the fields of urlencoded and multipart bodies.
	Form url.Values
}

// Destination is a fake submission endpoint. It answers every request with
// the configured status and body and records what it was sent.
type Destination struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	body     string
	requests []Request
}

// NewDestination starts a destination answering status with a JSON body.
// It is closed when the test ends.
func NewDestination(t *testing.T, status int, body string) *Destination {
	t.Helper()
	d := &Destination{status: status, body: body}
	d.Server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.Close)
	return d
}

func (d *Destination) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	req := Request{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
		Header:      r.Header.Clone(),
		Body:        raw,
	}
	if mediaType, _, err := mime.ParseMediaType(req.ContentType); err == nil &&
		(mediaType == "multipart/form-data" || mediaType == "application/x-www-form-urlencoded") {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err := r.ParseMultipartForm(1 << 20); err == nil || err == http.ErrNotMultipart {
			req.Form = r.PostForm
		}
	}

	d.mu.Lock()
	d.requests = append(d.requests, req)
	status, body := d.status, d.body
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// Respond changes the answer for later requests.
func (d *Destination) Respond(status int, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status, d.body = status, body
}

// Calls returns how many requests arrived.
func (d *Destination) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

// Requests returns a copy of every request received so far.
func (d *Destination) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

// Last returns the most recent request. It fails the test when there was
// none.
func (d *Destination) Last(t *testing.T) Request {
	t.Helper()
	reqs := d.Requests()
	require.NotEmpty(t, reqs, "destination received no request")
	return reqs[len(reqs)-1]
}

// UnreachableURL returns the URL of a server that has already shut down.
func UnreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

// WriteFile writes content to dir/name, creating dir, and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
