//go:build e2e

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitekit/internal/config"
)

// statusInViewport is true once the status region is fully on screen.
const statusInViewport = `(function(){var r=document.getElementById("formMessage").getBoundingClientRect();return r.top>=0&&r.bottom<=window.innerHeight})()`

// TestBrowserSubmitWithoutJavaScriptClient drives the plain HTML form in a
// headless browser: submit, follow the redirect, see the success message.
func TestBrowserSubmitWithoutJavaScriptClient(t *testing.T) {
	relay, hits := relayServer(t, http.StatusOK, `{"ok":true}`)
	s := newTestServer(t, func(cfg *config.Config) { cfg.Destinations.Relay.URL = relay.URL })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var status, hash string
	var visible bool
	err := chromedp.Run(ctx,
		// Short enough that the status region starts below the fold.
		chromedp.EmulateViewport(1024, 400),
		chromedp.Navigate(srv.URL),
		chromedp.WaitVisible("#contactForm", chromedp.ByQuery),
		chromedp.SendKeys("#contact-name", "Ada", chromedp.ByQuery),
		chromedp.SendKeys("#contact-email", "ada@example.com", chromedp.ByQuery),
		chromedp.SendKeys("#contact-message", "Hello from a browser", chromedp.ByQuery),
		chromedp.Click("#contact-submit", chromedp.ByQuery),
		chromedp.WaitVisible("#formMessage.success", chromedp.ByQuery),
		chromedp.Text("#formMessage", &status, chromedp.ByQuery),
		chromedp.Evaluate(`location.hash`, &hash),
		chromedp.Poll(statusInViewport, &visible, chromedp.WithPollingTimeout(5*time.Second)),
	)
	require.NoError(t, err)
	assert.True(t, visible)

	assert.Equal(t, config.DefaultSuccessMessage, status)
	assert.Equal(t, "#contact", hash)
	assert.Equal(t, int32(1), hits.Load())
}

func TestBrowserValidationKeepsInput(t *testing.T) {
	relay, hits := relayServer(t, http.StatusOK, `{}`)
	s := newTestServer(t, func(cfg *config.Config) { cfg.Destinations.Relay.URL = relay.URL })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var status, name string
	var visible bool
	err := chromedp.Run(ctx,
		// Short enough that the status region starts below the fold.
		chromedp.EmulateViewport(1024, 400),
		chromedp.Navigate(srv.URL),
		chromedp.WaitVisible("#contactForm", chromedp.ByQuery),
		// The browser's own required-field check would stop the submit.
		chromedp.Evaluate(`document.getElementById("contactForm").noValidate = true`, nil),
		chromedp.SendKeys("#contact-name", "Ada", chromedp.ByQuery),
		chromedp.SendKeys("#contact-email", "not-an-email", chromedp.ByQuery),
		chromedp.SendKeys("#contact-message", "Hi", chromedp.ByQuery),
		chromedp.Click("#contact-submit", chromedp.ByQuery),
		chromedp.WaitVisible("#formMessage.error", chromedp.ByQuery),
		chromedp.Text("#formMessage", &status, chromedp.ByQuery),
		chromedp.Value("#contact-name", &name, chromedp.ByQuery),
		chromedp.Poll(statusInViewport, &visible, chromedp.WithPollingTimeout(5*time.Second)),
	)
	require.NoError(t, err)
	assert.True(t, visible)

	assert.Equal(t, "Please enter a valid email address.", status)
	assert.Equal(t, "Ada", name)
	assert.Zero(t, hits.Load())
}
