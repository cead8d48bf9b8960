package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/form"
)

// WebhookName identifies the webhook destination in results and logs.
const WebhookName = "webhook"

// maxDrain bounds how much of a response body is read before closing.
const maxDrain = 64 << 10

// Webhook posts the record as JSON to a spreadsheet-style endpoint. The
// response is opaque: only a transport failure counts as an error, and even
// that does not fail the submission.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook destination. A nil client gets a default one.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Webhook{url: url, client: client}
}

// Name implements Destination.
func (w *Webhook) Name() string { return WebhookName }

// Role implements Destination.
func (w *Webhook) Role() Role { return RoleBestEffort }

// Send implements Destination.
func (w *Webhook) Send(ctx context.Context, rec form.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "encode webhook payload", err).
			WithDestination(WebhookName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.NewNetworkError(WebhookName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	opaque(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.NewNetworkError(WebhookName, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return nil
}
