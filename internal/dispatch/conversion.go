package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logging"
)

// ConversionName identifies the ads conversion API destination.
const ConversionName = "conversion_api"

// ConversionEvent is one server-side conversion.
type ConversionEvent struct {
	EventAt      int64     `json:"event_at"`
	ActionSource string    `json:"action_source"`
	Type         EventType `json:"type"`
}

// EventType names a custom conversion.
type EventType struct {
	TrackingType    string `json:"tracking_type"`
	CustomEventName string `json:"custom_event_name"`
}

type conversionPayload struct {
	Data struct {
		Events []ConversionEvent `json:"events"`
	} `json:"data"`
}

// ConversionAPI reports the submission to an ads platform's conversion
// endpoint with a bearer token. It is a side channel and never affects the
// submission's outcome.
type ConversionAPI struct {
	endpoint  string
	token     string
	eventName string
	client    *http.Client
	now       func() time.Time
}

// NewConversionAPI creates the destination. A nil client gets a default one.
func NewConversionAPI(endpoint, token, eventName string, client *http.Client) *ConversionAPI {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &ConversionAPI{
		endpoint:  endpoint,
		token:     token,
		eventName: eventName,
		client:    client,
		now:       time.Now,
	}
}

// Name implements Destination.
func (c *ConversionAPI) Name() string { return ConversionName }

// Role implements Destination.
func (c *ConversionAPI) Role() Role { return RoleAuxiliary }

// Event builds the event for a conversion at t.
func (c *ConversionAPI) Event(t time.Time) ConversionEvent {
	return ConversionEvent{
		EventAt:      t.UnixMilli(),
		ActionSource: "website",
		Type: EventType{
			TrackingType:    "CUSTOM",
			CustomEventName: c.eventName,
		},
	}
}

// Send implements Destination. The record's contents are not forwarded.
func (c *ConversionAPI) Send(ctx context.Context, _ form.Record) error {
	var payload conversionPayload
	payload.Data.Events = []ConversionEvent{c.Event(c.now())}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "encode conversion event", err).
			WithDestination(ConversionName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.NewNetworkError(ConversionName, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewNetworkError(ConversionName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxDrain))
		// The body is echoed into logs only.
		return errors.NewDestinationError(errors.ErrCodeConversionRejected, ConversionName,
			fmt.Sprintf("conversion api: %d - %s", resp.StatusCode, logging.SanitizeForLog(string(bytes.TrimSpace(text)))))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return nil
}
