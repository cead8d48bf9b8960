package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/form"
)

// RelayName identifies the form relay destination in results and logs.
const RelayName = "relay"

// MsgRelayFailed is used when the relay rejects a submission without saying
// why.
const MsgRelayFailed = "Form submission failed. Please try again."

const maxRelayBody = 1 << 20

// Relay posts the record as a multipart form to a hosted form service and
// reads its JSON verdict. Its failures fail the submission.
type Relay struct {
	url    string
	client *http.Client
}

// NewRelay creates a relay destination. A nil client gets a default one.
func NewRelay(url string, client *http.Client) *Relay {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Relay{url: url, client: client}
}

// Name implements Destination.
func (r *Relay) Name() string { return RelayName }

// Role implements Destination.
func (r *Relay) Role() Role { return RoleRequired }

type relayResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Errors []struct {
		Field   string `json:"field"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send implements Destination.
func (r *Relay) Send(ctx context.Context, rec form.Record) error {
	body, contentType, err := relayBody(rec)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "encode relay payload", err).
			WithDestination(RelayName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return errors.NewNetworkError(RelayName, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.NewNetworkError(RelayName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
	if err != nil {
		return errors.NewNetworkError(RelayName, err)
	}

	var verdict relayResponse
	decoded := json.Unmarshal(data, &verdict) == nil

	if decoded {
		if msg := verdict.message(); msg != "" {
			return errors.NewDestinationError(errors.ErrCodeRelayRejected, RelayName, msg).
				WithContext("status", resp.StatusCode)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewDestinationError(errors.ErrCodeRelayRejected, RelayName, MsgRelayFailed).
			WithContext("status", resp.StatusCode)
	}

	return nil
}

// message returns the relay's error text, or its field errors joined with
// ", ".
func (v relayResponse) message() string {
	if v.Error != "" {
		return v.Error
	}
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		if e.Message != "" {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, ", ")
}

// relayBody encodes name, email, phone (only when present) and message.
// Timestamp and source are not sent to the relay.
func relayBody(rec form.Record) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{{"name", rec.Name}, {"email", rec.Email}}
	if rec.Phone != "" {
		fields = append(fields, [2]string{"phone", rec.Phone})
	}
	fields = append(fields, [2]string{"message", rec.Message})

	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}
