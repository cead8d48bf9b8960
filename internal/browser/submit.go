package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conneroisu/sitekit/internal/contact"
	"github.com/conneroisu/sitekit/internal/dispatch"
	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/presenter"
	"github.com/conneroisu/sitekit/internal/tracking"
)

// SubmitResponse is the JSON answer to a submission posted to the site
// server. Errors use the same shape.
type SubmitResponse struct {
	Kind         presenter.Kind     `json:"kind"`
	Text         string             `json:"text"`
	ClearAfterMs int64              `json:"clear_after_ms,omitempty"`
	Reset        bool               `json:"reset"`
	SubmissionID string             `json:"submission_id,omitempty"`
	ConversionID string             `json:"conversion_id,omitempty"`
	Pixel        []tracking.Command `json:"pixel,omitempty"`
}

// Message returns the message to show in the status region.
func (r SubmitResponse) Message() presenter.Message {
	return presenter.Message{
		Kind:       r.Kind,
		Text:       r.Text,
		ClearAfter: time.Duration(r.ClearAfterMs) * time.Millisecond,
	}
}

// NewSubmitResponse converts a submit result and the pixel commands it
// produced.
func NewSubmitResponse(res contact.Result, pixel []tracking.Command) SubmitResponse {
	resp := SubmitResponse{
		Kind:         res.Message.Kind,
		Text:         res.Message.Text,
		ClearAfterMs: res.Message.ClearAfterMillis(),
		Reset:        res.Reset,
		ConversionID: res.ConversionID,
		Pixel:        pixel,
	}
	if res.Outcome != nil {
		resp.SubmissionID = res.Outcome.SubmissionID
	}
	return resp
}

// Submitter sends the contact form either to the site server or, in browser
// dispatch mode, straight to the destinations.
type Submitter struct {
	cfg       ClientConfig
	client    *http.Client
	validator *form.Validator
	presenter *presenter.Presenter
	service   *contact.Service
	logger    logging.Logger
}

// NewSubmitter creates a submitter for cfg. A nil client uses one with the
// configured timeout.
func NewSubmitter(cfg ClientConfig, client *http.Client, logger logging.Logger) *Submitter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if client == nil {
		client = dispatch.NewHTTPClient(cfg.Timeout())
	}

	s := &Submitter{
		cfg:       cfg,
		client:    client,
		validator: form.NewValidator(cfg.Policy),
		presenter: presenter.New(cfg.SuccessMessage, cfg.ClearAfter(), logger),
		logger:    logger.WithComponent("submitter"),
	}

	if cfg.Dispatch == DispatchBrowser {
		endpoints := dispatch.Endpoints{
			WebhookURL:     cfg.WebhookURL,
			WebhookTimeout: cfg.Timeout(),
			RelayURL:       cfg.RelayURL,
			RelayTimeout:   cfg.Timeout(),
		}
		s.service = contact.NewService(dispatch.New(logger, endpoints.Destinations()), contact.Options{
			Policy:         cfg.Policy,
			Source:         cfg.Source,
			SuccessMessage: cfg.SuccessMessage,
			ClearAfter:     cfg.ClearAfter(),
			PixelAccountID: cfg.PixelAccountID,
		}, logger)
	}
	return s
}

// Submit validates fields and sends them. It always returns a response to
// show; transport failures become the generic connection message.
func (s *Submitter) Submit(ctx context.Context, fields form.Fields) SubmitResponse {
	if s.service != nil {
		px := tracking.NewRecorder()
		return NewSubmitResponse(s.service.Submit(ctx, fields, px), px.Commands())
	}

	if err := s.validator.Validate(fields); err != nil {
		return s.failure(ctx, err)
	}

	resp, err := s.post(ctx, fields)
	if err != nil {
		return s.failure(ctx, errors.NewNetworkError("site", err))
	}
	return resp
}

func (s *Submitter) post(ctx context.Context, fields form.Fields) (SubmitResponse, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return SubmitResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SubmitURL, bytes.NewReader(body))
	if err != nil {
		return SubmitResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return SubmitResponse{}, err
	}
	defer res.Body.Close()

	var out SubmitResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&out); err != nil {
		return SubmitResponse{}, fmt.Errorf("status %d: %w", res.StatusCode, err)
	}
	if out.Kind == "" || out.Text == "" {
		return SubmitResponse{}, fmt.Errorf("status %d: empty response", res.StatusCode)
	}
	return out, nil
}

func (s *Submitter) failure(ctx context.Context, err error) SubmitResponse {
	m := s.presenter.Failure(ctx, err)
	return SubmitResponse{Kind: m.Kind, Text: m.Text, ClearAfterMs: m.ClearAfterMillis()}
}
