// Package presenter turns submission outcomes into the status messages shown
// next to the contact form, and keeps each visitor's current message.
package presenter

import (
	"context"
	"time"

	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/logging"
)

// Kind is the visual style of a message.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Message is what the status region shows. A zero ClearAfter keeps the
// message until it is replaced.
type Message struct {
	Kind       Kind          `json:"kind"`
	Text       string        `json:"text"`
	ClearAfter time.Duration `json:"-"`
}

// ClearAfterMillis is ClearAfter in milliseconds, for browsers.
func (m Message) ClearAfterMillis() int64 {
	return m.ClearAfter.Milliseconds()
}

// IsZero reports whether m is the empty message.
func (m Message) IsZero() bool {
	return m.Kind == "" && m.Text == ""
}

// Presenter builds success and failure messages.
type Presenter struct {
	successText string
	clearAfter  time.Duration
	errs        *errors.ErrorHandler
}

// New creates a presenter. Failures are logged through logger before being
// turned into visitor text.
func New(successText string, clearAfter time.Duration, logger logging.Logger) *Presenter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Presenter{
		successText: successText,
		clearAfter:  clearAfter,
		errs:        errors.NewErrorHandler(logger.WithComponent("presenter")),
	}
}

// Success returns the message for an accepted submission.
func (p *Presenter) Success() Message {
	return Message{Kind: KindSuccess, Text: p.successText, ClearAfter: p.clearAfter}
}

// Failure returns the message for err. Transport failures get a generic
// text; validation and relay errors are shown as they are.
func (p *Presenter) Failure(ctx context.Context, err error) Message {
	return Message{Kind: KindError, Text: p.errs.Handle(ctx, err)}
}
