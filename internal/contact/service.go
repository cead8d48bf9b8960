// Package contact runs one contact form submission from raw input to the
// message the visitor sees.
package contact

import (
	"context"
	"time"

	"github.com/conneroisu/sitekit/internal/dispatch"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/presenter"
	"github.com/conneroisu/sitekit/internal/tracking"
)

// Dispatcher delivers a record to the configured destinations.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec form.Record) (dispatch.Outcome, error)
}

// Result is everything a caller needs to update the page after a submit.
type Result struct {
	Message      presenter.Message
	Record       *form.Record
	Outcome      *dispatch.Outcome
	ConversionID string
	// Err is the failure behind an error message, nil on success.
	Err error
	// Reset is true when the form should be emptied.
	Reset bool
}

// OK reports whether the submission was accepted.
func (r Result) OK() bool {
	return r.Message.Kind == presenter.KindSuccess
}

// Options configure a Service.
type Options struct {
	Policy         string
	Source         string
	SuccessMessage string
	ClearAfter     time.Duration
	PixelAccountID string
	Now            func() time.Time
}

// Service validates, builds, dispatches, tracks and presents.
type Service struct {
	validator  *form.Validator
	builder    *form.Builder
	dispatcher Dispatcher
	presenter  *presenter.Presenter
	accountID  string
	now        func() time.Time
	logger     logging.Logger
}

// NewService creates a contact service.
func NewService(d Dispatcher, opts Options, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		validator:  form.NewValidator(opts.Policy),
		builder:    form.NewBuilder(opts.Source, opts.Now),
		dispatcher: d,
		presenter:  presenter.New(opts.SuccessMessage, opts.ClearAfter, logger),
		accountID:  opts.PixelAccountID,
		now:        opts.Now,
		logger:     logger.WithComponent("contact"),
	}
}

// Validator returns the service's field validator.
func (s *Service) Validator() *form.Validator {
	return s.validator
}

// Submit handles one submission. Invalid input never reaches the network.
// A Lead event is sent to px only when the submission succeeds; px may be
// nil.
func (s *Service) Submit(ctx context.Context, fields form.Fields, px tracking.Pixel) Result {
	op := logging.StartOperation(s.logger, "contact_submit")

	if err := s.validator.Validate(fields); err != nil {
		op.End(ctx, "stage", "validate", "accepted", false)
		return Result{Message: s.presenter.Failure(ctx, err), Err: err}
	}

	rec := s.builder.Build(fields)
	outcome, err := s.dispatcher.Dispatch(ctx, rec)
	if err != nil {
		op.EndWithError(ctx, err, "stage", "dispatch", "submission_id", outcome.SubmissionID)
		return Result{
			Message: s.presenter.Failure(ctx, err),
			Record:  &rec,
			Outcome: &outcome,
			Err:     err,
		}
	}

	tracker := tracking.NewTracker(px, s.accountID, s.now, s.logger)
	conversionID := tracker.Lead(ctx)

	op.End(ctx, "accepted", true,
		"submission_id", outcome.SubmissionID,
		"destinations", len(outcome.Results))
	return Result{
		Message:      s.presenter.Success(),
		Record:       &rec,
		Outcome:      &outcome,
		ConversionID: conversionID,
		Reset:        true,
	}
}

// Reject reports err for a request refused before validation, such as a
// throttled or unreadable one. Nothing is dispatched.
func (s *Service) Reject(ctx context.Context, err error) Result {
	return Result{Message: s.presenter.Failure(ctx, err), Err: err}
}
