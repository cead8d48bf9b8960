// Package dispatch sends a contact submission to every configured destination
// in parallel and reduces the per-destination results to one outcome.
//
// Every destination is attempted and every attempt is waited for; a failing
// destination never stops the others. Whether a failure matters is decided
// afterwards by a Policy looking at the full list of results.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logging"
)

// Role describes how a destination's result affects the submission.
type Role int

const (
	// RoleBestEffort destinations count as configured but their failures are
	// only logged.
	RoleBestEffort Role = iota
	// RoleRequired destinations fail the submission when they fail.
	RoleRequired
	// RoleAuxiliary destinations are side channels: they neither count as
	// configured nor fail the submission.
	RoleAuxiliary
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case RoleBestEffort:
		return "best_effort"
	case RoleRequired:
		return "required"
	case RoleAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// Destination is an external endpoint that receives a copy of a submission.
type Destination interface {
	Name() string
	Role() Role
	Send(ctx context.Context, rec form.Record) error
}

// Result is what one destination did with one submission.
type Result struct {
	Destination string        `json:"destination"`
	Role        Role          `json:"role"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
}

// OK reports whether the destination accepted the submission.
func (r Result) OK() bool {
	return r.Err == nil
}

// Outcome collects the results of one dispatch.
type Outcome struct {
	SubmissionID string
	Results      []Result
}

// Configured reports whether any destination that counts toward success was
// attempted.
func (o Outcome) Configured() bool {
	for _, r := range o.Results {
		if r.Role != RoleAuxiliary {
			return true
		}
	}
	return false
}

// Failed returns the results that carry an error.
func (o Outcome) Failed() []Result {
	var failed []Result
	for _, r := range o.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Policy turns an outcome into the submission's error, nil meaning success.
type Policy func(Outcome) error

// RequiredPolicy fails when nothing counting toward success was configured,
// or when a required destination failed. Best-effort and auxiliary failures
// are ignored.
func RequiredPolicy(o Outcome) error {
	if !o.Configured() {
		return errors.ErrNoDestination()
	}
	for _, r := range o.Results {
		if r.Role == RoleRequired && r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Dispatcher fans a record out to its destinations.
type Dispatcher struct {
	destinations []Destination
	policy       Policy
	logger       logging.Logger
	newID        func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy replaces RequiredPolicy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithIDGenerator replaces the submission id generator.
func WithIDGenerator(gen func() string) Option {
	return func(d *Dispatcher) { d.newID = gen }
}

// New creates a dispatcher. Destinations are kept in the given order, which
// is also the order results are reported in.
func New(logger logging.Logger, destinations []Destination, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	d := &Dispatcher{
		destinations: destinations,
		policy:       RequiredPolicy,
		logger:       logger.WithComponent("dispatch"),
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Destinations returns the names of the configured destinations.
func (d *Dispatcher) Destinations() []string {
	names := make([]string, len(d.destinations))
	for i, dest := range d.destinations {
		names[i] = dest.Name()
	}
	return names
}

// Dispatch sends rec to every destination concurrently, waits for all of
// them, and applies the policy.
func (d *Dispatcher) Dispatch(ctx context.Context, rec form.Record) (Outcome, error) {
	outcome := Outcome{SubmissionID: d.newID()}
	logger := d.logger.With("submission_id", outcome.SubmissionID)

	if len(d.destinations) > 0 {
		mapper := iter.Mapper[Destination, Result]{MaxGoroutines: len(d.destinations)}
		outcome.Results = mapper.Map(d.destinations, func(dest *Destination) Result {
			return d.send(ctx, logger, *dest, rec)
		})
	}

	err := d.policy(outcome)
	if err != nil {
		logger.Warn(ctx, err, "Submission failed",
			"attempted", len(outcome.Results),
			"failed", len(outcome.Failed()))
	} else {
		logger.Info(ctx, "Submission dispatched",
			"attempted", len(outcome.Results),
			"failed", len(outcome.Failed()))
	}

	return outcome, err
}

func (d *Dispatcher) send(ctx context.Context, logger logging.Logger, dest Destination, rec form.Record) (result Result) {
	start := time.Now()
	result = Result{Destination: dest.Name(), Role: dest.Role()}

	defer func() {
		if p := recover(); p != nil {
			result.Err = errors.NewInternalError(errors.ErrCodeInternalError,
				"destination panicked", fmt.Errorf("%v", p)).WithDestination(dest.Name())
		}
		result.Duration = time.Since(start)

		if result.Err == nil {
			logger.Debug(ctx, "Destination accepted submission",
				"destination", result.Destination,
				"duration_ms", result.Duration.Milliseconds())
			return
		}
		switch result.Role {
		case RoleRequired:
			logger.Warn(ctx, result.Err, "Required destination failed",
				"destination", result.Destination)
		default:
			logger.Warn(ctx, result.Err, "Destination failed, ignoring",
				"destination", result.Destination,
				"role", result.Role.String())
		}
	}()

	result.Err = dest.Send(ctx, rec)
	return result
}
