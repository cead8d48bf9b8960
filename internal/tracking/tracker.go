package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/sitekit/internal/logging"
)

// ConversionPrefix starts every lead conversion id.
const ConversionPrefix = "contact_form_submission_"

// Tracker issues the site's pixel events. With no account id or no pixel it
// does nothing.
type Tracker struct {
	pixel     Pixel
	accountID string
	now       func() time.Time
	logger    logging.Logger
}

// NewTracker creates a tracker. A nil clock uses time.Now.
func NewTracker(pixel Pixel, accountID string, now func() time.Time, logger logging.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Tracker{
		pixel:     pixel,
		accountID: accountID,
		now:       now,
		logger:    logger.WithComponent("tracking"),
	}
}

// Enabled reports whether events will reach a pixel.
func (t *Tracker) Enabled() bool {
	return t.pixel != nil && t.accountID != ""
}

// AccountID returns the pixel account id.
func (t *Tracker) AccountID() string {
	return t.accountID
}

// Init initializes the pixel for the account.
func (t *Tracker) Init(ctx context.Context) {
	if !t.Enabled() {
		return
	}
	opts := InitOptions{OptOut: false, UseDecimalCurrencyValues: true}
	if t.call(ctx, "init", func() { t.pixel.Init(t.accountID, opts) }) {
		t.logger.Debug(ctx, "Pixel initialized", "account_id", t.accountID)
	}
}

// PageVisit reports a page view.
func (t *Tracker) PageVisit(ctx context.Context) {
	if !t.Enabled() {
		return
	}
	if t.call(ctx, EventPageVisit, func() { t.pixel.Track(EventPageVisit, nil) }) {
		t.logger.Debug(ctx, "Pixel event", "event", EventPageVisit)
	}
}

// Lead reports a successful contact submission and returns its conversion
// id, or "" when tracking is disabled or the pixel failed.
func (t *Tracker) Lead(ctx context.Context) string {
	if !t.Enabled() {
		return ""
	}
	id := ConversionID(t.now())
	if !t.call(ctx, EventLead, func() { t.pixel.Track(EventLead, map[string]any{"conversionId": id}) }) {
		return ""
	}
	t.logger.Debug(ctx, "Pixel event", "event", EventLead, "conversion_id", id)
	return id
}

// call runs one pixel call. A panicking pixel is logged and reported as a
// failed call; it never reaches the caller.
func (t *Tracker) call(ctx context.Context, event string, f func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Warn(ctx, fmt.Errorf("pixel: %v", p), "Pixel call failed", "event", event)
			ok = false
		}
	}()
	f()
	return true
}

// ConversionID returns the lead conversion id for t.
func ConversionID(t time.Time) string {
	return fmt.Sprintf("%s%d", ConversionPrefix, t.UnixMilli())
}
