package contact

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitekit/internal/dispatch"
	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/presenter"
	"github.com/conneroisu/sitekit/internal/tracking"
)

var fixedNow = time.Date(2025, 2, 3, 4, 5, 6, 789000000, time.UTC)

func options() Options {
	return Options{
		Policy:         form.PolicyMessage,
		SuccessMessage: "Thanks!",
		ClearAfter:     5 * time.Second,
		PixelAccountID: "a2_example",
		Now:            func() time.Time { return fixedNow },
	}
}

func validFields() form.Fields {
	return form.Fields{Name: "Ada", Email: "ada@example.com", Message: "Hello"}
}

// countingServer answers every request with status and body and counts hits.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestSubmitInvalidInputMakesNoRequests(t *testing.T) {
	relay, relayHits := countingServer(t, http.StatusOK, `{}`)
	webhook, webhookHits := countingServer(t, http.StatusOK, `{}`)
	d := dispatch.New(nil, dispatch.Endpoints{WebhookURL: webhook.URL, RelayURL: relay.URL}.Destinations())
	svc := NewService(d, options(), nil)

	tests := []struct {
		name   string
		fields form.Fields
		want   string
	}{
		{name: "missing message", fields: form.Fields{Name: "Ada", Email: "ada@example.com"}, want: form.MsgRequiredFields},
		{name: "blank name", fields: form.Fields{Name: "   ", Email: "ada@example.com", Message: "Hi"}, want: form.MsgRequiredFields},
		{name: "bad email", fields: form.Fields{Name: "Ada", Email: "ada@example", Message: "Hi"}, want: form.MsgInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tracking.NewRecorder()
			res := svc.Submit(context.Background(), tt.fields, rec)

			assert.Equal(t, presenter.KindError, res.Message.Kind)
			assert.Equal(t, tt.want, res.Message.Text)
			assert.False(t, res.Reset)
			assert.Nil(t, res.Outcome)
			assert.Empty(t, rec.Commands())
		})
	}

	assert.Zero(t, relayHits.Load())
	assert.Zero(t, webhookHits.Load())
}

func TestSubmitRelaySuccess(t *testing.T) {
	relay, hits := countingServer(t, http.StatusOK, `{}`)
	d := dispatch.New(nil, dispatch.Endpoints{RelayURL: relay.URL}.Destinations())
	svc := NewService(d, options(), nil)

	rec := tracking.NewRecorder()
	res := svc.Submit(context.Background(), validFields(), rec)

	require.True(t, res.OK())
	assert.Equal(t, "Thanks!", res.Message.Text)
	assert.Equal(t, 5*time.Second, res.Message.ClearAfter)
	assert.True(t, res.Reset)
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, "contact_form_submission_1738555506789", res.ConversionID)

	cmds := rec.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []any{tracking.EventLead, map[string]any{"conversionId": res.ConversionID}}, cmds[0].Args)

	require.NotNil(t, res.Record)
	assert.Equal(t, "2025-02-03T04:05:06.789Z", res.Record.Timestamp)
	assert.Equal(t, form.DefaultSource, res.Record.Source)
}

// throwingPixel panics on every call, like a pixel script that throws.
type throwingPixel struct{}

func (throwingPixel) Init(string, tracking.InitOptions) { panic("pixel blocked") }
func (throwingPixel) Track(string, map[string]any)      { panic("pixel blocked") }

func TestSubmitSucceedsWhenPixelFails(t *testing.T) {
	relay, hits := countingServer(t, http.StatusOK, `{}`)
	d := dispatch.New(nil, dispatch.Endpoints{RelayURL: relay.URL}.Destinations())
	svc := NewService(d, options(), nil)

	var res Result
	require.NotPanics(t, func() {
		res = svc.Submit(context.Background(), validFields(), throwingPixel{})
	})

	assert.True(t, res.OK())
	assert.True(t, res.Reset)
	assert.Empty(t, res.ConversionID)
	assert.EqualValues(t, 1, hits.Load())
}

func TestSubmitLogsDispatchFailure(t *testing.T) {
	relay, _ := countingServer(t, http.StatusUnprocessableEntity, `{"error":"Invalid email"}`)
	d := dispatch.New(nil, dispatch.Endpoints{RelayURL: relay.URL}.Destinations())

	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelError, Format: "json", Output: &buf})
	svc := NewService(d, options(), logger)

	res := svc.Submit(context.Background(), validFields(), nil)
	require.False(t, res.OK())

	out := buf.String()
	assert.Contains(t, out, `"msg":"Operation failed"`)
	assert.Contains(t, out, `"operation":"contact_submit"`)
	assert.Contains(t, out, `"stage":"dispatch"`)
}

func TestSubmitRelayRejects(t *testing.T) {
	relay, _ := countingServer(t, http.StatusUnprocessableEntity, `{"error":"Invalid email"}`)
	d := dispatch.New(nil, dispatch.Endpoints{RelayURL: relay.URL}.Destinations())
	svc := NewService(d, options(), nil)

	rec := tracking.NewRecorder()
	res := svc.Submit(context.Background(), validFields(), rec)

	assert.False(t, res.OK())
	assert.Equal(t, "Invalid email", res.Message.Text)
	assert.False(t, res.Reset)
	assert.Empty(t, rec.Commands())
}

func TestSubmitWebhookOnlyFailureIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	d := dispatch.New(nil, dispatch.Endpoints{WebhookURL: url}.Destinations())
	res := NewService(d, options(), nil).Submit(context.Background(), validFields(), nil)

	assert.True(t, res.OK())
	require.NotNil(t, res.Outcome)
	assert.Len(t, res.Outcome.Failed(), 1)
	assert.Empty(t, res.ConversionID)
}

func TestSubmitNoDestinations(t *testing.T) {
	res := NewService(dispatch.New(nil, nil), options(), nil).
		Submit(context.Background(), validFields(), tracking.NewRecorder())

	assert.Equal(t, presenter.KindError, res.Message.Kind)
	assert.Equal(t, errors.ErrNoDestination().Message, res.Message.Text)
}

func TestSubmitPhonePolicy(t *testing.T) {
	relay, _ := countingServer(t, http.StatusOK, `{}`)
	d := dispatch.New(nil, dispatch.Endpoints{RelayURL: relay.URL}.Destinations())
	opts := options()
	opts.Policy = form.PolicyPhone
	svc := NewService(d, opts, nil)

	res := svc.Submit(context.Background(), validFields(), nil)
	assert.Equal(t, form.MsgRequiredFields, res.Message.Text)

	fields := validFields()
	fields.Message = ""
	fields.Phone = "555-0100"
	res = svc.Submit(context.Background(), fields, nil)
	assert.True(t, res.OK())
	assert.Equal(t, form.PolicyPhone, svc.Validator().Policy())
}

func TestReject(t *testing.T) {
	relay, hits := countingServer(t, http.StatusOK, `{}`)
	d := dispatch.New(nil, dispatch.Endpoints{RelayURL: relay.URL}.Destinations())
	svc := NewService(d, options(), nil)

	err := errors.NewValidationError(errors.ErrCodeRateLimited, "Slow down.")
	result := svc.Reject(context.Background(), err)

	assert.False(t, result.OK())
	assert.Equal(t, presenter.KindError, result.Message.Kind)
	assert.Equal(t, "Slow down.", result.Message.Text)
	assert.Same(t, err, result.Err)
	assert.Zero(t, hits.Load())
}
