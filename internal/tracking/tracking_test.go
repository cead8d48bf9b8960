package tracking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 2, 3, 4, 5, 6, 789000000, time.UTC)

func clock() time.Time { return fixedNow }

func TestTrackerDisabled(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		pixel     Pixel
		accountID string
	}{
		{name: "no account id", pixel: NewRecorder()},
		{name: "no pixel", accountID: "a2_example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.pixel, tt.accountID, clock, nil)
			assert.False(t, tr.Enabled())

			tr.Init(ctx)
			tr.PageVisit(ctx)
			assert.Empty(t, tr.Lead(ctx))

			if rec, ok := tt.pixel.(*Recorder); ok {
				assert.Empty(t, rec.Commands())
			}
		})
	}
}

func TestTrackerEvents(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()
	tr := NewTracker(rec, "a2_example", clock, nil)

	tr.Init(ctx)
	tr.PageVisit(ctx)
	id := tr.Lead(ctx)

	assert.Equal(t, "contact_form_submission_1738555506789", id)

	cmds := rec.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, Command{Name: "init", Args: []any{"a2_example", InitOptions{UseDecimalCurrencyValues: true}}}, cmds[0])
	assert.Equal(t, Command{Name: "track", Args: []any{EventPageVisit}}, cmds[1])
	assert.Equal(t, Command{Name: "track", Args: []any{EventLead, map[string]any{"conversionId": id}}}, cmds[2])
}

func TestCommandJSON(t *testing.T) {
	rec := NewRecorder()
	NewTracker(rec, "a2_example", clock, nil).Init(context.Background())

	data, err := json.Marshal(rec.Commands())
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"command":"init","args":["a2_example",{"optOut":false,"useDecimalCurrencyValues":true}]}]`,
		string(data))
}

func TestQueueBuffersUntilAttach(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	tr := NewTracker(q, "a2_example", clock, nil)

	tr.Init(ctx)
	tr.PageVisit(ctx)
	assert.False(t, q.Attached())
	assert.Equal(t, 2, q.Pending())

	rec := NewRecorder()
	q.Attach(rec)
	assert.True(t, q.Attached())
	assert.Zero(t, q.Pending())
	require.Len(t, rec.Commands(), 2)

	tr.Lead(ctx)
	cmds := rec.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, EventLead, cmds[2].Args[0])
}

func TestApplyIgnoresMalformedCommands(t *testing.T) {
	rec := NewRecorder()
	Apply(rec, Command{Name: "init"})
	Apply(rec, Command{Name: "track"})
	Apply(rec, Command{Name: "disableFirstPartyCookies"})
	assert.Empty(t, rec.Commands())
}

func TestNoopPixel(t *testing.T) {
	tr := NewTracker(NoopPixel{}, "a2_example", clock, nil)
	assert.True(t, tr.Enabled())
	assert.NotEmpty(t, tr.Lead(context.Background()))
}

func TestConversionID(t *testing.T) {
	assert.Equal(t, "contact_form_submission_0", ConversionID(time.UnixMilli(0)))
}

func TestApplyDecodedCommands(t *testing.T) {
	var cmds []Command
	require.NoError(t, json.Unmarshal([]byte(`[
		{"command":"init","args":["a2_example",{"optOut":false,"useDecimalCurrencyValues":true}]},
		{"command":"track","args":["Lead",{"conversionId":"contact_form_submission_1"}]}
	]`), &cmds))

	rec := NewRecorder()
	for _, c := range cmds {
		Apply(rec, c)
	}

	got := rec.Commands()
	require.Len(t, got, 2)
	assert.Equal(t, []any{"a2_example", InitOptions{UseDecimalCurrencyValues: true}}, got[0].Args)
	assert.Equal(t, []any{EventLead, map[string]any{"conversionId": "contact_form_submission_1"}}, got[1].Args)
}

// brokenPixel fails the way a pixel script that throws does.
type brokenPixel struct{}

func (brokenPixel) Init(string, InitOptions)     { panic("rdt is not ready") }
func (brokenPixel) Track(string, map[string]any) { panic("rdt is not ready") }

func TestTrackerSurvivesFailingPixel(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(brokenPixel{}, "a2_example", clock, nil)

	assert.NotPanics(t, func() {
		tr.Init(ctx)
		tr.PageVisit(ctx)
	})

	var id string
	assert.NotPanics(t, func() { id = tr.Lead(ctx) })
	assert.Empty(t, id, "a failed lead has no conversion id")
}
