package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitekit/internal/tracking"
)

func TestPagePixelWithoutAccount(t *testing.T) {
	px := newPagePixel("")
	assert.IsType(t, tracking.NoopPixel{}, px)
	assert.NotPanics(t, func() {
		tracking.Apply(px, tracking.Command{Name: "track", Args: []any{tracking.EventLead}})
	})
}

func TestPagePixelQueuesUntilAttached(t *testing.T) {
	px := newPagePixel("a2_example")
	q, ok := px.(*tracking.Queue)
	require.True(t, ok)

	resp := SubmitResponse{Pixel: []tracking.Command{
		{Name: "init", Args: []any{"a2_example", map[string]any{"useDecimalCurrencyValues": true}}},
		{Name: "track", Args: []any{tracking.EventLead, map[string]any{"conversionId": "contact_form_submission_1"}}},
	}}
	for _, cmd := range resp.Pixel {
		tracking.Apply(px, cmd)
	}
	assert.Equal(t, 2, q.Pending())

	rec := tracking.NewRecorder()
	q.Attach(rec)

	cmds := rec.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "init", cmds[0].Name)
	assert.Equal(t, []any{tracking.EventLead, map[string]any{"conversionId": "contact_form_submission_1"}}, cmds[1].Args)
}
