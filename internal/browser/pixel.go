package browser

import (
	"github.com/conneroisu/sitekit/internal/tracking"
)

// newPagePixel returns the pixel the page replays commands on. Without an
// account id nothing is tracked. Otherwise commands wait in a queue until
// the pixel's script is attached with Attach.
func newPagePixel(accountID string) tracking.Pixel {
	if accountID == "" {
		return tracking.NoopPixel{}
	}
	return tracking.NewQueue()
}
