package anchor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct {
	timers []*manualTimer
}

func (c *manualClock) after(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) fire() {
	timers := c.timers
	c.timers = nil
	for _, t := range timers {
		if !t.stopped {
			t.f()
		}
	}
}

func TestClickSuppressesHashChange(t *testing.T) {
	clock := &manualClock{}
	c := New(Options{AfterFunc: clock.after})

	action, ok := c.Click("#pricing", 500, 200)
	require.True(t, ok)
	assert.Equal(t, Action{Top: 620, Behavior: Smooth, PushHash: "#pricing"}, action)
	assert.True(t, c.InternalClick())
	require.Len(t, clock.timers, 1)
	assert.Equal(t, time.Second, clock.timers[0].d)

	_, ok = c.HashChange("#pricing", 0, 620)
	assert.False(t, ok)

	clock.fire()
	assert.False(t, c.InternalClick())

	action, ok = c.HashChange("#contact", 300, 0)
	require.True(t, ok)
	assert.Equal(t, Action{Top: 220, Behavior: Instant}, action)
}

func TestSecondClickExtendsWindow(t *testing.T) {
	clock := &manualClock{}
	c := New(Options{AfterFunc: clock.after})

	c.Click("#features", 100, 0)
	first := clock.timers[0]
	c.Click("#pricing", 100, 0)

	assert.True(t, first.stopped)
	first.f()
	assert.True(t, c.InternalClick())
}

func TestIgnoredLinks(t *testing.T) {
	c := New(Options{})
	for _, href := range []string{"", "#", "/about", "https://example.com/#x"} {
		_, ok := c.Click(href, 0, 0)
		assert.False(t, ok, href)
		_, ok = c.HashChange(href, 0, 0)
		assert.False(t, ok, href)
	}
	assert.False(t, c.InternalClick())
}

func TestCustomOffset(t *testing.T) {
	c := New(Options{HeaderOffset: 64})
	assert.Equal(t, float64(36), c.Target(100, 0))
}

func TestRealClickWindow(t *testing.T) {
	c := New(Options{ClickWindow: 10 * time.Millisecond})
	c.Click("#contact", 0, 0)
	assert.Eventually(t, func() bool { return !c.InternalClick() }, time.Second, 5*time.Millisecond)
}

func TestScrollShadow(t *testing.T) {
	c := New(Options{})

	assert.False(t, c.Scroll(100))
	assert.True(t, c.Scroll(101))
	assert.True(t, c.Shadow())
	assert.Equal(t, float64(101), c.LastScroll())
	assert.False(t, c.Scroll(0))
	assert.False(t, c.Shadow())
}

func TestScan(t *testing.T) {
	page := `<!doctype html>
<html><body>
<nav>
  <a href="#features">Features</a>
  <a href="#pricing"> Our <b>Pricing</b> </a>
  <a href="#team">Team</a>
  <a href="#team">Team again</a>
  <a href="#">Top</a>
  <a href="/blog">Blog</a>
</nav>
<section id="features"></section>
<section id="pricing"></section>
<section id="contact"></section>
</body></html>`

	report, err := Scan(strings.NewReader(page))
	require.NoError(t, err)

	require.Len(t, report.Links, 4)
	assert.Equal(t, Link{Href: "#pricing", Text: "Our Pricing", Target: true}, report.Links[1])
	assert.False(t, report.Links[2].Target)
	assert.Equal(t, []string{"#team"}, report.Missing)
	assert.Equal(t, []string{"contact", "features", "pricing"}, report.IDs)
	assert.False(t, report.OK())
}
