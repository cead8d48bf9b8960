// Package anchor handles same-page navigation: smooth scrolling to sections
// below a fixed header, hash history, and the header's scrolled state.
package anchor

import (
	"strings"
	"sync"
	"time"
)

// Defaults match a 80 unit tall fixed header.
const (
	DefaultHeaderOffset = 80
	DefaultClickWindow  = time.Second
	DefaultShadowAt     = 100
)

// Behavior is how a scroll moves.
type Behavior string

const (
	Smooth  Behavior = "smooth"
	Instant Behavior = "instant"
)

// Action is what the page should do in response to an event.
type Action struct {
	// Top is the document offset to scroll to.
	Top      float64  `json:"top"`
	Behavior Behavior `json:"behavior"`
	// PushHash is set when the hash should be pushed onto history.
	PushHash string `json:"push_hash,omitempty"`
}

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Options configure a Controller. Zero values take the defaults.
type Options struct {
	HeaderOffset    float64
	ClickWindow     time.Duration
	ShadowThreshold float64
	AfterFunc       AfterFunc
}

// Controller owns the scroll state of one page.
type Controller struct {
	mu            sync.Mutex
	offset        float64
	window        time.Duration
	shadowAt      float64
	after         AfterFunc
	internalClick bool
	clickTimer    Timer
	clickGen      uint64
	lastScroll    float64
	shadow        bool
}

// New creates a controller.
func New(opts Options) *Controller {
	if opts.HeaderOffset == 0 {
		opts.HeaderOffset = DefaultHeaderOffset
	}
	if opts.ClickWindow <= 0 {
		opts.ClickWindow = DefaultClickWindow
	}
	if opts.ShadowThreshold == 0 {
		opts.ShadowThreshold = DefaultShadowAt
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Controller{
		offset:   opts.HeaderOffset,
		window:   opts.ClickWindow,
		shadowAt: opts.ShadowThreshold,
		after:    opts.AfterFunc,
	}
}

// IsHashLink reports whether href points at an element on the same page.
func IsHashLink(href string) bool {
	return len(href) > 1 && strings.HasPrefix(href, "#")
}

// Target computes where to scroll for an element whose viewport top is
// elementTop while the page is scrolled by pageYOffset.
func (c *Controller) Target(elementTop, pageYOffset float64) float64 {
	return elementTop + pageYOffset - c.offset
}

// Click handles a click on a same-page link whose target was found. The
// hash change the browser fires next is ignored for the click window.
func (c *Controller) Click(href string, elementTop, pageYOffset float64) (Action, bool) {
	if !IsHashLink(href) {
		return Action{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clickTimer != nil {
		c.clickTimer.Stop()
	}
	c.internalClick = true
	c.clickGen++
	gen := c.clickGen
	c.clickTimer = c.after(c.window, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.clickGen == gen {
			c.internalClick = false
			c.clickTimer = nil
		}
	})

	return Action{
		Top:      c.Target(elementTop, pageYOffset),
		Behavior: Smooth,
		PushHash: href,
	}, true
}

// HashChange handles a hash change, from history navigation or a typed URL.
// It does nothing while a click is in flight.
func (c *Controller) HashChange(hash string, elementTop, pageYOffset float64) (Action, bool) {
	if !IsHashLink(hash) {
		return Action{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClick {
		return Action{}, false
	}

	return Action{Top: c.Target(elementTop, pageYOffset), Behavior: Instant}, true
}

// InternalClick reports whether a click is in flight.
func (c *Controller) InternalClick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClick
}

// Scroll records the page's scroll position and returns whether the header
// should show its shadow.
func (c *Controller) Scroll(y float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastScroll = y
	c.shadow = y > c.shadowAt
	return c.shadow
}

// LastScroll returns the last recorded scroll position.
func (c *Controller) LastScroll() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastScroll
}

// Shadow reports whether the header shadow is on.
func (c *Controller) Shadow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shadow
}
