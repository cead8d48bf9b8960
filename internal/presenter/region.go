package presenter

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer a Region needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Region holds at most one message. Showing a message replaces the previous
// one and cancels its pending clear.
type Region struct {
	mu        sync.Mutex
	current   Message
	timer     Timer
	gen       uint64
	afterFunc AfterFunc
	onChange  func(Message)
}

// NewRegion returns an empty region. A nil scheduler uses time.AfterFunc.
func NewRegion(after AfterFunc) *Region {
	if after == nil {
		after = realAfterFunc
	}
	return &Region{afterFunc: after}
}

// OnChange registers f to run after every change, including the automatic
// clear. f runs outside the region's lock and receives the new message,
// which is zero when the region was cleared.
func (r *Region) OnChange(f func(Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = f
}

// Begin starts a new submission attempt by clearing whatever is shown.
func (r *Region) Begin() {
	r.Clear()
}

// Show replaces the current message. When m.ClearAfter is positive the
// message is cleared after that long unless something replaced it first.
func (r *Region) Show(m Message) {
	r.mu.Lock()
	r.stopLocked()
	r.current = m
	r.gen++

	if m.ClearAfter > 0 {
		gen := r.gen
		r.timer = r.afterFunc(m.ClearAfter, func() {
			r.mu.Lock()
			if r.gen != gen {
				r.mu.Unlock()
				return
			}
			r.current = Message{}
			r.timer = nil
			notify := r.onChange
			r.mu.Unlock()
			if notify != nil {
				notify(Message{})
			}
		})
	}
	notify := r.onChange
	r.mu.Unlock()

	if notify != nil {
		notify(m)
	}
}

// Clear empties the region.
func (r *Region) Clear() {
	r.mu.Lock()
	r.stopLocked()
	r.current = Message{}
	r.gen++
	notify := r.onChange
	r.mu.Unlock()

	if notify != nil {
		notify(Message{})
	}
}

// Current returns the shown message and whether there is one.
func (r *Region) Current() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, !r.current.IsZero()
}

func (r *Region) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
