// Package logo picks the first logo image that loads from a fixed list of
// formats and falls back to text when none does.
package logo

import (
	"strings"
	"sync"
)

// DefaultExtensions is the order formats are tried in.
var DefaultExtensions = []string{"svg", "png", "jpg", "jpeg"}

// State is where the loader is in its search.
type State int

const (
	// StateTrying means a candidate is being loaded.
	StateTrying State = iota
	// StateLoaded means the current candidate loaded.
	StateLoaded
	// StateTextFallback means every candidate failed and text is shown.
	StateTextFallback
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateTrying:
		return "trying"
	case StateLoaded:
		return "loaded"
	case StateTextFallback:
		return "text_fallback"
	default:
		return "unknown"
	}
}

// Loader walks the candidates. It is safe for concurrent use; load and error
// events from a browser may arrive on different goroutines.
type Loader struct {
	mu         sync.Mutex
	candidates []string
	index      int
	state      State
	onFallback func()
	fellBack   bool
}

// NewLoader returns a loader for base.ext over exts, in order. With no exts
// it uses DefaultExtensions.
func NewLoader(base string, exts []string) *Loader {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	candidates := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext == "" {
			continue
		}
		candidates = append(candidates, base+"."+ext)
	}
	l := &Loader{candidates: candidates}
	if len(candidates) == 0 {
		l.state = StateTextFallback
		l.fellBack = true
	}
	return l
}

// OnFallback registers f to run when the loader gives up. It runs at most
// once per loader, outside the loader's lock.
func (l *Loader) OnFallback(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFallback = f
}

// Candidates returns every file name the loader will try.
func (l *Loader) Candidates() []string {
	out := make([]string, len(l.candidates))
	copy(out, l.candidates)
	return out
}

// State returns the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Current returns the candidate being tried or the one that loaded. It
// returns false in the text fallback state.
func (l *Loader) Current() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateTextFallback {
		return "", false
	}
	return l.candidates[l.index], true
}

// Loaded records that the current candidate loaded. It has no effect unless
// a candidate is being tried.
func (l *Loader) Loaded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateTrying {
		l.state = StateLoaded
	}
}

// Fail records that the current candidate did not load and moves to the
// next one. It returns the next candidate, or false once the loader has
// fallen back to text. Failures after the fallback are ignored.
func (l *Loader) Fail() (string, bool) {
	l.mu.Lock()
	if l.state == StateTextFallback {
		l.mu.Unlock()
		return "", false
	}

	if l.index+1 < len(l.candidates) {
		l.index++
		l.state = StateTrying
		next := l.candidates[l.index]
		l.mu.Unlock()
		return next, true
	}

	l.state = StateTextFallback
	var notify func()
	if !l.fellBack {
		l.fellBack = true
		notify = l.onFallback
	}
	l.mu.Unlock()

	if notify != nil {
		notify()
	}
	return "", false
}

// Reset starts over from the first candidate. A loader that already fell
// back may fall back again after a reset.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.candidates) == 0 {
		return
	}
	l.index = 0
	l.state = StateTrying
	l.fellBack = false
}
