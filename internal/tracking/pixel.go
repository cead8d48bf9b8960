// Package tracking reports page visits and leads to an ads pixel.
//
// The pixel itself lives in the browser. Server code records the calls it
// wants made and hands them to the page; browser code forwards them to the
// real pixel once its script has loaded.
package tracking

import (
	"sync"
)

// Pixel event names.
const (
	EventPageVisit = "PageVisit"
	EventLead      = "Lead"
)

// Command is one call on the pixel, in the shape the pixel's global
// function takes it: rdt(command, args...).
type Command struct {
	Name string `json:"command"`
	Args []any  `json:"args"`
}

// InitOptions are passed to the pixel's init call.
type InitOptions struct {
	OptOut                   bool `json:"optOut"`
	UseDecimalCurrencyValues bool `json:"useDecimalCurrencyValues"`
}

// Pixel is an ads tracking pixel.
type Pixel interface {
	Init(accountID string, opts InitOptions)
	Track(event string, params map[string]any)
}

// Apply replays cmd on p. Unknown commands are dropped.
func Apply(p Pixel, cmd Command) {
	switch cmd.Name {
	case "init":
		if len(cmd.Args) == 0 {
			return
		}
		id, _ := cmd.Args[0].(string)
		var opts InitOptions
		if len(cmd.Args) > 1 {
			switch o := cmd.Args[1].(type) {
			case InitOptions:
				opts = o
			case map[string]any:
				// Commands decoded from JSON.
				opts.OptOut, _ = o["optOut"].(bool)
				opts.UseDecimalCurrencyValues, _ = o["useDecimalCurrencyValues"].(bool)
			}
		}
		p.Init(id, opts)
	case "track":
		if len(cmd.Args) == 0 {
			return
		}
		event, _ := cmd.Args[0].(string)
		var params map[string]any
		if len(cmd.Args) > 1 {
			params, _ = cmd.Args[1].(map[string]any)
		}
		p.Track(event, params)
	}
}

// NoopPixel discards every call. It stands in when no pixel is available.
type NoopPixel struct{}

// Init implements Pixel.
func (NoopPixel) Init(string, InitOptions) {}

// Track implements Pixel.
func (NoopPixel) Track(string, map[string]any) {}

// Recorder keeps the calls made on it so they can be sent to a browser.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Init implements Pixel.
func (r *Recorder) Init(accountID string, opts InitOptions) {
	r.record(Command{Name: "init", Args: []any{accountID, opts}})
}

// Track implements Pixel.
func (r *Recorder) Track(event string, params map[string]any) {
	args := []any{event}
	if params != nil {
		args = append(args, params)
	}
	r.record(Command{Name: "track", Args: args})
}

func (r *Recorder) record(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

// Commands returns a copy of the recorded calls in call order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Queue buffers calls until a pixel is attached, then forwards them in
// order. Calls made after Attach go straight through.
type Queue struct {
	mu      sync.Mutex
	target  Pixel
	pending []Command
}

// NewQueue returns a queue with no pixel attached.
func NewQueue() *Queue {
	return &Queue{}
}

// Attach sets the pixel and drains the buffered calls into it.
func (q *Queue) Attach(p Pixel) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.target = p
	for _, cmd := range q.pending {
		Apply(p, cmd)
	}
	q.pending = nil
}

// Attached reports whether a pixel is attached.
func (q *Queue) Attached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.target != nil
}

// Pending returns the number of buffered calls.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Init implements Pixel.
func (q *Queue) Init(accountID string, opts InitOptions) {
	q.forward(Command{Name: "init", Args: []any{accountID, opts}})
}

// Track implements Pixel.
func (q *Queue) Track(event string, params map[string]any) {
	args := []any{event}
	if params != nil {
		args = append(args, params)
	}
	q.forward(Command{Name: "track", Args: args})
}

func (q *Queue) forward(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.target != nil {
		Apply(q.target, cmd)
		return
	}
	q.pending = append(q.pending, cmd)
}
