package presenter

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/sitekit/internal/tracking"
)

type session struct {
	region     *Region
	pixel      []tracking.Command
	lastAccess time.Time
}

// Sessions keeps one Region per visitor so a message survives the redirect
// after a plain form post. Pixel commands produced by that post wait on the
// session for the next page view and expire with it.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	after    AfterFunc
	now      func() time.Time
	cleaner  *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessions creates a store whose idle sessions expire after ttl. It starts
// a cleanup goroutine; call Stop to end it.
func NewSessions(ttl time.Duration, after AfterFunc) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &Sessions{
		sessions: make(map[string]*session),
		ttl:      ttl,
		after:    after,
		now:      time.Now,
		cleaner:  time.NewTicker(ttl / 2),
		stop:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Region returns the region for id, creating a session when id is empty or
// unknown. The returned id is the one to hand back to the visitor.
func (s *Sessions) Region(id string) (*Region, string) {
	now := s.now()

	if id != "" {
		s.mu.RLock()
		sess, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			s.mu.Lock()
			sess.lastAccess = now
			s.mu.Unlock()
			return sess.region, id
		}
	}

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.lastAccess = now
		return sess.region, id
	}
	sess := &session{region: NewRegion(s.after), lastAccess: now}
	s.sessions[id] = sess
	return sess.region, id
}

// AddPixel keeps cmds for the visitor's next page view. Commands for an
// unknown or expired session are dropped.
func (s *Sessions) AddPixel(id string, cmds []tracking.Command) {
	if len(cmds) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.pixel = append(sess.pixel, cmds...)
	}
}

// TakePixel returns and forgets the commands kept for id.
func (s *Sessions) TakePixel(id string) []tracking.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	cmds := sess.pixel
	sess.pixel = nil
	return cmds
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Sessions) cleanupLoop() {
	for {
		select {
		case <-s.cleaner.C:
			s.cleanup()
		case <-s.stop:
			s.cleaner.Stop()
			return
		}
	}
}

// cleanup removes sessions idle for longer than the ttl.
func (s *Sessions) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastAccess) > s.ttl {
			sess.region.Clear()
			delete(s.sessions, id)
		}
	}
}

// Stop ends the cleanup goroutine.
func (s *Sessions) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
