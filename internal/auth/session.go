package auth

import (
	"sync"
	"time"
)

// State is where the current session sits in its lifecycle.
type State string

const (
	StateSignedOut State = "signed_out"
	StateSignedIn  State = "signed_in"
)

// Session is the process-wide identity plus its derived admin flag. The flag
// is recomputed on every transition into signed-in, never carried over.
type Session struct {
	UserID    string
	Email     string
	IsAdmin   bool
	Token     string
	ExpiresAt time.Time
}

// Change is delivered to subscribers on every state transition.
type Change struct {
	State   State
	Session *Session
}

// Tracker owns the single Session instance and publishes state changes. All
// mutations go through SignedIn/SignedOut so readers never observe a stale
// admin flag next to a fresh identity.
type Tracker struct {
	mu      sync.Mutex
	current *Session
	subs    map[int]chan Change
	nextSub int
	expiry  *time.Timer
	closed  bool
}

// NewTracker starts in the signed-out state.
func NewTracker() *Tracker {
	return &Tracker{subs: make(map[int]chan Change)}
}

// Current returns the session, or nil when signed out.
func (t *Tracker) Current() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// SignedIn records a transition into the signed-in state. A pending expiry
// timer from a previous session is dropped and re-armed for the new token.
func (t *Tracker) SignedIn(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.stopExpiryLocked()
	t.current = s
	if !s.ExpiresAt.IsZero() {
		t.expiry = time.AfterFunc(time.Until(s.ExpiresAt), t.expire)
	}
	t.notifyLocked(Change{State: StateSignedIn, Session: s})
}

// SignedOut clears the session unconditionally.
func (t *Tracker) SignedOut() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.stopExpiryLocked()
	t.current = nil
	t.notifyLocked(Change{State: StateSignedOut})
}

// Subscribe registers for state changes. The returned cancel func must be
// called to release the subscription; Close releases any that remain.
func (t *Tracker) Subscribe() (<-chan Change, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	ch := make(chan Change, 4)
	t.subs[id] = ch
	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close tears down the tracker and every remaining subscription.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.stopExpiryLocked()
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

// expire handles backend session expiry: same observable transition as an
// explicit sign-out.
func (t *Tracker) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.current == nil {
		return
	}
	t.expiry = nil
	t.current = nil
	t.notifyLocked(Change{State: StateSignedOut})
}

func (t *Tracker) stopExpiryLocked() {
	if t.expiry != nil {
		t.expiry.Stop()
		t.expiry = nil
	}
}

func (t *Tracker) notifyLocked(c Change) {
	for _, ch := range t.subs {
		select {
		case ch <- c:
		default:
			// Slow subscribers miss intermediate transitions rather than
			// blocking the update path.
		}
	}
}
