// Package session keeps the independent workflow sessions of a running
// server in memory.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown or expired session ids.
	ErrNotFound = errors.New("session not found")
	// ErrCapacity is returned by Create when MaxSessions are live.
	ErrCapacity = errors.New("session capacity reached")
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTTL             = 30 * time.Minute
	DefaultMaxSessions     = 1000
	DefaultJanitorInterval = time.Minute
)

// Factory builds the workflow session for a new id.
type Factory func(id string) *workflow.Session

// Options configures a Store.
type Options struct {
	TTL             time.Duration
	MaxSessions     int
	JanitorInterval time.Duration
	Logger          *slog.Logger
	// OnChange is called with the live session count after every
	// create, delete or eviction.
	OnChange func(active int)
	// Clock overrides time.Now.
	Clock func() time.Time
}

type entry struct {
	session    *workflow.Session
	lastAccess time.Time
	// pinned sessions are owned by a live connection and never swept.
	pinned bool
}

// Store is a concurrency-safe registry of sessions keyed by UUID. The lock
// guards only the index; sessions synchronize themselves.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry

	factory Factory
	opts    Options
	log     *slog.Logger

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates a store and starts its eviction janitor.
func NewStore(factory Factory, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = DefaultJanitorInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	st := &Store{
		sessions: make(map[string]*entry),
		factory:  factory,
		opts:     opts,
		log:      opts.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go st.janitor()
	return st
}

// Create registers a new Idle session under a fresh UUID.
func (st *Store) Create() (*workflow.Session, error) {
	st.mu.Lock()
	if len(st.sessions) >= st.opts.MaxSessions {
		st.sweepLocked()
	}
	if len(st.sessions) >= st.opts.MaxSessions {
		st.mu.Unlock()
		return nil, ErrCapacity
	}
	id := uuid.NewString()
	s := st.factory(id)
	st.sessions[id] = &entry{session: s, lastAccess: st.opts.Clock()}
	n := len(st.sessions)
	st.mu.Unlock()

	st.log.Debug("session created", "session", id, "active", n)
	st.changed(n)
	return s, nil
}

// Get returns the session and refreshes its idle timer.
func (st *Store) Get(id string) (*workflow.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastAccess = st.opts.Clock()
	return e.session, nil
}

// Touch refreshes the idle timer of id without returning the session.
func (st *Store) Touch(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.lastAccess = st.opts.Clock()
	return nil
}

// Pin exempts id from idle eviction until it is deleted. Pinned sessions
// still count against MaxSessions.
func (st *Store) Pin(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.pinned = true
	return nil
}

// Delete removes the session. It reports whether the id was known.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	n := len(st.sessions)
	st.mu.Unlock()

	if ok {
		st.log.Debug("session deleted", "session", id, "active", n)
		st.changed(n)
	}
	return ok
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed. Pinned sessions and sessions with an extraction in flight
// are kept.
func (st *Store) Sweep() int {
	st.mu.Lock()
	evicted := st.sweepLocked()
	n := len(st.sessions)
	st.mu.Unlock()

	if evicted > 0 {
		st.log.Info("evicted idle sessions", "count", evicted, "active", n)
		st.changed(n)
	}
	return evicted
}

func (st *Store) sweepLocked() int {
	cutoff := st.opts.Clock().Add(-st.opts.TTL)
	evicted := 0
	for id, e := range st.sessions {
		if e.pinned || e.lastAccess.After(cutoff) || e.session.Busy() {
			continue
		}
		delete(st.sessions, id)
		evicted++
	}
	return evicted
}

func (st *Store) janitor() {
	defer close(st.done)
	ticker := time.NewTicker(st.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			st.Sweep()
		case <-st.stop:
			return
		}
	}
}

func (st *Store) changed(n int) {
	if st.opts.OnChange != nil {
		st.opts.OnChange(n)
	}
}

// Close stops the janitor. Sessions stay readable.
func (st *Store) Close() {
	st.closeOnce.Do(func() {
		close(st.stop)
		<-st.done
	})
}
