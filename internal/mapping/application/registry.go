package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"datamap-cloud/internal/observability/metrics"

	"github.com/robfig/cron/v3"
)

// ErrSessionNotFound is returned for unknown or evicted session ids.
var ErrSessionNotFound = errors.New("mapping session: not found")

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 30 * time.Minute

// SessionFactory builds a new idle session.
type SessionFactory func() (*Session, error)

type registryEntry struct {
	session  *Session
	active   *ActiveDataset
	unbind   func()
	lastSeen time.Time
}

// SessionRegistry keeps sessions addressable by id and evicts idle ones.
type SessionRegistry struct {
	factory SessionFactory
	ttl     time.Duration
	clock   Clock
	logger  *log.Logger

	mu       sync.Mutex
	sessions map[string]*registryEntry
	cron     *cron.Cron
}

// RegistryOption customizes the registry.
type RegistryOption func(*SessionRegistry)

// WithRegistryClock assigns a clock.
func WithRegistryClock(clock Clock) RegistryOption {
	return func(r *SessionRegistry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRegistryLogger assigns a logger.
func WithRegistryLogger(logger *log.Logger) RegistryOption {
	return func(r *SessionRegistry) {
		r.logger = logger
	}
}

// NewSessionRegistry constructs a registry. A non-positive ttl uses the default.
func NewSessionRegistry(factory SessionFactory, ttl time.Duration, opts ...RegistryOption) (*SessionRegistry, error) {
	if factory == nil {
		return nil, errors.New("mapping registry: nil session factory")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	r := &SessionRegistry{
		factory:  factory,
		ttl:      ttl,
		clock:    systemClock{},
		sessions: make(map[string]*registryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Create builds a session bound to its own active dataset holder.
func (r *SessionRegistry) Create() (*Session, *ActiveDataset, error) {
	session, err := r.factory()
	if err != nil {
		return nil, nil, err
	}
	active := NewActiveDataset()
	entry := &registryEntry{
		session:  session,
		active:   active,
		unbind:   session.Bind(active),
		lastSeen: r.clock.Now(),
	}

	r.mu.Lock()
	r.sessions[session.ID()] = entry
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.SetActiveSessions(count)
	return session, active, nil
}

// Get returns a session and refreshes its idle timer.
func (r *SessionRegistry) Get(id string) (*Session, *ActiveDataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	entry.lastSeen = r.clock.Now()
	return entry.session, entry.active, nil
}

// Remove drops a session.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		entry.unbind()
		metrics.SetActiveSessions(count)
	}
	return ok
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the ttl and returns how many
// were removed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	var evicted []*registryEntry
	for id, entry := range r.sessions {
		if now.Sub(entry.lastSeen) > r.ttl {
			evicted = append(evicted, entry)
			delete(r.sessions, id)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	for _, entry := range evicted {
		entry.unbind()
	}
	metrics.SetActiveSessions(count)
	metrics.AddEvictedSessions(len(evicted))
	return len(evicted)
}

// StartSweeper runs Sweep on a cron schedule such as "@every 1m".
func (r *SessionRegistry) StartSweeper(spec string) error {
	if spec == "" {
		spec = "@every 1m"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if n := r.Sweep(r.clock.Now()); n > 0 && r.logger != nil {
			r.logger.Printf("mapping registry: evicted %d idle sessions", n)
		}
	}); err != nil {
		return err
	}

	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return errors.New("mapping registry: sweeper already running")
	}
	r.cron = c
	r.mu.Unlock()

	c.Start()
	return nil
}

// Stop halts the sweeper, then waits for a running sweep and for in-flight
// suggestion requests of every session to finish or ctx to end.
func (r *SessionRegistry) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	sessions := make([]*Session, 0, len(r.sessions))
	for _, entry := range r.sessions {
		sessions = append(sessions, entry.session)
	}
	r.mu.Unlock()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	for _, session := range sessions {
		session.Drain(ctx)
	}
}
