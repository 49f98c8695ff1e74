// Package registry keeps the active sessions of a server process in memory.
// Each session has its own lock so requests on one session run one at a
// time while different sessions proceed in parallel. Sessions idle longer
// than the timeout are evicted and handed to an expiry callback.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/session"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// ExpireFunc receives a session evicted for inactivity. It runs with the
// session's lock held.
type ExpireFunc func(s *session.Session)

type entry struct {
	mu      sync.Mutex
	sess    *session.Session
	removed atomic.Bool
}

// Registry maps session ids to live sessions.
type Registry struct {
	cache    *gocache.Cache
	timeout  time.Duration
	onExpire ExpireFunc
	logger   *zap.Logger
}

// Options configures a Registry.
type Options struct {
	// Timeout is the idle time after which a session is evicted.
	Timeout time.Duration

	// CleanupInterval is how often expired sessions are swept. Zero
	// disables the background sweep; call Sweep instead.
	CleanupInterval time.Duration

	// OnExpire is called for every session evicted for inactivity.
	OnExpire ExpireFunc

	Logger *zap.Logger
}

// New creates a registry.
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ttl := opts.Timeout
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	r := &Registry{
		cache:    gocache.New(ttl, opts.CleanupInterval),
		timeout:  opts.Timeout,
		onExpire: opts.OnExpire,
		logger:   opts.Logger,
	}
	r.cache.OnEvicted(r.evicted)
	return r
}

// Timeout returns the idle timeout.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// Start creates a session under a fresh id using create and registers it.
func (r *Registry) Start(create func(id string) (*session.Session, error)) (*session.Session, error) {
	id := uuid.NewString()
	s, err := create(id)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(id, &entry{sess: s})
	r.logger.Debug("session registered", zap.String("session_id", id))
	return s, nil
}

// With runs fn on the session with its lock held and refreshes its idle
// timer. Sessions that fn leaves terminated are dropped from the registry.
func (r *Registry) With(id string, fn func(s *session.Session) error) error {
	v, ok := r.cache.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed.Load() {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	err := fn(e.sess)

	switch {
	case e.sess.Status == session.StatusTerminated:
		r.remove(id, e)
	case !e.removed.Load():
		// Refresh the idle timer unless the entry was evicted while fn ran.
		r.cache.SetDefault(id, e)
	}
	return err
}

// Has reports whether id names a live, unexpired session.
func (r *Registry) Has(id string) bool {
	v, ok := r.cache.Get(id)
	return ok && !v.(*entry).removed.Load()
}

// Remove drops a session without calling the expiry callback.
func (r *Registry) Remove(id string) {
	v, ok := r.cache.Get(id)
	if !ok {
		return
	}
	r.remove(id, v.(*entry))
}

func (r *Registry) remove(id string, e *entry) {
	e.removed.Store(true)
	r.cache.Delete(id)
}

// Len returns the number of live sessions, including expired ones not yet
// swept.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Sweep evicts every expired session now.
func (r *Registry) Sweep() {
	r.cache.DeleteExpired()
}

// Flush evicts every session, expired or not, through the expiry callback.
// Used on shutdown.
func (r *Registry) Flush() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}

func (r *Registry) evicted(id string, v any) {
	e := v.(*entry)
	if e.removed.Swap(true) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	r.logger.Info("session evicted",
		zap.String("session_id", id),
		zap.Time("last_activity", e.sess.LastActivity))
	if r.onExpire != nil {
		r.onExpire(e.sess)
	}
}
