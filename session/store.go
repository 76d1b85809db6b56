// Package session keeps ephemeral per-conversation state keyed by an opaque
// id. Sessions live for a configurable inactivity window and are capped in
// size; turns on the same session are serialized through a per-session lock.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/modaio/stylist/core"
)

// Config bounds session lifetime and growth.
type Config struct {
	// TTL is the inactivity window after which a session is evicted.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// MaxTurns caps the conversation history; oldest turns drop first.
	MaxTurns int `yaml:"max_turns" json:"max_turns"`

	// MaxResultGroups caps retained last_results groups.
	MaxResultGroups int `yaml:"max_result_groups" json:"max_result_groups"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:             30 * time.Minute,
		MaxTurns:        40,
		MaxResultGroups: 12,
	}
}

// Store is the in-memory session store. The TTL cache owns expiry and
// background cleanup; the lock map enforces one writer per session.
type Store struct {
	cache *gocache.Cache
	cfg   Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a session store with background eviction.
func NewStore(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultConfig().MaxTurns
	}
	if cfg.MaxResultGroups <= 0 {
		cfg.MaxResultGroups = DefaultConfig().MaxResultGroups
	}

	s := &Store{
		cache: gocache.New(cfg.TTL, cfg.TTL/2),
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
	s.cache.OnEvicted(func(id string, _ any) { s.pruneLock(id) })
	return s
}

// GetOrCreate returns the session for id, minting a fresh session (and id,
// when the caller supplied none) if the id is unseen or expired. The returned
// session is a clone; mutations become visible only through Save.
func (s *Store) GetOrCreate(id string) (*core.Session, bool) {
	if id != "" {
		if v, ok := s.cache.Get(id); ok {
			return v.(*core.Session).Clone(), false
		}
	}

	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now()
	sess := &core.Session{
		ID:           id,
		ActiveFilter: core.Filter{Gender: core.GenderBoth},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.cache.Set(id, sess, s.cfg.TTL)
	return sess.Clone(), true
}

// Save persists a mutated session clone, applying capacity bounds and
// resetting the inactivity timer. Callers save only after the full turn
// pipeline succeeded, so a failed turn never leaves a half-updated session.
func (s *Store) Save(sess *core.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("%w: session id cannot be empty", core.ErrValidation)
	}

	stored := sess.Clone()
	if n := len(stored.Turns); n > s.cfg.MaxTurns {
		stored.Turns = stored.Turns[n-s.cfg.MaxTurns:]
	}
	if n := len(stored.LastResults); n > s.cfg.MaxResultGroups {
		stored.LastResults = stored.LastResults[n-s.cfg.MaxResultGroups:]
	}
	stored.UpdatedAt = time.Now()

	s.cache.Set(stored.ID, stored, s.cfg.TTL)
	return nil
}

// Reset drops a session explicitly.
func (s *Store) Reset(id string) {
	s.cache.Delete(id)
	s.pruneLock(id)
}

// pruneLock drops a session's lock entry unless a turn currently holds it.
// Runs on every cache eviction so the lock map tracks live sessions only.
func (s *Store) pruneLock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.locks[id]; ok && lock.TryLock() {
		lock.Unlock()
		delete(s.locks, id)
	}
}

// EvictExpired forces an eviction pass. The cache janitor also runs this in
// the background.
func (s *Store) EvictExpired() {
	s.cache.DeleteExpired()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Acquire takes the single-writer lock for a session id without blocking.
// A second concurrent turn on the same session gets ErrSessionBusy, which is
// retryable. The returned release function must be called once.
func (s *Store) Acquire(id string) (func(), error) {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	if !lock.TryLock() {
		return nil, core.ErrSessionBusy
	}
	return lock.Unlock, nil
}

// Checkout is the turn pipeline's entry point: it mints an id when the caller
// supplied none, takes the session's single-writer lock, and only then reads
// the session. Reading inside the critical section means the returned clone
// can never go stale against a concurrent turn's Save.
func (s *Store) Checkout(id string) (*core.Session, func(), error) {
	if id == "" {
		id = uuid.New().String()
	}
	release, err := s.Acquire(id)
	if err != nil {
		return nil, nil, err
	}
	sess, _ := s.GetOrCreate(id)
	return sess, release, nil
}
