// Package session keeps per-conversation state: the claim under discussion
// and its message history. Sessions live in process memory only.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
	gocache "github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when mutating a session that does not exist
var ErrNotFound = goerr.New("session not found")

const (
	defaultTTL         = 2 * time.Hour
	defaultMaxSessions = 10000
	defaultCleanup     = 10 * time.Minute
	maxIDLength        = 128
)

// entry serializes every read and mutation of one session
type entry struct {
	mu      sync.Mutex
	session model.Session
}

// Store is a bounded session table. Sessions expire after a TTL measured
// from their last access; when the table is full the least recently
// accessed session is evicted.
type Store struct {
	items       *gocache.Cache
	ttl         time.Duration
	maxSessions int
	cleanup     time.Duration
	onExpire    func(model.Session)
	now         func() time.Time

	createMu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithTTL sets the idle lifetime of a session
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxSessions caps the number of live sessions
func WithMaxSessions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithCleanupInterval sets how often expired sessions are purged
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.cleanup = d
		}
	}
}

// WithOnExpire registers a hook called with the final state of every
// session that expires, is evicted or is deleted
func WithOnExpire(fn func(model.Session)) Option {
	return func(s *Store) { s.onExpire = fn }
}

// New creates a session store
func New(opts ...Option) *Store {
	s := &Store{
		ttl:         defaultTTL,
		maxSessions: defaultMaxSessions,
		cleanup:     defaultCleanup,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.items = gocache.New(s.ttl, s.cleanup)
	s.items.OnEvicted(func(_ string, v any) {
		e, ok := v.(*entry)
		if !ok || s.onExpire == nil {
			return
		}
		e.mu.Lock()
		snapshot := e.session.Clone()
		e.mu.Unlock()
		s.onExpire(snapshot)
	})
	return s
}

// NewFromConfig creates a store from the session section of the config
func NewFromConfig(cfg model.SessionConfig, opts ...Option) *Store {
	base := []Option{
		WithTTL(cfg.TTL),
		WithMaxSessions(cfg.MaxSessions),
		WithCleanupInterval(cfg.CleanupInterval),
	}
	return New(append(base, opts...)...)
}

// Create starts a new empty session and returns its id
func (s *Store) Create() string {
	id := uuid.NewString()
	s.insert(id)
	return id
}

// Ensure returns id when that session exists. A new session is created for
// an empty id, or under id itself when it is well-formed but unknown.
func (s *Store) Ensure(id string) (string, bool) {
	if id == "" || len(id) > maxIDLength {
		return s.Create(), true
	}
	if e := s.lookup(id); e != nil {
		return id, false
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	if _, found := s.items.Get(id); found {
		return id, false
	}
	s.insertLocked(id)
	return id, true
}

func (s *Store) insert(id string) {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.insertLocked(id)
}

func (s *Store) insertLocked(id string) {
	for s.items.ItemCount() >= s.maxSessions {
		if !s.evictOldest() {
			break
		}
	}

	now := s.now()
	s.items.Set(id, &entry{session: model.Session{
		ID:         id,
		History:    []model.Message{},
		CreatedAt:  now,
		LastAccess: now,
	}}, s.ttl)
}

// evictOldest removes the least recently accessed session
func (s *Store) evictOldest() bool {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, item := range s.items.Items() {
		e, ok := item.Object.(*entry)
		if !ok {
			continue
		}
		e.mu.Lock()
		at := e.session.LastAccess
		e.mu.Unlock()
		if oldestID == "" || at.Before(oldestAt) {
			oldestID, oldestAt = id, at
		}
	}
	if oldestID == "" {
		// only expired items remain
		s.items.DeleteExpired()
		return s.items.ItemCount() < s.maxSessions
	}
	s.items.Delete(oldestID)
	return true
}

// lookup returns the entry for id, refreshing its expiry. A session that
// vanished since the Get is not brought back.
func (s *Store) lookup(id string) *entry {
	v, found := s.items.Get(id)
	if !found {
		return nil
	}
	e, ok := v.(*entry)
	if !ok {
		return nil
	}
	if err := s.items.Replace(id, e, s.ttl); err != nil {
		return nil
	}
	return e
}

// Do runs fn with exclusive access to the session
func (s *Store) Do(id string, fn func(*model.Session) error) error {
	e := s.lookup(id)
	if e == nil {
		return goerr.Wrap(ErrNotFound, "session "+id, goerr.V("session_id", id))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.LastAccess = s.now()
	return fn(&e.session)
}

// SetClaim records the claim under discussion
func (s *Store) SetClaim(id, claim string) error {
	return s.Do(id, func(sess *model.Session) error {
		sess.Claim = claim
		return nil
	})
}

// Append adds messages to the history atomically, in order
func (s *Store) Append(id string, messages ...model.Message) error {
	return s.Do(id, func(sess *model.Session) error {
		sess.History = append(sess.History, messages...)
		return nil
	})
}

// Get returns a copy of the session. An unknown id yields an empty default
// session and false.
func (s *Store) Get(id string) (model.Session, bool) {
	var snapshot model.Session
	err := s.Do(id, func(sess *model.Session) error {
		snapshot = sess.Clone()
		return nil
	})
	if err != nil {
		return model.Session{ID: id, History: []model.Message{}}, false
	}
	return snapshot, true
}

// Delete removes a session, firing the expire hook
func (s *Store) Delete(id string) {
	s.items.Delete(id)
}

// Len returns the number of sessions, including expired ones not yet purged
func (s *Store) Len() int {
	return s.items.ItemCount()
}
