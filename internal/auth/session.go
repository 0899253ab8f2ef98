package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/redteam-collab/pkg/cryptox"
)

// Session is a server-side login record. User is a snapshot taken at login;
// the gate reloads the live row on every request.
type Session struct {
	ID        string
	User      User
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type SessionStore interface {
	Create(ctx context.Context, u User) (*Session, error)
	Get(ctx context.Context, id string) (*Session, bool)
	Delete(ctx context.Context, id string)
	DeleteByUser(ctx context.Context, userID string) int
}

// MemoryStore keeps sessions in process memory. Everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

func (m *MemoryStore) Create(_ context.Context, u User) (*Session, error) {
	id, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := &Session{
		ID:        id,
		User:      u,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	cp := *sess
	return &cp, nil
}

// Get returns a copy of the session. Expired entries are removed on read.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if sess.Expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[id]; ok && cur == sess {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		return nil, false
	}

	cp := *sess
	return &cp, true
}

func (m *MemoryStore) Delete(_ context.Context, id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// DeleteByUser drops every session belonging to userID and returns how many
// were removed.
func (m *MemoryStore) DeleteByUser(_ context.Context, userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, sess := range m.sessions {
		if sess.User.ID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Purge removes expired sessions.
func (m *MemoryStore) Purge() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run purges expired sessions every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("session janitor started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := m.Purge(); n > 0 {
				m.logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}
