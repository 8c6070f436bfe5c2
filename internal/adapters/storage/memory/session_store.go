package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

// SessionStore keeps sessions in process memory. Sessions older than the
// TTL are treated as missing and pruned on write.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store; ttl <= 0 keeps sessions forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) expired(sess domain.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}

func (s *SessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	if _, exists := s.sessions[session.ID]; exists {
		return domain.ErrSessionExists
	}

	s.sessions[session.ID] = *session
	return nil
}

func (s *SessionStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, exists := s.sessions[session.ID]; !exists || s.expired(cur) {
		return domain.ErrSessionNotFound
	}

	s.sessions[session.ID] = *session
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, domain.ErrSessionNotFound
	}

	return &sess, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) ListRecentSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Session
	for _, sess := range s.sessions {
		if s.expired(sess) {
			continue
		}
		sess := sess
		result = append(result, &sess)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *SessionStore) Close() error {
	return nil
}

// pruneLocked drops expired sessions; mu must be held for writing.
func (s *SessionStore) pruneLocked() {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
		}
	}
}
