// Package redis stores sessions as JSON values with a TTL, so sessions survive
// restarts and are shared by every instance behind a load balancer.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

const (
	keyPrefix = "session:"
	recentKey = "sessions:recent"
)

type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore connects to redisURL and checks the connection.
func NewSessionStore(ctx context.Context, redisURL string, ttl time.Duration) (*SessionStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required for the redis session store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}
	return &SessionStore{client: client, ttl: ttl}, nil
}

type sessionJSON struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	CurrentBlock  string    `json:"current_block"`
	CurrentTrial  int       `json:"current_trial"`
	Admin         bool      `json:"admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toJSON(s *domain.Session) ([]byte, error) {
	data, err := json.Marshal(sessionJSON{
		ID:            string(s.ID),
		ParticipantID: string(s.ParticipantID),
		CurrentBlock:  string(s.CurrentBlock),
		CurrentTrial:  s.CurrentTrial,
		Admin:         s.Admin,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	})
	return data, errors.Wrap(err, "marshal session")
}

func fromJSON(data string) (*domain.Session, error) {
	var doc sessionJSON
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshal session")
	}
	return &domain.Session{
		ID:            domain.SessionID(doc.ID),
		ParticipantID: domain.ParticipantID(doc.ParticipantID),
		CurrentBlock:  domain.BlockType(doc.CurrentBlock),
		CurrentTrial:  doc.CurrentTrial,
		Admin:         doc.Admin,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

func key(id domain.SessionID) string {
	return keyPrefix + string(id)
}

func (s *SessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	data, err := toJSON(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, key(session.ID), data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "redis CreateSession")
	}
	if !ok {
		return domain.ErrSessionExists
	}

	score := float64(session.CreatedAt.UnixNano())
	if err := s.client.ZAdd(ctx, recentKey, redis.Z{Score: score, Member: string(session.ID)}).Err(); err != nil {
		return errors.Wrap(err, "redis index session")
	}
	return nil
}

// UpdateSession overwrites an existing session and refreshes its TTL.
func (s *SessionStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	data, err := toJSON(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, key(session.ID), data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "redis UpdateSession")
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "redis GetSession")
	}
	return fromJSON(data)
}

func (s *SessionStore) DeleteSession(ctx context.Context, id domain.SessionID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key(id))
	pipe.ZRem(ctx, recentKey, string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis DeleteSession")
	}
	return nil
}

// ListRecentSessions reads the recency index and skips entries whose session
// has expired, removing them from the index.
func (s *SessionStore) ListRecentSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) * 2
	}
	ids, err := s.client.ZRevRange(ctx, recentKey, 0, stop).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis list sessions")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis load sessions")
	}

	var (
		out   []*domain.Session
		stale []any
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := fromJSON(raw)
		if err != nil {
			return nil, err
		}
		if limit <= 0 || len(out) < limit {
			out = append(out, sess)
		}
	}
	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, recentKey, stale...).Err()
	}
	return out, nil
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}
