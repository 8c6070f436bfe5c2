package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

type Store struct {
	client *firestore.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a Firestore session store for projectID (GCP_PROJECT).
// Sessions idle for longer than ttl are reported as missing.
func NewStore(ctx context.Context, projectID string, ttl time.Duration) (*Store, error) {
	if projectID == "" {
		return nil, errors.New("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}

	return &Store{client: client, ttl: ttl, now: time.Now}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) expired(doc sessionDoc) bool {
	return s.ttl > 0 && s.now().Sub(doc.UpdatedAt) > s.ttl
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	ParticipantID string    `firestore:"participant_id"`
	CurrentBlock  string    `firestore:"current_block"`
	CurrentTrial  int       `firestore:"current_trial"`
	Admin         bool      `firestore:"admin"`
	CreatedAt     time.Time `firestore:"created_at"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

func toDoc(session *domain.Session) sessionDoc {
	return sessionDoc{
		ParticipantID: string(session.ParticipantID),
		CurrentBlock:  string(session.CurrentBlock),
		CurrentTrial:  session.CurrentTrial,
		Admin:         session.Admin,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
}

func (d sessionDoc) toSession(id domain.SessionID) *domain.Session {
	return &domain.Session{
		ID:            id,
		ParticipantID: domain.ParticipantID(d.ParticipantID),
		CurrentBlock:  domain.BlockType(d.CurrentBlock),
		CurrentTrial:  d.CurrentTrial,
		Admin:         d.Admin,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDoc(session.ID).Create(ctx, toDoc(session))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrSessionExists
		}
		return errors.Wrap(err, "firestore CreateSession")
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	doc := map[string]interface{}{
		"participant_id": string(session.ParticipantID),
		"current_block":  string(session.CurrentBlock),
		"current_trial":  session.CurrentTrial,
		"admin":          session.Admin,
		"created_at":     session.CreatedAt,
		"updated_at":     session.UpdatedAt,
	}

	var updates []firestore.Update
	for path, v := range doc {
		updates = append(updates, firestore.Update{Path: path, Value: v})
	}
	_, err := s.sessionDoc(session.ID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrSessionNotFound
		}
		return errors.Wrap(err, "firestore UpdateSession")
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "firestore GetSession")
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrap(err, "firestore GetSession decode")
	}
	if s.expired(doc) {
		return nil, domain.ErrSessionNotFound
	}

	return doc.toSession(id), nil
}

// DeleteSession succeeds for missing documents too.
func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	if _, err := s.sessionDoc(id).Delete(ctx); err != nil {
		return errors.Wrap(err, "firestore DeleteSession")
	}
	return nil
}

func (s *Store) ListRecentSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	q := s.sessionsCol().OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, errors.Wrap(err, "firestore ListRecentSessions")
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrap(err, "decode sessionDoc")
		}
		if s.expired(doc) {
			continue
		}

		out = append(out, doc.toSession(domain.SessionID(snap.Ref.ID)))
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
