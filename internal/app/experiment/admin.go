package experiment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/observability"
)

// IsAdmin reports whether the session carries the admin flag.
func (s *Service) IsAdmin(ctx context.Context, id domain.SessionID) bool {
	if id == "" {
		return false
	}
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return false
	}
	return session.Admin
}

// GrantAdmin creates a new admin session. Participant sessions are never
// promoted: their ids end up in the results file.
func (s *Service) GrantAdmin(ctx context.Context) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:           domain.SessionID(s.newID()),
		CurrentBlock: domain.BlockBW,
		Admin:        true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "creating admin session")
	}
	observability.LoggerFromContext(ctx).Info().Msg("admin signed in")
	return session, nil
}

// RevokeAdmin deletes an admin session. Unknown and participant sessions are
// left alone.
func (s *Service) RevokeAdmin(ctx context.Context, id domain.SessionID) error {
	if !s.IsAdmin(ctx, id) {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, id); err != nil {
		return errors.Wrap(err, "deleting admin session")
	}
	observability.LoggerFromContext(ctx).Info().Msg("admin signed out")
	return nil
}

// RecentSessions lists the newest participant sessions for the dashboard.
func (s *Service) RecentSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	sessions, err := s.sessions.ListRecentSessions(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := sessions[:0]
	for _, sess := range sessions {
		if !sess.Admin {
			out = append(out, sess)
		}
	}
	return out, nil
}
