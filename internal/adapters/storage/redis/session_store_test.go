package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/perception-lab/internal/adapters/storage/redis"
	"github.com/PabloGalante/perception-lab/internal/domain"
)

func newStore(t *testing.T) *redis.SessionStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := redis.NewSessionStore(context.Background(), url, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisSessionRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := &domain.Session{
		ID:            domain.SessionID(uuid.NewString()),
		ParticipantID: "p1",
		CurrentBlock:  domain.BlockColoredBG,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateSession(ctx, sess))
	assert.ErrorIs(t, s.CreateSession(ctx, sess), domain.ErrSessionExists)

	sess.Admin = true
	sess.CurrentTrial = 7
	require.NoError(t, s.UpdateSession(ctx, sess))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Admin)
	assert.Equal(t, 7, got.CurrentTrial)
	assert.Equal(t, domain.BlockColoredBG, got.CurrentBlock)
	assert.True(t, now.Equal(got.CreatedAt))

	recent, err := s.ListRecentSessions(ctx, 50)
	require.NoError(t, err)
	var found bool
	for _, r := range recent {
		found = found || r.ID == sess.ID
	}
	assert.True(t, found)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, s.DeleteSession(ctx, sess.ID))
}

func TestRedisMissingSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, domain.SessionID(uuid.NewString()))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	err = s.UpdateSession(ctx, &domain.Session{ID: domain.SessionID(uuid.NewString())})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
