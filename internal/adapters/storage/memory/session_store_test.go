package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)

	now := time.Now()
	sess := &domain.Session{ID: "s1", ParticipantID: "p1", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateSession(ctx, sess))
	assert.ErrorIs(t, store.CreateSession(ctx, sess), domain.ErrSessionExists)

	sess.CurrentBlock = domain.BlockColor
	sess.CurrentTrial = 4
	require.NoError(t, store.UpdateSession(ctx, sess))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.BlockColor, got.CurrentBlock)
	assert.Equal(t, 4, got.CurrentTrial)

	// callers get a copy
	got.CurrentTrial = 99
	again, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, again.CurrentTrial)

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, store.UpdateSession(ctx, &domain.Session{ID: "missing"}), domain.ErrSessionNotFound)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, store.DeleteSession(ctx, "s1"))
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.CreateSession(ctx, &domain.Session{ID: "old", CreatedAt: clock, UpdatedAt: clock}))

	clock = clock.Add(2 * time.Hour)
	_, err := store.GetSession(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, store.CreateSession(ctx, &domain.Session{ID: "new", CreatedAt: clock, UpdatedAt: clock}))
	assert.Len(t, store.sessions, 1)
}

func TestListRecentSessions(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []domain.SessionID{"a", "b", "c"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateSession(ctx, &domain.Session{ID: id, CreatedAt: ts, UpdatedAt: ts}))
	}

	got, err := store.ListRecentSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.SessionID("c"), got[0].ID)
	assert.Equal(t, domain.SessionID("b"), got[1].ID)
}
