package sqlite_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/perception-lab/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/perception-lab/internal/domain"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(trial int, stimulus string) *domain.ResultRecord {
	return &domain.ResultRecord{
		SessionID:     "s1",
		ParticipantID: "p1",
		Timestamp:     "2024-05-01T10:00:00",
		TrialNumber:   trial,
		BlockType:     "color",
		Stimulus:      stimulus,
		Correct:       trial%2 == 0,
		ReactionTime:  350.25,
		IsWord:        true,
		Choices:       []string{stimulus, "chat", "lune"},
	}
}

func TestAppendAndListKeepsOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, rec(1, "chien")))
	require.NoError(t, s.Append(ctx, rec(2, "lune")))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "chien", got[0].Stimulus)
	assert.Equal(t, []string{"lune", "chat", "lune"}, got[1].Choices)
	assert.True(t, got[1].Correct)
	assert.Equal(t, 350.25, got[1].ReactionTime)
}

func TestConcurrentAppends(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, rec(i, "chien")))
		}(i)
	}
	wg.Wait()

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32, st.Entries)
	assert.True(t, st.Exists)
}

func TestImportIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	batch := []*domain.ResultRecord{rec(1, "chien"), rec(2, "chat"), rec(2, "chat")}

	report, err := s.Import(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)

	report, err = s.Import(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	assert.Equal(t, 3, report.Skipped)
}

func TestExportWritesHeader(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, rec(1, "chien")))

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "session_id,"))
	assert.True(t, strings.HasSuffix(lines[1], "chien|chat|lune"))
}

func TestAbsentReactionTimeIsStoredAsNull(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Append(ctx, &domain.ResultRecord{SessionID: "s1", TrialNumber: 1, Stimulus: "chien", NoReactionTime: true}))
	require.NoError(t, store.Append(ctx, &domain.ResultRecord{SessionID: "s1", TrialNumber: 2, Stimulus: "chat"}))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].NoReactionTime)
	assert.False(t, got[1].NoReactionTime)
	assert.Zero(t, got[1].ReactionTime)
}
