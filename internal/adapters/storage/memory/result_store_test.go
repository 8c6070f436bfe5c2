package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

func TestResultStoreImportSkipsKnownKeys(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	first := &domain.ResultRecord{SessionID: "s1", TrialNumber: 1, Stimulus: "chien", Timestamp: "t1"}
	require.NoError(t, store.Append(ctx, first))

	report, err := store.Import(ctx, []*domain.ResultRecord{
		first,
		{SessionID: "s1", TrialNumber: 2, Stimulus: "chat", Timestamp: "t2"},
	})
	require.NoError(t, err)
	assert.Equal(t, &domain.ImportReport{Imported: 1, Skipped: 1}, report)

	st, err := store.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Append(ctx, first), domain.ErrStoreClosed)
}
