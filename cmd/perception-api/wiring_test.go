package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/perception-lab/internal/adapters/backup"
	"github.com/PabloGalante/perception-lab/internal/config"
)

func TestNewDispatcherMode(t *testing.T) {
	tests := []struct {
		name      string
		localPath string
		backup    config.BackupConfig
		want      backup.Mode
	}{
		{name: "async by default", localPath: "data/results.csv", backup: config.BackupConfig{AutoCommit: true}, want: backup.ModeAsync},
		{name: "sync push", localPath: "data/results.csv", backup: config.BackupConfig{AutoCommit: true, SyncPush: true}, want: backup.ModeSync},
		{name: "auto commit off", localPath: "data/results.csv", backup: config.BackupConfig{SyncPush: true}, want: backup.ModeDisabled},
		{name: "no file to push", backup: config.BackupConfig{AutoCommit: true}, want: backup.ModeDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{RepoDir: ".", Backup: tt.backup}
			d := newDispatcher(cfg, nil, tt.localPath)
			assert.Equal(t, tt.want, d.Mode())
		})
	}
}

func TestOpenResultsBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := &config.Config{
		RepoDir:        dir,
		DataDir:        filepath.Join(dir, "data"),
		ResultsFile:    "results.csv",
		SQLitePath:     "results.db",
		ResultsBackend: config.ResultsCSV,
	}

	store, path, err := openResults(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.ResultsPath(), path)
	assert.Implements(t, (*backup.Snapshotter)(nil), store, "GitHub uploads must read under the store lock")
	st, err := store.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	require.NoError(t, store.Close())

	cfg.ResultsBackend = config.ResultsSQLite
	store, path, err = openResults(ctx, cfg)
	require.NoError(t, err)
	assert.Empty(t, path)
	require.NoError(t, store.Close())

	cfg.ResultsBackend = config.ResultsMemory
	store, path, err = openResults(ctx, cfg)
	require.NoError(t, err)
	assert.Empty(t, path)
	require.NoError(t, store.Close())
}

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("RESULTS_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"status"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "backend:  memory")
	assert.Contains(t, out.String(), "entries:  0")
}
