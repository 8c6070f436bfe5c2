package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ResultsCSV, cfg.ResultsBackend)
	assert.Equal(t, SessionMemory, cfg.SessionBackend)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.Backup.AutoCommit)
	assert.False(t, cfg.Backup.SyncPush)
	assert.Equal(t, 16, cfg.Backup.QueueSize)
	assert.Equal(t, "main", cfg.Backup.GitHubBranch)
	assert.Equal(t, filepath.Join("data", "results.csv"), cfg.ResultsPath())
	assert.False(t, cfg.Backup.GitHubConfigured())
}

func TestLoadHistoricalVariableNames(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_OWNER", "lab")
	t.Setenv("GITHUB_REPO", "results")
	t.Setenv("AUTO_PUSH_RESULTS", "true")
	t.Setenv("ADMIN_PASSWORD", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Backup.GitHubToken)
	assert.True(t, cfg.Backup.GitHubConfigured())
	assert.True(t, cfg.Backup.SyncPush)
	assert.Equal(t, "hunter2", cfg.AdminPassword)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			ResultsBackend: ResultsCSV,
			SessionBackend: SessionMemory,
			AdminPassword:  "pw",
			Backup:         BackupConfig{QueueSize: 4},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "memory results", mutate: func(c *Config) { c.ResultsBackend = ResultsMemory }},
		{name: "sqlite results", mutate: func(c *Config) { c.ResultsBackend = ResultsSQLite }},
		{name: "unknown results", mutate: func(c *Config) { c.ResultsBackend = "xlsx" }, wantErr: "RESULTS_BACKEND"},
		{name: "redis without url", mutate: func(c *Config) { c.SessionBackend = SessionRedis }, wantErr: "REDIS_URL"},
		{name: "firestore without project", mutate: func(c *Config) { c.SessionBackend = SessionFirestore }, wantErr: "GCP_PROJECT"},
		{name: "unknown sessions", mutate: func(c *Config) { c.SessionBackend = "etcd" }, wantErr: "SESSION_BACKEND"},
		{name: "blank password", mutate: func(c *Config) { c.AdminPassword = "  " }, wantErr: "ADMIN_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateClampsQueueSize(t *testing.T) {
	cfg := Config{ResultsBackend: ResultsCSV, SessionBackend: SessionMemory, AdminPassword: "pw"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Backup.QueueSize)
}

func TestSQLiteFile(t *testing.T) {
	cfg := Config{DataDir: "data", SQLitePath: "results.db"}
	assert.Equal(t, filepath.Join("data", "results.db"), cfg.SQLiteFile())

	abs := filepath.Join(t.TempDir(), "r.db")
	cfg.SQLitePath = abs
	assert.Equal(t, abs, cfg.SQLiteFile())
}
