package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/adapters/backup"
	"github.com/PabloGalante/perception-lab/internal/adapters/storage/csvfile"
	firestorestore "github.com/PabloGalante/perception-lab/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/perception-lab/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/perception-lab/internal/adapters/storage/redis"
	sqlitestore "github.com/PabloGalante/perception-lab/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/perception-lab/internal/config"
	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/observability"
)

const githubHTTPTimeout = 30 * time.Second

func githubConfig(cfg *config.Config) backup.GitHubConfig {
	b := cfg.Backup
	return backup.GitHubConfig{
		APIURL: b.GitHubAPIURL,
		Owner:  b.GitHubOwner,
		Repo:   b.GitHubRepo,
		Branch: b.GitHubBranch,
		Path:   b.GitHubPath,
		Token:  b.GitHubToken,
	}
}

// openResults opens the configured result store. The returned path is the
// file backups should push, empty when the backend has none.
func openResults(ctx context.Context, cfg *config.Config) (domain.ResultStore, string, error) {
	log := observability.Logger()

	switch cfg.ResultsBackend {
	case config.ResultsSQLite:
		path := cfg.SQLiteFile()
		log.Info().Str("path", path).Msg("[STORE] Using sqlite results store")
		store, err := sqlitestore.NewStore(ctx, path)
		if err != nil {
			return nil, "", err
		}
		// WAL keeps recent rows out of the main file, so it is not pushed anywhere.
		return store, "", nil

	case config.ResultsMemory:
		log.Warn().Msg("[STORE] Using in-memory results store, results are lost on exit")
		return memstore.NewResultStore(), "", nil

	default:
		path := cfg.ResultsPath()
		recoverers := []csvfile.Recoverer{backup.NewGitHistoryRecoverer(cfg.RepoDir, path)}
		if cfg.Backup.GitHubConfigured() {
			client := &http.Client{Timeout: githubHTTPTimeout}
			recoverers = append(recoverers, backup.NewGitHubRawRecoverer(cfg.Backup.GitHubRawURL, githubConfig(cfg), client))
		}

		log.Info().Str("path", path).Msg("[STORE] Using CSV results store")
		store := csvfile.NewStore(path,
			csvfile.WithLegacyPaths(cfg.LegacyResultsPaths()...),
			csvfile.WithRecoverers(recoverers...),
		)
		if err := store.Open(ctx); err != nil {
			return nil, "", errors.Wrap(err, "opening CSV results store")
		}
		return store, path, nil
	}
}

func openSessions(ctx context.Context, cfg *config.Config) (domain.SessionStore, error) {
	log := observability.Logger()

	switch cfg.SessionBackend {
	case config.SessionRedis:
		log.Info().Msg("[STORE] Using redis session store")
		store, err := redisstore.NewSessionStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.SessionFirestore:
		log.Info().Str("project", cfg.GCPProjectID).Msg("[STORE] Using Firestore session store")
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		log.Info().Msg("[STORE] Using in-memory session store")
		return memstore.NewSessionStore(cfg.SessionTTL), nil
	}
}

// newDispatcher builds the backup chain for localPath: the GitHub contents
// API when a token is configured, then the local git repository. The GitHub
// upload reads through the store's snapshot when it has one.
func newDispatcher(cfg *config.Config, store domain.ResultStore, localPath string) *backup.Dispatcher {
	log := observability.Logger()
	b := cfg.Backup

	var chain backup.Chain
	if localPath != "" && b.AutoCommit {
		if b.GitHubToken != "" && b.GitHubConfigured() {
			var source backup.Snapshotter = backup.FileSnapshot(localPath)
			if snap, ok := store.(backup.Snapshotter); ok {
				source = snap
			}
			client := &http.Client{Timeout: githubHTTPTimeout}
			chain = append(chain, backup.NewGitHubTarget(githubConfig(cfg), source, client))
		}
		chain = append(chain, backup.NewGitTarget(cfg.RepoDir, localPath, b.GitPush))
	}

	mode := backup.ModeAsync
	switch {
	case len(chain) == 0:
		mode = backup.ModeDisabled
	case b.SyncPush:
		mode = backup.ModeSync
	}

	var pusher backup.Pusher
	if len(chain) > 0 {
		pusher = chain
	}

	d := backup.NewDispatcher(mode, pusher,
		backup.WithQueueSize(b.QueueSize),
		backup.WithSyncTimeout(b.SyncTimeout),
	)
	log.Info().Str("mode", string(d.Mode())).Int("targets", len(chain)).Msg("[BACKUP] results backup configured")
	return d
}
