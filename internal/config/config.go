package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type SessionBackend string

const (
	SessionMemory    SessionBackend = "memory"
	SessionRedis     SessionBackend = "redis"
	SessionFirestore SessionBackend = "firestore"
)

type ResultsBackend string

const (
	ResultsCSV    ResultsBackend = "csv"
	ResultsSQLite ResultsBackend = "sqlite"
	// ResultsMemory keeps results in process memory; local development only.
	ResultsMemory ResultsBackend = "memory"
)

// Config is assembled once at startup. Nested fields fall back to the
// bare variable name in their tag (e.g. GITHUB_TOKEN), so deployments
// configured with the historical variable names keep working.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	// RepoDir is the working tree used for local git backup and recovery.
	RepoDir string `envconfig:"REPO_DIR" default:"."`
	DataDir string `envconfig:"DATA_DIR" default:"data"`

	ResultsBackend ResultsBackend `envconfig:"RESULTS_BACKEND" default:"csv"`
	ResultsFile    string         `envconfig:"RESULTS_FILE" default:"results.csv"`
	SQLitePath     string         `envconfig:"SQLITE_PATH" default:"results.db"`

	SessionBackend SessionBackend `envconfig:"SESSION_BACKEND" default:"memory"`
	SessionTTL     time.Duration  `envconfig:"SESSION_TTL" default:"12h"`
	RedisURL       string         `envconfig:"REDIS_URL"`
	GCPProjectID   string         `envconfig:"GCP_PROJECT"`

	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
	CookieSecure  bool   `envconfig:"COOKIE_SECURE" default:"false"`
	StimuliFile   string `envconfig:"STIMULI_FILE"`

	Backup BackupConfig
	Log    LogConfig
}

type BackupConfig struct {
	// AutoCommit disables every backup path when false.
	AutoCommit bool `envconfig:"AUTO_COMMIT_RESULTS" default:"true"`
	// SyncPush runs the backup inline before the HTTP response is written.
	SyncPush bool `envconfig:"AUTO_PUSH_RESULTS" default:"false"`
	// GitPush enables pull --rebase + push after a local commit.
	GitPush bool `envconfig:"GIT_PUSH_RESULTS" default:"true"`

	GitHubToken  string `envconfig:"GITHUB_TOKEN"`
	GitHubOwner  string `envconfig:"GITHUB_OWNER"`
	GitHubRepo   string `envconfig:"GITHUB_REPO"`
	GitHubBranch string `envconfig:"GITHUB_BRANCH" default:"main"`
	GitHubPath   string `envconfig:"GITHUB_PATH" default:"data/results.csv"`
	GitHubAPIURL string `envconfig:"GITHUB_API_URL" default:"https://api.github.com"`
	GitHubRawURL string `envconfig:"GITHUB_RAW_URL" default:"https://raw.githubusercontent.com"`

	QueueSize   int           `envconfig:"BACKUP_QUEUE_SIZE" default:"16"`
	SyncTimeout time.Duration `envconfig:"BACKUP_SYNC_TIMEOUT" default:"30s"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// GitHubConfigured reports whether the remote repository coordinates are complete.
func (b BackupConfig) GitHubConfigured() bool {
	return b.GitHubOwner != "" && b.GitHubRepo != "" && b.GitHubBranch != ""
}

// SQLiteFile is the sqlite database inside DataDir unless SQLitePath is absolute.
func (c *Config) SQLiteFile() string {
	if filepath.IsAbs(c.SQLitePath) {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, c.SQLitePath)
}

// ResultsPath is the CSV results file inside DataDir.
func (c *Config) ResultsPath() string {
	return filepath.Join(c.DataDir, c.ResultsFile)
}

// LegacyResultsPaths lists older locations of the results file that are
// migrated into ResultsPath on startup.
func (c *Config) LegacyResultsPaths() []string {
	return []string{
		filepath.Join(c.RepoDir, "results.csv"),
		filepath.Join(c.DataDir, "experience_results.csv"),
	}
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "processing environment configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.SessionBackend {
	case SessionMemory:
	case SessionRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL must be set for the redis session backend")
		}
	case SessionFirestore:
		if c.GCPProjectID == "" {
			return errors.New("GCP_PROJECT must be set for the firestore session backend")
		}
	default:
		return errors.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	switch c.ResultsBackend {
	case ResultsCSV, ResultsSQLite, ResultsMemory:
	default:
		return errors.Errorf("unknown RESULTS_BACKEND %q", c.ResultsBackend)
	}

	if strings.TrimSpace(c.AdminPassword) == "" {
		return errors.New("ADMIN_PASSWORD must not be empty")
	}
	if c.Backup.QueueSize <= 0 {
		c.Backup.QueueSize = 1
	}
	return nil
}
