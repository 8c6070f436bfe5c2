package backup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const recoverTimeout = 5 * time.Second

// GitHistoryRecoverer reads the last committed version of the results file.
type GitHistoryRecoverer struct {
	repoDir   string
	localPath string
}

func NewGitHistoryRecoverer(repoDir, localPath string) *GitHistoryRecoverer {
	return &GitHistoryRecoverer{repoDir: repoDir, localPath: localPath}
}

func (r *GitHistoryRecoverer) Name() string { return "git-history" }

func (r *GitHistoryRecoverer) Recover(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, recoverTimeout)
	defer cancel()

	rel, err := relPath(r.repoDir, r.localPath)
	if err != nil {
		return nil, err
	}
	return runGit(ctx, r.repoDir, "show", "HEAD:"+rel)
}

// GitHubRawRecoverer downloads the results file from the raw content host.
type GitHubRawRecoverer struct {
	rawURL string
	cfg    GitHubConfig
	client *http.Client
}

func NewGitHubRawRecoverer(rawURL string, cfg GitHubConfig, base *http.Client) *GitHubRawRecoverer {
	if rawURL == "" {
		rawURL = "https://raw.githubusercontent.com"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return &GitHubRawRecoverer{rawURL: rawURL, cfg: cfg, client: bearerClient(base, cfg.Token)}
}

func (r *GitHubRawRecoverer) Name() string { return "github-raw" }

func (r *GitHubRawRecoverer) Recover(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, recoverTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/%s/%s/%s/%s", strings.TrimRight(r.rawURL, "/"),
		r.cfg.Owner, r.cfg.Repo, r.cfg.Branch, strings.TrimLeft(r.cfg.Path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building raw request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "downloading raw results")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("downloading raw results: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading raw results")
	}
	if len(data) == 0 {
		return nil, errors.New("raw results file is empty")
	}
	return data, nil
}
