package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	committerName  = "Results Bot"
	committerEmail = "results-bot@local"

	getTimeout = 10 * time.Second
	putTimeout = 20 * time.Second
)

type GitHubConfig struct {
	APIURL string
	Owner  string
	Repo   string
	Branch string
	// Path is the file path inside the repository.
	Path  string
	Token string
}

// Snapshotter returns a consistent copy of the results file.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// FileSnapshot reads the file at its path with no coordination with writers.
// It serves stores that do not expose a snapshot of their own.
type FileSnapshot string

func (p FileSnapshot) Snapshot(context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, errors.Wrap(err, "reading results file")
	}
	return data, nil
}

// GitHubTarget writes the results file through the repository contents API.
type GitHubTarget struct {
	cfg    GitHubConfig
	source Snapshotter
	client *http.Client
}

// NewGitHubTarget pushes whatever source returns. base may be nil; it is
// wrapped with a bearer token transport.
func NewGitHubTarget(cfg GitHubConfig, source Snapshotter, base *http.Client) *GitHubTarget {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return &GitHubTarget{
		cfg:    cfg,
		source: source,
		client: bearerClient(base, cfg.Token),
	}
}

func bearerClient(base *http.Client, token string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	if token == "" {
		return base
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

func (g *GitHubTarget) Name() string { return "github" }

func (g *GitHubTarget) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(g.cfg.APIURL, "/"), g.cfg.Owner, g.cfg.Repo, strings.TrimLeft(g.cfg.Path, "/"))
}

type putContentsRequest struct {
	Message   string    `json:"message"`
	Content   string    `json:"content"`
	Branch    string    `json:"branch"`
	Committer committer `json:"committer"`
	SHA       string    `json:"sha,omitempty"`
}

type committer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Push uploads the file. A rejected PUT is retried once with a fresh sha.
func (g *GitHubTarget) Push(ctx context.Context, message string) error {
	data, err := g.source.Snapshot(ctx)
	if err != nil {
		return err
	}

	req := putContentsRequest{
		Message:   message,
		Content:   base64.StdEncoding.EncodeToString(data),
		Branch:    g.cfg.Branch,
		Committer: committer{Name: committerName, Email: committerEmail},
	}

	// a missing sha means the file is new
	req.SHA, _ = g.currentSHA(ctx)
	firstErr := g.put(ctx, req)
	if firstErr == nil {
		return nil
	}

	sha, err := g.currentSHA(ctx)
	if err != nil {
		return errors.Wrapf(err, "refreshing sha after %v", firstErr)
	}
	req.SHA = sha
	return errors.Wrap(g.put(ctx, req), "retrying contents update")
}

func (g *GitHubTarget) currentSHA(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, getTimeout)
	defer cancel()

	u := g.contentsURL() + "?ref=" + url.QueryEscape(g.cfg.Branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", errors.Wrap(err, "building contents request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetching contents")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetching contents: status %d", resp.StatusCode)
	}
	var body struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decoding contents")
	}
	return body.SHA, nil
}

func (g *GitHubTarget) put(ctx context.Context, payload putContentsRequest) error {
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding contents payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.contentsURL(), bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "building put request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "updating contents")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.Errorf("updating contents: status %d", resp.StatusCode)
	}
	return nil
}
