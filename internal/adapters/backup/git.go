package backup

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/observability"
)

const remoteTimeout = 10 * time.Second

// GitTarget commits the results file in a local working tree and optionally
// pushes it.
type GitTarget struct {
	repoDir   string
	localPath string
	push      bool
}

func NewGitTarget(repoDir, localPath string, push bool) *GitTarget {
	return &GitTarget{repoDir: repoDir, localPath: localPath, push: push}
}

func (g *GitTarget) Name() string { return "git" }

// Push succeeds once the commit is made. Pull and push failures are only
// logged.
func (g *GitTarget) Push(ctx context.Context, message string) error {
	if _, err := runGit(ctx, g.repoDir, "rev-parse", "--is-inside-work-tree"); err != nil {
		return errors.Wrap(err, "not a git work tree")
	}
	rel, err := relPath(g.repoDir, g.localPath)
	if err != nil {
		return err
	}
	if _, err := runGit(ctx, g.repoDir, "add", rel); err != nil {
		return errors.Wrap(err, "git add")
	}
	if _, err := runGit(ctx, g.repoDir,
		"-c", "user.email="+committerEmail, "-c", "user.name="+committerName,
		"commit", "-m", message); err != nil {
		return errors.Wrap(err, "git commit")
	}
	if !g.push {
		return nil
	}

	log := observability.LoggerFromContext(ctx)
	pullCtx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()
	if _, err := runGit(pullCtx, g.repoDir, "pull", "--rebase"); err != nil {
		log.Warn().Err(err).Msg("git pull before push failed")
	}
	pushCtx, cancelPush := context.WithTimeout(ctx, remoteTimeout)
	defer cancelPush()
	if _, err := runGit(pushCtx, g.repoDir, "push"); err != nil {
		log.Warn().Err(err).Msg("git push failed")
	}
	return nil
}

func relPath(repoDir, path string) (string, error) {
	absRepo, err := filepath.Abs(repoDir)
	if err != nil {
		return "", errors.Wrap(err, "resolving repo dir")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "resolving results path")
	}
	rel, err := filepath.Rel(absRepo, absPath)
	if err != nil {
		return "", errors.Wrap(err, "results path outside repo")
	}
	return filepath.ToSlash(rel), nil
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return nil, errors.Wrapf(err, "git %s: %s", subcommand(args), msg)
	}
	return stdout.Bytes(), nil
}

// subcommand skips leading "-c key=value" pairs.
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}
