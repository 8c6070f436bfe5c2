// Package backup copies the results file to a remote after each write. Every
// target is best effort: failures are logged and never reach the caller.
package backup

import (
	"context"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/observability"
)

// Target publishes the current results file with a commit message.
type Target interface {
	Name() string
	Push(ctx context.Context, message string) error
}

var errNoTargets = errors.New("no backup target succeeded")

// Chain tries its targets in order until one succeeds.
type Chain []Target

func (c Chain) Push(ctx context.Context, message string) error {
	log := observability.LoggerFromContext(ctx)
	for _, t := range c {
		if err := t.Push(ctx, message); err != nil {
			log.Warn().Err(err).Str("target", t.Name()).Msg("backup target failed")
			continue
		}
		log.Info().Str("target", t.Name()).Str("message", message).Msg("results backed up")
		return nil
	}
	return errNoTargets
}
