package backup

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/observability"
)

type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeSync     Mode = "sync"
	ModeAsync    Mode = "async"
)

// Pusher is satisfied by Chain and by a single Target.
type Pusher interface {
	Push(ctx context.Context, message string) error
}

// Dispatcher decides when a backup runs. It implements domain.Backup.
type Dispatcher struct {
	mode        Mode
	pusher      Pusher
	queue       *Queue
	syncTimeout time.Duration
}

type DispatcherOption func(*Dispatcher)

// WithSyncTimeout bounds a sync backup. Defaults to 30s.
func WithSyncTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.syncTimeout = d
		}
	}
}

// WithQueueSize sets the async backlog. Defaults to 16.
func WithQueueSize(n int) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.queue = NewQueue(1, n, disp.queueError)
	}
}

// NewDispatcher builds a dispatcher. In async mode Start must be called
// before jobs run.
func NewDispatcher(mode Mode, pusher Pusher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		mode:        mode,
		pusher:      pusher,
		syncTimeout: 30 * time.Second,
	}
	d.queue = NewQueue(1, 16, d.queueError)
	for _, opt := range opts {
		opt(d)
	}
	if pusher == nil {
		d.mode = ModeDisabled
	}
	return d
}

func (d *Dispatcher) Mode() Mode { return d.mode }

func (d *Dispatcher) queueError(err error) {
	observability.WithFields(map[string]any{
		"component": "backup",
		"mode":      string(d.mode),
	}).Warn().Err(err).Msg("results backup failed")
}

// Start runs the async worker until Drain.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.mode == ModeAsync {
		d.queue.Start(ctx)
	}
}

// Trigger requests a backup. It never fails; in sync mode it returns after
// the backup finished or timed out.
func (d *Dispatcher) Trigger(ctx context.Context, message string) {
	log := observability.LoggerFromContext(ctx)

	switch d.mode {
	case ModeSync:
		// the backup outlives a cancelled request
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.syncTimeout)
		defer cancel()
		if err := d.pusher.Push(syncCtx, message); err != nil {
			log.Warn().Err(err).Msg("results backup failed")
		}
	case ModeAsync:
		reqID := observability.RequestID(ctx)
		err := d.queue.TrySubmit(func(jobCtx context.Context) error {
			if reqID != "" {
				jobCtx = observability.WithRequestID(jobCtx, reqID)
			}
			return d.pusher.Push(jobCtx, message)
		})
		switch {
		case errors.Is(err, ErrQueueFull):
			log.Info().Str("message", message).Msg("backup queue full, relying on pending backup")
		case err != nil:
			log.Warn().Err(err).Msg("backup not queued")
		}
	}
}

// Drain waits for queued backups. It is a no-op outside async mode.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if d.mode != ModeAsync {
		return nil
	}
	return d.queue.Drain(ctx)
}
