// Package worker drives the generation queue in the background: a periodic
// sweep claims and executes pending entries so batches progress even when no
// client is polling.
package worker

import (
	"context"
	"time"

	"github.com/storyforge/storyforge/internal/config"
	"github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
	Svc domain.Service
}

type Worker struct {
	log      *zap.Logger
	svc      domain.Service
	interval time.Duration
	batch    int
}

func New(p Params) *Worker {
	return &Worker{
		log:      p.Log.Named("generation.worker"),
		svc:      p.Svc,
		interval: p.Cfg.Generation.SweepInterval,
		batch:    p.Cfg.Generation.SweepBatchSize,
	}
}

// RunOnce performs a single sweep and reports how many entries it executed.
func (w *Worker) RunOnce(ctx context.Context) int {
	ctx = orgcontext.WithPrivileged(ctx)

	processed, err := w.svc.ProcessNextItems(ctx, w.batch)
	if err != nil {
		w.log.Error("sweep failed", zap.Error(err))
		return processed
	}
	if processed > 0 {
		w.log.Debug("sweep processed entries", zap.Int("count", processed))
	}
	return processed
}

// RunForever sweeps on the configured interval until ctx is cancelled. A
// sweep that drained a full batch re-runs immediately to work the backlog.
func (w *Worker) RunForever(ctx context.Context) {
	w.log.Info("generation worker started",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batch))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("generation worker stopped")
			return
		case <-ticker.C:
			for w.RunOnce(ctx) >= w.batch {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}
