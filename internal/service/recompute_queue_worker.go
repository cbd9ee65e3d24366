package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxengine/internal/domain"
	"taxengine/internal/logger"
	"taxengine/internal/port"
)

// PeriodRecomputer rebuilds the summaries of one (entity, period).
type PeriodRecomputer interface {
	RecomputePeriod(ctx context.Context, entityID uuid.UUID, period domain.TaxPeriod) error
}

// RecomputeQueueConfig holds settings for the recompute queue worker.
type RecomputeQueueConfig struct {
	PollInterval time.Duration
	MaxRetries   int
	Concurrency  int
	// JobTimeout bounds one rebuild. Zero means one minute.
	JobTimeout   time.Duration
	// StaleAfter is how long a claimed request may stay processing before
	// another poll claims it again. It is at least twice JobTimeout.
	StaleAfter   time.Duration
}

// RecomputeQueueWorker polls for pending period rebuilds and runs them.
type RecomputeQueueWorker struct {
	queue      port.RecomputeQueueRepository
	recomputer PeriodRecomputer
	cfg        RecomputeQueueConfig
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewRecomputeQueueWorker creates a new RecomputeQueueWorker.
func NewRecomputeQueueWorker(queue port.RecomputeQueueRepository, recomputer PeriodRecomputer, cfg RecomputeQueueConfig, log *zap.Logger) *RecomputeQueueWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.StaleAfter < 2*cfg.JobTimeout {
		cfg.StaleAfter = 2 * cfg.JobTimeout
	}
	return &RecomputeQueueWorker{
		queue:      queue,
		recomputer: recomputer,
		cfg:        cfg,
		logger:     logger.OrNop(log),
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight rebuilds have finished.
func (w *RecomputeQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	w.logger.Info("recomputeQueueWorker: started",
		zap.Duration("poll", w.cfg.PollInterval),
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("max_retries", w.cfg.MaxRetries),
		zap.Duration("stale_after", w.cfg.StaleAfter))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("recomputeQueueWorker: shutting down, waiting for in-flight rebuilds")
			w.wg.Wait()
			w.logger.Info("recomputeQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			reqs, err := w.queue.ClaimPending(ctx, available, time.Now().Add(-w.cfg.StaleAfter))
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.logger.Error("recomputeQueueWorker: ClaimPending failed", zap.Error(err))
				continue
			}

			for i := range reqs {
				req := reqs[i]

				sem <- struct{}{}
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()

					// Fresh context so in-flight rebuilds complete during shutdown.
					jobCtx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
					defer cancel()
					w.process(jobCtx, &req)
				}()
			}
		}
	}
}

func (w *RecomputeQueueWorker) process(ctx context.Context, req *domain.RecomputeRequest) {
	period := req.Period()
	w.logger.Debug("recomputeQueueWorker: rebuilding",
		zap.Stringer("request_id", req.ID),
		zap.Stringer("entity_id", req.EntityID),
		zap.Stringer("period", period),
		zap.Int("attempt", req.Attempts))

	if err := w.recomputer.RecomputePeriod(ctx, req.EntityID, period); err != nil {
		w.logger.Warn("recomputeQueueWorker: rebuild failed",
			zap.Stringer("request_id", req.ID),
			zap.Stringer("entity_id", req.EntityID),
			zap.Stringer("period", period),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err))
		if markErr := w.queue.MarkFailed(ctx, req.ID, err.Error(), w.cfg.MaxRetries); markErr != nil {
			w.logger.Error("recomputeQueueWorker: MarkFailed failed", zap.Stringer("request_id", req.ID), zap.Error(markErr))
		}
		return
	}
	if err := w.queue.MarkDone(ctx, req.ID); err != nil {
		w.logger.Error("recomputeQueueWorker: MarkDone failed", zap.Stringer("request_id", req.ID), zap.Error(err))
	}
}
