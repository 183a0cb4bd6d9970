// Package sweeper runs the periodic expiry pass over feedback requests and
// multipart uploads. Sweeps are conditional bulk updates, so overlapping runs
// and restarts are harmless.
package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/practika/backend/internal/uploads"
	"github.com/practika/backend/pkg/queue"
)

// FeedbackStore expires overdue open feedback requests.
type FeedbackStore interface {
	SweepAllOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// UploadStore expires lapsed multipart uploads.
type UploadStore interface {
	SweepExpired(ctx context.Context, now time.Time) ([]uploads.ExpiredUpload, error)
}

// AbortEnqueuer schedules storage-side cleanup for expired uploads.
type AbortEnqueuer interface {
	EnqueueUploadAbort(ctx context.Context, payload queue.UploadAbortPayload) error
}

// Sweeper expires overdue requests and lapsed uploads.
type Sweeper struct {
	feedback FeedbackStore
	uploads  UploadStore
	enqueuer AbortEnqueuer
	logger   *zap.Logger
}

// New creates a sweeper. enqueuer may be nil when no queue is configured;
// expired uploads are then only marked locally.
func New(feedback FeedbackStore, uploadStore UploadStore, enqueuer AbortEnqueuer, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{feedback: feedback, uploads: uploadStore, enqueuer: enqueuer, logger: logger}
}

// Sweep performs one expiry pass. Storage-side abort jobs are best effort; an
// enqueue failure is logged and the next pass will not retry it, since the row
// is already terminal. The DLQ catches jobs that were enqueued but failed.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now()

	expired, err := s.feedback.SweepAllOverdue(ctx, now)
	if err != nil {
		s.logger.Error("feedback sweep failed", zap.Error(err))
		return err
	}
	if len(expired) > 0 {
		s.logger.Info("expired overdue feedback requests", zap.Int("count", len(expired)))
	}

	lapsed, err := s.uploads.SweepExpired(ctx, now)
	if err != nil {
		s.logger.Error("upload sweep failed", zap.Error(err))
		return err
	}
	for _, u := range lapsed {
		if s.enqueuer == nil {
			continue
		}
		payload := queue.UploadAbortPayload{
			UploadID:        u.ID,
			StorageKey:      u.StorageKey,
			StorageUploadID: u.StorageUploadID,
		}
		if err := s.enqueuer.EnqueueUploadAbort(ctx, payload); err != nil {
			s.logger.Warn("enqueue upload abort failed",
				zap.Error(err),
				zap.String("upload_id", u.ID.String()),
			)
		}
	}
	if len(lapsed) > 0 {
		s.logger.Info("expired lapsed uploads", zap.Int("count", len(lapsed)))
	}
	return nil
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if err := s.Sweep(ctx); err != nil {
		s.logger.Error("initial sweep failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
