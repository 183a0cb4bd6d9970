package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/practika/backend/pkg/queue"
)

// StorageAborter abandons a storage-side multipart upload session.
type StorageAborter interface {
	AbortMultipart(ctx context.Context, key, uploadID string) error
}

// AbortProcessor drains the upload abort queue, abandoning storage-side
// multipart sessions for uploads that expired or failed to initiate.
type AbortProcessor struct {
	storage StorageAborter
	queue   *queue.Queue
	logger  *zap.Logger
}

// NewAbortProcessor creates an upload abort processor.
func NewAbortProcessor(storage StorageAborter, q *queue.Queue, logger *zap.Logger) *AbortProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbortProcessor{storage: storage, queue: q, logger: logger}
}

// Process executes one abort job. An upload already gone on the storage side
// counts as success, so redelivery and manual aborts racing the sweeper are
// harmless.
func (p *AbortProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeUploadAbort {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.UploadAbortPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := p.storage.AbortMultipart(ctx, payload.StorageKey, payload.StorageUploadID); err != nil {
		var noSuchUpload *types.NoSuchUpload
		if errors.As(err, &noSuchUpload) {
			p.logger.Info("multipart session already gone",
				zap.String("upload_id", payload.UploadID.String()),
				zap.String("storage_key", payload.StorageKey),
			)
			return nil
		}
		return fmt.Errorf("abort multipart: %w", err)
	}

	p.logger.Info("storage-side upload aborted",
		zap.String("upload_id", payload.UploadID.String()),
		zap.String("storage_key", payload.StorageKey),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *AbortProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("abort worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
