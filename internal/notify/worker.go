package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Worker drains the notice queue: notices whose recipient has come back
// online are sent through the gateway; the rest are retried with backoff and
// end up in the DLQ after MaxRetries.
type Worker struct {
	queue    *Queue
	gateway  Gateway
	presence Presence
	logger   *zap.Logger
}

// NewWorker creates a notice delivery worker.
func NewWorker(queue *Queue, gateway Gateway, presence Presence, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: queue, gateway: gateway, presence: presence, logger: logger}
}

// Process attempts delivery of one notice. It returns false when the
// recipient is still offline and the job was re-queued.
func (w *Worker) Process(ctx context.Context, job *Job) (delivered bool, err error) {
	online, err := w.presence.IsOnline(ctx, job.Payload.Recipient)
	if err != nil {
		return false, err
	}
	if !online {
		return false, w.queue.Retry(ctx, job)
	}
	if err := w.gateway.Send(ctx, job.Payload.Recipient, job.Payload.Text); err != nil {
		return false, err
	}
	w.logger.Info("queued notice delivered",
		zap.String("job_id", job.ID), zap.String("recipient", job.Payload.Recipient))
	return true, nil
}

// Run starts the worker loop: dequeue, attempt delivery, retry on failure.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notice worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("notice worker stopping")
				return
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		delivered, err := w.Process(ctx, job)
		if err != nil {
			w.logger.Warn("notice delivery failed", zap.String("job_id", job.ID), zap.Error(err))
			if rerr := w.queue.Retry(ctx, job); rerr != nil {
				w.logger.Error("notice retry failed", zap.String("job_id", job.ID), zap.Error(rerr))
			}
		}
		if !delivered {
			// Avoid spinning on a queue full of offline recipients.
			select {
			case <-ctx.Done():
			case <-time.After(RetryBackoff):
			}
		}
	}
}
