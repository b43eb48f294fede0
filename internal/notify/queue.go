// Package notify delivers notices (answers, superseded-claim messages) to
// users: straight through the chat gateway when the recipient is online, via
// a Redis-backed queue with retries when they are not.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueNotices is the Redis list key for pending notice jobs.
	QueueNotices = "worker:notices"
	// QueueDLQ is the dead-letter queue for notices that could not be
	// delivered after MaxRetries.
	QueueDLQ = "worker:notices:dlq"
	// MaxRetries is the number of delivery attempts before a notice moves
	// to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay before a failed notice is tried again.
	RetryBackoff = 10 * time.Second
)

// NoticePayload is the body of a queued notice.
type NoticePayload struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// Job is the queued notice envelope.
type Job struct {
	ID        string        `json:"id"`
	Payload   NoticePayload `json:"payload"`
	Attempt   int           `json:"attempt"`
	CreatedAt time.Time     `json:"created_at"`
}

// Queue enqueues and dequeues notice jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a Redis-backed notice queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// Enqueue queues a notice for later delivery.
func (q *Queue) Enqueue(ctx context.Context, payload NoticePayload) error {
	job := Job{
		ID:        uuid.New().String(),
		Payload:   payload,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueNotices, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued notice", zap.String("job_id", job.ID), zap.String("recipient", payload.Recipient))
	return nil
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueNotices).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries,
// pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("notice moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueNotices, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("notice retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
