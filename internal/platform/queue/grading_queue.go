package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sqlgym/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// GradingQueue is the handoff between submission intake and the grading
// worker. Jobs carry the full work description so the worker never has to
// read intake state back out of Redis.
type GradingQueue struct {
	client *redis.Client
	name   string
}

func NewGradingQueue(client *redis.Client, name string) *GradingQueue {
	return &GradingQueue{client: client, name: name}
}

func (q *GradingQueue) Enqueue(ctx context.Context, job *model.GradingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal grading job: %w", err)
	}

	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue grading job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. A nil job with nil error
// means the wait timed out and the caller should loop.
func (q *GradingQueue) Dequeue(ctx context.Context, timeout time.Duration) (*model.GradingJob, error) {
	result, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue grading job: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var job model.GradingJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grading job: %w", err)
	}
	return &job, nil
}

func (q *GradingQueue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
