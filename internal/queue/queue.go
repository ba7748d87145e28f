package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	incomingKey = "queue:incoming"
	outgoingKey = "queue:outgoing"
)

// ErrMalformedJob marks a payload that failed to decode. Such jobs are
// dropped by consumers, never requeued.
var ErrMalformedJob = errors.New("malformed job payload")

// IncomingQueue is the FIFO of inbound chat events.
type IncomingQueue interface {
	PushIncoming(ctx context.Context, job IncomingJob) error
	// PopIncoming blocks until a job is available or ctx is canceled.
	PopIncoming(ctx context.Context) (*IncomingJob, error)
}

// OutgoingQueue is the FIFO of messages awaiting delivery.
type OutgoingQueue interface {
	PushOutgoing(ctx context.Context, job OutgoingJob) error
	// PopOutgoing blocks until a job is available or ctx is canceled.
	PopOutgoing(ctx context.Context) (*OutgoingJob, error)
	// Requeue puts a job back after a transient delivery failure. The
	// job loses its original position; delivery order is best-effort
	// under failure.
	Requeue(ctx context.Context, job OutgoingJob) error
}

// RedisQueue implements both queues on Redis lists. Producers LPUSH,
// the single consumer BRPOPs, so entries drain oldest-first.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps an existing Redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// PushIncoming appends an inbound job.
func (q *RedisQueue) PushIncoming(ctx context.Context, job IncomingJob) error {
	return q.push(ctx, incomingKey, job)
}

// PopIncoming blocks on the incoming list.
func (q *RedisQueue) PopIncoming(ctx context.Context) (*IncomingJob, error) {
	payload, err := q.pop(ctx, incomingKey)
	if err != nil {
		return nil, err
	}
	var job IncomingJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	return &job, nil
}

// PushOutgoing appends an outbound job.
func (q *RedisQueue) PushOutgoing(ctx context.Context, job OutgoingJob) error {
	return q.push(ctx, outgoingKey, job)
}

// PopOutgoing blocks on the outgoing list.
func (q *RedisQueue) PopOutgoing(ctx context.Context) (*OutgoingJob, error) {
	payload, err := q.pop(ctx, outgoingKey)
	if err != nil {
		return nil, err
	}
	var job OutgoingJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	return &job, nil
}

// Requeue pushes a job back onto the outgoing list.
func (q *RedisQueue) Requeue(ctx context.Context, job OutgoingJob) error {
	return q.push(ctx, outgoingKey, job)
}

func (q *RedisQueue) push(ctx context.Context, key string, job any) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

func (q *RedisQueue) pop(ctx context.Context, key string) (string, error) {
	result, err := q.client.BRPop(ctx, 0, key).Result()
	if err != nil {
		return "", fmt.Errorf("brpop %s: %w", key, err)
	}
	if len(result) != 2 {
		return "", fmt.Errorf("brpop %s: unexpected reply length %d", key, len(result))
	}
	return result[1], nil
}
