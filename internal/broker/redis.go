// Package broker moves processing tasks between the API and workers.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultQueueName is the list key tasks are pushed onto
	DefaultQueueName = "lessonindex:processing"
	pingTimeout      = 2 * time.Second
)

// RedisBroker is a FIFO task queue on a Redis list
type RedisBroker struct {
	client *redis.Client
	queue  string
	log    *logger.Logger
}

// NewRedisBroker parses redisURL and creates a broker. It does not connect;
// reachability is checked on every Enqueue.
func NewRedisBroker(redisURL, queue string, log *logger.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = pingTimeout
	opts.MaxRetries = 1

	if queue == "" {
		queue = DefaultQueueName
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &RedisBroker{
		client: redis.NewClient(opts),
		queue:  queue,
		log:    log.With("component", "redis_broker", "queue", queue),
	}, nil
}

// Enqueue pings the broker and appends the task. An unreachable broker is
// reported as a broker-unavailable domain error.
func (b *RedisBroker) Enqueue(ctx context.Context, task domain.ProcessingTask) error {
	if err := domain.ValidateProcessingTask(&task); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid processing task", err)
	}

	if err := b.Ping(ctx); err != nil {
		return domain.NewBrokerUnavailableError(err)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := b.client.RPush(ctx, b.queue, payload).Err(); err != nil {
		return domain.NewBrokerUnavailableError(err)
	}

	b.log.Debug("task pushed", "resource_id", task.ResourceID, "attempt_id", task.AttemptID)
	return nil
}

// Dequeue blocks up to timeout for the next task. It returns nil, nil when
// the queue stayed empty.
func (b *RedisBroker) Dequeue(ctx context.Context, timeout time.Duration) (*domain.ProcessingTask, error) {
	res, err := b.client.BLPop(ctx, timeout, b.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop task: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(res))
	}

	return decodeTask(res[1])
}

// Depth returns the number of queued tasks.
func (b *RedisBroker) Depth(ctx context.Context) (int64, error) {
	n, err := b.client.LLen(ctx, b.queue).Result()
	if err != nil {
		return 0, fmt.Errorf("error getting queue length: %w", err)
	}
	return n, nil
}

// Ping checks the broker within a short deadline.
func (b *RedisBroker) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func decodeTask(raw string) (*domain.ProcessingTask, error) {
	var task domain.ProcessingTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("malformed task payload: %w", err)
	}
	if err := domain.ValidateProcessingTask(&task); err != nil {
		return nil, fmt.Errorf("malformed task payload: %w", err)
	}
	return &task, nil
}
