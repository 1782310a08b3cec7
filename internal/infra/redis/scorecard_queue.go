package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/domain"
)

// DefaultQueueKey is the Redis list holding pending scorecard jobs.
const DefaultQueueKey = "scorecard:jobs"

// ScorecardQueue is a Redis list queue: producers LPUSH, the worker BRPOPs.
// The client is owned by the caller, which closes it after the worker drained.
type ScorecardQueue struct {
	client *redis.Client
	key    string
}

func NewScorecardQueue(client *redis.Client, key string) *ScorecardQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &ScorecardQueue{client: client, key: key}
}

func (q *ScorecardQueue) Enqueue(ctx context.Context, job domain.ScorecardJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Next blocks up to wait for a job. A malformed message is logged and dropped.
func (q *ScorecardQueue) Next(ctx context.Context, wait time.Duration) (domain.ScorecardJob, bool, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ScorecardJob{}, false, nil
	}
	if err != nil {
		return domain.ScorecardJob{}, false, err
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return domain.ScorecardJob{}, false, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	var job domain.ScorecardJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		log.Error().Err(err).Str("queue", q.key).Msg("dropping malformed scorecard job")
		return domain.ScorecardJob{}, false, nil
	}
	return job, true, nil
}

// Len reports the queue depth.
func (q *ScorecardQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
