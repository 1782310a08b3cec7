package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"scholarship-exam-service/internal/app"
	"scholarship-exam-service/internal/domain"
)

// ExamCache caches whole exams in Redis and falls back to a loader on cache miss.
// Exams are stored as: SET exam:{testID} {json} EX ttl
type ExamCache struct {
	client *redis.Client
	loader app.ExamLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewExamCache(client *redis.Client, loader app.ExamLoader, ttl time.Duration) *ExamCache {
	return &ExamCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ExamCache) LoadExam(ctx context.Context, testID string) (domain.Exam, error) {
	if exam, ok := c.cached(ctx, testID); ok {
		return exam, nil
	}

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if exam, ok := c.cached(ctx, testID); ok {
			return exam, nil
		}
		exam, err := c.loader.LoadExam(ctx, testID)
		if err != nil {
			return domain.Exam{}, err
		}
		raw, err := json.Marshal(exam)
		if err != nil {
			return domain.Exam{}, err
		}
		if err := c.client.Set(ctx, c.key(testID), raw, c.ttlWithJitter()).Err(); err != nil {
			log.Warn().Err(err).Str("test", testID).Msg("exam cache fill failed")
		}
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

func (c *ExamCache) Invalidate(ctx context.Context, testID string) {
	if err := c.client.Del(ctx, c.key(testID)).Err(); err != nil {
		log.Warn().Err(err).Str("test", testID).Msg("exam cache invalidate failed")
	}
}

func (c *ExamCache) cached(ctx context.Context, testID string) (domain.Exam, bool) {
	raw, err := c.client.Get(ctx, c.key(testID)).Bytes()
	if err != nil {
		return domain.Exam{}, false
	}
	var exam domain.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		return domain.Exam{}, false
	}
	return exam, true
}

func (c *ExamCache) key(testID string) string {
	return "exam:" + testID
}

func (c *ExamCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
