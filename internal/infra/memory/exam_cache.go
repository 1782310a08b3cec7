package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"scholarship-exam-service/internal/app"
	"scholarship-exam-service/internal/domain"
)

// ExamCache caches exams with TTL to avoid repeated DB hits.
type ExamCache struct {
	loader app.ExamLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedExam
}

type cachedExam struct {
	exam      domain.Exam
	expiresAt time.Time
}

func NewExamCache(loader app.ExamLoader, ttl time.Duration) *ExamCache {
	return &ExamCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedExam),
	}
}

func (c *ExamCache) LoadExam(ctx context.Context, testID string) (domain.Exam, error) {
	if exam, ok := c.lookup(testID); ok {
		return exam, nil
	}

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		if exam, ok := c.lookup(testID); ok {
			return exam, nil
		}
		exam, err := c.loader.LoadExam(ctx, testID)
		if err != nil {
			return domain.Exam{}, err
		}
		c.mu.Lock()
		c.cache[testID] = cachedExam{exam: exam, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

func (c *ExamCache) Invalidate(_ context.Context, testID string) {
	c.mu.Lock()
	delete(c.cache, testID)
	c.mu.Unlock()
}

func (c *ExamCache) lookup(testID string) (domain.Exam, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[testID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Exam{}, false
	}
	return entry.exam, true
}

func (c *ExamCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
