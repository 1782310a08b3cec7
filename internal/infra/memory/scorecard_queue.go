package memory

import (
	"context"
	"time"

	"scholarship-exam-service/internal/domain"
)

// ScorecardQueue is a buffered in-process queue for dev mode and tests.
type ScorecardQueue struct {
	jobs chan domain.ScorecardJob
}

func NewScorecardQueue(size int) *ScorecardQueue {
	if size <= 0 {
		size = 16
	}
	return &ScorecardQueue{jobs: make(chan domain.ScorecardJob, size)}
}

func (q *ScorecardQueue) Enqueue(ctx context.Context, job domain.ScorecardJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next waits up to wait for a job; ok is false on timeout.
func (q *ScorecardQueue) Next(ctx context.Context, wait time.Duration) (domain.ScorecardJob, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return job, true, nil
	case <-timer.C:
		return domain.ScorecardJob{}, false, nil
	case <-ctx.Done():
		return domain.ScorecardJob{}, false, ctx.Err()
	}
}
