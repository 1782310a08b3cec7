package memory

import (
	"context"
	"sync"

	"scholarship-exam-service/internal/domain"
)

type attemptKey struct {
	candidateID string
	testID      string
}

// AttemptRepository enforces the (candidate, test) uniqueness under a mutex,
// mirroring the database constraint.
type AttemptRepository struct {
	mu       sync.RWMutex
	attempts map[attemptKey]domain.Attempt
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{attempts: make(map[attemptKey]domain.Attempt)}
}

func (r *AttemptRepository) GetAttempt(_ context.Context, candidateID, testID string) (domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[attemptKey{candidateID, testID}]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (r *AttemptRepository) CreateAttempt(_ context.Context, a domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attemptKey{a.CandidateID, a.TestID}
	if _, ok := r.attempts[key]; ok {
		return domain.ErrDuplicate
	}
	r.attempts[key] = a
	return nil
}

func (r *AttemptRepository) CompleteAttempt(_ context.Context, a domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attemptKey{a.CandidateID, a.TestID}
	current, ok := r.attempts[key]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if current.CompletedAt != nil {
		return domain.ErrAttemptCompleted
	}
	current.Answers = a.Answers
	current.Score = a.Score
	current.CompletedAt = a.CompletedAt
	r.attempts[key] = current
	return nil
}

func (r *AttemptRepository) ListCompleted(_ context.Context, testID string) ([]domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Attempt
	for key, a := range r.attempts {
		if key.testID == testID && a.CompletedAt != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AttemptRepository) DeleteForTest(_ context.Context, testID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.attempts {
		if key.testID == testID {
			delete(r.attempts, key)
		}
	}
	return nil
}
