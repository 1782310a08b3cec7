package memory

import (
	"context"
	"sync"

	"scholarship-exam-service/internal/domain"
)

// CandidateRepository keeps candidate profiles in process memory. OnDelete
// hooks emulate database cascades (payments).
type CandidateRepository struct {
	mu         sync.RWMutex
	candidates map[string]domain.Candidate
	onDelete   []func(uid string)
}

func NewCandidateRepository(onDelete ...func(uid string)) *CandidateRepository {
	return &CandidateRepository{candidates: make(map[string]domain.Candidate), onDelete: onDelete}
}

func (r *CandidateRepository) GetCandidate(_ context.Context, uid string) (domain.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.candidates[uid]
	if !ok {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	return c, nil
}

func (r *CandidateRepository) GetCandidates(_ context.Context, uids []string) (map[string]domain.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Candidate, len(uids))
	for _, uid := range uids {
		if c, ok := r.candidates[uid]; ok {
			out[uid] = c
		}
	}
	return out, nil
}

func (r *CandidateRepository) SaveCandidate(_ context.Context, c domain.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Role == "" {
		c.Role = domain.RoleStudent
	}
	r.candidates[c.UID] = c
	return nil
}

func (r *CandidateRepository) UpdatePhone(_ context.Context, uid, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[uid]
	if !ok {
		return domain.ErrCandidateNotFound
	}
	c.PhoneNumber = phone
	r.candidates[uid] = c
	return nil
}

func (r *CandidateRepository) DeleteCandidate(_ context.Context, uid string) error {
	r.mu.Lock()
	if _, ok := r.candidates[uid]; !ok {
		r.mu.Unlock()
		return domain.ErrCandidateNotFound
	}
	delete(r.candidates, uid)
	r.mu.Unlock()
	for _, fn := range r.onDelete {
		fn(uid)
	}
	return nil
}
