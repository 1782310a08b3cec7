package memory

import (
	"context"
	"sync"

	"scholarship-exam-service/internal/domain"
)

// PaymentRepository mirrors the two database uniqueness rules: one payment per
// (candidate, test) and one grant per candidate.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments []domain.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

func (r *PaymentRepository) FindPayment(_ context.Context, candidateID, testID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.CandidateID == candidateID && p.TestID == testID && testID != "" {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

func (r *PaymentRepository) FindGrant(_ context.Context, candidateID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.CandidateID == candidateID && p.Method == domain.PaymentGrant {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

func (r *PaymentRepository) CreatePayment(_ context.Context, p domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.CandidateID != p.CandidateID {
			continue
		}
		if p.TestID != "" && existing.TestID == p.TestID {
			return domain.ErrDuplicate
		}
		if p.Method == domain.PaymentGrant && existing.Method == domain.PaymentGrant {
			return domain.ErrDuplicate
		}
	}
	r.payments = append(r.payments, p)
	return nil
}

// Count is used by tests asserting exactly-once recording.
func (r *PaymentRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.payments)
}

// DeleteForCandidate emulates the cascade on candidate removal.
func (r *PaymentRepository) DeleteForCandidate(candidateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.payments[:0]
	for _, p := range r.payments {
		if p.CandidateID != candidateID {
			kept = append(kept, p)
		}
	}
	r.payments = kept
}
