package app

import (
	"context"
	"errors"
	"strings"

	"scholarship-exam-service/internal/domain"
)

// AdmissionGate decides whether a candidate may enter a test.
type AdmissionGate struct {
	candidates CandidateRepository
	payments   PaymentRepository
}

func NewAdmissionGate(candidates CandidateRepository, payments PaymentRepository) *AdmissionGate {
	return &AdmissionGate{candidates: candidates, payments: payments}
}

// Admit requires a provisioned contact number and, for paid tests, a payment
// for the pair or an account-level grant. A candidate without a profile has no
// contact on file.
func (g *AdmissionGate) Admit(ctx context.Context, candidateID string, test domain.Test) error {
	candidate, err := g.candidates.GetCandidate(ctx, candidateID)
	if errors.Is(err, domain.ErrCandidateNotFound) {
		return domain.ErrContactMissing
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(candidate.PhoneNumber) == "" {
		return domain.ErrContactMissing
	}
	if !test.RequiresPayment() {
		return nil
	}
	paid, err := g.HasPaid(ctx, candidateID, test.ID)
	if err != nil {
		return err
	}
	if !paid {
		return domain.ErrPaymentRequired
	}
	return nil
}

// HasPaid reports whether a per-test payment or a grant exists.
func (g *AdmissionGate) HasPaid(ctx context.Context, candidateID, testID string) (bool, error) {
	_, err := g.payments.FindPayment(ctx, candidateID, testID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		return false, err
	}
	_, err = g.payments.FindGrant(ctx, candidateID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return false, nil
	}
	return false, err
}

// EnsureContact returns the caller's profile with a phone number, persisting
// phone when none is on file. A profile is created from the identity if missing.
func (g *AdmissionGate) EnsureContact(ctx context.Context, who domain.Identity, phone string) (domain.Candidate, error) {
	phone = strings.TrimSpace(phone)
	candidate, err := g.candidates.GetCandidate(ctx, who.UID)
	switch {
	case errors.Is(err, domain.ErrCandidateNotFound):
		if phone == "" {
			return domain.Candidate{}, domain.ErrContactMissing
		}
		candidate = domain.Candidate{UID: who.UID, Name: who.Name, PhoneNumber: phone, Role: domain.RoleStudent}
		if err := g.candidates.SaveCandidate(ctx, candidate); err != nil {
			return domain.Candidate{}, err
		}
		return candidate, nil
	case err != nil:
		return domain.Candidate{}, err
	}

	if strings.TrimSpace(candidate.PhoneNumber) != "" {
		return candidate, nil
	}
	if phone == "" {
		return domain.Candidate{}, domain.ErrContactMissing
	}
	if err := g.candidates.UpdatePhone(ctx, who.UID, phone); err != nil {
		return domain.Candidate{}, err
	}
	candidate.PhoneNumber = phone
	return candidate, nil
}
