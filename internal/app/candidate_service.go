package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/domain"
)

// CandidateService removes candidates in two phases: the local record first,
// then the external identity on a best-effort basis. Identities that could not
// be removed are parked in the orphan registry for ReconcileOrphans.
type CandidateService struct {
	candidates CandidateRepository
	identities IdentityProvider
	orphans    OrphanRegistry
}

func NewCandidateService(candidates CandidateRepository, identities IdentityProvider, orphans OrphanRegistry) *CandidateService {
	return &CandidateService{candidates: candidates, identities: identities, orphans: orphans}
}

type ProfileInput struct {
	Name        string `json:"name" validate:"required"`
	FatherName  string `json:"fatherName"`
	MotherName  string `json:"motherName"`
	PhoneNumber string `json:"phoneNumber" validate:"required,min=7,max=20"`
}

// SaveProfile upserts the caller's own profile. A stored role is never changed here.
func (s *CandidateService) SaveProfile(ctx context.Context, who domain.Identity, in ProfileInput) (domain.Candidate, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := validateInput(in); err != nil {
		return domain.Candidate{}, err
	}
	role := domain.RoleStudent
	existing, err := s.candidates.GetCandidate(ctx, who.UID)
	switch {
	case err == nil:
		role = existing.Role
	case !errors.Is(err, domain.ErrCandidateNotFound):
		return domain.Candidate{}, err
	}
	c := domain.Candidate{
		UID:         who.UID,
		Name:        strings.TrimSpace(in.Name),
		FatherName:  strings.TrimSpace(in.FatherName),
		MotherName:  strings.TrimSpace(in.MotherName),
		PhoneNumber: in.PhoneNumber,
		Role:        role,
	}
	if err := s.candidates.SaveCandidate(ctx, c); err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

// Remove deletes the local record (payments cascade with it). Failure to remove
// the external identity is not reported to the caller.
func (s *CandidateService) Remove(ctx context.Context, uid string) error {
	if err := s.candidates.DeleteCandidate(ctx, uid); err != nil {
		return err
	}
	if err := s.identities.DeleteIdentity(ctx, uid); err != nil {
		log.Warn().Err(err).Str("candidate", uid).Msg("external identity removal failed, parking as orphan")
		if err := s.orphans.Add(ctx, uid); err != nil {
			log.Error().Err(err).Str("candidate", uid).Msg("record orphan identity")
		}
		return nil
	}
	log.Info().Str("candidate", uid).Msg("candidate removed")
	return nil
}

// ReconcileOrphans retries every parked identity and returns how many were removed.
func (s *CandidateService) ReconcileOrphans(ctx context.Context) (int, error) {
	uids, err := s.orphans.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.identities.DeleteIdentity(ctx, uid); err != nil {
			log.Warn().Err(err).Str("candidate", uid).Msg("orphan identity still not removable")
			continue
		}
		if err := s.orphans.Remove(ctx, uid); err != nil {
			log.Error().Err(err).Str("candidate", uid).Msg("clear orphan identity")
			continue
		}
		removed++
	}
	return removed, nil
}
