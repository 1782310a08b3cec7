package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/domain"
)

const (
	SourceClaim   = "claim"
	SourceProfile = "profile"
	SourceDefault = "default"
)

// ProfileStore is the stored candidate profile lookup.
type ProfileStore interface {
	GetCandidate(ctx context.Context, uid string) (domain.Candidate, error)
}

// RoleStep tries to determine the role; ok=false passes to the next step.
type RoleStep struct {
	Source  string
	Resolve func(ctx context.Context, c *Claims) (domain.Role, bool)
}

// RoleResolver runs its steps in order and falls back to student.
type RoleResolver struct {
	steps []RoleStep
}

func NewRoleResolver(steps ...RoleStep) *RoleResolver {
	return &RoleResolver{steps: steps}
}

// DefaultRoleResolver resolves from the token claim, then the stored profile.
func DefaultRoleResolver(profiles ProfileStore) *RoleResolver {
	return NewRoleResolver(ClaimStep(), ProfileStep(profiles))
}

func (r *RoleResolver) Identity(ctx context.Context, c *Claims) domain.Identity {
	id := domain.Identity{UID: c.Subject, Name: c.Name}
	for _, step := range r.steps {
		if role, ok := step.Resolve(ctx, c); ok {
			id.Role, id.Source = role, step.Source
			return id
		}
	}
	id.Role, id.Source = domain.RoleStudent, SourceDefault
	return id
}

func ClaimStep() RoleStep {
	return RoleStep{Source: SourceClaim, Resolve: func(_ context.Context, c *Claims) (domain.Role, bool) {
		role := domain.Role(c.Role)
		return role, role.Valid()
	}}
}

func ProfileStep(profiles ProfileStore) RoleStep {
	return RoleStep{Source: SourceProfile, Resolve: func(ctx context.Context, c *Claims) (domain.Role, bool) {
		if profiles == nil {
			return "", false
		}
		cand, err := profiles.GetCandidate(ctx, c.Subject)
		if err != nil {
			if !errors.Is(err, domain.ErrCandidateNotFound) {
				log.Warn().Err(err).Str("uid", c.Subject).Msg("role lookup failed")
			}
			return "", false
		}
		return cand.Role, cand.Role.Valid()
	}}
}
