package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"scholarship-exam-service/internal/domain"
)

// EditPolicy decides when a test's structure may still change.
type EditPolicy int

const (
	// FreezeOnWindowOpen rejects structural edits once the start time is reached.
	FreezeOnWindowOpen EditPolicy = iota
	AlwaysEditable
)

func (p EditPolicy) check(t domain.Test, now time.Time) error {
	if p == FreezeOnWindowOpen && !now.Before(t.StartDateTime) {
		return domain.ErrTestStarted
	}
	return nil
}

type TestInput struct {
	Description   string               `json:"description" validate:"required"`
	StartDateTime time.Time            `json:"startDateTime" validate:"required"`
	Price         decimal.Decimal      `json:"price"`
	Stream        string               `json:"stream" validate:"required"`
	SessionID     string               `json:"sessionId" validate:"required"`
	Sections      []domain.SectionName `json:"sections" validate:"required,min=1,dive,required"`
}

type TestPatch struct {
	Description   *string          `json:"description"`
	StartDateTime *time.Time       `json:"startDateTime"`
	Price         *decimal.Decimal `json:"price"`
	Stream        *string          `json:"stream"`
}

type QuestionInput struct {
	Section            domain.SectionName `json:"section" validate:"required"`
	Text               string             `json:"question" validate:"required"`
	Options            []string           `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswerIndex *int               `json:"correctAnswerIndex" validate:"required,min=0"`
}

// TestService holds the instructor-side operations on tests, questions and sessions.
type TestService struct {
	tests    TestRepository
	sessions SessionRepository
	attempts AttemptRepository
	cache    ExamCache
	policy   EditPolicy
	now      func() time.Time
}

func NewTestService(tests TestRepository, sessions SessionRepository, attempts AttemptRepository, cache ExamCache) *TestService {
	return &TestService{
		tests:    tests,
		sessions: sessions,
		attempts: attempts,
		cache:    cache,
		policy:   FreezeOnWindowOpen,
		now:      time.Now,
	}
}

func (s *TestService) WithClock(now func() time.Time) *TestService {
	s.now = now
	return s
}

func (s *TestService) CreateTest(ctx context.Context, who domain.Identity, in TestInput) (domain.Test, error) {
	if err := validateInput(in); err != nil {
		return domain.Test{}, err
	}
	if in.Price.IsNegative() {
		return domain.Test{}, domain.NewValidationError(map[string]string{"price": "must not be negative"})
	}
	sections := make([]domain.Section, 0, len(in.Sections))
	seen := make(map[domain.SectionName]struct{}, len(in.Sections))
	for i, name := range in.Sections {
		name = domain.SectionName(strings.ToUpper(string(name)))
		if !name.Valid() {
			return domain.Test{}, domain.NewValidationError(map[string]string{
				"sections[" + strconv.Itoa(i) + "]": "unknown section " + string(name),
			})
		}
		if _, dup := seen[name]; dup {
			return domain.Test{}, domain.NewValidationError(map[string]string{
				"sections[" + strconv.Itoa(i) + "]": "duplicate section " + string(name),
			})
		}
		seen[name] = struct{}{}
		sections = append(sections, domain.Section{Name: name, QuestionIDs: []string{}})
	}
	if _, err := s.sessions.GetSession(ctx, in.SessionID); err != nil {
		return domain.Test{}, err
	}

	test := domain.Test{
		ID:            uuid.NewString(),
		InstructorID:  who.UID,
		Description:   in.Description,
		Sections:      sections,
		StartDateTime: in.StartDateTime.UTC(),
		Price:         in.Price,
		Stream:        strings.ToUpper(strings.TrimSpace(in.Stream)),
		SessionID:     in.SessionID,
	}
	if err := s.tests.CreateTest(ctx, test); err != nil {
		return domain.Test{}, err
	}
	log.Info().Str("test", test.ID).Str("instructor", who.UID).Msg("test created")
	return test, nil
}

func (s *TestService) UpdateTest(ctx context.Context, who domain.Identity, testID string, patch TestPatch) (domain.Test, error) {
	test, err := s.editable(ctx, who, testID)
	if err != nil {
		return domain.Test{}, err
	}
	if patch.Description != nil {
		test.Description = *patch.Description
	}
	if patch.StartDateTime != nil {
		test.StartDateTime = patch.StartDateTime.UTC()
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return domain.Test{}, domain.NewValidationError(map[string]string{"price": "must not be negative"})
		}
		test.Price = *patch.Price
	}
	if patch.Stream != nil {
		test.Stream = strings.ToUpper(strings.TrimSpace(*patch.Stream))
	}
	if err := s.tests.UpdateTest(ctx, test); err != nil {
		return domain.Test{}, err
	}
	s.cache.Invalidate(ctx, testID)
	return test, nil
}

func (s *TestService) AddQuestion(ctx context.Context, who domain.Identity, testID string, in QuestionInput) (domain.Question, error) {
	if err := validateInput(in); err != nil {
		return domain.Question{}, err
	}
	if *in.CorrectAnswerIndex >= len(in.Options) {
		return domain.Question{}, domain.NewValidationError(map[string]string{
			"correctAnswerIndex": fmt.Sprintf("must be below %d", len(in.Options)),
		})
	}
	name := domain.SectionName(strings.ToUpper(string(in.Section)))
	if !name.Valid() {
		return domain.Question{}, domain.NewValidationError(map[string]string{"section": "unknown section " + string(in.Section)})
	}

	if _, err := s.editable(ctx, who, testID); err != nil {
		return domain.Question{}, err
	}

	q := domain.Question{
		ID:                 uuid.NewString(),
		TestID:             testID,
		Text:               in.Text,
		Options:            in.Options,
		CorrectAnswerIndex: *in.CorrectAnswerIndex,
	}
	err := s.tests.AddQuestion(ctx, q, func(current domain.Test) ([]domain.Section, error) {
		if err := s.policy.check(current, s.now()); err != nil {
			return nil, err
		}
		sections := cloneSections(current.Sections)
		section, i, ok := current.Section(name)
		if !ok {
			sections = append(sections, domain.Section{Name: name})
			i = len(sections) - 1
		}
		if len(section.QuestionIDs) >= domain.MaxQuestionsPerSection {
			return nil, domain.NewValidationError(map[string]string{
				"section": fmt.Sprintf("%s already holds %d questions", name, domain.MaxQuestionsPerSection),
			})
		}
		sections[i].QuestionIDs = append(sections[i].QuestionIDs, q.ID)
		return sections, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	s.cache.Invalidate(ctx, testID)
	return q, nil
}

func (s *TestService) DeleteQuestion(ctx context.Context, who domain.Identity, testID, questionID string) error {
	if _, err := s.editable(ctx, who, testID); err != nil {
		return err
	}
	err := s.tests.DeleteQuestion(ctx, testID, questionID, func(current domain.Test) ([]domain.Section, error) {
		if err := s.policy.check(current, s.now()); err != nil {
			return nil, err
		}
		sections := cloneSections(current.Sections)
		found := false
		for i := range sections {
			ids := sections[i].QuestionIDs[:0]
			for _, id := range sections[i].QuestionIDs {
				if id == questionID {
					found = true
					continue
				}
				ids = append(ids, id)
			}
			sections[i].QuestionIDs = ids
		}
		if !found {
			return nil, domain.ErrQuestionNotFound
		}
		return sections, nil
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, testID)
	return nil
}

// Publish makes a test visible to candidates. A test without questions cannot be published.
func (s *TestService) Publish(ctx context.Context, who domain.Identity, testID string) (domain.Test, error) {
	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return domain.Test{}, err
	}
	if err := authorizeOwner(who, test); err != nil {
		return domain.Test{}, err
	}
	total := 0
	for _, section := range test.Sections {
		total += len(section.QuestionIDs)
	}
	if total == 0 {
		return domain.Test{}, domain.NewValidationError(map[string]string{"sections": "test has no questions"})
	}
	test.Published = true
	if err := s.tests.UpdateTest(ctx, test); err != nil {
		return domain.Test{}, err
	}
	s.cache.Invalidate(ctx, testID)
	log.Info().Str("test", testID).Msg("test published")
	return test, nil
}

// DeleteTest removes a test and, with it, every attempt on it.
func (s *TestService) DeleteTest(ctx context.Context, who domain.Identity, testID string) error {
	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	if err := authorizeOwner(who, test); err != nil {
		return err
	}
	if err := s.attempts.DeleteForTest(ctx, testID); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	if err := s.tests.DeleteTest(ctx, testID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, testID)
	log.Info().Str("test", testID).Str("by", who.UID).Msg("test deleted")
	return nil
}

type SessionInput struct {
	Year       int    `json:"year" validate:"required,min=2000,max=2100"`
	CommonName string `json:"commonName" validate:"required"`
}

func (s *TestService) CreateSession(ctx context.Context, in SessionInput) (domain.Session, error) {
	if err := validateInput(in); err != nil {
		return domain.Session{}, err
	}
	session := domain.Session{ID: uuid.NewString(), Year: in.Year, CommonName: in.CommonName}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.Session{}, domain.ErrSessionExists
		}
		return domain.Session{}, err
	}
	return session, nil
}

func (s *TestService) editable(ctx context.Context, who domain.Identity, testID string) (domain.Test, error) {
	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return domain.Test{}, err
	}
	if err := authorizeOwner(who, test); err != nil {
		return domain.Test{}, err
	}
	if err := s.policy.check(test, s.now()); err != nil {
		return domain.Test{}, err
	}
	return test, nil
}

func cloneSections(in []domain.Section) []domain.Section {
	out := make([]domain.Section, len(in))
	for i, s := range in {
		out[i] = domain.Section{Name: s.Name, QuestionIDs: append([]string(nil), s.QuestionIDs...)}
	}
	return out
}

// validateInput turns validator errors into field-level detail.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewError(domain.KindBadRequest, err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return domain.NewValidationError(fields)
}
