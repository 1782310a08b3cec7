package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/domain"
)

// AttemptService runs the attempt state machine for one (candidate, test) pair per call.
// It holds no per-attempt state: every mutation re-reads the stored attempt and relies
// on the repository's uniqueness and conditional-update guarantees.
type AttemptService struct {
	exams    ExamLoader
	attempts AttemptRepository
	gate     *AdmissionGate
	shuffler *Shuffler
	notifier CompletionNotifier
	now      func() time.Time
}

func NewAttemptService(exams ExamLoader, attempts AttemptRepository, gate *AdmissionGate, shuffler *Shuffler) *AttemptService {
	return &AttemptService{
		exams:    exams,
		attempts: attempts,
		gate:     gate,
		shuffler: shuffler,
		now:      time.Now,
	}
}

// WithClock is used by tests for deterministic window checks.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// WithNotifier registers a listener for completed attempts.
func (s *AttemptService) WithNotifier(n CompletionNotifier) *AttemptService {
	s.notifier = n
	return s
}

// Start enters (or re-enters) a test and returns a freshly randomized paper.
func (s *AttemptService) Start(ctx context.Context, candidateID, testID string) (domain.Paper, error) {
	exam, err := s.openExam(ctx, testID)
	if err != nil {
		return domain.Paper{}, err
	}
	if err := s.gate.Admit(ctx, candidateID, exam.Test); err != nil {
		return domain.Paper{}, err
	}

	_, state, err := s.current(ctx, candidateID, testID)
	if err != nil {
		return domain.Paper{}, err
	}
	tr, err := domain.NextTransition(state, domain.EventStart)
	if err != nil {
		return domain.Paper{}, err
	}

	if tr == domain.TransitionStart {
		attempt := domain.Attempt{
			ID:          uuid.NewString(),
			CandidateID: candidateID,
			TestID:      testID,
			StartedAt:   s.now(),
		}
		if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
			if !errors.Is(err, domain.ErrDuplicate) {
				return domain.Paper{}, err
			}
			// A concurrent start or submit created the row first.
			_, state, err = s.current(ctx, candidateID, testID)
			if err != nil {
				return domain.Paper{}, err
			}
			if _, err := domain.NextTransition(state, domain.EventStart); err != nil {
				return domain.Paper{}, err
			}
		}
	}

	log.Debug().Str("candidate", candidateID).Str("test", testID).Str("transition", tr.Name).Msg("attempt started")
	return s.shuffler.Paper(exam), nil
}

// Submit scores answers and moves the attempt to Completed exactly once.
func (s *AttemptService) Submit(ctx context.Context, candidateID, testID string, answers []domain.SubmittedAnswer) (domain.SubmitResult, error) {
	exam, err := s.openExam(ctx, testID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if len(answers) == 0 {
		return domain.SubmitResult{}, domain.ErrEmptyAnswers
	}
	records, result := ScoreAnswers(exam, answers)

	attempt, state, err := s.current(ctx, candidateID, testID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	tr, err := domain.NextTransition(state, domain.EventSubmit)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	now := s.now()
	switch tr {
	case domain.TransitionDirectSubmit:
		if err := s.gate.Admit(ctx, candidateID, exam.Test); err != nil {
			return domain.SubmitResult{}, err
		}
		attempt = domain.Attempt{
			ID:          uuid.NewString(),
			CandidateID: candidateID,
			TestID:      testID,
			Answers:     records,
			Score:       result.Score,
			StartedAt:   now,
			CompletedAt: &now,
		}
		err = s.attempts.CreateAttempt(ctx, attempt)
		if errors.Is(err, domain.ErrDuplicate) {
			attempt, state, err = s.current(ctx, candidateID, testID)
			if err != nil {
				return domain.SubmitResult{}, err
			}
			if state == domain.StateCompleted {
				return domain.SubmitResult{}, domain.ErrAttemptCompleted
			}
			err = s.complete(ctx, attempt, records, result.Score, now)
		}
	case domain.TransitionSubmit:
		err = s.complete(ctx, attempt, records, result.Score, now)
	}
	if err != nil {
		return domain.SubmitResult{}, err
	}

	log.Info().Str("candidate", candidateID).Str("test", testID).Str("transition", tr.Name).
		Float64("score", result.Score).Int("scored", len(records)).Int("received", len(answers)).
		Msg("attempt completed")
	if s.notifier != nil {
		s.notifier.AttemptCompleted(ctx, testID)
	}
	return result, nil
}

// Result returns the caller's stored outcome.
func (s *AttemptService) Result(ctx context.Context, candidateID, testID string) (domain.AttemptResult, error) {
	attempt, err := s.attempts.GetAttempt(ctx, candidateID, testID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	return domain.AttemptResult{
		ExpectedScore: attempt.Score,
		Answers:       outcomes(attempt.Answers),
		CompletedAt:   attempt.CompletedAt,
	}, nil
}

func (s *AttemptService) complete(ctx context.Context, attempt domain.Attempt, records []domain.AnswerRecord, score float64, now time.Time) error {
	attempt.Answers = records
	attempt.Score = score
	attempt.CompletedAt = &now
	return s.attempts.CompleteAttempt(ctx, attempt)
}

// openExam loads a published test and enforces the admission window.
func (s *AttemptService) openExam(ctx context.Context, testID string) (domain.Exam, error) {
	exam, err := s.exams.LoadExam(ctx, testID)
	if err != nil {
		return domain.Exam{}, err
	}
	if !exam.Test.Published {
		return domain.Exam{}, domain.ErrTestNotFound
	}
	if !exam.Test.WindowOpen(s.now()) {
		return domain.Exam{}, domain.ErrOutsideWindow
	}
	return exam, nil
}

func (s *AttemptService) current(ctx context.Context, candidateID, testID string) (domain.Attempt, domain.AttemptState, error) {
	attempt, err := s.attempts.GetAttempt(ctx, candidateID, testID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.Attempt{}, domain.StateNotStarted, nil
	}
	if err != nil {
		return domain.Attempt{}, domain.StateNotStarted, err
	}
	return attempt, attempt.State(), nil
}
