package app_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scholarship-exam-service/internal/app"
	"scholarship-exam-service/internal/domain"
	"scholarship-exam-service/internal/infra/memory"
)

func TestStartThenSubmit(t *testing.T) {
	ctx := context.Background()
	exam := sampleExam("0")
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	notifier := &recordingNotifier{}
	svc := e.attemptService().WithNotifier(notifier)

	paper, err := svc.Start(ctx, "c1", exam.Test.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// Re-entering a started attempt is allowed and reshuffles.
	if _, err := svc.Start(ctx, "c1", exam.Test.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	var answers []domain.SubmittedAnswer
	for _, q := range paper.Sections[0].Questions {
		sel := 0
		answers = append(answers, domain.SubmittedAnswer{QuestionID: q.ID, SelectedOption: &sel, OptionMap: q.OptionMap})
	}
	result, err := svc.Submit(ctx, "c1", exam.Test.ID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	stored, err := svc.Result(ctx, "c1", exam.Test.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if stored.ExpectedScore != result.Score || stored.CompletedAt == nil {
		t.Fatalf("stored result %+v does not match submit %+v", stored, result)
	}
	if len(notifier.tests) != 1 || notifier.tests[0] != exam.Test.ID {
		t.Fatalf("expected one completion notification, got %v", notifier.tests)
	}
}

func TestSecondSubmitRejectedScoreUnchanged(t *testing.T) {
	ctx := context.Background()
	exam := sampleExam("0")
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	svc := e.attemptService()
	s := app.NewShuffler(rand.NewSource(1))

	if _, err := svc.Start(ctx, "c1", exam.Test.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := svc.Submit(ctx, "c1", exam.Test.ID, []domain.SubmittedAnswer{answer(t, s, exam.Questions[0], 1)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = svc.Submit(ctx, "c1", exam.Test.ID, []domain.SubmittedAnswer{
		answer(t, s, exam.Questions[0], 1),
		answer(t, s, exam.Questions[1], 0),
	})
	if !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted, got %v", err)
	}
	if kind, _ := domain.KindOf(err); kind != domain.KindAuthorization {
		t.Fatalf("expected authorization kind, got %q", kind)
	}
	if _, err := svc.Start(ctx, "c1", exam.Test.ID); !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected start after completion to fail, got %v", err)
	}

	stored, _ := svc.Result(ctx, "c1", exam.Test.ID)
	if stored.ExpectedScore != first.Score {
		t.Fatalf("score changed from %v to %v", first.Score, stored.ExpectedScore)
	}
}

func TestDirectSubmitWithoutStart(t *testing.T) {
	ctx := context.Background()
	exam := sampleExam("0")
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	svc := e.attemptService()

	result, err := svc.Submit(ctx, "c1", exam.Test.ID, []domain.SubmittedAnswer{
		answer(t, app.NewShuffler(rand.NewSource(2)), exam.Questions[2], 2),
	})
	if err != nil {
		t.Fatalf("direct submit: %v", err)
	}
	if result.Score != app.CorrectMarks {
		t.Fatalf("expected %v, got %v", app.CorrectMarks, result.Score)
	}
	a, err := e.attempts.GetAttempt(ctx, "c1", exam.Test.ID)
	if err != nil || a.State() != domain.StateCompleted {
		t.Fatalf("expected completed attempt, got %+v %v", a, err)
	}
}

func TestWindowEnforcedRegardlessOfPayment(t *testing.T) {
	ctx := context.Background()
	exam := sampleExam("499")
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	if err := e.payments.CreatePayment(ctx, domain.Payment{ID: "p1", CandidateID: "c1", TestID: exam.Test.ID, Method: domain.PaymentGateway}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	svc := e.attemptService()
	sel := 0
	answers := []domain.SubmittedAnswer{{QuestionID: "q1", SelectedOption: &sel, OptionMap: []int{0, 1, 2, 3}}}

	for _, at := range []time.Time{
		windowStart.Add(-time.Second),
		windowStart.Add(domain.TestDuration + time.Second),
	} {
		e.now = at
		if _, err := svc.Start(ctx, "c1", exam.Test.ID); !errors.Is(err, domain.ErrOutsideWindow) {
			t.Fatalf("start at %v: expected ErrOutsideWindow, got %v", at, err)
		}
		if _, err := svc.Submit(ctx, "c1", exam.Test.ID, answers); !errors.Is(err, domain.ErrOutsideWindow) {
			t.Fatalf("submit at %v: expected ErrOutsideWindow, got %v", at, err)
		}
	}

	e.now = windowStart.Add(domain.TestDuration)
	if _, err := svc.Start(ctx, "c1", exam.Test.ID); err != nil {
		t.Fatalf("start at the closing instant: %v", err)
	}
}

func TestAdmissionRules(t *testing.T) {
	ctx := context.Background()
	exam := sampleExam("499")
	e := newEnv(t, exam)
	svc := e.attemptService()

	if _, err := svc.Start(ctx, "ghost", exam.Test.ID); !errors.Is(err, domain.ErrContactMissing) {
		t.Fatalf("expected ErrContactMissing without a profile, got %v", err)
	}

	e.addCandidate(t, "nophone", "")
	if _, err := svc.Start(ctx, "nophone", exam.Test.ID); !errors.Is(err, domain.ErrContactMissing) {
		t.Fatalf("expected ErrContactMissing, got %v", err)
	}

	e.addCandidate(t, "unpaid", "9000000002")
	if _, err := svc.Start(ctx, "unpaid", exam.Test.ID); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}

	e.addCandidate(t, "granted", "9000000003")
	if err := e.payments.CreatePayment(ctx, domain.Payment{ID: "g1", CandidateID: "granted", Method: domain.PaymentGrant}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	if _, err := svc.Start(ctx, "granted", exam.Test.ID); err != nil {
		t.Fatalf("grant should admit: %v", err)
	}
}

func TestUnpublishedTestIsNotFound(t *testing.T) {
	exam := sampleExam("0")
	exam.Test.Published = false
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	if _, err := e.attemptService().Start(context.Background(), "c1", exam.Test.ID); !errors.Is(err, domain.ErrTestNotFound) {
		t.Fatalf("expected ErrTestNotFound, got %v", err)
	}
}

func TestEmptySubmitRejected(t *testing.T) {
	exam := sampleExam("0")
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	_, err := e.attemptService().Submit(context.Background(), "c1", exam.Test.ID, nil)
	if kind, _ := domain.KindOf(err); kind != domain.KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestConcurrentSubmitsCompleteOnce(t *testing.T) {
	ctx := context.Background()
	exam := sampleExam("0")
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	svc := e.attemptService()
	submission := []domain.SubmittedAnswer{answer(t, app.NewShuffler(rand.NewSource(4)), exam.Questions[0], 1)}

	var ok, rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Half the goroutines race a start against the submits.
			if i%2 == 0 {
				_, _ = svc.Start(ctx, "c1", exam.Test.ID)
			}
			_, err := svc.Submit(ctx, "c1", exam.Test.ID, submission)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, domain.ErrAttemptCompleted):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if ok != 1 || rejected != 11 {
		t.Fatalf("expected exactly one successful submit, got ok=%d rejected=%d", ok, rejected)
	}
}

// racingAttempts makes the first two GetAttempt callers observe the same empty
// state before either writes. When directFirst is set, the completed-on-create
// attempt of a direct submit is written before a plain start, or the reverse.
type racingAttempts struct {
	*memory.AttemptRepository
	reads       int32
	readers     sync.WaitGroup
	ordered     bool
	directFirst bool
	firstDone   chan struct{}
	once        sync.Once
}

func newRacingAttempts() *racingAttempts {
	r := &racingAttempts{AttemptRepository: memory.NewAttemptRepository(), firstDone: make(chan struct{})}
	r.readers.Add(2)
	return r
}

func (r *racingAttempts) GetAttempt(ctx context.Context, candidateID, testID string) (domain.Attempt, error) {
	a, err := r.AttemptRepository.GetAttempt(ctx, candidateID, testID)
	if atomic.AddInt32(&r.reads, 1) <= 2 {
		r.readers.Done()
		r.readers.Wait()
	}
	return a, err
}

func (r *racingAttempts) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	if !r.ordered {
		return r.AttemptRepository.CreateAttempt(ctx, a)
	}
	direct := a.CompletedAt != nil
	if direct != r.directFirst {
		<-r.firstDone
	}
	err := r.AttemptRepository.CreateAttempt(ctx, a)
	if direct == r.directFirst {
		r.once.Do(func() { close(r.firstDone) })
	}
	return err
}

func TestConcurrentStartsCreateOneAttempt(t *testing.T) {
	ctx := context.Background()
	exam := sampleExam("0")
	e := newEnv(t, exam)
	e.addCandidate(t, "c1", "9000000001")
	attempts := newRacingAttempts()
	svc := app.NewAttemptService(e.tests, attempts, e.gate, app.NewShuffler(rand.NewSource(7))).WithClock(e.clock)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(ctx, "c1", exam.Test.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("both starts should succeed, got %v", err)
		}
	}
	a, err := attempts.AttemptRepository.GetAttempt(ctx, "c1", exam.Test.ID)
	if err != nil || a.State() != domain.StateStarted {
		t.Fatalf("expected one started attempt, got %+v %v", a, err)
	}
}

func TestStartRacingDirectSubmit(t *testing.T) {
	for _, tc := range []struct {
		name        string
		directFirst bool
		wantStart   error
	}{
		{name: "submit wins", directFirst: true, wantStart: domain.ErrAttemptCompleted},
		{name: "start wins", directFirst: false, wantStart: nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			exam := sampleExam("0")
			e := newEnv(t, exam)
			e.addCandidate(t, "c1", "9000000001")
			attempts := newRacingAttempts()
			attempts.ordered, attempts.directFirst = true, tc.directFirst
			svc := app.NewAttemptService(e.tests, attempts, e.gate, app.NewShuffler(rand.NewSource(8))).WithClock(e.clock)
			submission := []domain.SubmittedAnswer{answer(t, app.NewShuffler(rand.NewSource(9)), exam.Questions[0], 1)}

			var startErr, submitErr error
			var result domain.SubmitResult
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, startErr = svc.Start(ctx, "c1", exam.Test.ID)
			}()
			go func() {
				defer wg.Done()
				result, submitErr = svc.Submit(ctx, "c1", exam.Test.ID, submission)
			}()
			wg.Wait()

			if submitErr != nil {
				t.Fatalf("submit: %v", submitErr)
			}
			if !errors.Is(startErr, tc.wantStart) {
				t.Fatalf("start: expected %v, got %v", tc.wantStart, startErr)
			}
			a, err := attempts.AttemptRepository.GetAttempt(ctx, "c1", exam.Test.ID)
			if err != nil || a.State() != domain.StateCompleted || a.Score != result.Score {
				t.Fatalf("expected one completed attempt scoring %v, got %+v %v", result.Score, a, err)
			}
		})
	}
}
