package app_test

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"scholarship-exam-service/internal/app"
	"scholarship-exam-service/internal/domain"
	"scholarship-exam-service/internal/infra/memory"
)

var windowStart = time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC)

// sampleExam has three questions in one section; correct answers are 1, 0, 2.
func sampleExam(price string) domain.Exam {
	return domain.Exam{
		Test: domain.Test{
			ID:            "test-1",
			InstructorID:  "inst-1",
			Description:   "Mathematics screening",
			StartDateTime: windowStart,
			Price:         decimal.RequireFromString(price),
			Published:     true,
			Stream:        "SCIENCE",
			SessionID:     "session-2026",
			Sections: []domain.Section{
				{Name: domain.SectionMathematics, QuestionIDs: []string{"q1", "q2", "q3"}},
			},
		},
		Questions: []domain.Question{
			{ID: "q1", TestID: "test-1", Text: "2 + 2", Options: []string{"3", "4", "5", "6"}, CorrectAnswerIndex: 1},
			{ID: "q2", TestID: "test-1", Text: "3 * 3", Options: []string{"9", "6", "12"}, CorrectAnswerIndex: 0},
			{ID: "q3", TestID: "test-1", Text: "10 / 2", Options: []string{"2", "4", "5", "8"}, CorrectAnswerIndex: 2},
		},
	}
}

type env struct {
	tests      *memory.TestRepository
	attempts   *memory.AttemptRepository
	payments   *memory.PaymentRepository
	candidates *memory.CandidateRepository
	orders     *memory.OrderRegistry
	queue      *memory.ScorecardQueue
	gate       *app.AdmissionGate
	now        time.Time
}

func newEnv(t *testing.T, exam domain.Exam) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{
		tests:    memory.NewTestRepository(),
		attempts: memory.NewAttemptRepository(),
		payments: memory.NewPaymentRepository(),
		orders:   memory.NewOrderRegistry(),
		queue:    memory.NewScorecardQueue(4),
		now:      windowStart.Add(10 * time.Minute),
	}
	e.candidates = memory.NewCandidateRepository(e.payments.DeleteForCandidate)
	e.gate = app.NewAdmissionGate(e.candidates, e.payments)

	if err := e.tests.CreateSession(ctx, domain.Session{ID: "session-2026", Year: 2026, CommonName: "Scholarship Test 2026"}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := e.tests.CreateTest(ctx, exam.Test); err != nil {
		t.Fatalf("create test: %v", err)
	}
	sections := func(domain.Test) ([]domain.Section, error) { return exam.Test.Sections, nil }
	for _, q := range exam.Questions {
		if err := e.tests.AddQuestion(ctx, q, sections); err != nil {
			t.Fatalf("add question: %v", err)
		}
	}
	return e
}

func (e *env) clock() time.Time { return e.now }

func (e *env) addCandidate(t *testing.T, uid, phone string) {
	t.Helper()
	if err := e.candidates.SaveCandidate(context.Background(), domain.Candidate{
		UID: uid, Name: "Name " + uid, FatherName: "Father " + uid, MotherName: "Mother " + uid, PhoneNumber: phone,
	}); err != nil {
		t.Fatalf("save candidate: %v", err)
	}
}

func (e *env) attemptService() *app.AttemptService {
	return app.NewAttemptService(e.tests, e.attempts, e.gate, app.NewShuffler(rand.NewSource(42))).WithClock(e.clock)
}

// answer builds a submission choosing original option orig through a shuffled optionMap.
func answer(t *testing.T, s *app.Shuffler, q domain.Question, orig int) domain.SubmittedAnswer {
	t.Helper()
	_, optionMap := s.ShuffleOptions(q.Options)
	for display, o := range optionMap {
		if o == orig {
			d := display
			return domain.SubmittedAnswer{QuestionID: q.ID, SelectedOption: &d, OptionMap: optionMap}
		}
	}
	t.Fatalf("option %d not in map %v", orig, optionMap)
	return domain.SubmittedAnswer{}
}

type stubGateway struct {
	mu       sync.Mutex
	created  []domain.GatewayOrder
	payments []domain.GatewayPayment
}

func (g *stubGateway) CreateOrder(_ context.Context, order domain.GatewayOrder) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, order)
	return json.RawMessage(`{"order_id":"` + order.OrderID + `","payment_session_id":"ps_1"}`), nil
}

func (g *stubGateway) ListPayments(context.Context, string) ([]domain.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payments, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	tests []string
}

func (n *recordingNotifier) AttemptCompleted(_ context.Context, testID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tests = append(n.tests, testID)
}
