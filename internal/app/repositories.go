package app

import (
	"context"
	"encoding/json"

	"scholarship-exam-service/internal/domain"
)

// ExamLoader loads a test with its question bank (from cache or backing store).
type ExamLoader interface {
	LoadExam(ctx context.Context, testID string) (domain.Exam, error)
}

// ExamCache is an ExamLoader whose entries can be dropped after edits.
type ExamCache interface {
	ExamLoader
	Invalidate(ctx context.Context, testID string)
}

// TestRepository persists tests and questions.
type TestRepository interface {
	ExamLoader
	GetTest(ctx context.Context, id string) (domain.Test, error)
	CreateTest(ctx context.Context, t domain.Test) error
	UpdateTest(ctx context.Context, t domain.Test) error
	DeleteTest(ctx context.Context, id string) error
	// AddQuestion locks the test, applies edit to it and stores q with the
	// resulting sections. An error from edit aborts the write.
	AddQuestion(ctx context.Context, q domain.Question, edit domain.SectionEdit) error
	// DeleteQuestion locks the test, applies edit and removes the question.
	DeleteQuestion(ctx context.Context, testID, questionID string, edit domain.SectionEdit) error
}

type SessionRepository interface {
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// CreateSession returns domain.ErrDuplicate when the year is taken.
	CreateSession(ctx context.Context, s domain.Session) error
}

// AttemptRepository stores attempts under a (candidate, test) uniqueness constraint.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, candidateID, testID string) (domain.Attempt, error)
	// CreateAttempt returns domain.ErrDuplicate when the pair already has an attempt.
	CreateAttempt(ctx context.Context, a domain.Attempt) error
	// CompleteAttempt writes answers, score and completion only if the attempt is
	// still open; otherwise it returns domain.ErrAttemptCompleted.
	CompleteAttempt(ctx context.Context, a domain.Attempt) error
	ListCompleted(ctx context.Context, testID string) ([]domain.Attempt, error)
	DeleteForTest(ctx context.Context, testID string) error
}

// PaymentRepository stores at most one payment per (candidate, test) and one grant per candidate.
type PaymentRepository interface {
	FindPayment(ctx context.Context, candidateID, testID string) (domain.Payment, error)
	FindGrant(ctx context.Context, candidateID string) (domain.Payment, error)
	// CreatePayment returns domain.ErrDuplicate when a uniqueness constraint rejects the write.
	CreatePayment(ctx context.Context, p domain.Payment) error
}

type CandidateRepository interface {
	GetCandidate(ctx context.Context, uid string) (domain.Candidate, error)
	GetCandidates(ctx context.Context, uids []string) (map[string]domain.Candidate, error)
	SaveCandidate(ctx context.Context, c domain.Candidate) error
	UpdatePhone(ctx context.Context, uid, phone string) error
	DeleteCandidate(ctx context.Context, uid string) error
}

// ScorecardQueue is the producer side of the artifact pipeline.
type ScorecardQueue interface {
	Enqueue(ctx context.Context, job domain.ScorecardJob) error
}

// OrderRegistry remembers which (candidate, test) an outstanding gateway order belongs to.
type OrderRegistry interface {
	Remember(ctx context.Context, order domain.PendingOrder) error
	Lookup(ctx context.Context, orderID string) (domain.PendingOrder, error)
}

// PaymentGateway is the external order/payment API.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, order domain.GatewayOrder) (json.RawMessage, error)
	ListPayments(ctx context.Context, orderID string) ([]domain.GatewayPayment, error)
}

// WebhookVerifier checks the gateway signature over the raw body.
type WebhookVerifier interface {
	Verify(body []byte, timestamp, signature string) bool
}

// IdentityProvider owns external identities.
type IdentityProvider interface {
	DeleteIdentity(ctx context.Context, uid string) error
}

// OrphanRegistry tracks external identities whose deletion failed.
type OrphanRegistry interface {
	Add(ctx context.Context, uid string) error
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, uid string) error
}

// CompletionNotifier is told when an attempt reaches Completed.
type CompletionNotifier interface {
	AttemptCompleted(ctx context.Context, testID string)
}
