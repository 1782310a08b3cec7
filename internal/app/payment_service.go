package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"scholarship-exam-service/internal/domain"
)

var (
	// ErrInvalidSignature is logged, never surfaced, by the webhook transport.
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrMalformedWebhook = errors.New("malformed webhook body")
)

const (
	MessagePaymentRecorded = "payment recorded"
	MessagePaymentExists   = "payment already recorded"
	MessagePaymentPending  = "payment pending"
)

// PaymentConfig carries the gateway order settings.
type PaymentConfig struct {
	Currency  string
	ReturnURL string
	NotifyURL string
}

// PaymentService reconciles gateway orders into Payment records. The poll and
// webhook paths race freely; both treat an existing record as success.
type PaymentService struct {
	exams    ExamLoader
	payments PaymentRepository
	gate     *AdmissionGate
	orders   OrderRegistry
	gateway  PaymentGateway
	verifier WebhookVerifier
	cfg      PaymentConfig
	now      func() time.Time
}

func NewPaymentService(exams ExamLoader, payments PaymentRepository, gate *AdmissionGate, orders OrderRegistry, gateway PaymentGateway, verifier WebhookVerifier, cfg PaymentConfig) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &PaymentService{
		exams:    exams,
		payments: payments,
		gate:     gate,
		orders:   orders,
		gateway:  gateway,
		verifier: verifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateOrder opens a gateway order for the caller and test. Free tests and
// candidates already covered by a payment or grant never reach the gateway.
func (s *PaymentService) CreateOrder(ctx context.Context, who domain.Identity, testID, phone string) (json.RawMessage, error) {
	exam, err := s.exams.LoadExam(ctx, testID)
	if err != nil {
		return nil, err
	}
	if !exam.Test.Published {
		return nil, domain.ErrTestNotFound
	}
	if !exam.Test.RequiresPayment() {
		return nil, domain.ErrPaymentNotRequired
	}
	candidate, err := s.gate.EnsureContact(ctx, who, phone)
	if err != nil {
		return nil, err
	}
	if _, err := s.payments.FindPayment(ctx, who.UID, testID); err == nil {
		return nil, domain.ErrPaymentExists
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}
	if _, err := s.payments.FindGrant(ctx, who.UID); err == nil {
		return nil, domain.ErrGrantExists
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}

	orderID := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	pending := domain.PendingOrder{
		OrderID:     orderID,
		CandidateID: who.UID,
		TestID:      testID,
		Amount:      exam.Test.Price,
		CreatedAt:   s.now(),
	}
	if err := s.orders.Remember(ctx, pending); err != nil {
		return nil, fmt.Errorf("remember order: %w", err)
	}

	order := domain.GatewayOrder{
		OrderID:       orderID,
		OrderAmount:   exam.Test.Price.InexactFloat64(),
		OrderCurrency: s.cfg.Currency,
		CustomerDetails: domain.CustomerDetails{
			CustomerID:    candidate.UID,
			CustomerPhone: candidate.PhoneNumber,
			CustomerName:  candidate.Name,
		},
		OrderMeta: domain.OrderMeta{
			ReturnURL: strings.ReplaceAll(s.cfg.ReturnURL, "{order_id}", orderID),
			NotifyURL: s.cfg.NotifyURL,
		},
		OrderTags: map[string]string{"test_id": testID},
	}
	payload, err := s.gateway.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}
	log.Info().Str("order", orderID).Str("candidate", who.UID).Str("test", testID).Msg("gateway order created")
	return payload, nil
}

// ConfirmOrder is the synchronous poll path.
func (s *PaymentService) ConfirmOrder(ctx context.Context, candidateID, orderID string) (string, error) {
	pending, err := s.orders.Lookup(ctx, orderID)
	if err != nil {
		return "", err
	}
	if pending.CandidateID != candidateID {
		return "", domain.ErrOrderNotFound
	}

	payments, err := s.gateway.ListPayments(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("list gateway payments: %w", err)
	}
	var captured *domain.GatewayPayment
	for i := range payments {
		if payments[i].PaymentStatus == domain.GatewayPaymentSuccess {
			captured = &payments[i]
			break
		}
	}
	if captured == nil {
		return MessagePaymentPending, nil
	}

	created, err := s.record(ctx, domain.Payment{
		CandidateID:      pending.CandidateID,
		TestID:           pending.TestID,
		Amount:           decimal.NewFromFloat(captured.PaymentAmount),
		Method:           domain.PaymentGateway,
		OrderID:          orderID,
		GatewayPaymentID: captured.CFPaymentID.String(),
	})
	if err != nil {
		return "", err
	}
	if !created {
		return MessagePaymentExists, nil
	}
	return MessagePaymentRecorded, nil
}

// HandleWebhook processes a signed gateway notification. The returned error is
// for logging only; callers must answer the gateway with success regardless.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, timestamp, signature string) error {
	if !s.verifier.Verify(body, timestamp, signature) {
		return ErrInvalidSignature
	}
	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if event.Type != domain.WebhookEventPaymentSuccess || event.Data.Payment.PaymentStatus != domain.GatewayPaymentSuccess {
		log.Debug().Str("type", event.Type).Str("status", event.Data.Payment.PaymentStatus).Msg("webhook ignored")
		return nil
	}

	orderID := event.Data.Order.OrderID
	candidateID := event.Data.CustomerDetails.CustomerID
	testID := event.Data.Order.OrderTags["test_id"]
	if testID == "" || candidateID == "" {
		pending, err := s.orders.Lookup(ctx, orderID)
		if err != nil {
			return fmt.Errorf("resolve order %s: %w", orderID, err)
		}
		if testID == "" {
			testID = pending.TestID
		}
		if candidateID == "" {
			candidateID = pending.CandidateID
		}
	}

	_, err := s.record(ctx, domain.Payment{
		CandidateID:      candidateID,
		TestID:           testID,
		Amount:           decimal.NewFromFloat(event.Data.Payment.PaymentAmount),
		Method:           domain.PaymentGateway,
		OrderID:          orderID,
		GatewayPaymentID: event.Data.Payment.CFPaymentID.String(),
	})
	return err
}

// Grant creates the account-level credit for a candidate.
func (s *PaymentService) Grant(ctx context.Context, uid string, amount decimal.Decimal) (domain.Payment, error) {
	if amount.IsNegative() {
		return domain.Payment{}, domain.NewValidationError(map[string]string{"amount": "must not be negative"})
	}
	if _, err := s.gate.candidates.GetCandidate(ctx, uid); err != nil {
		return domain.Payment{}, err
	}
	if _, err := s.payments.FindGrant(ctx, uid); err == nil {
		return domain.Payment{}, domain.ErrGrantExists
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return domain.Payment{}, err
	}
	p := domain.Payment{
		ID:          uuid.NewString(),
		CandidateID: uid,
		Amount:      amount,
		Method:      domain.PaymentGrant,
		CreatedAt:   s.now(),
	}
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.Payment{}, domain.ErrGrantExists
		}
		return domain.Payment{}, err
	}
	log.Info().Str("candidate", uid).Str("amount", amount.String()).Msg("payment granted")
	return p, nil
}

// record writes p unless the pair already has a payment. It reports whether
// this call created the record; a lost race is not an error.
func (s *PaymentService) record(ctx context.Context, p domain.Payment) (bool, error) {
	if _, err := s.payments.FindPayment(ctx, p.CandidateID, p.TestID); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return false, err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = s.now()
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			log.Info().Str("candidate", p.CandidateID).Str("test", p.TestID).Msg("payment recorded concurrently")
			return false, nil
		}
		return false, err
	}
	log.Info().Str("candidate", p.CandidateID).Str("test", p.TestID).Str("order", p.OrderID).Msg("payment recorded")
	return true, nil
}
