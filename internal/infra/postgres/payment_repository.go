package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"scholarship-exam-service/internal/domain"
)

// PaymentRepository relies on two partial unique indexes: one per (candidate, test)
// and one grant per candidate.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `id, candidate_id, test_id, amount::text, method, order_id, gateway_payment_id, created_at`

func (r *PaymentRepository) FindPayment(ctx context.Context, candidateID, testID string) (domain.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE candidate_id=$1 AND test_id=$2`, candidateID, testID)
}

func (r *PaymentRepository) FindGrant(ctx context.Context, candidateID string) (domain.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE candidate_id=$1 AND method=$2`,
		candidateID, string(domain.PaymentGrant))
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO payments (id, candidate_id, test_id, amount, method, order_id, gateway_payment_id, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		p.ID, p.CandidateID, nullable(p.TestID), p.Amount.String(), string(p.Method), p.OrderID, p.GatewayPaymentID, p.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	if err != nil {
		return domain.Payment{}, fmt.Errorf("find payment: %w", err)
	}
	return p, nil
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var (
		p      domain.Payment
		testID *string
		amount string
		method string
	)
	if err := row.Scan(&p.ID, &p.CandidateID, &testID, &amount, &method, &p.OrderID, &p.GatewayPaymentID, &p.CreatedAt); err != nil {
		return domain.Payment{}, err
	}
	value, err := parseAmount(amount)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("parse amount: %w", err)
	}
	p.Amount = value
	p.TestID = deref(testID)
	p.Method = domain.PaymentMethod(method)
	return p, nil
}
