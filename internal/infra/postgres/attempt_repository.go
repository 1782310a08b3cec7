package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"scholarship-exam-service/internal/domain"
)

// AttemptRepository relies on UNIQUE(candidate_id, test_id) for exactly-once creation
// and a conditional UPDATE for exactly-once completion.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, candidate_id, test_id, answers, score, started_at, completed_at`

func (r *AttemptRepository) GetAttempt(ctx context.Context, candidateID, testID string) (domain.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE candidate_id=$1 AND test_id=$2`, candidateID, testID)
	a, err := scanAttempt(row)
	if isNoRows(err) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return a, nil
}

func (r *AttemptRepository) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	answers, err := marshalAnswers(a.Answers)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO attempts (id, candidate_id, test_id, answers, score, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.CandidateID, a.TestID, answers, a.Score, a.StartedAt, a.CompletedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) CompleteAttempt(ctx context.Context, a domain.Attempt) error {
	answers, err := marshalAnswers(a.Answers)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE attempts SET answers=$3, score=$4, completed_at=$5
WHERE candidate_id=$1 AND test_id=$2 AND completed_at IS NULL`,
		a.CandidateID, a.TestID, answers, a.Score, a.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Either missing or already completed.
	if _, err := r.GetAttempt(ctx, a.CandidateID, a.TestID); err != nil {
		return err
	}
	return domain.ErrAttemptCompleted
}

func (r *AttemptRepository) ListCompleted(ctx context.Context, testID string) ([]domain.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE test_id=$1 AND completed_at IS NOT NULL`, testID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AttemptRepository) DeleteForTest(ctx context.Context, testID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM attempts WHERE test_id=$1`, testID); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	return nil
}

func marshalAnswers(answers []domain.AnswerRecord) ([]byte, error) {
	if answers == nil {
		answers = []domain.AnswerRecord{}
	}
	return json.Marshal(answers)
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		a       domain.Attempt
		answers []byte
	)
	if err := row.Scan(&a.ID, &a.CandidateID, &a.TestID, &answers, &a.Score, &a.StartedAt, &a.CompletedAt); err != nil {
		return domain.Attempt{}, err
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return a, nil
}
