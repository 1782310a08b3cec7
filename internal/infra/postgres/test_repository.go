package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"scholarship-exam-service/internal/domain"
)

// TestRepository stores tests, their questions and exam sessions.
type TestRepository struct {
	pool *pgxpool.Pool
}

func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `id, instructor_id, description, sections, start_date_time, price::text, published, stream, session_id`

func (r *TestRepository) LoadExam(ctx context.Context, testID string) (domain.Exam, error) {
	test, err := r.GetTest(ctx, testID)
	if err != nil {
		return domain.Exam{}, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question, options, correct_answer_index FROM questions WHERE test_id=$1`, testID)
	if err != nil {
		return domain.Exam{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Question)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.Text, &q.Options, &q.CorrectAnswerIndex); err != nil {
			return domain.Exam{}, fmt.Errorf("scan question: %w", err)
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return domain.Exam{}, fmt.Errorf("load questions: %w", err)
	}

	// Section order is the canonical question order.
	exam := domain.Exam{Test: test}
	for _, section := range test.Sections {
		for _, id := range section.QuestionIDs {
			if q, ok := byID[id]; ok {
				exam.Questions = append(exam.Questions, q)
			}
		}
	}
	return exam, nil
}

func (r *TestRepository) GetTest(ctx context.Context, id string) (domain.Test, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id=$1`, id)
	test, err := scanTest(row)
	if isNoRows(err) {
		return domain.Test{}, domain.ErrTestNotFound
	}
	if err != nil {
		return domain.Test{}, fmt.Errorf("get test: %w", err)
	}
	return test, nil
}

func (r *TestRepository) CreateTest(ctx context.Context, t domain.Test) error {
	sections, err := json.Marshal(t.Sections)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO tests (id, instructor_id, description, sections, start_date_time, price, published, stream, session_id)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		t.ID, t.InstructorID, t.Description, sections, t.StartDateTime, t.Price.String(), t.Published, t.Stream, nullable(t.SessionID))
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create test: %w", err)
	}
	return nil
}

func (r *TestRepository) UpdateTest(ctx context.Context, t domain.Test) error {
	sections, err := json.Marshal(t.Sections)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE tests SET description=$2, sections=$3, start_date_time=$4, price=$5::numeric,
    published=$6, stream=$7, session_id=$8
WHERE id=$1`,
		t.ID, t.Description, sections, t.StartDateTime, t.Price.String(), t.Published, t.Stream, nullable(t.SessionID))
	if err != nil {
		return fmt.Errorf("update test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTestNotFound
	}
	return nil
}

// DeleteTest cascades to questions and attempts.
func (r *TestRepository) DeleteTest(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTestNotFound
	}
	return nil
}

func (r *TestRepository) AddQuestion(ctx context.Context, q domain.Question, edit domain.SectionEdit) error {
	return r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		raw, err := lockAndEdit(ctx, tx, q.TestID, edit)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO questions (id, test_id, question, options, correct_answer_index) VALUES ($1, $2, $3, $4, $5)`,
			q.ID, q.TestID, q.Text, q.Options, q.CorrectAnswerIndex); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		return setSections(ctx, tx, q.TestID, raw)
	})
}

func (r *TestRepository) DeleteQuestion(ctx context.Context, testID, questionID string, edit domain.SectionEdit) error {
	return r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		raw, err := lockAndEdit(ctx, tx, testID, edit)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM questions WHERE id=$1 AND test_id=$2`, questionID, testID)
		if err != nil {
			return fmt.Errorf("delete question: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrQuestionNotFound
		}
		return setSections(ctx, tx, testID, raw)
	})
}

func (r *TestRepository) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	err := r.pool.QueryRow(ctx, `SELECT id, year, common_name FROM exam_sessions WHERE id=$1`, id).
		Scan(&s.ID, &s.Year, &s.CommonName)
	if isNoRows(err) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *TestRepository) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO exam_sessions (id, year, common_name) VALUES ($1, $2, $3)`,
		s.ID, s.Year, s.CommonName)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// lockAndEdit holds the test row until the transaction ends and applies edit to it.
func lockAndEdit(ctx context.Context, tx pgx.Tx, testID string, edit domain.SectionEdit) ([]byte, error) {
	current, err := scanTest(tx.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id=$1 FOR UPDATE`, testID))
	if isNoRows(err) {
		return nil, domain.ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock test: %w", err)
	}
	sections, err := edit(current)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sections)
}

func setSections(ctx context.Context, tx pgx.Tx, testID string, sections []byte) error {
	tag, err := tx.Exec(ctx, `UPDATE tests SET sections=$2 WHERE id=$1`, testID, sections)
	if err != nil {
		return fmt.Errorf("update sections: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTestNotFound
	}
	return nil
}

func scanTest(row pgx.Row) (domain.Test, error) {
	var (
		t         domain.Test
		sections  []byte
		price     string
		sessionID *string
	)
	if err := row.Scan(&t.ID, &t.InstructorID, &t.Description, &sections, &t.StartDateTime,
		&price, &t.Published, &t.Stream, &sessionID); err != nil {
		return domain.Test{}, err
	}
	if err := json.Unmarshal(sections, &t.Sections); err != nil {
		return domain.Test{}, fmt.Errorf("unmarshal sections: %w", err)
	}
	amount, err := parseAmount(price)
	if err != nil {
		return domain.Test{}, fmt.Errorf("parse price: %w", err)
	}
	t.Price = amount
	t.SessionID = deref(sessionID)
	t.StartDateTime = t.StartDateTime.UTC()
	return t, nil
}
