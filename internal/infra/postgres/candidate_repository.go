package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"scholarship-exam-service/internal/domain"
)

// CandidateRepository stores candidate profiles. Deleting a candidate cascades to
// payments but leaves attempts in place.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

const candidateColumns = `uid, name, father_name, mother_name, phone_number, role`

func (r *CandidateRepository) GetCandidate(ctx context.Context, uid string) (domain.Candidate, error) {
	var (
		c    domain.Candidate
		role string
	)
	err := r.pool.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE uid=$1`, uid).
		Scan(&c.UID, &c.Name, &c.FatherName, &c.MotherName, &c.PhoneNumber, &role)
	if isNoRows(err) {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("get candidate: %w", err)
	}
	c.Role = domain.Role(role)
	return c, nil
}

func (r *CandidateRepository) GetCandidates(ctx context.Context, uids []string) (map[string]domain.Candidate, error) {
	out := make(map[string]domain.Candidate, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE uid = ANY($1)`, uids)
	if err != nil {
		return nil, fmt.Errorf("get candidates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c    domain.Candidate
			role string
		)
		if err := rows.Scan(&c.UID, &c.Name, &c.FatherName, &c.MotherName, &c.PhoneNumber, &role); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Role = domain.Role(role)
		out[c.UID] = c
	}
	return out, rows.Err()
}

func (r *CandidateRepository) SaveCandidate(ctx context.Context, c domain.Candidate) error {
	if c.Role == "" {
		c.Role = domain.RoleStudent
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO candidates (uid, name, father_name, mother_name, phone_number, role)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (uid) DO UPDATE SET name=EXCLUDED.name, father_name=EXCLUDED.father_name,
    mother_name=EXCLUDED.mother_name, phone_number=EXCLUDED.phone_number, role=EXCLUDED.role`,
		c.UID, c.Name, c.FatherName, c.MotherName, c.PhoneNumber, string(c.Role))
	if err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}
	return nil
}

func (r *CandidateRepository) UpdatePhone(ctx context.Context, uid, phone string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE candidates SET phone_number=$2 WHERE uid=$1`, uid, phone)
	if err != nil {
		return fmt.Errorf("update phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCandidateNotFound
	}
	return nil
}

func (r *CandidateRepository) DeleteCandidate(ctx context.Context, uid string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM candidates WHERE uid=$1`, uid)
	if err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCandidateNotFound
	}
	return nil
}
