package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository persists the outcome of every external verification call,
// successes and failures alike.
type AuditRepository interface {
	InsertResult(ctx context.Context, res *model.VerificationResult) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.VerificationResult, error)
}

type auditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo creates a new AuditRepository.
func NewAuditRepo(pool *pgxpool.Pool) AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) InsertResult(ctx context.Context, res *model.VerificationResult) error {
	const q = `
        INSERT INTO verification_results (id, user_id, capability_id, status, detail)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at
    `
	err := r.pool.QueryRow(ctx, q, res.ID, res.UserID, res.CapabilityID, res.Status, res.Detail).
		Scan(&res.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording verification result for user %s: %w", res.UserID, err)
	}
	return nil
}

func (r *auditRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.VerificationResult, error) {
	const q = `
        SELECT id, user_id, capability_id, status, detail, created_at
        FROM verification_results
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing verification results for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.VerificationResult
	for rows.Next() {
		var res model.VerificationResult
		if err := rows.Scan(&res.ID, &res.UserID, &res.CapabilityID, &res.Status, &res.Detail, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning verification result: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing verification results for user %s: %w", userID, err)
	}
	return out, nil
}
