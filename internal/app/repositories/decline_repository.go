package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtutor/backend/internal/pkg/apperrors"
	"github.com/microtutor/backend/internal/pkg/dberrors"
)

// DeclineRepository handles database operations for the decline ledger
type DeclineRepository struct {
	db *pgxpool.Pool
}

// NewDeclineRepository creates a new DeclineRepository
func NewDeclineRepository(db *pgxpool.Pool) *DeclineRepository {
	return &DeclineRepository{db: db}
}

// Upsert records a tutor's decline of a query. Repeat declines refresh the
// timestamp instead of failing, so the operation is idempotent.
func (r *DeclineRepository) Upsert(ctx context.Context, queryID, tutorID int64) error {
	query := `
		INSERT INTO query_declines (query_id, tutor_id)
		VALUES ($1, $2)
		ON CONFLICT (query_id, tutor_id) DO UPDATE SET created_at = NOW()
	`

	_, err := r.db.Exec(ctx, query, queryID, tutorID)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrQueryNotFound
		}
		return fmt.Errorf("error recording decline: %w", err)
	}

	return nil
}

// Exists reports whether a tutor currently has a decline on record for a query
func (r *DeclineRepository) Exists(ctx context.Context, queryID, tutorID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM query_declines WHERE query_id = $1 AND tutor_id = $2)`

	var exists bool
	err := r.db.QueryRow(ctx, query, queryID, tutorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking decline: %w", err)
	}

	return exists, nil
}
