package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtutor/backend/internal/app/models"
	"github.com/microtutor/backend/internal/db"
	"github.com/microtutor/backend/internal/pkg/apperrors"
)

// SessionRepository handles database operations for tutoring sessions
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByID retrieves a session by its id
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	query := `
		SELECT id, query_id, tutor_id, student_id, status, started_at, ended_at
		FROM sessions
		WHERE id = $1
	`

	var s models.Session
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.QueryID, &s.TutorID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error retrieving session: %w", err)
	}

	return &s, nil
}

// Start creates an active session for the query and moves the query to
// IN_SESSION. The query must be ACCEPTED or IN_SESSION; anything else fails
// with ErrQueryNotAvailable. The query row is locked for the transaction; if
// a non-ended session already exists its id is returned unchanged, so retries
// and double-clicks cannot create duplicates.
func (r *SessionRepository) Start(ctx context.Context, queryID, tutorID, studentID int64) (sessionID int64, existing bool, err error) {
	err = db.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var status models.QueryStatus
		err := tx.QueryRow(ctx,
			`SELECT status FROM queries WHERE id = $1 FOR UPDATE`,
			queryID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrQueryNotFound
			}
			return fmt.Errorf("error locking query row: %w", err)
		}

		// Sessions only exist for accepted queries. A PENDING query has no
		// tutor and a COMPLETED query cannot be re-opened.
		if status != models.QueryStatusAccepted && status != models.QueryStatusInSession {
			return apperrors.ErrQueryNotAvailable
		}

		err = tx.QueryRow(ctx,
			`SELECT id FROM sessions WHERE query_id = $1 AND status = $2 ORDER BY started_at DESC LIMIT 1`,
			queryID, models.SessionStatusActive,
		).Scan(&sessionID)
		if err == nil {
			existing = true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("error checking for active session: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO sessions (query_id, tutor_id, student_id, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, queryID, tutorID, studentID, models.SessionStatusActive).Scan(&sessionID)
		if err != nil {
			return fmt.Errorf("error creating session: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE queries SET status = $1, updated_at = NOW() WHERE id = $2`,
			models.QueryStatusInSession, queryID,
		)
		if err != nil {
			return fmt.Errorf("error updating query status: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return sessionID, existing, nil
}

// End terminates a session and completes the owning query in one transaction.
// The session row is locked; ending an already-ended session is a no-op
// reported through alreadyEnded.
func (r *SessionRepository) End(ctx context.Context, sessionID int64) (session *models.Session, alreadyEnded bool, err error) {
	var s models.Session

	err = db.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, query_id, tutor_id, student_id, status, started_at, ended_at
			FROM sessions
			WHERE id = $1
			FOR UPDATE
		`, sessionID).Scan(
			&s.ID, &s.QueryID, &s.TutorID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrSessionNotFound
			}
			return fmt.Errorf("error locking session row: %w", err)
		}

		if s.Status == models.SessionStatusEnded {
			alreadyEnded = true
			return nil
		}

		err = tx.QueryRow(ctx, `
			UPDATE sessions SET status = $1, ended_at = NOW() WHERE id = $2
			RETURNING status, ended_at
		`, models.SessionStatusEnded, sessionID).Scan(&s.Status, &s.EndedAt)
		if err != nil {
			return fmt.Errorf("error ending session: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE queries SET status = $1, updated_at = NOW() WHERE id = $2`,
			models.QueryStatusCompleted, s.QueryID,
		)
		if err != nil {
			return fmt.Errorf("error completing query: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &s, alreadyEnded, nil
}
