package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtutor/backend/internal/app/models"
	"github.com/microtutor/backend/internal/db"
	"github.com/microtutor/backend/internal/pkg/apperrors"
)

// QueryRepository handles database operations for tutoring queries. Lifecycle
// transitions that contend on the same query row run as row-locked
// transactions.
type QueryRepository struct {
	db *pgxpool.Pool
}

// NewQueryRepository creates a new QueryRepository
func NewQueryRepository(db *pgxpool.Pool) *QueryRepository {
	return &QueryRepository{db: db}
}

// Create inserts a new pending query and returns its id
func (r *QueryRepository) Create(ctx context.Context, query *models.Query) (int64, error) {
	sql := `
		INSERT INTO queries (subject, subtopic, body, student_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, sql,
		query.Subject,
		query.Subtopic,
		query.Body,
		query.StudentID,
		models.QueryStatusPending,
	).Scan(&query.ID, &query.CreatedAt, &query.UpdatedAt)

	if err != nil {
		return 0, fmt.Errorf("error creating query: %w", err)
	}

	query.Status = models.QueryStatusPending
	return query.ID, nil
}

// GetByID retrieves a query by its id
func (r *QueryRepository) GetByID(ctx context.Context, id int64) (*models.Query, error) {
	sql := `
		SELECT id, subject, subtopic, body, student_id, status, accepted_tutor_id,
		       created_at, updated_at, accepted_at
		FROM queries
		WHERE id = $1
	`

	var q models.Query
	err := r.db.QueryRow(ctx, sql, id).Scan(
		&q.ID, &q.Subject, &q.Subtopic, &q.Body, &q.StudentID, &q.Status,
		&q.AcceptedTutorID, &q.CreatedAt, &q.UpdatedAt, &q.AcceptedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrQueryNotFound
		}
		return nil, fmt.Errorf("error retrieving query: %w", err)
	}

	return &q, nil
}

// ListPendingForTutor returns pending queries visible to a tutor: subtopic
// matching one of the tutor's specialties (all pending queries when the tutor
// declared none), excluding queries the tutor has declined, newest first.
func (r *QueryRepository) ListPendingForTutor(ctx context.Context, tutor *models.User) ([]*models.Query, error) {
	builder := squirrel.Select(
		"q.id", "q.subject", "q.subtopic", "q.body", "q.student_id", "q.status",
		"q.accepted_tutor_id", "q.created_at", "q.updated_at", "q.accepted_at",
		"u.username",
	).
		From("queries q").
		Join("users u ON q.student_id = u.id").
		Where("q.status = ?", models.QueryStatusPending).
		Where("NOT EXISTS (SELECT 1 FROM query_declines d WHERE d.query_id = q.id AND d.tutor_id = ?)", tutor.ID).
		OrderBy("q.created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	if len(tutor.Specialties) > 0 {
		builder = builder.Where("q.subtopic = ANY(?)", tutor.Specialties)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var queries []*models.Query
	for rows.Next() {
		var q models.Query
		var studentName string

		err := rows.Scan(
			&q.ID, &q.Subject, &q.Subtopic, &q.Body, &q.StudentID, &q.Status,
			&q.AcceptedTutorID, &q.CreatedAt, &q.UpdatedAt, &q.AcceptedAt,
			&studentName,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning query row: %w", err)
		}

		q.Student = &models.User{ID: q.StudentID, Username: studentName}
		queries = append(queries, &q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query rows: %w", err)
	}

	return queries, nil
}

// Accept moves a pending query to ACCEPTED for the given tutor. The query row
// and the tutor row are locked for the duration of the transaction so that
// concurrent accepts serialize; the first committer wins and later ones get
// ErrQueryNotAvailable. Any decline the tutor recorded for this query is
// cleared in the same transaction.
func (r *QueryRepository) Accept(ctx context.Context, queryID, tutorID int64) (*models.Query, error) {
	var accepted models.Query

	err := db.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		// Lock the tutor row first, then the query row. All lifecycle
		// transactions take locks in this order.
		var lockedTutorID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM users WHERE id = $1 AND role_type = $2 FOR UPDATE`,
			tutorID, models.RoleTutor,
		).Scan(&lockedTutorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("error locking tutor row: %w", err)
		}

		var status models.QueryStatus
		err = tx.QueryRow(ctx,
			`SELECT status FROM queries WHERE id = $1 FOR UPDATE`,
			queryID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrQueryNotFound
			}
			return fmt.Errorf("error locking query row: %w", err)
		}

		if status != models.QueryStatusPending {
			return apperrors.ErrQueryNotAvailable
		}

		err = tx.QueryRow(ctx, `
			UPDATE queries
			SET status = $1, accepted_tutor_id = $2, accepted_at = NOW(), updated_at = NOW()
			WHERE id = $3
			RETURNING id, subject, subtopic, body, student_id, status, accepted_tutor_id,
			          created_at, updated_at, accepted_at
		`, models.QueryStatusAccepted, tutorID, queryID).Scan(
			&accepted.ID, &accepted.Subject, &accepted.Subtopic, &accepted.Body,
			&accepted.StudentID, &accepted.Status, &accepted.AcceptedTutorID,
			&accepted.CreatedAt, &accepted.UpdatedAt, &accepted.AcceptedAt,
		)
		if err != nil {
			return fmt.Errorf("error accepting query: %w", err)
		}

		// Re-acceptance overrides a prior decline
		_, err = tx.Exec(ctx,
			`DELETE FROM query_declines WHERE query_id = $1 AND tutor_id = $2`,
			queryID, tutorID,
		)
		if err != nil {
			return fmt.Errorf("error clearing decline: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &accepted, nil
}

// ListAcceptedForTutor returns queries the tutor has accepted (in any
// post-pending state), each with the posting student's name and the latest
// session for the query.
func (r *QueryRepository) ListAcceptedForTutor(ctx context.Context, tutorID int64) ([]*models.Query, error) {
	builder := squirrel.Select(
		"q.id", "q.subject", "q.subtopic", "q.body", "q.student_id", "q.status",
		"q.accepted_tutor_id", "q.created_at", "q.updated_at", "q.accepted_at",
		"u.username",
		"s.id", "s.status", "s.started_at", "s.ended_at",
	).
		From("queries q").
		Join("users u ON q.student_id = u.id").
		JoinClause(latestSessionJoin).
		Where("q.accepted_tutor_id = ?", tutorID).
		OrderBy("q.accepted_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var queries []*models.Query
	for rows.Next() {
		var q models.Query
		var studentName string
		var sessionID *int64
		var sessionStatus *models.SessionStatus
		var sessionStartedAt, sessionEndedAt *time.Time

		err := rows.Scan(
			&q.ID, &q.Subject, &q.Subtopic, &q.Body, &q.StudentID, &q.Status,
			&q.AcceptedTutorID, &q.CreatedAt, &q.UpdatedAt, &q.AcceptedAt,
			&studentName,
			&sessionID, &sessionStatus, &sessionStartedAt, &sessionEndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning accepted query row: %w", err)
		}

		q.Student = &models.User{ID: q.StudentID, Username: studentName}
		if sessionID != nil {
			q.LatestSession = &models.Session{
				ID:        *sessionID,
				QueryID:   q.ID,
				TutorID:   tutorID,
				StudentID: q.StudentID,
				Status:    *sessionStatus,
				StartedAt: *sessionStartedAt,
				EndedAt:   sessionEndedAt,
			}
		}
		queries = append(queries, &q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accepted query rows: %w", err)
	}

	return queries, nil
}

// ListForStudent returns a student's queries newest first, each with the
// accepting tutor's profile (when accepted) and the latest session.
func (r *QueryRepository) ListForStudent(ctx context.Context, studentID int64) ([]*models.Query, error) {
	builder := squirrel.Select(
		"q.id", "q.subject", "q.subtopic", "q.body", "q.student_id", "q.status",
		"q.accepted_tutor_id", "q.created_at", "q.updated_at", "q.accepted_at",
		"t.username", "t.rate_per_10_min", "t.bio", "t.education",
		"s.id", "s.status", "s.started_at", "s.ended_at",
	).
		From("queries q").
		LeftJoin("users t ON q.accepted_tutor_id = t.id").
		JoinClause(latestSessionJoin).
		Where("q.student_id = ?", studentID).
		OrderBy("q.created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var queries []*models.Query
	for rows.Next() {
		var q models.Query
		var tutorName *string
		var tutorRate *float64
		var tutorBio, tutorEducation *string
		var sessionID *int64
		var sessionStatus *models.SessionStatus
		var sessionStartedAt, sessionEndedAt *time.Time

		err := rows.Scan(
			&q.ID, &q.Subject, &q.Subtopic, &q.Body, &q.StudentID, &q.Status,
			&q.AcceptedTutorID, &q.CreatedAt, &q.UpdatedAt, &q.AcceptedAt,
			&tutorName, &tutorRate, &tutorBio, &tutorEducation,
			&sessionID, &sessionStatus, &sessionStartedAt, &sessionEndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning student query row: %w", err)
		}

		if q.AcceptedTutorID != nil && tutorName != nil {
			q.AcceptedTutor = &models.User{
				ID:           *q.AcceptedTutorID,
				Username:     *tutorName,
				RatePer10Min: tutorRate,
				Bio:          tutorBio,
				Education:    tutorEducation,
			}
		}
		if sessionID != nil {
			q.LatestSession = &models.Session{
				ID:        *sessionID,
				QueryID:   q.ID,
				StudentID: q.StudentID,
				Status:    *sessionStatus,
				StartedAt: *sessionStartedAt,
				EndedAt:   sessionEndedAt,
			}
		}
		queries = append(queries, &q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student query rows: %w", err)
	}

	return queries, nil
}

// latestSessionJoin attaches the most recent session per query, if any.
const latestSessionJoin = `LEFT JOIN LATERAL (
	SELECT id, status, started_at, ended_at
	FROM sessions
	WHERE sessions.query_id = q.id
	ORDER BY started_at DESC
	LIMIT 1
) s ON true`
