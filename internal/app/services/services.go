package services

import (
	"context"
	"time"

	"github.com/microtutor/backend/internal/app/models"
)

// Store interfaces consumed by the services. The pgx repositories implement
// them for production; in-memory implementations back the tests.

// UserStore persists user records and tutor profile fields
type UserStore interface {
	Create(ctx context.Context, user *models.User) (int64, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateTutorProfile(ctx context.Context, userID int64, bio, education *string, specialties []string, ratePer10Min *float64) error
}

// QueryStore persists tutoring queries. Accept is a single atomic transition
// with row locking; the first committer wins.
type QueryStore interface {
	Create(ctx context.Context, query *models.Query) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Query, error)
	ListPendingForTutor(ctx context.Context, tutor *models.User) ([]*models.Query, error)
	Accept(ctx context.Context, queryID, tutorID int64) (*models.Query, error)
	ListAcceptedForTutor(ctx context.Context, tutorID int64) ([]*models.Query, error)
	ListForStudent(ctx context.Context, studentID int64) ([]*models.Query, error)
}

// DeclineStore persists the per-(query, tutor) decline ledger
type DeclineStore interface {
	Upsert(ctx context.Context, queryID, tutorID int64) error
	Exists(ctx context.Context, queryID, tutorID int64) (bool, error)
}

// SessionStore persists tutoring sessions. Start and End are idempotent
// row-locked transitions that also move the owning query.
type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*models.Session, error)
	Start(ctx context.Context, queryID, tutorID, studentID int64) (sessionID int64, existing bool, err error)
	End(ctx context.Context, sessionID int64) (session *models.Session, alreadyEnded bool, err error)
}

// RefreshTokenStore persists opaque refresh tokens
type RefreshTokenStore interface {
	CreateToken(ctx context.Context, token string, userID int64, expiryDate time.Time) error
	GetTokenByValue(ctx context.Context, token string) (int64, time.Time, bool, error)
	RevokeToken(ctx context.Context, token string) error
}

// PasswordResetTokenStore persists single-use password reset tokens
type PasswordResetTokenStore interface {
	CreateToken(ctx context.Context, userID int64, token string, expiryDate time.Time) error
	GetTokenInfo(ctx context.Context, token string) (int64, time.Time, bool, error)
	MarkTokenAsUsed(ctx context.Context, token string) error
}

// Broadcaster fans lifecycle events out to connected clients. Delivery is
// best-effort; the list endpoints remain the source of truth.
type Broadcaster interface {
	BroadcastToTutors(event string, payload interface{})
	BroadcastToTutor(tutorID int64, event string, payload interface{})
	BroadcastToStudent(studentID int64, event string, payload interface{})
	BroadcastToSession(sessionID int64, event string, payload interface{})
}

// Mailer sends transactional mail
type Mailer interface {
	SendPasswordResetEmail(toEmail, toName, token string) error
}
