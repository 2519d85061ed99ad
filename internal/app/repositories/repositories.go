package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository               *UserRepository
	QueryRepository              *QueryRepository
	DeclineRepository            *DeclineRepository
	SessionRepository            *SessionRepository
	TokenRepository              *TokenRepository
	PasswordResetTokenRepository *PasswordResetTokenRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepository:               NewUserRepository(db),
		QueryRepository:              NewQueryRepository(db),
		DeclineRepository:            NewDeclineRepository(db),
		SessionRepository:            NewSessionRepository(db),
		TokenRepository:              NewTokenRepository(db),
		PasswordResetTokenRepository: NewPasswordResetTokenRepository(db),
	}
}
