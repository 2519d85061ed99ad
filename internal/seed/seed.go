// Package seed creates default data for local development
package seed

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/microtutor/backend/internal/app/models"
	"github.com/microtutor/backend/internal/app/repositories"
	"github.com/microtutor/backend/internal/pkg/apperrors"
	"github.com/microtutor/backend/internal/pkg/auth"
)

// CreateDefaultData creates a demo student and tutor account if they don't
// exist. Failures are collected rather than aborting startup.
func CreateDefaultData(ctx context.Context, dbPool *pgxpool.Pool, lgr zerolog.Logger) error {
	userRepo := repositories.NewUserRepository(dbPool)

	lgr.Info().Msg("Checking/Creating default accounts...")
	var finalErr error

	password, err := auth.HashPassword("password123")
	if err != nil {
		return err
	}

	student := &models.User{
		Username: "demo-student",
		Email:    "student@example.com",
		Password: password,
		RoleType: models.RoleStudent,
	}
	if _, err := userRepo.Create(ctx, student); err != nil && !errors.Is(err, apperrors.ErrEmailAlreadyExists) {
		lgr.Error().Err(err).Msg("Error creating demo student")
		finalErr = errors.Join(finalErr, err)
	}

	bio := "Patient maths tutor with five years of classroom experience."
	education := "MSc Mathematics"
	rate := 12.50
	tutor := &models.User{
		Username:     "demo-tutor",
		Email:        "tutor@example.com",
		Password:     password,
		RoleType:     models.RoleTutor,
		Bio:          &bio,
		Education:    &education,
		Specialties:  []string{"Calculus", "Algebra"},
		RatePer10Min: &rate,
	}
	if _, err := userRepo.Create(ctx, tutor); err != nil && !errors.Is(err, apperrors.ErrEmailAlreadyExists) {
		lgr.Error().Err(err).Msg("Error creating demo tutor")
		finalErr = errors.Join(finalErr, err)
	}

	if finalErr == nil {
		lgr.Info().Msg("Default accounts verified.")
	}
	return finalErr
}
