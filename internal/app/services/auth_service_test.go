package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/microtutor/backend/internal/app/models/dto"
	"github.com/microtutor/backend/internal/pkg/apperrors"
	"github.com/microtutor/backend/internal/pkg/auth"
)

func newTestAuthService(t *testing.T) (AuthService, *memStore, *fakeMailer) {
	t.Helper()
	store := newMemStore()
	mailer := &fakeMailer{}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "test",
	})
	service := NewAuthService(store, store, memResetTokenStore{store}, jwtService, mailer, zerolog.Nop())
	return service, store, mailer
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a student and returns tokens", func(t *testing.T) {
		service, store, _ := newTestAuthService(t)

		tokens, err := service.Register(ctx, &dto.RegisterRequest{
			Username: "alice",
			Email:    "Alice@Example.com",
			Password: "s3cretpass",
			RoleType: "student",
		})
		if err != nil {
			t.Fatalf("registering: %v", err)
		}
		if tokens.AccessToken == "" || tokens.RefreshToken == "" {
			t.Error("expected a token pair")
		}
		if tokens.User.RoleType != "STUDENT" {
			t.Errorf("roleType = %q, want STUDENT", tokens.User.RoleType)
		}

		// Email is normalized to lower case.
		user, err := store.FindByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("finding user: %v", err)
		}
		if user.Password == "s3cretpass" {
			t.Error("password stored in plain text")
		}
	})

	t.Run("registers a tutor with profile fields", func(t *testing.T) {
		service, store, _ := newTestAuthService(t)
		rate := 12.5

		tokens, err := service.Register(ctx, &dto.RegisterRequest{
			Username:     "bob",
			Email:        "bob@example.com",
			Password:     "s3cretpass",
			RoleType:     "TUTOR",
			Bio:          "Maths tutor",
			Specialties:  []string{"Calculus"},
			RatePer10Min: &rate,
		})
		if err != nil {
			t.Fatalf("registering: %v", err)
		}

		user, _ := store.FindByID(ctx, tokens.User.ID)
		if !user.IsTutor() {
			t.Error("expected a tutor")
		}
		if len(user.Specialties) != 1 || user.Specialties[0] != "Calculus" {
			t.Errorf("specialties = %v", user.Specialties)
		}
	})

	t.Run("tutor without specialties is rejected", func(t *testing.T) {
		service, _, _ := newTestAuthService(t)

		_, err := service.Register(ctx, &dto.RegisterRequest{
			Username: "bob",
			Email:    "bob@example.com",
			Password: "s3cretpass",
			RoleType: "TUTOR",
		})
		if !errors.Is(err, apperrors.ErrValidationFailed) {
			t.Errorf("err = %v, want ErrValidationFailed", err)
		}
	})

	t.Run("tutor with negative rate is rejected", func(t *testing.T) {
		service, _, _ := newTestAuthService(t)
		rate := -1.0

		_, err := service.Register(ctx, &dto.RegisterRequest{
			Username:     "bob",
			Email:        "bob@example.com",
			Password:     "s3cretpass",
			RoleType:     "TUTOR",
			Specialties:  []string{"Calculus"},
			RatePer10Min: &rate,
		})
		if !errors.Is(err, apperrors.ErrInvalidRate) {
			t.Errorf("err = %v, want ErrInvalidRate", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		service, _, _ := newTestAuthService(t)
		req := &dto.RegisterRequest{
			Username: "alice",
			Email:    "alice@example.com",
			Password: "s3cretpass",
		}
		if _, err := service.Register(ctx, req); err != nil {
			t.Fatalf("first register: %v", err)
		}
		_, err := service.Register(ctx, req)
		if !errors.Is(err, apperrors.ErrEmailAlreadyExists) {
			t.Errorf("err = %v, want ErrEmailAlreadyExists", err)
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuthService(t)

	if _, err := service.Register(ctx, &dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "s3cretpass",
	}); err != nil {
		t.Fatalf("registering: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid credentials", "alice@example.com", "s3cretpass", nil},
		{"case-insensitive email", "ALICE@example.com", "s3cretpass", nil},
		{"wrong password", "alice@example.com", "wrongpass", apperrors.ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "s3cretpass", apperrors.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := service.Login(ctx, &dto.LoginRequest{Email: tt.email, Password: tt.password})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && tokens.AccessToken == "" {
				t.Error("expected an access token")
			}
		})
	}
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuthService(t)

	tokens, err := service.Register(ctx, &dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "s3cretpass",
	})
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	refreshed, err := service.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refreshing: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The presented token is revoked on rotation.
	if _, err := service.RefreshToken(ctx, tokens.RefreshToken); !errors.Is(err, apperrors.ErrInvalidRefreshToken) {
		t.Errorf("reuse err = %v, want ErrInvalidRefreshToken", err)
	}

	if _, err := service.RefreshToken(ctx, "no-such-token"); !errors.Is(err, apperrors.ErrInvalidRefreshToken) {
		t.Errorf("unknown token err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("full reset flow", func(t *testing.T) {
		service, _, mailer := newTestAuthService(t)
		if _, err := service.Register(ctx, &dto.RegisterRequest{
			Username: "alice",
			Email:    "alice@example.com",
			Password: "s3cretpass",
		}); err != nil {
			t.Fatalf("registering: %v", err)
		}

		if err := service.ForgotPassword(ctx, "alice@example.com"); err != nil {
			t.Fatalf("forgot password: %v", err)
		}
		token := mailer.lastToken()
		if token == "" {
			t.Fatal("no reset email sent")
		}

		if err := service.VerifyResetToken(ctx, token); err != nil {
			t.Fatalf("verifying fresh token: %v", err)
		}

		if err := service.ResetPassword(ctx, token, "newpassword1"); err != nil {
			t.Fatalf("resetting: %v", err)
		}

		if _, err := service.Login(ctx, &dto.LoginRequest{Email: "alice@example.com", Password: "s3cretpass"}); !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Error("old password still works")
		}
		if _, err := service.Login(ctx, &dto.LoginRequest{Email: "alice@example.com", Password: "newpassword1"}); err != nil {
			t.Errorf("new password login: %v", err)
		}

		// The token is single-use.
		if err := service.VerifyResetToken(ctx, token); !errors.Is(err, apperrors.ErrPasswordResetTokenUsed) {
			t.Errorf("verify used token err = %v, want ErrPasswordResetTokenUsed", err)
		}
		if err := service.ResetPassword(ctx, token, "anotherpass1"); !errors.Is(err, apperrors.ErrPasswordResetTokenUsed) {
			t.Errorf("reuse err = %v, want ErrPasswordResetTokenUsed", err)
		}
	})

	t.Run("unknown email does not error or send", func(t *testing.T) {
		service, _, mailer := newTestAuthService(t)

		if err := service.ForgotPassword(ctx, "nobody@example.com"); err != nil {
			t.Fatalf("forgot password: %v", err)
		}
		if mailer.lastToken() != "" {
			t.Error("email sent for unknown address")
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		service, _, _ := newTestAuthService(t)

		if err := service.VerifyResetToken(ctx, "bogus"); !errors.Is(err, apperrors.ErrInvalidPasswordResetToken) {
			t.Errorf("verify err = %v, want ErrInvalidPasswordResetToken", err)
		}
		err := service.ResetPassword(ctx, "bogus", "newpassword1")
		if !errors.Is(err, apperrors.ErrInvalidPasswordResetToken) {
			t.Errorf("err = %v, want ErrInvalidPasswordResetToken", err)
		}
	})
}
