package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/microtutor/backend/internal/app/models"
	"github.com/microtutor/backend/internal/app/models/dto"
	"github.com/microtutor/backend/internal/pkg/apperrors"
	"github.com/microtutor/backend/internal/pkg/auth"
)

// AuthService handles registration, login, token refresh and password reset
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetUser(ctx context.Context, userID int64) (*dto.UserResponse, error)
}

// authServiceImpl implements AuthService
type authServiceImpl struct {
	userStore      UserStore
	refreshTokens  RefreshTokenStore
	passwordResets PasswordResetTokenStore
	jwtService     *auth.JWTService
	mailer         Mailer
	resetTokenLife time.Duration
	logger         zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userStore UserStore,
	refreshTokens RefreshTokenStore,
	passwordResets PasswordResetTokenStore,
	jwtService *auth.JWTService,
	mailer Mailer,
	logger zerolog.Logger,
) AuthService {
	return &authServiceImpl{
		userStore:      userStore,
		refreshTokens:  refreshTokens,
		passwordResets: passwordResets,
		jwtService:     jwtService,
		mailer:         mailer,
		resetTokenLife: time.Hour,
		logger:         logger,
	}
}

// Register creates a new user account and returns a token pair. Tutors must
// supply at least one specialty and a non-negative rate.
func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	role := models.RoleStudent
	if strings.EqualFold(req.RoleType, string(models.RoleTutor)) {
		role = models.RoleTutor
	}

	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		RoleType: role,
	}

	if user.Username == "" {
		return nil, apperrors.NewValidationError("username is required")
	}

	if role == models.RoleTutor {
		if len(req.Specialties) == 0 {
			return nil, apperrors.NewValidationError("tutors must declare at least one specialty")
		}
		if req.RatePer10Min != nil && *req.RatePer10Min < 0 {
			return nil, apperrors.NewCustomError(apperrors.ErrInvalidRate, "ratePer10Min must not be negative")
		}
		if req.Bio != "" {
			user.Bio = &req.Bio
		}
		if req.Education != "" {
			user.Education = &req.Education
		}
		user.Specialties = req.Specialties
		user.RatePer10Min = req.RatePer10Min
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hashed

	userID, err := s.userStore.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = userID

	s.logger.Info().
		Int64("userID", userID).
		Str("roleType", string(role)).
		Msg("User registered")

	return s.issueTokens(ctx, user)
}

// Login authenticates a user by email and password
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := s.userStore.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// Credential probing must not reveal whether the email exists.
		return nil, apperrors.ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// RefreshToken rotates a refresh token: the presented token is revoked and a
// new pair is issued
func (s *authServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	userID, expiry, revoked, err := s.refreshTokens.GetTokenByValue(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	if revoked || time.Now().After(expiry) {
		return nil, apperrors.ErrInvalidRefreshToken
	}

	user, err := s.userStore.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrInvalidRefreshToken
	}

	if err := s.refreshTokens.RevokeToken(ctx, refreshToken); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

// ForgotPassword issues a password reset token and mails it. The outcome is
// identical whether or not the email exists.
func (s *authServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userStore.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		s.logger.Debug().Str("email", email).Msg("Password reset requested for unknown email")
		return nil
	}

	token := uuid.New().String()
	if err := s.passwordResets.CreateToken(ctx, user.ID, token, time.Now().Add(s.resetTokenLife)); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetEmail(user.Email, user.Username, token); err != nil {
		s.logger.Error().Err(err).Int64("userID", user.ID).Msg("Failed to send password reset email")
		return err
	}

	return nil
}

// VerifyResetToken reports whether a reset token is still redeemable. A used
// token and an expired token map to the same errors ResetPassword returns.
func (s *authServiceImpl) VerifyResetToken(ctx context.Context, token string) error {
	_, expiry, used, err := s.passwordResets.GetTokenInfo(ctx, token)
	if err != nil {
		return apperrors.ErrInvalidPasswordResetToken
	}
	if used {
		return apperrors.ErrPasswordResetTokenUsed
	}
	if time.Now().After(expiry) {
		return apperrors.ErrInvalidPasswordResetToken
	}
	return nil
}

// ResetPassword consumes a single-use reset token and sets the new password
func (s *authServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, expiry, used, err := s.passwordResets.GetTokenInfo(ctx, token)
	if err != nil {
		return apperrors.ErrInvalidPasswordResetToken
	}
	if used {
		return apperrors.ErrPasswordResetTokenUsed
	}
	if time.Now().After(expiry) {
		return apperrors.ErrInvalidPasswordResetToken
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userStore.UpdatePassword(ctx, userID, hashed); err != nil {
		return err
	}

	if err := s.passwordResets.MarkTokenAsUsed(ctx, token); err != nil {
		return err
	}

	s.logger.Info().Int64("userID", userID).Msg("Password reset completed")
	return nil
}

// GetUser returns a user's public profile
func (s *authServiceImpl) GetUser(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	user, err := s.userStore.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userResponse(user), nil
}

// issueTokens generates a token pair and persists the refresh token
func (s *authServiceImpl) issueTokens(ctx context.Context, user *models.User) (*dto.TokenResponse, error) {
	accessToken, refreshToken, expiresIn, refreshExpiresIn, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokens.CreateToken(ctx, refreshToken, user.ID, s.jwtService.GetRefreshTokenExpiry()); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        expiresIn,
		RefreshExpiresIn: refreshExpiresIn,
		User:             userResponse(user),
	}, nil
}

// userResponse maps a user model to its DTO form
func userResponse(user *models.User) *dto.UserResponse {
	specialties := user.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	return &dto.UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		RoleType:     string(user.RoleType),
		Bio:          user.Bio,
		Education:    user.Education,
		Specialties:  specialties,
		RatePer10Min: user.RatePer10Min,
		CreatedAt:    user.CreatedAt,
	}
}
