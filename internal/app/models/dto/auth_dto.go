package dto

import "time"

// RegisterRequest represents the registration payload. Tutor-only fields are
// required when roleType is TUTOR and ignored for students.
type RegisterRequest struct {
	Username     string   `json:"username" binding:"required" example:"janedoe"`
	Email        string   `json:"email" binding:"required,email" example:"jane@example.com"`
	Password     string   `json:"password" binding:"required,min=8" example:"s3cretpass"`
	RoleType     string   `json:"roleType" binding:"omitempty,oneof=STUDENT TUTOR student tutor" example:"STUDENT"`
	Bio          string   `json:"bio,omitempty"`
	Education    string   `json:"education,omitempty"`
	Specialties  []string `json:"specialties,omitempty"`
	RatePer10Min *float64 `json:"ratePer10Min,omitempty"`
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"jane@example.com"`
	Password string `json:"password" binding:"required" example:"s3cretpass"`
}

// RefreshTokenRequest represents the token refresh payload
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// UserResponse represents the user data returned by auth endpoints
type UserResponse struct {
	ID           int64     `json:"id" example:"1"`
	Username     string    `json:"username" example:"janedoe"`
	Email        string    `json:"email" example:"jane@example.com"`
	RoleType     string    `json:"roleType" example:"TUTOR"`
	Bio          *string   `json:"bio,omitempty"`
	Education    *string   `json:"education,omitempty"`
	Specialties  []string  `json:"specialties"`
	RatePer10Min *float64  `json:"ratePer10Min,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TokenResponse represents the token pair returned on register/login/refresh
type TokenResponse struct {
	AccessToken      string        `json:"accessToken"`
	RefreshToken     string        `json:"refreshToken"`
	ExpiresIn        int           `json:"expiresIn" example:"3600"`
	RefreshExpiresIn int           `json:"refreshExpiresIn" example:"2592000"`
	User             *UserResponse `json:"user"`
}

// ForgotPasswordRequest represents the password reset request payload
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents the password reset confirmation payload
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}
