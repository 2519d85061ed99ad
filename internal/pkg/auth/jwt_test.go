package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/microtutor/backend/internal/app/models"
)

func testService(accessExp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  accessExp,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "test",
	})
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	service := testService(time.Hour)
	user := &models.User{
		ID:       42,
		Email:    "jane@example.com",
		RoleType: models.RoleTutor,
	}

	accessToken, refreshToken, expiresIn, refreshExpiresIn, err := service.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("generating: %v", err)
	}
	if refreshToken == "" {
		t.Error("expected an opaque refresh token")
	}
	if expiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", expiresIn)
	}
	if refreshExpiresIn != 86400 {
		t.Errorf("refreshExpiresIn = %d, want 86400", refreshExpiresIn)
	}

	claims, err := service.ValidateToken(accessToken)
	if err != nil {
		t.Fatalf("validating: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("userID = %d, want 42", claims.UserID)
	}
	if claims.RoleType != string(models.RoleTutor) {
		t.Errorf("roleType = %q, want TUTOR", claims.RoleType)
	}
}

func TestValidateTokenFailures(t *testing.T) {
	service := testService(time.Hour)
	user := &models.User{ID: 1, Email: "a@example.com", RoleType: models.RoleStudent}

	t.Run("garbage token", func(t *testing.T) {
		if _, err := service.ValidateToken("not.a.token"); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		accessToken, _, _, _, err := service.GenerateTokenPair(user)
		if err != nil {
			t.Fatalf("generating: %v", err)
		}
		other := NewJWTService(JWTConfig{SecretKey: "other-secret", AccessTokenExp: time.Hour})
		if _, err := other.ValidateToken(accessToken); err == nil {
			t.Error("token signed with a different secret validated")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := testService(-time.Minute)
		accessToken, _, _, _, err := expired.GenerateTokenPair(user)
		if err != nil {
			t.Fatalf("generating: %v", err)
		}
		if _, err := expired.ValidateToken(accessToken); !errors.Is(err, ErrExpiredToken) {
			t.Errorf("err = %v, want ErrExpiredToken", err)
		}
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"bearer prefix", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"raw token", "abc.def.ghi", "abc.def.ghi", false},
		{"empty header", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}
