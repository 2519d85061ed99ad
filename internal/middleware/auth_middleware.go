package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/microtutor/backend/internal/app/models/dto"
	"github.com/microtutor/backend/internal/pkg/apperrors"
	"github.com/microtutor/backend/internal/pkg/auth"
)

// AuthMiddleware validates JWTs and puts the caller's identity on the gin
// context for controllers and the websocket handler
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// JWTAuth validates the bearer token and sets userID, email and roleType on
// the context. Browsers cannot set headers on a websocket upgrade, so a
// token query parameter is accepted as a fallback.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			extracted, err := auth.ExtractBearerToken(authHeader)
			if err != nil {
				unauthorized(c, dto.ErrorCodeUnauthorized, "Invalid token format")
				return
			}
			tokenString = extracted
		} else if queryToken := c.Query("token"); queryToken != "" {
			tokenString = queryToken
		}

		if tokenString == "" {
			unauthorized(c, dto.ErrorCodeUnauthorized, "Authentication required")
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, apperrors.ErrTokenExpired) {
				unauthorized(c, dto.ErrorCodeExpiredToken, "Token has expired")
				return
			}
			unauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token")
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("roleType", claims.RoleType)

		c.Next()
	}
}

// RoleRequired rejects callers whose roleType claim does not match
func (m *AuthMiddleware) RoleRequired(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("roleType") != role {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeForbidden, "Insufficient permissions")
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(errorDetail))
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, code dto.ErrorCode, message string) {
	errorDetail := dto.NewErrorDetail(code, message)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}
