package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/microtutor/backend/internal/app/controllers"
	"github.com/microtutor/backend/internal/middleware"
	"github.com/microtutor/backend/internal/pkg/realtime"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	queryController *controllers.QueryController,
	wsHandler *realtime.Handler,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/refresh", authController.RefreshToken)
		auth.POST("/forgot-password", authController.ForgotPassword)
		auth.POST("/reset-password", authController.ResetPassword)
		auth.GET("/verify-reset-token/:token", authController.VerifyResetToken)
	}

	// --- Authenticated routes ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		authenticated.GET("/users/:id", authController.GetUser)

		queries := authenticated.Group("/queries")
		{
			queries.POST("/post", queryController.PostQuery)
			queries.GET("/tutor/:tutorId", queryController.GetPendingQueries)
			queries.POST("/accept", queryController.AcceptQuery)
			queries.POST("/decline", queryController.DeclineQuery)
			queries.POST("/session", queryController.StartSession)
			queries.POST("/session/end", queryController.EndSession)
			queries.GET("/tutor/:tutorId/accepted-queries", queryController.GetAcceptedQueries)
			queries.GET("/student/:studentId/responses", queryController.GetTutorResponses)
			queries.PUT("/profile", queryController.UpdateProfile)
		}
	}

	// Websocket endpoint. JWTAuth accepts a token query parameter since the
	// browser websocket API cannot set headers.
	v1.GET("/ws", authMiddleware.JWTAuth(), wsHandler.HandleConnection)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
