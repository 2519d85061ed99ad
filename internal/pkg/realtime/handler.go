package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/microtutor/backend/internal/app/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development, in production you should restrict this
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades authenticated HTTP requests to websocket connections
type Handler struct {
	hub        *Hub
	authorizer SessionAuthorizer
	logger     zerolog.Logger
}

// NewHandler creates a new websocket Handler
func NewHandler(hub *Hub, authorizer SessionAuthorizer, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		authorizer: authorizer,
		logger:     logger,
	}
}

// HandleConnection godoc
// @Summary Establish a WebSocket connection for realtime events
// @Description Upgrades the HTTP connection to a WebSocket for lifecycle notifications, session chat and whiteboard relay
// @Tags realtime
// @Security BearerAuth
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized: JWT token missing or invalid"
// @Router /ws [get]
func (h *Handler) HandleConnection(c *gin.Context) {
	userIDValue, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in context",
		})
		return
	}

	userID, ok := userIDValue.(int64)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Invalid user ID format",
		})
		return
	}

	roleValue, _ := c.Get("roleType")
	role, _ := roleValue.(string)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("userID", userID).
			Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:        h.hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		userID:     userID,
		isTutor:    role == string(models.RoleTutor),
		authorizer: h.authorizer,
		logger:     h.logger,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	h.logger.Info().
		Int64("userID", userID).
		Str("remoteAddr", conn.RemoteAddr().String()).
		Msg("WebSocket connection established")
}
