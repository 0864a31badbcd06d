package services

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cartela-live/backend/game"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades connections and hands them to the hub. The
// caller identity arrives pre-verified; we only resolve it to a
// participant reference.
func WebSocketHandler(hub *Hub, store game.Store, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		user, err := store.GetUser(c.Request.Context(), uint(userID))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Errorw("websocket upgrade failed", "error", err)
			return
		}

		client := NewClient(uuid.NewString(), Participant{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
		}, conn, hub, log)

		log.Debugw("websocket client connected", "user_id", user.ID)
		client.Start()
	}
}
