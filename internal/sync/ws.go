package sync

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authenticator resolves the user behind an upgrade request.
type Authenticator func(r *http.Request) (userID string, err error)

// WSHandler upgrades authenticated requests and keeps them registered until
// the peer goes away. Incoming messages are ignored.
func WSHandler(hub *Hub, authenticate Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticate(c.Request)
		if err != nil || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		// The welcome goes out before the hub can write to ws; a conn has a single writer.
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(
			websocket.TextMessage,
			[]byte(`{"type":"welcome","transport":"websocket"}`),
		); err != nil {
			_ = ws.Close()
			return
		}

		hub.Add(userID, ws)
		hub.logger.Debug("ws client connected", zap.String("user_id", userID))

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(userID, ws)
		hub.logger.Debug("ws client disconnected", zap.String("user_id", userID))
	}
}
