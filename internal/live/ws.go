package live

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades staff connections. Clients authenticate with the
// X-Staff-Key header or a key query parameter.
func WSHandler(hub *Hub, staffKey string, origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}

	return func(c *gin.Context) {
		if staffKey == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "live feed disabled"})
			return
		}
		key := c.GetHeader("X-Staff-Key")
		if key == "" {
			key = c.Query("key")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(staffKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid staff key"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		cl := hub.add(ws)
		hub.log.Info("live: client connected", "clients", hub.Stats().Clients)
		go cl.writeLoop()

		if b, err := json.Marshal(Event{Type: "welcome", At: hub.now().UTC(), Data: hub.Stats()}); err == nil {
			cl.send <- b
		}

		// Staff clients only listen; reading keeps pongs and close frames flowing.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.remove(cl)
		hub.log.Info("live: client disconnected")
	}
}
