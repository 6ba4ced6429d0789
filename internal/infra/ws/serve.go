package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeConversation upgrades the request to a websocket subscription on one
// conversation. Authentication and the participant check are the caller's
// responsibility; this only runs the pumps.
func ServeConversation(h *Hub, conversationID, userID string, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("ws upgrade failed", "error", err)
		}
		return
	}

	client := &Client{
		hub:            h,
		conn:           conn,
		send:           make(chan []byte, 256),
		conversationID: conversationID,
		userID:         userID,
	}
	h.RegisterClient(client)
	go client.serve()
}
