package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	chatservice "communityeats/internal/app/services/chat"
	"communityeats/internal/infra/auth"
	"communityeats/internal/infra/ws"
)

// FeedHandler upgrades a participant's request to a live subscription on one
// conversation. Browsers cannot set headers on websocket dials, so the token
// is also accepted as a ?token= query parameter.
type FeedHandler struct {
	Hub      *ws.Hub
	Verifier *auth.Verifier
	Chat     *chatservice.Service
	Logger   *slog.Logger
}

func (h FeedHandler) Subscribe(c *gin.Context) {
	token := auth.ExtractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = strings.TrimSpace(c.Query("token"))
	}
	id, err := h.Verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return
	}

	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if _, err := h.Chat.Conversation(c.Request.Context(), conversationID, id.Subject); err != nil {
		respondError(c, h.Logger, err)
		return
	}

	ws.ServeConversation(h.Hub, conversationID, id.Subject, c)
}
