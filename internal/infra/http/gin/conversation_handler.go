package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"communityeats/internal/app/dto"
	chatservice "communityeats/internal/app/services/chat"
)

// ConversationHTTP exposes the chat endpoints.
type ConversationHTTP interface {
	Ensure(c *gin.Context)
	ListMine(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
}

type ConversationHandler struct {
	Chat   *chatservice.Service
	Logger *slog.Logger
}

// Ensure resolves or creates the conversation between the listing owner and
// one interested party. Idempotent: repeated calls return the same thread.
func (h ConversationHandler) Ensure(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		ListingID     string `json:"listing_id"`
		TargetUserUID string `json:"target_user_uid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.ListingID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id is required"})
		return
	}

	conversation, err := h.Chat.EnsureConversation(c.Request.Context(), chatservice.EnsureConversationParams{
		ListingID:      req.ListingID,
		RequesterID:    principal.ID,
		TargetID:       req.TargetUserUID,
		RequesterName:  principal.Name,
		RequesterEmail: principal.Email,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(conversation))
}

// ListMine returns the requester's conversations ordered by last activity.
func (h ConversationHandler) ListMine(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	limit := parsePositiveInt(c.Query("limit"), 0)

	conversations, err := h.Chat.ListConversations(c.Request.Context(), principal.ID, limit)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	items := make([]dto.Conversation, 0, len(conversations))
	for _, conversation := range conversations {
		items = append(items, dto.MapConversation(conversation))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListMessages returns one ascending page of the conversation's ledger. The
// cursor_created_at_ms query parameter fetches messages strictly older than
// the given millisecond timestamp.
func (h ConversationHandler) ListMessages(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	limit := parsePositiveInt(c.Query("limit"), 0)
	cursor := parseInt64(c.Query("cursor_created_at_ms"), 0)

	page, err := h.Chat.ListMessages(c.Request.Context(), conversationID, principal.ID, limit, cursor)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	resp := dto.MessagePage{
		Items:               make([]dto.Message, 0, len(page.Messages)),
		NextCursor:          page.NextCursorMs,
		HasMore:             page.HasMore,
		ParticipantProfiles: page.ParticipantNames,
	}
	for _, message := range page.Messages {
		resp.Items = append(resp.Items, dto.MapMessage(message))
	}
	c.JSON(http.StatusOK, resp)
}

// SendMessage appends to the conversation's ledger.
func (h ConversationHandler) SendMessage(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	message, err := h.Chat.AppendMessage(c.Request.Context(), conversationID, principal.ID, req.Body)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapMessage(message))
}

func parsePositiveInt(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func parseInt64(raw string, def int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value < 0 {
		return def
	}
	return value
}

var _ ConversationHTTP = (*ConversationHandler)(nil)
