package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/services"
	"github.com/coders-clan/cv-rag-agent/internal/sse"
)

type ChatHandler struct {
	log         *logger.Logger
	chatService services.ChatService
	encoder     *sse.Encoder
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService, encoder *sse.Encoder) *ChatHandler {
	return &ChatHandler{
		log:         log.With("handler", "ChatHandler"),
		chatService: chatService,
		encoder:     encoder,
	}
}

type chatRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	PositionTag string `json:"position_tag"`
	Model       string `json:"model"`
}

// POST /api/chat
// Streams the assistant turn as server-sent events. Validation errors
// surface as plain JSON before any SSE bytes are written.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	sessionID, events, err := h.chatService.StreamTurn(c.Request.Context(), services.TurnRequest{
		Message:     req.Message,
		SessionID:   req.SessionID,
		PositionTag: req.PositionTag,
		Model:       req.Model,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	if err := h.encoder.Stream(c.Writer, sessionID, events); err != nil {
		h.log.Error("SSE stream aborted", "session_id", sessionID, "error", err)
	}
}

// POST /api/chat/complete
// Non-streaming variant: runs the full turn and returns the final reply.
func (h *ChatHandler) Complete(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.chatService.CompleteTurn(c.Request.Context(), services.TurnRequest{
		Message:     req.Message,
		SessionID:   req.SessionID,
		PositionTag: req.PositionTag,
		Model:       req.Model,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/chat/sessions?limit=
func (h *ChatHandler) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	sessions, err := h.chatService.ListSessions(c.Request.Context(), limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions, "count": len(sessions)})
}

// DELETE /api/chat/sessions/:id
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.chatService.DeleteSession(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}
