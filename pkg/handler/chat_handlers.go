// Chat HTTP handlers
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weavechat/weavechat/pkg/models"
	"github.com/weavechat/weavechat/pkg/service"
)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	// Conversation turns
	r.POST("/chat/send", h.SendMessage)
	r.POST("/chat/edit", h.EditMessage)
	r.POST("/chat/retry", h.RetryMessage)
	r.POST("/chat/stop", h.StopGeneration)

	// Stream recovery
	r.GET("/chat/reconnect/:session_id", h.Reconnect)
	r.GET("/chat/status/:session_id", h.GenerationStatus)

	// Session management
	sessions := r.Group("/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.PATCH("/:id", h.UpdateSession)
		sessions.DELETE("/:id", h.DeleteSession)

		sessions.GET("/:id/messages", h.ListMessages)
		sessions.GET("/:id/messages/:message_id/attachments/:attachment_id", h.DownloadAttachment)
	}
}

// writeError maps service errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case service.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case service.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case service.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// SendMessage submits a human message and starts a generation
// POST /api/v1/chat/send
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.SendMessage(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// EditMessage edits a message (revision branch for human, in-place for assistant)
// POST /api/v1/chat/edit
func (h *ChatHandler) EditMessage(c *gin.Context) {
	var req models.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.EditMessage(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RetryMessage regenerates an assistant message as a sibling branch
// POST /api/v1/chat/retry
func (h *ChatHandler) RetryMessage(c *gin.Context) {
	var req models.RetryMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.RetryAIMessage(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// StopGeneration aborts the session's running generation
// POST /api/v1/chat/stop
func (h *ChatHandler) StopGeneration(c *gin.Context) {
	var req models.StopGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.StopGeneration(c.Request.Context(), req.SessionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

// Reconnect replays stream chunks missed while disconnected
// GET /api/v1/chat/reconnect/:session_id?last_seq=42
func (h *ChatHandler) Reconnect(c *gin.Context) {
	sessionID := c.Param("session_id")
	lastSeq, _ := strconv.ParseUint(c.DefaultQuery("last_seq", "0"), 10, 64)

	snap, err := h.chatService.Reconnect(sessionID, lastSeq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GenerationStatus reports whether a session is generating
// GET /api/v1/chat/status/:session_id
func (h *ChatHandler) GenerationStatus(c *gin.Context) {
	status, err := h.chatService.GenerationStatus(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListSessions lists a user's sessions
// GET /api/v1/sessions?user_id=xxx&limit=20&offset=0
func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sessions, hasMore, err := h.chatService.ListSessions(userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionListResponse{Sessions: sessions, HasMore: hasMore})
}

// GetSession retrieves one session
// GET /api/v1/sessions/:id
func (h *ChatHandler) GetSession(c *gin.Context) {
	sess, err := h.chatService.GetSession(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// UpdateSession renames a session or rebinds its reply source
// PATCH /api/v1/sessions/:id
func (h *ChatHandler) UpdateSession(c *gin.Context) {
	var req models.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.chatService.UpdateSession(c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DeleteSession removes a session and its attachment payloads
// DELETE /api/v1/sessions/:id
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chatService.DeleteSession(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListMessages returns the session's full message tree
// GET /api/v1/sessions/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	messages, err := h.chatService.ListMessages(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// DownloadAttachment streams an attachment payload
// GET /api/v1/sessions/:id/messages/:message_id/attachments/:attachment_id
func (h *ChatHandler) DownloadAttachment(c *gin.Context) {
	att, payload, err := h.chatService.OpenAttachment(
		c.Param("id"), c.Param("message_id"), c.Param("attachment_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	mimeType := att.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+att.FileName+`"`)
	c.Data(http.StatusOK, mimeType, payload)
}
