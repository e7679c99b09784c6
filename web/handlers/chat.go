package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"datachat/chat"
	"datachat/database"
	"datachat/web/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChatHandler struct {
	service *chat.Service
	store   *database.PostgresStore
	logger  *zap.Logger
}

type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
	Model   string `json:"model"`
}

func NewChatHandler(service *chat.Service, store *database.PostgresStore, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		store:   store,
		logger:  logger,
	}
}

// CreateChat starts a new conversation with an empty filter state.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	now := time.Now()
	newChat := types.Chat{
		ID:         uuid.New(),
		Title:      c.Query("title"),
		CreatedAt:  now,
		LastActive: now,
	}
	if err := h.store.CreateChat(c.Request.Context(), newChat); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not create chat", h.logger)
		return
	}
	h.service.Reconciler().Restore(nil)
	c.JSON(http.StatusCreated, newChat)
}

// ListChats returns all chats, newest first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.store.ListChats(c.Request.Context())
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not list chats", h.logger)
		return
	}
	c.JSON(http.StatusOK, chats)
}

// SwitchChat repopulates the filter state from the target chat's snapshot.
func (h *ChatHandler) SwitchChat(c *gin.Context) {
	chatID := c.Param("id")
	if err := h.service.SwitchChat(c.Request.Context(), chatID); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not switch chat", h.logger,
			zap.String("chat_id", chatID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetMessages returns a chat's message history.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid chat id")
		return
	}
	messages, err := h.store.GetMessagesByChat(c.Request.Context(), chatID)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not load messages", h.logger)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage streams the model's response over SSE. Each event carries a
// StreamData envelope: raw chunks, the full re-parsed segment list, then a
// terminal end/cancelled/error event.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID := c.Param("id")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "A message is required")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	var writeMu sync.Mutex
	emit := func(data types.StreamData) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	if err := h.service.SendMessage(c.Request.Context(), chatID, req.Message, req.Model, emit); err != nil {
		h.logger.Error("Send message failed", zap.Error(err), zap.String("chat_id", chatID))
	}
}
