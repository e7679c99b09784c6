package chat

import (
	"context"
	"time"

	"datachat/config"
	"datachat/database"
	apperrors "datachat/errors"
	"datachat/filter"
	"datachat/web/format"
	"datachat/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service orchestrates a conversation: it hands the finalized dataset
// descriptor to the transport, accumulates the streamed response into
// segments, and persists messages and per-chat filter state.
type Service struct {
	cfg        *config.Config
	store      *database.PostgresStore
	transport  Transport
	reconciler *filter.Reconciler
	logger     *zap.Logger
}

func NewService(cfg *config.Config, store *database.PostgresStore, transport Transport, reconciler *filter.Reconciler, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		transport:  transport,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Reconciler exposes the filter reconciler for the HTTP handlers.
func (s *Service) Reconciler() *filter.Reconciler {
	return s.reconciler
}

// SendMessage runs one request/response turn. emit receives stream events:
// the raw chunk plus the full re-derived segment list after every chunk,
// then a final "end" event. A cancelled stream persists the partial
// response without surfacing an error.
func (s *Service) SendMessage(ctx context.Context, chatID, userText, model string, emit func(types.StreamData) error) error {
	if model == "" {
		model = s.cfg.DefaultModel
	}
	id, err := uuid.Parse(chatID)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInvalidInput, err.Error())
	}

	history, err := s.store.GetMessagesByChat(ctx, id)
	if err != nil {
		return err
	}
	dataset, err := s.store.GetActiveDataset(ctx, chatID)
	if err != nil {
		s.logger.Warn("Could not load active dataset, sending without data context",
			zap.Error(err), zap.String("chat_id", chatID))
		dataset = nil
	}

	userMessage := types.ChatMessage{
		ID:       uuid.New().String(),
		ChatID:   chatID,
		Role:     "user",
		Content:  userText,
		Rendered: format.RenderMarkdown(userText),
	}
	if err := s.store.CreateMessage(ctx, userMessage); err != nil {
		return err
	}

	agentHistory := make([]types.AgentMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == "user" || msg.Role == "assistant" {
			agentHistory = append(agentHistory, types.AgentMessage{Role: msg.Role, Content: msg.Content})
		}
	}

	accumulator := NewAccumulator(nil, nil)
	streamErr := make(chan error, 1)

	onChunk := func(chunk string) {
		accumulator.Append(chunk)
		if err := emit(types.StreamData{Type: "chunk", Content: chunk}); err != nil {
			s.logger.Debug("Client write failed mid-stream", zap.Error(err))
		}
		if err := emit(types.StreamData{Type: "segments", Segments: accumulator.Segments()}); err != nil {
			s.logger.Debug("Client write failed mid-stream", zap.Error(err))
		}
	}
	onDone := func() { streamErr <- nil }
	onError := func(err error) { streamErr <- err }

	s.transport.Stream(ctx, Request{
		Message: userText,
		History: agentHistory,
		Dataset: dataset,
		Model:   model,
	}, onChunk, onDone, onError)

	err = <-streamErr
	cancelled := apperrors.IsCancelled(err)
	if err != nil && !cancelled {
		s.logger.Error("Stream transport failed", zap.Error(err), zap.String("chat_id", chatID))
		_ = emit(types.StreamData{Type: "error", Content: "The model response failed. Please try again."})
		return err
	}

	// Persist whatever arrived, including a cancelled partial response.
	fullText := accumulator.Text()
	if fullText != "" {
		bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		assistantMessage := types.ChatMessage{
			ID:       uuid.New().String(),
			ChatID:   chatID,
			Role:     "assistant",
			Content:  fullText,
			Rendered: format.RenderSegments(accumulator.Segments()),
		}
		if err := s.store.CreateMessage(bgCtx, assistantMessage); err != nil {
			s.logger.Error("Failed to save assistant message", zap.Error(err), zap.String("chat_id", chatID))
		}
		if err := s.store.TouchChat(bgCtx, id); err != nil {
			s.logger.Debug("Failed to bump chat recency", zap.Error(err))
		}
	}

	if cancelled {
		return emit(types.StreamData{Type: "cancelled"})
	}
	return emit(types.StreamData{Type: "end"})
}

// SwitchChat repopulates the reconciler from the target chat's persisted
// snapshot, or clears it when the chat has none.
func (s *Service) SwitchChat(ctx context.Context, chatID string) error {
	snap, err := s.store.GetFilterSnapshot(ctx, chatID)
	if err != nil {
		return err
	}
	s.reconciler.Restore(snap)
	return nil
}

// SaveFilters persists the current reconciler state for a chat.
func (s *Service) SaveFilters(ctx context.Context, chatID string) error {
	return s.store.SaveFilterSnapshot(ctx, chatID, s.reconciler.Snapshot())
}
