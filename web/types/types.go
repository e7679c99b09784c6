package types

import (
	"time"

	"datachat/segment"

	"github.com/google/uuid"
)

// AgentMessage represents a message in the format expected by the LLM.
type AgentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessage represents a single message in a chat, stored in the DB.
type ChatMessage struct {
	ID       string `json:"id"`
	ChatID   string `json:"chat_id"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	Rendered string `json:"rendered,omitempty"`
}

// Chat represents one conversation.
type Chat struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// UploadedFile is the stored metadata of one uploaded dataset file.
type UploadedFile struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Kind       string    `json:"kind"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StreamData is the SSE envelope sent to the browser during a response
// stream. Segments carries the full re-derived segment list on each update.
type StreamData struct {
	Type     string            `json:"type"`
	Content  string            `json:"content,omitempty"`
	Segments []segment.Segment `json:"segments,omitempty"`
}
