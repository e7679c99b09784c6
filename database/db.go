package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "datachat/errors"
	"datachat/web/types"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{DB: db}, nil
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chats (
            id UUID PRIMARY KEY,
            title TEXT DEFAULT '',
            created_at TIMESTAMPTZ DEFAULT NOW(),
            last_active TIMESTAMPTZ DEFAULT NOW(),
            active_dataset_version BIGINT DEFAULT 0
        )`,
		`CREATE INDEX IF NOT EXISTS idx_chats_last_active ON chats(last_active DESC)`,
		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            chat_id UUID REFERENCES chats(id) ON DELETE CASCADE,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            rendered TEXT DEFAULT '',
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created_at ON messages(chat_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS filter_snapshots (
            chat_id UUID PRIMARY KEY REFERENCES chats(id) ON DELETE CASCADE,
            payload JSONB NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS active_datasets (
            chat_id UUID REFERENCES chats(id) ON DELETE CASCADE,
            version BIGINT NOT NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY (chat_id, version)
        )`,
		`CREATE TABLE IF NOT EXISTS uploaded_files (
            id UUID PRIMARY KEY,
            name TEXT UNIQUE NOT NULL,
            path TEXT NOT NULL,
            size BIGINT DEFAULT 0,
            kind TEXT DEFAULT '',
            uploaded_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS matches (
            id BIGSERIAL PRIMARY KEY,
            match_id TEXT NOT NULL,
            team TEXT,
            opponent TEXT,
            season TEXT,
            player TEXT,
            venue TEXT,
            result TEXT,
            score INTEGER,
            played_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_matches_match_id ON matches(match_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// CreateChat inserts a new chat.
func (s *PostgresStore) CreateChat(ctx context.Context, chat types.Chat) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chats (id, title, created_at, last_active) VALUES ($1, $2, $3, $4)`,
		chat.ID, chat.Title, chat.CreatedAt, chat.LastActive)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return nil
}

// GetChat fetches one chat by id.
func (s *PostgresStore) GetChat(ctx context.Context, id uuid.UUID) (*types.Chat, error) {
	var chat types.Chat
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, created_at, last_active FROM chats WHERE id = $1`, id).
		Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.LastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return &chat, nil
}

// ListChats returns chats ordered by recency.
func (s *PostgresStore) ListChats(ctx context.Context) ([]types.Chat, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, created_at, last_active FROM chats ORDER BY last_active DESC`)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	defer rows.Close()

	var chats []types.Chat
	for rows.Next() {
		var chat types.Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.LastActive); err != nil {
			return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// TouchChat bumps a chat's last-active timestamp.
func (s *PostgresStore) TouchChat(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE chats SET last_active = $2 WHERE id = $1`, id, time.Now())
	return err
}

// CreateMessage stores one chat message.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg types.ChatMessage) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, rendered) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.Rendered)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return nil
}

// GetMessagesByChat returns a chat's messages in creation order.
func (s *PostgresStore) GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]types.ChatMessage, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, chat_id, role, content, rendered FROM messages WHERE chat_id = $1 ORDER BY created_at`, chatID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.Rendered); err != nil {
			return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
