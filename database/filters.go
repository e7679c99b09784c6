package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "datachat/errors"
	"datachat/filter"

	"github.com/google/uuid"
)

// SaveFilterSnapshot upserts the per-chat filter state snapshot.
func (s *PostgresStore) SaveFilterSnapshot(ctx context.Context, chatID string, snap filter.Snapshot) error {
	id, err := uuid.Parse(chatID)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInvalidInput, err.Error())
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO filter_snapshots (chat_id, payload, updated_at) VALUES ($1, $2, NOW())
         ON CONFLICT (chat_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		id, payload)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return nil
}

// GetFilterSnapshot returns the persisted snapshot for a chat, or nil when
// the chat has none (a fresh chat starts empty).
func (s *PostgresStore) GetFilterSnapshot(ctx context.Context, chatID string) (*filter.Snapshot, error) {
	id, err := uuid.Parse(chatID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, err.Error())
	}
	var payload []byte
	err = s.DB.QueryRowContext(ctx,
		`SELECT payload FROM filter_snapshots WHERE chat_id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	var snap filter.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return &snap, nil
}

// SaveActiveDataset persists a finalized selection. The payload row is
// written first and the chat's version pointer second: a crash between the
// two leaves the pointer at the prior version, so readers see either the
// old record or nothing, never a half-written one. Orphan payload rows are
// ignorable.
func (s *PostgresStore) SaveActiveDataset(ctx context.Context, chatID string, ds filter.ActiveDataset) error {
	id, err := uuid.Parse(chatID)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInvalidInput, err.Error())
	}
	payload, err := json.Marshal(ds)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}

	version := time.Now().UnixNano()
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO active_datasets (chat_id, version, payload) VALUES ($1, $2, $3)`,
		id, version, payload); err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	if _, err := s.DB.ExecContext(ctx,
		`UPDATE chats SET active_dataset_version = $2 WHERE id = $1`,
		id, version); err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return nil
}

// GetActiveDataset returns the finalized record the chat's version pointer
// references, or nil when no selection was ever finalized.
func (s *PostgresStore) GetActiveDataset(ctx context.Context, chatID string) (*filter.ActiveDataset, error) {
	id, err := uuid.Parse(chatID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, err.Error())
	}
	var payload []byte
	err = s.DB.QueryRowContext(ctx,
		`SELECT d.payload FROM chats c
         JOIN active_datasets d ON d.chat_id = c.id AND d.version = c.active_dataset_version
         WHERE c.id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	var ds filter.ActiveDataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return &ds, nil
}
