package database

import (
	"context"
	"database/sql"
	"errors"

	apperrors "datachat/errors"
	"datachat/web/types"
)

// UpsertUploadedFile registers or refreshes an uploaded file's metadata.
func (s *PostgresStore) UpsertUploadedFile(ctx context.Context, f types.UploadedFile) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO uploaded_files (id, name, path, size, kind, uploaded_at) VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (name) DO UPDATE SET path = EXCLUDED.path, size = EXCLUDED.size, kind = EXCLUDED.kind, uploaded_at = EXCLUDED.uploaded_at`,
		f.ID, f.Name, f.Path, f.Size, f.Kind, f.UploadedAt)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return nil
}

// ListUploadedFiles returns all registered files, newest first.
func (s *PostgresStore) ListUploadedFiles(ctx context.Context) ([]types.UploadedFile, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, path, size, kind, uploaded_at FROM uploaded_files ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	defer rows.Close()

	var files []types.UploadedFile
	for rows.Next() {
		var f types.UploadedFile
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &f.Size, &f.Kind, &f.UploadedAt); err != nil {
			return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetUploadedFileByName fetches one file's metadata.
func (s *PostgresStore) GetUploadedFileByName(ctx context.Context, name string) (*types.UploadedFile, error) {
	var f types.UploadedFile
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, path, size, kind, uploaded_at FROM uploaded_files WHERE name = $1`, name).
		Scan(&f.ID, &f.Name, &f.Path, &f.Size, &f.Kind, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return &f, nil
}

// DeleteUploadedFileByName removes a file's metadata, e.g. after the file
// disappeared from the uploads directory.
func (s *PostgresStore) DeleteUploadedFileByName(ctx context.Context, name string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM uploaded_files WHERE name = $1`, name)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrDatabaseOperation, err.Error())
	}
	return nil
}
