package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datachat/database"
	"datachat/dataset"
	apperrors "datachat/errors"
	"datachat/utils"
	"datachat/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// acceptedExts are the dataset upload formats. CSV and JSON are loaded
// into the in-memory source; Excel and Parquet are registered as metadata
// only and resolved through the SQL collaborator.
var acceptedExts = map[string]bool{
	".csv":     true,
	".json":    true,
	".xlsx":    true,
	".xls":     true,
	".parquet": true,
}

// Service registers uploaded dataset files: metadata in the store, and a
// loaded in-memory table for the locally parseable formats.
type Service struct {
	dir    string
	store  *database.PostgresStore
	source *dataset.MemSource
	logger *zap.Logger
}

func NewService(dir string, store *database.PostgresStore, source *dataset.MemSource, logger *zap.Logger) *Service {
	return &Service{
		dir:    dir,
		store:  store,
		source: source,
		logger: logger,
	}
}

// Accepts reports whether the filename has a supported dataset extension.
func Accepts(name string) bool {
	return acceptedExts[strings.ToLower(filepath.Ext(name))]
}

// Register validates, records, and (for CSV/JSON) loads one file already
// present in the uploads directory.
func (s *Service) Register(ctx context.Context, name string) error {
	sanitized := utils.SanitizeFilename(name)
	if sanitized == "" || !Accepts(sanitized) {
		return apperrors.WrapErrorf(apperrors.ErrInvalidInput, "unsupported upload %q", name)
	}
	path := filepath.Join(s.dir, sanitized)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return apperrors.WrapErrorf(apperrors.ErrNotFound, "upload %q not found", sanitized)
	}

	ext := strings.ToLower(filepath.Ext(sanitized))
	if ext == ".csv" || ext == ".json" {
		table, err := dataset.LoadFile(path)
		if err != nil {
			return err
		}
		s.source.AddTable(table)
	}

	return s.store.UpsertUploadedFile(ctx, types.UploadedFile{
		ID:         uuid.New(),
		Name:       sanitized,
		Path:       path,
		Size:       info.Size(),
		Kind:       strings.TrimPrefix(ext, "."),
		UploadedAt: time.Now(),
	})
}

// Unregister drops a removed file's metadata and in-memory table.
func (s *Service) Unregister(ctx context.Context, name string) error {
	s.source.RemoveTable(name)
	return s.store.DeleteUploadedFileByName(ctx, name)
}

// ScanAll registers every acceptable file already in the uploads directory,
// used at startup so pre-existing uploads are selectable immediately.
func (s *Service) ScanAll(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !Accepts(entry.Name()) {
			continue
		}
		if err := s.Register(ctx, entry.Name()); err != nil {
			s.logger.Warn("Skipping unregistrable file",
				zap.String("file", entry.Name()), zap.Error(err))
		}
	}
	return nil
}

// List returns the registered uploads.
func (s *Service) List(ctx context.Context) ([]types.UploadedFile, error) {
	return s.store.ListUploadedFiles(ctx)
}
