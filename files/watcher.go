package files

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch keeps the file registry in sync with out-of-band changes to the
// uploads directory until ctx is cancelled. Create and write events
// re-register the file; remove and rename events unregister it.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}
	s.logger.Info("Watching uploads directory", zap.String("dir", s.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !Accepts(name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := s.Register(ctx, name); err != nil {
					s.logger.Warn("Failed to register changed file",
						zap.String("file", name), zap.Error(err))
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if err := s.Unregister(ctx, name); err != nil {
					s.logger.Warn("Failed to unregister removed file",
						zap.String("file", name), zap.Error(err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Uploads watcher error", zap.Error(err))
		}
	}
}
