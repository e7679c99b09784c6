package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"datachat/chat"
	"datachat/config"
	"datachat/database"
	"datachat/dataset"
	"datachat/files"
	"datachat/filter"
	"datachat/web"

	"go.uber.org/zap"
)

// datasetLoader validates a finalized selection by running its group query
// against the owning source before the selection is committed.
type datasetLoader struct {
	queriers map[filter.Source]dataset.Querier
}

func (l *datasetLoader) LoadActive(ctx context.Context, ds filter.ActiveDataset) error {
	querier, ok := l.queriers[ds.Source]
	if !ok {
		return fmt.Errorf("no querier for source %q", ds.Source)
	}
	predicates := make(map[string][]string)
	selectAll := make(map[string]bool)
	for col, v := range ds.Predicates {
		switch v.Kind {
		case filter.ValueAll:
			selectAll[col] = true
		case filter.ValueScalar, filter.ValueList:
			predicates[col] = v.Values()
		}
	}
	_, err := querier.GroupBy(ctx, dataset.GroupQuery{
		Items:        ds.Items,
		GroupColumns: ds.GroupColumns,
		Predicates:   predicates,
		SelectAll:    selectAll,
		Limit:        1,
	})
	return err
}

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load config (which includes log level setting)
	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	store, err := database.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	memSource := dataset.NewMemSource(cfg.ResolverChunkSize, logger)
	sqlSource := dataset.NewSQLSource(store.DB, "matches", "match_id", logger)

	cache := dataset.NewCache(cfg.ValueCacheTTL, cfg.GroupedRowCacheSize)
	resolvers := map[filter.Source]*dataset.Resolver{
		filter.SourceSQL:  dataset.NewResolver(sqlSource, cache, cfg.ResolverResultCap, logger),
		filter.SourceFile: dataset.NewResolver(memSource, cache, cfg.ResolverResultCap, logger),
	}

	loader := &datasetLoader{queriers: map[filter.Source]dataset.Querier{
		filter.SourceSQL:  sqlSource,
		filter.SourceFile: memSource,
	}}
	events := filter.NewBroadcaster()
	reconciler := filter.NewReconciler(loader, store, events, cfg.SelectAllThreshold, logger)

	transport := chat.NewHTTPTransport(cfg.LLMHost, cfg.LLMRequestTimeout, logger)
	chatService := chat.NewService(cfg, store, transport, reconciler, logger)

	fileService := files.NewService(cfg.UploadsDir, store, memSource, logger)
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		logger.Fatal("Failed to create uploads directory", zap.Error(err))
	}
	if err := fileService.ScanAll(ctx); err != nil {
		logger.Warn("Failed to scan uploads directory", zap.Error(err))
	}

	// Log finalized selections as they are committed.
	finalized, unsubscribe := events.Subscribe()
	defer unsubscribe()
	go func() {
		for ds := range finalized {
			logger.Info("Active dataset finalized",
				zap.String("source", string(ds.Source)),
				zap.Strings("items", ds.Items),
				zap.Strings("group_columns", ds.GroupColumns))
		}
	}()

	webServer := web.NewServer(chatService, fileService, store, resolvers, logger, cfg)

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := fileService.Watch(ctx); err != nil {
			logger.Warn("Upload watcher stopped", zap.Error(err))
		}
	}()

	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting data chat web server", zap.String("port", port))
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}
