package web

import (
	"context"
	"net/http"
	"time"

	"datachat/chat"
	"datachat/config"
	"datachat/database"
	"datachat/dataset"
	"datachat/files"
	"datachat/filter"
	"datachat/web/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router  *gin.Engine
	service *chat.Service
	files   *files.Service
	store   *database.PostgresStore
	logger  *zap.Logger
	config  *config.Config
}

func NewServer(service *chat.Service, fileService *files.Service, store *database.PostgresStore, resolvers map[filter.Source]*dataset.Resolver, logger *zap.Logger, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadSize
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))
	router.Use(func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	})

	server := &Server{
		router:  router,
		service: service,
		files:   fileService,
		store:   store,
		logger:  logger,
		config:  cfg,
	}

	server.setupRoutes(resolvers)
	return server
}

func (s *Server) setupRoutes(resolvers map[filter.Source]*dataset.Resolver) {
	s.router.Static("/static", "./web/static")

	chatHandler := handlers.NewChatHandler(s.service, s.store, s.logger)
	debounce := filter.NewDebouncer(time.Duration(s.config.ResolverDebounceMillis) * time.Millisecond)
	filterHandler := handlers.NewFilterHandler(s.service, resolvers, debounce, s.logger)
	uploadHandler := handlers.NewUploadHandler(s.files, s.config.UploadsDir, s.logger)

	api := s.router.Group("/api")
	{
		api.GET("/models", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"models":  s.config.Models,
				"default": s.config.DefaultModel,
			})
		})

		api.POST("/chats", chatHandler.CreateChat)
		api.GET("/chats", chatHandler.ListChats)
		api.POST("/chats/:id/switch", chatHandler.SwitchChat)
		api.GET("/chats/:id/messages", chatHandler.GetMessages)
		api.POST("/chats/:id/messages", chatHandler.SendMessage)
		api.POST("/chats/:id/finalize", filterHandler.Finalize)

		api.GET("/filters", filterHandler.State)
		api.GET("/filters/values", filterHandler.Values)
		api.POST("/filters/columns", filterHandler.SelectColumns)
		api.POST("/filters/mode", filterHandler.SetColumnMode)
		api.POST("/filters/select", filterHandler.SelectValue)
		api.POST("/filters/batch", filterHandler.BatchSelectValues)
		api.POST("/filters/item", filterHandler.ToggleItem)
		api.POST("/filters/clear", filterHandler.ClearSelection)

		api.POST("/uploads", uploadHandler.Upload)
		api.GET("/uploads", uploadHandler.List)
		api.DELETE("/uploads/:name", uploadHandler.Delete)
	}
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	return srv.Shutdown(context.Background())
}
