package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/api"
	"sciencetopia/backend/internal/graph"
	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/internal/knowledge"
	"sciencetopia/backend/internal/linkpreview"
	"sciencetopia/backend/internal/notify"
	"sciencetopia/backend/internal/search"
	"sciencetopia/backend/internal/studygroup"
	"sciencetopia/backend/internal/studyplan"
	"sciencetopia/backend/pkg/config"
	"sciencetopia/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...", zap.String("env", cfg.Env))

	ctx := context.Background()

	// Connect to Neo4j
	store, err := graphstore.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer store.Close(context.Background())

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure graph schema", zap.Error(err))
	}

	publisher, closePublisher, err := notify.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect notification publisher", zap.Error(err))
	}
	defer closePublisher()

	router := newRouter(cfg, store, publisher, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// newRouter builds every service on top of the shared repository
func newRouter(cfg *config.Config, store *graphstore.Client, publisher notify.Publisher, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	repo := graph.NewRepository(store)
	return api.NewRouter(api.RouterConfig{
		Knowledge:      knowledge.NewService(repo, publisher),
		Search:         search.NewService(repo, cfg.SearchMaxPageSize, cfg.SearchCandidateLimit),
		Preview:        linkpreview.NewFetcher(time.Duration(cfg.LinkPreviewTimeoutSeconds) * time.Second),
		StudyGroups:    studygroup.NewService(repo, publisher),
		StudyPlans:     studyplan.NewService(repo),
		Health:         repo,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	})
}
