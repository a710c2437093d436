package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/segmentcraft/internal/app"
	"github.com/cesargomez89/segmentcraft/internal/config"
	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/content"
	httpapp "github.com/cesargomez89/segmentcraft/internal/http"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/storage"
	"github.com/cesargomez89/segmentcraft/internal/store"
	"github.com/cesargomez89/segmentcraft/internal/worker"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	material, err := content.LoadFile(cfg.ContentPath)
	if err != nil {
		appLogger.Error("Failed to load content", "path", cfg.ContentPath, "error", err)
		os.Exit(1)
	}

	// Rebuild the in-memory store from what the last run persisted
	segmentStore := store.NewSegmentStore()
	restored, err := db.Restore(segmentStore)
	if err != nil {
		appLogger.Error("Failed to restore chains", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Store restored", "segments", restored)

	templates := app.NewTemplateCatalog(material, store.NewTemplateRepo(db))
	chainService := app.NewChainService(segmentStore, db, templates, cfg, appLogger.WithComponent("chains"))
	segmentService := app.NewSegmentService(segmentStore, db, cfg, appLogger.WithComponent("segments"))
	if cfg.ShipDir != "" {
		archive, err := storage.NewArchive(cfg.ShipDir, cfg.ShipLayout)
		if err != nil {
			appLogger.Error("Failed to init ship archive", "dir", cfg.ShipDir, "error", err)
			os.Exit(1)
		}
		segmentService.Archive = archive
	}
	craftWork := app.NewCraftWork(chainService, segmentService, templates, cfg, appLogger.WithComponent("craft"))

	w := worker.NewWorker(chainService, segmentService, craftWork, cfg, appLogger)
	w.Start()
	defer w.Stop()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := httpapp.NewHandler(chainService, segmentService, craftWork, templates, appLogger)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
