package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/config"
	"github.com/rpattn/courtdata/internal/db"
	"github.com/rpattn/courtdata/internal/importer"
	"github.com/rpattn/courtdata/internal/middleware"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	clk := clock.New()

	// Create repositories
	batchRepo := repository.NewBatchRepository(conn.Pool)
	progressRepo := repository.NewProgressRepository(conn.Pool)
	errorRepo := repository.NewImportErrorRepository(conn.Pool)
	sessionRepo := repository.NewSessionRepository(conn.Pool)
	courtRepo := repository.NewCourtRepository(conn.Pool)
	caseTypeRepo := repository.NewCaseTypeRepository(conn.Pool)
	judgeRepo := repository.NewJudgeRepository(conn.Pool)
	caseRepo := repository.NewCaseRepository(conn)

	// Create pipeline components
	collector := importer.NewCollector(errorRepo, clk)
	tracker := importer.NewTracker(progressRepo, batchRepo, clk, cfg.Import.ProgressFlushRows)
	resolver := importer.NewResolver(courtRepo, caseTypeRepo, judgeRepo, clk)
	engine := importer.NewUpsertEngine(caseRepo, clk, cfg.Import.RetryBudget)
	lifecycle := importer.NewLifecycle(batchRepo, clk)
	previews := importer.NewPreviewCache(clk, cfg.Import.PreviewTTL)
	sessions := importer.NewSessionManager(sessionRepo, clk, cfg.Import.SessionIdle)

	service := importer.NewService(batchRepo, collector, tracker, resolver, engine, lifecycle, previews, clk, cfg.Import)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	apiHandler := middleware.LoggingMiddleware(importer.NewHTTPHandler(service, sessions, cfg.Import))

	http.Handle("/", corsHandler.Handler(apiHandler))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting import server on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
