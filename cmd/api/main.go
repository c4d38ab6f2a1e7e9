package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/ai"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/config"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/database"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/handlers"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/middleware"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/sync"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in the shutdown handler below

	// 3. Auto-migrate schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.User{},
		&models.RegisteredDevice{},
		&models.SyncLog{},

		// Synced entities
		&models.Trip{},
		&models.Day{},
		&models.Activity{},
		&models.BudgetItem{},
		&models.Note{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Sync engine
	log.Println("🔄 Initializing sync engine...")
	syncCfg := config.LoadSyncConfig()
	engine := sync.NewEngine(database.NewEntityStore(db), syncCfg)
	log.Printf("✅ Sync engine ready (default strategy: %s)", syncCfg.DefaultStrategy)

	// 5. Set up HTTP router
	router := handlers.NewRouter(db, cfg, engine, syncCfg)

	// 6. AI itinerary planner (optional, needs an API key)
	var aiClient *ai.GeminiClient
	if cfg.AI.GeminiAPIKey != "" {
		aiClient, err = ai.NewGeminiClient(context.Background(), cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
		if err != nil {
			log.Printf("⚠️ AI: failed to init Gemini client, itinerary generation disabled: %v", err)
		} else {
			router.SetPlanner(ai.NewPlanner(aiClient))
			log.Printf("✅ AI: itinerary planner ready (model: %s)", cfg.AI.GeminiModel)
		}
	} else {
		log.Println("⚠️ AI: GEMINI_API_KEY not set, itinerary generation disabled")
	}

	if cfg.Export.UploadsEnabled() {
		log.Printf("✅ Export: PDF uploads enabled (bucket: %s)", cfg.Export.S3Bucket)
	}

	// 7. Start server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.CaseInsensitiveMiddleware(router),
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s [env: %s]\n", cfg.Port, cfg.NodeEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Close the AI client
	if aiClient != nil {
		aiClient.Close()
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
