// Package main is the entry point for the PatchLink Go server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/patchlink/patchlink-go/internal/api"
	"github.com/patchlink/patchlink-go/internal/config"
	"github.com/patchlink/patchlink-go/internal/database"
	"github.com/patchlink/patchlink-go/internal/database/repositories"
	"github.com/patchlink/patchlink-go/internal/services/gdtf"
	"github.com/patchlink/patchlink-go/internal/services/match"
	"github.com/patchlink/patchlink-go/internal/services/pubsub"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Print startup banner
	printBanner(cfg)

	// Connect to database
	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	// Auto-migrate database schema
	log.Println("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migrations complete")

	events := pubsub.New()
	profileRepo := repositories.NewProfileRepository(db)
	loader := gdtf.NewLoader(profileRepo, events)

	// Import the profile library on first start (or when forced)
	if cfg.ProfileImportEnabled {
		importLibraryOnStartup(cfg, loader)
	}

	// Warm the profile registry from the database
	registry := match.NewRegistry()
	if profiles, err := profileRepo.LoadAll(context.Background()); err != nil {
		log.Printf("Warning: failed to load profile library: %v", err)
	} else {
		registry.AddAll(profiles)
		log.Printf("📚 Profile library loaded: %d profiles", registry.Len())
	}

	// Create router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	// Routes
	router.Get("/health", healthCheckHandler)
	handler := api.New(cfg, profileRepo, loader, events, registry)
	handler.Routes(router)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("API endpoint: http://localhost:%s/api\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// importLibraryOnStartup scans the configured .gdtf directory when the
// library is empty, or unconditionally when reimport is forced.
func importLibraryOnStartup(cfg *config.Config, loader *gdtf.Loader) {
	ctx := context.Background()
	if !cfg.ProfileImportReimport {
		needed, err := loader.NeedsImport(ctx)
		if err != nil {
			log.Printf("Warning: failed to check profile library: %v", err)
			return
		}
		if !needed {
			return
		}
	}
	if _, err := os.Stat(cfg.ProfileLibraryPath); os.IsNotExist(err) {
		log.Printf("Profile library path %s does not exist, skipping import", cfg.ProfileLibraryPath)
		return
	}
	status, err := loader.LoadDirectory(ctx, cfg.ProfileLibraryPath)
	if err != nil {
		log.Printf("Warning: profile library import failed: %v", err)
		return
	}
	log.Printf("✅ Profile library import complete: %d imported, %d failed",
		status.SuccessfulImports, status.FailedImports)
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s",
  "uptime": "N/A"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  PatchLink Go Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  Library:     %s\n", cfg.ProfileLibraryPath)
	fmt.Println("============================================")
}
