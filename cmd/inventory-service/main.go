package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/farmflow/farmflow-backend/internal/inventory/events"
	"github.com/farmflow/farmflow-backend/internal/inventory/handler"
	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/internal/inventory/service"
	"github.com/farmflow/farmflow-backend/pkg/config"
	"github.com/farmflow/farmflow-backend/pkg/database"
	"github.com/farmflow/farmflow-backend/pkg/httputil"
	"github.com/farmflow/farmflow-backend/pkg/logger"
	"github.com/farmflow/farmflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	lotRepo := repository.NewLotRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)

	// Initialize services
	inventoryService := service.NewInventoryService(productRepo, lotRepo, alertRepo, publisher, log)
	allocationService := service.NewAllocationService(productRepo, lotRepo, allocationRepo, publisher, log)
	scanner := service.NewAlertScanner(lotRepo, alertRepo, publisher, log)

	// Start the background expiry scheduler
	scheduler := service.NewScheduler(scanner, cfg.Scheduler.ScanInterval, cfg.Scheduler.CleanupInterval, log)
	if cfg.Scheduler.Enabled {
		scheduler.Start(context.Background())
	} else {
		log.Warn().Msg("expiry scheduler disabled; alerts only refresh via the scan endpoint")
	}

	// Initialize handlers
	productHandler := handler.NewProductHandler(inventoryService, log)
	lotHandler := handler.NewLotHandler(inventoryService, log)
	allocationHandler := handler.NewAllocationHandler(allocationService, log)
	alertHandler := handler.NewAlertHandler(alertRepo, scanner, log)
	dashboardHandler := handler.NewDashboardHandler(inventoryService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Role"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Actor)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Get("/{id}/stocks", productHandler.ListStocks)
			r.Post("/{id}/stocks", productHandler.CreateStock)
			r.Get("/{id}/lots", lotHandler.ListByProduct)
			r.Post("/{id}/lots", lotHandler.Create)
		})

		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/{id}", lotHandler.Get)
			r.Post("/{id}/adjust", lotHandler.Adjust)
			r.Delete("/{id}", lotHandler.Delete)
		})

		// Allocation routes
		r.Route("/allocations", func(r chi.Router) {
			r.Post("/preview", allocationHandler.Preview)
			r.Post("/commit", allocationHandler.Commit)
			r.Get("/{planID}", allocationHandler.Get)
		})

		// Alert routes
		r.Get("/alerts", alertHandler.List)
		r.Post("/alerts/scan", alertHandler.Scan)
		r.Post("/alerts/cleanup", alertHandler.Cleanup)

		// Dashboard
		r.Get("/dashboard/expiry", dashboardHandler.GetStats)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the background scheduler before draining connections
	scheduler.Stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
