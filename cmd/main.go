package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"deskbackend/clients"
	"deskbackend/clients/rabbitmq"
	"deskbackend/config"
	"deskbackend/db"
	"deskbackend/handlers"
	"deskbackend/middleware"
	"deskbackend/services/assignments"
	"deskbackend/services/conversations"
	"deskbackend/services/memberships"
	"deskbackend/services/organizations"
	"deskbackend/services/presence"
	"deskbackend/services/settings"
	"deskbackend/services/txmanager"
	"deskbackend/usecases/routing"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Initialize error alert middleware
	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.AlertConfig{
		WebhookURL:  cfg.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "deskbackend",
		LogsURL:     cfg.ServerLogsURL,
	})

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories with shared connection
	presenceRepo := db.NewPostgresPresenceRepository(dbConn, cfg.DatabaseSchema)
	conversationsRepo := db.NewPostgresConversationsRepository(dbConn, cfg.DatabaseSchema)
	assignmentsRepo := db.NewPostgresAssignmentsRepository(dbConn, cfg.DatabaseSchema)
	settingsRepo := db.NewPostgresOrgSettingsRepository(dbConn, cfg.DatabaseSchema)
	membershipsRepo := db.NewPostgresMembershipsRepository(dbConn, cfg.DatabaseSchema)
	organizationsRepo := db.NewPostgresOrganizationsRepository(dbConn, cfg.DatabaseSchema)

	// Initialize transaction manager
	txManager := txmanager.NewTransactionManager(dbConn)

	presenceService := presence.NewPresenceService(presenceRepo, cfg.PresenceConfig.StaleThreshold())
	conversationsService := conversations.NewConversationsService(conversationsRepo)
	assignmentsService := assignments.NewAssignmentsService(assignmentsRepo)
	settingsService := settings.NewOrgSettingsService(settingsRepo)
	membershipsService := memberships.NewMembershipsService(membershipsRepo)
	organizationsService := organizations.NewOrganizationsService(organizationsRepo)

	// Notification fan-out for the notify_all fallback
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	var notificationsClient clients.NotificationsClient
	if cfg.RabbitMQConfig.IsConfigured() {
		publisher, err := rabbitmq.NewNotificationsPublisher(
			cfg.RabbitMQConfig.URL, cfg.RabbitMQConfig.Exchange, logger)
		if err != nil {
			return err
		}
		notificationsClient = publisher
	} else {
		notificationsClient = rabbitmq.NewFallback(logger)
	}
	defer notificationsClient.Close()

	routingUseCase := routing.NewRoutingUseCase(
		presenceService,
		conversationsService,
		assignmentsService,
		settingsService,
		membershipsService,
		organizationsService,
		notificationsClient,
		txManager,
	)

	routingHandler := handlers.NewRoutingHTTPHandler(routingUseCase, conversationsService, assignmentsService)
	presenceHandler := handlers.NewPresenceHTTPHandler(presenceService)
	settingsHandler := handlers.NewSettingsHTTPHandler(settingsService)
	authMiddleware := middleware.NewOrgAuthMiddleware(organizationsService)

	// Create a new router
	router := mux.NewRouter()

	// Setup endpoints with the new router
	routingHandler.SetupEndpoints(router, authMiddleware)
	presenceHandler.SetupEndpoints(router, authMiddleware)
	settingsHandler.SetupEndpoints(router, authMiddleware)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	// Periodic sweep of stale presence rows and re-drain of queued conversations
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", func() {
		_ = alertMiddleware.WrapBackgroundTask("MarkStalePresenceOffline", func() error {
			_, err := presenceService.MarkStalePresenceOffline(context.Background())
			return err
		})()
		_ = alertMiddleware.WrapBackgroundTask("ProcessQueuedConversations", func() error {
			return routingUseCase.ProcessQueuedConversations(context.Background())
		})()
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup CORS middleware
	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Setup and handle graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	// Channel to listen for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
