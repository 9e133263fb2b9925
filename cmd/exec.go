package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"

	"ticket-admin/config"
	"ticket-admin/internal/handlers"
	"ticket-admin/internal/services"
	"ticket-admin/internal/store"
	"ticket-admin/internal/ticket"
	"ticket-admin/internal/validation"
	"ticket-admin/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis (scan feed only; validations never depend on it)
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub when keys are configured
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId("ticket-admin-server"))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Status classifier drives both the validation verdicts and the
	// terminal-status guard inside the sales CAS update.
	classifier := ticket.NewClassifier(cfg.UsedStatuses, cfg.CancelledStatuses, cfg.ConfirmedStatuses)

	// Stores
	saleStore := store.NewSaleStore(app, classifier.TerminalSynonyms())
	purchaseStore := store.NewPurchaseStore(app)
	checkinLedger := store.NewCheckinLedger(app)
	eventStore := store.NewEventStore(app)
	adminGate := store.NewAdminGate(app)

	// Core validation pipeline
	locator := ticket.NewLocator(saleStore, purchaseStore)
	engine := validation.NewEngine(locator, saleStore, purchaseStore, checkinLedger, eventStore, classifier, app.Logger())

	// Services
	feedService := services.NewFeedService(redisClient, pn, cfg, app.Logger())

	// Handlers
	validationHandler := handlers.NewValidationHandler(app, engine, feedService, cfg.ValidationTimeout)
	eventAdminHandler := handlers.NewEventAdminHandler(app, adminGate)
	historyHandler := handlers.NewHistoryHandler(app, checkinLedger, eventStore, feedService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Validation endpoint
		e.Router.POST("/api/v1/tickets/validate", validationHandler.Validate)

		// Event administration (action-discriminated, mirrors the legacy console)
		e.Router.GET("/api/v1/admin/events", eventAdminHandler.Manage)
		e.Router.POST("/api/v1/admin/events", eventAdminHandler.Manage)

		// Check-in history and live feed
		e.Router.GET("/api/v1/events/{eventId}/checkins", historyHandler.ListCheckins)
		e.Router.GET("/api/v1/events/{eventId}/checkin-stats", historyHandler.CheckinStats)
		e.Router.GET("/api/v1/events/{eventId}/scans/recent", historyHandler.RecentScans)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		// Prometheus metrics
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		return err
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()

	// Give in-flight validations a moment to settle before the process exits
	time.Sleep(500 * time.Millisecond)
}
