package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"screening-system/config"
	"screening-system/internal/handlers"
	"screening-system/internal/services"
	stripeproc "screening-system/internal/services/processor/stripe"
	"screening-system/monitoring"
	"screening-system/security"
	"screening-system/utils"
	"syscall"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	// Initialize payment processor
	proc := stripeproc.New(&stripeproc.ClientConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})

	// Initialize services
	rsvpService := services.NewRSVPService(app)
	paymentService := services.NewPaymentService(app, redisClient, pn, rsvpService, proc, cfg)
	webhookService := services.NewWebhookService(paymentService, proc, cfg)

	// Initialize handlers
	rsvpHandler := handlers.NewRSVPHandler(app, rsvpService)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService, webhookService)

	limiter := security.NewRateLimiter(redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		go startMetricsServer(ctx, cfg, redisClient)
	}

	setupEventHooks(app)

	// Register routes
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// RSVP endpoints
		e.Router.POST("/api/v1/events/{eventId}/rsvp", rsvpHandler.SetRSVP).
			BindFunc(limiter.AntiBot()).
			BindFunc(limiter.Limit("rsvp"))
		e.Router.DELETE("/api/v1/events/{eventId}/rsvp", rsvpHandler.DeleteRSVP)
		e.Router.GET("/api/v1/events/{eventId}/rsvp/me", rsvpHandler.GetMyRSVP)
		e.Router.GET("/api/v1/events/{eventId}/attendees", rsvpHandler.ListAttendees)
		e.Router.GET("/api/v1/me/rsvps", rsvpHandler.ListMyRSVPs)

		// Payment endpoints
		e.Router.POST("/api/v1/payments/create-intent", paymentHandler.CreateIntent).
			BindFunc(limiter.Limit("payment"))
		e.Router.GET("/api/v1/payments/{intentId}/status", paymentHandler.CheckPaymentStatus)
		e.Router.POST("/api/v1/payments/{intentId}/sync", paymentHandler.SyncIntent)
		e.Router.POST("/api/v1/payments/{intentId}/cancel", paymentHandler.CancelIntent)
		e.Router.GET("/api/v1/payments/history", paymentHandler.GetPaymentHistory)
		e.Router.POST("/api/v1/payments/{paymentId}/refund", paymentHandler.RefundPayment).
			BindFunc(security.RequireAdminKey(cfg.AdminKeyHash))

		// Processor webhook; authenticated by signature, not by session
		e.Router.POST("/api/v1/payments/webhook", paymentHandler.HandleWebhook)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// setupEventHooks validates event records at write time. A
// pay-what-you-can event with no suggested price is a data-integrity
// violation and must never be persisted.
func setupEventHooks(app *pocketbase.PocketBase) {
	validate := func(e *core.RecordRequestEvent) error {
		if e.Record.GetBool("pay_what_you_can") && e.Record.GetInt("price") == 0 {
			return apis.NewBadRequestError("Pay-what-you-can events require a suggested price", nil)
		}
		return e.Next()
	}

	app.OnRecordCreateRequest("events").BindFunc(validate)
	app.OnRecordUpdateRequest("events").BindFunc(validate)
}

// startMetricsServer exposes Prometheus metrics and a health probe on a
// dedicated port.
func startMetricsServer(ctx context.Context, cfg *config.Config, redisClient *redis.Client) {
	e := echo.New()

	e.GET("/metrics", func(c echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})
	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: e,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	slog.Info("metrics server listening", "port", cfg.MetricsPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
