package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/terrahaven/api-server-go/database"
	"github.com/terrahaven/api-server-go/events"
	"github.com/terrahaven/api-server-go/handlers"
	"github.com/terrahaven/api-server-go/middleware"
	"github.com/terrahaven/api-server-go/pkg/monitoring"
	"github.com/terrahaven/api-server-go/services"
)

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("Starting TerraHaven API server initialization")

	dbConfig := database.NewConfig()
	gormDB, err := database.Connect(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Change feed: the admin dashboard subscribes per table and re-fetches the
	// affected collection on every notification
	feed := events.NewFeed()
	subscribeDashboardRefreshers(feed)

	publisher, err := setupPublisher(ctx, feed)
	if err != nil {
		slog.Error("Failed to set up change-feed publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	notifier := setupNotifier()

	accessRequestService := services.NewAccessRequestService(gormDB, publisher)
	accessRequestService.SetAllowTerminalCorrection(os.Getenv("REVIEW_ALLOW_TERMINAL_CORRECTION") == "true")

	listingService := services.NewListingService(gormDB, publisher, notifier)
	listingService.SetAllowExpiredConsent(os.Getenv("CONSENT_ALLOW_EXPIRED") == "true")

	apiHandler := handlers.NewAPIHandler(accessRequestService, listingService)

	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"terrahaven-api","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
	})

	// Prometheus metrics endpoint
	mux.Handle("/metrics", monitoring.Handler())

	jwtSecret := os.Getenv("AUTH_JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("AUTH_JWT_SECRET is not set; refusing to start without a token signing secret")
		os.Exit(1)
	}

	jwtMiddleware := middleware.NewJWTAuthMiddleware(middleware.JWTAuthConfig{
		SigningSecret:    jwtSecret,
		ExpectedIssuer:   os.Getenv("AUTH_JWT_ISSUER"),
		ExpectedAudience: os.Getenv("AUTH_JWT_AUDIENCE"),
	})

	handler := middleware.NewCORSMiddleware()(jwtMiddleware.AuthenticateJWT(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	addr := ":" + port
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("TerraHaven API server starting", "port", port, "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start API server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down TerraHaven API server...")

	// Stop the stream consumer before closing the listener
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("TerraHaven API server exited")
}

// setupPublisher selects the change-feed transport. With REDIS_ADDR set the
// feed runs over a Redis stream so every server instance sees every change;
// otherwise changes dispatch synchronously in process.
func setupPublisher(ctx context.Context, feed *events.Feed) (events.Publisher, error) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		slog.Info("REDIS_ADDR not set, using in-process change feed")
		return events.NewLocalBroker(feed), nil
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			redisDB = parsed
		}
	}

	publisher, err := events.NewRedisPublisher(&events.RedisConfig{
		Addr:     redisAddr,
		Username: os.Getenv("REDIS_USERNAME"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	})
	if err != nil {
		return nil, err
	}

	consumerName, err := os.Hostname()
	if err != nil {
		consumerName = "terrahaven-api"
	}

	consumer, err := events.NewStreamConsumer(publisher.Client(), feed, consumerName)
	if err != nil {
		publisher.Close()
		return nil, err
	}
	go consumer.Start(ctx)

	slog.Info("Change feed running over Redis stream", "addr", redisAddr)
	return publisher, nil
}

// subscribeDashboardRefreshers registers the per-table refresh hooks. The
// notification only identifies the table; subscribers re-fetch the whole
// collection rather than patching individual rows.
func subscribeDashboardRefreshers(feed *events.Feed) {
	for _, table := range []string{"access_requests", "listings", "client_consents"} {
		table := table
		feed.Subscribe(table, func(change events.Change) {
			slog.Info("Change notification received, collection refresh due",
				"table", table,
				"record_id", change.RecordID,
				"action", change.Action)
		})
	}
}

// setupNotifier selects the broker notification channel. Telegram delivery is
// used when a bot token is configured; otherwise notifications go to the log.
func setupNotifier() services.BrokerNotifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatIDRaw := os.Getenv("TELEGRAM_CHAT_ID")
	if token == "" || chatIDRaw == "" {
		return services.NewLoggingNotifier()
	}

	chatID, err := strconv.ParseInt(chatIDRaw, 10, 64)
	if err != nil {
		slog.Error("Invalid TELEGRAM_CHAT_ID, falling back to log notifications", "error", err)
		return services.NewLoggingNotifier()
	}

	notifier, err := services.NewTelegramNotifier(token, chatID)
	if err != nil {
		slog.Error("Failed to initialize Telegram notifier, falling back to log notifications", "error", err)
		return services.NewLoggingNotifier()
	}
	return notifier
}
