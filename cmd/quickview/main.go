// Quick View service - storefront quick-view sessions and add-to-cart sequencing.
// Designed for Cloud Run deployment; sessions live in memory per instance.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quickview-proxy/internal/adapter"
	"quickview-proxy/internal/cart"
	"quickview-proxy/internal/config"
	"quickview-proxy/internal/handler"
	"quickview-proxy/internal/middleware"
	"quickview-proxy/internal/pagecfg"
	"quickview-proxy/internal/quickview"
	"quickview-proxy/internal/shopify"
	"quickview-proxy/internal/woocommerce"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	defaults := cfg.DefaultRule()
	logger.Info("configuration loaded",
		slog.String("store_id", cfg.StoreID),
		slog.String("platform", cfg.Store.Platform),
		slog.String("environment", cfg.Environment),
		slog.String("store_domain", cfg.StoreDomain()),
		slog.Bool("upsell_enabled", defaults.Enabled()),
	)

	store, err := createStorefront(cfg)
	if err != nil {
		return fmt.Errorf("creating storefront client: %w", err)
	}

	// Core wiring: cart events fan out to mini-cart listeners
	events := cart.NewBroadcaster(logger)
	seq := cart.NewSequencer(store, events, logger)
	registry := quickview.NewRegistry(quickview.RegistryConfig{
		TTL:        cfg.SessionTTL,
		MaxEntries: cfg.MaxSessions,
	})
	svc := quickview.NewService(store, seq, registry, logger)

	h := handler.New(svc, events, defaults, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → page config → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		pagecfg.Middleware(defaults, logger),
	)(mux)

	// Create HTTP server with timeouts.
	// The cart event stream clears its own write deadline.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight cart adds time to land
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped", slog.Int("open_sessions", registry.Len()))
	return nil
}

// createStorefront creates the platform client based on configuration.
func createStorefront(cfg *config.Config) (adapter.Storefront, error) {
	switch cfg.Store.Platform {
	case config.PlatformShopify:
		return shopify.New(shopify.Config{StoreURL: cfg.Store.StoreURL})
	case config.PlatformWooCommerce:
		return woocommerce.New(woocommerce.Config{StoreURL: cfg.Store.StoreURL})
	default:
		return nil, fmt.Errorf("unsupported platform: %s", cfg.Store.Platform)
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
