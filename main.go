package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/MGallo-Code/callbackd/internal/callback"
	"github.com/MGallo-Code/callbackd/internal/config"
	"github.com/MGallo-Code/callbackd/internal/driver"
	"github.com/MGallo-Code/callbackd/internal/identity"
	"github.com/MGallo-Code/callbackd/internal/metrics"
	"github.com/MGallo-Code/callbackd/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serviceName identifies this process in traces and logs.
const serviceName = "callbackd"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Errors are silenced in cobra; every command failure is reported here.
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// setupLogger installs a JSON slog handler on stdout as the default logger.
// Source locations are included at debug level only.
func setupLogger(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})))
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred cleanup (tracer shutdown) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// svc overrides the identity service client built from cfg; nil in production.
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, svc identity.Service, ready chan<- string) error {
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	if svc == nil {
		client, err := identity.NewClient(ctx, identity.ClientConfig{
			Endpoint:     cfg.IdentityEndpoint,
			IssuerURL:    cfg.IdentityIssuerURL,
			TokenURL:     cfg.IdentityTokenURL,
			ClientID:     cfg.IdentityClientID,
			ClientSecret: cfg.IdentityClientSecret,
			Scopes:       cfg.IdentityScopes,
			Timeout:      cfg.IdentityTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to set up identity client: %w", err)
		}
		svc = client
	}

	// Own registry so tests can run several servers in one process.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	h := &callback.Handler{Coord: callback.NewCoordinator(svc, m), Metrics: m}

	// Bind listener; port 0 picks a free port (useful in tests).
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(h, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		port := ln.Addr().(*net.TCPAddr).Port
		slog.Info("callbackd listening",
			"addr", ln.Addr().String(),
			"region", cfg.Region,
			"identity_endpoint", cfg.IdentityEndpoint,
			"callback_url", driver.CallbackURL(port),
		)
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Stops accepting, then waits for in-flight callbacks (and their identity calls) to finish.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// Called from run() and from smoke tests.
func buildRouter(h *callback.Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(config.RequestTimeout))

	r.Get(callback.PathPing, h.Ping)
	r.Post(callback.PathStoreToken, h.StoreToken)
	r.Get(callback.PathOAuth2Callback, h.OAuth2Callback)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
