// Command server runs the precisionBOM API server.
//
// Configuration is loaded from a YAML file (discovered or passed via
// -config) layered with PBOM_* environment variables; see pkg/config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/precision-bom/precisionBOM/pkg/adminapi"
	"github.com/precision-bom/precisionBOM/pkg/auth"
	"github.com/precision-bom/precisionBOM/pkg/auth/apikey"
	"github.com/precision-bom/precisionBOM/pkg/auth/jwt"
	"github.com/precision-bom/precisionBOM/pkg/auth/x402"
	"github.com/precision-bom/precisionBOM/pkg/config"
	"github.com/precision-bom/precisionBOM/pkg/observability"
	"github.com/precision-bom/precisionBOM/pkg/store"
	"github.com/precision-bom/precisionBOM/pkg/store/memory"
	"github.com/precision-bom/precisionBOM/pkg/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create stores.
	clients, keys, closeStore, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Build the credential provider chain. Registration order is fixed:
	// api_key, jwt, x402.
	chainCfg := auth.ChainConfig{
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		X402Enabled:    cfg.Auth.X402Enabled,
	}

	var x402Provider *x402.Provider
	if cfg.Auth.X402Enabled {
		x402Provider = x402.New(x402.Config{
			Pricing: x402.PricingConfig{
				Network:      cfg.Auth.X402.Network,
				Recipient:    cfg.Auth.X402.PayToAddress,
				BasePrice:    cfg.Auth.X402.BasePrice,
				PerItemPrice: cfg.Auth.X402.PerItemPrice,
			},
			FacilitatorURL: cfg.Auth.X402.FacilitatorURL,
		}, clients)
		chainCfg.Challenge = x402Provider.Challenge
	}

	chain := auth.NewChain(chainCfg)
	if cfg.Auth.APIKeyEnabled {
		chain.Add(apikey.New(keys, clients))
		slog.Info("auth provider enabled", "provider", "api_key")
	}
	if cfg.Auth.JWTEnabled {
		chain.Add(jwt.New(jwt.Config{
			AllowedIssuers:  cfg.Auth.AllowedIssuers(),
			DefaultAudience: cfg.Auth.DefaultAudience,
		}, clients))
		slog.Info("auth provider enabled", "provider", "jwt", "issuers", len(cfg.Auth.OIDCProviders))
	}
	if x402Provider != nil {
		chain.Add(x402Provider)
		slog.Info("auth provider enabled", "provider", "x402", "network", cfg.Auth.X402.Network)
	}
	if cfg.Auth.AllowAnonymous {
		slog.Warn("anonymous access enabled; all requests share one identity")
	}

	// Build HTTP routes.
	mux := http.NewServeMux()
	adminapi.New(clients, keys, slog.Default()).Register(mux)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	// Wrap with middleware: recovery outermost, then request ID, metrics,
	// and authentication.
	var handler http.Handler = mux
	handler = auth.Middleware(chain, auth.DefaultBypassEndpoints)(handler)
	handler = observability.MetricsMiddleware(handler)
	handler = adminapi.RequestID(handler)
	handler = adminapi.Recovery(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "storage", cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildStores creates the configured persistence backend. The returned
// close func is a no-op for the memory store.
func buildStores(ctx context.Context, cfg *config.Config) (store.ClientStore, store.APIKeyStore, func(), error) {
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return pg, pg, func() { pg.Close() }, nil
	default:
		mem := memory.New()
		slog.Info("storage enabled", "type", "memory")
		return mem, mem, func() {}, nil
	}
}
