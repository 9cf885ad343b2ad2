package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/vela-proxy/internal/metrics"
	"github.com/florianilch/vela-proxy/internal/proxy"
)

// App orchestrates the lifecycle of the proxy server.
type App struct {
	cfg    Config
	health *Health
	proxy  *proxy.Proxy
}

// New creates a new App instance from a validated configuration.
func New(cfg Config, opts ...proxy.Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cookies, err := cfg.Auth.NewCookieStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie store: %w", err)
	}

	headers, err := cfg.Upstream.RequestHeaders()
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream headers: %w", err)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
		opts = append([]proxy.Option{proxy.WithMetrics(metrics.NewCollector(nil))}, opts...)
	}

	health := NewHealth()

	proxyServer, err := proxy.New(proxy.Config{
		UpstreamURL:          cfg.Upstream.URL,
		UpstreamModel:        cfg.Upstream.Model,
		OwnedBy:              cfg.Upstream.OwnedBy,
		Models:               cfg.Models,
		Headers:              headers,
		Cookies:              cookies,
		MaxRequestBytes:      cfg.Server.MaxRequestBytes,
		RequestTimeout:       cfg.Server.RequestTimeout,
		ToolPrompt:           cfg.Tools.InjectPrompt,
		FinishReasonPerFrame: cfg.Tools.FinishReasonPerFrame,
		MetricsPath:          metricsPath,
	}, health, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:    cfg,
		health: health,
		proxy:  proxyServer,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server")
	proxyErrCh, err := a.proxy.Start(gCtx, a.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)
	a.health.SetReady(true)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()

	a.health.SetReady(false)
	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
