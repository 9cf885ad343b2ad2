package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/vela-proxy/internal/metrics"
	"github.com/florianilch/vela-proxy/internal/observability/middleware"
	"github.com/florianilch/vela-proxy/internal/openaiadapter/datastream"
	"github.com/florianilch/vela-proxy/internal/upstream"
)

// ReadinessChecker reports whether the application can serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Config is the explicit configuration of the proxy. Upstream headers and credentials
// are part of it; nothing is read from package state.
type Config struct {
	UpstreamURL   string
	UpstreamModel string
	// OwnedBy is reported for every listed model.
	OwnedBy string
	// Models are the names listed by /v1/models.
	Models []string
	// Headers are sent on every upstream request.
	Headers map[string]string
	// Cookies supplies the upstream session cookie.
	Cookies upstream.CookieSource
	// MaxRequestBytes bounds inbound request bodies.
	MaxRequestBytes int64
	// RequestTimeout bounds each upstream call including its stream. Zero disables it.
	RequestTimeout time.Duration
	// ToolPrompt prepends the tool catalogue to upstream requests.
	ToolPrompt bool
	// FinishReasonPerFrame sets finish_reason on every tool call delta.
	FinishReasonPerFrame bool
	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string
}

// Proxy serves the OpenAI-compatible API in front of the upstream.
type Proxy struct {
	handler http.Handler
	server  *http.Server
}

// Compile-time check to ensure Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

type options struct {
	transport http.RoundTripper
	collector *metrics.Collector
	clock     func() time.Time
	logger    *slog.Logger
	adapter   []datastream.Option
}

// Option configures a Proxy.
type Option func(*options)

// WithTransport sets the base transport for upstream calls. Upstream headers and
// cookies are still added on top of it.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithMetrics records stream metrics into collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) {
		o.collector = collector
	}
}

// WithClock sets the time source for model listings and chunk timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
		o.adapter = append(o.adapter, datastream.WithClock(clock))
	}
}

// WithAdapterOptions passes options to the chat completion adapter.
func WithAdapterOptions(opts ...datastream.Option) Option {
	return func(o *options) {
		o.adapter = append(o.adapter, opts...)
	}
}

// WithLogger sets the logger used for request logging. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Proxy.
func New(cfg Config, health ReadinessChecker, opts ...Option) (*Proxy, error) {
	if health == nil {
		return nil, errors.New("readiness checker cannot be nil")
	}

	o := options{
		transport: http.DefaultTransport,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	adapterOpts := []datastream.Option{
		datastream.WithToolPrompt(cfg.ToolPrompt),
		datastream.WithFinishReasonPerFrame(cfg.FinishReasonPerFrame),
	}
	if o.collector != nil {
		adapterOpts = append(adapterOpts, datastream.WithRecorder(o.collector))
	}
	adapterOpts = append(adapterOpts, o.adapter...)

	adapter, err := datastream.NewCreateChatCompletionAdapter(cfg.UpstreamURL, cfg.UpstreamModel, adapterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	transport := upstream.NewTransport(upstream.Config{
		Headers: cfg.Headers,
		Cookies: cfg.Cookies,
	}, upstream.WithBase(o.transport))

	models := cfg.Models
	if len(models) == 0 {
		models = []string{cfg.UpstreamModel}
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", &CreateChatCompletionsHandler{
		Adapter:        adapter,
		Transport:      transport,
		Validate:       validator.New(validator.WithRequiredStructEnabled()),
		RequestTimeout: cfg.RequestTimeout,
	})
	mux.Handle("GET /v1/models", modelsHandler(models, cfg.OwnedBy, o.clock))
	mux.Handle("GET /health/liveness", livenessHandler())
	mux.Handle("GET /health/readiness", readinessHandler(health))
	if cfg.MetricsPath != "" && o.collector != nil {
		mux.Handle("GET "+cfg.MetricsPath, o.collector.Handler())
	}
	mux.Handle("/", notFoundHandler())

	maxBytes := cfg.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	// The first middleware is the outermost
	handler := applyMiddlewares(mux,
		middleware.Logging(o.logger),
		middleware.TraceContext,
		middleware.RequestID,
		CORS,
		Recovery,
		RequestSizeLimit(maxBytes),
	)

	return &Proxy{
		handler: handler,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// WriteTimeout stays 0: streams last as long as the upstream turn.
		},
	}, nil
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background. Listen errors are returned
// directly; serve errors are delivered on the returned channel.
func (p *Proxy) Start(ctx context.Context, addr string) (<-chan error, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	p.server.BaseContext = func(net.Listener) context.Context {
		// Detach from cancellation so in-flight requests drain during Shutdown.
		return context.WithoutCancel(ctx)
	}

	slog.InfoContext(ctx, "proxy listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown gracefully stops the server.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("proxy shutdown: %w", err)
	}
	return nil
}
