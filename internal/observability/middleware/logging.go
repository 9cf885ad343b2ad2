package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// Logging logs one record per HTTP request with method, path, status and duration.
// Headers other than Content-Type and Origin and all bodies are left out: request
// bodies carry user conversations and upstream responses carry model output.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		// Streams are long-lived; skip noisy probe and scrape endpoints at info level.
		Skip: func(r *http.Request, respStatus int) bool {
			return respStatus < http.StatusBadRequest && isProbePath(r.URL.Path)
		},

		RecoverPanics: false, // use dedicated middleware, panics are logged regardless
	})
}

// isProbePath reports whether path belongs to health probes or metrics scraping.
func isProbePath(path string) bool {
	switch path {
	case "/health/liveness", "/health/readiness", "/metrics":
		return true
	default:
		return false
	}
}

// SetLogAttrs sets attributes on the request log.
// No-op when the Logging middleware is not installed.
func SetLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	httplog.SetAttrs(ctx, attrs...)
}
