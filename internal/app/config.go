package app

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/vela-proxy/internal/credentials"
	"github.com/florianilch/vela-proxy/internal/upstream"
)

// CookieStorageType selects where the upstream session cookie is kept.
type CookieStorageType string

const (
	CookieStorageTypeEnv     CookieStorageType = "env"
	CookieStorageTypeFile    CookieStorageType = "file"
	CookieStorageTypeKeyring CookieStorageType = "keyring"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	// Models are listed by /v1/models. Empty lists the upstream model only.
	Models  []string      `koanf:"models" validate:"omitempty,dive,required"`
	Auth    AuthConfig    `koanf:"auth"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Tools   ToolsConfig   `koanf:"tools"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	MaxRequestBytes int64         `koanf:"max_request_bytes" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// RequestTimeout bounds each upstream call including its stream. Zero disables it.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gte=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UpstreamConfig configures the upstream chat service.
type UpstreamConfig struct {
	URL     string            `koanf:"url" validate:"required,http_url"`
	Model   string            `koanf:"model" validate:"required"`
	OwnedBy string            `koanf:"owned_by"`
	Headers map[string]string `koanf:"headers"`
}

// AuthConfig configures the upstream cookie storage.
type AuthConfig struct {
	Storage        CookieStorageType `koanf:"storage" validate:"oneof=env file keyring"`
	EnvVar         string            `koanf:"env_var" validate:"required_if=Storage env"`
	File           string            `koanf:"file" validate:"required_if=Storage file"`
	KeyringService string            `koanf:"keyring_service" validate:"required_if=Storage keyring"`
	KeyringUser    string            `koanf:"keyring_user" validate:"required_if=Storage keyring"`
}

// LogConfig configures logging and optional OpenTelemetry log export.
type LogConfig struct {
	Level  string     `koanf:"level" validate:"required"`
	Format string     `koanf:"format" validate:"oneof=text json"`
	OTLP   OTLPConfig `koanf:"otlp"`
}

// OTLPConfig selects the log exporter.
type OTLPConfig struct {
	Exporter string `koanf:"exporter" validate:"oneof=none http grpc stdout"`
	Endpoint string `koanf:"endpoint" validate:"omitempty,url"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required_if=Enabled true,omitempty,startswith=/"`
}

// ToolsConfig configures tool calling behaviour.
type ToolsConfig struct {
	// InjectPrompt prepends the tool catalogue as a system message.
	InjectPrompt bool `koanf:"inject_prompt"`
	// FinishReasonPerFrame sets finish_reason "tool_calls" on every tool call delta.
	FinishReasonPerFrame bool `koanf:"finish_reason_per_frame"`
}

// Defaults returns the default configuration as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"server.host":                   "127.0.0.1",
		"server.port":                   4000,
		"server.max_request_bytes":      int64(10 << 20),
		"server.shutdown_timeout":       "5s",
		"server.request_timeout":        "0s",
		"upstream.url":                  "https://movementlabs.ai/api/chat",
		"upstream.model":                "tensor-2.5",
		"upstream.owned_by":             "movementlabs",
		"auth.storage":                  string(CookieStorageTypeEnv),
		"auth.env_var":                  "VELA_UPSTREAM_COOKIE",
		"auth.keyring_service":          "vela-proxy",
		"auth.keyring_user":             "upstream-cookie",
		"log.level":                     "info",
		"log.format":                    "text",
		"log.otlp.exporter":             "none",
		"metrics.enabled":               true,
		"metrics.path":                  "/metrics",
		"tools.inject_prompt":           true,
		"tools.finish_reason_per_frame": false,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			errs := make([]error, 0, len(validationErrs))
			for _, fe := range validationErrs {
				errs = append(errs, fmt.Errorf("%s: failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %w", errors.Join(errs...))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewCookieStore creates the configured cookie store.
func (a AuthConfig) NewCookieStore() (credentials.Store, error) {
	switch a.Storage {
	case CookieStorageTypeEnv:
		return credentials.NewEnvStore(a.EnvVar), nil
	case CookieStorageTypeFile:
		return credentials.NewFileStore(a.File)
	case CookieStorageTypeKeyring:
		return credentials.NewKeyringStore(a.KeyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported cookie storage %q", a.Storage)
	}
}

// RequestHeaders returns the browser-like defaults for the upstream URL overlaid with
// the configured headers. Keys are canonicalized, so "user-agent" replaces "User-Agent".
func (u UpstreamConfig) RequestHeaders() (map[string]string, error) {
	defaults, err := upstream.DefaultHeaders(u.URL)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(defaults)+len(u.Headers))
	for k, v := range defaults {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range u.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	return headers, nil
}
