package commands

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/vela-proxy/internal/app"
)

func environOf(vars ...string) func() []string {
	return func() []string { return vars }
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vela.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", nil, environOf())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:4000" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Upstream.Model != "tensor-2.5" {
		t.Errorf("Upstream.Model = %q", cfg.Upstream.Model)
	}
	if cfg.Auth.Storage != app.CookieStorageTypeEnv || cfg.Auth.EnvVar != "VELA_UPSTREAM_COOKIE" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if !cfg.Tools.InjectPrompt || cfg.Tools.FinishReasonPerFrame {
		t.Errorf("Tools = %+v", cfg.Tools)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
models = ["tensor-2.5", "tensor-2.5-mini"]

[server]
port = 5000
shutdown_timeout = "10s"
request_timeout = "2m"

[upstream]
url = "https://chat.example.com/api/chat"

[upstream.headers]
X-Client = "vela"

[auth]
storage = "file"
file = "/tmp/vela-cookie"

[tools]
finish_reason_per_frame = true
`)

	cfg, err := loadConfig(path, nil, environOf(
		"VELA_SERVER__PORT=6000",
		"VELA_LOG__FORMAT=json",
		"VELA_UPSTREAM_COOKIE=secret",
		"UNRELATED=1",
	))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Port = %d, want environment to override file", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second || cfg.Server.RequestTimeout != 2*time.Minute {
		t.Errorf("timeouts = %v / %v", cfg.Server.ShutdownTimeout, cfg.Server.RequestTimeout)
	}
	if cfg.Upstream.URL != "https://chat.example.com/api/chat" {
		t.Errorf("Upstream.URL = %q", cfg.Upstream.URL)
	}
	if cfg.Upstream.Model != "tensor-2.5" {
		t.Errorf("Upstream.Model = %q, want default kept", cfg.Upstream.Model)
	}
	if cfg.Upstream.Headers["X-Client"] != "vela" {
		t.Errorf("Upstream.Headers = %v", cfg.Upstream.Headers)
	}
	if !slices.Equal(cfg.Models, []string{"tensor-2.5", "tensor-2.5-mini"}) {
		t.Errorf("Models = %v", cfg.Models)
	}
	if cfg.Auth.Storage != app.CookieStorageTypeFile || cfg.Auth.File != "/tmp/vela-cookie" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
	if !cfg.Tools.FinishReasonPerFrame {
		t.Error("Tools.FinishReasonPerFrame not loaded from file")
	}
}

func TestLoadConfig_ModelsFromEnvironment(t *testing.T) {
	cfg, err := loadConfig("", nil, environOf("VELA_MODELS=a, b ,c"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if !slices.Equal(cfg.Models, []string{"a", "b", "c"}) {
		t.Errorf("Models = %q", cfg.Models)
	}
}

func TestLoadConfig_FlagsOverrideEverything(t *testing.T) {
	var cfg *app.Config
	var loadErr error

	cmd := &cli.Command{
		Name: "vela",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info"},
			&cli.StringFlag{Name: "log-format", Value: "text"},
			&cli.StringFlag{Name: "host"},
			&cli.IntFlag{Name: "port"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, loadErr = loadConfig("", cmd, environOf("VELA_SERVER__PORT=6000", "VELA_LOG__LEVEL=warn"))
			return nil
		},
	}

	if err := cmd.Run(t.Context(), []string{"vela", "--port", "7000", "--host", "0.0.0.0"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if loadErr != nil {
		t.Fatalf("loadConfig() error = %v", loadErr)
	}

	if cfg.Server.Addr() != "0.0.0.0:7000" {
		t.Errorf("Addr() = %q, want flags to win", cfg.Server.Addr())
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want unset flag default not to override environment", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		environ []string
	}{
		{name: "port out of range", environ: []string{"VELA_SERVER__PORT=70000"}},
		{name: "unknown log format", environ: []string{"VELA_LOG__FORMAT=xml"}},
		{name: "relative upstream url", environ: []string{"VELA_UPSTREAM__URL=/api/chat"}},
		{name: "unknown storage", environ: []string{"VELA_AUTH__STORAGE=vault"}},
		{name: "file storage without path", environ: []string{"VELA_AUTH__STORAGE=file"}},
		{name: "metrics path without slash", environ: []string{"VELA_METRICS__PATH=metrics"}},
		{name: "unknown exporter", environ: []string{"VELA_LOG__OTLP__EXPORTER=zipkin"}},
		{name: "malformed toml", file: "[server\nport = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}
			if _, err := loadConfig(path, nil, environOf(tt.environ...)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, environOf()); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfig_HeadersFromEnvironment(t *testing.T) {
	cfg, err := loadConfig("", nil, environOf(
		"VELA_UPSTREAM__HEADERS__USER_AGENT=vela-test",
		"VELA_UPSTREAM__HEADERS__ACCEPT_LANGUAGE=de-DE",
	))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	headers, err := cfg.Upstream.RequestHeaders()
	if err != nil {
		t.Fatalf("RequestHeaders() error = %v", err)
	}
	if headers["User-Agent"] != "vela-test" {
		t.Errorf("User-Agent = %q, want vela-test", headers["User-Agent"])
	}
	if headers["Accept-Language"] != "de-DE" {
		t.Errorf("Accept-Language = %q, want de-DE", headers["Accept-Language"])
	}
	for k := range headers {
		if k != http.CanonicalHeaderKey(k) {
			t.Errorf("header key %q is not canonical", k)
		}
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in      string
		wantKey string
	}{
		{in: "VELA_SERVER__PORT", wantKey: "server.port"},
		{in: "VELA_LOG__OTLP__ENDPOINT", wantKey: "log.otlp.endpoint"},
		{in: "VELA_UPSTREAM__OWNED_BY", wantKey: "upstream.owned_by"},
		{in: "VELA_UPSTREAM_COOKIE", wantKey: ""},
		{in: "VELA_CONFIG", wantKey: ""},
		{in: "VELA_MODELS", wantKey: "models"},
		{in: "VELA_UPSTREAM__HEADERS__ACCEPT_LANGUAGE", wantKey: "upstream.headers.accept-language"},
		{in: "VELA_UPSTREAM__HEADERS__X_CLIENT", wantKey: "upstream.headers.x-client"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got, _ := envKey(tt.in, "v"); got != tt.wantKey {
				t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.wantKey)
			}
		})
	}
}
