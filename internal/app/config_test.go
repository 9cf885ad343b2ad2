package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"

	"github.com/florianilch/vela-proxy/internal/credentials"
	"github.com/florianilch/vela-proxy/internal/upstream"
)

// defaultConfig decodes Defaults() the way the CLI does.
func defaultConfig(t *testing.T) Config {
	t.Helper()

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := defaultConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty host", mutate: func(c *Config) { c.Server.Host = "" }, wantErr: "Config.Server.Host"},
		{name: "zero port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "Config.Server.Port"},
		{name: "negative request timeout", mutate: func(c *Config) { c.Server.RequestTimeout = -time.Second }, wantErr: "Config.Server.RequestTimeout"},
		{name: "missing model", mutate: func(c *Config) { c.Upstream.Model = "" }, wantErr: "Config.Upstream.Model"},
		{name: "blank listed model", mutate: func(c *Config) { c.Models = []string{"a", ""} }, wantErr: "Config.Models[1]"},
		{name: "keyring without user", mutate: func(c *Config) {
			c.Auth.Storage = CookieStorageTypeKeyring
			c.Auth.KeyringUser = ""
		}, wantErr: "Config.Auth.KeyringUser"},
		{name: "metrics enabled without path", mutate: func(c *Config) { c.Metrics.Path = "" }, wantErr: "Config.Metrics.Path"},
		{name: "bad otlp endpoint", mutate: func(c *Config) { c.Log.OTLP.Endpoint = "not a url" }, wantErr: "Config.Log.OTLP.Endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAllowsDisabledMetrics(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Metrics.Enabled = false
	cfg.Metrics.Path = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestAuthConfig_NewCookieStore(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthConfig
		check   func(credentials.Store) bool
		wantErr bool
	}{
		{
			name:  "env",
			auth:  AuthConfig{Storage: CookieStorageTypeEnv, EnvVar: "X"},
			check: func(s credentials.Store) bool { _, ok := s.(*credentials.EnvStore); return ok },
		},
		{
			name:  "file",
			auth:  AuthConfig{Storage: CookieStorageTypeFile, File: "/tmp/cookie"},
			check: func(s credentials.Store) bool { _, ok := s.(*credentials.FileStore); return ok },
		},
		{
			name:  "keyring",
			auth:  AuthConfig{Storage: CookieStorageTypeKeyring, KeyringService: "svc", KeyringUser: "user"},
			check: func(s credentials.Store) bool { _, ok := s.(*credentials.KeyringStore); return ok },
		},
		{name: "unknown", auth: AuthConfig{Storage: "vault"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := tt.auth.NewCookieStore()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCookieStore() error = %v", err)
			}
			if !tt.check(store) {
				t.Errorf("store type = %T", store)
			}
		})
	}
}

func TestUpstreamConfig_RequestHeaders(t *testing.T) {
	u := UpstreamConfig{
		URL:     "https://chat.example.com/api/chat",
		Headers: map[string]string{"User-Agent": "custom", "X-Extra": "1"},
	}

	headers, err := u.RequestHeaders()
	if err != nil {
		t.Fatalf("RequestHeaders() error = %v", err)
	}
	if headers["User-Agent"] != "custom" {
		t.Errorf("User-Agent = %q, want configured value to win", headers["User-Agent"])
	}
	if headers["X-Extra"] != "1" {
		t.Errorf("X-Extra = %q", headers["X-Extra"])
	}
	if headers["Origin"] != "https://chat.example.com" {
		t.Errorf("Origin = %q", headers["Origin"])
	}
}

func TestUpstreamConfig_RequestHeadersLowercaseOverride(t *testing.T) {
	u := UpstreamConfig{
		URL:     "https://chat.example.com/api/chat",
		Headers: map[string]string{"user-agent": "custom", "accept-language": "fr"},
	}

	// Map iteration order varies between runs; the override must win every time.
	for range 50 {
		headers, err := u.RequestHeaders()
		if err != nil {
			t.Fatalf("RequestHeaders() error = %v", err)
		}
		if _, ok := headers["user-agent"]; ok {
			t.Fatal("lowercase key kept next to its canonical form")
		}

		var got *http.Request
		transport := upstream.NewTransport(upstream.Config{Headers: headers},
			upstream.WithBase(roundTripFunc(func(r *http.Request) (*http.Response, error) {
				got = r
				return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
			})),
		)
		req := httptest.NewRequest(http.MethodPost, u.URL, nil)
		resp, err := transport.RoundTrip(req)
		if err != nil {
			t.Fatalf("RoundTrip() error = %v", err)
		}
		_ = resp.Body.Close()

		if ua := got.Header.Get("User-Agent"); ua != "custom" {
			t.Fatalf("User-Agent = %q, want custom", ua)
		}
		if al := got.Header.Values("Accept-Language"); len(al) != 1 || al[0] != "fr" {
			t.Fatalf("Accept-Language = %q, want [fr]", al)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
