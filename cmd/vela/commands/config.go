package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/vela-proxy/internal/app"
)

// envPrefix prefixes every configuration environment variable.
// Nesting uses a double underscore: VELA_UPSTREAM__URL → upstream.url.
const envPrefix = "VELA_"

// flagKeys maps CLI flags to configuration keys. Flags override all other sources
// when set explicitly.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"host":       "server.host",
	"port":       "server.port",
}

// loadConfig layers defaults, the optional TOML file, the environment and explicitly
// set flags, in increasing precedence.
func loadConfig(path string, cmd *cli.Command, environ func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(app.Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(flagOverrides(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg app.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey converts VELA_SERVER__PORT to server.port. Variables without a nesting
// separator are skipped, except the top-level models list; this keeps secrets such as
// VELA_UPSTREAM_COOKIE out of the configuration tree. Models are comma-separated.
func envKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, envPrefix))
	if key == "models" {
		models := strings.Split(v, ",")
		for i := range models {
			models[i] = strings.TrimSpace(models[i])
		}
		return key, models
	}
	if !strings.Contains(key, "__") {
		return "", nil
	}
	key = strings.ReplaceAll(key, "__", ".")
	// Header names cannot contain "-" in variable names: VELA_UPSTREAM__HEADERS__ACCEPT_LANGUAGE.
	if name, ok := strings.CutPrefix(key, headersKeyPrefix); ok {
		key = headersKeyPrefix + strings.ReplaceAll(name, "_", "-")
	}
	return key, v
}

// headersKeyPrefix is the configuration key prefix of upstream request headers.
const headersKeyPrefix = "upstream.headers."

// flagOverrides collects explicitly set flags as configuration keys.
func flagOverrides(cmd *cli.Command) map[string]any {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if !cmd.IsSet(flag) {
			continue
		}
		switch flag {
		case "port":
			overrides[key] = cmd.Int(flag)
		default:
			overrides[key] = cmd.String(flag)
		}
	}
	return overrides
}
