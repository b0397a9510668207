// Package config loads gateway configuration from an optional config.yaml
// file overlaid with MOSAIKO_-prefixed environment variables.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Webhooks WebhookConfig  `koanf:"webhooks"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Root holds one <project_id>.json per session plus one media directory
	// per project.
	Root string `koanf:"root"`

	// AuditDB is the sqlite file recording every outbound dispatch.
	AuditDB string `koanf:"audit_db"`
}

type DispatchConfig struct {
	// Timeout bounds a single webhook call. The external stages can run for
	// minutes, so the default is generous.
	Timeout time.Duration `koanf:"timeout"`
}

// WebhookConfig is the static table of destination URLs. Stage 1 is keyed by
// media type, the downstream stages by stage name.
type WebhookConfig struct {
	Modulo1 map[string]string `koanf:"modulo1"`
	Stages  map[string]string `koanf:"stages"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml if present, then overlays environment variables.
// MOSAIKO_SERVER__PORT=9000 maps to server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing file is fine, env vars can carry the whole config.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("MOSAIKO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "MOSAIKO_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("server.port") {
		k.Set("server.port", 8198)
	}
	if !k.Exists("storage.root") {
		k.Set("storage.root", "./data/projetos")
	}
	if !k.Exists("storage.audit_db") {
		k.Set("storage.audit_db", "./data/auditoria.db")
	}
	if !k.Exists("dispatch.timeout") {
		k.Set("dispatch.timeout", "300s")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for mediaType, url := range cfg.Webhooks.Modulo1 {
		cfg.Webhooks.Modulo1[mediaType] = substituteEnvVars(url)
	}
	for stage, url := range cfg.Webhooks.Stages {
		cfg.Webhooks.Stages[stage] = substituteEnvVars(url)
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
