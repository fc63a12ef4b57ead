package config

import (
	"fmt"
	"os"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "default_environment", typ: kString, env: "CTXSYNC_ENVIRONMENT",
		apply:   func(cfg *Config, v any) { cfg.DefaultEnvironment = v.(string) },
		extract: func(cfg Config) any { return cfg.DefaultEnvironment },
	},
	{
		key: "origin.path", typ: kString, env: "CTXSYNC_ORIGIN_PATH",
		apply:   func(cfg *Config, v any) { cfg.Origin.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Origin.Path },
	},
	{
		key: "store.api_key", typ: kString, env: "PLATFORM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Store.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.APIKey },
	},
	{
		key: "store.file_name", typ: kString, env: "CTXSYNC_STORE_FILE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Store.FileName = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.FileName },
	},
	{
		key: "store.scope", typ: kString, env: "CTXSYNC_STORE_SCOPE",
		apply:   func(cfg *Config, v any) { cfg.Store.Scope = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Scope },
	},
	{
		key: "store.upload_timeout", typ: kDuration, env: "CTXSYNC_STORE_UPLOAD_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Store.UploadTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Store.UploadTimeout },
	},
	{
		key: "log.level", typ: kString, env: "CTXSYNC_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// The API key is the one secret that may live in the file; it is still
// hidden from ShowAll and cannot be written with SetKey.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		v, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || v == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, v)
		case kDuration:
			d, err := parseTimeout(v)
			if err != nil {
				return fmt.Errorf("config key %s: %w", s.key, err)
			}
			s.apply(cfg, d)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kDuration:
			if d, err := parseTimeout(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

func parseTimeout(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}
