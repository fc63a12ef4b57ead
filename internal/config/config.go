package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	DefaultEnvironment string
	Environments       map[string]Environment
	Origin             OriginConfig
	Store              StoreConfig
	Log                LogConfig
}

type OriginConfig struct {
	// Path is appended to the environment base URL. The unversioned form is
	// the one the platform serves today.
	Path string
}

type StoreConfig struct {
	APIKey        string
	FileName      string
	Scope         string
	UploadTimeout time.Duration
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		DefaultEnvironment: "main",
		Environments: map[string]Environment{
			"staging": {Name: "staging", BaseURL: "https://platform-dev.getalchemystai.com"},
			"main":    {Name: "main", BaseURL: "https://platform-backend.getalchemystai.com"},
		},
		Origin: OriginConfig{
			Path: "/api/openapi.json",
		},
		Store: StoreConfig{
			FileName:      "openapi.json",
			Scope:         "external",
			UploadTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the TOML file at path (DefaultPath when
// empty), environment variables, and the platform secret store.
//
// The context store API key comes from the file or PLATFORM_API_KEY (the
// variable wins), falling back to the keychain (service: ctxsync, account:
// platform_api_key).
// A missing key or an unresolvable default environment is an error: there is
// no safe default for either.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	return loadFromPath(path, keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadFromPath(path string, kc keychain) (Config, error) {
	b, err := newFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b, kc)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	if err := applyEnvironments(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Store.APIKey == "" {
		if key, err := kc.Get("ctxsync", "platform_api_key"); err == nil && key != "" {
			cfg.Store.APIKey = key
		}
	}

	if cfg.Store.APIKey == "" {
		msg := "missing required config: context store API key. " +
			"Set it via environment variable PLATFORM_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	if _, err := cfg.Resolve(cfg.DefaultEnvironment); err != nil {
		return Config{}, fmt.Errorf("default_environment: %w", err)
	}

	return cfg, nil
}

// applyEnvironments merges [environments.<name>] tables over the built-in
// set. A table may override only store_url and keep the built-in base_url.
func applyEnvironments(cfg *Config, b ConfigBackend) error {
	for _, name := range b.Tables("environments") {
		env := cfg.Environments[name]
		env.Name = name

		prefix := "environments." + name + "."
		if v, ok, err := b.GetString(prefix + "base_url"); err != nil {
			return fmt.Errorf("reading %sbase_url: %w", prefix, err)
		} else if ok {
			env.BaseURL = strings.TrimSpace(v)
		}
		if v, ok, err := b.GetString(prefix + "store_url"); err != nil {
			return fmt.Errorf("reading %sstore_url: %w", prefix, err)
		} else if ok {
			env.StoreURL = strings.TrimSpace(v)
		}

		if err := env.validate(); err != nil {
			return err
		}
		cfg.Environments[name] = env
	}
	return nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
