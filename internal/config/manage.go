package config

import (
	"fmt"
	"strings"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs followed by one
// entry per environment.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	for _, name := range cfg.EnvironmentNames() {
		env, err := cfg.Resolve(name)
		if err != nil {
			continue
		}
		result = append(result, KeyInfo{
			Key:   "environments." + name + ".base_url",
			Value: env.BaseURL,
		})
		if env.StoreURL != env.BaseURL {
			result = append(result, KeyInfo{
				Key:   "environments." + name + ".store_url",
				Value: env.StoreURL,
			})
		}
	}
	return result
}

// SetKey writes a config key to the TOML file at path.
func SetKey(path, key, value string) error {
	if err := checkWritable(key, value); err != nil {
		return err
	}
	b, err := newFileBackend(pathOrDefault(path))
	if err != nil {
		return err
	}
	return b.SetString(key, value)
}

// UnsetKey removes a key from the TOML file at path so the default applies.
func UnsetKey(path, key string) error {
	if !isValidKey(key) {
		return fmt.Errorf("unknown config key: %q", key)
	}
	b, err := newFileBackend(pathOrDefault(path))
	if err != nil {
		return err
	}
	return b.Delete(key)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return append(keys, "environments.<name>.base_url", "environments.<name>.store_url")
}

func checkWritable(key, value string) error {
	if name, field, ok := environmentKey(key); ok {
		env := Environment{Name: name}
		if field == "base_url" {
			env.BaseURL = value
		} else {
			env.BaseURL = "https://placeholder"
			env.StoreURL = value
		}
		return env.validate()
	}

	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		if s.typ == kDuration {
			if _, err := parseTimeout(value); err != nil {
				return fmt.Errorf("invalid duration value for %s: %w", key, err)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown config key: %q", key)
}

func isValidKey(key string) bool {
	if _, _, ok := environmentKey(key); ok {
		return true
	}
	for _, s := range specs {
		if s.key == key {
			return true
		}
	}
	return false
}

// environmentKey splits "environments.<name>.<field>".
func environmentKey(key string) (name, field string, ok bool) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] != "environments" || parts[1] == "" {
		return "", "", false
	}
	if parts[2] != "base_url" && parts[2] != "store_url" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func pathOrDefault(path string) string {
	if path == "" {
		return DefaultPath()
	}
	return path
}
