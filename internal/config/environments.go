package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Environment is a named deployment target. The documentation origin is
// served from BaseURL; the context store from StoreURL, which defaults to
// BaseURL.
type Environment struct {
	Name     string
	BaseURL  string
	StoreURL string
}

// UnknownEnvironmentError reports a name missing from the environment table.
type UnknownEnvironmentError struct {
	Name  string
	Known []string
}

func (e *UnknownEnvironmentError) Error() string {
	return fmt.Sprintf("unknown environment %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Resolve looks up an environment by name. An empty name selects the
// configured default. Names not in the table fail with
// *UnknownEnvironmentError; there is no fallback address.
func (c Config) Resolve(name string) (Environment, error) {
	if name == "" {
		name = c.DefaultEnvironment
	}
	env, ok := c.Environments[name]
	if !ok {
		return Environment{}, &UnknownEnvironmentError{Name: name, Known: c.EnvironmentNames()}
	}
	env.Name = name
	if err := env.validate(); err != nil {
		return Environment{}, err
	}
	env.BaseURL = strings.TrimRight(env.BaseURL, "/")
	if env.StoreURL == "" {
		env.StoreURL = env.BaseURL
	}
	env.StoreURL = strings.TrimRight(env.StoreURL, "/")
	return env, nil
}

// EnvironmentNames returns the configured environment names, sorted.
func (c Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e Environment) validate() error {
	if err := checkURL(e.BaseURL); err != nil {
		return fmt.Errorf("environment %q: base_url: %w", e.Name, err)
	}
	if e.StoreURL != "" {
		if err := checkURL(e.StoreURL); err != nil {
			return fmt.Errorf("environment %q: store_url: %w", e.Name, err)
		}
	}
	return nil
}

func checkURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}
