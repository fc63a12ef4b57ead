package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// fileBackend stores config as a TOML document. Nested tables map to dotted
// keys.
type fileBackend struct {
	path string
	data map[string]any
}

// DefaultPath returns $XDG_CONFIG_HOME/ctxsync/config.toml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "ctxsync", "config.toml")
}

func newFileBackend(path string) (*fileBackend, error) {
	b := &fileBackend{path: path, data: make(map[string]any)}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

// load reads the file. A missing file is not an error; a malformed one is,
// since silently dropping a configured environment would redirect uploads.
func (b *fileBackend) load() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", b.path, err)
	}
	if err := toml.Unmarshal(data, &b.data); err != nil {
		return fmt.Errorf("parsing config file %s: %w", b.path, err)
	}
	if b.data == nil {
		b.data = make(map[string]any)
	}
	return nil
}

func (b *fileBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(b.data)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

// lookup walks the dotted key through nested tables.
func (b *fileBackend) lookup(key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = b.data
	for _, p := range parts {
		table, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = table[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// parent returns the table that holds the last segment of key, creating
// intermediate tables when create is set.
func (b *fileBackend) parent(key string, create bool) (map[string]any, string, error) {
	parts := strings.Split(key, ".")
	table := b.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := table[p]
		if !ok {
			if !create {
				return nil, "", nil
			}
			m := make(map[string]any)
			table[p] = m
			table = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("config key %s: %s is not a table", key, p)
		}
		table = m
	}
	return table, parts[len(parts)-1], nil
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return "", false, nil
	}
	switch s := v.(type) {
	case string:
		return s, true, nil
	case map[string]any:
		return "", true, fmt.Errorf("config key %s is a table, not a value", key)
	default:
		return fmt.Sprintf("%v", v), true, nil
	}
}

func (b *fileBackend) Tables(key string) []string {
	v, ok := b.lookup(key)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var names []string
	for name, sub := range m {
		if _, ok := sub.(map[string]any); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (b *fileBackend) set(key string, val any) error {
	table, leaf, err := b.parent(key, true)
	if err != nil {
		return err
	}
	table[leaf] = val
	return b.save()
}

func (b *fileBackend) SetString(key, val string) error {
	return b.set(key, val)
}

func (b *fileBackend) Delete(key string) error {
	table, leaf, err := b.parent(key, false)
	if err != nil {
		return err
	}
	if table == nil {
		return nil
	}
	delete(table, leaf)
	return b.save()
}
