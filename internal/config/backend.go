package config

// ConfigBackend abstracts where persisted settings live. Keys are dotted
// paths into nested tables, e.g. "store.scope".
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	// Tables returns the names of the sub-tables under key, e.g. the
	// environment names under "environments".
	Tables(key string) []string
	SetString(key, val string) error
	Delete(key string) error
}
