package main

import (
	"fmt"
	"log/slog"

	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/contextstore"
	"github.com/kalambet/ctxsync/internal/origin"
	"github.com/kalambet/ctxsync/internal/replace"
)

// app holds the clients a command needs, built from one config load.
type app struct {
	cfg    config.Config
	origin *origin.Client
	store  *contextstore.Client
	logger *slog.Logger
}

// newApp loads configuration, sets up logging and builds the platform
// clients. Every failure here is a configuration error.
func newApp(g *globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := setupLogging(g.logLevel, cfg.Log.Level); err != nil {
		return nil, err
	}
	logger := slog.Default()

	store, err := contextstore.New(cfg.Store.APIKey,
		contextstore.WithLogger(logger),
		contextstore.WithFileName(cfg.Store.FileName),
		contextstore.WithScope(cfg.Store.Scope),
		contextstore.WithUploadTimeout(cfg.Store.UploadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating context store client: %w", err)
	}

	return &app{
		cfg:    cfg,
		origin: origin.New(cfg.Origin.Path, origin.WithLogger(logger)),
		store:  store,
		logger: logger,
	}, nil
}

// environment resolves the --env flag against the loaded config.
func (a *app) environment(g *globalFlags) (config.Environment, error) {
	return a.cfg.Resolve(g.env)
}

func (a *app) replacer(policy replace.DeletePolicy) *replace.Replacer {
	return replace.New(a.cfg, a.origin, a.store, a.store.FileName(),
		replace.WithDeletePolicy(policy),
		replace.WithLogger(a.logger),
	)
}
