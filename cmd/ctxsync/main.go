package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// errReplaceFailed marks a replace that ran but did not succeed. The details
// have already been printed.
var errReplaceFailed = errors.New("replace failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReplaceFailed) {
			printError("%v", err)
		}
		stop()
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	env        string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "ctxsync",
		Short: "Keep the platform OpenAPI document registered in the context store",
		Long: `ctxsync fetches the platform's OpenAPI document and replaces the copy
registered in the context store, so it can be retrieved as context.

Run without a subcommand to replace against the default environment.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			noColor = g.noColor || os.Getenv("NO_COLOR") != ""
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplace(cmd, g, false)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/ctxsync/config.toml)")
	pf.StringVarP(&g.env, "env", "e", "", "environment name (default: default_environment)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (default: log.level)")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newReplaceCmd(g),
		newCheckCmd(g),
		newFetchCmd(g),
		newEnvsCmd(g),
		newConfigCmd(g),
		newMCPCmd(g),
	)
	return root
}

// setupLogging installs the default slog handler on stderr. The flag wins
// over the configured level.
func setupLogging(flagLevel, cfgLevel string) error {
	raw := flagLevel
	if raw == "" {
		raw = cfgLevel
	}
	level, err := parseLevel(raw)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	if strings.TrimSpace(raw) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: use debug, info, warn or error", raw)
	}
	return level, nil
}
