package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/ctxsync/internal/api"
	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/replace"
)

// --- replace ---

func newReplaceCmd(g *globalFlags) *cobra.Command {
	var abortOnDelete bool

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace the registered OpenAPI document with a fresh copy",
		Long: `Replace the registered OpenAPI document with a fresh copy.

Checks the context store for an existing registration while fetching the
document, deletes the old registration if there is one, then uploads.
If the origin has no document nothing is uploaded; an old registration
is still deleted.

Exit status is 0 when the document was replaced or there was nothing to do,
and 1 when the run failed.

Examples:
  ctxsync replace
  ctxsync replace --env staging
  ctxsync replace --abort-on-delete-failure`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplace(cmd, g, abortOnDelete)
		},
	}
	cmd.Flags().BoolVar(&abortOnDelete, "abort-on-delete-failure", false, "do not upload if the old registration could not be deleted")
	return cmd
}

func runReplace(cmd *cobra.Command, g *globalFlags, abortOnDelete bool) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}

	policy := replace.ContinueOnDeleteFailure
	if abortOnDelete {
		policy = replace.AbortOnDeleteFailure
	}

	rep := a.replacer(policy).Run(cmd.Context(), g.env)
	printReport(rep)
	if rep.Result == replace.Failure {
		return errReplaceFailed
	}
	return nil
}

// --- check ---

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the OpenAPI document is registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			env, err := a.environment(g)
			if err != nil {
				return err
			}

			exists, err := a.store.Exists(cmd.Context(), env, a.store.FileName())
			if err != nil {
				return fmt.Errorf("checking %s: %w", env.Name, err)
			}

			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is registered in %s\n", a.store.FileName(), env.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not registered in %s\n", a.store.FileName(), env.Name)
			}
			return nil
		},
	}
}

// --- fetch ---

func newFetchCmd(g *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the OpenAPI document without touching the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			env, err := a.environment(g)
			if err != nil {
				return err
			}

			printStep("Fetching %s", a.origin.URL(env))
			doc, err := a.origin.Fetch(cmd.Context(), env)
			if err != nil {
				return fmt.Errorf("fetching document: %w", err)
			}
			if doc.Empty() {
				return errors.New("origin returned an empty document")
			}

			body, err := doc.Serialize()
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), body)
				return nil
			}
			if err := os.WriteFile(output, []byte(body+"\n"), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			printSuccess("Wrote %s (%d paths)", output, doc.PathCount())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")
	return cmd
}

// --- envs ---

func newEnvsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "envs",
		Short: "List configured environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range a.cfg.EnvironmentNames() {
				env, err := a.cfg.Resolve(name)
				if err != nil {
					printWarning("%s: %v", name, err)
					continue
				}
				marker := " "
				if name == a.cfg.DefaultEnvironment {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s", marker, colorize(colorBold, env.Name), env.BaseURL)
				if env.StoreURL != env.BaseURL {
					fmt.Fprintf(out, "  (store: %s)", env.StoreURL)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// --- config ---

func newConfigCmd(g *globalFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}

			for _, k := range config.ShowAll(cfg) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
			}
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a configuration value in the config file.\n\nKeys:\n  " +
			strings.Join(config.ValidKeys(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			if err := config.SetKey(g.configPath, key, value); err != nil {
				return err
			}

			printSuccess("Set %s = %s", key, value)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value so the default applies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.UnsetKey(g.configPath, args[0]); err != nil {
				return err
			}

			printSuccess("Unset %s", args[0])
			return nil
		},
	})

	return configCmd
}

// --- mcp ---

func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the replace and check operations over MCP (stdio)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}

			defaultEnv := g.env
			if defaultEnv == "" {
				defaultEnv = a.cfg.DefaultEnvironment
			}

			mcpSrv := api.NewMCPServer(api.MCPDeps{
				Replacer:           a.replacer(replace.ContinueOnDeleteFailure),
				Store:              a.store,
				Envs:               a.cfg,
				FileName:           a.store.FileName(),
				DefaultEnvironment: defaultEnv,
				Version:            version,
			})

			slog.Info("MCP server started (stdio transport)", "default_environment", defaultEnv)
			stdioSrv := server.NewStdioServer(mcpSrv)
			if err := stdioSrv.Listen(cmd.Context(), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		},
	}
}
