package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/replace"
)

// MCPReplacer runs a replace against an environment.
type MCPReplacer interface {
	Run(ctx context.Context, envName string) replace.Report
}

// MCPChecker reports whether the managed file is registered.
type MCPChecker interface {
	Exists(ctx context.Context, env config.Environment, fragment string) (bool, error)
}

// MCPEnvironments resolves and lists the configured environments.
// config.Config satisfies it.
type MCPEnvironments interface {
	Resolve(name string) (config.Environment, error)
	EnvironmentNames() []string
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Replacer           MCPReplacer
	Store              MCPChecker
	Envs               MCPEnvironments
	FileName           string
	DefaultEnvironment string
	Version            string
}

// NewMCPServer creates an MCP server with the ctxsync tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"ctxsync",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ctxsync keeps the platform API schema registered in the context store up to date."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("replace_context",
			mcp.WithDescription("Fetch the current OpenAPI document and replace the copy registered in the context store."),
			mcp.WithString("environment", mcp.Description("Environment name (defaults to the configured default)")),
		),
		mcpReplaceContext(deps),
	)

	s.AddTool(
		mcp.NewTool("check_context",
			mcp.WithDescription("Report whether the OpenAPI document is currently registered in the context store."),
			mcp.WithString("environment", mcp.Description("Environment name (defaults to the configured default)")),
		),
		mcpCheckContext(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"ctxsync://environments",
			"Environments",
			mcp.WithResourceDescription("Configured environments and their endpoints"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceEnvironments(deps),
	)

	return s
}

type replaceSummary struct {
	Result       string   `json:"result"`
	Environment  string   `json:"environment,omitempty"`
	InvocationID string   `json:"invocation_id"`
	Existed      bool     `json:"existed"`
	Deleted      bool     `json:"deleted"`
	Uploaded     bool     `json:"uploaded"`
	Paths        int      `json:"paths"`
	DurationMS   int64    `json:"duration_ms"`
	Warnings     []string `json:"warnings,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func summarize(rep replace.Report) replaceSummary {
	s := replaceSummary{
		Result:       rep.Result.String(),
		Environment:  rep.Environment,
		InvocationID: rep.InvocationID,
		Existed:      rep.Existed,
		Deleted:      rep.Deleted,
		Uploaded:     rep.Uploaded,
		Paths:        rep.PathCount,
		DurationMS:   rep.Duration.Milliseconds(),
	}
	if rep.CheckErr != nil {
		s.Warnings = append(s.Warnings, "check failed: "+rep.CheckErr.Error())
	}
	if rep.DeleteErr != nil {
		s.Warnings = append(s.Warnings, "delete failed: "+rep.DeleteErr.Error())
	}
	if rep.FetchErr != nil {
		s.Warnings = append(s.Warnings, "no document: "+rep.FetchErr.Error())
	}
	if rep.Err != nil {
		s.Error = rep.Err.Error()
	}
	return s
}

func mcpReplaceContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		envName := req.GetString("environment", deps.DefaultEnvironment)

		rep := deps.Replacer.Run(ctx, envName)

		b, err := json.Marshal(summarize(rep))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		if rep.Result == replace.Failure {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCheckContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env, err := deps.Envs.Resolve(req.GetString("environment", deps.DefaultEnvironment))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		exists, err := deps.Store.Exists(ctx, env, deps.FileName)
		if err != nil {
			return mcpError(fmt.Sprintf("check failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"environment": env.Name,
			"file_name":   deps.FileName,
			"exists":      exists,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceEnvironments(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type envEntry struct {
			Name     string `json:"name"`
			BaseURL  string `json:"base_url"`
			StoreURL string `json:"store_url"`
			Default  bool   `json:"default"`
		}

		names := deps.Envs.EnvironmentNames()
		entries := make([]envEntry, 0, len(names))
		for _, name := range names {
			env, err := deps.Envs.Resolve(name)
			if err != nil {
				return nil, fmt.Errorf("resolving environment %q: %w", name, err)
			}
			entries = append(entries, envEntry{
				Name:     env.Name,
				BaseURL:  env.BaseURL,
				StoreURL: env.StoreURL,
				Default:  name == deps.DefaultEnvironment,
			})
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal environments: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
