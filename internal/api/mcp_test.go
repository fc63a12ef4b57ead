package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/replace"
)

// --- mocks ---

type mockMCPReplacer struct {
	report replace.Report
	envs   []string
}

func (m *mockMCPReplacer) Run(_ context.Context, envName string) replace.Report {
	m.envs = append(m.envs, envName)
	rep := m.report
	rep.Environment = envName
	return rep
}

type mockMCPChecker struct {
	exists    bool
	err       error
	fragments []string
}

func (m *mockMCPChecker) Exists(_ context.Context, _ config.Environment, fragment string) (bool, error) {
	m.fragments = append(m.fragments, fragment)
	return m.exists, m.err
}

type mockMCPEnvs map[string]config.Environment

func (m mockMCPEnvs) Resolve(name string) (config.Environment, error) {
	if name == "" {
		name = "main"
	}
	env, ok := m[name]
	if !ok {
		return config.Environment{}, &config.UnknownEnvironmentError{Name: name, Known: m.EnvironmentNames()}
	}
	return env, nil
}

func (m mockMCPEnvs) EnvironmentNames() []string {
	return []string{"main", "staging"}
}

// --- helpers ---

func newTestMCPDeps() (MCPDeps, *mockMCPReplacer, *mockMCPChecker) {
	r := &mockMCPReplacer{report: replace.Report{
		Result:       replace.Success,
		InvocationID: "inv-1",
		Existed:      true,
		Deleted:      true,
		Uploaded:     true,
		PathCount:    12,
		Duration:     1500 * time.Millisecond,
	}}
	c := &mockMCPChecker{exists: true}
	envs := mockMCPEnvs{
		"main":    {Name: "main", BaseURL: "https://api.example.com", StoreURL: "https://api.example.com"},
		"staging": {Name: "staging", BaseURL: "https://dev.example.com", StoreURL: "https://store.dev.example.com"},
	}
	return MCPDeps{
		Replacer:           r,
		Store:              c,
		Envs:               envs,
		FileName:           "openapi.json",
		DefaultEnvironment: "main",
	}, r, c
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_ReplaceContext_Success(t *testing.T) {
	deps, r, _ := newTestMCPDeps()
	handler := mcpReplaceContext(deps)

	result, err := handler(context.Background(), makeCallToolRequest("replace_context", map[string]interface{}{
		"environment": "staging",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var got replaceSummary
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Result != "success" || got.Environment != "staging" || got.Paths != 12 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if got.DurationMS != 1500 {
		t.Fatalf("expected duration 1500ms, got %d", got.DurationMS)
	}
	if len(r.envs) != 1 || r.envs[0] != "staging" {
		t.Fatalf("expected one run against staging, got %v", r.envs)
	}
}

func TestMCPTool_ReplaceContext_DefaultsEnvironment(t *testing.T) {
	deps, r, _ := newTestMCPDeps()
	handler := mcpReplaceContext(deps)

	if _, err := handler(context.Background(), makeCallToolRequest("replace_context", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.envs) != 1 || r.envs[0] != "main" {
		t.Fatalf("expected run against main, got %v", r.envs)
	}
}

func TestMCPTool_ReplaceContext_NoOpIsNotError(t *testing.T) {
	deps, r, _ := newTestMCPDeps()
	r.report = replace.Report{Result: replace.NoOp, FetchErr: errors.New("unexpected status 404")}
	handler := mcpReplaceContext(deps)

	result, err := handler(context.Background(), makeCallToolRequest("replace_context", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("no-op should not be reported as a tool error")
	}
	text := toolText(t, result)
	if !strings.Contains(text, `"no-op"`) || !strings.Contains(text, "404") {
		t.Fatalf("expected no-op with fetch warning, got: %s", text)
	}
}

func TestMCPTool_ReplaceContext_Failure(t *testing.T) {
	deps, r, _ := newTestMCPDeps()
	r.report = replace.Report{Result: replace.Failure, Err: errors.New("unexpected status 413")}
	handler := mcpReplaceContext(deps)

	result, err := handler(context.Background(), makeCallToolRequest("replace_context", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for failed replace")
	}
	if !strings.Contains(toolText(t, result), "413") {
		t.Fatalf("expected cause in response, got: %s", toolText(t, result))
	}
}

func TestMCPTool_CheckContext(t *testing.T) {
	deps, _, c := newTestMCPDeps()
	handler := mcpCheckContext(deps)

	result, err := handler(context.Background(), makeCallToolRequest("check_context", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got["exists"] != true || got["environment"] != "main" || got["file_name"] != "openapi.json" {
		t.Fatalf("unexpected response: %v", got)
	}
	if len(c.fragments) != 1 || c.fragments[0] != "openapi.json" {
		t.Fatalf("expected check for openapi.json, got %v", c.fragments)
	}
}

func TestMCPTool_CheckContext_UnknownEnvironment(t *testing.T) {
	deps, _, c := newTestMCPDeps()
	handler := mcpCheckContext(deps)

	result, err := handler(context.Background(), makeCallToolRequest("check_context", map[string]interface{}{
		"environment": "prod",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown environment")
	}
	if len(c.fragments) != 0 {
		t.Fatal("store should not be queried for an unknown environment")
	}
}

func TestMCPTool_CheckContext_StoreError(t *testing.T) {
	deps, _, c := newTestMCPDeps()
	c.err = errors.New("unexpected status 503")
	handler := mcpCheckContext(deps)

	result, err := handler(context.Background(), makeCallToolRequest("check_context", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error when the store check fails")
	}
}

func TestMCPResource_Environments(t *testing.T) {
	deps, _, _ := newTestMCPDeps()
	handler := mcpResourceEnvironments(deps)

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "ctxsync://environments"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var envs []struct {
		Name     string `json:"name"`
		StoreURL string `json:"store_url"`
		Default  bool   `json:"default"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &envs); err != nil {
		t.Fatalf("failed to parse environments: %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("expected 2 environments, got %d", len(envs))
	}
	if envs[0].Name != "main" || !envs[0].Default {
		t.Fatalf("expected main as default, got %+v", envs[0])
	}
	if envs[1].StoreURL != "https://store.dev.example.com" || envs[1].Default {
		t.Fatalf("unexpected staging entry: %+v", envs[1])
	}
}

func TestNewMCPServer_Registers(t *testing.T) {
	deps, _, _ := newTestMCPDeps()
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("expected server")
	}
}
