package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flamingcow/layerlint/internal/config"
	"github.com/flamingcow/layerlint/internal/errors"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}

	// stdout carries the protocol; logs go to stderr.
	logger := cfg.Logger(os.Stderr)

	l, err := newLinter(cfg, logger)
	if err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}

	if err := server.ServeStdio(newServer(l)); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newServer(l *linter) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"layerlint",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	// Define the lint_layers tool
	lintLayersTool := mcp.NewTool("lint_layers",
		mcp.WithDescription("Check every import of a Python project against its layer dependency rules"),
		mcp.WithString("dir",
			mcp.Description("Project root to lint (default: current directory)"),
		),
		mcp.WithString("policy",
			mcp.Description("Path to a YAML layer policy (default: configured or built-in policy)"),
		),
	)
	mcpServer.AddTool(lintLayersTool, l.lintLayersHandler)

	// Define the find_imports tool
	findImportsTool := mcp.NewTool("find_imports",
		mcp.WithDescription("List the imports of every Python file with its layer, guard and policy verdict"),
		mcp.WithString("dir",
			mcp.Description("Project root to search (default: current directory)"),
		),
	)
	mcpServer.AddTool(findImportsTool, l.findImportsHandler)

	// Define the list_layers tool
	listLayersTool := mcp.NewTool("list_layers",
		mcp.WithDescription("List the files of each layer and the files that belong to no layer"),
		mcp.WithString("dir",
			mcp.Description("Project root to search (default: current directory)"),
		),
	)
	mcpServer.AddTool(listLayersTool, l.listLayersHandler)

	// Define the analyze_dependencies tool
	analyzeDependenciesTool := mcp.NewTool("analyze_dependencies",
		mcp.WithDescription("Build the observed layer-to-layer import graph and report cycles"),
		mcp.WithString("dir",
			mcp.Description("Project root to analyze (default: current directory)"),
		),
	)
	mcpServer.AddTool(analyzeDependenciesTool, l.analyzeDependenciesHandler)

	// Define the analyze_coupling tool
	analyzeCouplingTool := mcp.NewTool("analyze_coupling",
		mcp.WithDescription("Compute afferent and efferent coupling and instability per layer"),
		mcp.WithString("dir",
			mcp.Description("Project root to analyze (default: current directory)"),
		),
	)
	mcpServer.AddTool(analyzeCouplingTool, l.analyzeCouplingHandler)

	// Define the analyze_architecture tool
	analyzeArchitectureTool := mcp.NewTool("analyze_architecture",
		mcp.WithDescription("Compare the layer policy with the observed imports and suggest fixes"),
		mcp.WithString("dir",
			mcp.Description("Project root to analyze (default: current directory)"),
		),
	)
	mcpServer.AddTool(analyzeArchitectureTool, l.analyzeArchitectureHandler)

	// Define the lint_metrics tool
	lintMetricsTool := mcp.NewTool("lint_metrics",
		mcp.WithDescription("Report scan counters in Prometheus text format"),
	)
	mcpServer.AddTool(lintMetricsTool, l.lintMetricsHandler)

	return mcpServer
}

func (l *linter) lintLayersHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("dir", "./")
	policy := request.GetString("policy", "")

	result, err := l.lintLayers(ctx, dir, policy)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to lint layers: %v", err)), nil
	}

	jsonData, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal lint result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (l *linter) findImportsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("dir", "./")

	imports, err := l.findImports(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to find imports: %v", err)), nil
	}

	jsonData, err := json.Marshal(imports)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal imports: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (l *linter) listLayersHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("dir", "./")

	listing, err := l.listLayers(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list layers: %v", err)), nil
	}

	jsonData, err := json.Marshal(listing)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal layers: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (l *linter) analyzeDependenciesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("dir", "./")

	graph, err := l.analyzeDependencies(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to analyze dependencies: %v", err)), nil
	}

	jsonData, err := json.Marshal(graph)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal dependencies: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (l *linter) analyzeCouplingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("dir", "./")

	coupling, err := l.analyzeCoupling(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to analyze coupling: %v", err)), nil
	}

	jsonData, err := json.Marshal(coupling)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal coupling: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (l *linter) analyzeArchitectureHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("dir", "./")

	arch, err := l.analyzeArchitecture(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to analyze architecture: %v", err)), nil
	}

	jsonData, err := json.Marshal(arch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal architecture: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (l *linter) lintMetricsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := l.lintMetrics()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to gather metrics: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}
