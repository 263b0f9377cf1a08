package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

const recentSummaries = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Reports   Reporter
	Summaries SummaryReader // optional; the history resource is omitted without it
	Version   string
}

// NewMCPServer creates an MCP server exposing the field-report store and
// report generation to MCP clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"bouwbuddy",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bouwbuddy: field-work reports submitted by crews over Telegram, with daily and weekly summaries."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_reports",
			mcp.WithDescription("List the field reports submitted today (daily) or in the last seven days (weekly)."),
			mcp.WithString("window", mcp.Description("daily or weekly (default daily)")),
		),
		mcpListReports(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_report",
			mcp.WithDescription("Generate the daily or weekly summary report from the submitted field reports."),
			mcp.WithString("window", mcp.Description("daily or weekly"), mcp.Required()),
		),
		mcpGenerateReport(deps),
	)

	if deps.Summaries != nil {
		s.AddResource(
			mcp.NewResource(
				"reports://summaries",
				"Recent Summaries",
				mcp.WithResourceDescription("Last 10 generated summary reports"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceSummaries(deps),
		)
	}

	return s
}

func mcpListReports(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		win, err := fieldreport.ParseWindow(req.GetString("window", string(fieldreport.WindowDaily)))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		_, recs, err := deps.Reports.Records(ctx, win)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to query reports: %v", err)), nil
		}
		if len(recs) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(recs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reports: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("window")
		if err != nil {
			return mcpError("window is required"), nil
		}
		win, err := fieldreport.ParseWindow(raw)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		res := deps.Reports.Generate(ctx, win)
		switch res.Outcome {
		case aggregate.EmptyWindow:
			return mcpText(fmt.Sprintf("No reports submitted in the %s window.", win)), nil
		case aggregate.GenerationFailure:
			return mcpError(fmt.Sprintf("report generation failed: %v", res.Err)), nil
		}
		return mcpText(res.Body), nil
	}
}

func mcpResourceSummaries(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sums, err := deps.Summaries.ListSummaries(ctx, recentSummaries)
		if err != nil {
			return nil, fmt.Errorf("failed to list summaries: %w", err)
		}

		b, err := json.Marshal(sums)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summaries: %w", err)
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
