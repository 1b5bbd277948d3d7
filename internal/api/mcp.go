package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	mcpSearchDefault   = 2
	mcpSearchMax       = 20
	mcpResourceEntries = 500
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Assistant Assistant
	Catalog   CatalogReader // optional; without it the records resource is empty
	Version   string
}

// NewMCPServer creates an MCP server exposing the catalog assistant.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"artisan",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("artisan answers questions about a catalog of Moroccan handicrafts (painting, calligraphy, pottery, ceramics) using only catalog facts."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_catalog",
			mcp.WithDescription("Ask a question about the handicraft catalog. Returns a Markdown answer grounded in the catalog."),
			mcp.WithString("question", mcp.Description("Question in natural language, French preferred"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_catalog",
			mcp.WithDescription("Return the catalog entries most similar to a query, with similarity scores."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum number of results (default %d, max %d)", mcpSearchDefault, mcpSearchMax))),
		),
		mcpSearch(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://records",
			"Catalog Records",
			mcp.WithResourceDescription("Normalized catalog records as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecords(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		if !deps.Assistant.Ready() {
			return mcpError(deps.Assistant.Answer(ctx, question).Text), nil
		}

		slog.Debug("mcp ask", "question_len", len(question))
		resp := deps.Assistant.Answer(ctx, question)
		return mcpText(resp.Text), nil
	}
}

type searchResult struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference"`
	Name      string  `json:"name"`
	Score     float32 `json:"score"`
	Text      string  `json:"text"`
}

func mcpSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", mcpSearchDefault)
		if limit <= 0 {
			limit = mcpSearchDefault
		}
		if limit > mcpSearchMax {
			limit = mcpSearchMax
		}

		slog.Debug("mcp search", "limit", limit)

		docs, err := deps.Assistant.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(docs) == 0 {
			return mcpText("[]"), nil
		}

		results := make([]searchResult, len(docs))
		for i, d := range docs {
			results[i] = searchResult{
				ID:        d.ID,
				Reference: d.Record.Reference,
				Name:      d.Record.Name,
				Score:     d.Score,
				Text:      d.Text,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecords(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries := []catalogEntry{}
		if deps.Catalog != nil {
			stored, err := deps.Catalog.ListEntries(ctx, mcpResourceEntries, 0)
			if err != nil {
				return nil, fmt.Errorf("failed to list catalog: %w", err)
			}
			for _, e := range stored {
				entries = append(entries, toCatalogEntry(e))
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
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
