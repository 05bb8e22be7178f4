// Package mcpserver exposes the parsing pipeline and the expression archive
// as MCP tools served over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"passthru_parser/internal/passthru"
	"passthru_parser/internal/pipeline"
	"passthru_parser/internal/ptexp"
	"passthru_parser/internal/storage"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Store is the archive subset the query tools need.
type Store interface {
	Query(ctx context.Context, p storage.QueryParams) ([]storage.ExpressionRecord, error)
	GetStats(ctx context.Context) (*storage.ArchiveStats, error)
}

// Server holds the tool handlers.
type Server struct {
	engine *pipeline.Engine
	store  Store
}

// New creates the tool handlers. store may be nil, in which case the archive
// tools are not registered.
func New(engine *pipeline.Engine, store Store) *Server {
	return &Server{engine: engine, store: store}
}

// MCPServer builds the mcp-go server with every available tool registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("ptexp", Version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("parse_log",
		mcp.WithDescription("Parse a J2534 PassThru log and return the .ptExp document"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw log text")),
		mcp.WithString("source", mcp.Description("Name recorded as the set's source")),
	), s.handleParseLog)

	srv.AddTool(mcp.NewTool("trace_segment",
		mcp.WithDescription("Evaluate every pattern against one call segment and report which matched"),
		mcp.WithString("text", mcp.Required(), mcp.Description("One call through its status line")),
	), s.handleTraceSegment)

	if s.store != nil {
		srv.AddTool(mcp.NewTool("query_expressions",
			mcp.WithDescription("Search archived expressions"),
			mcp.WithString("kind", mcp.Description("Command kind, e.g. Connect or PTReadMsgs")),
			mcp.WithString("missing", mcp.Description("Only expressions missing this field")),
			mcp.WithString("query", mcp.Description("Full-text search over segment text")),
			mcp.WithBoolean("invalid_only", mcp.Description("Only expressions with an invalid field")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default 50)")),
		), s.handleQueryExpressions)

		srv.AddTool(mcp.NewTool("archive_stats",
			mcp.WithDescription("Summarize the expression archive"),
		), s.handleArchiveStats)
	}

	return srv
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleParseLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := req.GetString("source", "mcp")

	g := s.engine.NewGenerator(source, text)
	exprs := g.Generate()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", g.Stats().String())
	b.Write(ptexp.Render(exprs))
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleTraceSegment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("segment text required"), nil
	}
	return jsonResult(s.engine.Patterns().Trace(pipeline.NormalizeNewlines(text)))
}

func (s *Server) handleQueryExpressions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := storage.QueryParams{
		MissingField: req.GetString("missing", ""),
		FullText:     req.GetString("query", ""),
		InvalidOnly:  req.GetBool("invalid_only", false),
		Limit:        req.GetInt("limit", 50),
	}
	if k := req.GetString("kind", ""); k != "" {
		kind, ok := passthru.ParseKind(k)
		if !ok {
			return mcp.NewToolResultError("unknown kind: " + k), nil
		}
		p.Kind = kind.String()
	}

	records, err := s.store.Query(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if records == nil {
		records = []storage.ExpressionRecord{}
	}
	return jsonResult(records)
}

func (s *Server) handleArchiveStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
