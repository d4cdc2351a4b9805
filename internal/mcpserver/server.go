// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala reference tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/refservice"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp *server.MCPServer
	svc *refservice.Service
}

// New creates a new MCP server with all Othala tools registered.
func New(svc *refservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the full content of a Markdown file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the file (e.g. folder/note.md)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a new Markdown file at the specified path. "+
			"Content MUST follow the canonical link format ([[wikilinks]], optional YAML "+
			"frontmatter with title and aliases). Read the contract first via the "+
			"get_link_contract tool or the othala://link-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new file (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Othala link format contract")),
	), s.createFile)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List all vault files."),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("get_references",
		mcp.WithDescription("Get the reference view of one file: its links, embeds, headings, "+
			"and blocks together with every inbound reference found for each."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to inspect")),
	), s.getReferences)

	s.mcp.AddTool(mcp.NewTool("count_references",
		mcp.WithDescription("Get reference counts per equivalence key across the whole vault."),
		mcp.WithString("min", mcp.Description("Minimum count to include (default 1)")),
	), s.countReferences)

	s.mcp.AddTool(mcp.NewTool("find_references",
		mcp.WithDescription("Find every indexed reference equivalent to a link text under the active policy."),
		mcp.WithString("link", mcp.Required(), mcp.Description("Link text as it would appear inside [[...]]")),
		mcp.WithString("source", mcp.Description("Path of the file the link would be written in")),
	), s.findReferences)

	s.mcp.AddTool(mcp.NewTool("detect_links",
		mcp.WithDescription("Detect implicit links in a file: prose phrases matching known "+
			"titles, aliases, headings, or regex rules."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to scan")),
	), s.detectLinks)

	s.mcp.AddTool(mcp.NewTool("set_policy",
		mcp.WithDescription("Switch the active key-equivalence policy and rebuild the reference index. "+
			"Valid ids: case-insensitive, same-file, word-form, base-name, unique-files."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Policy id")),
	), s.setPolicy)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Re-sync the metadata cache from disk and rebuild the reference index."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("get_link_contract",
		mcp.WithDescription("Returns the canonical Othala link format contract. "+
			"Call this before creating files to ensure references index correctly."),
	), s.getLinkContract)

	// Resource: link format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://link-format", "Link Format Contract",
			mcp.WithResourceDescription("Canonical wikilink and frontmatter format that indexed files must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(detail.Content), nil
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.CreateFile(ctx, path, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) listFiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListFiles(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Path
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fc, err := s.svc.FileReferences(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	out, _ := json.MarshalIndent(fc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) countReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	min := 1
	if v, vErr := req.RequireString("min"); vErr == nil {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			min = n
		}
	}
	counts := s.svc.Counts(ctx, min)
	out, _ := json.MarshalIndent(counts, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) findReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	link, err := req.RequireString("link")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := ""
	if v, sErr := req.RequireString("source"); sErr == nil {
		source = v
	}
	found := s.svc.FindLinks(ctx, source, link)
	if len(found) == 0 {
		return mcp.NewToolResultText("no references found"), nil
	}
	out, _ := json.MarshalIndent(found, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) detectLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dets, err := s.svc.Detections(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if len(dets) == 0 {
		return mcp.NewToolResultText("no detections"), nil
	}
	out, _ := json.MarshalIndent(dets, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setPolicy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetPolicy(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("policy set: %s", id)), nil
}

func (s *Server) rebuildIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Rebuild(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("rebuild complete"), nil
}

func (s *Server) getLinkContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LinkFormatContract), nil
}

func (s *Server) readLinkFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://link-format",
			MIMEType: "text/markdown",
			Text:     LinkFormatContract,
		},
	}, nil
}
