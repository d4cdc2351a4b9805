package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/othala/internal/detect"
	"github.com/starford/othala/internal/refs"
	"github.com/starford/othala/internal/refservice"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/testutil"
	"github.com/starford/othala/internal/vault"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	vlt, err := vault.New(store, db, nil)
	if err != nil {
		t.Fatal(err)
	}
	ix := refs.NewIndex(vlt, refs.CaseInsensitive{}, 1, logger)
	mgr, err := detect.NewManager(vlt, func(text string) string {
		return ix.GenerateKeyFromPathAndLink("", text)
	}, logger, detect.Settings{Mode: detect.ModeOff})
	if err != nil {
		t.Fatal(err)
	}
	svc := refservice.NewService(store, db, vlt, ix, mgr, logger)
	return New(svc), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so call the handler
	// functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "read_file":
		result, err = srv.readFile(ctx, req)
	case "create_file":
		result, err = srv.createFile(ctx, req)
	case "list_files":
		result, err = srv.listFiles(ctx, req)
	case "get_references":
		result, err = srv.getReferences(ctx, req)
	case "count_references":
		result, err = srv.countReferences(ctx, req)
	case "find_references":
		result, err = srv.findReferences(ctx, req)
	case "detect_links":
		result, err = srv.detectLinks(ctx, req)
	case "set_policy":
		result, err = srv.setPolicy(ctx, req)
	case "rebuild_index":
		result, err = srv.rebuildIndex(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadFile(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_file", map[string]interface{}{
		"path":    "test.md",
		"content": "# Test\nHello",
	})
	if text := resultText(r); text != "created: test.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_file", map[string]interface{}{
		"path": "test.md",
	})
	if text := resultText(r); text != "# Test\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadFileMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_file", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
}

func TestCountAndFindReferences(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_file", map[string]interface{}{
		"path":    "a.md",
		"content": "links to [[b]] and [[B]]",
	})

	r := callTool(t, srv, "count_references", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, `"B.MD": 2`) {
		t.Errorf("counts = %q", text)
	}

	r = callTool(t, srv, "find_references", map[string]interface{}{"link": "b"})
	if text := resultText(r); !strings.Contains(text, "a.md") {
		t.Errorf("find result = %q", text)
	}
}

func TestGetReferencesView(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_file", map[string]interface{}{
		"path":    "a.md",
		"content": "see [[Target]]",
	})

	r := callTool(t, srv, "get_references", map[string]interface{}{"path": "a.md"})
	if text := resultText(r); !strings.Contains(text, "TARGET.MD") {
		t.Errorf("references = %q", text)
	}
}

func TestSetPolicyTool(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "set_policy", map[string]interface{}{"id": "unique-files"})
	if text := resultText(r); text != "policy set: unique-files" {
		t.Errorf("result = %q", text)
	}
	r = callTool(t, srv, "set_policy", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown policy")
	}
}

func TestRebuildIndexTool(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("x.md", []byte("[[y]]"))

	r := callTool(t, srv, "rebuild_index", map[string]interface{}{})
	if text := resultText(r); text != "rebuild complete" {
		t.Errorf("result = %q", text)
	}
	r = callTool(t, srv, "count_references", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, "Y.MD") {
		t.Errorf("counts after rebuild = %q", text)
	}
}
