// Package server exposes the vault over MCP (stdio) and HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mkarlsen/vaultkit/internal/client"
)

// --- Tool inputs ---

type searchInput struct {
	Query string `json:"query" jsonschema:"Search terms, matched against note content, titles and tags"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results. Default: 20"`
}

type listInput struct {
	Folder string `json:"folder,omitempty" jsonschema:"Restrict to notes under this folder"`
}

type pathInput struct {
	Path string `json:"path" jsonschema:"Note path, .md extension optional"`
}

type writeInput struct {
	Path    string `json:"path" jsonschema:"Note path, .md extension optional"`
	Content string `json:"content" jsonschema:"Markdown content"`
}

type frontmatterInput struct {
	Path   string         `json:"path" jsonschema:"Note path, .md extension optional"`
	Set    map[string]any `json:"set,omitempty" jsonschema:"Frontmatter keys to set or overwrite"`
	Remove []string       `json:"remove,omitempty" jsonschema:"Frontmatter keys to delete"`
}

type neighborsInput struct {
	Path  string `json:"path" jsonschema:"Note path, .md extension optional"`
	Depth int    `json:"depth,omitempty" jsonschema:"How many hops to follow. Default: 1"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results. Default: 50"`
}

// Tools implements the MCP tool handlers over one client.
type Tools struct {
	client *client.Client
}

// NewMCPServer builds the MCP server with all vault tools registered.
func NewMCPServer(c *client.Client, version string) *mcp.Server {
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "vaultkit",
			Version: version,
		},
		nil,
	)

	t := &Tools{client: c}

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "vault_search",
		Description: "Full-text search across all notes, ranked by term frequency with title and tag boosts. Returns matching paths with scores and matched terms.",
	}, t.VaultSearch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "vault_list",
		Description: "List all markdown notes in the vault, optionally restricted to one folder. Paths are vault-relative and sorted.",
	}, t.VaultList)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "vault_context",
		Description: "Summarize one note's place in the vault: title, headings, tags, notes it links to and notes linking back to it.",
	}, t.VaultContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "note_read",
		Description: "Read a note's full markdown content.",
	}, t.NoteRead)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "note_create",
		Description: "Create a new note. Fails if the path already exists; parent folders are created as needed.",
	}, t.NoteCreate)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "note_update",
		Description: "Replace an existing note's content entirely.",
	}, t.NoteUpdate)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "note_append",
		Description: "Append markdown to the end of an existing note.",
	}, t.NoteAppend)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "frontmatter_update",
		Description: "Set or remove YAML frontmatter keys on a note without touching the body. Creates the frontmatter block when absent.",
	}, t.FrontmatterUpdate)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "graph_backlinks",
		Description: "Find every note linking to a target, with the exact line/column of each link and the surrounding text.",
	}, t.GraphBacklinks)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "graph_forward_links",
		Description: "List the notes a given note links to (resolved wikilinks and embeds).",
	}, t.GraphForwardLinks)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "graph_neighbors",
		Description: "Walk the link graph outward from a note, following links in both directions up to a depth, and return the reachable notes.",
	}, t.GraphNeighbors)

	return srv
}

// RunStdio serves MCP over stdin/stdout until the context ends.
func RunStdio(ctx context.Context, srv *mcp.Server) error {
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// --- Handlers ---

func (t *Tools) VaultSearch(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return errorResult("query is required"), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	results, err := t.client.SearchNotes(ctx, input.Query, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}
	res, err := jsonTextResult(results)
	return res, nil, err
}

func (t *Tools) VaultList(ctx context.Context, req *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, any, error) {
	notes := t.client.ListNotes()
	if input.Folder != "" {
		prefix := input.Folder + "/"
		filtered := notes[:0]
		for _, path := range notes {
			if len(path) > len(prefix) && path[:len(prefix)] == prefix {
				filtered = append(filtered, path)
			}
		}
		notes = filtered
	}
	res, err := jsonTextResult(notes)
	return res, nil, err
}

func (t *Tools) VaultContext(ctx context.Context, req *mcp.CallToolRequest, input pathInput) (*mcp.CallToolResult, any, error) {
	nc, err := t.client.GetNoteContext(input.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("note not found: %s", input.Path)), nil, nil
	}
	res, err := jsonTextResult(nc)
	return res, nil, err
}

func (t *Tools) NoteRead(ctx context.Context, req *mcp.CallToolRequest, input pathInput) (*mcp.CallToolResult, any, error) {
	content, err := t.client.ReadNote(ctx, input.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("note not found: %s", input.Path)), nil, nil
	}
	return textResult(content), nil, nil
}

func (t *Tools) NoteCreate(ctx context.Context, req *mcp.CallToolRequest, input writeInput) (*mcp.CallToolResult, any, error) {
	f, err := t.client.CreateNote(ctx, input.Path, input.Content)
	if err != nil {
		return errorResult(fmt.Sprintf("create failed: %v", err)), nil, nil
	}
	return textResult(fmt.Sprintf("created %s", f.Path())), nil, nil
}

func (t *Tools) NoteUpdate(ctx context.Context, req *mcp.CallToolRequest, input writeInput) (*mcp.CallToolResult, any, error) {
	if err := t.client.UpdateNote(ctx, input.Path, input.Content); err != nil {
		return errorResult(fmt.Sprintf("update failed: %v", err)), nil, nil
	}
	return textResult(fmt.Sprintf("updated %s", input.Path)), nil, nil
}

func (t *Tools) NoteAppend(ctx context.Context, req *mcp.CallToolRequest, input writeInput) (*mcp.CallToolResult, any, error) {
	if err := t.client.AppendNote(ctx, input.Path, input.Content); err != nil {
		return errorResult(fmt.Sprintf("append failed: %v", err)), nil, nil
	}
	return textResult(fmt.Sprintf("appended to %s", input.Path)), nil, nil
}

func (t *Tools) FrontmatterUpdate(ctx context.Context, req *mcp.CallToolRequest, input frontmatterInput) (*mcp.CallToolResult, any, error) {
	if len(input.Set) == 0 && len(input.Remove) == 0 {
		return errorResult("nothing to change: provide set and/or remove"), nil, nil
	}
	err := t.client.UpdateFrontmatter(ctx, input.Path, func(props map[string]any) {
		for key, value := range input.Set {
			props[key] = value
		}
		for _, key := range input.Remove {
			delete(props, key)
		}
	})
	if err != nil {
		return errorResult(fmt.Sprintf("frontmatter update failed: %v", err)), nil, nil
	}
	return textResult(fmt.Sprintf("updated frontmatter of %s", input.Path)), nil, nil
}

func (t *Tools) GraphBacklinks(ctx context.Context, req *mcp.CallToolRequest, input pathInput) (*mcp.CallToolResult, any, error) {
	backlinks, err := t.client.DetailedBacklinks(ctx, input.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("backlinks failed: %v", err)), nil, nil
	}
	res, err := jsonTextResult(backlinks)
	return res, nil, err
}

func (t *Tools) GraphForwardLinks(ctx context.Context, req *mcp.CallToolRequest, input pathInput) (*mcp.CallToolResult, any, error) {
	nc, err := t.client.GetNoteContext(input.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("note not found: %s", input.Path)), nil, nil
	}
	res, err := jsonTextResult(nc.Outlinks)
	return res, nil, err
}

func (t *Tools) GraphNeighbors(ctx context.Context, req *mcp.CallToolRequest, input neighborsInput) (*mcp.CallToolResult, any, error) {
	nc, err := t.client.GetNoteContext(input.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("note not found: %s", input.Path)), nil, nil
	}
	depth := input.Depth
	if depth <= 0 {
		depth = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	neighbors := t.client.Graph.Neighbors(nc.Path, depth, limit)
	res, err := jsonTextResult(neighbors)
	return res, nil, err
}

// --- Result helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func jsonTextResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
