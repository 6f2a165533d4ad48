package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the outline tools on srv.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	registerTool(srv, &mcp.Tool{
		Name:        "outline_list",
		Description: "List the user questions of the open chat, in page order, with their stable ids.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.outline(ctx)
	})

	registerTool(srv, &mcp.Tool{
		Name:        "outline_refresh",
		Description: "Rescan the chat and re-render the outline.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.refresh(ctx)
	})

	registerTool(srv, &mcp.Tool{
		Name:        "outline_locate",
		Description: "Scroll the chat to a question by id and highlight it. Older questions may take a few seconds to render.",
		InputSchema: inputSchema(map[string]any{
			"id":   map[string]any{"type": "string", "description": "Item id from outline_list"},
			"wait": map[string]any{"type": "boolean", "description": "Wait for the search to finish (default true)"},
		}, []string{"id"}),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r struct {
			ID   string `json:"id"`
			Wait *bool  `json:"wait,omitempty"`
		}
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, err
		}
		if r.ID == "" {
			return nil, errors.New("id is required")
		}
		wait := r.Wait == nil || *r.Wait
		return s.locate(ctx, r.ID, wait)
	})

	registerTool(srv, &mcp.Tool{
		Name:        "outline_export",
		Description: "Copy the outline to the clipboard as an enumerated Markdown list. Without a reachable clipboard the Markdown is returned instead.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.export(ctx)
	})
}

// registerTool adapts a JSON endpoint to an MCP tool handler. Endpoint
// errors become tool errors, not protocol errors.
func registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		resp, err := endpoint(ctx, args)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
