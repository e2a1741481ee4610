// Package mcp exposes the terse ledger to agent callers as MCP tools served
// over stdio.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/scbrown/terse/internal/store"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"terse_gain": {
		def:     gainToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGain },
	},
	"terse_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"terse_discover": {
		def:     discoverToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDiscover },
	},
}

// AllToolNames returns the sorted names of every tool.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates an MCP server with the terse tools registered.
// ruleTools lists tools that have filter rules, used to annotate discovery
// results.
func NewServer(s store.Store, ruleTools []string, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"terse",
		version,
		server.WithToolCapabilities(true),
	)
	h := NewHandlers(s, ruleTools)
	for _, entry := range toolRegistry {
		srv.AddTool(entry.def, entry.handler(h))
	}
	return srv
}

// Run starts the MCP server using stdio transport.
func Run(s store.Store, ruleTools []string, version string) error {
	return server.ServeStdio(NewServer(s, ruleTools, version))
}
