package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// NewMCPServer creates a configured MCP server with all WalletGuard tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("walletguard", Version)
	h := NewHandlers(NewClient(cfg))

	s.AddTool(ToolAnalyzeTransaction, h.HandleAnalyzeTransaction)
	s.AddTool(ToolCheckURL, h.HandleCheckURL)
	s.AddTool(ToolGetStats, h.HandleGetStats)
	s.AddTool(ToolListTransactions, h.HandleListTransactions)
	s.AddTool(ToolListAlerts, h.HandleListAlerts)

	return s
}
