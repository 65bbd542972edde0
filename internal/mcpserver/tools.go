package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the WalletGuard MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeTransaction = mcp.NewTool("analyze_transaction",
	mcp.WithDescription(
		"Score a proposed wallet transaction for security risk before it is signed. "+
			"Returns a 0-100 risk score, a level (low/medium/high/critical), detected threats, "+
			"contract findings for the call data, and a recommendation to approve, review or block."),
	mcp.WithString("from",
		mcp.Required(),
		mcp.Description("Sender address (0x followed by 40 hex characters)")),
	mcp.WithString("to",
		mcp.Required(),
		mcp.Description("Recipient or contract address (0x followed by 40 hex characters)")),
	mcp.WithString("value",
		mcp.Required(),
		mcp.Description("Amount being sent, as a decimal string (e.g. '1.5')")),
	mcp.WithString("data",
		mcp.Description("Hex call data (e.g. '0x095ea7b3...'). Omit or use '0x' for a plain transfer.")),
	mcp.WithNumber("network_id",
		mcp.Description("Chain id (defaults to the server's network, 137 for Polygon)")),
)

var ToolCheckURL = mcp.NewTool("check_url",
	mcp.WithDescription(
		"Check whether a URL is a known or likely phishing site. "+
			"Returns a verdict, a confidence between 0 and 1, and the reason."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("Absolute URL including scheme (e.g. 'https://example.com/claim')")),
)

var ToolGetStats = mcp.NewTool("get_stats",
	mcp.WithDescription(
		"Get WalletGuard protection statistics: transactions scanned, threats blocked, "+
			"average risk score and number of active protections."),
)

var ToolListTransactions = mcp.NewTool("list_transactions",
	mcp.WithDescription(
		"List recently analyzed transactions, newest first, with their risk score and status."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of transactions to return (default 10)")),
)

var ToolListAlerts = mcp.NewTool("list_alerts",
	mcp.WithDescription(
		"List security alerts raised for high-risk transactions, blocked transactions and phishing URLs."),
	mcp.WithBoolean("unread_only",
		mcp.Description("Only return alerts that have not been marked as read")),
)
