package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/walletguard/internal/alerts"
	"github.com/mbd888/walletguard/internal/phishing"
	"github.com/mbd888/walletguard/internal/transactions"
)

const defaultListLimit = 10

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleAnalyzeTransaction scores a transaction.
func (h *Handlers) HandleAnalyzeTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := transactions.AnalyzeRequest{
		From:  req.GetString("from", ""),
		To:    req.GetString("to", ""),
		Value: req.GetString("value", ""),
		Data:  req.GetString("data", ""),
	}
	_, hasValue := req.GetArguments()["value"]
	if in.From == "" || in.To == "" || !hasValue {
		return mcp.NewToolResultError("from, to and value are required"), nil
	}
	if n := int64(req.GetFloat("network_id", 0)); n > 0 {
		in.NetworkID = &n
	}

	res, err := h.client.Analyze(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze transaction: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAnalysis(res)), nil
}

// HandleCheckURL returns a phishing verdict.
func (h *Handlers) HandleCheckURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("url", "")
	if raw == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	v, err := h.client.CheckURL(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check URL: %v", err)), nil
	}
	return mcp.NewToolResultText(formatVerdict(raw, v)), nil
}

// HandleGetStats returns dashboard statistics.
func (h *Handlers) HandleGetStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.client.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Transactions scanned: %d\nThreats blocked: %d\nAverage risk score: %.1f\nActive protections: %d",
		st.TotalTransactionsScanned, st.ThreatsBlocked, st.AverageRiskScore, st.ActiveProtections)), nil
}

// HandleListTransactions lists recent analyses.
func (h *Handlers) HandleListTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", defaultListLimit))
	if limit <= 0 {
		limit = defaultListLimit
	}

	items, err := h.client.Transactions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list transactions: %v", err)), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("No transactions analyzed yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d recent transactions:\n\n", len(items))
	for i, a := range items {
		fmt.Fprintf(&sb, "%d. %s -> %s  %s %s\n", i+1, a.From, a.To, a.Value, a.TokenSymbol)
		fmt.Fprintf(&sb, "   Risk: %d (%s), status: %s, id: %s\n", a.RiskScore, a.RiskLevel, a.Status, a.ID)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListAlerts lists alerts.
func (h *Handlers) HandleListAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unreadOnly := req.GetBool("unread_only", false)

	list, err := h.client.Alerts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list alerts: %v", err)), nil
	}

	var shown []*alerts.Alert
	for _, a := range list {
		if unreadOnly && a.Read {
			continue
		}
		shown = append(shown, a)
	}
	if len(shown) == 0 {
		return mcp.NewToolResultText("No alerts."), nil
	}

	var sb strings.Builder
	for _, a := range shown {
		marker := " "
		if !a.Read {
			marker = "*"
		}
		at := time.UnixMilli(a.Timestamp).UTC().Format(time.RFC3339)
		fmt.Fprintf(&sb, "%s [%s] %s (%s)\n  %s\n", marker, a.Type, a.Title, at, a.Message)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// --- formatting ---

func formatAnalysis(res *transactions.AnalyzeResult) string {
	a := res.Analysis
	var sb strings.Builder
	fmt.Fprintf(&sb, "Recommendation: %s\n", strings.ToUpper(string(res.Recommendation)))
	fmt.Fprintf(&sb, "Risk score: %d/100 (%s)\n", a.RiskScore, a.RiskLevel)
	if a.RiskSource != "" {
		fmt.Fprintf(&sb, "Scored by: %s\n", a.RiskSource)
	}
	if a.PhishingDetected {
		sb.WriteString("Phishing indicators detected\n")
	}
	if len(a.Threats) > 0 {
		sb.WriteString("\nThreats:\n")
		for _, t := range a.Threats {
			fmt.Fprintf(&sb, "  - %s\n", t)
		}
	}
	if ca := a.ContractAnalysis; ca != nil {
		sb.WriteString("\nContract:\n")
		fmt.Fprintf(&sb, "  Verified: %t\n", ca.IsVerified)
		fmt.Fprintf(&sb, "  Honeypot: %t  Drainer: %t  Rug pull: %t\n", ca.HasHoneypotPatterns, ca.HasDrainerPatterns, ca.HasRugPullPatterns)
		if ca.SelectorName != "" {
			fmt.Fprintf(&sb, "  Function: %s (%s)\n", ca.SelectorName, ca.FunctionSelector)
		}
		if len(ca.SuspiciousFunctions) > 0 {
			fmt.Fprintf(&sb, "  Suspicious functions: %s\n", strings.Join(ca.SuspiciousFunctions, ", "))
		}
	}
	if a.AIReasoning != "" {
		fmt.Fprintf(&sb, "\nReasoning: %s\n", a.AIReasoning)
	}
	fmt.Fprintf(&sb, "\nAnalysis id: %s", a.ID)
	return sb.String()
}

func formatVerdict(raw string, v *phishing.Verdict) string {
	status := "No phishing detected"
	if v.IsPhishing {
		status = "PHISHING"
	}
	return fmt.Sprintf("%s: %s\nConfidence: %.0f%%\nReason: %s", status, raw, v.Confidence*100, v.Reason)
}
