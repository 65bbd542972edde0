package advisory

import (
	"fmt"
	"strings"
)

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

// buildPrompt renders the transaction summary and, when present, the contract
// report as the user message sent to the service.
func buildPrompt(req Request) string {
	symbol := req.TokenSymbol
	if symbol == "" {
		symbol = "MATIC"
	}

	var b strings.Builder
	b.WriteString("You are a Web3 security expert analyzing a blockchain transaction for potential risks.\n\n")
	b.WriteString("Transaction Details:\n")
	fmt.Fprintf(&b, "- From: %s\n", req.From)
	fmt.Fprintf(&b, "- To: %s\n", req.To)
	fmt.Fprintf(&b, "- Value: %s %s\n", req.Value, symbol)
	fmt.Fprintf(&b, "- Network ID: %d\n", req.NetworkID)
	fmt.Fprintf(&b, "- Has Contract Data: %s\n", yesNo(req.Data != "" && req.Data != "0x"))

	if r := req.Report; r != nil {
		b.WriteString("\nContract Analysis:\n")
		fmt.Fprintf(&b, "- Verified: %t\n", r.IsVerified)
		if r.SelectorName != "" {
			fmt.Fprintf(&b, "- Function: %s (%s)\n", r.SelectorName, r.FunctionSelector)
		}
		fmt.Fprintf(&b, "- Honeypot Patterns: %t\n", r.HasHoneypotPatterns)
		fmt.Fprintf(&b, "- Drainer Patterns: %t\n", r.HasDrainerPatterns)
		fmt.Fprintf(&b, "- Rug Pull Patterns: %t\n", r.HasRugPullPatterns)
		fmt.Fprintf(&b, "- Suspicious Functions: %s\n", joinOrNone(r.SuspiciousFunctions))
		fmt.Fprintf(&b, "- Risk Indicators: %s\n", joinOrNone(r.RiskIndicators))
	}

	b.WriteString(`
Analyze this transaction and provide:
1. A risk score from 0-100 (0 = safe, 100 = extremely dangerous)
2. A brief explanation of your assessment (2-3 sentences)
3. A list of specific threats detected (if any)

Respond in JSON format:
{
  "riskScore": number,
  "reasoning": "string",
  "threats": ["string"]
}`)
	return b.String()
}
