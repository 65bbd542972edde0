// Package contract inspects transaction call data for suspicious patterns.
//
// The analysis is a case-insensitive substring search of the raw call-data
// string against the pattern catalog. It is deliberately approximate: it does
// not decompile bytecode and will flag any payload that happens to contain a
// pattern's text.
package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mbd888/walletguard/internal/patterns"
)

const (
	// minPayload is the number of characters after "0x" a payload must exceed
	// to be treated as a contract call.
	minPayload = 5

	// largeCallData is the length above which a size indicator is reported.
	largeCallData = 10000

	fingerprintLen = 8
)

// Risk indicator notes, appended in this order.
const (
	IndicatorHoneypot = "Contains potential honeypot patterns"
	IndicatorDrainer  = "Contains approval/transfer patterns"
	IndicatorRugPull  = "Contains potential rug pull patterns"
	IndicatorLarge    = "Large contract size - complex logic"
)

// Report is the structured result of analyzing one call-data payload.
type Report struct {
	IsContract          bool     `json:"isContract"`
	BytecodeHash        string   `json:"bytecodeHash,omitempty"`
	IsVerified          bool     `json:"isVerified"`
	HasHoneypotPatterns bool     `json:"hasHoneypotPatterns"`
	HasDrainerPatterns  bool     `json:"hasDrainerPatterns"`
	HasRugPullPatterns  bool     `json:"hasRugPullPatterns"`
	SuspiciousFunctions []string `json:"suspiciousFunctions"`
	RiskIndicators      []string `json:"riskIndicators"`

	// Display only. Never used for flags or scoring.
	FunctionSelector string `json:"functionSelector,omitempty"`
	SelectorName     string `json:"selectorName,omitempty"`
}

// Analyzer matches call data against a catalog. Safe for concurrent use.
type Analyzer struct {
	categories [3][]pattern
	selectors  map[string]string
}

type pattern struct {
	name  string
	lower string
}

// NewAnalyzer creates an analyzer over the given catalog.
func NewAnalyzer(catalog *patterns.Catalog) *Analyzer {
	a := &Analyzer{selectors: selectorTable()}
	for i, cat := range patterns.Categories {
		for _, p := range catalog.Patterns(cat) {
			a.categories[i] = append(a.categories[i], pattern{name: p, lower: strings.ToLower(p)})
		}
	}
	return a
}

// Analyze returns the report for callData, or nil when the payload is the
// no-op value or too short to be a function call.
func (a *Analyzer) Analyze(callData string) *Report {
	if !IsContractCall(callData) {
		return nil
	}

	lower := strings.ToLower(callData)
	var flags [3]bool
	var suspicious []string
	seen := make(map[string]bool)

	for i, list := range a.categories {
		for _, p := range list {
			if !strings.Contains(lower, p.lower) {
				continue
			}
			flags[i] = true
			if !seen[p.name] {
				seen[p.name] = true
				suspicious = append(suspicious, p.name)
			}
		}
	}

	indicators := []string{}
	if flags[0] {
		indicators = append(indicators, IndicatorHoneypot)
	}
	if flags[1] {
		indicators = append(indicators, IndicatorDrainer)
	}
	if flags[2] {
		indicators = append(indicators, IndicatorRugPull)
	}
	if len(callData) > largeCallData {
		indicators = append(indicators, IndicatorLarge)
	}
	if suspicious == nil {
		suspicious = []string{}
	}

	r := &Report{
		IsContract:          true,
		BytecodeHash:        Fingerprint(callData),
		IsVerified:          false,
		HasHoneypotPatterns: flags[0],
		HasDrainerPatterns:  flags[1],
		HasRugPullPatterns:  flags[2],
		SuspiciousFunctions: suspicious,
		RiskIndicators:      indicators,
	}
	if sel, ok := selector(callData); ok {
		r.FunctionSelector = sel
		r.SelectorName = a.selectors[sel]
	}
	return r
}

// IsContractCall reports whether callData carries more than the minimal
// payload after the "0x" prefix.
func IsContractCall(callData string) bool {
	if callData == "" || callData == "0x" {
		return false
	}
	return len(strings.TrimPrefix(callData, "0x")) > minPayload
}

// Fingerprint is the display identifier for a payload: "0x", the first eight
// characters after the prefix, then an ellipsis.
func Fingerprint(callData string) string {
	body := strings.TrimPrefix(callData, "0x")
	if len(body) > fingerprintLen {
		body = body[:fingerprintLen]
	}
	return "0x" + body + "..."
}

func selector(callData string) (string, bool) {
	body := strings.TrimPrefix(callData, "0x")
	if len(body) < fingerprintLen {
		return "", false
	}
	b, err := hexutil.Decode("0x" + body[:fingerprintLen])
	if err != nil {
		return "", false
	}
	return hexutil.Encode(b), true
}

// knownSignatures are the canonical signatures whose selectors get a name in
// reports.
var knownSignatures = []string{
	"transfer(address,uint256)",
	"approve(address,uint256)",
	"transferFrom(address,address,uint256)",
	"increaseAllowance(address,uint256)",
	"setApprovalForAll(address,bool)",
	"safeTransferFrom(address,address,uint256)",
	"permit(address,address,uint256,uint256,uint8,bytes32,bytes32)",
	"mint(address,uint256)",
	"renounceOwnership()",
	"swapExactETHForTokens(uint256,address[],address,uint256)",
}

func selectorTable() map[string]string {
	table := make(map[string]string, len(knownSignatures))
	for _, sig := range knownSignatures {
		table[hexutil.Encode(crypto.Keccak256([]byte(sig))[:4])] = sig
	}
	return table
}
