// Package transactions owns TransactionAnalysis records: the analyze
// pipeline that scores a pending transaction, the approve/block status
// transitions, and the dashboard statistics.
package transactions

import (
	"context"
	"errors"
	"math"

	"github.com/mbd888/walletguard/internal/contract"
	"github.com/mbd888/walletguard/internal/pagination"
	"github.com/mbd888/walletguard/internal/risk"
)

var ErrNotFound = errors.New("transactions: not found")

// Status is the lifecycle state of an analyzed transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusBlocked   Status = "blocked"
	StatusCompleted Status = "completed"
)

// Defaults applied to analyze requests.
const (
	DefaultTokenSymbol = "MATIC"
	DefaultGasPrice    = "30"
	DefaultGasLimit    = "21000"
	DefaultNetworkID   = int64(137)

	// ActiveProtections is the number of protection layers reported in stats.
	ActiveProtections = 4
)

// Analysis is a stored transaction analysis.
type Analysis struct {
	ID               string           `json:"id"`
	Hash             string           `json:"hash"`
	From             string           `json:"from"`
	To               string           `json:"to"`
	Value            string           `json:"value"`
	TokenSymbol      string           `json:"tokenSymbol"`
	GasPrice         string           `json:"gasPrice"`
	GasLimit         string           `json:"gasLimit"`
	Data             string           `json:"data"`
	RiskScore        int              `json:"riskScore"`
	RiskLevel        risk.Level       `json:"riskLevel"`
	RiskSource       risk.Source      `json:"riskSource,omitempty"`
	AIReasoning      string           `json:"aiReasoning"`
	Threats          []string         `json:"threats"`
	ContractAnalysis *contract.Report `json:"contractAnalysis,omitempty"`
	PhishingDetected bool             `json:"phishingDetected"`
	Timestamp        int64            `json:"timestamp"` // unix millis
	Status           Status           `json:"status"`
	NetworkID        int64            `json:"networkId"`
}

// AnalyzeRequest is the inbound analyze payload.
type AnalyzeRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Data      string `json:"data,omitempty"`
	GasPrice  string `json:"gasPrice,omitempty"`
	GasLimit  string `json:"gasLimit,omitempty"`
	NetworkID *int64 `json:"networkId,omitempty"`
}

// AnalyzeResult is the analyze response body.
type AnalyzeResult struct {
	Analysis       *Analysis           `json:"analysis"`
	Recommendation risk.Recommendation `json:"recommendation"`
}

// Stats summarizes stored analyses for the dashboard.
type Stats struct {
	TotalTransactionsScanned int     `json:"totalTransactionsScanned"`
	ThreatsBlocked           int     `json:"threatsBlocked"`
	AverageRiskScore         float64 `json:"averageRiskScore"`
	ActiveProtections        int     `json:"activeProtections"`
}

// Store persists analyses. List returns newest first (timestamp, then id,
// descending); limit <= 0 means no limit.
type Store interface {
	Create(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, id string) (*Analysis, error)
	List(ctx context.Context, limit int, after *pagination.Cursor) ([]*Analysis, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Analysis, error)
	Stats(ctx context.Context) (*Stats, error)
}

// ComputeStats derives dashboard statistics from a set of records.
func ComputeStats(all []*Analysis) *Stats {
	st := &Stats{TotalTransactionsScanned: len(all), ActiveProtections: ActiveProtections}
	if len(all) == 0 {
		return st
	}
	sum := 0
	for _, a := range all {
		sum += a.RiskScore
		if a.Status == StatusBlocked {
			st.ThreatsBlocked++
		}
	}
	st.AverageRiskScore = math.Round(float64(sum)/float64(len(all))*10) / 10
	return st
}

func pageKey(a *Analysis) (int64, string) { return a.Timestamp, a.ID }
