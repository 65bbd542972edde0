package transactions

import (
	"context"
	"time"

	"github.com/mbd888/walletguard/internal/contract"
	"github.com/mbd888/walletguard/internal/idgen"
	"github.com/mbd888/walletguard/internal/risk"
)

const fixtureWallet = "0x742d35Cc6634C0532925a3b844Bc9e7595f1b3B7"

// Fixtures returns the demo transactions shown on a fresh dashboard,
// timestamped relative to now.
func Fixtures(now time.Time) []*Analysis {
	ago := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }
	return []*Analysis{
		{
			ID:          idgen.New(),
			Hash:        "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
			From:        fixtureWallet,
			To:          "0x8ba1f109551bD432803012645Hac136c22C1234",
			Value:       "1.5",
			TokenSymbol: "MATIC",
			GasPrice:    "30",
			GasLimit:    "21000",
			Data:        "0x",
			RiskScore:   15,
			RiskLevel:   risk.LevelSafe,
			AIReasoning: "This transaction appears to be a standard MATIC transfer to a well-known wallet address with a clean history. The receiving address has been active for over 2 years with no reported incidents.",
			Threats:     []string{},
			Timestamp:   ago(30 * time.Minute),
			Status:      StatusCompleted,
			NetworkID:   DefaultNetworkID,
		},
		{
			ID:          idgen.New(),
			Hash:        "0xabcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890",
			From:        fixtureWallet,
			To:          "0xDEADBEEF00000000000000000000000000000001",
			Value:       "0.5",
			TokenSymbol: "MATIC",
			GasPrice:    "50",
			GasLimit:    "150000",
			Data:        "0xa9059cbb000000000000000000000000dead",
			RiskScore:   85,
			RiskLevel:   risk.LevelHigh,
			AIReasoning: "HIGH RISK: This contract exhibits multiple drainer patterns. The approve function grants unlimited token access, and the contract code contains obfuscated transfer logic that could drain your wallet.",
			Threats: []string{
				"Unlimited token approval detected",
				"Contract contains obfuscated transfer logic",
				"Similar contract reported as scam 47 times",
				"Contract owner can modify key functions",
			},
			ContractAnalysis: &contract.Report{
				IsContract:          true,
				BytecodeHash:        "0xdead...",
				HasDrainerPatterns:  true,
				SuspiciousFunctions: []string{"approve", "transferFrom", "_hidden_drain"},
				RiskIndicators: []string{
					"Unverified contract source code",
					"Owner has admin privileges",
					"No liquidity lock detected",
				},
			},
			Timestamp: ago(5 * time.Minute),
			Status:    StatusPending,
			NetworkID: DefaultNetworkID,
		},
		{
			ID:          idgen.New(),
			Hash:        "0x9876543210fedcba9876543210fedcba9876543210fedcba9876543210fedcba",
			From:        fixtureWallet,
			To:          "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Value:       "100",
			TokenSymbol: "USDC",
			GasPrice:    "35",
			GasLimit:    "65000",
			Data:        "0xa9059cbb",
			RiskScore:   45,
			RiskLevel:   risk.LevelMedium,
			AIReasoning: "This appears to be a USDC transfer to a relatively new address. The contract is verified, but the receiving address was created recently and has limited transaction history. Exercise caution.",
			Threats:     []string{"Receiving address is only 3 days old", "Large value transfer to unknown address"},
			ContractAnalysis: &contract.Report{
				IsContract:          true,
				BytecodeHash:        "0xusdc...",
				IsVerified:          true,
				SuspiciousFunctions: []string{},
				RiskIndicators:      []string{"Destination wallet has limited history"},
			},
			Timestamp: ago(15 * time.Minute),
			Status:    StatusPending,
			NetworkID: DefaultNetworkID,
		},
		{
			ID:          idgen.New(),
			Hash:        "0xfedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210",
			From:        fixtureWallet,
			To:          "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
			Value:       "2.0",
			TokenSymbol: "MATIC",
			GasPrice:    "40",
			GasLimit:    "250000",
			Data:        "0x7ff36ab5",
			RiskScore:   22,
			RiskLevel:   risk.LevelSafe,
			AIReasoning: "This is a swap transaction through Uniswap V2 Router, a well-established and audited DEX protocol. The contract is verified and widely used across the ecosystem.",
			Threats:     []string{},
			ContractAnalysis: &contract.Report{
				IsContract:          true,
				BytecodeHash:        "0xuniswap...",
				IsVerified:          true,
				SuspiciousFunctions: []string{},
				RiskIndicators:      []string{},
			},
			Timestamp: ago(2 * time.Hour),
			Status:    StatusApproved,
			NetworkID: DefaultNetworkID,
		},
		{
			ID:          idgen.New(),
			Hash:        "0x0000111122223333444455556666777788889999aaaabbbbccccddddeeeeffff",
			From:        fixtureWallet,
			To:          "0xSCAM0000000000000000000000000000000001",
			Value:       "50",
			TokenSymbol: "USDC",
			GasPrice:    "100",
			GasLimit:    "200000",
			Data:        "0x095ea7b3ffffffff",
			RiskScore:   95,
			RiskLevel:   risk.LevelHigh,
			AIReasoning: "CRITICAL: This transaction requests UNLIMITED token approval to a known scam contract. The domain associated with this contract has been flagged for phishing. DO NOT APPROVE.",
			Threats: []string{
				"Unlimited approval requested",
				"Contract address flagged as scam",
				"Associated domain on phishing blacklist",
				"Multiple user reports of fund drainage",
			},
			ContractAnalysis: &contract.Report{
				IsContract:          true,
				BytecodeHash:        "0xscam...",
				HasHoneypotPatterns: true,
				HasDrainerPatterns:  true,
				HasRugPullPatterns:  true,
				SuspiciousFunctions: []string{"approve", "drain", "emergencyWithdraw"},
				RiskIndicators: []string{
					"Contract matches known scam pattern",
					"Owner controls 100% of supply",
					"No audit performed",
				},
			},
			PhishingDetected: true,
			Timestamp:        ago(2 * time.Minute),
			Status:           StatusBlocked,
			NetworkID:        DefaultNetworkID,
		},
	}
}

// Seed writes the fixtures into s.
func Seed(ctx context.Context, s Store, now time.Time) error {
	for _, a := range Fixtures(now) {
		if err := s.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
