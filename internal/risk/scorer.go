package risk

import (
	"math"

	"github.com/mbd888/walletguard/internal/contract"
)

const (
	baseScore = 20

	weightHoneypot   = 30
	weightDrainer    = 25
	weightRugPull    = 20
	weightUnverified = 10
)

// Threat descriptions, appended in this order.
const (
	ThreatHoneypot   = "Potential honeypot pattern detected"
	ThreatDrainer    = "Token approval pattern detected - review carefully"
	ThreatRugPull    = "Potential rug pull indicators found"
	ThreatUnverified = "Contract source code not verified"
)

// FallbackReasoning explains a deterministic assessment.
const FallbackReasoning = "Risk score calculated based on pattern matching of transaction data " +
	"and contract bytecode analysis. Enhanced analysis available when additional services are configured."

// Scorer produces assessments. It holds no state and is safe for concurrent use.
type Scorer struct{}

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score assesses a transaction. When opinion is non-nil it replaces the
// deterministic result; report may be nil for plain transfers.
func (s *Scorer) Score(report *contract.Report, opinion *Opinion) Assessment {
	if opinion != nil {
		return fromOpinion(opinion)
	}
	return s.Deterministic(report)
}

// Deterministic scores a report using the fixed heuristic weights only.
func (s *Scorer) Deterministic(report *contract.Report) Assessment {
	score := baseScore
	threats := []string{}

	if report != nil {
		if report.HasHoneypotPatterns {
			score += weightHoneypot
			threats = append(threats, ThreatHoneypot)
		}
		if report.HasDrainerPatterns {
			score += weightDrainer
			threats = append(threats, ThreatDrainer)
		}
		if report.HasRugPullPatterns {
			score += weightRugPull
			threats = append(threats, ThreatRugPull)
		}
		if !report.IsVerified {
			score += weightUnverified
			threats = append(threats, ThreatUnverified)
		}
	}

	return build(score, FallbackReasoning, threats, SourceDeterministic)
}

func fromOpinion(o *Opinion) Assessment {
	score := MaxScore
	switch {
	case math.IsNaN(o.Score):
		score = MinScore
	case o.Score < MaxScore:
		score = int(math.Round(math.Max(o.Score, MinScore)))
	}
	threats := make([]string, len(o.Threats))
	copy(threats, o.Threats)
	return build(score, o.Reasoning, threats, SourceAdvisory)
}

func build(score int, reasoning string, threats []string, src Source) Assessment {
	score = Clamp(score)
	return Assessment{
		Score:          score,
		Level:          LevelFor(score),
		Reasoning:      reasoning,
		Threats:        threats,
		Recommendation: RecommendationFor(score),
		Source:         src,
	}
}
