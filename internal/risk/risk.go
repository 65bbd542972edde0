// Package risk turns a contract analysis report, and optionally an external
// advisory opinion, into a final risk assessment.
//
// The deterministic path starts from a baseline of 20 and adds a fixed
// penalty per triggered heuristic. A well-formed advisory opinion replaces
// the deterministic score, reasoning and threats wholesale. The two are never
// blended. Scores range from 0 (safe) to 100 (extremely dangerous).
package risk

// Level is the tier derived from a score.
type Level string

const (
	LevelSafe   Level = "safe"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Recommendation is the action suggested to the user.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview  Recommendation = "review"
	RecommendBlock   Recommendation = "block"
)

// Source records which path produced an assessment.
type Source string

const (
	SourceDeterministic Source = "deterministic"
	SourceAdvisory      Source = "advisory"
)

// Score breakpoints shared by level and recommendation.
const (
	HighThreshold   = 70
	MediumThreshold = 40

	MinScore = 0
	MaxScore = 100
)

// Assessment is the scorer's output. Immutable once returned.
type Assessment struct {
	Score          int            `json:"riskScore"`
	Level          Level          `json:"riskLevel"`
	Reasoning      string         `json:"reasoning"`
	Threats        []string       `json:"threats"`
	Recommendation Recommendation `json:"recommendation"`
	Source         Source         `json:"source"`
}

// Opinion is a structured judgment from the external advisory service.
// Score is untrusted and is clamped before use.
type Opinion struct {
	Score     float64  `json:"riskScore"`
	Reasoning string   `json:"reasoning"`
	Threats   []string `json:"threats"`
}

// LevelFor maps a score to its tier.
func LevelFor(score int) Level {
	switch {
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelSafe
	}
}

// RecommendationFor maps a score to the suggested action.
func RecommendationFor(score int) Recommendation {
	switch {
	case score >= HighThreshold:
		return RecommendBlock
	case score >= MediumThreshold:
		return RecommendReview
	default:
		return RecommendApprove
	}
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score > MaxScore {
		return MaxScore
	}
	if score < MinScore {
		return MinScore
	}
	return score
}
