// Package phishing scores URLs against the known phishing blacklist and
// suspicious keyword heuristics. No network calls are made.
package phishing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mbd888/walletguard/internal/patterns"
)

var ErrInvalidInput = errors.New("invalid URL")

// Confidence values attached to each verdict branch.
const (
	ConfidenceBlacklisted   = 0.95
	ConfidenceMultiKeyword  = 0.70
	ConfidenceSingleKeyword = 0.40
	ConfidenceClean         = 0.90
)

// Verdict is the outcome of checking one URL.
type Verdict struct {
	IsPhishing bool    `json:"isPhishing"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Checker evaluates URLs against a catalog. Safe for concurrent use.
type Checker struct {
	domains  []string
	keywords []string
}

// NewChecker creates a checker over the given catalog.
func NewChecker(catalog *patterns.Catalog) *Checker {
	c := &Checker{}
	for _, d := range catalog.PhishingDomains() {
		c.domains = append(c.domains, strings.ToLower(d))
	}
	for _, k := range catalog.Keywords() {
		c.keywords = append(c.keywords, strings.ToLower(k))
	}
	return c
}

// Check scores rawURL. The blacklist is consulted first; a match
// short-circuits the keyword heuristics.
func (c *Checker) Check(rawURL string) Verdict {
	lower := strings.ToLower(rawURL)

	for _, d := range c.domains {
		if strings.Contains(lower, d) {
			return Verdict{
				IsPhishing: true,
				Confidence: ConfidenceBlacklisted,
				Reason:     fmt.Sprintf("Domain %q is on the known phishing blacklist.", d),
			}
		}
	}

	var matched []string
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			matched = append(matched, k)
		}
	}

	switch {
	case len(matched) >= 2:
		return Verdict{
			IsPhishing: true,
			Confidence: ConfidenceMultiKeyword,
			Reason:     "URL contains multiple suspicious keywords: " + strings.Join(matched, ", "),
		}
	case len(matched) == 1:
		return Verdict{
			IsPhishing: false,
			Confidence: ConfidenceSingleKeyword,
			Reason:     fmt.Sprintf("URL contains potentially suspicious keyword %q but is not definitively malicious.", matched[0]),
		}
	default:
		return Verdict{
			IsPhishing: false,
			Confidence: ConfidenceClean,
			Reason:     "No known phishing indicators detected.",
		}
	}
}

// Validate checks that raw is an absolute URL with a scheme and host.
func Validate(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: scheme and host are required", ErrInvalidInput)
	}
	return nil
}

// Hostname returns the host part of raw, or raw itself when it does not parse.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
