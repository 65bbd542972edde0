package alerts

import (
	"context"
	"time"

	"github.com/mbd888/walletguard/internal/idgen"
)

// Fixtures returns the demo alerts shown on a fresh dashboard, timestamped
// relative to now.
func Fixtures(now time.Time) []*Alert {
	ago := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }
	return []*Alert{
		{
			ID:        idgen.New(),
			Type:      TypeThreat,
			Title:     "High-Risk Transaction Detected",
			Message:   "A transaction to a known drainer contract was intercepted and blocked automatically.",
			Timestamp: ago(2 * time.Minute),
		},
		{
			ID:        idgen.New(),
			Type:      TypePhishing,
			Title:     "Phishing Attempt Blocked",
			Message:   "We detected and blocked an attempt to connect to fake-uniswap.com, a known phishing domain.",
			Timestamp: ago(30 * time.Minute),
		},
		{
			ID:        idgen.New(),
			Type:      TypeWarning,
			Title:     "Unusual Activity Detected",
			Message:   "Multiple rapid transactions detected from your wallet. If this wasn't you, please review your connected dApps.",
			Timestamp: ago(time.Hour),
			Read:      true,
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
