// Package advisory calls an external reasoning service for a second opinion
// on a transaction and decides when the deterministic scorer must be used
// instead.
//
// The service is optional and untrusted. Every failure mode (not configured,
// circuit open, timeout, transport error, non-2xx status, undecodable or
// schema-violating output) yields a Result carrying an error, and Select turns
// that into "no opinion" so the scorer falls back. Nothing here ever surfaces
// an error to the API caller.
package advisory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mbd888/walletguard/internal/contract"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/risk"
)

var (
	// ErrUnavailable covers transport errors, timeouts and non-2xx answers.
	ErrUnavailable = errors.New("advisory service unavailable")
	// ErrMalformed means the service answered but the opinion failed schema validation.
	ErrMalformed = errors.New("advisory response malformed")
	// ErrDisabled means no service is configured.
	ErrDisabled = errors.New("advisory service not configured")
	// ErrCircuitOpen means the call was skipped because the service keeps failing.
	ErrCircuitOpen = errors.New("advisory circuit open")
)

// Request is the context sent to the service for one transaction.
type Request struct {
	From        string
	To          string
	Value       string
	TokenSymbol string
	Data        string
	NetworkID   int64
	Report      *contract.Report // nil for plain transfers
}

// Result is either a well-formed opinion or the reason there is none.
// Exactly one of Opinion and Err is set.
type Result struct {
	Opinion *risk.Opinion
	Err     error
}

// Advisor produces an advisory opinion. Implementations make at most one
// attempt per call and honor ctx cancellation.
type Advisor interface {
	Advise(ctx context.Context, req Request) Result
}

// Disabled is the Advisor used when no service is configured.
type Disabled struct{}

func (Disabled) Advise(context.Context, Request) Result {
	return Result{Err: ErrDisabled}
}

// Select asks a for an opinion and returns it, or nil when the scorer should
// use its deterministic path. Failures are logged and counted, never returned.
func Select(ctx context.Context, a Advisor, req Request) *risk.Opinion {
	if a == nil {
		a = Disabled{}
	}
	res := a.Advise(ctx, req)
	if res.Err == nil && res.Opinion == nil {
		res.Err = ErrMalformed
	}
	outcome := Outcome(res.Err)
	metrics.AdvisoryRequestsTotal.WithLabelValues(outcome).Inc()

	if res.Err != nil {
		level := slog.LevelWarn
		if errors.Is(res.Err, ErrDisabled) {
			level = slog.LevelDebug
		}
		logging.L(ctx).Log(ctx, level, "advisory unavailable, using deterministic score",
			"outcome", outcome, "error", res.Err)
		return nil
	}
	return res.Opinion
}

// Outcome labels err for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	case errors.Is(err, ErrCircuitOpen):
		return "skipped"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "unavailable"
	}
}
