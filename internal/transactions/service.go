package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/walletguard/internal/advisory"
	"github.com/mbd888/walletguard/internal/alerts"
	"github.com/mbd888/walletguard/internal/contract"
	"github.com/mbd888/walletguard/internal/idgen"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/pagination"
	"github.com/mbd888/walletguard/internal/publisher"
	"github.com/mbd888/walletguard/internal/risk"
	"github.com/mbd888/walletguard/internal/traces"
	"github.com/mbd888/walletguard/internal/validation"
)

// Alerter raises user-facing alerts. Satisfied by *alerts.Service.
type Alerter interface {
	Raise(ctx context.Context, in alerts.Input) (*alerts.Alert, error)
}

// Service implements the analyze pipeline and record lifecycle.
type Service struct {
	store            Store
	analyzer         *contract.Analyzer
	scorer           *risk.Scorer
	advisor          advisory.Advisor
	alerter          Alerter
	events           publisher.Sink
	defaultNetworkID int64
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAdvisor sets the external reasoning service. Without one every
// analysis is scored deterministically.
func WithAdvisor(a advisory.Advisor) Option {
	return func(s *Service) { s.advisor = a }
}

// WithAlerter sets where high-risk and block alerts are raised.
func WithAlerter(a Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

// WithEvents sets the sink for analysis and status events.
func WithEvents(sink publisher.Sink) Option {
	return func(s *Service) { s.events = sink }
}

// WithDefaultNetworkID overrides the network id used when a request omits it.
func WithDefaultNetworkID(id int64) Option {
	return func(s *Service) {
		if id > 0 {
			s.defaultNetworkID = id
		}
	}
}

// NewService creates a new transaction service.
func NewService(store Store, analyzer *contract.Analyzer, opts ...Option) *Service {
	s := &Service{
		store:            store,
		analyzer:         analyzer,
		scorer:           risk.NewScorer(),
		advisor:          advisory.Disabled{},
		events:           publisher.Noop{},
		defaultNetworkID: DefaultNetworkID,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the request fields the engine cannot default. Address
// format is checked separately by Analyze. An empty value is accepted; the
// handler rejects bodies that omit it. Call data is never rejected, only
// sanitized.
func (r AnalyzeRequest) Validate() validation.ValidationErrors {
	return validation.Validate(
		validation.Required("from", r.From),
		validation.Required("to", r.To),
		validation.MaxLength("value", r.Value, 78),
		validation.MaxLength("gasPrice", r.GasPrice, 78),
		validation.MaxLength("gasLimit", r.GasLimit, 78),
		validation.NonNegative("networkId", r.NetworkID),
	)
}

// Analyze validates req, scores it, stores the resulting record and raises a
// threat alert when the score is high. The returned error is a
// validation.ValidationErrors, a *validation.AddressError, or an internal
// failure.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, errs
	}
	if err := validation.CheckAddress("from", req.From); err != nil {
		return nil, err
	}
	if err := validation.CheckAddress("to", req.To); err != nil {
		return nil, err
	}

	networkID := s.defaultNetworkID
	if req.NetworkID != nil && *req.NetworkID > 0 {
		networkID = *req.NetworkID
	}

	ctx, span := traces.StartSpan(ctx, "transactions.Analyze",
		traces.From(req.From), traces.To(req.To), traces.NetworkID(networkID))
	defer span.End()

	data := validation.SanitizeCallData(req.Data)
	report := s.analyzer.Analyze(data)

	opinion := advisory.Select(ctx, s.advisor, advisory.Request{
		From:        req.From,
		To:          req.To,
		Value:       req.Value,
		TokenSymbol: DefaultTokenSymbol,
		Data:        data,
		NetworkID:   networkID,
		Report:      report,
	})
	assessment := s.scorer.Score(report, opinion)

	now := s.now()
	a := &Analysis{
		ID:               idgen.New(),
		Hash:             idgen.TxHash(now),
		From:             req.From,
		To:               req.To,
		Value:            req.Value,
		TokenSymbol:      DefaultTokenSymbol,
		GasPrice:         orDefault(validation.SanitizeString(req.GasPrice, 78), DefaultGasPrice),
		GasLimit:         orDefault(validation.SanitizeString(req.GasLimit, 78), DefaultGasLimit),
		Data:             data,
		RiskScore:        assessment.Score,
		RiskLevel:        assessment.Level,
		RiskSource:       assessment.Source,
		AIReasoning:      assessment.Reasoning,
		Threats:          assessment.Threats,
		ContractAnalysis: report,
		Timestamp:        now.UnixMilli(),
		Status:           StatusPending,
		NetworkID:        networkID,
	}
	if err := s.store.Create(ctx, a); err != nil {
		traces.RecordError(span, err)
		return nil, fmt.Errorf("transactions: store analysis: %w", err)
	}

	span.SetAttributes(traces.RiskScore(a.RiskScore), traces.RiskSource(string(a.RiskSource)))
	metrics.AnalysesTotal.WithLabelValues(string(a.RiskLevel), string(a.RiskSource)).Inc()
	metrics.RiskScore.Observe(float64(a.RiskScore))
	logging.L(ctx).Info("transaction analyzed",
		"id", a.ID, "risk_score", a.RiskScore, "risk_level", a.RiskLevel,
		"source", a.RiskSource, "is_contract", report != nil)

	s.events.Publish(ctx, publisher.Event{Type: publisher.EventAnalysis, Key: a.ID, Data: a})

	if a.RiskScore >= risk.HighThreshold {
		s.raise(ctx, alerts.Input{
			Type:          alerts.TypeThreat,
			Title:         "High-Risk Transaction Detected",
			Message:       fmt.Sprintf("A transaction with risk score %d requires your review.", a.RiskScore),
			TransactionID: a.ID,
		})
	}

	return &AnalyzeResult{Analysis: a, Recommendation: assessment.Recommendation}, nil
}

// Get returns a single record.
func (s *Service) Get(ctx context.Context, id string) (*Analysis, error) {
	return s.store.Get(ctx, id)
}

// List returns records newest first. With limit <= 0 and no cursor every
// record is returned; otherwise one page plus the cursor for the next page,
// which is empty on the last page.
func (s *Service) List(ctx context.Context, limit int, cursor string) ([]*Analysis, string, error) {
	if limit <= 0 && cursor == "" {
		all, err := s.store.List(ctx, 0, nil)
		return all, "", err
	}
	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", err
	}
	limit = pagination.ClampLimit(limit)
	items, err := s.store.List(ctx, limit+1, after)
	if err != nil {
		return nil, "", err
	}
	page, next := pagination.ComputePage(items, limit, pageKey)
	return page, next, nil
}

// Approve marks a record approved.
func (s *Service) Approve(ctx context.Context, id string) (*Analysis, error) {
	return s.transition(ctx, id, StatusApproved)
}

// Block marks a record blocked and raises a threat alert for it.
func (s *Service) Block(ctx context.Context, id string) (*Analysis, error) {
	a, err := s.transition(ctx, id, StatusBlocked)
	if err != nil {
		return nil, err
	}
	s.raise(ctx, alerts.Input{
		Type:          alerts.TypeThreat,
		Title:         "Transaction Blocked",
		Message:       fmt.Sprintf("Transaction %s... was blocked due to high risk.", shortHash(a.Hash)),
		TransactionID: a.ID,
	})
	return a, nil
}

// Stats returns dashboard statistics.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) transition(ctx context.Context, id string, status Status) (*Analysis, error) {
	a, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	metrics.StatusTransitionsTotal.WithLabelValues(string(status)).Inc()
	logging.L(ctx).Info("transaction status changed", "id", a.ID, "status", status)
	s.events.Publish(ctx, publisher.Event{Type: publisher.EventTransaction, Key: a.ID, Data: a})
	return a, nil
}

// raise logs instead of failing: the record it refers to is already stored.
func (s *Service) raise(ctx context.Context, in alerts.Input) {
	if s.alerter == nil {
		return
	}
	if _, err := s.alerter.Raise(ctx, in); err != nil {
		logging.L(ctx).Error("failed to raise alert", "title", in.Title, "transaction_id", in.TransactionID, "error", err)
	}
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
