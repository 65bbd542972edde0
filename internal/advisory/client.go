package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mbd888/walletguard/internal/circuitbreaker"
	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/risk"
	"github.com/mbd888/walletguard/internal/traces"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
	DefaultTimeout = 8 * time.Second

	maxTokens = 500
)

// Config describes an OpenAI-compatible chat-completions endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the reasoning service. It is safe for concurrent use.
type Client struct {
	cfg        Config
	api        *openai.Client
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	breakerKey string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker skips calls while the breaker is open for this endpoint.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client. Empty config fields take the package defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		breakerKey: "advisory:" + cfg.BaseURL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

// BreakerKey is the circuit breaker key used for this endpoint.
func (c *Client) BreakerKey() string { return c.breakerKey }

// Advise makes a single time-bounded attempt to obtain an opinion.
func (c *Client) Advise(ctx context.Context, req Request) Result {
	if c.breaker != nil && !c.breaker.Allow(c.breakerKey) {
		return Result{Err: ErrCircuitOpen}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx, span := traces.StartSpan(ctx, "advisory.Advise", traces.Model(c.cfg.Model), traces.To(req.To))
	defer span.End()

	start := time.Now()
	op, err := c.call(ctx, req)
	metrics.AdvisoryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		traces.RecordError(span, err)
		if c.breaker != nil {
			c.breaker.RecordFailure(c.breakerKey)
		}
		return Result{Err: err}
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess(c.breakerKey)
	}
	span.SetAttributes(traces.RiskSource(string(risk.SourceAdvisory)))
	c.logger.Debug("advisory opinion received", "score", op.Score, "threats", len(op.Threats))
	return Result{Opinion: op}
}

func (c *Client) call(ctx context.Context, req Request) (*risk.Opinion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformed)
	}
	return ParseOpinion(resp.Choices[0].Message.Content)
}

// classify maps a client error onto the package sentinels. A 2xx body that
// does not decode as a completion is malformed; everything else is treated
// as the service being unavailable.
func classify(err error) error {
	var (
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
		urlErr    *url.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		return fmt.Errorf("%w: status %d", ErrUnavailable, reqErr.HTTPStatusCode)
	case errors.As(err, &urlErr):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: decode completion: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// opinionSchema uses pointers so that missing fields are distinguishable
// from zero values.
type opinionSchema struct {
	RiskScore *float64  `json:"riskScore"`
	Reasoning *string   `json:"reasoning"`
	Threats   *[]string `json:"threats"`
}

// ParseOpinion validates the service's JSON answer. All three fields must be
// present with the right types and reasoning must be non-empty. The score is
// returned as given; the scorer clamps it.
func ParseOpinion(content string) (*risk.Opinion, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformed)
	}

	var s opinionSchema
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var missing []string
	if s.RiskScore == nil {
		missing = append(missing, "riskScore")
	}
	if s.Reasoning == nil || strings.TrimSpace(*s.Reasoning) == "" {
		missing = append(missing, "reasoning")
	}
	if s.Threats == nil {
		missing = append(missing, "threats")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}

	threats := make([]string, 0, len(*s.Threats))
	for _, t := range *s.Threats {
		if t = strings.TrimSpace(t); t != "" {
			threats = append(threats, t)
		}
	}
	return &risk.Opinion{
		Score:     *s.RiskScore,
		Reasoning: *s.Reasoning,
		Threats:   threats,
	}, nil
}
