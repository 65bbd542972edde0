package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mbd888/walletguard/internal/alerts"
	"github.com/mbd888/walletguard/internal/phishing"
	"github.com/mbd888/walletguard/internal/transactions"
)

// Config holds the configuration for connecting to the WalletGuard API.
type Config struct {
	APIURL  string // Base URL, e.g. "http://localhost:3001"
	Timeout time.Duration
}

// Client is a thin HTTP client for the WalletGuard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// apiError is the error body returned by the API.
type apiError struct {
	Error   string `json:"error"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func (e apiError) String() string {
	if len(e.Details) == 0 {
		return e.Error
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = d.Field + ": " + d.Message
	}
	return e.Error + " (" + strings.Join(parts, "; ") + ")"
}

// do sends a request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Analyze scores a proposed transaction.
func (c *Client) Analyze(ctx context.Context, req transactions.AnalyzeRequest) (*transactions.AnalyzeResult, error) {
	var out transactions.AnalyzeResult
	if err := c.do(ctx, http.MethodPost, "/api/transactions/analyze", nil, req, &out); err != nil {
		return nil, err
	}
	if out.Analysis == nil {
		return nil, fmt.Errorf("decode response: missing analysis")
	}
	return &out, nil
}

// CheckURL asks for a phishing verdict on rawURL.
func (c *Client) CheckURL(ctx context.Context, rawURL string) (*phishing.Verdict, error) {
	var out phishing.Verdict
	if err := c.do(ctx, http.MethodPost, "/api/phishing/check", nil, phishing.CheckRequest{URL: rawURL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns the dashboard statistics.
func (c *Client) Stats(ctx context.Context) (*transactions.Stats, error) {
	var out transactions.Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transactions returns the most recent analyses, newest first.
func (c *Client) Transactions(ctx context.Context, limit int) ([]*transactions.Analysis, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []*transactions.Analysis
	if err := c.do(ctx, http.MethodGet, "/api/transactions", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Alerts returns all alerts, newest first.
func (c *Client) Alerts(ctx context.Context) ([]*alerts.Alert, error) {
	var out []*alerts.Alert
	if err := c.do(ctx, http.MethodGet, "/api/alerts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
