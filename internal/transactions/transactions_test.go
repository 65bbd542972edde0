package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/walletguard/internal/advisory"
	"github.com/mbd888/walletguard/internal/alerts"
	"github.com/mbd888/walletguard/internal/contract"
	"github.com/mbd888/walletguard/internal/patterns"
	"github.com/mbd888/walletguard/internal/publisher"
	"github.com/mbd888/walletguard/internal/risk"
	"github.com/mbd888/walletguard/internal/validation"
)

const (
	validFrom = "0x742d35Cc6634C0532925a3b844Bc9e7595f1b3B7"
	validTo   = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
	// approve(address,uint256) selector followed by one argument word.
	approveCall = "0x095ea7b3000000000000000000000000deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAdvisor struct {
	mu    sync.Mutex
	res   advisory.Result
	calls int
	last  advisory.Request
}

func (f *fakeAdvisor) Advise(_ context.Context, req advisory.Request) advisory.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.res
}

type fakeAlerter struct {
	mu     sync.Mutex
	inputs []alerts.Input
	err    error
}

func (f *fakeAlerter) Raise(_ context.Context, in alerts.Input) (*alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &alerts.Alert{ID: "alert-" + strconv.Itoa(len(f.inputs)), Type: in.Type, Title: in.Title}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []publisher.Event
}

func (r *recordingSink) Publish(_ context.Context, ev publisher.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

type fixture struct {
	svc     *Service
	store   *MemoryStore
	advisor *fakeAdvisor
	alerter *fakeAlerter
	sink    *recordingSink
}

// newFixture builds a service over the seeded store. The catalog learns the
// approve selector so hex call data can trip the drainer heuristic.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := patterns.Default().Extend(patterns.Extension{Drainer: []string{"095ea7b3"}})
	require.NoError(t, err)

	f := &fixture{
		store:   NewMemoryStore(),
		advisor: &fakeAdvisor{res: advisory.Result{Err: advisory.ErrDisabled}},
		alerter: &fakeAlerter{},
		sink:    &recordingSink{},
	}
	require.NoError(t, Seed(context.Background(), f.store, testNow))

	f.svc = NewService(f.store, contract.NewAnalyzer(catalog),
		WithAdvisor(f.advisor),
		WithAlerter(f.alerter),
		WithEvents(f.sink),
	)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/api"))
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- service ---

func TestAnalyze_PlainTransferDefaults(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{From: validFrom, To: validTo, Value: "1.0"})
	require.NoError(t, err)

	a := res.Analysis
	assert.Equal(t, 20, a.RiskScore)
	assert.Equal(t, risk.LevelSafe, a.RiskLevel)
	assert.Equal(t, risk.SourceDeterministic, a.RiskSource)
	assert.Equal(t, risk.RecommendApprove, res.Recommendation)
	assert.Equal(t, risk.FallbackReasoning, a.AIReasoning)
	assert.Empty(t, a.Threats)
	assert.Nil(t, a.ContractAnalysis)

	assert.Equal(t, "MATIC", a.TokenSymbol)
	assert.Equal(t, "30", a.GasPrice)
	assert.Equal(t, "21000", a.GasLimit)
	assert.Equal(t, "0x", a.Data)
	assert.Equal(t, int64(137), a.NetworkID)
	assert.Equal(t, StatusPending, a.Status)
	assert.False(t, a.PhishingDetected)
	assert.Equal(t, testNow.UnixMilli(), a.Timestamp)
	assert.True(t, strings.HasPrefix(a.Hash, "0x"+strconv.FormatInt(testNow.UnixMilli(), 16)))
	assert.Len(t, a.Hash, 2+len(strconv.FormatInt(testNow.UnixMilli(), 16))+8)

	stored, err := f.svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Hash, stored.Hash)

	assert.Empty(t, f.alerter.inputs)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, publisher.EventAnalysis, f.sink.events[0].Type)
	assert.Equal(t, a.ID, f.sink.events[0].Key)
}

func TestAnalyze_DrainerCallIsMedium(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{
		From: validFrom, To: validTo, Value: "0", Data: approveCall,
		GasPrice: "45", GasLimit: "60000",
	})
	require.NoError(t, err)

	a := res.Analysis
	assert.Equal(t, 55, a.RiskScore)
	assert.Equal(t, risk.LevelMedium, a.RiskLevel)
	assert.Equal(t, risk.RecommendReview, res.Recommendation)
	assert.Equal(t, []string{risk.ThreatDrainer, risk.ThreatUnverified}, a.Threats)
	require.NotNil(t, a.ContractAnalysis)
	assert.True(t, a.ContractAnalysis.HasDrainerPatterns)
	assert.False(t, a.ContractAnalysis.IsVerified)
	assert.Equal(t, "45", a.GasPrice)
	assert.Equal(t, "60000", a.GasLimit)
	assert.Empty(t, f.alerter.inputs)

	assert.Equal(t, 1, f.advisor.calls)
	assert.Same(t, a.ContractAnalysis, f.advisor.last.Report)
	assert.Equal(t, "MATIC", f.advisor.last.TokenSymbol)
}

func TestAnalyze_MalformedCallDataIsCoerced(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{
		From: validFrom, To: validTo, Value: "1", Data: "0xnot-hex-approve",
	})
	require.NoError(t, err)
	assert.Equal(t, "0x", res.Analysis.Data)
	assert.Nil(t, res.Analysis.ContractAnalysis)
	assert.Equal(t, 20, res.Analysis.RiskScore)
}

func TestAnalyze_AdvisoryOpinionReplacesScoreAndRaisesAlert(t *testing.T) {
	f := newFixture(t)
	f.advisor.res = advisory.Result{Opinion: &risk.Opinion{
		Score:     150,
		Reasoning: "Recipient is a known drainer.",
		Threats:   []string{"Known drainer"},
	}}

	network := int64(80002)
	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{
		From: validFrom, To: validTo, Value: "3", NetworkID: &network,
	})
	require.NoError(t, err)

	a := res.Analysis
	assert.Equal(t, 100, a.RiskScore)
	assert.Equal(t, risk.LevelHigh, a.RiskLevel)
	assert.Equal(t, risk.SourceAdvisory, a.RiskSource)
	assert.Equal(t, risk.RecommendBlock, res.Recommendation)
	assert.Equal(t, "Recipient is a known drainer.", a.AIReasoning)
	assert.Equal(t, int64(80002), a.NetworkID)
	assert.Equal(t, int64(80002), f.advisor.last.NetworkID)

	require.Len(t, f.alerter.inputs, 1)
	in := f.alerter.inputs[0]
	assert.Equal(t, alerts.TypeThreat, in.Type)
	assert.Equal(t, "High-Risk Transaction Detected", in.Title)
	assert.Equal(t, "A transaction with risk score 100 requires your review.", in.Message)
	assert.Equal(t, a.ID, in.TransactionID)
}

func TestAnalyze_AdvisoryFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.advisor.res = advisory.Result{Err: advisory.ErrUnavailable}

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{
		From: validFrom, To: validTo, Value: "1", Data: approveCall,
	})
	require.NoError(t, err)
	assert.Equal(t, 55, res.Analysis.RiskScore)
	assert.Equal(t, risk.SourceDeterministic, res.Analysis.RiskSource)
}

func TestAnalyze_AlertFailureDoesNotFailAnalysis(t *testing.T) {
	f := newFixture(t)
	f.advisor.res = advisory.Result{Opinion: &risk.Opinion{Score: 90, Reasoning: "bad", Threats: []string{}}}
	f.alerter.err = errors.New("alerts store down")

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{From: validFrom, To: validTo, Value: "1"})
	require.NoError(t, err)
	assert.Equal(t, 90, res.Analysis.RiskScore)
}

func TestAnalyze_InvalidAddressRejectedBeforeEngine(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{From: "0x0", To: validTo, Value: "1"})
	require.ErrorIs(t, err, validation.ErrInvalidAddress)
	var aerr *validation.AddressError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "from", aerr.Field)

	_, err = f.svc.Analyze(context.Background(), AnalyzeRequest{From: validFrom, To: validTo + "0", Value: "1"})
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "to", aerr.Field)

	assert.Zero(t, f.advisor.calls)
	all, _, err := f.svc.List(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestAnalyze_MissingFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{From: validFrom})
	var verrs validation.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "to", verrs[0].Field)
}

func TestAnalyze_EmptyValueAccepted(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{From: validFrom, To: validTo, Value: ""})
	require.NoError(t, err)
	assert.Equal(t, "", res.Analysis.Value)
	assert.Equal(t, 20, res.Analysis.RiskScore)
}

func TestAnalyze_LargeCallDataIsAnalyzed(t *testing.T) {
	f := newFixture(t)
	data := "0x" + strings.Repeat("ab", 50001)

	res, err := f.svc.Analyze(context.Background(), AnalyzeRequest{From: validFrom, To: validTo, Value: "1", Data: data})
	require.NoError(t, err)

	a := res.Analysis
	assert.Equal(t, data, a.Data)
	require.NotNil(t, a.ContractAnalysis)
	assert.Contains(t, a.ContractAnalysis.RiskIndicators, contract.IndicatorLarge)
	assert.Equal(t, 1, f.advisor.calls)
}

func TestBlock_RaisesAlert(t *testing.T) {
	f := newFixture(t)
	target := pendingFixture(t, f, "0xabcdef12")

	a, err := f.svc.Block(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, a.Status)

	require.Len(t, f.alerter.inputs, 1)
	in := f.alerter.inputs[0]
	assert.Equal(t, "Transaction Blocked", in.Title)
	assert.Equal(t, "Transaction 0xabcdef12... was blocked due to high risk.", in.Message)
	assert.Equal(t, target.ID, in.TransactionID)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, publisher.EventTransaction, f.sink.events[0].Type)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	target := pendingFixture(t, f, "0x98765432")

	a, err := f.svc.Approve(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, a.Status)
	assert.Empty(t, f.alerter.inputs)

	_, err = f.svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Block(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.alerter.inputs)
}

func TestStats_Seeded(t *testing.T) {
	f := newFixture(t)

	st, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalTransactionsScanned)
	assert.Equal(t, 1, st.ThreatsBlocked)
	assert.Equal(t, 52.4, st.AverageRiskScore)
	assert.Equal(t, 4, st.ActiveProtections)
}

func TestComputeStats_Empty(t *testing.T) {
	st := ComputeStats(nil)
	assert.Equal(t, &Stats{ActiveProtections: 4}, st)
}

func TestComputeStats_Rounding(t *testing.T) {
	st := ComputeStats([]*Analysis{{RiskScore: 10}, {RiskScore: 20}, {RiskScore: 21}})
	assert.Equal(t, 17.0, st.AverageRiskScore)

	st = ComputeStats([]*Analysis{{RiskScore: 1}, {RiskScore: 2}, {RiskScore: 2}})
	assert.Equal(t, 1.7, st.AverageRiskScore)
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)

	all, next, err := f.svc.List(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Timestamp, all[i].Timestamp)
	}
	assert.Equal(t, 95, all[0].RiskScore)
	assert.Equal(t, 22, all[4].RiskScore)
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page1, next, err := f.svc.List(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, next)

	page2, next, err := f.svc.List(ctx, 2, next)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEmpty(t, next)

	page3, next, err := f.svc.List(ctx, 2, next)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, next)

	seen := map[string]bool{}
	for _, p := range [][]*Analysis{page1, page2, page3} {
		for _, a := range p {
			assert.False(t, seen[a.ID], "duplicate %s", a.ID)
			seen[a.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	f := newFixture(t)
	target := pendingFixture(t, f, "0xabcdef12")

	got, err := f.store.Get(context.Background(), target.ID)
	require.NoError(t, err)
	got.Threats[0] = "mutated"
	got.ContractAnalysis.SuspiciousFunctions[0] = "mutated"

	again, err := f.store.Get(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unlimited token approval detected", again.Threats[0])
	assert.Equal(t, "approve", again.ContractAnalysis.SuspiciousFunctions[0])
}

func pendingFixture(t *testing.T, f *fixture, hashPrefix string) *Analysis {
	t.Helper()
	all, _, err := f.svc.List(context.Background(), 0, "")
	require.NoError(t, err)
	for _, a := range all {
		if strings.HasPrefix(a.Hash, hashPrefix) {
			return a
		}
	}
	t.Fatalf("no fixture with hash prefix %s", hashPrefix)
	return nil
}

// --- handlers ---

func TestHandler_Stats(t *testing.T) {
	f := newFixture(t)
	w := doJSON(f.router(), http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalTransactionsScanned":5,"threatsBlocked":1,"averageRiskScore":52.4,"activeProtections":4}`, w.Body.String())
}

func TestHandler_ListAndPaginate(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := doJSON(r, http.MethodGet, "/api/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 5)
	assert.Empty(t, w.Header().Get(NextCursorHeader))

	w = doJSON(r, http.MethodGet, "/api/transactions?limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page []Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page, 3)
	next := w.Header().Get(NextCursorHeader)
	require.NotEmpty(t, next)

	w = doJSON(r, http.MethodGet, "/api/transactions?limit=3&cursor="+next, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page, 2)

	w = doJSON(r, http.MethodGet, "/api/transactions?cursor=!!!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetNotFound(t *testing.T) {
	f := newFixture(t)
	w := doJSON(f.router(), http.MethodGet, "/api/transactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Transaction not found"}`, w.Body.String())
}

func TestHandler_Analyze(t *testing.T) {
	f := newFixture(t)

	w := doJSON(f.router(), http.MethodPost, "/api/transactions/analyze", map[string]interface{}{
		"from": validFrom, "to": validTo, "value": "0.25", "data": approveCall,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Analysis       map[string]interface{} `json:"analysis"`
		Recommendation string                 `json:"recommendation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "review", body.Recommendation)
	assert.Equal(t, float64(55), body.Analysis["riskScore"])
	assert.Equal(t, "medium", body.Analysis["riskLevel"])
	assert.Equal(t, "pending", body.Analysis["status"])
	assert.Equal(t, float64(137), body.Analysis["networkId"])
	assert.Contains(t, body.Analysis, "contractAnalysis")
	assert.Contains(t, body.Analysis, "aiReasoning")
}

func TestHandler_AnalyzeEmptyValueAndLargeData(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := doJSON(r, http.MethodPost, "/api/transactions/analyze", map[string]interface{}{
		"from": validFrom, "to": validTo, "value": "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/transactions/analyze", map[string]interface{}{
		"from": validFrom, "to": validTo, "value": "0", "data": "0x" + strings.Repeat("60", 60000),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), contract.IndicatorLarge)
}

func TestHandler_AnalyzeInvalidAddress(t *testing.T) {
	f := newFixture(t)

	w := doJSON(f.router(), http.MethodPost, "/api/transactions/analyze", map[string]interface{}{
		"from": "0x0", "to": validTo, "value": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid 'from' address format"}`, w.Body.String())
	assert.Zero(t, f.advisor.calls)
}

func TestHandler_AnalyzeInvalidBody(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := doJSON(r, http.MethodPost, "/api/transactions/analyze", map[string]interface{}{"from": validFrom})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid request", body["error"])
	assert.Len(t, body["details"], 2)

	w = doJSON(r, http.MethodPost, "/api/transactions/analyze", map[string]interface{}{
		"from": validFrom, "to": validTo, "value": "1", "networkId": "polygon",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request")
}

func TestHandler_ApproveAndBlock(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	target := pendingFixture(t, f, "0x98765432")

	w := doJSON(r, http.MethodPost, "/api/transactions/"+target.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, StatusApproved, got.Status)

	w = doJSON(r, http.MethodPost, "/api/transactions/"+target.ID+"/block", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, StatusBlocked, got.Status)
	require.Len(t, f.alerter.inputs, 1)
	assert.Equal(t, "Transaction 0x98765432... was blocked due to high risk.", f.alerter.inputs[0].Message)

	w = doJSON(r, http.MethodPost, "/api/transactions/missing/block", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Transaction not found"}`, w.Body.String())
}

type failingStore struct{ *MemoryStore }

func (failingStore) Stats(context.Context) (*Stats, error) { return nil, errors.New("db down") }

func (failingStore) Create(context.Context, *Analysis) error { return errors.New("db down") }

func TestHandler_InternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(failingStore{NewMemoryStore()}, contract.NewAnalyzer(patterns.Default()))
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"))

	w := doJSON(r, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch stats"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/transactions/analyze", map[string]interface{}{
		"from": validFrom, "to": validTo, "value": "1",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to analyze transaction"}`, w.Body.String())
}
