package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/logger"
	"market-data-hub/src/metrics"
	"market-data-hub/src/models"
	"market-data-hub/src/orchestrator"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// fake service
// -----------------------------------------------------------------------------

type fakeService struct {
	mu    sync.Mutex
	err   error
	calls []string

	force      bool
	start, end time.Time
	tf         models.TimeFrame
	mt         models.MarketType
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeService) GetQuote(_ context.Context, symbol string, mt models.MarketType, force bool) (models.MQuote, error) {
	f.record("GetQuote " + symbol)
	f.mu.Lock()
	f.force, f.mt = force, mt
	f.mu.Unlock()
	if f.err != nil {
		return models.MQuote{}, f.err
	}
	return models.MQuote{Symbol: symbol, Price: 101.5, Provider: "yahoo"}, nil
}

func (f *fakeService) GetQuotes(_ context.Context, symbols []string, _ models.MarketType, _ bool) (map[string]models.MQuote, error) {
	f.record("GetQuotes " + strings.Join(symbols, ","))
	out := make(map[string]models.MQuote)
	for _, s := range symbols {
		if s == "NOPE" {
			continue
		}
		out[s] = models.MQuote{Symbol: s, Price: 10, Provider: "finnhub"}
	}
	return out, nil
}

func (f *fakeService) GetHistorical(_ context.Context, symbol string, start, end time.Time, tf models.TimeFrame, _ models.MarketType, _ bool) ([]models.MOHLCV, error) {
	f.record("GetHistorical " + symbol)
	f.mu.Lock()
	f.start, f.end, f.tf = start, end, tf
	f.mu.Unlock()
	return []models.MOHLCV{{Symbol: symbol, Timestamp: start, Close: 1, TimeFrame: tf}}, nil
}

func (f *fakeService) GetLatestBar(_ context.Context, symbol string, tf models.TimeFrame, _ models.MarketType, _ bool) (models.MOHLCV, error) {
	f.record("GetLatestBar " + symbol)
	return models.MOHLCV{Symbol: symbol, TimeFrame: tf, Close: 2}, nil
}

func (f *fakeService) DetectGaps(_ context.Context, symbol string, start, end time.Time, tf models.TimeFrame, _ models.MarketType) ([]models.MGap, error) {
	f.record("DetectGaps " + symbol)
	return []models.MGap{{Symbol: symbol, TimeFrame: tf, From: start, To: end, Missing: 3}}, nil
}

func (f *fakeService) SearchSymbols(_ context.Context, query string, _ models.MarketType) ([]models.MSymbolSearchResult, error) {
	f.record("SearchSymbols " + query)
	return []models.MSymbolSearchResult{{Symbol: "AAPL", Name: "Apple Inc."}}, nil
}

func (f *fakeService) GetCompanyInfo(_ context.Context, symbol string, _ models.MarketType) (models.MCompanyInfo, error) {
	f.record("GetCompanyInfo " + symbol)
	return models.MCompanyInfo{Symbol: symbol, Name: "Apple Inc."}, nil
}

func (f *fakeService) InvalidateSymbol(_ context.Context, symbol string, tf models.TimeFrame) int64 {
	f.record(fmt.Sprintf("InvalidateSymbol %s %s", symbol, tf))
	return 4
}

func (f *fakeService) GetStatus(context.Context) models.MStatus {
	return models.MStatus{Streaming: true}
}

// -----------------------------------------------------------------------------

func newTestServer(t *testing.T, svc *fakeService) *APIServer {
	t.Helper()
	cfg := &models.MConfig{
		LogLevel: "INFO",
		Metrics:  models.MMetricsConfig{Enabled: true, Path: "/metrics"},
		Providers: []models.MProviderConfig{
			{Name: "yahoo", Enabled: true},
			{Name: "finnhub", Enabled: false},
		},
	}
	s := NewAPIServer(cfg, svc, metrics.New(prometheus.NewRegistry()), logger.NewLogger(nil, "ServerTest"))
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func do(t *testing.T, s *APIServer, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

// -----------------------------------------------------------------------------
// REST
// -----------------------------------------------------------------------------

func TestGetQuotePassesRefreshAndMarketType(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{}
	s := newTestServer(t, svc)

	// Act
	rec, body := do(t, s, http.MethodGet, "/api/quotes/AAPL?refresh=true&market_type=us_stock")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "AAPL", body["symbol"])
	require.Equal(t, 101.5, body["price"])
	require.True(t, svc.force)
	require.Equal(t, models.MarketUSStock, svc.mt)
}

func TestGetQuotesListsMissingSymbols(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{}
	s := newTestServer(t, svc)

	// Act
	rec, body := do(t, s, http.MethodGet, "/api/quotes?symbols=AAPL,%20NOPE,AAPL,,MSFT")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["quotes"], 2)
	require.Equal(t, []any{"NOPE"}, body["missing"])
	require.Equal(t, []string{"GetQuotes AAPL,NOPE,MSFT"}, svc.calls)
}

func TestMalformedParametersAreRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{})

	for _, target := range []string{
		"/api/quotes",
		"/api/quotes/AAPL?market_type=STONKS",
		"/api/historical/AAPL?timeframe=2h",
		"/api/historical/AAPL?start=yesterday",
		"/api/search",
		"/api/cache/AAPL?timeframe=3d",
	} {
		method := http.MethodGet
		if strings.HasPrefix(target, "/api/cache") {
			method = http.MethodDelete
		}
		rec, body := do(t, s, method, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.NotEmpty(t, body["error"], target)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: empty symbol", orchestrator.ErrInvalidRequest), http.StatusBadRequest},
		{"not found", &helpers.NoProviderError{Kind: helpers.NoProviderSymbolNotFound, Operation: "get_quote"}, http.StatusNotFound},
		{"degraded", &helpers.NoProviderError{Kind: helpers.NoProviderDegraded, Operation: "get_quote"}, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("get_quote: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"exhausted", &helpers.NoProviderError{Operation: "get_quote", Last: errors.New("boom")}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			s := newTestServer(t, &fakeService{err: tc.err})

			// Act
			rec, body := do(t, s, http.MethodGet, "/api/quotes/AAPL")

			// Assert
			require.Equal(t, tc.want, rec.Code)
			require.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestHistoricalDefaultsToThirtyDailyDays(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{}
	s := newTestServer(t, svc)

	// Act
	rec, body := do(t, s, http.MethodGet, "/api/historical/AAPL?end=2024-03-01")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["bars"], 1)
	require.Equal(t, models.TimeFrame1Day, svc.tf)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), svc.end)
	require.Equal(t, 30*24*time.Hour, svc.end.Sub(svc.start))
}

func TestHistoricalAcceptsEpochBounds(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{}
	s := newTestServer(t, svc)

	// Act
	rec, _ := do(t, s, http.MethodGet, "/api/historical/AAPL?start=1704067200&end=1704153600000&timeframe=1h")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.TimeFrame1Hour, svc.tf)
	require.Equal(t, time.Unix(1704067200, 0).UTC(), svc.start)
	require.Equal(t, time.Unix(1704153600, 0).UTC(), svc.end)
}

func TestMetaEndpoints(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{}
	s := newTestServer(t, svc)

	// Act
	latest, latestBody := do(t, s, http.MethodGet, "/api/historical/AAPL/latest?timeframe=5min")
	gaps, gapsBody := do(t, s, http.MethodGet, "/api/historical/AAPL/gaps")
	search, searchBody := do(t, s, http.MethodGet, "/api/search?q=apple")
	company, companyBody := do(t, s, http.MethodGet, "/api/company/AAPL")
	invalidate, invalidateBody := do(t, s, http.MethodDelete, "/api/cache/AAPL?timeframe=1day")
	status, statusBody := do(t, s, http.MethodGet, "/api/status")

	// Assert
	require.Equal(t, http.StatusOK, latest.Code)
	require.Equal(t, "5min", latestBody["timeframe"])
	require.Equal(t, http.StatusOK, gaps.Code)
	require.Len(t, gapsBody["gaps"], 1)
	require.Equal(t, http.StatusOK, search.Code)
	require.Equal(t, "apple", searchBody["query"])
	require.Equal(t, http.StatusOK, company.Code)
	require.Equal(t, "Apple Inc.", companyBody["name"])
	require.Equal(t, http.StatusOK, invalidate.Code)
	require.Equal(t, 4.0, invalidateBody["removed"])
	require.Contains(t, svc.calls, "InvalidateSymbol AAPL 1day")
	require.Equal(t, http.StatusOK, status.Code)
	require.Equal(t, true, statusBody["streaming"])
}

func TestConfigListsEnabledProviders(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestServer(t, &fakeService{})

	// Act
	rec, body := do(t, s, http.MethodGet, "/api/config")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"yahoo"}, body["providers"])
	require.Len(t, body["timeframes"], 8)
}

func TestMetricsAndCors(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestServer(t, &fakeService{})

	// Act
	metricsRec, _ := do(t, s, http.MethodGet, "/metrics")
	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	corsRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(corsRec, req)

	// Assert
	require.Equal(t, http.StatusOK, metricsRec.Code)
	require.Equal(t, http.StatusNoContent, corsRec.Code)
	require.Equal(t, "http://127.0.0.1:5173", corsRec.Header().Get("Access-Control-Allow-Origin"))
}

// -----------------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------------

func dialHub(t *testing.T, s *APIServer) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.MStreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg models.MStreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketSnapshotThenFilteredQuotes(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{}
	s := newTestServer(t, svc)
	conn := dialHub(t, s)

	// Act
	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbols: []string{"AAPL"}}))
	snapshot := readMessage(t, conn)
	s.Broadcast(models.MQuote{Symbol: "MSFT", Price: 400})
	s.Broadcast(models.MQuote{Symbol: "AAPL", Price: 190})
	update := readMessage(t, conn)

	// Assert
	require.Equal(t, models.StreamTypeSnapshot, snapshot.Type)
	require.Equal(t, 10.0, snapshot.Quotes["AAPL"].Price, "unstreamed symbol is looked up")
	require.Equal(t, models.StreamTypeQuote, update.Type)
	require.Len(t, update.Quotes, 1)
	require.Equal(t, 190.0, update.Quotes["AAPL"].Price)

	_, health := do(t, s, http.MethodGet, "/api/health")
	require.Equal(t, 1.0, health["connections"])
	require.NotZero(t, health["latest_update"])
}

func TestWebSocketSnapshotUsesStreamedQuotes(t *testing.T) {
	t.Parallel()

	// Arrange
	svc := &fakeService{}
	s := newTestServer(t, svc)
	conn := dialHub(t, s)
	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe"}))
	require.Equal(t, models.StreamTypeSnapshot, readMessage(t, conn).Type)
	s.Broadcast(models.MQuote{Symbol: "MSFT", Price: 400})
	require.Equal(t, 400.0, readMessage(t, conn).Quotes["MSFT"].Price)

	// Act
	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbols: []string{"MSFT"}}))
	snapshot := readMessage(t, conn)
	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "rewind"}))
	failure := readMessage(t, conn)

	// Assert
	require.Equal(t, 400.0, snapshot.Quotes["MSFT"].Price)
	require.NotContains(t, svc.calls, "GetQuotes MSFT")
	require.Equal(t, models.StreamTypeError, failure.Type)
	require.Contains(t, failure.Message, "rewind")
}

func TestStopDisconnectsClients(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestServer(t, &fakeService{})
	conn := dialHub(t, s)
	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe"}))
	readMessage(t, conn)

	// Act
	require.NoError(t, s.Stop())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()

	// Assert
	require.Error(t, err)
	require.NotPanics(t, func() { s.Broadcast(models.MQuote{Symbol: "AAPL", Price: 1}) })
}
