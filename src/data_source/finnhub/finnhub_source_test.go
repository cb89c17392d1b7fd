package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
	"market-data-hub/src/network"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *FinnhubSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	nm := network.NewAsyncNetworkManager(models.MNetworkConfig{RequestTimeout: 5}, logger.NewLogger(nil, "NetworkTest"))
	nm.BaseDelay = time.Millisecond
	return NewFinnhubSource(models.MProviderConfig{
		Name:      "finnhub",
		APIKey:    "secret",
		BaseURL:   srv.URL,
		StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, nm, nil)
}

func TestGetQuoteSendsTokenAndMapsFields(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Finnhub-Token"))
		require.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"c":185.5,"d":1.5,"dp":0.815,"h":186.1,"l":183.2,"o":184.2,"pc":184,"t":1704898800}`))
	})

	// Act
	q, err := s.GetQuote(t.Context(), "AAPL")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, 185.5, q.Price)
	require.Equal(t, 1.5, q.Change)
	require.Equal(t, 0.815, q.ChangePercent)
	require.Equal(t, 184.0, q.PreviousClose)
	require.Equal(t, 186.1, *q.DayHigh)
	require.Equal(t, time.Unix(1704898800, 0).UTC(), q.Timestamp)
}

func TestGetQuoteZerosMeanNoData(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})

	// Act
	_, err := s.GetQuote(t.Context(), "NOPE")

	// Assert
	var target *helpers.DataNotAvailableError
	require.ErrorAs(t, err, &target)
}

func TestRejectedKeyIsAuthenticationError(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	// Act
	_, err := s.GetQuote(t.Context(), "AAPL")

	// Assert
	var target *helpers.AuthenticationError
	require.ErrorAs(t, err, &target)
	require.Equal(t, "finnhub", target.Provider)
}

func TestGetQuotesIsBestEffort(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "AAPL" {
			_, _ = w.Write([]byte(`{"c":185.5,"t":1704898800}`))
			return
		}
		_, _ = w.Write([]byte(`{"c":0,"t":0}`))
	})

	// Act
	quotes, err := s.GetQuotes(t.Context(), []string{"AAPL", "NOPE"})
	_, allFailed := s.GetQuotes(t.Context(), []string{"NOPE"})

	// Assert
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Error(t, allFailed)
}

func TestGetHistoricalBuildsBarsFromCandles(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stock/candle", r.URL.Path)
		require.Equal(t, "D", r.URL.Query().Get("resolution"))
		_, _ = w.Write([]byte(`{"s":"ok","t":[1704726000,1704812400],"o":[183,184.1],"h":[184.5,185],"l":[182.4,183.5],"c":[183.9,184],"v":[38000000,40000000]}`))
	})

	// Act
	bars, err := s.GetHistorical(t.Context(), "AAPL", time.Unix(1704700000, 0), time.Unix(1704900000, 0), models.TimeFrame1Day)

	// Assert
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, 183.9, bars[0].Close)
	require.Equal(t, 185.0, bars[1].High)
	require.Equal(t, "finnhub", bars[1].Provider)
}

func TestGetHistoricalNoData(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"s":"no_data"}`))
	})

	// Act
	_, err := s.GetHistorical(t.Context(), "AAPL", time.Unix(1704700000, 0), time.Unix(1704900000, 0), models.TimeFrame1Hour)

	// Assert
	var target *helpers.DataNotAvailableError
	require.ErrorAs(t, err, &target)
}

func TestCompanyInfoAndSearch(t *testing.T) {
	t.Parallel()

	// Arrange
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stock/profile2":
			_, _ = w.Write([]byte(`{"country":"US","currency":"usd","exchange":"NASDAQ NMS","finnhubIndustry":"Technology","marketCapitalization":2900000,"name":"Apple Inc","ticker":"AAPL","weburl":"https://www.apple.com/"}`))
		case "/search":
			_, _ = w.Write([]byte(`{"count":2,"result":[{"description":"APPLE INC","displaySymbol":"AAPL","symbol":"AAPL","type":"Common Stock"},{"description":"SPDR S&P 500","displaySymbol":"SPY","symbol":"SPY","type":"ETP"}]}`))
		}
	})

	// Act
	info, infoErr := s.GetCompanyInfo(t.Context(), "AAPL")
	found, searchErr := s.SearchSymbols(t.Context(), "apple")

	// Assert
	require.NoError(t, infoErr)
	require.Equal(t, "Apple Inc", info.Name)
	require.Equal(t, "USD", info.Currency)
	require.Equal(t, 2.9e12, info.MarketCap)

	require.NoError(t, searchErr)
	require.Len(t, found, 2)
	require.Equal(t, models.MarketUSStock, found[0].MarketType)
	require.Equal(t, models.MarketETF, found[1].MarketType)
}

func TestStreamRelaysTradesAndEndsOnCancel(t *testing.T) {
	t.Parallel()

	// Arrange
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 4)
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		subscribed <- cmd.Type + ":" + cmd.Symbol

		_ = conn.WriteJSON(map[string]any{"type": "ping"})
		_ = conn.WriteJSON(map[string]any{"type": "trade", "data": []map[string]any{
			{"s": "AAPL", "p": 185.61, "t": 1704898800123, "v": 100, "c": []string{"1", "12"}},
		}})
		// keep the socket open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	// Act
	require.NoError(t, s.Subscribe(ctx, []string{"AAPL"}))
	ch, err := s.StreamQuotes(ctx)
	require.NoError(t, err)

	// Assert
	require.Equal(t, "subscribe:AAPL", <-subscribed)

	select {
	case q := <-ch:
		require.Equal(t, "AAPL", q.Symbol)
		require.Equal(t, 185.61, q.Price)
		require.Equal(t, 100.0, q.Volume)
		require.Equal(t, time.UnixMilli(1704898800123).UTC(), q.Timestamp)
	case <-time.After(5 * time.Second):
		t.Fatal("no quote relayed")
	}

	_, err = s.StreamQuotes(ctx)
	require.Error(t, err, "second reader must be refused")

	cancel()
	select {
	case _, open := <-ch:
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}
