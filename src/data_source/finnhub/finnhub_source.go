package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/regional"

	"github.com/gorilla/websocket"
)

const (
	DefaultBaseURL   = "https://finnhub.io/api/v1"
	DefaultStreamURL = "wss://ws.finnhub.io"

	tokenHeader  = "X-Finnhub-Token"
	healthSymbol = "AAPL"
	writeWait    = 10 * time.Second
)

var resolutions = map[models.TimeFrame]string{
	models.TimeFrame1Min:   "1",
	models.TimeFrame5Min:   "5",
	models.TimeFrame15Min:  "15",
	models.TimeFrame30Min:  "30",
	models.TimeFrame1Hour:  "60",
	models.TimeFrame1Day:   "D",
	models.TimeFrame1Week:  "W",
	models.TimeFrame1Month: "M",
}

// FinnhubSource is a keyed REST and websocket adapter. Trades pushed over the
// socket are relayed as last-price quotes.
type FinnhubSource struct {
	ProviderConfig models.MProviderConfig
	Network        interfaces.INetworkManager
	Normalizer     *normalizer.Normalizer
	Logger         *logger.Logger
	Dialer         *websocket.Dialer

	mu         sync.Mutex
	writeMu    sync.Mutex
	conn       *websocket.Conn
	subscribed map[string]bool
	streaming  bool
}

// -----------------------------------------------------------------------------

func NewFinnhubSource(cfg models.MProviderConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *FinnhubSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if log == nil {
		log = logger.NewLogger(nil, "FinnhubSource-"+cfg.Name)
	}
	return &FinnhubSource{
		ProviderConfig: cfg,
		Network:        netMgr,
		Normalizer:     normalizer.NewNormalizer(nil, nil, log.Named("Normalizer")),
		Logger:         log,
		Dialer:         websocket.DefaultDialer,
		subscribed:     make(map[string]bool),
	}
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) Name() string {
	return s.ProviderConfig.Name
}

func (s *FinnhubSource) Config() models.MProviderConfig {
	return s.ProviderConfig
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) Initialize(ctx context.Context) error {
	if s.ProviderConfig.APIKey == "" {
		return helpers.NewAuthenticationError(s.Name(), "api key missing")
	}
	s.Logger.Info("FinnhubSource %s ready on %s", s.Name(), s.ProviderConfig.BaseURL)
	return nil
}

// -----------------------------------------------------------------------------

// Close drops the websocket; an open stream then ends.
func (s *FinnhubSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) HealthCheck(ctx context.Context) bool {
	if _, err := s.GetQuote(ctx, healthSymbol); err != nil {
		s.Logger.Debug("Health probe failed: %v", err)
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) get(ctx context.Context, path string, params map[string]string, dest any) error {
	body, err := s.Network.Get(ctx, s.ProviderConfig.BaseURL+path, params, map[string]string{
		tokenHeader: s.ProviderConfig.APIKey,
	})
	if err != nil {
		return helpers.TagProvider(err, s.Name())
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return helpers.NewProviderError(s.Name(), "json unmarshal failed", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// GetQuote reads /quote. Finnhub answers unknown symbols with zeros.
func (s *FinnhubSource) GetQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	var raw map[string]any
	if err := s.get(ctx, "/quote", map[string]string{"symbol": symbol}, &raw); err != nil {
		return models.MQuote{}, err
	}

	price, _ := normalizer.ParseNumber(raw["c"])
	ts, _ := normalizer.ParseNumber(raw["t"])
	if price == 0 && ts == 0 {
		return models.MQuote{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}
	return s.Normalizer.QuoteFromMap(raw, s.Name(), symbol)
}

// -----------------------------------------------------------------------------

// GetQuotes has no batch endpoint behind it: symbols are requested one by one
// and failures are left out.
func (s *FinnhubSource) GetQuotes(ctx context.Context, symbols []string) ([]models.MQuote, error) {
	quotes := make([]models.MQuote, 0, len(symbols))
	var firstErr error
	for _, sym := range symbols {
		q, err := s.GetQuote(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return quotes, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			s.Logger.Debug("Skipping %s: %v", sym, err)
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return quotes, nil
}

// -----------------------------------------------------------------------------
// Candles
// -----------------------------------------------------------------------------

type candleResponse struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

func (s *FinnhubSource) GetHistorical(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame) ([]models.MOHLCV, error) {
	resolution, ok := resolutions[tf]
	if !ok {
		return nil, helpers.Permanent(helpers.NewProviderError(s.Name(), fmt.Sprintf("unsupported timeframe %q", tf), nil))
	}

	var resp candleResponse
	err := s.get(ctx, "/stock/candle", map[string]string{
		"symbol":     symbol,
		"resolution": resolution,
		"from":       strconv.FormatInt(start.Unix(), 10),
		"to":         strconv.FormatInt(end.Unix(), 10),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status == "no_data" || len(resp.Time) == 0 {
		return nil, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}
	if resp.Status != "ok" {
		return nil, helpers.NewProviderError(s.Name(), "candle status "+resp.Status, nil)
	}

	n := len(resp.Time)
	if n != len(resp.Close) || n != len(resp.Open) || n != len(resp.High) || n != len(resp.Low) || n != len(resp.Volume) {
		return nil, helpers.NewProviderError(s.Name(), "data alignment error for "+symbol, nil)
	}

	bars := make([]models.MOHLCV, 0, n)
	for i := range resp.Time {
		row := map[string]any{
			"t": resp.Time[i],
			"o": resp.Open[i],
			"h": resp.High[i],
			"l": resp.Low[i],
			"c": resp.Close[i],
			"v": resp.Volume[i],
		}
		bar, err := s.Normalizer.BarFromMap(row, symbol, s.Name(), tf)
		if err != nil {
			s.Logger.Debug("Skipping candle %d of %s: %v", i, symbol, err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// -----------------------------------------------------------------------------
// Search and profile
// -----------------------------------------------------------------------------

type searchResponse struct {
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

func (s *FinnhubSource) SearchSymbols(ctx context.Context, query string) ([]models.MSymbolSearchResult, error) {
	var resp searchResponse
	if err := s.get(ctx, "/search", map[string]string{"q": query}, &resp); err != nil {
		return nil, err
	}

	out := make([]models.MSymbolSearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Symbol == "" {
			continue
		}
		mt := regional.InferMarketType(r.Symbol)
		if strings.EqualFold(r.Type, "ETP") {
			mt = models.MarketETF
		}
		out = append(out, models.MSymbolSearchResult{
			Symbol:     r.Symbol,
			Name:       r.Description,
			MarketType: mt,
			Provider:   s.Name(),
		})
	}
	return out, nil
}

// -----------------------------------------------------------------------------

type profileResponse struct {
	Country   string  `json:"country"`
	Currency  string  `json:"currency"`
	Exchange  string  `json:"exchange"`
	Industry  string  `json:"finnhubIndustry"`
	MarketCap float64 `json:"marketCapitalization"` // millions
	Name      string  `json:"name"`
	Ticker    string  `json:"ticker"`
	WebURL    string  `json:"weburl"`
}

func (s *FinnhubSource) GetCompanyInfo(ctx context.Context, symbol string) (models.MCompanyInfo, error) {
	var p profileResponse
	if err := s.get(ctx, "/stock/profile2", map[string]string{"symbol": symbol}, &p); err != nil {
		return models.MCompanyInfo{}, err
	}
	if p.Name == "" && p.Ticker == "" {
		return models.MCompanyInfo{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}

	return models.MCompanyInfo{
		Symbol:    symbol,
		Name:      p.Name,
		Exchange:  p.Exchange,
		Currency:  strings.ToUpper(p.Currency),
		Country:   p.Country,
		Industry:  p.Industry,
		Website:   p.WebURL,
		MarketCap: p.MarketCap * 1e6,
		Provider:  s.Name(),
	}, nil
}

// -----------------------------------------------------------------------------
// Streaming
// -----------------------------------------------------------------------------

type wsCommand struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type wsMessage struct {
	Type string           `json:"type"`
	Data []map[string]any `json:"data"`
	Msg  string           `json:"msg"`
}

// -----------------------------------------------------------------------------

// connection dials lazily and replays the current subscriptions.
func (s *FinnhubSource) connection(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	u, err := url.Parse(s.ProviderConfig.StreamURL)
	if err != nil {
		return nil, helpers.NewConfigurationError("invalid stream url", err)
	}
	q := u.Query()
	q.Set("token", s.ProviderConfig.APIKey)
	u.RawQuery = q.Encode()

	conn, resp, err := s.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, helpers.NewAuthenticationError(s.Name(), fmt.Sprintf("stream handshake status %d", resp.StatusCode))
		}
		return nil, helpers.NewProviderError(s.Name(), "stream dial", err)
	}
	s.conn = conn

	for sym := range s.subscribed {
		if err := s.send(conn, wsCommand{Type: "subscribe", Symbol: sym}); err != nil {
			s.conn = nil
			conn.Close()
			return nil, err
		}
	}
	s.Logger.Info("Stream connected, %d subscriptions replayed", len(s.subscribed))
	return conn, nil
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) send(conn *websocket.Conn, cmd wsCommand) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return helpers.NewProviderError(s.Name(), cmd.Type+" "+cmd.Symbol, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) Subscribe(ctx context.Context, symbols []string) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	for _, sym := range symbols {
		s.mu.Lock()
		already := s.subscribed[sym]
		s.subscribed[sym] = true
		s.mu.Unlock()
		if already {
			continue
		}
		if err := s.send(conn, wsCommand{Type: "subscribe", Symbol: sym}); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *FinnhubSource) Unsubscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	conn := s.conn
	for _, sym := range symbols {
		delete(s.subscribed, sym)
	}
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	for _, sym := range symbols {
		if err := s.send(conn, wsCommand{Type: "unsubscribe", Symbol: sym}); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// StreamQuotes reads trades until ctx is done or the socket drops. One reader
// at a time.
func (s *FinnhubSource) StreamQuotes(ctx context.Context) (<-chan models.MQuote, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return nil, helpers.NewProviderError(s.Name(), "stream already open", nil)
	}
	s.streaming = true
	s.mu.Unlock()

	out := make(chan models.MQuote, 256)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	go func() {
		defer close(out)
		defer stop()
		defer func() {
			s.mu.Lock()
			s.streaming = false
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			conn.Close()
		}()

		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					s.Logger.Warning("Stream read failed: %v", err)
				}
				return
			}

			switch msg.Type {
			case "trade":
				for _, trade := range msg.Data {
					// "c" holds trade conditions here, not a price
					delete(trade, "c")
					q, err := s.Normalizer.QuoteFromMap(trade, s.Name(), "")
					if err != nil {
						s.Logger.Debug("Skipping trade: %v", err)
						continue
					}
					select {
					case out <- q:
					case <-ctx.Done():
						return
					}
				}
			case "ping":
			case "error":
				s.Logger.Warning("Stream error message: %s", msg.Msg)
			default:
				s.Logger.Debug("Ignoring stream message type %q", msg.Type)
			}
		}
	}()
	return out, nil
}
