package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/regional"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// probe symbol used by HealthCheck
const healthSymbol = "^GSPC"

var intervals = map[models.TimeFrame]string{
	models.TimeFrame1Min:   "1m",
	models.TimeFrame5Min:   "5m",
	models.TimeFrame15Min:  "15m",
	models.TimeFrame30Min:  "30m",
	models.TimeFrame1Hour:  "60m",
	models.TimeFrame1Day:   "1d",
	models.TimeFrame1Week:  "1wk",
	models.TimeFrame1Month: "1mo",
}

var quoteTypes = map[string]models.MarketType{
	"ETF":            models.MarketETF,
	"MUTUALFUND":     models.MarketETF,
	"INDEX":          models.MarketIndex,
	"CURRENCY":       models.MarketForex,
	"CRYPTOCURRENCY": models.MarketCrypto,
	"FUTURE":         models.MarketCommodity,
}

// YahooFinanceSource serves quotes, bars and symbol search from the public
// Yahoo Finance endpoints. No key required.
type YahooFinanceSource struct {
	ProviderConfig models.MProviderConfig
	Network        interfaces.INetworkManager
	Normalizer     *normalizer.Normalizer
	Logger         *logger.Logger
	// MaxParallel bounds the per-symbol fan-out when the batch endpoint is refused.
	MaxParallel int

	// set once the batch endpoint answered with an authentication error
	batchRefused atomic.Bool
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(cfg models.MProviderConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *YahooFinanceSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if log == nil {
		log = logger.NewLogger(nil, "YahooFinanceSource-"+cfg.Name)
	}
	return &YahooFinanceSource{
		ProviderConfig: cfg,
		Network:        netMgr,
		Normalizer:     normalizer.NewNormalizer(nil, nil, log.Named("Normalizer")),
		Logger:         log,
		MaxParallel:    4,
	}
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) Name() string {
	return s.ProviderConfig.Name
}

func (s *YahooFinanceSource) Config() models.MProviderConfig {
	return s.ProviderConfig
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) Initialize(ctx context.Context) error {
	s.Logger.Info("YahooFinanceSource %s ready on %s", s.Name(), s.ProviderConfig.BaseURL)
	return nil
}

func (s *YahooFinanceSource) Close() error {
	return nil
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) HealthCheck(ctx context.Context) bool {
	_, err := s.GetQuote(ctx, healthSymbol)
	if err != nil {
		s.Logger.Debug("Health probe failed: %v", err)
		return false
	}
	return true
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// GetQuote reads the chart meta block, which carries the regular market price.
func (s *YahooFinanceSource) GetQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	result, err := s.fetchChart(ctx, symbol, map[string]string{
		"interval": "1d",
		"range":    "1d",
	})
	if err != nil {
		return models.MQuote{}, err
	}

	q, err := s.Normalizer.QuoteFromMap(result.Meta, s.Name(), symbol)
	if err != nil {
		return models.MQuote{}, err
	}
	if q.Price <= 0 {
		return models.MQuote{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}
	return q, nil
}

// -----------------------------------------------------------------------------

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]any `json:"result"`
		Error  *apiError        `json:"error"`
	} `json:"quoteResponse"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// GetQuotes uses the multi-symbol quote endpoint. When Yahoo refuses it
// (crumb required) every later call fans out over the chart endpoint.
func (s *YahooFinanceSource) GetQuotes(ctx context.Context, symbols []string) ([]models.MQuote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if s.batchRefused.Load() {
		return s.fetchBatch(ctx, symbols)
	}

	body, err := s.Network.Get(ctx, s.ProviderConfig.BaseURL+"/v7/finance/quote", map[string]string{
		"symbols": strings.Join(symbols, ","),
	}, nil)
	if err != nil {
		var authErr *helpers.AuthenticationError
		if errors.As(err, &authErr) {
			s.Logger.Warning("Batch quote endpoint refused (%v), switching to per-symbol requests", err)
			s.batchRefused.Store(true)
			return s.fetchBatch(ctx, symbols)
		}
		return nil, helpers.TagProvider(err, s.Name())
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewProviderError(s.Name(), "json unmarshal failed", err)
	}
	if resp.QuoteResponse.Error != nil {
		return nil, helpers.NewProviderError(s.Name(), fmt.Sprintf("yahoo api error: %s - %s", resp.QuoteResponse.Error.Code, resp.QuoteResponse.Error.Description), nil)
	}

	quotes := make([]models.MQuote, 0, len(resp.QuoteResponse.Result))
	for _, raw := range resp.QuoteResponse.Result {
		q, err := s.Normalizer.QuoteFromMap(raw, s.Name(), "")
		if err != nil {
			s.Logger.Debug("Skipping batch entry: %v", err)
			continue
		}
		quotes = append(quotes, q)
	}
	s.Logger.Debug("YahooFinance: batch returned %d/%d symbols", len(quotes), len(symbols))
	return quotes, nil
}

// -----------------------------------------------------------------------------

// fetchBatch requests symbols concurrently. Fails only when every symbol failed.
func (s *YahooFinanceSource) fetchBatch(ctx context.Context, symbols []string) ([]models.MQuote, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		quotes   = make([]models.MQuote, 0, len(symbols))
		firstErr error
	)

	parallel := s.MaxParallel
	if parallel <= 0 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			q, err := s.GetQuote(ctx, sym)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.Logger.Debug("Error fetching symbol %s: %v", sym, err)
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			quotes = append(quotes, q)
		}(symbol)
	}
	wg.Wait()

	s.Logger.Debug("YahooFinance: fetched %d/%d symbols", len(quotes), len(symbols))
	if len(quotes) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if firstErr != nil {
			return nil, firstErr
		}
	}
	return quotes, nil
}

// -----------------------------------------------------------------------------
// Chart
// -----------------------------------------------------------------------------

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       map[string]any `json:"meta"`
	Timestamp  []int64        `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			High   []*float64 `json:"high"` // pointers: Yahoo sends null for empty slots
			Low    []*float64 `json:"low"`
			Open   []*float64 `json:"open"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) fetchChart(ctx context.Context, symbol string, params map[string]string) (chartResult, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", s.ProviderConfig.BaseURL, url.PathEscape(symbol))

	body, err := s.Network.Get(ctx, endpoint, params, nil)
	if err != nil {
		var notFound *helpers.DataNotAvailableError
		if errors.As(err, &notFound) {
			return chartResult{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
		}
		return chartResult{}, helpers.TagProvider(err, s.Name())
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return chartResult{}, helpers.NewProviderError(s.Name(), "json unmarshal failed", err)
	}
	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return chartResult{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
		}
		return chartResult{}, helpers.NewProviderError(s.Name(), fmt.Sprintf("yahoo api error: %s - %s", e.Code, e.Description), nil)
	}
	if len(resp.Chart.Result) == 0 {
		return chartResult{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}
	return resp.Chart.Result[0], nil
}

// -----------------------------------------------------------------------------

// GetHistorical returns the bars in [start, end]. Slots with any null field
// are skipped.
func (s *YahooFinanceSource) GetHistorical(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame) ([]models.MOHLCV, error) {
	interval, ok := intervals[tf]
	if !ok {
		return nil, helpers.Permanent(helpers.NewProviderError(s.Name(), fmt.Sprintf("unsupported timeframe %q", tf), nil))
	}

	result, err := s.fetchChart(ctx, symbol, map[string]string{
		"period1":        strconv.FormatInt(start.Unix(), 10),
		"period2":        strconv.FormatInt(end.Unix(), 10),
		"interval":       interval,
		"includePrePost": "false",
	})
	if err != nil {
		return nil, err
	}
	return s.parseChart(symbol, tf, result, start, end)
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) parseChart(symbol string, tf models.TimeFrame, result chartResult, start, end time.Time) ([]models.MOHLCV, error) {
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}
	quote := result.Indicators.Quote[0]

	n := len(result.Timestamp)
	if n != len(quote.Close) || n != len(quote.Open) || n != len(quote.High) || n != len(quote.Low) || n != len(quote.Volume) {
		s.Logger.Warning("Data alignment error for %s: mismatched array lengths", symbol)
		return nil, helpers.NewProviderError(s.Name(), "data alignment error for "+symbol, nil)
	}

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) == n {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.MOHLCV, 0, n)
	skipped := 0
	for i, ts := range result.Timestamp {
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil || quote.Volume[i] == nil {
			skipped++
			continue
		}
		t := time.Unix(ts, 0).UTC()
		if t.Before(start) || t.After(end) {
			continue
		}

		bar := models.MOHLCV{
			Symbol:    symbol,
			Timestamp: t,
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    *quote.Volume[i],
			Provider:  s.Name(),
			TimeFrame: tf,
		}
		if adj != nil && adj[i] != nil {
			v := *adj[i]
			bar.AdjustedClose = &v
		}
		bars = append(bars, bar)
	}
	if skipped > 0 {
		s.Logger.Debug("Skipped %d null slots for %s", skipped, symbol)
	}
	if len(bars) == 0 {
		return nil, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	s.Logger.Debug("Fetched %s: %d bars [%s -> %s]", symbol, len(bars),
		bars[0].Timestamp.Format(time.RFC3339), bars[len(bars)-1].Timestamp.Format(time.RFC3339))
	return bars, nil
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		ExchDisp  string `json:"exchDisp"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

func (s *YahooFinanceSource) SearchSymbols(ctx context.Context, query string) ([]models.MSymbolSearchResult, error) {
	body, err := s.Network.Get(ctx, s.ProviderConfig.BaseURL+"/v1/finance/search", map[string]string{
		"q":           query,
		"quotesCount": "20",
		"newsCount":   "0",
	}, nil)
	if err != nil {
		return nil, helpers.TagProvider(err, s.Name())
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewProviderError(s.Name(), "json unmarshal failed", err)
	}

	out := make([]models.MSymbolSearchResult, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		exchange := q.ExchDisp
		if exchange == "" {
			exchange = q.Exchange
		}
		mt, ok := quoteTypes[strings.ToUpper(q.QuoteType)]
		if !ok {
			mt = regional.InferMarketType(q.Symbol)
		}
		out = append(out, models.MSymbolSearchResult{
			Symbol:     q.Symbol,
			Name:       name,
			Exchange:   exchange,
			MarketType: mt,
			Provider:   s.Name(),
		})
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Company info
// -----------------------------------------------------------------------------

type rawValue struct {
	Raw float64 `json:"raw"`
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Country             string `json:"country"`
				Industry            string `json:"industry"`
				Sector              string `json:"sector"`
				Website             string `json:"website"`
				LongBusinessSummary string `json:"longBusinessSummary"`
				FullTimeEmployees   int64  `json:"fullTimeEmployees"`
			} `json:"assetProfile"`
			Price struct {
				LongName     string   `json:"longName"`
				ShortName    string   `json:"shortName"`
				ExchangeName string   `json:"exchangeName"`
				Currency     string   `json:"currency"`
				MarketCap    rawValue `json:"marketCap"`
			} `json:"price"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

// GetCompanyInfo reads the assetProfile and price modules of quoteSummary.
func (s *YahooFinanceSource) GetCompanyInfo(ctx context.Context, symbol string) (models.MCompanyInfo, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s", s.ProviderConfig.BaseURL, url.PathEscape(symbol))

	body, err := s.Network.Get(ctx, endpoint, map[string]string{"modules": "assetProfile,price"}, nil)
	if err != nil {
		var notFound *helpers.DataNotAvailableError
		if errors.As(err, &notFound) {
			return models.MCompanyInfo{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
		}
		return models.MCompanyInfo{}, helpers.TagProvider(err, s.Name())
	}

	var resp summaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MCompanyInfo{}, helpers.NewProviderError(s.Name(), "json unmarshal failed", err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return models.MCompanyInfo{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
		}
		return models.MCompanyInfo{}, helpers.NewProviderError(s.Name(), fmt.Sprintf("yahoo api error: %s - %s", e.Code, e.Description), nil)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return models.MCompanyInfo{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}

	r := resp.QuoteSummary.Result[0]
	name := r.Price.LongName
	if name == "" {
		name = r.Price.ShortName
	}
	if name == "" {
		return models.MCompanyInfo{}, helpers.NewDataNotAvailableError(s.Name(), symbol)
	}
	return models.MCompanyInfo{
		Symbol:      symbol,
		Name:        name,
		Exchange:    r.Price.ExchangeName,
		Currency:    strings.ToUpper(r.Price.Currency),
		Country:     r.AssetProfile.Country,
		Sector:      r.AssetProfile.Sector,
		Industry:    r.AssetProfile.Industry,
		Website:     r.AssetProfile.Website,
		Description: r.AssetProfile.LongBusinessSummary,
		MarketCap:   r.Price.MarketCap.Raw,
		Employees:   r.AssetProfile.FullTimeEmployees,
		Provider:    s.Name(),
	}, nil
}
