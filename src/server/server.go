package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/metrics"
	"market-data-hub/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

// APIServer exposes the market data service over REST and pushes streamed
// quotes to websocket clients. It implements interfaces.IDataExchanger.
type APIServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Service interfaces.IMarketDataService
	Metrics *metrics.Metrics

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan models.MQuote
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// latest quote per symbol, served as snapshot on subscribe
	latest      map[string]models.MQuote
	latestAt    int64
	stateMutex  sync.RWMutex
	clientCount int
}

var _ interfaces.IDataExchanger = (*APIServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, service interfaces.IMarketDataService, m *metrics.Metrics, log *logger.Logger) *APIServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &APIServer{
		Config:     cfg,
		Logger:     log,
		Service:    service,
		Metrics:    m,
		engine:     engine,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan models.MQuote, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		latest:     make(map[string]models.MQuote),
	}

	s.engine.Use(s.requestLogger())
	s.engine.Use(corsMiddleware)

	s.setupRoutes()
	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------

func corsMiddleware(c *gin.Context) {
	origin := c.Request.Header.Get("Origin")
	if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
	}
	c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// requestLogger logs every request at debug level and 5xx at warning.
func (s *APIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			s.Logger.Warning("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		s.Logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/status", s.getStatus)
	api.GET("/config", s.getConfig)

	api.GET("/quotes", s.getQuotes)
	api.GET("/quotes/:symbol", s.getQuote)
	api.GET("/historical/:symbol", s.getHistorical)
	api.GET("/historical/:symbol/latest", s.getLatestBar)
	api.GET("/historical/:symbol/gaps", s.getGaps)
	api.GET("/search", s.searchSymbols)
	api.GET("/company/:symbol", s.getCompanyInfo)
	api.DELETE("/cache/:symbol", s.invalidateSymbol)

	if s.Config.Metrics.Enabled {
		path := s.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(s.Metrics.Handler()))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start blocks serving HTTP until Stop is called.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.stateMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.stateMutex.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP listener down and disconnects websocket clients.
func (s *APIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)

		s.stateMutex.RLock()
		srv := s.httpServer
		s.stateMutex.RUnlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(ctx)
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := s.clientCount
	timestamp := s.latestAt
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   connections,
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Service.GetStatus(c.Request.Context()))
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	providers := make([]string, 0, len(s.Config.Providers))
	for _, p := range s.Config.Providers {
		if p.Enabled {
			providers = append(providers, p.Name)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"timeframes":     allTimeFrames,
		"market_types":   models.AllMarketTypes,
		"regions":        s.Config.Regions,
		"providers":      providers,
		"strategy":       s.Config.Router.Strategy,
		"stream_symbols": s.Config.Orchestrator.StreamSymbols,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getQuote(c *gin.Context) {
	mt, ok := marketTypeParam(c)
	if !ok {
		return
	}

	q, err := s.Service.GetQuote(c.Request.Context(), c.Param("symbol"), mt, boolParam(c, "refresh"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// -----------------------------------------------------------------------------

// getQuotes answers with the quotes that could be served and lists the rest.
func (s *APIServer) getQuotes(c *gin.Context) {
	symbols := splitSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		badRequest(c, "symbols is required")
		return
	}
	mt, ok := marketTypeParam(c)
	if !ok {
		return
	}

	quotes, err := s.Service.GetQuotes(c.Request.Context(), symbols, mt, boolParam(c, "refresh"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	var missing []string
	for _, sym := range symbols {
		if _, found := quotes[sym]; !found {
			missing = append(missing, sym)
		}
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "missing": missing})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHistorical(c *gin.Context) {
	r, ok := rangeParams(c, time.Now())
	if !ok {
		return
	}

	bars, err := s.Service.GetHistorical(c.Request.Context(), c.Param("symbol"), r.Start, r.End, r.TimeFrame, r.MarketType, boolParam(c, "refresh"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    c.Param("symbol"),
		"timeframe": r.TimeFrame,
		"bars":      bars,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getLatestBar(c *gin.Context) {
	tf, ok := timeFrameParam(c)
	if !ok {
		return
	}
	mt, ok := marketTypeParam(c)
	if !ok {
		return
	}

	bar, err := s.Service.GetLatestBar(c.Request.Context(), c.Param("symbol"), tf, mt, boolParam(c, "refresh"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bar)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getGaps(c *gin.Context) {
	r, ok := rangeParams(c, time.Now())
	if !ok {
		return
	}

	gaps, err := s.Service.DetectGaps(c.Request.Context(), c.Param("symbol"), r.Start, r.End, r.TimeFrame, r.MarketType)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": c.Param("symbol"), "gaps": gaps})
}

// -----------------------------------------------------------------------------

func (s *APIServer) searchSymbols(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		badRequest(c, "q is required")
		return
	}
	mt, ok := marketTypeParam(c)
	if !ok {
		return
	}

	results, err := s.Service.SearchSymbols(c.Request.Context(), query, mt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getCompanyInfo(c *gin.Context) {
	mt, ok := marketTypeParam(c)
	if !ok {
		return
	}

	info, err := s.Service.GetCompanyInfo(c.Request.Context(), c.Param("symbol"), mt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// -----------------------------------------------------------------------------

// invalidateSymbol drops every cached entry of a symbol, or only one
// timeframe's bars when timeframe is given.
func (s *APIServer) invalidateSymbol(c *gin.Context) {
	var tf models.TimeFrame
	if raw := c.Query("timeframe"); raw != "" {
		parsed, err := models.ParseTimeFrame(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		tf = parsed
	}

	removed := s.Service.InvalidateSymbol(c.Request.Context(), c.Param("symbol"), tf)
	c.JSON(http.StatusOK, gin.H{"symbol": c.Param("symbol"), "removed": removed})
}
