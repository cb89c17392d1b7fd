package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/orchestrator"

	"github.com/gin-gonic/gin"
)

// default lookback when a range request carries no start
const defaultLookback = 30 * 24 * time.Hour

var allTimeFrames = []models.TimeFrame{
	models.TimeFrame1Min, models.TimeFrame5Min, models.TimeFrame15Min, models.TimeFrame30Min,
	models.TimeFrame1Hour, models.TimeFrame1Day, models.TimeFrame1Week, models.TimeFrame1Month,
}

// -----------------------------------------------------------------------------

type rangeRequest struct {
	Start      time.Time
	End        time.Time
	TimeFrame  models.TimeFrame
	MarketType models.MarketType
}

// rangeParams reads start, end, timeframe and market_type. It answers 400 and
// returns false on a malformed value.
func rangeParams(c *gin.Context, now time.Time) (rangeRequest, bool) {
	r := rangeRequest{End: now.UTC()}

	tf, ok := timeFrameParam(c)
	if !ok {
		return r, false
	}
	r.TimeFrame = tf

	if mt, ok := marketTypeParam(c); ok {
		r.MarketType = mt
	} else {
		return r, false
	}

	if raw := c.Query("end"); raw != "" {
		end, ok := normalizer.ParseTimestamp(raw)
		if !ok {
			badRequest(c, "end: unparseable time "+strconv.Quote(raw))
			return r, false
		}
		r.End = end
	}
	r.Start = r.End.Add(-defaultLookback)
	if raw := c.Query("start"); raw != "" {
		start, ok := normalizer.ParseTimestamp(raw)
		if !ok {
			badRequest(c, "start: unparseable time "+strconv.Quote(raw))
			return r, false
		}
		r.Start = start
	}
	return r, true
}

// -----------------------------------------------------------------------------

func timeFrameParam(c *gin.Context) (models.TimeFrame, bool) {
	raw := c.Query("timeframe")
	if raw == "" {
		return models.TimeFrame1Day, true
	}
	tf, err := models.ParseTimeFrame(raw)
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return tf, true
}

// -----------------------------------------------------------------------------

// marketTypeParam returns the empty market type when none is given; the
// orchestrator infers it from the symbol then.
func marketTypeParam(c *gin.Context) (models.MarketType, bool) {
	raw := c.Query("market_type")
	if raw == "" {
		return "", true
	}
	mt, err := models.ParseMarketType(raw)
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return mt, true
}

// -----------------------------------------------------------------------------

func boolParam(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

// -----------------------------------------------------------------------------

// splitSymbols accepts comma separated symbols and drops blanks and repeats.
func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		sym := strings.TrimSpace(part)
		if sym == "" || contains(out, sym) {
			continue
		}
		out = append(out, sym)
	}
	return out
}

// -----------------------------------------------------------------------------

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// statusOf maps a service error onto an HTTP status.
func statusOf(err error) int {
	var rateErr *helpers.RateLimitError

	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, helpers.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, helpers.ErrProvidersDegraded), errors.As(err, &rateErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *APIServer) writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Warning("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
