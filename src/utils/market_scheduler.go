package utils

import (
	"sort"
	"sync"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"
)

type MarketScheduler struct {
	Calendars map[models.Country]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(countries []models.Country, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[models.Country]*TradingCalendar),
		Logger:    l,
	}
	ms.UpdateCountries(countries)
	return ms
}

// -----------------------------------------------------------------------------

// NewRegionScheduler tracks every listing country of the given regions.
func NewRegionScheduler(regions []models.Region, l *logger.Logger) *MarketScheduler {
	var countries []models.Country
	for c, info := range models.Countries {
		for _, r := range regions {
			if info.Region == r {
				countries = append(countries, c)
				break
			}
		}
	}
	return NewMarketScheduler(countries, l)
}

// -----------------------------------------------------------------------------

// UpdateCountries replaces the tracked set of calendars
func (ms *MarketScheduler) UpdateCountries(countries []models.Country) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.Calendars = make(map[models.Country]*TradingCalendar)
	for _, c := range countries {
		ms.Calendars[c] = GetCountryCalendar(c)
	}

	if ms.Logger != nil {
		ms.Logger.Info("MarketScheduler: tracking %d exchange calendars.", len(ms.Calendars))
	}
}

// -----------------------------------------------------------------------------

// IsSymbolOpen reports whether the exchange of a canonical symbol is open at t.
func (ms *MarketScheduler) IsSymbolOpen(symbol string, t time.Time) bool {
	country := models.CountryOfSymbol(symbol)

	ms.mu.RLock()
	cal, ok := ms.Calendars[country]
	ms.mu.RUnlock()

	if !ok {
		cal = GetCountryCalendar(country)
	}
	return cal.IsOpenOnMinute(t)
}

// -----------------------------------------------------------------------------

// Sessions returns the open/closed state of every tracked exchange, sorted by country.
func (ms *MarketScheduler) Sessions(t time.Time) []models.MMarketSession {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	sessions := make([]models.MMarketSession, 0, len(ms.Calendars))
	for country, cal := range ms.Calendars {
		sessions = append(sessions, models.MMarketSession{
			Country:  country,
			Region:   country.Region(),
			Exchange: cal.Exchange(),
			Open:     cal.IsOpenOnMinute(t),
			Fallback: cal.Fallback,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Country < sessions[j].Country
	})
	return sessions
}
