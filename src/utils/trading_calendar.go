package utils

import (
	"strings"
	"sync"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/scmhub/calendar"
)

// exchange metadata per listing country: MIC for scmhub/calendar, plus the
// timezone and session used when the library has no calendar for that MIC
type exchangeInfo struct {
	mic      string
	timezone string
	open     [2]int // hour, minute
	close    [2]int
}

var countryExchanges = map[models.Country]exchangeInfo{
	models.CountryUS: {"xnys", "America/New_York", [2]int{9, 30}, [2]int{16, 0}},
	models.CountryCA: {"xtse", "America/Toronto", [2]int{9, 30}, [2]int{16, 0}},

	models.CountryGB: {"xlon", "Europe/London", [2]int{8, 0}, [2]int{16, 30}},
	models.CountryDE: {"xfra", "Europe/Berlin", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryFR: {"xpar", "Europe/Paris", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryIT: {"xmil", "Europe/Rome", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryES: {"xmad", "Europe/Madrid", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryNL: {"xams", "Europe/Amsterdam", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryBE: {"xbru", "Europe/Brussels", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryCH: {"xswx", "Europe/Zurich", [2]int{9, 0}, [2]int{17, 30}},
	models.CountrySE: {"xsto", "Europe/Stockholm", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryDK: {"xcse", "Europe/Copenhagen", [2]int{9, 0}, [2]int{17, 0}},
	models.CountryFI: {"xhel", "Europe/Helsinki", [2]int{10, 0}, [2]int{18, 30}},
	models.CountryNO: {"xosl", "Europe/Oslo", [2]int{9, 0}, [2]int{16, 20}},
	models.CountryAT: {"xwbo", "Europe/Vienna", [2]int{9, 0}, [2]int{17, 30}},
	models.CountryPT: {"xlis", "Europe/Lisbon", [2]int{8, 0}, [2]int{16, 30}},
	models.CountryIE: {"xdub", "Europe/Dublin", [2]int{8, 0}, [2]int{16, 30}},

	models.CountryJP: {"xtks", "Asia/Tokyo", [2]int{9, 0}, [2]int{15, 0}},
	models.CountryHK: {"xhkg", "Asia/Hong_Kong", [2]int{9, 30}, [2]int{16, 0}},
	models.CountryCN: {"xshg", "Asia/Shanghai", [2]int{9, 30}, [2]int{15, 0}},
	models.CountryKR: {"xkrx", "Asia/Seoul", [2]int{9, 0}, [2]int{15, 30}},
	models.CountryTW: {"xtai", "Asia/Taipei", [2]int{9, 0}, [2]int{13, 30}},
	models.CountryAU: {"xasx", "Australia/Sydney", [2]int{10, 0}, [2]int{16, 0}},
	models.CountrySG: {"xses", "Asia/Singapore", [2]int{9, 0}, [2]int{17, 0}},
	models.CountryIN: {"xbom", "Asia/Kolkata", [2]int{9, 15}, [2]int{15, 30}},
	models.CountryNZ: {"xnze", "Pacific/Auckland", [2]int{10, 0}, [2]int{16, 45}},
}

var (
	calendarCache   = make(map[models.Country]*TradingCalendar)
	calendarCacheMu sync.Mutex
	calendarLogger  = logger.NewLogger(nil, "TradingCalendar")
)

// TradingCalendar calculates trading days using scmhub/calendar.
type TradingCalendar struct {
	Country  models.Country
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
	info     exchangeInfo
}

// -----------------------------------------------------------------------------

// MICForCountry returns the exchange MIC used for a listing country.
func MICForCountry(country models.Country) string {
	if info, ok := countryExchanges[country]; ok {
		return info.mic
	}
	return countryExchanges[models.CountryUS].mic
}

// -----------------------------------------------------------------------------

// GetCalendar returns the calendar of the exchange a canonical symbol trades on.
func GetCalendar(symbol string) *TradingCalendar {
	return GetCountryCalendar(models.CountryOfSymbol(symbol))
}

// -----------------------------------------------------------------------------

// GetCountryCalendar returns the (cached) calendar for a listing country.
func GetCountryCalendar(country models.Country) *TradingCalendar {
	calendarCacheMu.Lock()
	defer calendarCacheMu.Unlock()

	if tc, ok := calendarCache[country]; ok {
		return tc
	}

	info, ok := countryExchanges[country]
	if !ok {
		info = countryExchanges[models.CountryUS]
	}

	tc := &TradingCalendar{Country: country, MIC: info.mic, info: info}

	// scmhub/calendar.GetCalendar returns a calendar by MIC
	cal := calendar.GetCalendar(info.mic)
	if cal == nil {
		calendarLogger.Warning("No calendar for MIC '%s'. Using weekday fallback (%02d:%02d-%02d:%02d %s).",
			info.mic, info.open[0], info.open[1], info.close[0], info.close[1], info.timezone)
		loc, err := time.LoadLocation(info.timezone)
		if err != nil {
			loc = time.UTC // Worst case
		}
		tc.Fallback = true
		tc.Timezone = loc
	} else {
		tc.Calendar = cal
		tc.Timezone = cal.Loc
	}

	calendarCache[country] = tc
	return tc
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		// Simple fallback: Mon-Fri
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	// Library handles IsHoliday / IsBusinessDay
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		minutes := t.Hour()*60 + t.Minute()
		open := tc.info.open[0]*60 + tc.info.open[1]
		closing := tc.info.close[0]*60 + tc.info.close[1]
		return minutes >= open && minutes < closing
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// TradingDaysBetween counts trading days strictly after from and strictly before to.
func (tc *TradingCalendar) TradingDaysBetween(from, to time.Time) int {
	loc := tc.Timezone
	if loc == nil {
		loc = time.UTC
	}
	start := from.In(loc)
	end := to.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 12, 0, 0, 0, loc).AddDate(0, 0, 1)
	last := time.Date(end.Year(), end.Month(), end.Day(), 12, 0, 0, 0, loc)

	count := 0
	for day.Before(last) {
		if tc.IsTradingDay(day) {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

// -----------------------------------------------------------------------------

// Exchange returns the upper-case MIC, for display.
func (tc *TradingCalendar) Exchange() string {
	return strings.ToUpper(tc.MIC)
}
