package regional

import "market-data-hub/src/models"

// exchangePrefixes spells listings for vendors using the EXCHANGE:TICKER style.
// US listings carry no prefix.
var exchangePrefixes = map[models.Country]string{
	models.CountryUS: "",
	models.CountryCA: "TSX",

	models.CountryGB: "LSE",
	models.CountryDE: "XETR",
	models.CountryFR: "EPA",
	models.CountryIT: "BIT",
	models.CountryES: "BME",
	models.CountryNL: "AMS",
	models.CountryBE: "EBR",
	models.CountryCH: "SWX",
	models.CountrySE: "STO",
	models.CountryDK: "CPH",
	models.CountryFI: "HEL",
	models.CountryNO: "OSL",
	models.CountryAT: "VIE",
	models.CountryPT: "ELI",
	models.CountryIE: "ISE",

	models.CountryJP: "TSE",
	models.CountryHK: "HKEX",
	models.CountryCN: "SSE",
	models.CountryKR: "KRX",
	models.CountryTW: "TWSE",
	models.CountryAU: "ASX",
	models.CountrySG: "SGX",
	models.CountryIN: "NSE",
	models.CountryNZ: "NZX",
}

var prefixToCountry = func() map[string]models.Country {
	m := make(map[string]models.Country, len(exchangePrefixes))
	for c, p := range exchangePrefixes {
		if p != "" {
			m[p] = c
		}
	}
	// vendor aliases seen in the wild
	m["FRA"] = models.CountryDE
	m["ETR"] = models.CountryDE
	m["LON"] = models.CountryGB
	m["TYO"] = models.CountryJP
	m["SZSE"] = models.CountryCN
	m["BSE"] = models.CountryIN
	for _, us := range []string{"NASDAQ", "NYSE", "AMEX", "ARCA", "BATS"} {
		m[us] = models.CountryUS
	}
	return m
}()

// ExchangePrefix returns the EXCHANGE: prefix of a country, empty for US.
func ExchangePrefix(c models.Country) string {
	return exchangePrefixes[c]
}

// -----------------------------------------------------------------------------
// Benchmarks and ETFs per region
// -----------------------------------------------------------------------------

var regionIndices = map[models.Region]map[string]string{
	models.RegionUS: {
		"SPX":  "^GSPC",
		"DJI":  "^DJI",
		"NDX":  "^NDX",
		"IXIC": "^IXIC",
		"RUT":  "^RUT",
		"VIX":  "^VIX",
		"TSX":  "^GSPTSE",
	},
	models.RegionEU: {
		"DAX":     "^GDAXI",
		"FTSE":    "^FTSE",
		"CAC":     "^FCHI",
		"STOXX50": "^STOXX50E",
		"IBEX":    "^IBEX",
		"FTSEMIB": "FTSEMIB.MI",
		"AEX":     "^AEX",
		"SMI":     "^SSMI",
		"OMX":     "^OMX",
	},
	models.RegionAsia: {
		"N225":   "^N225",
		"HSI":    "^HSI",
		"SSEC":   "000001.SS",
		"KOSPI":  "^KS11",
		"TWII":   "^TWII",
		"ASX200": "^AXJO",
		"STI":    "^STI",
		"NIFTY":  "^NSEI",
		"SENSEX": "^BSESN",
		"NZ50":   "^NZ50",
	},
}

var regionETFs = map[models.Region][]string{
	models.RegionUS:   {"SPY", "QQQ", "IWM", "DIA", "VTI", "EFA", "EEM", "GLD", "TLT", "XIU.TO"},
	models.RegionEU:   {"EXS1.DE", "ISF.L", "CSPX.L", "VUSA.L", "IWDA.AS", "MEUD.PA", "CSSMI.SW"},
	models.RegionAsia: {"1321.T", "1306.T", "2800.HK", "2833.HK", "510300.SS", "069500.KS", "STW.AX", "ES3.SI"},
}

// index symbol -> region, for symbols that carry no listing suffix
var indexRegion = func() map[string]models.Region {
	m := make(map[string]models.Region)
	for r, indices := range regionIndices {
		for _, sym := range indices {
			m[sym] = r
		}
	}
	return m
}()

var etfSet = func() map[string]bool {
	m := make(map[string]bool)
	for _, etfs := range regionETFs {
		for _, s := range etfs {
			m[s] = true
		}
	}
	return m
}()
