package models

import "strings"

// Country is an ISO 3166-1 alpha-2 code.
type Country string

const (
	CountryUS Country = "US"
	CountryCA Country = "CA"

	CountryGB Country = "GB"
	CountryDE Country = "DE"
	CountryFR Country = "FR"
	CountryIT Country = "IT"
	CountryES Country = "ES"
	CountryNL Country = "NL"
	CountryBE Country = "BE"
	CountryCH Country = "CH"
	CountrySE Country = "SE"
	CountryDK Country = "DK"
	CountryFI Country = "FI"
	CountryNO Country = "NO"
	CountryAT Country = "AT"
	CountryPT Country = "PT"
	CountryIE Country = "IE"

	CountryJP Country = "JP"
	CountryHK Country = "HK"
	CountryCN Country = "CN"
	CountryKR Country = "KR"
	CountryTW Country = "TW"
	CountryAU Country = "AU"
	CountrySG Country = "SG"
	CountryIN Country = "IN"
	CountryNZ Country = "NZ"
)

// CountryInfo is the static listing convention of one country.
type CountryInfo struct {
	Region   Region
	Suffix   string // canonical ticker suffix, empty for US listings
	Currency string
}

// Countries is the exhaustive table of supported listing countries.
var Countries = map[Country]CountryInfo{
	CountryUS: {Region: RegionUS, Suffix: "", Currency: "USD"},
	CountryCA: {Region: RegionUS, Suffix: ".TO", Currency: "CAD"},

	CountryGB: {Region: RegionEU, Suffix: ".L", Currency: "GBP"},
	CountryDE: {Region: RegionEU, Suffix: ".DE", Currency: "EUR"},
	CountryFR: {Region: RegionEU, Suffix: ".PA", Currency: "EUR"},
	CountryIT: {Region: RegionEU, Suffix: ".MI", Currency: "EUR"},
	CountryES: {Region: RegionEU, Suffix: ".MC", Currency: "EUR"},
	CountryNL: {Region: RegionEU, Suffix: ".AS", Currency: "EUR"},
	CountryBE: {Region: RegionEU, Suffix: ".BR", Currency: "EUR"},
	CountryCH: {Region: RegionEU, Suffix: ".SW", Currency: "CHF"},
	CountrySE: {Region: RegionEU, Suffix: ".ST", Currency: "SEK"},
	CountryDK: {Region: RegionEU, Suffix: ".CO", Currency: "DKK"},
	CountryFI: {Region: RegionEU, Suffix: ".HE", Currency: "EUR"},
	CountryNO: {Region: RegionEU, Suffix: ".OL", Currency: "NOK"},
	CountryAT: {Region: RegionEU, Suffix: ".VI", Currency: "EUR"},
	CountryPT: {Region: RegionEU, Suffix: ".LS", Currency: "EUR"},
	CountryIE: {Region: RegionEU, Suffix: ".IR", Currency: "EUR"},

	CountryJP: {Region: RegionAsia, Suffix: ".T", Currency: "JPY"},
	CountryHK: {Region: RegionAsia, Suffix: ".HK", Currency: "HKD"},
	CountryCN: {Region: RegionAsia, Suffix: ".SS", Currency: "CNY"},
	CountryKR: {Region: RegionAsia, Suffix: ".KS", Currency: "KRW"},
	CountryTW: {Region: RegionAsia, Suffix: ".TW", Currency: "TWD"},
	CountryAU: {Region: RegionAsia, Suffix: ".AX", Currency: "AUD"},
	CountrySG: {Region: RegionAsia, Suffix: ".SI", Currency: "SGD"},
	CountryIN: {Region: RegionAsia, Suffix: ".NS", Currency: "INR"},
	CountryNZ: {Region: RegionAsia, Suffix: ".NZ", Currency: "NZD"},
}

// secondary suffixes that map onto an already listed country
var extraSuffixes = map[string]Country{
	".V":  CountryCA,
	".SZ": CountryCN,
	".KQ": CountryKR,
	".BO": CountryIN,
	".F":  CountryDE,
}

var suffixToCountry = func() map[string]Country {
	m := make(map[string]Country, len(Countries)+len(extraSuffixes))
	for c, info := range Countries {
		if info.Suffix != "" {
			m[info.Suffix] = c
		}
	}
	for s, c := range extraSuffixes {
		m[s] = c
	}
	return m
}()

// -----------------------------------------------------------------------------

// Valid reports whether the country is in the static table.
func (c Country) Valid() bool {
	_, ok := Countries[c]
	return ok
}

// -----------------------------------------------------------------------------

func (c Country) Region() Region {
	if info, ok := Countries[c]; ok {
		return info.Region
	}
	return RegionUS
}

// -----------------------------------------------------------------------------

// SplitSymbol separates a canonical ticker into its base and listing country.
// Tickers without a known suffix are US listings (BRK.B stays intact).
func SplitSymbol(symbol string) (string, Country) {
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if c, ok := suffixToCountry[strings.ToUpper(symbol[i:])]; ok {
			return symbol[:i], c
		}
	}
	return symbol, CountryUS
}

// -----------------------------------------------------------------------------

// CountryOfSymbol returns the listing country of a canonical ticker.
func CountryOfSymbol(symbol string) Country {
	_, c := SplitSymbol(symbol)
	return c
}

// -----------------------------------------------------------------------------

// JoinSymbol builds the canonical ticker for base listed in country.
func JoinSymbol(base string, country Country) string {
	info, ok := Countries[country]
	if !ok || info.Suffix == "" {
		return base
	}
	return base + info.Suffix
}
