package utils

import "time"

// -----------------------------------------------------------------------------

// Defaults applied when a config section leaves a value at zero.
const (
	DefaultLatencyWindow       = 50
	DefaultRetryAfter          = 60 * time.Second
	DefaultMaxBatchSize        = 50
	DefaultMaxParallelRequests = 10
	DefaultFetchTimeout        = 60 * time.Second
	DefaultRetentionDays       = 30

	// quotes older than this are flagged stale
	StaleQuoteAge = 5 * time.Minute
)
