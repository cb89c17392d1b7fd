package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with potential proxy/retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with parameters and headers.
	// Vendor status codes come back as helpers taxonomy errors.
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error)
}
