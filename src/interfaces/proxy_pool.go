package interfaces

import (
	"net/http"
	"net/url"
)

// -----------------------------------------------------------------------------
// IProxyPool hands out the outbound proxy for vendor requests.
// -----------------------------------------------------------------------------

type IProxyPool interface {

	// Len returns how many usable proxies are configured.
	Len() int

	// -----------------------------------------------------------------------------

	// Current returns the proxy in use, nil when going direct.
	Current() *url.URL

	// -----------------------------------------------------------------------------

	// MarkFailed benches the current proxy and moves on to the next one.
	MarkFailed()

	// -----------------------------------------------------------------------------

	// ProxyFunc plugs the pool into an http.Transport.
	ProxyFunc() func(*http.Request) (*url.URL, error)

	// -----------------------------------------------------------------------------

	// UserAgent returns the User-Agent header for the next request.
	UserAgent() string
}
