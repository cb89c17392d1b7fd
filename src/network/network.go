package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
)

// maximum response body accepted from a vendor
const maxBodyBytes = 16 << 20

type AsyncNetworkManager struct {
	Config    models.MNetworkConfig
	Proxies   interfaces.IProxyPool
	Client    *http.Client
	Logger    *logger.Logger
	BaseDelay time.Duration
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg models.MNetworkConfig, log *logger.Logger) *AsyncNetworkManager {
	nm := &AsyncNetworkManager{
		Config:    cfg,
		Proxies:   NewProxyPool(cfg.Proxies, cfg.UserAgent, log.Named("Proxies")),
		Logger:    log,
		BaseDelay: 500 * time.Millisecond,
	}
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if nm.Proxies.Len() > 0 {
		transport.Proxy = nm.Proxies.ProxyFunc()
	}

	timeout := time.Duration(nm.Config.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
// Vendor answers are classified: 401/403 authentication, 429 rate limit,
// 404 no data, anything else non-2xx a provider error. Only transport
// failures and 5xx are retried here; the router handles the rest.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string, headers map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewProviderError("", "invalid url", err)
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	var body []byte
	attempt := 0
	err = helpers.RetryWithBackoff(ctx, nm.Logger, reqUrl.Host+reqUrl.Path, nm.Config.MaxRetries+1, nm.BaseDelay, func() error {
		if attempt > 0 {
			nm.Proxies.MarkFailed()
		}
		attempt++

		b, err := nm.do(ctx, finalUrl, headers)
		if err != nil {
			if !retryable(err) {
				return helpers.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalUrl string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalUrl, nil)
	if err != nil {
		return nil, helpers.NewProviderError("", "build request", err)
	}

	req.Header.Set("User-Agent", nm.Proxies.UserAgent())
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		nm.Logger.Debug("Request failed: %v", err)
		return nil, helpers.NewProviderError("", "transport", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, helpers.NewAuthenticationError("", fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		nm.Logger.Info("Request throttled (429). Rotating proxy for next call.")
		nm.Proxies.MarkFailed()
		return nil, helpers.NewRateLimitError("", parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, helpers.NewDataNotAvailableError("", finalUrl)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		perr := helpers.NewProviderError("", fmt.Sprintf("bad status: %d", resp.StatusCode), nil)
		perr.StatusCode = resp.StatusCode
		return nil, perr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, helpers.NewProviderError("", "read body", err)
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func retryable(err error) bool {
	var perr *helpers.ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.StatusCode == 0 || perr.StatusCode >= 500
}

// -----------------------------------------------------------------------------

// parseRetryAfter reads delta-seconds or an HTTP date. Zero when absent.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
