package network

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"market-data-hub/src/logger"
)

// how long a failed proxy is skipped
const DefaultProxyCooldown = 2 * time.Minute

// vendors such as Yahoo reject the default Go client User-Agent
var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// -----------------------------------------------------------------------------

// ProxyPool rotates over the configured proxies. A proxy that failed is
// skipped for Cooldown unless every proxy is cooling down.
type ProxyPool struct {
	Cooldown time.Duration
	Now      func() time.Time
	Logger   *logger.Logger

	mu        sync.Mutex
	proxies   []*url.URL
	benched   []time.Time
	index     int
	userAgent string
}

// -----------------------------------------------------------------------------

// NewProxyPool drops malformed entries with a warning. A non-empty userAgent
// pins the header; otherwise a browser User-Agent is picked per request.
func NewProxyPool(raw []string, userAgent string, log *logger.Logger) *ProxyPool {
	p := &ProxyPool{
		Cooldown:  DefaultProxyCooldown,
		Now:       time.Now,
		Logger:    log,
		userAgent: userAgent,
	}
	for _, s := range raw {
		u, err := ParseProxy(s)
		if err != nil {
			log.Warning("Ignoring proxy %q: %v", s, err)
			continue
		}
		p.proxies = append(p.proxies, u)
	}
	p.benched = make([]time.Time, len(p.proxies))
	return p
}

// -----------------------------------------------------------------------------

// ParseProxy accepts host:port or a full URL with http, https or socks5 scheme.
func ParseProxy(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty proxy")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy has no host")
	}
	return u, nil
}

// -----------------------------------------------------------------------------

func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

func (p *ProxyPool) Current() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return nil
	}
	return p.proxies[p.index]
}

// -----------------------------------------------------------------------------

// MarkFailed benches the current proxy and selects the next one not cooling
// down. With every proxy benched the plain next one is used.
func (p *ProxyPool) MarkFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.proxies)
	if n == 0 {
		return
	}
	now := p.Now()
	p.benched[p.index] = now

	next := (p.index + 1) % n
	for i := 1; i <= n; i++ {
		candidate := (p.index + i) % n
		if now.Sub(p.benched[candidate]) >= p.Cooldown {
			next = candidate
			break
		}
	}
	if next != p.index {
		p.Logger.Info("Rotating proxy to %s", p.proxies[next].Host)
	}
	p.index = next
}

// -----------------------------------------------------------------------------

func (p *ProxyPool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return p.Current(), nil
	}
}

func (p *ProxyPool) UserAgent() string {
	if p.userAgent != "" {
		return p.userAgent
	}
	return browserUserAgents[rand.IntN(len(browserUserAgents))]
}
