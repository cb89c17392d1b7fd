package network

import (
	"testing"
	"time"

	"market-data-hub/src/logger"

	"github.com/stretchr/testify/require"
)

func TestParseProxy(t *testing.T) {
	t.Parallel()

	u, err := ParseProxy("10.0.0.1:3128")
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.1:3128", u.String())

	u, err = ParseProxy("socks5://user:pw@proxy.local:1080")
	require.NoError(t, err)
	require.Equal(t, "socks5", u.Scheme)

	_, err = ParseProxy("ftp://proxy.local:21")
	require.Error(t, err)
	_, err = ParseProxy("  ")
	require.Error(t, err)
}

func TestMarkFailedSkipsBenchedProxies(t *testing.T) {
	t.Parallel()

	// Arrange
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	pool := NewProxyPool([]string{"a:1", "ftp://bad:2", "b:2", "c:3"}, "", logger.NewLogger(nil, "ProxyTest"))
	pool.Now = func() time.Time { return now }
	require.Equal(t, 3, pool.Len(), "malformed entry dropped")
	require.Equal(t, "a:1", pool.Current().Host)

	// Act: a fails, then b and c fail once a's cooldown is over
	pool.MarkFailed()
	afterA := pool.Current().Host

	now = now.Add(DefaultProxyCooldown + time.Second)
	pool.MarkFailed()
	afterB := pool.Current().Host
	pool.MarkFailed()
	recovered := pool.Current().Host

	// a fails again: everything benched, plain rotation
	pool.MarkFailed()
	allBenched := pool.Current().Host

	// Assert
	require.Equal(t, "b:2", afterA)
	require.Equal(t, "c:3", afterB)
	require.Equal(t, "a:1", recovered)
	require.Equal(t, "b:2", allBenched)
}

func TestEmptyPoolGoesDirect(t *testing.T) {
	t.Parallel()

	pool := NewProxyPool(nil, "", nil)

	require.Zero(t, pool.Len())
	require.Nil(t, pool.Current())
	require.NotPanics(t, pool.MarkFailed)
	u, err := pool.ProxyFunc()(nil)
	require.NoError(t, err)
	require.Nil(t, u)
	require.Contains(t, pool.UserAgent(), "Mozilla/5.0")
}
