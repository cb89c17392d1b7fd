package cache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is the in-process backend. When full, the entry closest to
// expiry is evicted.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	Now        func() time.Time
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		Now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

func (ms *MemoryStore) Name() string {
	return "memory"
}

// -----------------------------------------------------------------------------

// get expects mu held.
func (ms *MemoryStore) get(key string, now time.Time) ([]byte, bool) {
	e, ok := ms.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expires) {
		delete(ms.entries, key)
		return nil, false
	}
	return e.value, true
}

func (ms *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	v, ok := ms.get(key, ms.Now())
	return v, ok, nil
}

// -----------------------------------------------------------------------------

func (ms *MemoryStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.Now()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i], _ = ms.get(k, now)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// set expects mu held.
func (ms *MemoryStore) set(key string, value []byte, ttl time.Duration, now time.Time) {
	if _, exists := ms.entries[key]; !exists && ms.maxEntries > 0 && len(ms.entries) >= ms.maxEntries {
		ms.evict(now)
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	ms.entries[key] = memoryEntry{value: buf, expires: now.Add(ttl)}
}

func (ms *MemoryStore) evict(now time.Time) {
	var victim string
	var soonest time.Time
	for k, e := range ms.entries {
		if !now.Before(e.expires) {
			delete(ms.entries, k)
			continue
		}
		if victim == "" || e.expires.Before(soonest) {
			victim, soonest = k, e.expires
		}
	}
	if len(ms.entries) >= ms.maxEntries && victim != "" {
		delete(ms.entries, victim)
	}
}

func (ms *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.set(key, value, ttl, ms.Now())
	return nil
}

// -----------------------------------------------------------------------------

func (ms *MemoryStore) SetMany(_ context.Context, entries map[string][]byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.Now()
	for k, v := range entries {
		ms.set(k, v, ttl, now)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (ms *MemoryStore) Delete(_ context.Context, keys ...string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var n int64
	for _, k := range keys {
		if _, ok := ms.entries[k]; ok {
			delete(ms.entries, k)
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------

// DeletePattern follows Redis glob rules: * and ? also match '/', backslash escapes.
func (ms *MemoryStore) DeletePattern(_ context.Context, pattern string) (int64, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return 0, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var n int64
	for k := range ms.entries {
		if re.MatchString(k) {
			delete(ms.entries, k)
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------

func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.entries)
}

func (ms *MemoryStore) Ping(context.Context) error { return nil }

func (ms *MemoryStore) Close() error { return nil }

// -----------------------------------------------------------------------------

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteString(regexp.QuoteMeta(string(runes[i])))
			}
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j == len(runes) {
				b.WriteString(`\[`)
				continue
			}
			class := string(runes[i+1 : j])
			if strings.HasPrefix(class, "^") {
				class = "^" + regexp.QuoteMeta(class[1:])
			} else {
				class = regexp.QuoteMeta(class)
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\-`, "-") + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
