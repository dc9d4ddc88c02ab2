// Package proxypool implements C1: loading the active proxy set from the
// store, testing it in parallel, and round-robin rotation with best-effort
// stat tracking, grounded on proxy_manager.py's ProxyManager.
package proxypool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/harvester/internal/store"
)

// Store is the subset of store.Store the pool needs.
type Store interface {
	LoadActiveProxies(ctx context.Context) ([]store.Proxy, error)
	UpdateProxyStats(ctx context.Context, proxyID int64, success bool) error
}

// Pool rotates over a loaded, tested set of proxies (C1). Safe for
// concurrent use: Next() is a single atomic counter (§5, "counter updates
// may race harmlessly").
type Pool struct {
	db    Store
	mu    sync.RWMutex
	items []store.Proxy
	next  uint64
}

// New constructs an empty Pool; call Load then TestAll before Next.
func New(db Store) *Pool {
	return &Pool{db: db}
}

// Load reads every active proxy ordered by priority desc. Fails if zero
// results (§4.1).
func (p *Pool) Load(ctx context.Context) error {
	proxies, err := p.db.LoadActiveProxies(ctx)
	if err != nil {
		return fmt.Errorf("load proxies: %w", err)
	}
	if len(proxies) == 0 {
		return fmt.Errorf("no active proxies found")
	}

	p.mu.Lock()
	p.items = proxies
	p.next = 0
	p.mu.Unlock()

	log.Info().Int("count", len(proxies)).Msg("loaded active proxies")
	return nil
}

// TestAll concurrently probes each loaded proxy, up to 3 attempts with
// early exit on first success. Any of {200,401,403} proves reachability
// (§4.1). Returns the count of proxies that passed.
func (p *Pool) TestAll(ctx context.Context) int {
	p.mu.RLock()
	proxies := append([]store.Proxy(nil), p.items...)
	p.mu.RUnlock()

	var passed int64
	var wg sync.WaitGroup
	for _, proxy := range proxies {
		proxy := proxy
		wg.Add(1)
		go func() {
			defer wg.Done()
			if testProxy(ctx, proxy, 3) {
				atomic.AddInt64(&passed, 1)
			}
		}()
	}
	wg.Wait()

	count := int(atomic.LoadInt64(&passed))
	log.Info().Int("passed", count).Int("total", len(proxies)).Msg("proxy test complete")
	return count
}

func testProxy(ctx context.Context, proxy store.Proxy, attempts int) bool {
	target, err := proxyURL(proxy)
	if err != nil {
		log.Warn().Err(err).Str("proxy", proxy.DisplayName).Msg("invalid proxy url, test failed")
		return false
	}

	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(target),
		},
	}

	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.reddit.com/api/v1/me.json", nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				switch resp.StatusCode {
				case http.StatusOK, http.StatusUnauthorized, http.StatusForbidden:
					return true
				}
			}
		}
		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(2 * time.Second):
			}
		}
	}
	return false
}

func proxyURL(p store.Proxy) (*url.URL, error) {
	raw := fmt.Sprintf("http://%s:%s@%s", url.QueryEscape(p.Username), url.QueryEscape(p.Password), p.URL)
	return url.Parse(raw)
}

// Next returns the next proxy in round-robin order. Concurrent calls
// return distinct successive proxies modulo benign counter races.
func (p *Pool) Next() (store.Proxy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.items) == 0 {
		return store.Proxy{}, fmt.Errorf("no proxies available - call Load first")
	}
	idx := atomic.AddUint64(&p.next, 1) - 1
	return p.items[idx%uint64(len(p.items))], nil
}

// Len reports how many proxies are currently loaded.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// UpdateStats increments the proxy's success or error counter in the
// store. Failures are swallowed by the caller's discretion — this method
// still surfaces the error so the caller can log it (§4.1: best-effort).
func (p *Pool) UpdateStats(ctx context.Context, proxy store.Proxy, success bool) error {
	return p.db.UpdateProxyStats(ctx, proxy.ID, success)
}

// ProxyURL exposes the connection URL for a proxy, used by the HTTP client.
func ProxyURL(p store.Proxy) (*url.URL, error) {
	return proxyURL(p)
}
