// Package httpclient implements C3: a single proxied request with a fresh
// transport and User-Agent per attempt, status classification, and
// jittered backoff retry, grounded on the original scraper's make_request
// helper and generalized from the teacher's RocketAPI client
// (pkg/external/rocketapi.go) retry loop.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/harvester/internal/proxypool"
	"github.com/b9dashboard/harvester/internal/store"
	"github.com/b9dashboard/harvester/internal/useragent"
)

// Outcome classifies a completed attempt (§4.2).
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeBanned     Outcome = "banned"      // 404 on a subreddit/user-shaped path
	OutcomeNotFound   Outcome = "not_found"   // 404 on a post/content path
	OutcomeForbidden  Outcome = "forbidden"   // 403
	OutcomeRateLimit  Outcome = "rate_limit"  // 429
	OutcomeTimeout    Outcome = "timeout"
	OutcomeNetworkErr Outcome = "network_error"
)

// Result is what Request returns on every completed (non-retry-exhausted)
// attempt.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
}

// NotFoundKind tells Request whether a 404 on this URL means "banned" (a
// subreddit/user page) or "not_found" (a post/content page) — the original
// scraper distinguishes these by which endpoint was hit (§4.2).
type NotFoundKind int

const (
	NotFoundIsBanned NotFoundKind = iota
	NotFoundIsContent
)

const (
	requestTimeout = 15 * time.Second
	maxRetries     = 3
)

// Client issues single HTTP GET requests through the proxy pool, with a
// fresh http.Transport and User-Agent per attempt (so repeated 403/429s
// don't keep hammering through the same TCP connection fingerprint).
type Client struct {
	proxies *proxypool.Pool
	ua      *useragent.Generator
}

// New builds a Client bound to a proxy pool and UA generator.
func New(proxies *proxypool.Pool, ua *useragent.Generator) *Client {
	return &Client{proxies: proxies, ua: ua}
}

// Get performs one logical request, making up to maxRetries attempts in
// total, retrying on timeout/network-error/rate-limit outcomes with jittered exponential
// backoff. Every attempt updates proxy stats in the store. A non-retryable
// outcome (ok/banned/not_found/forbidden) returns immediately.
func (c *Client) Get(ctx context.Context, url string, nfKind NotFoundKind) (*Result, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		proxy, err := c.proxies.Next()
		if err != nil {
			return nil, fmt.Errorf("get next proxy: %w", err)
		}

		result, err := c.attempt(ctx, url, proxy, nfKind)
		success := err == nil && (result == nil || result.Outcome == OutcomeOK)
		if statsErr := c.proxies.UpdateStats(ctx, proxy, success); statsErr != nil {
			log.Warn().Err(statsErr).Msg("failed to update proxy stats")
		}

		if err != nil {
			lastErr = err
			c.backoff(ctx, attempt)
			continue
		}

		switch result.Outcome {
		case OutcomeTimeout, OutcomeRateLimit, OutcomeNetworkErr:
			lastErr = fmt.Errorf("retryable outcome: %s", result.Outcome)
			log.Debug().Str("url", url).Str("outcome", string(result.Outcome)).Int("attempt", attempt+1).Msg("request retrying")
			c.backoff(ctx, attempt)
			continue
		default:
			return result, nil
		}
	}

	return nil, fmt.Errorf("request exhausted retries: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, url string, proxy store.Proxy, nfKind NotFoundKind) (*Result, error) {
	target, err := proxypool.ProxyURL(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy: %w", err)
	}

	client := &http.Client{
		Timeout:   requestTimeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(target)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua.Next())
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Result{Outcome: classifyNetworkError(err)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{Outcome: OutcomeNetworkErr, StatusCode: resp.StatusCode}, nil
	}

	return &Result{
		Outcome:    classifyStatus(resp.StatusCode, nfKind),
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

func classifyStatus(code int, nfKind NotFoundKind) Outcome {
	switch code {
	case http.StatusOK:
		return OutcomeOK
	case http.StatusNotFound:
		if nfKind == NotFoundIsBanned {
			return OutcomeBanned
		}
		return OutcomeNotFound
	case http.StatusForbidden:
		return OutcomeForbidden
	case http.StatusTooManyRequests:
		return OutcomeRateLimit
	default:
		return OutcomeNetworkErr
	}
}

func classifyNetworkError(err error) Outcome {
	if err == context.DeadlineExceeded {
		return OutcomeTimeout
	}
	return OutcomeNetworkErr
}

// backoff sleeps for an exponentially growing, jittered interval — the
// generalized form of the original scraper's retry delay.
func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Duration(1<<attempt) * time.Second
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	select {
	case <-ctx.Done():
	case <-time.After(base + jitter):
	}
}

// DecodeJSON is a small convenience for callers that know the body is JSON.
func DecodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
