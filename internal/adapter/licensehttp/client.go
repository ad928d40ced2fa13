// Package licensehttp implements the license port against the billing
// service's HTTP API.
package licensehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/guildkit/guildkit/internal/domain/entitlement"
	"github.com/guildkit/guildkit/internal/port/cache"
	"github.com/guildkit/guildkit/internal/resilience"
)

// Client fetches entitlements over HTTP. A circuit breaker protects the
// license service; a short-TTL cache absorbs repeated premium checks.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
	cache      cache.Cache
	ttl        time.Duration
}

// NewClient creates a license client. cache may be nil to disable caching.
func NewClient(baseURL, apiKey string, breaker *resilience.Breaker, c cache.Cache, ttl time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker,
		cache:      c,
		ttl:        ttl,
	}
}

func cacheKey(guildID string) string { return "entitlement:" + guildID }

// FetchEntitlement returns the current entitlement for a guild. Cache hits
// short-circuit the HTTP call; misses go through the circuit breaker.
func (c *Client) FetchEntitlement(ctx context.Context, guildID string) (*entitlement.Record, error) {
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, cacheKey(guildID)); err == nil && ok {
			var rec entitlement.Record
			if err := json.Unmarshal(data, &rec); err == nil {
				return &rec, nil
			}
			slog.Warn("cached entitlement corrupt, refetching", "guild_id", guildID)
		}
	}

	var rec *entitlement.Record
	err := c.breaker.Execute(func() error {
		var fetchErr error
		rec, fetchErr = c.fetch(ctx, guildID)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch entitlement for %s: %w", guildID, err)
	}

	if c.cache != nil {
		if data, err := json.Marshal(rec); err == nil {
			_ = c.cache.Set(ctx, cacheKey(guildID), data, c.ttl)
		}
	}
	return rec, nil
}

func (c *Client) fetch(ctx context.Context, guildID string) (*entitlement.Record, error) {
	url := fmt.Sprintf("%s/v1/entitlements/%s", c.baseURL, guildID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("license request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		// No subscription on file: the guild is on the free plan.
		return &entitlement.Record{GuildID: guildID, Plan: entitlement.PlanFree, IssuedAt: time.Now()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("license service returned %d: %s", resp.StatusCode, body)
	}

	var rec entitlement.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode entitlement: %w", err)
	}
	rec.GuildID = guildID
	return &rec, nil
}
