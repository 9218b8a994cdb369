// Package erpapi talks to the ERP REST API that owns drivers, truckloads
// and driver events.
package erpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"truckplan/internal/metrics"
	"truckplan/internal/model"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Client fetches planner data for a date range and reassigns truckloads.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration

	limiter *rate.Limiter
}

// NewClient constructs a client with baseURL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching for range fetches.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// LimitMutations throttles reassignment calls. Zero perSecond disables the limit.
func (c *Client) LimitMutations(perSecond float64, burst int) {
	if perSecond <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Name identifies the source in logs and metrics.
func (c *Client) Name() string {
	return "erp"
}

func rangeCacheKey(start, end string) string {
	return fmt.Sprintf("planner:range:%s:%s", start, end)
}

// FetchRange returns drivers, truckloads and driver events overlapping
// [start, end], both YYYY-MM-DD.
func (c *Client) FetchRange(ctx context.Context, start, end string) (*model.PlannerData, error) {
	endpoint := fmt.Sprintf("%s/api/planner?start=%s&end=%s", c.baseURL, url.QueryEscape(start), url.QueryEscape(end))
	cacheKey := rangeCacheKey(start, end)
	var data model.PlannerData

	if c.readCache(ctx, cacheKey, &data) {
		return &data, nil
	}

	if err := c.doGet(ctx, endpoint, &data); err != nil {
		metrics.IncRangeFetch(c.Name(), "error")
		return nil, fmt.Errorf("fetch planner range %s..%s: %w", start, end, err)
	}
	metrics.IncRangeFetch(c.Name(), "ok")
	c.writeCache(ctx, cacheKey, data)
	return &data, nil
}

// Invalidate drops the cached copy of a range.
func (c *Client) Invalidate(ctx context.Context, start, end string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, rangeCacheKey(start, end)).Err()
}

// InvalidateAll drops every cached range.
func (c *Client) InvalidateAll(ctx context.Context) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, "planner:range:*", 100).Iterator()
	for iter.Next(ctx) {
		_ = c.redis.Del(ctx, iter.Val()).Err()
	}
}

type reassignRequest struct {
	DriverID int64 `json:"driverId"`
}

// ReassignTruckload moves a truckload to another driver.
func (c *Client) ReassignTruckload(ctx context.Context, truckloadID, driverID int64) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("reassign rate limit: %w", err)
		}
	}
	endpoint := fmt.Sprintf("%s/api/truckloads/%d", c.baseURL, truckloadID)
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, reassignRequest{DriverID: driverID}, nil); err != nil {
		return fmt.Errorf("reassign truckload %d: %w", truckloadID, err)
	}
	c.InvalidateAll(ctx)
	return nil
}

// HealthCheck checks if the ERP API is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/healthz", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		metrics.IncCacheLookup("miss")
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		metrics.IncCacheLookup("miss")
		return false
	}
	metrics.IncCacheLookup("hit")
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
