package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"firewatch/config"
	"firewatch/core"
	"firewatch/metrics"
	"firewatch/util"
)

// maxResponseBytes bounds one upstream response body.
const maxResponseBytes = 32 * 1024 * 1024

// entityPaths maps entity types to their MSP API resource paths.
var entityPaths = map[core.EntityType]string{
	core.EntityFlows:       "flows",
	core.EntityAlarms:      "alarms",
	core.EntityRules:       "rules",
	core.EntityDevices:     "devices",
	core.EntityTargetLists: "target-lists",
}

// APIError reports a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("upstream API error (status %d): %s", e.StatusCode, e.Message)
}

// Is implements error matching for errors.Is().
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

// Fetcher retrieves all records of one entity type from the upstream
// service. Implemented by *Client and replaced by fakes in tests.
type Fetcher interface {
	FetchAll(ctx context.Context, entity core.EntityType) ([]core.Record, error)
}

// RuleController toggles rule enforcement upstream.
type RuleController interface {
	SetRuleStatus(ctx context.Context, ruleID string, paused bool) error
}

// Client talks to the MSP API. Responses are cached briefly so one
// interactive session filtering the same entity repeatedly does not hammer
// the upstream, and all requests flow through a shared rate limiter.
type Client struct {
	baseURL    string
	token      string
	boxID      string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *expirable.LRU[string, []core.Record]
	log        *zap.Logger
	fetchLimit int
	maxPages   int
}

// New builds a client from configuration.
func New(cfg *config.Config, log *zap.Logger) *Client {
	var cache *expirable.LRU[string, []core.Record]
	if cfg.Cache.Size > 0 {
		cache = expirable.NewLRU[string, []core.Record](cfg.Cache.Size, nil, cfg.Cache.TTL)
	}

	return &Client{
		baseURL:    cfg.MSP.BaseURL,
		token:      cfg.MSP.Token,
		boxID:      cfg.MSP.BoxID,
		httpClient: &http.Client{Timeout: cfg.MSP.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.MSP.RateLimit), cfg.MSP.RateBurst),
		cache:      cache,
		log:        log,
		fetchLimit: cfg.MSP.FetchLimit,
		maxPages:   cfg.MSP.MaxFetchPages,
	}
}

// pageEnvelope is the upstream page shape. Some endpoints return a bare
// array instead; fetchPage handles both.
type pageEnvelope struct {
	Results    []core.Record `json:"results"`
	Count      int           `json:"count"`
	NextCursor string        `json:"next_cursor"`
}

// FetchAll retrieves every record of one entity type, following upstream
// pagination up to the configured page bound. The full set is cached per
// entity type for the cache TTL.
func (c *Client) FetchAll(ctx context.Context, entity core.EntityType) ([]core.Record, error) {
	path, ok := entityPaths[entity]
	if !ok {
		return nil, fmt.Errorf("no upstream path for entity type %q", entity)
	}

	if c.cache != nil {
		if records, ok := c.cache.Get(string(entity)); ok {
			metrics.CacheHits.WithLabelValues(string(entity)).Inc()
			return records, nil
		}
		metrics.CacheMisses.WithLabelValues(string(entity)).Inc()
	}

	var all []core.Record
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		env, err := c.fetchPage(ctx, entity, path, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, env.Results...)

		if env.NextCursor == "" || len(env.Results) == 0 {
			break
		}
		cursor = env.NextCursor
	}

	c.log.Debug("fetched upstream records",
		zap.String("entity", string(entity)),
		zap.Int("count", len(all)))

	if c.cache != nil {
		c.cache.Add(string(entity), all)
	}
	return all, nil
}

// fetchPage retrieves one upstream page.
func (c *Client) fetchPage(ctx context.Context, entity core.EntityType, path, cursor string) (*pageEnvelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint, err := c.buildURL(path, cursor)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues(string(entity)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(string(entity), "error").Inc()
		return nil, fmt.Errorf("upstream request failed: %s", util.SanitizeError(err))
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(string(entity), strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    util.TruncateForLog(string(body), 200),
		}
	}

	return decodePage(body)
}

// decodePage accepts both the enveloped and the bare-array response shapes.
func decodePage(body []byte) (*pageEnvelope, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Results != nil {
		return &env, nil
	}

	var records []core.Record
	if err := json.Unmarshal(body, &records); err == nil {
		return &pageEnvelope{Results: records}, nil
	}

	return nil, fmt.Errorf("upstream response is neither a result envelope nor a record array")
}

// SetRuleStatus pauses or resumes a rule upstream. The response body is
// discarded, a 2xx status is the whole contract.
func (c *Client) SetRuleStatus(ctx context.Context, ruleID string, paused bool) error {
	if ruleID == "" {
		return fmt.Errorf("rule id cannot be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	action := "resume"
	if paused {
		action = "pause"
	}
	endpoint := fmt.Sprintf("%s/v2/rules/%s/%s", c.baseURL, url.PathEscape(ruleID), action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %s", util.SanitizeError(err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    util.TruncateForLog(string(body), 200),
		}
	}

	c.log.Info("rule status changed",
		zap.String("rule_id", ruleID),
		zap.Bool("paused", paused))

	// Rule mutations invalidate the cached rule set
	if c.cache != nil {
		c.cache.Remove(string(core.EntityRules))
	}
	return nil
}

// buildURL assembles one paginated collection URL.
func (c *Client) buildURL(path, cursor string) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v2/%s", c.baseURL, path))
	if err != nil {
		return "", fmt.Errorf("invalid upstream URL: %w", err)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(c.fetchLimit))
	if c.boxID != "" {
		q.Set("box", c.boxID)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// authorize attaches the MSP token.
func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
}
