package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"firewatch/config"
	"firewatch/core"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.MSP.BaseURL = baseURL
	cfg.MSP.Token = "test-token"
	cfg.MSP.Timeout = 5 * time.Second
	cfg.MSP.RateLimit = 1000
	cfg.MSP.RateBurst = 1000
	cfg.MSP.FetchLimit = 100
	cfg.MSP.MaxFetchPages = 5
	cfg.Cache.Size = 16
	cfg.Cache.TTL = time.Minute
	return cfg
}

func TestFetchAllEnvelope(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v2/flows", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   2,
			"results": []map[string]interface{}{{"protocol": "tcp"}, {"protocol": "udp"}},
		})
	}))
	defer server.Close()

	c := New(testConfig(server.URL), zap.NewNop())
	records, err := c.FetchAll(context.Background(), core.EntityFlows)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "tcp", records[0]["protocol"])
}

func TestFetchAllBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{{"aid": "a1"}})
	}))
	defer server.Close()

	c := New(testConfig(server.URL), zap.NewNop())
	records, err := c.FetchAll(context.Background(), core.EntityAlarms)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0]["aid"])
}

func TestFetchAllFollowsPagination(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n == 1 {
			assert.Empty(t, r.URL.Query().Get("cursor"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"results":     []map[string]interface{}{{"id": "r1"}},
				"next_cursor": "page2",
			})
			return
		}
		assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"id": "r2"}},
		})
	}))
	defer server.Close()

	c := New(testConfig(server.URL), zap.NewNop())
	records, err := c.FetchAll(context.Background(), core.EntityRules)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.EqualValues(t, 2, atomic.LoadInt64(&requests))
}

func TestFetchAllCaches(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"id": "d1"}},
		})
	}))
	defer server.Close()

	c := New(testConfig(server.URL), zap.NewNop())
	_, err := c.FetchAll(context.Background(), core.EntityDevices)
	require.NoError(t, err)
	_, err = c.FetchAll(context.Background(), core.EntityDevices)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&requests))
}

func TestFetchAllUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "box offline", http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(testConfig(server.URL), zap.NewNop())
	_, err := c.FetchAll(context.Background(), core.EntityFlows)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestSetRuleStatus(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []map[string]interface{}{}})
	}))
	defer server.Close()

	c := New(testConfig(server.URL), zap.NewNop())

	require.NoError(t, c.SetRuleStatus(context.Background(), "rule-1", true))
	assert.Equal(t, "/v2/rules/rule-1/pause", gotPath)

	require.NoError(t, c.SetRuleStatus(context.Background(), "rule-1", false))
	assert.Equal(t, "/v2/rules/rule-1/resume", gotPath)

	require.Error(t, c.SetRuleStatus(context.Background(), "", true))
}

func TestSetRuleStatusInvalidatesRuleCache(t *testing.T) {
	var fetches int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		atomic.AddInt64(&fetches, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"id": "r1"}},
		})
	}))
	defer server.Close()

	c := New(testConfig(server.URL), zap.NewNop())

	_, err := c.FetchAll(context.Background(), core.EntityRules)
	require.NoError(t, err)
	require.NoError(t, c.SetRuleStatus(context.Background(), "r1", true))
	_, err = c.FetchAll(context.Background(), core.EntityRules)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt64(&fetches))
}
