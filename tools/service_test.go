package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"firewatch/client"
	"firewatch/config"
	"firewatch/core"
	"firewatch/fields"
	"firewatch/search"
)

var toolNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	data map[core.EntityType][]core.Record
	err  error
}

func (f *fakeFetcher) FetchAll(_ context.Context, entity core.EntityType) ([]core.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[entity], nil
}

type fakeRules struct {
	paused map[string]bool
	err    error
}

func (f *fakeRules) SetRuleStatus(_ context.Context, ruleID string, paused bool) error {
	if f.err != nil {
		return f.err
	}
	if f.paused == nil {
		f.paused = make(map[string]bool)
	}
	f.paused[ruleID] = paused
	return nil
}

func testService(t *testing.T, fetcher *fakeFetcher, rules *fakeRules) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Search.DefaultLimit = 200
	cfg.Search.MaxLimit = 1000

	if fetcher == nil {
		fetcher = &fakeFetcher{}
	}
	if rules == nil {
		rules = &fakeRules{}
	}

	s := NewService(fetcher, rules, fields.NewRegistry(), cfg, zap.NewNop())
	s.now = func() time.Time { return toolNow }
	return s
}

func alarmFixtures() []core.Record {
	return []core.Record{
		{"aid": "a1", "protocol": "tcp", "severity": "high", "ts": float64(toolNow.Unix() - 100)},
		{"aid": "a2", "protocol": "tcp", "severity": "critical", "ts": float64(toolNow.Unix() - 50)},
		{"aid": "a3", "protocol": "udp", "severity": "critical", "ts": float64(toolNow.Unix() - 10)},
		{"aid": "a4", "protocol": "tcp", "severity": "low", "ts": float64(toolNow.Unix() - 5)},
	}
}

func TestSearchEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{data: map[core.EntityType][]core.Record{
		core.EntityAlarms: alarmFixtures(),
	}}
	s := testService(t, fetcher, nil)

	result, err := s.Search(context.Background(), core.EntityAlarms, SearchRequest{
		Query: "protocol:tcp AND (severity:high OR severity:critical)",
		Limit: 10,
	})
	require.NoError(t, err)

	require.Equal(t, 2, result.Count)
	assert.Equal(t, 2, result.TotalMatches)
	// Default ordering is timestamp descending
	assert.Equal(t, "a2", result.Results[0]["aid"])
	assert.Equal(t, "a1", result.Results[1]["aid"])
	assert.Equal(t, core.EntityAlarms, result.EntityType)
	assert.False(t, result.Pagination.HasMore)
	assert.NotEmpty(t, result.QueryExecuted)
}

func TestSearchPagination(t *testing.T) {
	fetcher := &fakeFetcher{data: map[core.EntityType][]core.Record{
		core.EntityAlarms: alarmFixtures(),
	}}
	s := testService(t, fetcher, nil)

	req := SearchRequest{Query: "protocol:tcp", Limit: 2}
	first, err := s.Search(context.Background(), core.EntityAlarms, req)
	require.NoError(t, err)
	require.Equal(t, 2, first.Count)
	require.True(t, first.Pagination.HasMore)
	require.NotEmpty(t, first.Pagination.Cursor)

	req.Cursor = first.Pagination.Cursor
	second, err := s.Search(context.Background(), core.EntityAlarms, req)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count)
	assert.False(t, second.Pagination.HasMore)

	// No overlap between pages
	seen := map[interface{}]bool{}
	for _, r := range append(first.Results, second.Results...) {
		assert.False(t, seen[r["aid"]], "record %v duplicated across pages", r["aid"])
		seen[r["aid"]] = true
	}
}

func TestSearchCursorFromDifferentQuery(t *testing.T) {
	fetcher := &fakeFetcher{data: map[core.EntityType][]core.Record{
		core.EntityAlarms: alarmFixtures(),
	}}
	s := testService(t, fetcher, nil)

	first, err := s.Search(context.Background(), core.EntityAlarms, SearchRequest{Query: "protocol:tcp", Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, first.Pagination.Cursor)

	_, err = s.Search(context.Background(), core.EntityAlarms, SearchRequest{
		Query:  "protocol:udp",
		Limit:  2,
		Cursor: first.Pagination.Cursor,
	})
	require.Error(t, err)

	var cursorErr *search.CursorError
	assert.True(t, errors.As(err, &cursorErr))
}

func TestSearchValidationErrorSurface(t *testing.T) {
	s := testService(t, nil, nil)

	_, err := s.Search(context.Background(), core.EntityAlarms, SearchRequest{Query: "severty:high", Limit: 10})
	require.Error(t, err)

	var verr *search.ValidationErrors
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), `did you mean "severity"`)
}

func TestSearchRequestShape(t *testing.T) {
	s := testService(t, nil, nil)

	// Missing limit
	_, err := s.Search(context.Background(), core.EntityAlarms, SearchRequest{Query: "severity:high"})
	require.Error(t, err)
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, TypeValidation, toolErr.Type)
	assert.Contains(t, toolErr.Message, "limit")

	// Missing query
	_, err = s.Search(context.Background(), core.EntityAlarms, SearchRequest{Limit: 10})
	require.Error(t, err)
}

func TestSearchLimitCapped(t *testing.T) {
	fetcher := &fakeFetcher{data: map[core.EntityType][]core.Record{
		core.EntityAlarms: alarmFixtures(),
	}}
	s := testService(t, fetcher, nil)
	s.maxLimit = 3

	result, err := s.Search(context.Background(), core.EntityAlarms, SearchRequest{Query: "severity:>=low", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Pagination.LimitApplied)
	assert.Equal(t, 3, result.Count)
	assert.True(t, result.Pagination.HasMore)
}

func TestSearchSortBy(t *testing.T) {
	fetcher := &fakeFetcher{data: map[core.EntityType][]core.Record{
		core.EntityAlarms: alarmFixtures(),
	}}
	s := testService(t, fetcher, nil)

	result, err := s.Search(context.Background(), core.EntityAlarms, SearchRequest{
		Query:    "protocol:tcp",
		Limit:    10,
		SortBy:   "severity",
		SortDesc: true,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Count)
	assert.Equal(t, "critical", result.Results[0]["severity"])
	assert.Equal(t, "low", result.Results[2]["severity"])

	_, err = s.Search(context.Background(), core.EntityAlarms, SearchRequest{
		Query:  "protocol:tcp",
		Limit:  10,
		SortBy: "no_such_field",
	})
	require.Error(t, err)
}

func TestSearchUpstreamFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: &client.APIError{StatusCode: 502, Message: "box offline"}}
	s := testService(t, fetcher, nil)

	_, err := s.Search(context.Background(), core.EntityFlows, SearchRequest{Query: "protocol:tcp", Limit: 10})
	require.Error(t, err)

	var apiErr *client.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestRuleStatusTools(t *testing.T) {
	rules := &fakeRules{}
	s := testService(t, nil, rules)

	result, err := s.SetRuleStatus(context.Background(), RuleStatusRequest{RuleID: "rule-1"}, true)
	require.NoError(t, err)
	assert.Equal(t, "paused", result.Status)
	assert.True(t, rules.paused["rule-1"])

	result, err = s.SetRuleStatus(context.Background(), RuleStatusRequest{RuleID: "rule-1"}, false)
	require.NoError(t, err)
	assert.Equal(t, "active", result.Status)
	assert.False(t, rules.paused["rule-1"])

	_, err = s.SetRuleStatus(context.Background(), RuleStatusRequest{}, true)
	require.Error(t, err)
}

func TestDispatch(t *testing.T) {
	fetcher := &fakeFetcher{data: map[core.EntityType][]core.Record{
		core.EntityAlarms: alarmFixtures(),
	}}
	s := testService(t, fetcher, nil)

	args := json.RawMessage(`{"query": "severity:critical", "limit": 10}`)
	result, err := s.Dispatch(context.Background(), ToolSearchAlarms, args)
	require.NoError(t, err)
	searchResult, ok := result.(*SearchResult)
	require.True(t, ok)
	assert.Equal(t, 2, searchResult.Count)
}

func TestDispatchUnknownTool(t *testing.T) {
	s := testService(t, nil, nil)

	_, err := s.Dispatch(context.Background(), "search_everything", json.RawMessage(`{}`))
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, TypeUnknownTool, toolErr.Type)
	assert.Contains(t, toolErr.Message, ToolSearchFlows)
}

func TestDispatchRejectsUnknownArgs(t *testing.T) {
	s := testService(t, nil, nil)

	args := json.RawMessage(`{"query": "severity:high", "limit": 10, "qurey": "typo"}`)
	_, err := s.Dispatch(context.Background(), ToolSearchAlarms, args)
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, TypeValidation, toolErr.Type)
}

func TestDispatchErrorsAreToolErrors(t *testing.T) {
	s := testService(t, nil, nil)

	args := json.RawMessage(`{"query": "bogus_field:1", "limit": 10}`)
	_, err := s.Dispatch(context.Background(), ToolSearchAlarms, args)
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, TypeValidation, toolErr.Type)
	assert.NotEmpty(t, toolErr.Issues)
}

func TestToolNamesComplete(t *testing.T) {
	names := ToolNames()
	assert.Len(t, names, 10)
	assert.Contains(t, names, ToolSearchTargetLists)
	assert.Contains(t, names, ToolEnhancedCrossRef)
	assert.Contains(t, names, ToolPauseRule)
}
