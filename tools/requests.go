package tools

import (
	"firewatch/core"
	"firewatch/correlate"
)

// SearchRequest is the argument shape of the five per-entity search tools.
// Query and Limit are both mandatory, a search without an explicit result
// bound is rejected.
type SearchRequest struct {
	Query    string `json:"query" validate:"required"`
	Limit    int    `json:"limit" validate:"required,min=1"`
	Cursor   string `json:"cursor,omitempty"`
	SortBy   string `json:"sort_by,omitempty"`
	SortDesc bool   `json:"sort_desc,omitempty"`
}

// Pagination describes how to fetch the next page of a result set.
type Pagination struct {
	Cursor       string `json:"cursor,omitempty"`
	HasMore      bool   `json:"has_more"`
	LimitApplied int    `json:"limit_applied"`
}

// SearchResult is the success payload of a search tool.
type SearchResult struct {
	Results       []core.Record   `json:"results"`
	Count         int             `json:"count"`
	TotalMatches  int             `json:"total_matches"`
	QueryExecuted string          `json:"query_executed"`
	EntityType    core.EntityType `json:"entity_type"`
	Pagination    Pagination      `json:"pagination"`
	ExecutionMS   int64           `json:"execution_time_ms"`
}

// CrossReferenceRequest joins a primary search against secondary searches
// on one exact-match field.
type CrossReferenceRequest struct {
	PrimaryEntity    string            `json:"primary_entity" validate:"required"`
	PrimaryQuery     string            `json:"primary_query" validate:"required"`
	SecondaryQueries map[string]string `json:"secondary_queries" validate:"required,min=1"`
	CorrelationField string            `json:"correlation_field" validate:"required"`
	Limit            int               `json:"limit" validate:"required,min=1"`
}

// FuzzyOptions configures approximate matching for enhanced cross
// reference.
type FuzzyOptions struct {
	Enabled      bool    `json:"enabled"`
	MinimumScore float64 `json:"minimum_score,omitempty"`
}

// WindowOptions bounds matches to a temporal window.
type WindowOptions struct {
	Size int    `json:"size" validate:"omitempty,min=1"`
	Unit string `json:"unit,omitempty"`
}

// EnhancedCrossReferenceRequest joins on up to five fields with AND/OR
// combination, optional fuzzy matching and an optional temporal window.
type EnhancedCrossReferenceRequest struct {
	PrimaryEntity     string            `json:"primary_entity" validate:"required"`
	PrimaryQuery      string            `json:"primary_query" validate:"required"`
	SecondaryQueries  map[string]string `json:"secondary_queries" validate:"required,min=1"`
	CorrelationFields []string          `json:"correlation_fields" validate:"required,min=1,max=5"`
	Mode              string            `json:"mode,omitempty"`
	Fuzzy             FuzzyOptions      `json:"fuzzy,omitempty"`
	Window            WindowOptions     `json:"temporal_window,omitempty"`
	Limit             int               `json:"limit" validate:"required,min=1"`
}

// CrossReferenceResult is the payload of both cross-reference tools.
type CrossReferenceResult struct {
	Matches       []correlate.Match `json:"matches"`
	Count         int               `json:"count"`
	PrimaryEntity core.EntityType   `json:"primary_entity"`
	Fields        []string          `json:"correlation_fields"`
	ExecutionMS   int64             `json:"execution_time_ms"`
}

// SuggestionsRequest asks which fields correlate a set of entity types.
type SuggestionsRequest struct {
	PrimaryEntity     string   `json:"primary_entity" validate:"required"`
	SecondaryEntities []string `json:"secondary_entities" validate:"required,min=1"`
}

// SuggestionsResult lists recommended correlation field sets, best first.
type SuggestionsResult struct {
	Suggestions []correlate.Suggestion `json:"suggestions"`
	Shared      []string               `json:"shared_fields"`
}

// RuleStatusRequest names the rule a pause or resume tool acts on.
type RuleStatusRequest struct {
	RuleID string `json:"rule_id" validate:"required"`
}

// RuleStatusResult confirms the applied state change.
type RuleStatusResult struct {
	RuleID string `json:"rule_id"`
	Status string `json:"status"`
}
