package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"firewatch/core"
	"firewatch/correlate"
	"firewatch/metrics"
)

// CrossReference joins a primary search against secondary searches on one
// exact-match correlation field.
func (s *Service) CrossReference(ctx context.Context, req CrossReferenceRequest) (*CrossReferenceResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, requestError("invalid request: %s", requestIssueText(err))
	}

	spec := correlate.Spec{
		Fields: []string{req.CorrelationField},
		Mode:   correlate.ModeAnd,
	}
	return s.runCorrelation(ctx, req.PrimaryEntity, req.PrimaryQuery, req.SecondaryQueries, spec, req.Limit)
}

// EnhancedCrossReference joins on up to five fields with configurable
// combination mode, fuzzy matching and a temporal window.
func (s *Service) EnhancedCrossReference(ctx context.Context, req EnhancedCrossReferenceRequest) (*CrossReferenceResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, requestError("invalid request: %s", requestIssueText(err))
	}

	mode := strings.ToUpper(req.Mode)
	if mode == "" {
		mode = correlate.ModeAnd
	}

	fuzzy := correlate.Fuzzy{Enabled: req.Fuzzy.Enabled, MinimumScore: req.Fuzzy.MinimumScore}
	if fuzzy.Enabled && fuzzy.MinimumScore == 0 {
		fuzzy.MinimumScore = 0.8
	}

	spec := correlate.Spec{
		Fields: req.CorrelationFields,
		Mode:   mode,
		Fuzzy:  fuzzy,
		Window: correlate.Window{Size: req.Window.Size, Unit: req.Window.Unit},
	}
	return s.runCorrelation(ctx, req.PrimaryEntity, req.PrimaryQuery, req.SecondaryQueries, spec, req.Limit)
}

// runCorrelation executes the searches on both sides and feeds the result
// sets through the correlation engine.
func (s *Service) runCorrelation(ctx context.Context, primaryEntity, primaryQuery string, secondaryQueries map[string]string, spec correlate.Spec, limit int) (*CrossReferenceResult, error) {
	start := time.Now()

	primary, err := core.ParseEntityType(primaryEntity)
	if err != nil {
		return nil, requestError("primary_entity: %s", err.Error())
	}

	// Fix the secondary order up front so identical requests produce
	// identical match order and the limit truncation keeps the same pairs
	names := make([]string, 0, len(secondaryQueries))
	for name := range secondaryQueries {
		names = append(names, name)
	}
	sort.Strings(names)

	secondaryEntities := make([]core.EntityType, 0, len(names))
	for _, name := range names {
		entity, err := core.ParseEntityType(name)
		if err != nil {
			return nil, requestError("secondary_queries: %s", err.Error())
		}
		if entity == primary {
			return nil, requestError("secondary_queries: entity type %q is already the primary", name)
		}
		secondaryEntities = append(secondaryEntities, entity)
	}

	// Reject a bad correlation setup before spending any fetches on it
	if err := s.engine.ValidateSpec(spec, primary, secondaryEntities...); err != nil {
		metrics.CorrelationsExecuted.WithLabelValues("rejected").Inc()
		return nil, err
	}

	now := s.now()

	primarySet, err := s.fetchFiltered(ctx, primary, primaryQuery, now)
	if err != nil {
		metrics.CorrelationsExecuted.WithLabelValues("error").Inc()
		return nil, err
	}

	secondarySets := make([]correlate.ResultSet, 0, len(secondaryEntities))
	for _, entity := range secondaryEntities {
		set, err := s.fetchFiltered(ctx, entity, secondaryQueries[string(entity)], now)
		if err != nil {
			metrics.CorrelationsExecuted.WithLabelValues("error").Inc()
			return nil, err
		}
		secondarySets = append(secondarySets, set)
	}

	matches, err := s.engine.Correlate(primarySet, secondarySets, spec, now)
	if err != nil {
		metrics.CorrelationsExecuted.WithLabelValues("rejected").Inc()
		return nil, err
	}

	total := len(matches)
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []correlate.Match{}
	}

	elapsed := time.Since(start)
	metrics.CorrelationsExecuted.WithLabelValues("ok").Inc()
	metrics.CorrelationMatches.Observe(float64(total))

	s.log.Info("correlation executed",
		zap.String("primary", string(primary)),
		zap.Strings("fields", spec.Fields),
		zap.Int("matches", total),
		zap.Duration("elapsed", elapsed))

	return &CrossReferenceResult{
		Matches:       matches,
		Count:         len(matches),
		PrimaryEntity: primary,
		Fields:        spec.Fields,
		ExecutionMS:   elapsed.Milliseconds(),
	}, nil
}

// fetchFiltered runs one side of a correlation: compile the query, fetch
// the entity's records, filter.
func (s *Service) fetchFiltered(ctx context.Context, entity core.EntityType, query string, now time.Time) (correlate.ResultSet, error) {
	if query == "" {
		return correlate.ResultSet{}, requestError("missing query for entity type %q", entity)
	}

	ast, err := s.compileQuery(query, entity, now)
	if err != nil {
		return correlate.ResultSet{}, err
	}

	records, err := s.fetcher.FetchAll(ctx, entity)
	if err != nil {
		return correlate.ResultSet{}, err
	}

	return correlate.ResultSet{
		Entity:  entity,
		Records: s.evaluator.Filter(records, ast, entity, now),
	}, nil
}

// CorrelationSuggestions recommends field sets for joining the given
// entity types.
func (s *Service) CorrelationSuggestions(req SuggestionsRequest) (*SuggestionsResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, requestError("invalid request: %s", requestIssueText(err))
	}

	primary, err := core.ParseEntityType(req.PrimaryEntity)
	if err != nil {
		return nil, requestError("primary_entity: %s", err.Error())
	}

	secondaries := make([]core.EntityType, 0, len(req.SecondaryEntities))
	for _, name := range req.SecondaryEntities {
		entity, err := core.ParseEntityType(name)
		if err != nil {
			return nil, requestError("secondary_entities: %s", err.Error())
		}
		secondaries = append(secondaries, entity)
	}

	shared := s.registry.SharedFields(append([]core.EntityType{primary}, secondaries...)...)
	if len(shared) == 0 {
		return nil, &correlate.CorrelationError{
			Message: fmt.Sprintf("entity types %v share no correlatable fields", append([]string{string(primary)}, req.SecondaryEntities...)),
		}
	}

	return &SuggestionsResult{
		Suggestions: correlate.SuggestFields(s.registry, primary, secondaries...),
		Shared:      shared,
	}, nil
}
