package tools

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"firewatch/client"
	"firewatch/config"
	"firewatch/core"
	"firewatch/correlate"
	"firewatch/fields"
	"firewatch/metrics"
	"firewatch/search"
)

// defaultSortField orders results when a request names no sort field.
const defaultSortField = "timestamp"

// Service implements every tool the server exposes. It owns the query
// pipeline: request-shape validation, raw-text prechecks, parse, semantic
// validation, fetch, filter, sort, paginate.
type Service struct {
	fetcher        client.Fetcher
	rules          client.RuleController
	registry       *fields.Registry
	queryValidator *search.Validator
	evaluator      *search.Evaluator
	engine         *correlate.Engine
	validate       *validator.Validate
	log            *zap.Logger
	maxLimit       int

	// now is swappable so tests evaluate relative-time queries
	// deterministically
	now func() time.Time
}

// NewService wires the tool surface.
func NewService(fetcher client.Fetcher, rules client.RuleController, registry *fields.Registry, cfg *config.Config, log *zap.Logger) *Service {
	return &Service{
		fetcher:        fetcher,
		rules:          rules,
		registry:       registry,
		queryValidator: search.NewValidator(registry),
		evaluator:      search.NewEvaluator(registry),
		engine:         correlate.NewEngine(registry),
		validate:       validator.New(),
		log:            log,
		maxLimit:       cfg.Search.MaxLimit,
		now:            time.Now,
	}
}

// Search runs one per-entity search end to end.
func (s *Service) Search(ctx context.Context, entity core.EntityType, req SearchRequest) (*SearchResult, error) {
	start := time.Now()

	if err := s.validate.Struct(req); err != nil {
		metrics.ValidationFailures.WithLabelValues(string(entity)).Inc()
		return nil, requestError("invalid request: %s", requestIssueText(err))
	}

	limit := req.Limit
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	now := s.now()
	ast, err := s.compileQuery(req.Query, entity, now)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues(string(entity)).Inc()
		return nil, err
	}

	sortBy, descending := req.SortBy, req.SortDesc
	if sortBy == "" {
		// Newest first is the natural reading order for monitoring data
		sortBy, descending = defaultSortField, true
	}
	sortEntry, err := s.registry.Resolve(sortBy, entity)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues(string(entity)).Inc()
		return nil, requestError("sort_by: %s", err.Error())
	}

	sortSpec := sortBy + ":asc"
	if descending {
		sortSpec = sortBy + ":desc"
	}
	fingerprint := search.Fingerprint(ast, entity, sortSpec)

	offset := 0
	if req.Cursor != "" {
		offset, err = search.DecodeCursor(req.Cursor, fingerprint)
		if err != nil {
			return nil, err
		}
	}

	records, err := s.fetcher.FetchAll(ctx, entity)
	if err != nil {
		metrics.SearchesExecuted.WithLabelValues(string(entity), "error").Inc()
		return nil, err
	}

	matched := s.evaluator.Filter(records, ast, entity, now)
	search.SortRecords(matched, sortEntry, descending, now)

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := matched[offset:end]

	nextCursor := ""
	if end < total {
		nextCursor = search.EncodeCursor(end, fingerprint)
	}

	elapsed := time.Since(start)
	metrics.SearchesExecuted.WithLabelValues(string(entity), "ok").Inc()
	metrics.SearchDuration.WithLabelValues(string(entity)).Observe(elapsed.Seconds())

	s.log.Info("search executed",
		zap.String("entity", string(entity)),
		zap.String("query", ast.String()),
		zap.Int("total_matches", total),
		zap.Int("returned", len(page)),
		zap.Duration("elapsed", elapsed))

	return &SearchResult{
		Results:       page,
		Count:         len(page),
		TotalMatches:  total,
		QueryExecuted: ast.String(),
		EntityType:    entity,
		Pagination: Pagination{
			Cursor:       nextCursor,
			HasMore:      end < total,
			LimitApplied: limit,
		},
		ExecutionMS: elapsed.Milliseconds(),
	}, nil
}

// compileQuery runs the raw text through prechecks, the parser and the
// semantic validator.
func (s *Service) compileQuery(query string, entity core.EntityType, now time.Time) (*search.Node, error) {
	if err := s.queryValidator.PreValidate(query); err != nil {
		return nil, err
	}
	ast, err := search.Parse(query)
	if err != nil {
		return nil, err
	}
	if err := s.queryValidator.Validate(ast, entity, now); err != nil {
		return nil, err
	}
	return ast, nil
}

// SetRuleStatus pauses or resumes one rule upstream.
func (s *Service) SetRuleStatus(ctx context.Context, req RuleStatusRequest, paused bool) (*RuleStatusResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, requestError("invalid request: %s", requestIssueText(err))
	}

	if err := s.rules.SetRuleStatus(ctx, req.RuleID, paused); err != nil {
		return nil, err
	}

	status := "active"
	if paused {
		status = "paused"
	}
	return &RuleStatusResult{RuleID: req.RuleID, Status: status}, nil
}

// requestIssueText flattens struct-tag violations into one readable line.
func requestIssueText(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts[i] = strings.ToLower(fe.Field()) + " is required"
		case "min":
			parts[i] = strings.ToLower(fe.Field()) + " must be at least " + fe.Param()
		case "max":
			parts[i] = strings.ToLower(fe.Field()) + " must be at most " + fe.Param()
		default:
			parts[i] = strings.ToLower(fe.Field()) + " failed " + fe.Tag() + " validation"
		}
	}
	return strings.Join(parts, "; ")
}
