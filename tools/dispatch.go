package tools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"firewatch/core"
)

// Tool names exposed by the service.
const (
	ToolSearchFlows       = "search_flows"
	ToolSearchAlarms      = "search_alarms"
	ToolSearchRules       = "search_rules"
	ToolSearchDevices     = "search_devices"
	ToolSearchTargetLists = "search_target_lists"
	ToolCrossReference    = "search_cross_reference"
	ToolEnhancedCrossRef  = "search_enhanced_cross_reference"
	ToolSuggestions       = "get_correlation_suggestions"
	ToolPauseRule         = "pause_rule"
	ToolResumeRule        = "resume_rule"
)

// searchEntities maps search tool names to their entity type.
var searchEntities = map[string]core.EntityType{
	ToolSearchFlows:       core.EntityFlows,
	ToolSearchAlarms:      core.EntityAlarms,
	ToolSearchRules:       core.EntityRules,
	ToolSearchDevices:     core.EntityDevices,
	ToolSearchTargetLists: core.EntityTargetLists,
}

// ToolNames returns every tool name, sorted.
func ToolNames() []string {
	names := []string{
		ToolCrossReference,
		ToolEnhancedCrossRef,
		ToolSuggestions,
		ToolPauseRule,
		ToolResumeRule,
	}
	for name := range searchEntities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes one tool by name with raw JSON arguments. All failures
// come back as *ToolError so transport layers map them uniformly.
func (s *Service) Dispatch(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if entity, ok := searchEntities[name]; ok {
		var req SearchRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		result, err := s.Search(ctx, entity, req)
		return toolResult(result, err)
	}

	switch name {
	case ToolCrossReference:
		var req CrossReferenceRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		result, err := s.CrossReference(ctx, req)
		return toolResult(result, err)

	case ToolEnhancedCrossRef:
		var req EnhancedCrossReferenceRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		result, err := s.EnhancedCrossReference(ctx, req)
		return toolResult(result, err)

	case ToolSuggestions:
		var req SuggestionsRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		result, err := s.CorrelationSuggestions(req)
		return toolResult(result, err)

	case ToolPauseRule:
		var req RuleStatusRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		result, err := s.SetRuleStatus(ctx, req, true)
		return toolResult(result, err)

	case ToolResumeRule:
		var req RuleStatusRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		result, err := s.SetRuleStatus(ctx, req, false)
		return toolResult(result, err)
	}

	return nil, &ToolError{
		IsError: true,
		Message: "unknown tool " + name + " (available: " + strings.Join(ToolNames(), ", ") + ")",
		Type:    TypeUnknownTool,
	}
}

// decodeArgs parses raw tool arguments, rejecting unknown keys so typos in
// argument names fail loudly instead of being ignored.
func decodeArgs(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return requestError("missing tool arguments")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return requestError("malformed tool arguments: %s", err.Error())
	}
	return nil
}

// toolResult normalizes a handler's return pair: errors become *ToolError.
func toolResult(result interface{}, err error) (interface{}, error) {
	if err != nil {
		var toolErr *ToolError
		if e, ok := err.(*ToolError); ok {
			toolErr = e
		} else {
			toolErr = AsToolError(err)
		}
		return nil, toolErr
	}
	return result, nil
}
