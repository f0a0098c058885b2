package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewatch/core"
	"firewatch/correlate"
)

func correlationFixtures() map[core.EntityType][]core.Record {
	base := float64(toolNow.Unix())
	return map[core.EntityType][]core.Record{
		core.EntityFlows: {
			{"device": map[string]interface{}{"ip": "192.168.1.50"}, "protocol": "tcp", "block": true, "ts": base - 60},
			{"device": map[string]interface{}{"ip": "192.168.1.99"}, "protocol": "tcp", "block": true, "ts": base - 30},
			{"device": map[string]interface{}{"ip": "10.0.0.7"}, "protocol": "udp", "block": false, "ts": base - 10},
		},
		core.EntityAlarms: {
			{"aid": "a1", "deviceIP": "192.168.1.50", "severity": "high", "ts": base - 50},
			{"aid": "a2", "deviceIP": "172.16.0.9", "severity": "critical", "ts": base - 40},
		},
	}
}

func TestCrossReferenceExactMatch(t *testing.T) {
	fetcher := &fakeFetcher{data: correlationFixtures()}
	s := testService(t, fetcher, nil)

	result, err := s.CrossReference(context.Background(), CrossReferenceRequest{
		PrimaryEntity:    "flows",
		PrimaryQuery:     "blocked:true",
		SecondaryQueries: map[string]string{"alarms": "severity:>=high"},
		CorrelationField: "device_ip",
		Limit:            100,
	})
	require.NoError(t, err)

	require.Equal(t, 1, result.Count)
	match := result.Matches[0]
	assert.Equal(t, []string{"device_ip"}, match.MatchedFields)
	assert.Equal(t, 1.0, match.Confidence)
	assert.Equal(t, core.EntityAlarms, match.SecondaryEntity)
	assert.Equal(t, "a1", match.Secondary["aid"])
}

func TestCrossReferenceIncompatibleFieldRejectsWholeRequest(t *testing.T) {
	fetcher := &fakeFetcher{data: correlationFixtures()}
	s := testService(t, fetcher, nil)

	_, err := s.CrossReference(context.Background(), CrossReferenceRequest{
		PrimaryEntity:    "flows",
		PrimaryQuery:     "blocked:true",
		SecondaryQueries: map[string]string{"alarms": "severity:>=high"},
		CorrelationField: "severity",
		Limit:            100,
	})
	require.Error(t, err)

	var corrErr *correlate.CorrelationError
	require.True(t, errors.As(err, &corrErr))
	assert.Equal(t, "severity", corrErr.Field)
}

func TestEnhancedCrossReferenceFuzzy(t *testing.T) {
	fetcher := &fakeFetcher{data: correlationFixtures()}
	s := testService(t, fetcher, nil)

	result, err := s.EnhancedCrossReference(context.Background(), EnhancedCrossReferenceRequest{
		PrimaryEntity:     "flows",
		PrimaryQuery:      "protocol:tcp",
		SecondaryQueries:  map[string]string{"alarms": "severity:>=high"},
		CorrelationFields: []string{"device_ip"},
		Fuzzy:             FuzzyOptions{Enabled: true, MinimumScore: 0.7},
		Limit:             100,
	})
	require.NoError(t, err)

	// 192.168.1.50 matches exactly, 192.168.1.99 matches the same /24
	require.Equal(t, 2, result.Count)
	assert.Equal(t, 1.0, result.Matches[0].Confidence)
	assert.InDelta(t, 0.75, result.Matches[1].Confidence, 1e-9)
}

func TestEnhancedCrossReferenceTemporalWindow(t *testing.T) {
	fetcher := &fakeFetcher{data: correlationFixtures()}
	s := testService(t, fetcher, nil)

	result, err := s.EnhancedCrossReference(context.Background(), EnhancedCrossReferenceRequest{
		PrimaryEntity:     "flows",
		PrimaryQuery:      "blocked:true",
		SecondaryQueries:  map[string]string{"alarms": "severity:>=high"},
		CorrelationFields: []string{"device_ip"},
		Window:            WindowOptions{Size: 15, Unit: "seconds"},
		Limit:             100,
	})
	require.NoError(t, err)
	// The matching alarm is 10 seconds away from the flow, inside the window
	assert.Equal(t, 1, result.Count)

	result, err = s.EnhancedCrossReference(context.Background(), EnhancedCrossReferenceRequest{
		PrimaryEntity:     "flows",
		PrimaryQuery:      "blocked:true",
		SecondaryQueries:  map[string]string{"alarms": "severity:>=high"},
		CorrelationFields: []string{"device_ip"},
		Window:            WindowOptions{Size: 5, Unit: "seconds"},
		Limit:             100,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
}

func TestEnhancedCrossReferenceDefaults(t *testing.T) {
	fetcher := &fakeFetcher{data: correlationFixtures()}
	s := testService(t, fetcher, nil)

	// Mode defaults to AND, fuzzy minimum score defaults when enabled
	result, err := s.EnhancedCrossReference(context.Background(), EnhancedCrossReferenceRequest{
		PrimaryEntity:     "flows",
		PrimaryQuery:      "protocol:tcp",
		SecondaryQueries:  map[string]string{"alarms": "severity:>=high"},
		CorrelationFields: []string{"device_ip"},
		Fuzzy:             FuzzyOptions{Enabled: true},
		Limit:             100,
	})
	require.NoError(t, err)
	// Default 0.8 threshold excludes the 0.75-scoring /24 neighbor
	assert.Equal(t, 1, result.Count)
}

func TestCrossReferenceSecondaryOrderIsStable(t *testing.T) {
	data := correlationFixtures()
	data[core.EntityDevices] = []core.Record{
		{"ip": "192.168.1.50", "name": "front-door-cam", "online": true},
	}
	s := testService(t, &fakeFetcher{data: data}, nil)

	// Both secondary sets match the same flow. With limit 1 the surviving
	// match must come from the same secondary on every call, map iteration
	// order notwithstanding.
	for i := 0; i < 25; i++ {
		result, err := s.CrossReference(context.Background(), CrossReferenceRequest{
			PrimaryEntity: "flows",
			PrimaryQuery:  "blocked:true",
			SecondaryQueries: map[string]string{
				"devices": "online:true",
				"alarms":  "severity:>=high",
			},
			CorrelationField: "device_ip",
			Limit:            1,
		})
		require.NoError(t, err)
		require.Equal(t, 1, result.Count)
		assert.Equal(t, core.EntityAlarms, result.Matches[0].SecondaryEntity)
	}
}

func TestCrossReferenceBadEntities(t *testing.T) {
	s := testService(t, &fakeFetcher{data: correlationFixtures()}, nil)

	_, err := s.CrossReference(context.Background(), CrossReferenceRequest{
		PrimaryEntity:    "gadgets",
		PrimaryQuery:     "blocked:true",
		SecondaryQueries: map[string]string{"alarms": "severity:high"},
		CorrelationField: "device_ip",
		Limit:            10,
	})
	require.Error(t, err)

	_, err = s.CrossReference(context.Background(), CrossReferenceRequest{
		PrimaryEntity:    "flows",
		PrimaryQuery:     "blocked:true",
		SecondaryQueries: map[string]string{"flows": "blocked:true"},
		CorrelationField: "device_ip",
		Limit:            10,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already the primary")
}

func TestCrossReferenceFieldCountBounds(t *testing.T) {
	s := testService(t, &fakeFetcher{data: correlationFixtures()}, nil)

	_, err := s.EnhancedCrossReference(context.Background(), EnhancedCrossReferenceRequest{
		PrimaryEntity:     "flows",
		PrimaryQuery:      "blocked:true",
		SecondaryQueries:  map[string]string{"alarms": "severity:high"},
		CorrelationFields: []string{"a", "b", "c", "d", "e", "f"},
		Limit:             10,
	})
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, TypeValidation, toolErr.Type)
}

func TestCorrelationSuggestions(t *testing.T) {
	s := testService(t, nil, nil)

	result, err := s.CorrelationSuggestions(SuggestionsRequest{
		PrimaryEntity:     "flows",
		SecondaryEntities: []string{"alarms"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Suggestions)
	assert.Contains(t, result.Shared, "device_ip")
	// Best suggestion is a single identity field
	assert.Equal(t, []string{"device_ip"}, result.Suggestions[0].Fields)
}
