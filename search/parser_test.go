package search

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewatch/fields"
)

func TestParseSimplePredicate(t *testing.T) {
	ast, err := Parse("protocol:tcp")
	require.NoError(t, err)
	assert.Equal(t, NodePredicate, ast.Type)
	assert.Equal(t, "protocol", ast.Field)
	assert.Equal(t, fields.OpEquals, ast.Op)
	assert.Equal(t, "tcp", ast.Value)
}

func TestParseComparators(t *testing.T) {
	tests := []struct {
		query string
		op    fields.Operator
		value string
	}{
		{"severity:>=medium", fields.OpGreaterEq, "medium"},
		{"severity:>low", fields.OpGreater, "low"},
		{"bytes:<1000", fields.OpLess, "1000"},
		{"bytes:<=1000", fields.OpLessEq, "1000"},
		{"status:!=active", fields.OpNotEquals, "active"},
	}
	for _, tt := range tests {
		ast, err := Parse(tt.query)
		require.NoError(t, err, tt.query)
		assert.Equal(t, NodePredicate, ast.Type, tt.query)
		assert.Equal(t, tt.op, ast.Op, tt.query)
		assert.Equal(t, tt.value, ast.Value, tt.query)
	}
}

func TestParseRange(t *testing.T) {
	ast, err := Parse("bytes:[1000 TO 2000]")
	require.NoError(t, err)
	assert.Equal(t, NodeRange, ast.Type)
	assert.Equal(t, "bytes", ast.Field)
	assert.Equal(t, "1000", ast.Min)
	assert.Equal(t, "2000", ast.Max)

	// TO keyword is case-insensitive
	ast, err = Parse("bytes:[1000 to 2000]")
	require.NoError(t, err)
	assert.Equal(t, "1000", ast.Min)
	assert.Equal(t, "2000", ast.Max)
}

func TestParseWildcard(t *testing.T) {
	ast, err := Parse("device_name:iphone*")
	require.NoError(t, err)
	assert.Equal(t, NodeWildcard, ast.Type)
	assert.Equal(t, "iphone*", ast.Pattern)

	ast, err = Parse("device_name:ipho?e")
	require.NoError(t, err)
	assert.Equal(t, NodeWildcard, ast.Type)

	// Quoting makes wildcard characters literal
	ast, err = Parse(`device_name:"iphone*"`)
	require.NoError(t, err)
	assert.Equal(t, NodePredicate, ast.Type)
	assert.Equal(t, "iphone*", ast.Value)
}

func TestParseQuotedValue(t *testing.T) {
	ast, err := Parse(`device_name:"Living Room TV"`)
	require.NoError(t, err)
	assert.Equal(t, NodePredicate, ast.Type)
	assert.Equal(t, "Living Room TV", ast.Value)

	ast, err = Parse(`message:"say \"hi\""`)
	require.NoError(t, err)
	assert.Equal(t, `say "hi"`, ast.Value)
}

func TestParseBooleanStructure(t *testing.T) {
	ast, err := Parse("protocol:tcp AND (severity:high OR severity:critical)")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, ast.Type)
	assert.Equal(t, NodePredicate, ast.Left.Type)
	require.Equal(t, NodeOr, ast.Right.Type)
	assert.Equal(t, "high", ast.Right.Left.Value)
	assert.Equal(t, "critical", ast.Right.Right.Value)
}

func TestParsePrecedence(t *testing.T) {
	// AND binds tighter than OR
	ast, err := Parse("a:1 OR b:2 AND c:3")
	require.NoError(t, err)
	require.Equal(t, NodeOr, ast.Type)
	assert.Equal(t, NodePredicate, ast.Left.Type)
	assert.Equal(t, NodeAnd, ast.Right.Type)

	// NOT binds tighter than AND
	ast, err = Parse("NOT a:1 AND b:2")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, ast.Type)
	assert.Equal(t, NodeNot, ast.Left.Type)
}

func TestParseImplicitAnd(t *testing.T) {
	ast, err := Parse("protocol:tcp blocked:true")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, ast.Type)
	assert.Equal(t, "protocol", ast.Left.Field)
	assert.Equal(t, "blocked", ast.Right.Field)
}

func TestParseNot(t *testing.T) {
	ast, err := Parse("NOT severity:high")
	require.NoError(t, err)
	require.Equal(t, NodeNot, ast.Type)
	assert.Equal(t, NodePredicate, ast.Left.Type)

	// Lowercase keyword
	ast, err = Parse("not severity:high")
	require.NoError(t, err)
	assert.Equal(t, NodeNot, ast.Type)
}

func TestParseKeywordAsFieldName(t *testing.T) {
	// A keyword followed by ':' is a field name, not a logical operator
	ast, err := Parse("not:true")
	require.NoError(t, err)
	assert.Equal(t, NodePredicate, ast.Type)
	assert.Equal(t, "not", ast.Field)
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []string{
		"protocol:",
		"protocol",
		"(protocol:tcp",
		"protocol:tcp)",
		"AND protocol:tcp",
		"protocol:tcp AND",
		`device_name:"unterminated`,
		"bytes:[100 TO",
		"bytes:[100]",
		"bytes:>[100 TO 200]",
		"field:: value",
	}
	for _, query := range tests {
		_, err := Parse(query)
		require.Error(t, err, query)

		var syntaxErr *SyntaxError
		assert.True(t, errors.As(err, &syntaxErr), "%s should be a syntax error, got %v", query, err)
	}
}

func TestParseRenderParseRoundTrip(t *testing.T) {
	queries := []string{
		"protocol:tcp",
		"severity:>=medium",
		"bytes:[1000 TO 2000]",
		"device_name:iphone*",
		"NOT severity:high",
		"protocol:tcp AND (severity:high OR severity:critical)",
		"a:1 OR b:2 AND NOT c:3",
		`device_name:"Living Room TV"`,
	}
	for _, query := range queries {
		first, err := Parse(query)
		require.NoError(t, err, query)

		second, err := Parse(first.String())
		require.NoError(t, err, "rendered form %q must re-parse", first.String())
		assert.Equal(t, first.String(), second.String(), query)
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := Parse("protocol:tcp AND #bad")
	require.Error(t, err)

	var syntaxErr *SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, 17, syntaxErr.Position)
}
