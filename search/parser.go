package search

import (
	"fmt"
	"strings"

	"firewatch/fields"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenField TokenType = iota
	TokenComparator
	TokenValue
	TokenRange
	TokenLogic
	TokenLParen
	TokenRParen
	TokenEOF
)

// Token represents a lexical token
type Token struct {
	Type   TokenType
	Value  string
	Pos    int
	Quoted bool
}

// NodeType represents AST node types
type NodeType int

const (
	NodePredicate NodeType = iota
	NodeRange
	NodeWildcard
	NodeNot
	NodeAnd
	NodeOr
)

// Node represents a node in the abstract syntax tree. Predicate, range and
// wildcard nodes are leaves; NOT uses Left only; AND and OR use Left and
// Right. Values stay as raw strings here, normalization happens per field
// at evaluation time.
type Node struct {
	Type    NodeType
	Field   string
	Op      fields.Operator
	Value   string
	Min     string
	Max     string
	Pattern string
	Left    *Node
	Right   *Node
	Pos     int
}

// String renders the node as canonical query text. Grouping is made
// explicit, logical keywords are uppercased, and values keep their raw
// spelling. Parsing the rendered text yields an equal tree, and the cursor
// fingerprint is computed over this form.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case NodePredicate:
		if n.Op == fields.OpEquals {
			return fmt.Sprintf("%s:%s", n.Field, quoteIfNeeded(n.Value))
		}
		return fmt.Sprintf("%s:%s%s", n.Field, comparatorText(n.Op), quoteIfNeeded(n.Value))
	case NodeRange:
		return fmt.Sprintf("%s:[%s TO %s]", n.Field, n.Min, n.Max)
	case NodeWildcard:
		return fmt.Sprintf("%s:%s", n.Field, n.Pattern)
	case NodeNot:
		return fmt.Sprintf("NOT %s", n.Left.String())
	case NodeAnd:
		return fmt.Sprintf("(%s AND %s)", n.Left.String(), n.Right.String())
	case NodeOr:
		return fmt.Sprintf("(%s OR %s)", n.Left.String(), n.Right.String())
	default:
		return ""
	}
}

// comparatorText maps an ordering operator back to its query spelling.
func comparatorText(op fields.Operator) string {
	switch op {
	case fields.OpNotEquals:
		return "!="
	case fields.OpGreater:
		return ">"
	case fields.OpGreaterEq:
		return ">="
	case fields.OpLess:
		return "<"
	case fields.OpLessEq:
		return "<="
	default:
		return ""
	}
}

// quoteIfNeeded quotes a value containing whitespace or grouping characters.
func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " \t()\"") || v == "" {
		return fmt.Sprintf("%q", v)
	}
	return v
}

// Parser parses the query syntax into an AST
type Parser struct {
	input   string
	tokens  []Token
	current int
}

// NewParser creates a new parser
func NewParser(query string) *Parser {
	return &Parser{
		input:   strings.TrimSpace(query),
		current: 0,
	}
}

// Parse parses the query and returns an AST. Structural problems are
// reported as *SyntaxError with the byte offset of the offending input.
func Parse(query string) (*Node, error) {
	return NewParser(query).Parse()
}

// Parse tokenizes and parses the input.
func (p *Parser) Parse() (*Node, error) {
	if err := p.tokenize(); err != nil {
		return nil, err
	}

	ast, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if !p.isAtEnd() {
		tok := p.peek()
		return nil, &SyntaxError{
			Message:  "unexpected trailing input",
			Position: tok.Pos,
			Near:     tok.Value,
		}
	}

	return ast, nil
}

// tokenize breaks the input into tokens
func (p *Parser) tokenize() error {
	input := p.input
	pos := 0

	for pos < len(input) {
		c := input[pos]

		// Skip whitespace
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			pos++
			continue
		}

		// Parentheses
		if c == '(' {
			p.tokens = append(p.tokens, Token{Type: TokenLParen, Value: "(", Pos: pos})
			pos++
			continue
		}
		if c == ')' {
			p.tokens = append(p.tokens, Token{Type: TokenRParen, Value: ")", Pos: pos})
			pos++
			continue
		}

		// Bare word: a logical keyword, or a field name followed by ':'
		if isWordChar(c) {
			start := pos
			for pos < len(input) && isWordChar(input[pos]) {
				pos++
			}
			word := input[start:pos]

			// Logical keywords are case-insensitive standalone words
			switch strings.ToUpper(word) {
			case "AND", "OR", "NOT":
				if pos >= len(input) || input[pos] != ':' {
					p.tokens = append(p.tokens, Token{Type: TokenLogic, Value: strings.ToUpper(word), Pos: start})
					continue
				}
			}

			if pos >= len(input) || input[pos] != ':' {
				return &SyntaxError{
					Message:  "expected ':' after field name",
					Position: start,
					Near:     word,
				}
			}
			pos++ // consume ':'
			p.tokens = append(p.tokens, Token{Type: TokenField, Value: word, Pos: start})

			var err error
			pos, err = p.scanPredicateValue(input, pos)
			if err != nil {
				return err
			}
			continue
		}

		return &SyntaxError{
			Message:  fmt.Sprintf("unexpected character %q", string(c)),
			Position: pos,
			Near:     string(c),
		}
	}

	p.tokens = append(p.tokens, Token{Type: TokenEOF, Value: "", Pos: len(input)})
	return nil
}

// scanPredicateValue scans the portion after "field:": an optional
// comparator, then a range literal, quoted string, or bare value.
func (p *Parser) scanPredicateValue(input string, pos int) (int, error) {
	fieldEnd := pos

	// Comparator prefix
	for _, cmp := range []string{">=", "<=", "!=", ">", "<"} {
		if strings.HasPrefix(input[pos:], cmp) {
			p.tokens = append(p.tokens, Token{Type: TokenComparator, Value: cmp, Pos: pos})
			pos += len(cmp)
			break
		}
	}

	if pos >= len(input) {
		return pos, &SyntaxError{
			Message:  "missing value after ':'",
			Position: fieldEnd,
		}
	}

	// Range literal [min TO max]
	if input[pos] == '[' {
		start := pos
		end := strings.IndexByte(input[pos:], ']')
		if end < 0 {
			return pos, &SyntaxError{
				Message:  "unterminated range literal",
				Position: start,
				Near:     input[start:],
			}
		}
		pos += end + 1
		p.tokens = append(p.tokens, Token{Type: TokenRange, Value: input[start+1 : pos-1], Pos: start})
		return pos, nil
	}

	// Quoted value
	if input[pos] == '"' {
		start := pos + 1
		pos++
		var sb strings.Builder
		for pos < len(input) && input[pos] != '"' {
			if input[pos] == '\\' && pos+1 < len(input) {
				pos++
			}
			sb.WriteByte(input[pos])
			pos++
		}
		if pos >= len(input) {
			return pos, &SyntaxError{
				Message:  "unterminated quoted value",
				Position: start - 1,
				Near:     input[start-1:],
			}
		}
		pos++ // closing quote
		p.tokens = append(p.tokens, Token{Type: TokenValue, Value: sb.String(), Pos: start - 1, Quoted: true})
		return pos, nil
	}

	// Bare value: runs to whitespace or a closing parenthesis
	start := pos
	for pos < len(input) && !isValueEnd(input[pos]) {
		pos++
	}
	if pos == start {
		return pos, &SyntaxError{
			Message:  "missing value after ':'",
			Position: fieldEnd,
			Near:     string(input[pos]),
		}
	}
	p.tokens = append(p.tokens, Token{Type: TokenValue, Value: input[start:pos], Pos: start})
	return pos, nil
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.'
}

func isValueEnd(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')'
}

// parseOr handles OR logic, the lowest-precedence level
func (p *Parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.matchLogic("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &Node{
			Type:  NodeOr,
			Left:  left,
			Right: right,
			Pos:   left.Pos,
		}
	}

	return left, nil
}

// parseAnd handles explicit AND plus implicit conjunction: two adjacent
// terms with no keyword between them combine as AND.
func (p *Parser) parseAnd() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for {
		if !p.matchLogic("AND") && !p.startsTerm() {
			break
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = &Node{
			Type:  NodeAnd,
			Left:  left,
			Right: right,
			Pos:   left.Pos,
		}
	}

	return left, nil
}

// startsTerm reports whether the next token can begin a term, which is what
// makes adjacency an implicit AND.
func (p *Parser) startsTerm() bool {
	switch p.peek().Type {
	case TokenField, TokenLParen:
		return true
	case TokenLogic:
		return p.peek().Value == "NOT"
	default:
		return false
	}
}

// parseNot handles NOT, which binds tighter than AND and OR
func (p *Parser) parseNot() (*Node, error) {
	if p.matchLogic("NOT") {
		pos := p.previous().Pos
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Node{
			Type: NodeNot,
			Left: expr,
			Pos:  pos,
		}, nil
	}

	return p.parseFactor()
}

// parseFactor parses a parenthesized group or a single predicate
func (p *Parser) parseFactor() (*Node, error) {
	if p.match(TokenLParen) {
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenRParen) {
			return nil, &SyntaxError{
				Message:  "expected closing parenthesis",
				Position: p.peek().Pos,
				Near:     p.peek().Value,
			}
		}
		return expr, nil
	}

	return p.parsePredicate()
}

// parsePredicate parses "field:value", "field:>value" or "field:[a TO b]"
func (p *Parser) parsePredicate() (*Node, error) {
	if !p.match(TokenField) {
		tok := p.peek()
		return nil, &SyntaxError{
			Message:  "expected a field:value predicate",
			Position: tok.Pos,
			Near:     tok.Value,
		}
	}
	field := p.previous()

	comparator := ""
	if p.match(TokenComparator) {
		comparator = p.previous().Value
	}

	if p.match(TokenRange) {
		rng := p.previous()
		if comparator != "" {
			return nil, &SyntaxError{
				Message:  "a range literal cannot follow a comparator",
				Position: rng.Pos,
				Near:     rng.Value,
			}
		}
		min, max, ok := splitRange(rng.Value)
		if !ok {
			return nil, &SyntaxError{
				Message:  "range literal must have the form [min TO max]",
				Position: rng.Pos,
				Near:     rng.Value,
			}
		}
		return &Node{
			Type:  NodeRange,
			Field: field.Value,
			Op:    fields.OpRange,
			Min:   min,
			Max:   max,
			Pos:   field.Pos,
		}, nil
	}

	if !p.match(TokenValue) {
		tok := p.peek()
		return nil, &SyntaxError{
			Message:  "expected a value",
			Position: tok.Pos,
			Near:     tok.Value,
		}
	}
	value := p.previous()

	// Unquoted values containing * or ? are wildcard patterns. Quoting makes
	// those characters literal.
	if comparator == "" && !value.Quoted && strings.ContainsAny(value.Value, "*?") {
		return &Node{
			Type:    NodeWildcard,
			Field:   field.Value,
			Op:      fields.OpWildcard,
			Pattern: value.Value,
			Pos:     field.Pos,
		}, nil
	}

	return &Node{
		Type:  NodePredicate,
		Field: field.Value,
		Op:    comparatorOp(comparator),
		Value: value.Value,
		Pos:   field.Pos,
	}, nil
}

// comparatorOp maps a comparator spelling to its operator. No comparator
// means equality.
func comparatorOp(cmp string) fields.Operator {
	switch cmp {
	case "!=":
		return fields.OpNotEquals
	case ">":
		return fields.OpGreater
	case ">=":
		return fields.OpGreaterEq
	case "<":
		return fields.OpLess
	case "<=":
		return fields.OpLessEq
	default:
		return fields.OpEquals
	}
}

// splitRange splits "min TO max" on its keyword, case-insensitively.
func splitRange(body string) (string, string, bool) {
	upper := strings.ToUpper(body)
	idx := strings.Index(upper, " TO ")
	if idx < 0 {
		return "", "", false
	}
	min := strings.TrimSpace(body[:idx])
	max := strings.TrimSpace(body[idx+4:])
	if min == "" || max == "" {
		return "", "", false
	}
	return min, max, true
}

// Helper methods
func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) matchLogic(values ...string) bool {
	if p.check(TokenLogic) {
		for _, v := range values {
			if p.peek().Value == v {
				p.advance()
				return true
			}
		}
	}
	return false
}

func (p *Parser) check(t TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.peek().Type == TokenEOF
}

func (p *Parser) peek() Token {
	if p.current >= len(p.tokens) {
		return Token{Type: TokenEOF, Value: "", Pos: len(p.input)}
	}
	return p.tokens[p.current]
}

func (p *Parser) previous() Token {
	return p.tokens[p.current-1]
}
