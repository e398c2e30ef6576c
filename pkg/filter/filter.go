// Package filter compiles and evaluates attribute filter expressions.
//
// An expression selects entities by their attribute values:
//
//	category == "req" and (version >= 2 or status in ["draft", "review"])
//
// Identifiers name attributes and evaluate to the entity's value for that
// attribute, or the empty string when the attribute is absent. Literals are
// double- or single-quoted strings, integers, and bracketed lists. The
// operators are ==, !=, <, <=, >, >=, in, not in, and the boolean
// connectives and, or, not. Comparisons are numeric when both operands
// parse as integers and lexicographic otherwise.
package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/traceviz/traceviz/pkg/errors"
)

// Matcher is a compiled filter expression.
type Matcher struct {
	source string
	root   node
}

// Compile parses an expression into a reusable [Matcher]. An empty
// expression matches everything.
func Compile(expr string) (*Matcher, error) {
	if strings.TrimSpace(expr) == "" {
		return &Matcher{source: expr}, nil
	}

	p := newParser(expr)
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, errors.New(errors.ErrCodeInvalidFilter,
			"unexpected %q after expression in %q", p.text(), expr)
	}
	return &Matcher{source: expr, root: root}, nil
}

// Source returns the original expression text.
func (m *Matcher) Source() string { return m.source }

// Matches evaluates the expression against one entity's attributes.
func (m *Matcher) Matches(attrs map[string]string) (bool, error) {
	if m.root == nil {
		return true, nil
	}
	v, err := m.root.eval(attrs)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.New(errors.ErrCodeInvalidFilter,
			"expression %q does not evaluate to a condition", m.source)
	}
	return b, nil
}

// ============================================================================
// AST
// ============================================================================

// node evaluates to a bool, string, or []string.
type node interface {
	eval(attrs map[string]string) (any, error)
}

type boolOp struct {
	op          string // "and" or "or"
	left, right node
}

func (n *boolOp) eval(attrs map[string]string) (any, error) {
	left, err := evalBool(n.left, attrs)
	if err != nil {
		return nil, err
	}
	if n.op == "and" && !left {
		return false, nil
	}
	if n.op == "or" && left {
		return true, nil
	}
	return evalBool(n.right, attrs)
}

type notOp struct {
	operand node
}

func (n *notOp) eval(attrs map[string]string) (any, error) {
	v, err := evalBool(n.operand, attrs)
	if err != nil {
		return nil, err
	}
	return !v, nil
}

type compareOp struct {
	op          string
	left, right node
}

func (n *compareOp) eval(attrs map[string]string) (any, error) {
	left, err := n.left.eval(attrs)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(attrs)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "in", "not in":
		list, ok := right.([]string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				"right side of %q must be a list", n.op)
		}
		s, ok := left.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				"left side of %q must be a value", n.op)
		}
		found := slices.Contains(list, s)
		if n.op == "not in" {
			return !found, nil
		}
		return found, nil
	}

	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		return nil, errors.New(errors.ErrCodeInvalidFilter,
			"operator %q needs scalar operands", n.op)
	}

	c := compareValues(ls, rs)
	switch n.op {
	case "==":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFilter, "unknown operator %q", n.op)
}

// compareValues orders numerically when both sides are integers, otherwise
// lexicographically. Attribute values are untyped text, so "2" < "10" only
// holds under the numeric interpretation.
func compareValues(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

type attrRef struct {
	name string
}

func (n *attrRef) eval(attrs map[string]string) (any, error) {
	// Absent attributes read as empty, so filters stay total over
	// heterogeneous entity sets.
	return attrs[n.name], nil
}

type literal struct {
	value any
}

func (n *literal) eval(map[string]string) (any, error) {
	return n.value, nil
}

func evalBool(n node, attrs map[string]string) (bool, error) {
	v, err := n.eval(attrs)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.New(errors.ErrCodeInvalidFilter,
			"operand is not a condition")
	}
	return b, nil
}

// ============================================================================
// Parser
// ============================================================================

type parser struct {
	sc     scanner.Scanner
	tok    rune
	source string
	errs   []string
}

func newParser(expr string) *parser {
	p := &parser{source: expr}
	p.sc.Init(strings.NewReader(expr))
	p.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings
	p.sc.Error = func(_ *scanner.Scanner, msg string) {
		p.errs = append(p.errs, msg)
	}
	p.next()
	return p
}

func (p *parser) next() { p.tok = p.sc.Scan() }

func (p *parser) text() string {
	if p.tok == scanner.EOF {
		return "end of expression"
	}
	return p.sc.TokenText()
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidFilter,
		"filter %q: %s", p.source, fmt.Sprintf(format, args...))
}

// parseExpr handles the or level.
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok == scanner.Ident && p.sc.TokenText() == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolOp{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok == scanner.Ident && p.sc.TokenText() == "and" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &boolOp{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.tok == scanner.Ident && p.sc.TokenText() == "not" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notOp{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op, ok, err := p.comparisonOp()
	if err != nil {
		return nil, err
	}
	if !ok {
		return left, nil
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &compareOp{op: op, left: left, right: right}, nil
}

// comparisonOp consumes a comparison operator if one is next.
func (p *parser) comparisonOp() (string, bool, error) {
	switch p.tok {
	case '=':
		p.next()
		if p.tok != '=' {
			return "", false, p.errorf("single '=' is not an operator, use '=='")
		}
		p.next()
		return "==", true, nil
	case '!':
		p.next()
		if p.tok != '=' {
			return "", false, p.errorf("expected '=' after '!'")
		}
		p.next()
		return "!=", true, nil
	case '<', '>':
		op := string(p.tok)
		p.next()
		if p.tok == '=' {
			op += "="
			p.next()
		}
		return op, true, nil
	case scanner.Ident:
		switch p.sc.TokenText() {
		case "in":
			p.next()
			return "in", true, nil
		case "not":
			p.next()
			if p.tok != scanner.Ident || p.sc.TokenText() != "in" {
				return "", false, p.errorf("expected 'in' after 'not'")
			}
			p.next()
			return "not in", true, nil
		}
	}
	return "", false, nil
}

func (p *parser) parseOperand() (node, error) {
	switch p.tok {
	case scanner.Ident:
		name := p.sc.TokenText()
		switch name {
		case "and", "or", "not", "in":
			return nil, p.errorf("unexpected keyword %q", name)
		}
		p.next()
		return &attrRef{name: name}, nil

	case scanner.String:
		s, err := strconv.Unquote(p.sc.TokenText())
		if err != nil {
			return nil, p.errorf("bad string literal %s", p.sc.TokenText())
		}
		p.next()
		return &literal{value: s}, nil

	case scanner.Int:
		v := p.sc.TokenText()
		p.next()
		return &literal{value: v}, nil

	case '\'':
		return p.parseSingleQuoted()

	case '[':
		return p.parseList()

	case '(':
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok != ')' {
			return nil, p.errorf("missing ')' before %s", p.text())
		}
		p.next()
		return inner, nil

	default:
		return nil, p.errorf("unexpected %s", p.text())
	}
}

// parseSingleQuoted reads 'text' literals, which text/scanner does not
// tokenize as strings.
func (p *parser) parseSingleQuoted() (node, error) {
	var sb strings.Builder
	for {
		ch := p.sc.Next()
		if ch == scanner.EOF {
			return nil, p.errorf("unterminated string literal")
		}
		if ch == '\'' {
			break
		}
		sb.WriteRune(ch)
	}
	p.next()
	return &literal{value: sb.String()}, nil
}

func (p *parser) parseList() (node, error) {
	p.next() // consume '['
	var items []string
	for p.tok != ']' {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		lit, ok := item.(*literal)
		if !ok {
			return nil, p.errorf("list items must be literals")
		}
		s, ok := lit.value.(string)
		if !ok {
			return nil, p.errorf("list items must be scalar literals")
		}
		items = append(items, s)

		if p.tok == ',' {
			p.next()
			continue
		}
		if p.tok != ']' {
			return nil, p.errorf("expected ',' or ']' in list, got %s", p.text())
		}
	}
	p.next() // consume ']'
	return &literal{value: items}, nil
}
