package dynamofake

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkIdent
	tkName
	tkValue
	tkLParen
	tkRParen
	tkComma
	tkCompare
	tkPlus
	tkMinus
)

type token struct {
	kind tokenKind
	text string
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tkLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tkRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tkComma, ","})
			i++
		case c == '+':
			toks = append(toks, token{tkPlus, "+"})
			i++
		case c == '-':
			toks = append(toks, token{tkMinus, "-"})
			i++
		case c == '=':
			toks = append(toks, token{tkCompare, "="})
			i++
		case c == '<' || c == '>':
			op := string(c)
			if i+1 < len(s) && (s[i+1] == '=' || (c == '<' && s[i+1] == '>')) {
				op += string(s[i+1])
			}
			toks = append(toks, token{tkCompare, op})
			i += len(op)
		case c == '#' || c == ':':
			j := i + 1
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty placeholder at offset %d", i)
			}
			kind := tkName
			if c == ':' {
				kind = tkValue
			}
			toks = append(toks, token{kind, s[i:j]})
			i = j
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			toks = append(toks, token{tkIdent, s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(toks, token{kind: tkEOF}), nil
}

type item = map[string]types.AttributeValue

type operand func(it item) types.AttributeValue

type condition func(it item) (bool, error)

type parser struct {
	toks   []token
	pos    int
	names  map[string]string
	values map[string]types.AttributeValue
}

func newParser(expr string, names map[string]string, values map[string]types.AttributeValue) (*parser, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks, names: names, values: values}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("unexpected token %q", t.text)
	}
	return t, nil
}

func (p *parser) peekKeyword(word string) bool {
	t := p.peek()
	return t.kind == tkIdent && strings.EqualFold(t.text, word)
}

// attributeName resolves a #placeholder or bare attribute name.
func (p *parser) attributeName() (string, error) {
	t := p.next()
	switch t.kind {
	case tkName:
		name, ok := p.names[t.text]
		if !ok {
			return "", fmt.Errorf("undefined expression attribute name %s", t.text)
		}
		return name, nil
	case tkIdent:
		return t.text, nil
	}
	return "", fmt.Errorf("expected attribute name, got %q", t.text)
}

func (p *parser) operand() (operand, error) {
	t := p.peek()
	if t.kind == tkValue {
		p.next()
		v, ok := p.values[t.text]
		if !ok {
			return nil, fmt.Errorf("undefined expression attribute value %s", t.text)
		}
		return func(item) types.AttributeValue { return v }, nil
	}
	if t.kind == tkIdent && strings.EqualFold(t.text, "size") && p.toks[p.pos+1].kind == tkLParen {
		p.next()
		p.next()
		name, err := p.attributeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRParen); err != nil {
			return nil, err
		}
		return func(it item) types.AttributeValue {
			n, ok := sizeOf(it[name])
			if !ok {
				return nil
			}
			return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
		}, nil
	}
	name, err := p.attributeName()
	if err != nil {
		return nil, err
	}
	return func(it item) types.AttributeValue { return it[name] }, nil
}

// parseCondition parses a condition, filter or key condition expression.
func parseCondition(expr string, names map[string]string, values map[string]types.AttributeValue) (condition, error) {
	p, err := newParser(expr, names, values)
	if err != nil {
		return nil, err
	}
	c, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkEOF {
		return nil, fmt.Errorf("unexpected trailing token %q", p.peek().text)
	}
	return c, nil
}

func (p *parser) or() (condition, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("OR") {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(it item) (bool, error) {
			ok, err := l(it)
			if err != nil || ok {
				return ok, err
			}
			return r(it)
		}
	}
	return left, nil
}

func (p *parser) and() (condition, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("AND") {
		p.next()
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(it item) (bool, error) {
			ok, err := l(it)
			if err != nil || !ok {
				return ok, err
			}
			return r(it)
		}
	}
	return left, nil
}

func (p *parser) not() (condition, error) {
	if p.peekKeyword("NOT") {
		p.next()
		inner, err := p.not()
		if err != nil {
			return nil, err
		}
		return func(it item) (bool, error) {
			ok, err := inner(it)
			return !ok, err
		}, nil
	}
	return p.primary()
}

var conditionFunctions = map[string]bool{
	"attribute_exists":     true,
	"attribute_not_exists": true,
	"begins_with":          true,
	"contains":             true,
}

func (p *parser) primary() (condition, error) {
	t := p.peek()
	if t.kind == tkLParen {
		p.next()
		c, err := p.or()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRParen); err != nil {
			return nil, err
		}
		return c, nil
	}

	if t.kind == tkIdent && conditionFunctions[strings.ToLower(t.text)] && p.toks[p.pos+1].kind == tkLParen {
		return p.function()
	}

	left, err := p.operand()
	if err != nil {
		return nil, err
	}

	switch {
	case p.peek().kind == tkCompare:
		op := p.next().text
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		return func(it item) (bool, error) {
			return compareOp(op, left(it), right(it)), nil
		}, nil
	case p.peekKeyword("BETWEEN"):
		p.next()
		low, err := p.operand()
		if err != nil {
			return nil, err
		}
		if !p.peekKeyword("AND") {
			return nil, fmt.Errorf("BETWEEN without AND")
		}
		p.next()
		high, err := p.operand()
		if err != nil {
			return nil, err
		}
		return func(it item) (bool, error) {
			v := left(it)
			return compareOp(">=", v, low(it)) && compareOp("<=", v, high(it)), nil
		}, nil
	case p.peekKeyword("IN"):
		p.next()
		if _, err := p.expect(tkLParen); err != nil {
			return nil, err
		}
		var candidates []operand
		for {
			o, err := p.operand()
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, o)
			if p.peek().kind != tkComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tkRParen); err != nil {
			return nil, err
		}
		return func(it item) (bool, error) {
			v := left(it)
			for _, c := range candidates {
				if compareOp("=", v, c(it)) {
					return true, nil
				}
			}
			return false, nil
		}, nil
	}
	return nil, fmt.Errorf("expected comparison after operand, got %q", p.peek().text)
}

func (p *parser) function() (condition, error) {
	fn := strings.ToLower(p.next().text)
	p.next() // (

	name, err := p.attributeName()
	if err != nil {
		return nil, err
	}

	var arg operand
	if fn == "begins_with" || fn == "contains" {
		if _, err := p.expect(tkComma); err != nil {
			return nil, err
		}
		if arg, err = p.operand(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tkRParen); err != nil {
		return nil, err
	}

	switch fn {
	case "attribute_exists":
		return func(it item) (bool, error) { return it[name] != nil, nil }, nil
	case "attribute_not_exists":
		return func(it item) (bool, error) { return it[name] == nil, nil }, nil
	case "begins_with":
		return func(it item) (bool, error) {
			attr, ok1 := it[name].(*types.AttributeValueMemberS)
			prefix, ok2 := arg(it).(*types.AttributeValueMemberS)
			return ok1 && ok2 && strings.HasPrefix(attr.Value, prefix.Value), nil
		}, nil
	default:
		return func(it item) (bool, error) { return containsValue(it[name], arg(it)), nil }, nil
	}
}

func sizeOf(av types.AttributeValue) (int, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return len(v.Value), true
	case *types.AttributeValueMemberB:
		return len(v.Value), true
	case *types.AttributeValueMemberSS:
		return len(v.Value), true
	case *types.AttributeValueMemberNS:
		return len(v.Value), true
	case *types.AttributeValueMemberL:
		return len(v.Value), true
	case *types.AttributeValueMemberM:
		return len(v.Value), true
	}
	return 0, false
}

func containsValue(container, needle types.AttributeValue) bool {
	switch c := container.(type) {
	case *types.AttributeValueMemberS:
		n, ok := needle.(*types.AttributeValueMemberS)
		return ok && strings.Contains(c.Value, n.Value)
	case *types.AttributeValueMemberSS:
		n, ok := needle.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, v := range c.Value {
			if v == n.Value {
				return true
			}
		}
	case *types.AttributeValueMemberNS:
		n, ok := needle.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		for _, v := range c.Value {
			if compareNumbers(v, n.Value) == 0 {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		for _, v := range c.Value {
			if compareOp("=", v, needle) {
				return true
			}
		}
	}
	return false
}

// compareAttributes orders two scalar attribute values of the same type.
func compareAttributes(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		return compareNumbers(av.Value, bv.Value), true
	}
	return 0, false
}

func compareNumbers(a, b string) int {
	af, _ := strconv.ParseFloat(a, 64)
	bf, _ := strconv.ParseFloat(b, 64)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

func compareOp(op string, a, b types.AttributeValue) bool {
	if a == nil || b == nil {
		return op == "<>" && (a != nil || b != nil)
	}
	if op == "=" || op == "<>" {
		equal := false
		if c, ok := compareAttributes(a, b); ok {
			equal = c == 0
		} else {
			equal = reflect.DeepEqual(a, b)
		}
		if op == "=" {
			return equal
		}
		return !equal
	}
	c, ok := compareAttributes(a, b)
	if !ok {
		return false
	}
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}
