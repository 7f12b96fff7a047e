package dynamofake

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// updateAction reads from the pre-update snapshot and writes into the item.
type updateAction func(snapshot, it item) error

type updateExpression struct {
	actions []updateAction
	// touched lists every attribute the expression assigns or removes.
	touched []string
}

var updateClauses = map[string]bool{"SET": true, "REMOVE": true, "ADD": true, "DELETE": true}

func (p *parser) atClause() bool {
	t := p.peek()
	return t.kind == tkIdent && updateClauses[strings.ToUpper(t.text)]
}

func parseUpdate(expr string, names map[string]string, values map[string]types.AttributeValue) (*updateExpression, error) {
	p, err := newParser(expr, names, values)
	if err != nil {
		return nil, err
	}
	u := &updateExpression{}
	for p.peek().kind != tkEOF {
		if !p.atClause() {
			return nil, fmt.Errorf("expected update clause, got %q", p.peek().text)
		}
		clause := strings.ToUpper(p.next().text)
		for {
			name, err := p.attributeName()
			if err != nil {
				return nil, err
			}
			u.touched = append(u.touched, name)

			action, err := p.updateAction(clause, name)
			if err != nil {
				return nil, err
			}
			u.actions = append(u.actions, action)

			if p.peek().kind != tkComma {
				break
			}
			p.next()
		}
	}
	if len(u.actions) == 0 {
		return nil, fmt.Errorf("empty update expression")
	}
	return u, nil
}

func (p *parser) updateAction(clause, name string) (updateAction, error) {
	switch clause {
	case "REMOVE":
		return func(_, it item) error {
			delete(it, name)
			return nil
		}, nil
	case "SET":
		if t := p.next(); t.kind != tkCompare || t.text != "=" {
			return nil, fmt.Errorf("expected = after %s", name)
		}
		value, err := p.setValue()
		if err != nil {
			return nil, err
		}
		return func(snapshot, it item) error {
			v, err := value(snapshot)
			if err != nil {
				return err
			}
			if v == nil {
				return fmt.Errorf("SET %s references a missing attribute", name)
			}
			it[name] = v
			return nil
		}, nil
	case "ADD":
		arg, err := p.operand()
		if err != nil {
			return nil, err
		}
		return func(snapshot, it item) error {
			v, err := addValues(snapshot[name], arg(snapshot))
			if err != nil {
				return fmt.Errorf("ADD %s: %w", name, err)
			}
			it[name] = v
			return nil
		}, nil
	default:
		arg, err := p.operand()
		if err != nil {
			return nil, err
		}
		return func(snapshot, it item) error {
			v, err := deleteValues(snapshot[name], arg(snapshot))
			if err != nil {
				return fmt.Errorf("DELETE %s: %w", name, err)
			}
			if v == nil {
				delete(it, name)
			} else {
				it[name] = v
			}
			return nil
		}, nil
	}
}

type valueFunc func(it item) (types.AttributeValue, error)

func (p *parser) setValue() (valueFunc, error) {
	left, err := p.setTerm()
	if err != nil {
		return nil, err
	}
	k := p.peek().kind
	if k != tkPlus && k != tkMinus {
		return left, nil
	}
	p.next()
	right, err := p.setTerm()
	if err != nil {
		return nil, err
	}
	negate := k == tkMinus
	return func(it item) (types.AttributeValue, error) {
		a, err := left(it)
		if err != nil {
			return nil, err
		}
		b, err := right(it)
		if err != nil {
			return nil, err
		}
		an, ok1 := a.(*types.AttributeValueMemberN)
		bn, ok2 := b.(*types.AttributeValueMemberN)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("arithmetic on non-number operands")
		}
		rhs := bn.Value
		if negate {
			rhs = negateNumber(rhs)
		}
		return &types.AttributeValueMemberN{Value: addNumbers(an.Value, rhs)}, nil
	}, nil
}

func (p *parser) setTerm() (valueFunc, error) {
	t := p.peek()
	if t.kind == tkIdent && p.toks[p.pos+1].kind == tkLParen {
		switch strings.ToLower(t.text) {
		case "if_not_exists":
			p.next()
			p.next()
			name, err := p.attributeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkComma); err != nil {
				return nil, err
			}
			fallback, err := p.operand()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkRParen); err != nil {
				return nil, err
			}
			return func(it item) (types.AttributeValue, error) {
				if v := it[name]; v != nil {
					return v, nil
				}
				return fallback(it), nil
			}, nil
		case "list_append":
			p.next()
			p.next()
			first, err := p.operand()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkComma); err != nil {
				return nil, err
			}
			second, err := p.operand()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkRParen); err != nil {
				return nil, err
			}
			return func(it item) (types.AttributeValue, error) {
				a, ok1 := first(it).(*types.AttributeValueMemberL)
				b, ok2 := second(it).(*types.AttributeValueMemberL)
				if !ok1 || !ok2 {
					return nil, fmt.Errorf("list_append on non-list operands")
				}
				joined := append(append([]types.AttributeValue{}, a.Value...), b.Value...)
				return &types.AttributeValueMemberL{Value: joined}, nil
			}, nil
		}
	}
	o, err := p.operand()
	if err != nil {
		return nil, err
	}
	return func(it item) (types.AttributeValue, error) { return o(it), nil }, nil
}

func addValues(current, arg types.AttributeValue) (types.AttributeValue, error) {
	if current == nil {
		return copyValue(arg), nil
	}
	switch c := current.(type) {
	case *types.AttributeValueMemberN:
		a, ok := arg.(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("operand type mismatch")
		}
		return &types.AttributeValueMemberN{Value: addNumbers(c.Value, a.Value)}, nil
	case *types.AttributeValueMemberSS:
		a, ok := arg.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, fmt.Errorf("operand type mismatch")
		}
		return &types.AttributeValueMemberSS{Value: union(c.Value, a.Value)}, nil
	case *types.AttributeValueMemberNS:
		a, ok := arg.(*types.AttributeValueMemberNS)
		if !ok {
			return nil, fmt.Errorf("operand type mismatch")
		}
		return &types.AttributeValueMemberNS{Value: union(c.Value, a.Value)}, nil
	}
	return nil, fmt.Errorf("ADD is only supported for numbers and sets")
}

func deleteValues(current, arg types.AttributeValue) (types.AttributeValue, error) {
	if current == nil {
		return nil, nil
	}
	var have, drop []string
	switch c := current.(type) {
	case *types.AttributeValueMemberSS:
		a, ok := arg.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, fmt.Errorf("operand type mismatch")
		}
		have, drop = c.Value, a.Value
	case *types.AttributeValueMemberNS:
		a, ok := arg.(*types.AttributeValueMemberNS)
		if !ok {
			return nil, fmt.Errorf("operand type mismatch")
		}
		have, drop = c.Value, a.Value
	default:
		return nil, fmt.Errorf("DELETE is only supported for sets")
	}

	removed := make(map[string]bool, len(drop))
	for _, d := range drop {
		removed[d] = true
	}
	var kept []string
	for _, h := range have {
		if !removed[h] {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}
	if _, ok := current.(*types.AttributeValueMemberNS); ok {
		return &types.AttributeValueMemberNS{Value: kept}, nil
	}
	return &types.AttributeValueMemberSS{Value: kept}, nil
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func addNumbers(a, b string) string {
	ai, err1 := strconv.ParseInt(a, 10, 64)
	bi, err2 := strconv.ParseInt(b, 10, 64)
	if err1 == nil && err2 == nil {
		return strconv.FormatInt(ai+bi, 10)
	}
	af, _ := strconv.ParseFloat(a, 64)
	bf, _ := strconv.ParseFloat(b, 64)
	return strconv.FormatFloat(af+bf, 'f', -1, 64)
}

func negateNumber(n string) string {
	if strings.HasPrefix(n, "-") {
		return n[1:]
	}
	return "-" + n
}
