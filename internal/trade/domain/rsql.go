package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var rsqlOperators = map[string]Operator{
	"==":        CmpEq,
	"!=":        CmpNe,
	"=gt=":      CmpGt,
	">":         CmpGt,
	"=ge=":      CmpGe,
	">=":        CmpGe,
	"=lt=":      CmpLt,
	"<":         CmpLt,
	"=le=":      CmpLe,
	"<=":        CmpLe,
	"=in=":      CmpIn,
	"=out=":     CmpOut,
	"=like=":    CmpLike,
	"=ilike=":   CmpLike,
	"=notlike=": CmpNotLike,
}

// ParseRSQL 将 RSQL 表达式解析为查询条件，空表达式匹配全部。
// AND（; 或 and）优先级高于 OR（, 或 or），支持括号与引号值，== 值中的 * 为通配符。
func ParseRSQL(query string) (Predicate, error) {
	if strings.TrimSpace(query) == "" {
		return MatchAll(), nil
	}

	p := &rsqlParser{query: query}
	if err := p.lex(); err != nil {
		return nil, &MalformedQueryError{Query: query, Reason: err.Error()}
	}
	pred, err := p.parseOr()
	if err == nil && p.peek().kind != tokEOF {
		err = fmt.Errorf("unexpected token '%s' at position %d", p.peek().text, p.peek().pos)
	}
	if err != nil {
		return nil, &MalformedQueryError{Query: query, Reason: err.Error()}
	}
	return pred, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokOperator
	tokWord
	tokQuoted
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type rsqlParser struct {
	query  string
	tokens []token
	cur    int
}

func isReserved(r rune) bool {
	switch r {
	case '"', '\'', '(', ')', ';', ',', '=', '!', '~', '<', '>':
		return true
	}
	return unicode.IsSpace(r)
}

func (p *rsqlParser) lex() error {
	rs := []rune(p.query)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			p.tokens = append(p.tokens, token{tokLParen, "(", i})
			i++
		case r == ')':
			p.tokens = append(p.tokens, token{tokRParen, ")", i})
			i++
		case r == ';':
			p.tokens = append(p.tokens, token{tokAnd, ";", i})
			i++
		case r == ',':
			p.tokens = append(p.tokens, token{tokOr, ",", i})
			i++
		case r == '\'' || r == '"':
			end := i + 1
			var sb strings.Builder
			for ; end < len(rs) && rs[end] != r; end++ {
				if rs[end] == '\\' && end+1 < len(rs) {
					end++
				}
				sb.WriteRune(rs[end])
			}
			if end >= len(rs) {
				return fmt.Errorf("unterminated quoted value at position %d", i)
			}
			p.tokens = append(p.tokens, token{tokQuoted, sb.String(), i})
			i = end + 1
		case r == '=':
			end := i + 1
			for end < len(rs) && unicode.IsLetter(rs[end]) {
				end++
			}
			if end >= len(rs) || rs[end] != '=' {
				return fmt.Errorf("invalid comparison operator at position %d", i)
			}
			p.tokens = append(p.tokens, token{tokOperator, string(rs[i : end+1]), i})
			i = end + 1
		case r == '!':
			if i+1 >= len(rs) || rs[i+1] != '=' {
				return fmt.Errorf("invalid comparison operator at position %d", i)
			}
			p.tokens = append(p.tokens, token{tokOperator, "!=", i})
			i += 2
		case r == '<' || r == '>':
			op := string(r)
			if i+1 < len(rs) && rs[i+1] == '=' {
				op += "="
			}
			p.tokens = append(p.tokens, token{tokOperator, op, i})
			i += len(op)
		case r == '~':
			return fmt.Errorf("unexpected character '~' at position %d", i)
		default:
			end := i
			for end < len(rs) && !isReserved(rs[end]) {
				end++
			}
			word := string(rs[i:end])
			kind := tokWord
			switch strings.ToLower(word) {
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			}
			p.tokens = append(p.tokens, token{kind, word, i})
			i = end
		}
	}
	p.tokens = append(p.tokens, token{tokEOF, "", len(rs)})
	return nil
}

func (p *rsqlParser) peek() token { return p.tokens[p.cur] }

func (p *rsqlParser) next() token {
	t := p.tokens[p.cur]
	if t.kind != tokEOF {
		p.cur++
	}
	return t
}

func (p *rsqlParser) parseOr() (Predicate, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	clauses := []Predicate{first}
	for p.peek().kind == tokOr {
		p.next()
		c, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return Or(clauses...), nil
}

func (p *rsqlParser) parseAnd() (Predicate, error) {
	first, err := p.parseConstraint()
	if err != nil {
		return nil, err
	}
	clauses := []Predicate{first}
	for p.peek().kind == tokAnd {
		p.next()
		c, err := p.parseConstraint()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return And(clauses...), nil
}

func (p *rsqlParser) parseConstraint() (Predicate, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, unexpected(t, "')'")
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *rsqlParser) parseComparison() (Predicate, error) {
	sel := p.next()
	if sel.kind != tokWord {
		return nil, unexpected(sel, "selector")
	}
	field, ok := LookupField(sel.text)
	if !ok {
		return nil, fmt.Errorf("unknown property '%s'", sel.text)
	}

	opTok := p.next()
	if opTok.kind != tokOperator {
		return nil, unexpected(opTok, "comparison operator")
	}
	op, ok := rsqlOperators[strings.ToLower(opTok.text)]
	if !ok {
		return nil, fmt.Errorf("unknown operator '%s'", opTok.text)
	}

	raw, err := p.parseArguments()
	if err != nil {
		return nil, err
	}
	if op != CmpIn && op != CmpOut && len(raw) != 1 {
		return nil, fmt.Errorf("operator '%s' expects a single argument", opTok.text)
	}

	cmp := Comparison{Field: field, Operator: op, IgnoreCase: strings.EqualFold(opTok.text, "=ilike=")}
	if field.Kind == FieldString {
		if op == CmpLike || op == CmpNotLike {
			raw[0] = likePattern(raw[0], true)
		} else if (op == CmpEq || op == CmpNe) && strings.Contains(raw[0], "*") {
			raw[0] = likePattern(raw[0], false)
			if op == CmpEq {
				cmp.Operator = CmpLike
			} else {
				cmp.Operator = CmpNotLike
			}
		}
	} else if op == CmpLike || op == CmpNotLike {
		return nil, fmt.Errorf("operator '%s' is only supported on text properties", opTok.text)
	}

	for _, s := range raw {
		v, err := convertValue(field, s)
		if err != nil {
			return nil, err
		}
		cmp.Values = append(cmp.Values, v)
	}
	return cmp, nil
}

func (p *rsqlParser) parseArguments() ([]string, error) {
	if p.peek().kind != tokLParen {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	}

	p.next()
	var values []string
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		t := p.next()
		if t.kind == tokRParen {
			return values, nil
		}
		if t.kind != tokOr {
			return nil, unexpected(t, "',' or ')'")
		}
	}
}

// parseValue 参数位置上 and/or 也是普通值
func (p *rsqlParser) parseValue() (string, error) {
	t := p.next()
	switch t.kind {
	case tokWord, tokQuoted:
		return t.text, nil
	case tokAnd, tokOr:
		if t.text != ";" && t.text != "," {
			return t.text, nil
		}
	}
	return "", unexpected(t, "value")
}

func unexpected(t token, want string) error {
	if t.kind == tokEOF {
		return fmt.Errorf("unexpected end of input, expected %s", want)
	}
	return fmt.Errorf("unexpected token '%s' at position %d, expected %s", t.text, t.pos, want)
}

// LikeEscape 是 LIKE 模式使用的转义符，翻译为 SQL 时需带 ESCAPE '!'
const LikeEscape = "!"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern 转义字面量中的 % 和 _，再将 * 转换为 %；contains 为 true 且无通配符时两端补 %
func likePattern(v string, contains bool) string {
	escaped := likeEscaper.Replace(v)
	if strings.Contains(v, "*") {
		return strings.ReplaceAll(escaped, "*", "%")
	}
	if contains {
		return "%" + escaped + "%"
	}
	return escaped
}

func convertValue(f Field, s string) (any, error) {
	switch f.Kind {
	case FieldInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert '%s' to a number for property '%s'", s, f.Path)
		}
		return n, nil
	case FieldDate:
		if d, err := time.Parse(time.DateOnly, s); err == nil {
			return d, nil
		}
		if d, err := time.Parse(time.RFC3339, s); err == nil {
			return d.UTC(), nil
		}
		return nil, fmt.Errorf("cannot convert '%s' to a date for property '%s'", s, f.Path)
	case FieldBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("cannot convert '%s' to a boolean for property '%s'", s, f.Path)
		}
		return b, nil
	default:
		return s, nil
	}
}
