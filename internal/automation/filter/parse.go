package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var ErrSyntax = errors.New("filter: syntax error")

// Parse reads a Jet restriction such as
//
//	[Unread] = True AND ([Subject] = 'Report' OR NOT ([Importance] < 2))
//
// so caller supplied filters can be validated before reaching the engine.
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return e, nil
}

type tokenKind int

const (
	tokField tokenKind = iota
	tokString
	tokNumber
	tokWord
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated field at %d", ErrSyntax, i)
			}
			name := strings.TrimSpace(src[i+1 : i+end])
			if name == "" {
				return nil, fmt.Errorf("%w: empty field at %d", ErrSyntax, i)
			}
			toks = append(toks, token{tokField, name, i})
			i += end + 1
		case c == '\'' || c == '"':
			text, n, err := lexQuoted(src[i:], c)
			if err != nil {
				return nil, fmt.Errorf("%w at %d", err, i)
			}
			toks = append(toks, token{tokString, text, i})
			i += n
		case c == '<' || c == '>' || c == '=':
			op := string(c)
			if i+1 < len(src) && (src[i+1] == '=' || (c == '<' && src[i+1] == '>')) {
				op += string(src[i+1])
			}
			toks = append(toks, token{tokOp, op, i})
			i += len(op)
		case c == '-' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case unicode.IsLetter(rune(c)):
			start := i
			for i < len(src) && (unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i]))) {
				i++
			}
			toks = append(toks, token{tokWord, src[start:i], start})
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, i)
		}
	}
	return toks, nil
}

func lexQuoted(s string, quote byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != quote {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			b.WriteByte(quote)
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, fmt.Errorf("%w: unterminated string", ErrSyntax)
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if !p.done() && t.kind == tokWord && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

func (p *parser) or() (Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	terms := Or{left}
	for p.keyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return terms, nil
}

func (p *parser) and() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	terms := And{left}
	for p.keyword("AND") {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return terms, nil
}

func (p *parser) unary() (Expr, error) {
	if p.done() {
		return nil, p.errorf("unexpected end of expression")
	}
	if p.keyword("NOT") {
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: e}, nil
	}
	if p.peek().kind == tokLParen {
		p.pos++
		e, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().kind != tokRParen {
			return nil, p.errorf("missing )")
		}
		p.pos++
		return e, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Expr, error) {
	field := p.peek()
	if field.kind != tokField {
		return nil, p.errorf("expected [field] at %d, got %q", field.pos, field.text)
	}
	p.pos++
	op := p.peek()
	if p.done() || op.kind != tokOp || !Op(op.text).valid() {
		return nil, p.errorf("expected operator after [%s]", field.text)
	}
	p.pos++
	if p.done() {
		return nil, p.errorf("expected value after [%s] %s", field.text, op.text)
	}
	lit := p.peek()
	p.pos++
	var value any
	switch lit.kind {
	case tokString:
		value = lit.text
	case tokNumber:
		n, err := strconv.Atoi(lit.text)
		if err != nil {
			return nil, p.errorf("bad number %q", lit.text)
		}
		value = n
	case tokWord:
		switch strings.ToLower(lit.text) {
		case "true":
			value = true
		case "false":
			value = false
		default:
			return nil, p.errorf("unexpected word %q", lit.text)
		}
	default:
		return nil, p.errorf("unexpected %q", lit.text)
	}
	return Compare{Property: field.text, Op: Op(op.text), Value: value}, nil
}
