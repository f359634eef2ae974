package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mailbridge/internal/bridge"
)

// params reads the flat JSON object an operation is called with. The first
// malformed value is kept in err and reported as a validation error.
type params struct {
	op  string
	raw map[string]any
	loc *time.Location
	err error
}

func (p *params) fail(name, format string, args ...any) {
	if p.err == nil {
		p.err = &bridge.Error{Kind: bridge.ErrValidation, Op: p.op, Field: name, Err: fmt.Errorf(format, args...)}
	}
}

func (p *params) has(name string) bool {
	v, ok := p.raw[name]
	return ok && v != nil
}

func (p *params) str(name string) string {
	v, ok := p.raw[name]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	p.fail(name, "expected a string, got %T", v)
	return ""
}

func (p *params) required(name string) string {
	s := strings.TrimSpace(p.str(name))
	if s == "" && p.err == nil {
		p.fail(name, "%s is required", name)
	}
	return s
}

func (p *params) strPtr(name string) *string {
	if !p.has(name) {
		return nil
	}
	s := p.str(name)
	return &s
}

func (p *params) boolPtr(name string) *bool {
	v, ok := p.raw[name]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case bool:
		return &x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err == nil {
			return &b
		}
	}
	p.fail(name, "expected a boolean")
	return nil
}

func (p *params) boolean(name string, def bool) bool {
	if b := p.boolPtr(name); b != nil {
		return *b
	}
	return def
}

func (p *params) intPtr(name string) *int {
	v, ok := p.raw[name]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	default:
		p.fail(name, "expected a number, got %T", v)
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			p.fail(name, "expected an integer, got %q", s)
			return nil
		}
		n = int(f)
	}
	return &n
}

func (p *params) integer(name string) int {
	if n := p.intPtr(name); n != nil {
		return *n
	}
	return 0
}

// list accepts a JSON array of strings or one string separated by ';' or ','.
func (p *params) list(name string) []string {
	v, ok := p.raw[name]
	if !ok || v == nil {
		return nil
	}
	var out []string
	switch x := v.(type) {
	case string:
		for _, part := range strings.FieldsFunc(x, func(r rune) bool { return r == ';' || r == ',' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				p.fail(name, "expected a list of strings")
				return nil
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		p.fail(name, "expected a string or a list of strings, got %T", v)
		return nil
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (p *params) timestamp(name string) *time.Time {
	s := strings.TrimSpace(p.str(name))
	if s == "" {
		return nil
	}
	t, err := bridge.ParseTime(s, p.loc)
	if err != nil {
		p.fail(name, "%w", err)
		return nil
	}
	return &t
}

// date accepts a bare YYYY-MM-DD, taken as local midnight, or a timestamp.
func (p *params) date(name string) *time.Time {
	s := strings.TrimSpace(p.str(name))
	if s == "" {
		return nil
	}
	t, err := bridge.ParseDate(s, p.loc)
	if err != nil {
		p.fail(name, "%w", err)
		return nil
	}
	return &t
}

func (p *params) priority(names ...string) *bridge.Priority {
	for _, name := range names {
		if !p.has(name) {
			continue
		}
		raw := p.str(name)
		pr, ok := bridge.ParsePriority(raw)
		if !ok {
			p.fail(name, "unknown priority %q (want low, normal or high)", raw)
			return nil
		}
		return &pr
	}
	return nil
}
