package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Getter returns the value of a property, or false when the item lacks it.
type Getter func(property string) (any, bool)

// Eval evaluates e against one item. Backends that cannot hand the expression
// to a native engine use it to honour Items.Restrict.
func Eval(e Expr, get Getter, loc *time.Location) (bool, error) {
	if loc == nil {
		loc = time.Local
	}
	switch v := e.(type) {
	case nil:
		return true, nil
	case Compare:
		have, ok := get(v.Property)
		if !ok || have == nil {
			return false, nil
		}
		return compare(have, v.Op, v.Value, loc)
	case Contains:
		have, ok := get(v.Property)
		if !ok {
			return false, nil
		}
		s, ok := have.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(v.Text)), nil
	case And:
		for _, c := range v {
			ok, err := Eval(c, get, loc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, c := range v {
			ok, err := Eval(c, get, loc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := Eval(v.Expr, get, loc)
		return !ok, err
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupported, describe(e))
}

func compare(have any, op Op, want any, loc *time.Location) (bool, error) {
	switch h := have.(type) {
	case time.Time:
		w, ok := asTime(want, loc)
		if !ok {
			return false, fmt.Errorf("%w: %v is not a timestamp", ErrSyntax, want)
		}
		return ordered(h.Compare(w), op), nil
	case bool:
		w, ok := asBool(want)
		if !ok {
			return false, fmt.Errorf("%w: %v is not a boolean", ErrSyntax, want)
		}
		switch op {
		case Eq:
			return h == w, nil
		case Ne:
			return h != w, nil
		}
		return false, fmt.Errorf("%w: operator %s on boolean", ErrSyntax, op)
	case string:
		return ordered(strings.Compare(strings.ToLower(h), strings.ToLower(fmt.Sprint(want))), op), nil
	}
	if h, ok := asInt(have); ok {
		w, ok := asInt(want)
		if !ok {
			return false, fmt.Errorf("%w: %v is not a number", ErrSyntax, want)
		}
		switch {
		case h < w:
			return ordered(-1, op), nil
		case h > w:
			return ordered(1, op), nil
		}
		return ordered(0, op), nil
	}
	return false, fmt.Errorf("%w: cannot compare %T", ErrUnsupported, have)
}

func ordered(cmp int, op Op) bool {
	switch op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	}
	return false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case int:
		return b != 0, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return parsed, err == nil
	}
	return 0, false
}
