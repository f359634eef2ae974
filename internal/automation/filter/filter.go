// Package filter builds restriction expressions that the automation engine
// evaluates itself, so callers never enumerate a folder to filter it.
package filter

import (
	"fmt"
	"strings"
	"time"
)

// HasAttachment is a virtual property only reachable through the DASL syntax.
const HasAttachment = "HasAttachment"

type Op string

const (
	Eq Op = "="
	Ne Op = "<>"
	Lt Op = "<"
	Le Op = "<="
	Gt Op = ">"
	Ge Op = ">="
)

type Expr interface {
	isExpr()
}

// Compare tests Property against a literal. Value is a string, bool, int or
// time.Time.
type Compare struct {
	Property string
	Op       Op
	Value    any
}

// Contains is a case-insensitive substring match.
type Contains struct {
	Property string
	Text     string
}

type And []Expr

type Or []Expr

type Not struct {
	Expr Expr
}

func (Compare) isExpr()  {}
func (Contains) isExpr() {}
func (And) isExpr()      {}
func (Or) isExpr()       {}
func (Not) isExpr()      {}

func Cmp(property string, op Op, value any) Expr {
	return Compare{Property: property, Op: op, Value: value}
}

func Substring(property, text string) Expr {
	return Contains{Property: property, Text: text}
}

func Negate(e Expr) Expr {
	if e == nil {
		return nil
	}
	return Not{Expr: e}
}

// AllOf joins the non-nil expressions with AND. It returns nil when nothing is left.
func AllOf(exprs ...Expr) Expr {
	out := And{}
	for _, e := range exprs {
		switch v := e.(type) {
		case nil:
		case And:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// AnyOf joins the non-nil expressions with OR.
func AnyOf(exprs ...Expr) Expr {
	out := Or{}
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// UpperBound returns the tightest "property < t" or "property <= t" bound found
// among the top-level conjuncts of e.
func UpperBound(e Expr, property string, loc *time.Location) (time.Time, bool) {
	var (
		bound time.Time
		found bool
	)
	consider := func(c Compare) {
		if !strings.EqualFold(c.Property, property) || (c.Op != Lt && c.Op != Le) {
			return
		}
		t, ok := asTime(c.Value, loc)
		if !ok {
			return
		}
		if !found || t.Before(bound) {
			bound, found = t, true
		}
	}
	switch v := e.(type) {
	case Compare:
		consider(v)
	case And:
		for _, child := range v {
			if c, ok := child.(Compare); ok {
				consider(c)
			}
		}
	}
	return bound, found
}

func (o Op) valid() bool {
	switch o {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339,
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006 3:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func asTime(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTime(t, loc)
	}
	return time.Time{}, false
}

func parseTime(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func describe(e Expr) string {
	return fmt.Sprintf("%T", e)
}
