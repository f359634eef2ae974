package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrUnsupported = errors.New("filter: expression cannot be rendered")

const (
	jetTimeLayout  = "01/02/2006 15:04"
	daslTimeLayout = "2006-01-02 15:04"
	daslPrefix     = "@SQL="
)

// daslNames maps object model properties to their DASL schema names.
var daslNames = map[string]string{
	"subject":            "urn:schemas:httpmail:subject",
	"body":               "urn:schemas:httpmail:textdescription",
	"sendername":         "urn:schemas:httpmail:fromname",
	"senderemailaddress": "urn:schemas:httpmail:fromemail",
	"receivedtime":       "urn:schemas:httpmail:datereceived",
	"unread":             "urn:schemas:httpmail:read",
	"to":                 "urn:schemas:httpmail:displayto",
	"cc":                 "urn:schemas:httpmail:displaycc",
	"hasattachment":      "urn:schemas:httpmail:hasattachment",
	"importance":         "urn:schemas:httpmail:importance",
	"start":              "urn:schemas:calendar:dtstart",
	"end":                "urn:schemas:calendar:dtend",
	"location":           "urn:schemas:calendar:location",
	"messageclass":       "http://schemas.microsoft.com/mapi/proptag/0x001a001e",
	"complete":           "http://schemas.microsoft.com/mapi/id/{00062003-0000-0000-C000-000000000046}/811c000b",
	"duedate":            "http://schemas.microsoft.com/mapi/id/{00062003-0000-0000-C000-000000000046}/81050040",
}

var timeProperties = map[string]bool{
	"receivedtime": true,
	"start":        true,
	"end":          true,
	"duedate":      true,
}

// Render formats e for Items.Restrict. Plain comparisons use the Jet syntax;
// any substring match or DASL-only property switches the whole expression to
// DASL, since the engine does not accept a mix of the two.
func Render(e Expr, loc *time.Location) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: empty expression", ErrUnsupported)
	}
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	if needsDASL(e) {
		b.WriteString(daslPrefix)
		if err := writeDASL(&b, e, loc); err != nil {
			return "", err
		}
		return b.String(), nil
	}
	if err := writeJet(&b, e, loc); err != nil {
		return "", err
	}
	return b.String(), nil
}

func needsDASL(e Expr) bool {
	switch v := e.(type) {
	case Contains:
		return true
	case Compare:
		return strings.EqualFold(v.Property, HasAttachment)
	case Not:
		return needsDASL(v.Expr)
	case And:
		for _, c := range v {
			if needsDASL(c) {
				return true
			}
		}
	case Or:
		for _, c := range v {
			if needsDASL(c) {
				return true
			}
		}
	}
	return false
}

func writeJet(b *strings.Builder, e Expr, loc *time.Location) error {
	switch v := e.(type) {
	case Compare:
		if !v.Op.valid() {
			return fmt.Errorf("%w: operator %q", ErrUnsupported, v.Op)
		}
		lit, err := jetLiteral(v.Property, v.Value, loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "[%s] %s %s", v.Property, v.Op, lit)
		return nil
	case And:
		return writeJoined(b, []Expr(v), " AND ", loc, writeJet)
	case Or:
		return writeJoined(b, []Expr(v), " OR ", loc, writeJet)
	case Not:
		b.WriteString("NOT (")
		if err := writeJet(b, v.Expr, loc); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	}
	return fmt.Errorf("%w: %s in Jet syntax", ErrUnsupported, describe(e))
}

func writeDASL(b *strings.Builder, e Expr, loc *time.Location) error {
	switch v := e.(type) {
	case Compare:
		if !v.Op.valid() {
			return fmt.Errorf("%w: operator %q", ErrUnsupported, v.Op)
		}
		key := strings.ToLower(v.Property)
		name, ok := daslNames[key]
		if !ok {
			return fmt.Errorf("%w: property %q has no DASL name", ErrUnsupported, v.Property)
		}
		value := v.Value
		if key == "unread" {
			// DASL exposes the read flag, not the unread flag.
			read, ok := asBool(value)
			if !ok {
				return fmt.Errorf("%w: unread needs a boolean", ErrUnsupported)
			}
			value = !read
		}
		lit, err := daslLiteral(key, value, loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "%q %s %s", name, v.Op, lit)
		return nil
	case Contains:
		name, ok := daslNames[strings.ToLower(v.Property)]
		if !ok {
			return fmt.Errorf("%w: property %q has no DASL name", ErrUnsupported, v.Property)
		}
		fmt.Fprintf(b, "%q LIKE '%%%s%%'", name, escapeQuotes(v.Text))
		return nil
	case And:
		return writeJoined(b, []Expr(v), " AND ", loc, writeDASL)
	case Or:
		return writeJoined(b, []Expr(v), " OR ", loc, writeDASL)
	case Not:
		b.WriteString("NOT (")
		if err := writeDASL(b, v.Expr, loc); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	}
	return fmt.Errorf("%w: %s in DASL syntax", ErrUnsupported, describe(e))
}

type writer func(*strings.Builder, Expr, *time.Location) error

func writeJoined(b *strings.Builder, exprs []Expr, sep string, loc *time.Location, w writer) error {
	if len(exprs) == 0 {
		return fmt.Errorf("%w: empty group", ErrUnsupported)
	}
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(sep)
		}
		_, group := e.(And)
		if _, or := e.(Or); or {
			group = true
		}
		if group {
			b.WriteString("(")
		}
		if err := w(b, e, loc); err != nil {
			return err
		}
		if group {
			b.WriteString(")")
		}
	}
	return nil
}

func jetLiteral(property string, v any, loc *time.Location) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return "'" + t.In(loc).Format(jetTimeLayout) + "'", nil
	case string:
		return "'" + escapeQuotes(t) + "'", nil
	case bool:
		if t {
			return "True", nil
		}
		return "False", nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	}
	return "", fmt.Errorf("%w: value %T for %s", ErrUnsupported, v, property)
}

func daslLiteral(key string, v any, loc *time.Location) (string, error) {
	if timeProperties[key] {
		t, ok := asTime(v, loc)
		if !ok {
			return "", fmt.Errorf("%w: %v is not a timestamp", ErrUnsupported, v)
		}
		return "'" + t.UTC().Format(daslTimeLayout) + "'", nil
	}
	switch t := v.(type) {
	case string:
		return "'" + escapeQuotes(t) + "'", nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	}
	return "", fmt.Errorf("%w: value %T for %s", ErrUnsupported, v, key)
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
