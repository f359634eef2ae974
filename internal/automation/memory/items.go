package memory

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/filter"
)

// view models a live Items collection. Recurring series are only expanded
// into occurrences when recurrences were included before sorting ascending on
// Start and before any restriction; otherwise masters are listed once.
type view struct {
	s       *session
	f       *folder
	include bool
	// includeLate is set when recurrences were included after a restriction.
	includeLate bool
	sortProp    string
	desc        bool
	sortedAfter bool
	filters     []filter.Expr
}

func (v *view) expanding() bool {
	return v.include && !v.includeLate && v.sortedAfter &&
		strings.EqualFold(v.sortProp, automation.PropStart) && !v.desc
}

func (v *view) SetIncludeRecurrences(include bool) error {
	a := v.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := v.s.check(); err != nil {
		return err
	}
	v.include = include
	v.includeLate = len(v.filters) > 0
	v.sortedAfter = false
	return nil
}

func (v *view) Sort(property string, descending bool) error {
	a := v.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := v.s.check(); err != nil {
		return err
	}
	v.sortProp = canonical(property)
	v.desc = descending
	v.sortedAfter = v.include
	return nil
}

func (v *view) Restrict(expr filter.Expr) (automation.Items, error) {
	a := v.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := v.s.check(); err != nil {
		return nil, err
	}
	if _, err := filter.Render(expr, a.loc); err != nil {
		return nil, fmt.Errorf("memory: restrict: %w", err)
	}
	cp := *v
	cp.filters = append(append([]filter.Expr(nil), v.filters...), expr)
	return &cp, nil
}

func (v *view) Count() (int, error) {
	a := v.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := v.s.check(); err != nil {
		return 0, err
	}
	if a.notReady > 0 {
		a.notReady--
		return 0, automation.ErrNotReady
	}
	if v.expanding() {
		// The engine cannot count an expanded series.
		return math.MaxInt32, nil
	}
	recs, err := v.matching(a)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (v *view) ForEach(fn func(automation.Item) error) error {
	a := v.s.app
	a.mu.Lock()
	if err := v.s.check(); err != nil {
		a.mu.Unlock()
		return err
	}
	a.scans++
	if v.expanding() {
		masters := a.inFolder(v.f)
		a.mu.Unlock()
		return v.walkExpanded(masters, fn)
	}
	recs, err := v.matching(a)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := fn(&item{s: v.s, rec: rec}); err != nil {
			if errors.Is(err, automation.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (v *view) Release() {}

// matching must be called with a.mu held.
func (v *view) matching(a *App) ([]*record, error) {
	expr := filter.AllOf(v.filters...)
	var out []*record
	for _, rec := range a.inFolder(v.f) {
		it := &item{s: v.s, rec: rec}
		ok, err := filter.Eval(expr, it.lookup, a.loc)
		if err != nil {
			return nil, fmt.Errorf("memory: restrict: %w", err)
		}
		if ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	if v.sortProp != "" {
		sort.SliceStable(out, func(i, j int) bool {
			x, _ := (&item{rec: out[i]}).lookup(v.sortProp)
			y, _ := (&item{rec: out[j]}).lookup(v.sortProp)
			c := compareValues(x, y)
			if v.desc {
				return c > 0
			}
			return c < 0
		})
	}
	return out, nil
}

func (v *view) walkExpanded(masters []*record, fn func(automation.Item) error) error {
	a := v.s.app
	a.mu.Lock()
	expr := filter.AllOf(v.filters...)
	loc := a.loc
	limit := a.maxExpansion
	upper, bounded := filter.UpperBound(expr, automation.PropStart, loc)
	q := &cursorQueue{}
	for _, rec := range masters {
		start, ok := rec.props[automation.PropStart].(time.Time)
		if !ok {
			continue
		}
		end, _ := rec.props[automation.PropEnd].(time.Time)
		c := &cursor{rec: rec, start: start, length: end.Sub(start)}
		if rec.series != nil {
			c.every, c.until = rec.series.everyDays, rec.series.until
		}
		*q = append(*q, c)
	}
	heap.Init(q)
	a.mu.Unlock()

	generated := 0
	for q.Len() > 0 {
		c := heap.Pop(q).(*cursor)
		occStart := c.current()
		if bounded && occStart.After(upper) {
			return nil
		}
		generated++
		if limit > 0 && generated > limit {
			return ErrExpansionLimit
		}
		if c.every > 0 {
			c.n++
			if next := c.current(); c.until.IsZero() || !next.After(c.until) {
				heap.Push(q, c)
			}
		}

		it := &item{s: v.s, rec: c.rec}
		if c.rec.series != nil {
			it.overlay = map[string]any{
				automation.PropStart: occStart,
				automation.PropEnd:   occStart.Add(c.length),
			}
		}
		a.mu.Lock()
		err := v.s.check()
		ok := false
		if err == nil {
			ok, err = filter.Eval(expr, it.lookup, loc)
		}
		a.mu.Unlock()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(it); err != nil {
			if errors.Is(err, automation.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

type cursor struct {
	rec    *record
	start  time.Time
	length time.Duration
	every  int
	until  time.Time
	n      int
}

func (c *cursor) current() time.Time {
	return c.start.AddDate(0, 0, c.n*c.every)
}

type cursorQueue []*cursor

func (q cursorQueue) Len() int { return len(q) }

func (q cursorQueue) Less(i, j int) bool {
	a, b := q[i].current(), q[j].current()
	if a.Equal(b) {
		return q[i].rec.seq < q[j].rec.seq
	}
	return a.Before(b)
}

func (q cursorQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *cursorQueue) Push(x any) { *q = append(*q, x.(*cursor)) }

func (q *cursorQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

func compareValues(x, y any) int {
	switch a := x.(type) {
	case time.Time:
		if b, ok := y.(time.Time); ok {
			return a.Compare(b)
		}
	case string:
		if b, ok := y.(string); ok {
			return strings.Compare(strings.ToLower(a), strings.ToLower(b))
		}
	case bool:
		if b, ok := y.(bool); ok {
			switch {
			case a == b:
				return 0
			case !a:
				return -1
			}
			return 1
		}
	}
	if a, ok := toInt(x); ok {
		if b, ok := toInt(y); ok {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		}
	}
	switch {
	case x == nil && y != nil:
		return -1
	case x != nil && y == nil:
		return 1
	}
	return 0
}
