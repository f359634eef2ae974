// Package bridge exposes mail, calendar and task operations over a single
// automation session. All access goes through Conn, which serializes calls
// onto the session's thread.
package bridge

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Collision decides what happens when a downloaded attachment's name is taken.
type Collision string

const (
	CollisionRename    Collision = "rename"
	CollisionOverwrite Collision = "overwrite"
)

func ParseCollision(s string) (Collision, bool) {
	switch Collision(s) {
	case CollisionRename, "":
		return CollisionRename, true
	case CollisionOverwrite:
		return CollisionOverwrite, true
	}
	return "", false
}

// Limits are the defaults applied when a query leaves its bound unset.
type Limits struct {
	Emails       int
	Search       int
	CalendarDays int
	Tasks        int
}

const (
	DefaultEmailLimit   = 10
	DefaultSearchLimit  = 100
	DefaultCalendarDays = 7
	DefaultTaskLimit    = 100
	MaxListLimit        = 1000
)

type options struct {
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
	collision Collision
	limits    Limits
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithCollision(c Collision) Option {
	return func(o *options) { o.collision = c }
}

// WithLimits overrides the default bounds. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(o *options) {
		if l.Emails > 0 {
			o.limits.Emails = l.Emails
		}
		if l.Search > 0 {
			o.limits.Search = l.Search
		}
		if l.CalendarDays > 0 {
			o.limits.CalendarDays = l.CalendarDays
		}
		if l.Tasks > 0 {
			o.limits.Tasks = l.Tasks
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		loc:       time.Local,
		now:       time.Now,
		collision: CollisionRename,
		limits: Limits{
			Emails:       DefaultEmailLimit,
			Search:       DefaultSearchLimit,
			CalendarDays: DefaultCalendarDays,
			Tasks:        DefaultTaskLimit,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the verb contract shared by every entity type.
type Store[R, C, P any] interface {
	Get(ctx context.Context, id string) (R, error)
	Create(ctx context.Context, in C) (string, error)
	Update(ctx context.Context, id string, patch P) error
	Delete(ctx context.Context, id string) error
}

var (
	_ Store[Email, Compose, EmailPatch]                       = (*Mail)(nil)
	_ Store[Appointment, AppointmentInput, AppointmentPatch] = (*Calendar)(nil)
	_ Store[Task, TaskInput, TaskPatch]                      = (*Tasks)(nil)
)

type Bridge struct {
	conn *Conn
	opts options
	log  *slog.Logger

	Mail     *Mail
	Calendar *Calendar
	Tasks    *Tasks
}

func New(conn *Conn, opts ...Option) *Bridge {
	o := buildOptions(opts)
	b := &Bridge{conn: conn, opts: o, log: o.logger}
	b.Mail = &Mail{b: b}
	b.Calendar = &Calendar{b: b}
	b.Tasks = &Tasks{b: b}
	return b
}

func (b *Bridge) Conn() *Conn { return b.conn }

func (b *Bridge) now() time.Time { return b.opts.now().In(b.opts.loc) }

func clampLimit(n, def int) int {
	switch {
	case n <= 0:
		return def
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}
