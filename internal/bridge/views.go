package bridge

import (
	"context"
	"time"
)

// Views are fixed read-only queries layered on the List operations.

func (b *Bridge) RecentEmails(ctx context.Context, limit int) ([]Email, error) {
	return b.Mail.List(ctx, EmailQuery{Folder: "Inbox", Limit: limit})
}

func (b *Bridge) UnreadEmails(ctx context.Context, limit int) ([]Email, error) {
	return b.Mail.List(ctx, EmailQuery{Folder: "Inbox", Limit: limit, UnreadOnly: true})
}

// EventsToday lists appointments overlapping today, midnight to midnight.
func (b *Bridge) EventsToday(ctx context.Context) ([]Appointment, error) {
	return b.Calendar.List(ctx, CalendarQuery{Start: b.today(), Days: 1})
}

// EventsThisWeek lists appointments overlapping the seven days from today.
func (b *Bridge) EventsThisWeek(ctx context.Context) ([]Appointment, error) {
	return b.Calendar.List(ctx, CalendarQuery{Start: b.today(), Days: 7})
}

func (b *Bridge) ActiveTasks(ctx context.Context) ([]Task, error) {
	return b.Tasks.List(ctx, TaskQuery{})
}

func (b *Bridge) AllTasks(ctx context.Context) ([]Task, error) {
	return b.Tasks.List(ctx, TaskQuery{IncludeCompleted: true})
}

func (b *Bridge) today() time.Time {
	now := b.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.opts.loc)
}
