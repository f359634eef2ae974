package bridge

import (
	"context"
	"strings"
	"time"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/filter"
)

type Calendar struct {
	b *Bridge
}

// CalendarQuery selects appointments overlapping [Start, Start+Days). All
// lists series masters regardless of date instead, bounded by Limit.
type CalendarQuery struct {
	Start time.Time
	Days  int
	All   bool
	Limit int
}

type AppointmentInput struct {
	Subject  string
	Start    time.Time
	End      time.Time
	Location string
	Body     string
	AllDay   bool
	Required []string
	Optional []string
}

// AppointmentPatch changes the non-nil fields. A nil attendee list leaves the
// attendees alone.
type AppointmentPatch struct {
	Subject  *string
	Start    *time.Time
	End      *time.Time
	Location *string
	Body     *string
	AllDay   *bool
	Required []string
	Optional []string
}

// List enumerates the calendar without letting recurring series expand
// unbounded: recurrences are included before an ascending Start sort, and the
// window is restricted inside the engine before any item is read.
func (c *Calendar) List(ctx context.Context, q CalendarQuery) ([]Appointment, error) {
	const op = "list_calendar_events"
	b := c.b
	limit := clampLimit(q.Limit, MaxListLimit)
	start := q.Start
	if start.IsZero() {
		start = b.now()
	}
	days := q.Days
	if days <= 0 {
		days = b.opts.limits.CalendarDays
	}
	end := start.AddDate(0, 0, days)

	out := []Appointment{}
	err := b.conn.Do(ctx, op, func(s automation.Session) error {
		cal, err := s.DefaultFolder(automation.FolderCalendar)
		if err != nil {
			return err
		}
		defer cal.Release()
		items, err := cal.Items()
		if err != nil {
			return err
		}
		defer items.Release()

		if q.All {
			if err := items.Sort(automation.PropStart, false); err != nil {
				return err
			}
			return items.ForEach(func(it automation.Item) error {
				defer it.Release()
				a, err := b.projectAppointment(it, false)
				if err != nil {
					return err
				}
				out = append(out, a)
				if len(out) >= limit {
					return automation.ErrStop
				}
				return nil
			})
		}

		if err := items.SetIncludeRecurrences(true); err != nil {
			return err
		}
		if err := items.Sort(automation.PropStart, false); err != nil {
			return err
		}
		window, err := items.Restrict(filter.AllOf(
			appointmentClasses(),
			filter.Cmp(automation.PropStart, filter.Lt, end),
			filter.Cmp(automation.PropEnd, filter.Gt, start),
		))
		if err != nil {
			return err
		}
		defer window.Release()
		return window.ForEach(func(it automation.Item) error {
			defer it.Release()
			a, err := b.projectAppointment(it, false)
			if err != nil {
				return err
			}
			if a.Start == nil || a.End == nil || !a.Start.Before(end) || !a.End.After(start) {
				return nil
			}
			out = append(out, a)
			if len(out) >= limit {
				return automation.ErrStop
			}
			return nil
		})
	})
	return out, err
}

func (c *Calendar) Get(ctx context.Context, id string) (Appointment, error) {
	const op = "get_appointment"
	b := c.b
	var out Appointment
	err := b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindAppointment)
		if err != nil {
			return err
		}
		defer it.Release()
		out, err = b.projectAppointment(it, true)
		return err
	})
	return out, err
}

func (b *Bridge) projectAppointment(it automation.Item, full bool) (Appointment, error) {
	r := &reader{it: it, loc: b.opts.loc}
	a := Appointment{
		EntryID:           r.str(automation.PropEntryID),
		Subject:           r.str(automation.PropSubject),
		Start:             r.timestamp(automation.PropStart),
		End:               r.timestamp(automation.PropEnd),
		Location:          r.str(automation.PropLocation),
		Organizer:         r.str(automation.PropOrganizer),
		AllDay:            r.boolean(automation.PropAllDayEvent),
		ResponseRequested: r.boolean(automation.PropResponseRequested),
		Recurring:         r.boolean(automation.PropIsRecurring),
	}
	if code, ok := r.integer(automation.PropResponseStatus); ok {
		a.ResponseStatus = responseStatusOf(code)
	}
	if code, ok := r.integer(automation.PropMeetingStatus); ok {
		a.MeetingStatus = meetingStatusOf(code)
	}
	if full {
		a.Body = r.str(automation.PropBody)
	}
	if r.err != nil {
		return Appointment{}, r.err
	}

	recips, err := b.recipientsOf(it)
	if err != nil {
		return Appointment{}, err
	}
	for _, rc := range recips {
		att := Attendee{Name: rc.address.Name, Address: rc.address.Address, Response: responseStatusOf(int(rc.response))}
		switch rc.kind {
		case automation.RecipientOrganizer:
			a.Organizer = rc.address.Address
		case automation.RecipientRequired:
			a.RequiredAttendees = append(a.RequiredAttendees, att)
		case automation.RecipientOptional:
			a.OptionalAttendees = append(a.OptionalAttendees, att)
		}
	}
	return a, nil
}

func (c *Calendar) Create(ctx context.Context, in AppointmentInput) (string, error) {
	const op = "create_appointment"
	if strings.TrimSpace(in.Subject) == "" {
		return "", invalid(op, "subject", "subject is required")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return "", invalid(op, "start", "start and end are required")
	}
	if in.End.Before(in.Start) {
		return "", invalid(op, "end", "end %s is before start %s", in.End.Format(time.RFC3339), in.Start.Format(time.RFC3339))
	}
	var id string
	err := c.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := s.CreateItem(automation.ItemAppointment)
		if err != nil {
			return err
		}
		defer it.Release()
		sets := []propSet{
			{automation.PropSubject, in.Subject},
			{automation.PropStart, in.Start},
			{automation.PropEnd, in.End},
			{automation.PropLocation, in.Location},
			{automation.PropBody, in.Body},
			{automation.PropAllDayEvent, in.AllDay},
		}
		if req := joinRecipients(in.Required); req != "" {
			sets = append(sets, propSet{automation.PropRequiredAttendees, req})
		}
		if opt := joinRecipients(in.Optional); opt != "" {
			sets = append(sets, propSet{automation.PropOptionalAttendees, opt})
		}
		if len(nonEmpty(in.Required))+len(nonEmpty(in.Optional)) > 0 {
			sets = append(sets, propSet{automation.PropMeetingStatus, automation.MeetingMeeting})
		}
		if err := applyProps(it, sets); err != nil {
			return err
		}
		if err := it.Save(); err != nil {
			return err
		}
		id, err = propString(it, automation.PropEntryID)
		return err
	})
	return id, err
}

func (c *Calendar) Update(ctx context.Context, id string, patch AppointmentPatch) error {
	const op = "edit_appointment"
	if patch.Start != nil && patch.End != nil && patch.End.Before(*patch.Start) {
		return invalid(op, "end", "end is before start")
	}
	return c.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindAppointment)
		if err != nil {
			return err
		}
		defer it.Release()
		if patch.Start != nil || patch.End != nil {
			r := &reader{it: it, loc: c.b.opts.loc}
			start, end := r.timestamp(automation.PropStart), r.timestamp(automation.PropEnd)
			if r.err != nil {
				return r.err
			}
			if patch.Start != nil {
				start = patch.Start
			}
			if patch.End != nil {
				end = patch.End
			}
			if start != nil && end != nil && end.Before(*start) {
				return invalid(op, "end", "end is before start")
			}
		}
		if patch.Subject != nil {
			if err := it.Set(automation.PropSubject, *patch.Subject); err != nil {
				return err
			}
		}
		if patch.Start != nil {
			if err := it.Set(automation.PropStart, *patch.Start); err != nil {
				return err
			}
		}
		if patch.End != nil {
			if err := it.Set(automation.PropEnd, *patch.End); err != nil {
				return err
			}
		}
		if patch.Location != nil {
			if err := it.Set(automation.PropLocation, *patch.Location); err != nil {
				return err
			}
		}
		if patch.Body != nil {
			if err := it.Set(automation.PropBody, *patch.Body); err != nil {
				return err
			}
		}
		if patch.AllDay != nil {
			if err := it.Set(automation.PropAllDayEvent, *patch.AllDay); err != nil {
				return err
			}
		}
		if patch.Required != nil {
			if err := it.Set(automation.PropRequiredAttendees, joinRecipients(patch.Required)); err != nil {
				return err
			}
		}
		if patch.Optional != nil {
			if err := it.Set(automation.PropOptionalAttendees, joinRecipients(patch.Optional)); err != nil {
				return err
			}
		}
		return it.Save()
	})
}

func (c *Calendar) Delete(ctx context.Context, id string) error {
	const op = "delete_appointment"
	return c.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindAppointment)
		if err != nil {
			return err
		}
		defer it.Release()
		return it.Delete()
	})
}

// Respond answers a meeting request and sends the response to the organizer.
func (c *Calendar) Respond(ctx context.Context, id string, response MeetingResponse) error {
	const op = "respond_to_meeting"
	code, ok := response.code()
	if !ok {
		return invalid(op, "response", "unknown response %q (want accept, decline or tentative)", response)
	}
	return c.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindAppointment)
		if err != nil {
			return err
		}
		defer it.Release()
		reply, err := it.Respond(code)
		if err != nil {
			return err
		}
		defer reply.Release()
		return reply.Send()
	})
}

// appointmentClasses matches IPM.Appointment and every IPM.Appointment.*
// subclass; '{' sorts directly after the '.' separated suffixes.
func appointmentClasses() filter.Expr {
	return filter.AllOf(
		filter.Cmp(automation.PropMessageClass, filter.Ge, automation.MessageClassAppointment),
		filter.Cmp(automation.PropMessageClass, filter.Lt, automation.MessageClassAppointment+"{"),
	)
}
