package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"mailbridge/internal/automation"
)

const DefaultFreeBusyInterval = 30

// FreeBusyQuery asks for the availability of Address over [Start, End). With
// no Address the first required attendee of EntryID is used, and failing that
// the current user.
type FreeBusyQuery struct {
	Address         string
	EntryID         string
	Start           time.Time
	End             time.Time
	IntervalMinutes int
}

// FreeBusy reports availability in fixed intervals, merging adjacent intervals
// of equal status. An address the directory cannot resolve is not an error:
// the result carries Resolved=false and no slots.
func (c *Calendar) FreeBusy(ctx context.Context, q FreeBusyQuery) (FreeBusy, error) {
	const op = "get_free_busy"
	b := c.b
	interval := q.IntervalMinutes
	if interval == 0 {
		interval = DefaultFreeBusyInterval
	}
	if interval < 0 || interval > 24*60 {
		return FreeBusy{}, invalid(op, "interval_minutes", "interval %d is outside 1..1440", interval)
	}
	start := q.Start
	if start.IsZero() {
		now := b.now()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.opts.loc)
	}
	start = start.In(b.opts.loc)
	end := q.End
	if end.IsZero() {
		end = start.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return FreeBusy{}, invalid(op, "end", "end must be after start")
	}

	out := FreeBusy{Start: start, End: end.In(b.opts.loc), IntervalMinutes: interval}
	err := b.conn.Do(ctx, op, func(s automation.Session) error {
		address, err := c.freeBusyAddress(s, op, q)
		if err != nil {
			return err
		}
		out.Address = address
		r, err := s.CreateRecipient(address)
		if err != nil {
			return err
		}
		ok, err := r.Resolve()
		if err != nil {
			return err
		}
		if !ok {
			b.log.Debug("free/busy address did not resolve", "address", address)
			return nil
		}
		out.Resolved = true

		base := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, b.opts.loc)
		step := time.Duration(interval) * time.Minute
		for chunk := base; chunk.Before(end); {
			raw, err := r.FreeBusy(chunk, interval)
			if err != nil {
				return err
			}
			if raw == "" {
				break
			}
			for i, ch := range raw {
				slotStart := chunk.Add(time.Duration(i) * step)
				slotEnd := slotStart.Add(step)
				if !slotStart.Before(end) {
					break
				}
				if !slotEnd.After(start) {
					continue
				}
				out.Slots = appendSlot(out.Slots, Slot{
					Start:  maxTime(slotStart, start),
					End:    minTime(slotEnd, end),
					Status: busyStatusOf(ch),
				})
			}
			chunk = chunk.Add(time.Duration(len(raw)) * step)
		}
		return nil
	})
	if err != nil {
		return FreeBusy{}, err
	}
	return out, nil
}

func (c *Calendar) freeBusyAddress(s automation.Session, op string, q FreeBusyQuery) (string, error) {
	if addr := strings.TrimSpace(q.Address); addr != "" {
		return addr, nil
	}
	if strings.TrimSpace(q.EntryID) != "" {
		it, err := resolve(s, op, q.EntryID, kindAppointment)
		if err != nil {
			return "", err
		}
		defer it.Release()
		required, err := propString(it, automation.PropRequiredAttendees)
		if err != nil {
			return "", err
		}
		for _, a := range strings.Split(required, ";") {
			if a = strings.TrimSpace(a); a != "" {
				return a, nil
			}
		}
	}
	addr, err := s.CurrentUserAddress()
	if err != nil {
		return "", err
	}
	if addr == "" {
		return "", errors.New("current user has no address")
	}
	return addr, nil
}

func busyStatusOf(ch rune) BusyStatus {
	switch ch {
	case '0':
		return BusyFree
	case '1':
		return BusyTentative
	case '2':
		return BusyBusy
	case '3':
		return BusyOutOfOffice
	case '4':
		return BusyWorkingElsewhere
	}
	return BusyBusy
}

func appendSlot(slots []Slot, s Slot) []Slot {
	if n := len(slots); n > 0 && slots[n-1].Status == s.Status && slots[n-1].End.Equal(s.Start) {
		slots[n-1].End = s.End
		return slots
	}
	return append(slots, s)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
