package bridge

import (
	"context"
	"testing"
	"time"

	"mailbridge/internal/automation/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentCreateListRespond(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 25, 14, 0, 0, 0, time.UTC)

	id, err := b.Calendar.Create(ctx, AppointmentInput{
		Subject:  "T1",
		Start:    start,
		End:      start.Add(time.Hour),
		Required: []string{"bob@example.com"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	day, err := b.Calendar.List(ctx, CalendarQuery{Start: time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC), Days: 1})
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "T1", day[0].Subject)
	require.Len(t, day[0].RequiredAttendees, 1)
	assert.Equal(t, "bob@example.com", day[0].RequiredAttendees[0].Address)
	require.NotNil(t, day[0].MeetingStatus)
	assert.Equal(t, MeetingPlain, *day[0].MeetingStatus)

	require.NoError(t, b.Calendar.Respond(ctx, id, Accept))
	got, err := b.Calendar.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.ResponseStatus)
	assert.Equal(t, ResponseAccepted, *got.ResponseStatus)
	assert.True(t, got.Start.Equal(start))
}

func TestRespondRejectsUnknownResponse(t *testing.T) {
	b, app := newTestBridge(t)
	id := app.AddAppointment(memory.Appointment{Subject: "x", Start: testNow, End: testNow.Add(time.Hour), Required: []string{"me@example.com"}})

	err := b.Calendar.Respond(context.Background(), id, MeetingResponse("maybe"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReceivedInviteStatus(t *testing.T) {
	b, app := newTestBridge(t)
	id := app.AddAppointment(memory.Appointment{
		Subject:   "Review",
		Organizer: "carol@example.com",
		Start:     testNow,
		End:       testNow.Add(time.Hour),
		Required:  []string{"me@example.com"},
	})

	got, err := b.Calendar.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got.MeetingStatus)
	assert.Equal(t, MeetingReceivedInvite, *got.MeetingStatus)
	require.NotNil(t, got.ResponseStatus)
	assert.Equal(t, ResponseNoResponse, *got.ResponseStatus)
	assert.True(t, got.ResponseRequested)
	assert.Equal(t, "carol@example.com", got.Organizer)
}

func TestBoundedWindowOverEndlessDailySeries(t *testing.T) {
	b, app := newTestBridge(t, memory.WithMaxExpansion(500))
	ctx := context.Background()
	app.AddAppointment(memory.Appointment{
		Subject:   "Standup",
		Start:     time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		End:       time.Date(2025, 6, 2, 9, 45, 0, 0, time.UTC),
		EveryDays: 1,
	})
	app.AddAppointment(memory.Appointment{Subject: "Offsite", Start: testNow.AddDate(0, 1, 0), End: testNow.AddDate(0, 1, 0).Add(time.Hour)})

	from := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	done := make(chan struct{})
	var got []Appointment
	var err error
	go func() {
		defer close(done)
		got, err = b.Calendar.List(ctx, CalendarQuery{Start: from, Days: 7})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listing a bounded window did not finish")
	}
	require.NoError(t, err)
	require.Len(t, got, 7)
	for i, a := range got {
		assert.Equal(t, "Standup", a.Subject)
		assert.True(t, a.Recurring)
		require.NotNil(t, a.Start)
		assert.False(t, a.Start.Before(from))
		assert.True(t, a.Start.Before(to))
		if i > 0 {
			assert.True(t, a.Start.After(*got[i-1].Start))
		}
	}
}

func TestListAllReturnsSeriesMasters(t *testing.T) {
	b, app := newTestBridge(t)
	app.AddAppointment(memory.Appointment{Subject: "Standup", Start: testNow, End: testNow.Add(15 * time.Minute), EveryDays: 1})
	app.AddAppointment(memory.Appointment{Subject: "Dentist", Start: testNow.AddDate(0, 0, 40), End: testNow.AddDate(0, 0, 40).Add(time.Hour)})

	got, err := b.Calendar.List(context.Background(), CalendarQuery{All: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Standup", got[0].Subject)
	assert.Equal(t, "Dentist", got[1].Subject)
}

func TestEventsTodayAndThisWeek(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	app.AddAppointment(memory.Appointment{Subject: "today", Start: testNow.Add(2 * time.Hour), End: testNow.Add(3 * time.Hour)})
	app.AddAppointment(memory.Appointment{Subject: "friday", Start: testNow.AddDate(0, 0, 5), End: testNow.AddDate(0, 0, 5).Add(time.Hour)})
	app.AddAppointment(memory.Appointment{Subject: "next month", Start: testNow.AddDate(0, 1, 0), End: testNow.AddDate(0, 1, 0).Add(time.Hour)})

	today, err := b.EventsToday(ctx)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "today", today[0].Subject)

	week, err := b.EventsThisWeek(ctx)
	require.NoError(t, err)
	assert.Len(t, week, 2)
}

func TestAppointmentValidation(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	_, err := b.Calendar.Create(ctx, AppointmentInput{Start: testNow, End: testNow.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = b.Calendar.Create(ctx, AppointmentInput{Subject: "backwards", Start: testNow, End: testNow.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrValidation)

	id, err := b.Calendar.Create(ctx, AppointmentInput{Subject: "ok", Start: testNow, End: testNow.Add(time.Hour)})
	require.NoError(t, err)
	early := testNow.Add(-2 * time.Hour)
	err = b.Calendar.Update(ctx, id, AppointmentPatch{End: &early})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAppointmentUpdateAndDelete(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()
	id, err := b.Calendar.Create(ctx, AppointmentInput{Subject: "1:1", Start: testNow, End: testNow.Add(30 * time.Minute)})
	require.NoError(t, err)

	subject, location := "1:1 (moved)", "Room 4"
	later := testNow.Add(time.Hour)
	laterEnd := later.Add(30 * time.Minute)
	require.NoError(t, b.Calendar.Update(ctx, id, AppointmentPatch{
		Subject:  &subject,
		Location: &location,
		Start:    &later,
		End:      &laterEnd,
		Optional: []string{"erin@example.com"},
	}))
	got, err := b.Calendar.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, subject, got.Subject)
	assert.Equal(t, location, got.Location)
	assert.True(t, got.Start.Equal(later))
	require.Len(t, got.OptionalAttendees, 1)
	assert.Equal(t, "erin@example.com", got.OptionalAttendees[0].Address)

	require.NoError(t, b.Calendar.Delete(ctx, id))
	_, err = b.Calendar.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFreeBusyMergesSlotsWithinWindow(t *testing.T) {
	b, app := newTestBridge(t)
	app.AddAppointment(memory.Appointment{Subject: "block", Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)})

	fb, err := b.Calendar.FreeBusy(context.Background(), FreeBusyQuery{Start: testNow, End: testNow.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.True(t, fb.Resolved)
	assert.Equal(t, "me@example.com", fb.Address)
	assert.Equal(t, DefaultFreeBusyInterval, fb.IntervalMinutes)
	assert.Equal(t, []Slot{
		{Start: testNow, End: testNow.Add(time.Hour), Status: BusyFree},
		{Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour), Status: BusyBusy},
		{Start: testNow.Add(2 * time.Hour), End: testNow.Add(3 * time.Hour), Status: BusyFree},
	}, fb.Slots)
}

func TestFreeBusyUnresolvedAddressIsNotAnError(t *testing.T) {
	b, _ := newTestBridge(t)

	fb, err := b.Calendar.FreeBusy(context.Background(), FreeBusyQuery{Address: "nobody"})
	require.NoError(t, err)
	assert.False(t, fb.Resolved)
	assert.Empty(t, fb.Slots)
	assert.Equal(t, time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC), fb.Start)
	assert.Equal(t, fb.Start.AddDate(0, 0, 1), fb.End)
}

func TestFreeBusyUsesFirstRequiredAttendee(t *testing.T) {
	b, app := newTestBridge(t)
	id := app.AddAppointment(memory.Appointment{Subject: "sync", Start: testNow, End: testNow.Add(time.Hour), Required: []string{"bob@example.com", "carol@example.com"}})

	fb, err := b.Calendar.FreeBusy(context.Background(), FreeBusyQuery{EntryID: id, IntervalMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", fb.Address)
	assert.True(t, fb.Resolved)

	_, err = b.Calendar.FreeBusy(context.Background(), FreeBusyQuery{IntervalMinutes: -5})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListKeepsAppointmentSubclasses(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	app.AddAppointment(memory.Appointment{Subject: "plain", Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)})
	id := app.AddAppointment(memory.Appointment{
		Subject: "online",
		Start:   testNow.Add(3 * time.Hour),
		End:     testNow.Add(4 * time.Hour),
		Class:   "IPM.Appointment.Live Meeting Request",
	})

	got, err := b.Calendar.List(ctx, CalendarQuery{Start: testNow, Days: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "plain", got[0].Subject)
	assert.Equal(t, "online", got[1].Subject)

	one, err := b.Calendar.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "online", one.Subject)
}
