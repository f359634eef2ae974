package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderJetWindow(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	start := time.Date(2026, 1, 25, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	expr := AllOf(
		Cmp("MessageClass", Ge, "IPM.Appointment"),
		Cmp("Start", Lt, end),
		Cmp("End", Gt, start),
	)
	got, err := Render(expr, loc)
	require.NoError(t, err)
	assert.Equal(t, "[MessageClass] >= 'IPM.Appointment' AND [Start] < '01/26/2026 00:00' AND [End] > '01/25/2026 00:00'", got)
}

func TestRenderMessageClassRange(t *testing.T) {
	expr := AllOf(
		AllOf(
			Cmp("MessageClass", Ge, "IPM.Appointment"),
			Cmp("MessageClass", Lt, "IPM.Appointment{"),
		),
		Cmp("Start", Lt, time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)),
	)
	got, err := Render(expr, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "[MessageClass] >= 'IPM.Appointment' AND [MessageClass] < 'IPM.Appointment{' AND [Start] < '01/26/2026 00:00'", got)

	get := func(class string) Getter {
		return func(property string) (any, bool) {
			if property == "MessageClass" {
				return class, true
			}
			return time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC), true
		}
	}
	for class, want := range map[string]bool{
		"IPM.Appointment":                      true,
		"IPM.Appointment.Live Meeting Request": true,
		"IPM.Note":                             false,
		"IPM.Schedule.Meeting.Resp":            false,
		"IPM.Task":                             false,
	} {
		ok, err := Eval(expr, get(class), time.UTC)
		require.NoError(t, err)
		assert.Equal(t, want, ok, class)
	}
}

func TestRenderGroupsAndEscapes(t *testing.T) {
	expr := AllOf(
		Cmp("Unread", Eq, true),
		AnyOf(Cmp("Subject", Eq, "Bob's report"), Negate(Cmp("Importance", Lt, 2))),
	)
	got, err := Render(expr, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "[Unread] = True AND ([Subject] = 'Bob''s report' OR NOT ([Importance] < 2))", got)
}

func TestRenderSwitchesToDASL(t *testing.T) {
	after := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	expr := AllOf(
		Substring("Subject", "invoice"),
		Cmp("Unread", Eq, true),
		Cmp("ReceivedTime", Ge, after),
	)
	got, err := Render(expr, time.UTC)
	require.NoError(t, err)
	assert.Equal(t,
		`@SQL="urn:schemas:httpmail:subject" LIKE '%invoice%' AND "urn:schemas:httpmail:read" = 0 AND "urn:schemas:httpmail:datereceived" >= '2026-03-01 09:30'`,
		got)
}

func TestRenderRejectsUnknownDASLProperty(t *testing.T) {
	_, err := Render(AllOf(Substring("Subject", "x"), Cmp("Mileage", Eq, "1")), time.UTC)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Render(nil, time.UTC)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParseRoundTrip(t *testing.T) {
	src := "[Unread] = True AND ([Subject] = 'Bob''s report' OR NOT ([Importance] < 2))"
	expr, err := Parse(src)
	require.NoError(t, err)

	got, err := Render(expr, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"[Subject]",
		"[Subject] = ",
		"[Subject] == 'x'",
		"[Subject = 'x'",
		"[Subject] = 'x",
		"([Subject] = 'x'",
		"[Subject] = 'x' AND",
		"Subject = 'x'",
		"[Subject] = maybe",
	}
	for _, src := range cases {
		_, err := Parse(src)
		assert.ErrorIs(t, err, ErrSyntax, "source %q", src)
	}
}

func TestEval(t *testing.T) {
	received := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	props := map[string]any{
		"Subject":      "Quarterly Invoice",
		"Unread":       true,
		"Importance":   int32(2),
		"ReceivedTime": received,
	}
	get := func(p string) (any, bool) {
		v, ok := props[p]
		return v, ok
	}

	cases := []struct {
		expr Expr
		want bool
	}{
		{Cmp("Subject", Eq, "quarterly invoice"), true},
		{Substring("Subject", "INVOICE"), true},
		{Cmp("Unread", Eq, false), false},
		{Cmp("Importance", Ge, 2), true},
		{Cmp("ReceivedTime", Gt, "02/09/2026 00:00"), true},
		{Cmp("ReceivedTime", Lt, received), false},
		{Cmp("Missing", Eq, "x"), false},
		{Negate(Cmp("Missing", Eq, "x")), true},
		{AnyOf(Cmp("Unread", Eq, false), Cmp("Importance", Eq, 2)), true},
	}
	for _, tc := range cases {
		got, err := Eval(tc.expr, get, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%#v", tc.expr)
	}
}

func TestUpperBound(t *testing.T) {
	end := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	expr := AllOf(
		Cmp("Start", Lt, end.AddDate(0, 0, 3)),
		Cmp("Start", Le, end),
		Cmp("End", Gt, end.AddDate(0, 0, -1)),
	)
	got, ok := UpperBound(expr, "start", time.UTC)
	require.True(t, ok)
	assert.True(t, got.Equal(end))

	_, ok = UpperBound(AnyOf(Cmp("Start", Lt, end), Cmp("Subject", Eq, "x")), "Start", time.UTC)
	assert.False(t, ok)
}
