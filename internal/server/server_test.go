package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge/internal/automation/memory"
	"mailbridge/internal/bridge"
)

var testNow = time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type fixture struct {
	app  *memory.App
	conn *bridge.Conn
	b    *bridge.Bridge
	h    http.Handler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	app := memory.New(memory.WithLocation(time.UTC), memory.WithClock(clock))
	conn, err := bridge.Connect(context.Background(), app.Dial)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	b := bridge.New(conn, bridge.WithLocation(time.UTC), bridge.WithClock(clock))
	opts.Location = time.UTC
	return &fixture{app: app, conn: conn, b: b, h: New(b, opts).Handler()}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	return w
}

func (f *fixture) call(t *testing.T, name, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/operations/"+name, body)
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) Result {
	t.Helper()
	var r Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var r ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r.Error
}

func TestHealthNeedsNoToken(t *testing.T) {
	f := newFixture(t, Options{Token: "secret"})

	w := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestTokenRequired(t *testing.T) {
	f := newFixture(t, Options{Token: "secret"})

	w := f.do(t, http.MethodGet, "/api/operations", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Code)

	w = f.do(t, http.MethodGet, "/api/operations", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/operations", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListOperations(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(t, http.MethodGet, "/api/operations", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Operations []struct {
			Name   string   `json:"name"`
			Params []string `json:"params"`
		} `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Operations, 26)

	names := make([]string, 0, len(body.Operations))
	for _, op := range body.Operations {
		names = append(names, op.Name)
	}
	assert.Contains(t, names, "get_free_busy")
	assert.Contains(t, names, "send_draft")
	assert.IsIncreasing(t, names)
}

func TestSendEmailDefaultsToDraft(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.call(t, "send_email", `{"to":"alice@example.com; bob@example.com","subject":"Status","body":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeResult(t, w)
	assert.Equal(t, "entry_id", res.Kind)
	require.NotEmpty(t, res.EntryID)

	w = f.call(t, "get_email", `{"entry_id":"`+res.EntryID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var rec struct {
		Record bridge.Email `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Status", rec.Record.Subject)
	assert.False(t, rec.Record.Sent)
	assert.Len(t, rec.Record.To, 2)
}

func TestSendEmailImmediate(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.call(t, "send_email", `{"to":["alice@example.com"],"subject":"Now","draft":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", decodeResult(t, w).Kind)
}

func TestSendFailureIsBadGateway(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.call(t, "send_email", `{"to":"nobody","subject":"x","draft":false}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, "OPERATION_FAILED", e.Code)
	assert.Equal(t, "send_email", e.Details["operation"])
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name   string
		op     string
		body   string
		status int
		code   string
	}{
		{"missing item", "get_email", `{"entry_id":"00000000DEADBEEF"}`, http.StatusNotFound, "NOT_FOUND"},
		{"missing id", "get_task", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad type", "list_emails", `{"limit":"ten"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad timestamp", "create_appointment", `{"subject":"x","start":"tomorrow"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad response", "respond_to_meeting", `{"entry_id":"x","response":"maybe"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown operation", "launch_rockets", `{}`, http.StatusNotFound, "UNKNOWN_OPERATION"},
		{"malformed body", "list_emails", `{"limit":`, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.call(t, tt.op, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.call(t, "edit_task", `{"entry_id":"x","percent_complete":"lots"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "percent_complete", decodeError(t, w).Details["field"])
}

func TestClosedConnectionIsServiceUnavailable(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.conn.Close())

	w := f.call(t, "list_emails", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "CONNECTION_ERROR", decodeError(t, w).Code)
}

func TestEditTaskCompletesAtFullProgress(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.call(t, "create_task", `{"subject":"Report","due_date":"2026-02-01","importance":"high"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decodeResult(t, w).EntryID

	w = f.call(t, "edit_task", `{"entry_id":"`+id+`","percent_complete":100}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.call(t, "get_task", `{"entry_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var rec struct {
		Record bridge.Task `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.True(t, rec.Record.Complete)
	assert.Equal(t, 100, rec.Record.PercentComplete)
	require.NotNil(t, rec.Record.Status)
	assert.Equal(t, bridge.TaskComplete, *rec.Record.Status)

	w = f.call(t, "list_tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"records":[]`)
}

func TestResources(t *testing.T) {
	f := newFixture(t, Options{})
	id, err := f.app.Deliver(memory.Message{Subject: "Hello", SenderAddress: "carol@example.com", Unread: true})
	require.NoError(t, err)
	_, err = f.app.Deliver(memory.Message{Subject: "Old news", SenderAddress: "dave@example.com"})
	require.NoError(t, err)
	f.app.AddAppointment(memory.Appointment{
		Subject: "Standup",
		Start:   testNow.Add(time.Hour),
		End:     testNow.Add(90 * time.Minute),
	})

	w := f.do(t, http.MethodGet, "/api/resources/inbox/emails", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Old news")

	w = f.do(t, http.MethodGet, "/api/resources/inbox/unread", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello")
	assert.NotContains(t, w.Body.String(), "Old news")

	w = f.do(t, http.MethodGet, "/api/resources/email/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "record", decodeResult(t, w).Kind)

	w = f.do(t, http.MethodGet, "/api/resources/calendar/today", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Standup")

	for _, path := range []string{"/calendar/week", "/tasks/active", "/tasks/all"} {
		w = f.do(t, http.MethodGet, "/api/resources"+path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w = f.do(t, http.MethodGet, "/api/resources/email/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBodySizeLimit(t *testing.T) {
	f := newFixture(t, Options{MaxBodyBytes: 64})

	body := `{"subject":"` + strings.Repeat("x", 200) + `"}`
	w := f.call(t, "create_task", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, w).Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/health", "").Code)
	w := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRequestID(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(t, http.MethodGet, "/api/health", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = f.do(t, http.MethodGet, "/api/health", "", requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"http://localhost:3000"}, Token: "secret"})

	// Browsers send request header names lowercased and sorted.
	cases := []struct {
		headers string
		allowed bool
	}{
		{"", true},
		{"authorization", true},
		{"content-type", true},
		{"authorization,content-type", true},
		{"authorization,content-type,x-request-id", true},
		{"x-unknown", false},
	}
	for _, tc := range cases {
		t.Run(tc.headers, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodOptions, "/api/operations/list_emails", nil)
			r.Header.Set("Origin", "http://localhost:3000")
			r.Header.Set("Access-Control-Request-Method", http.MethodPost)
			if tc.headers != "" {
				r.Header.Set("Access-Control-Request-Headers", tc.headers)
			}
			w := httptest.NewRecorder()
			f.h.ServeHTTP(w, r)

			assert.Less(t, w.Code, 300)
			if tc.allowed {
				assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestListParamsAcceptArraysAndStrings(t *testing.T) {
	p := &params{op: "t", raw: map[string]any{
		"a": "x@example.com, y@example.com;z@example.com",
		"b": []any{" x@example.com ", ""},
		"c": json.Number("3"),
	}}
	assert.Equal(t, []string{"x@example.com", "y@example.com", "z@example.com"}, p.list("a"))
	assert.Equal(t, []string{"x@example.com"}, p.list("b"))
	assert.Nil(t, p.list("missing"))
	assert.Nil(t, p.list("c"))
	require.Error(t, p.err)
	assert.ErrorIs(t, p.err, bridge.ErrValidation)
}

func TestDecodeParams(t *testing.T) {
	raw, err := decodeParams(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, raw)

	raw, err = decodeParams(strings.NewReader(`{"limit": 5}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("5"), raw["limit"])

	_, err = decodeParams(strings.NewReader(`[1,2]`))
	assert.Error(t, err)
}
