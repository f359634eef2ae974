package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mailbridge/internal/automation"
)

func propString(it automation.Item, prop string) (string, error) {
	v, err := it.Get(prop)
	if errors.Is(err, automation.ErrNoSuchProperty) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func propBool(it automation.Item, prop string) (bool, error) {
	v, err := it.Get(prop)
	if errors.Is(err, automation.ErrNoSuchProperty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// propInt reports ok=false when the item does not carry the property.
func propInt(it automation.Item, prop string) (n int, ok bool, err error) {
	v, err := it.Get(prop)
	if errors.Is(err, automation.ErrNoSuchProperty) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case int8:
		return int(x), true, nil
	case int16:
		return int(x), true, nil
	case int32:
		return int(x), true, nil
	case int64:
		return int(x), true, nil
	case uint8:
		return int(x), true, nil
	case uint16:
		return int(x), true, nil
	case uint32:
		return int(x), true, nil
	case float64:
		return int(x), true, nil
	}
	return 0, false, nil
}

// propTime returns nil for absent values and for the "no date" sentinel.
func propTime(it automation.Item, prop string, loc *time.Location) (*time.Time, error) {
	v, err := it.Get(prop)
	if errors.Is(err, automation.ErrNoSuchProperty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, ok := v.(time.Time)
	if !ok || automation.IsNoDate(t) {
		return nil, nil
	}
	t = t.In(loc)
	return &t, nil
}

func responseStatusOf(code int) *ResponseStatus {
	var s ResponseStatus
	switch automation.ResponseCode(code) {
	case automation.ResponseOrganized:
		s = ResponseOrganizer
	case automation.ResponseTentative:
		s = ResponseTentative
	case automation.ResponseAccepted:
		s = ResponseAccepted
	case automation.ResponseDeclined:
		s = ResponseDeclined
	case automation.ResponseNone, automation.ResponseNotResponded:
		s = ResponseNoResponse
	default:
		return nil
	}
	return &s
}

func meetingStatusOf(code int) *MeetingStatus {
	var s MeetingStatus
	switch code {
	case automation.MeetingNonMeeting:
		s = MeetingNonMeeting
	case automation.MeetingMeeting:
		s = MeetingPlain
	case automation.MeetingReceived:
		s = MeetingReceivedInvite
	case automation.MeetingCanceled, automation.MeetingReceivedAndCanceled:
		s = MeetingCanceled
	default:
		return nil
	}
	return &s
}

func taskStatusOf(code int) *TaskStatus {
	var s TaskStatus
	switch code {
	case automation.TaskNotStarted:
		s = TaskNotStarted
	case automation.TaskInProgress:
		s = TaskInProgress
	case automation.TaskComplete:
		s = TaskComplete
	default:
		return nil
	}
	return &s
}

func priorityOf(code int) *Priority {
	var p Priority
	switch code {
	case automation.ImportanceLow:
		p = PriorityLow
	case automation.ImportanceNormal:
		p = PriorityNormal
	case automation.ImportanceHigh:
		p = PriorityHigh
	default:
		return nil
	}
	return &p
}

// ParsePriority accepts a name (low, normal, high) or the native 0..2 value.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return PriorityLow, true
	case "normal", "1":
		return PriorityNormal, true
	case "high", "2":
		return PriorityHigh, true
	}
	return "", false
}

func (p Priority) code() (int, bool) {
	switch p {
	case PriorityLow:
		return automation.ImportanceLow, true
	case PriorityNormal:
		return automation.ImportanceNormal, true
	case PriorityHigh:
		return automation.ImportanceHigh, true
	}
	return 0, false
}

type MeetingResponse string

const (
	Accept    MeetingResponse = "accept"
	Decline   MeetingResponse = "decline"
	Tentative MeetingResponse = "tentative"
)

func ParseMeetingResponse(s string) (MeetingResponse, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accepted":
		return Accept, true
	case "decline", "declined":
		return Decline, true
	case "tentative":
		return Tentative, true
	}
	return "", false
}

func (r MeetingResponse) code() (automation.ResponseCode, bool) {
	switch r {
	case Accept:
		return automation.ResponseAccepted, true
	case Decline:
		return automation.ResponseDeclined, true
	case Tentative:
		return automation.ResponseTentative, true
	}
	return 0, false
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime reads an RFC 3339 timestamp. Timestamps without an offset are
// taken in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ParseDate reads a bare YYYY-MM-DD as midnight in loc, or a full timestamp.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc); err == nil {
		return t, nil
	}
	return ParseTime(s, loc)
}

// reader collects item properties and keeps the first failure.
type reader struct {
	it  automation.Item
	loc *time.Location
	err error
}

func (r *reader) str(prop string) string {
	if r.err != nil {
		return ""
	}
	v, err := propString(r.it, prop)
	r.err = err
	return v
}

func (r *reader) boolean(prop string) bool {
	if r.err != nil {
		return false
	}
	v, err := propBool(r.it, prop)
	r.err = err
	return v
}

func (r *reader) integer(prop string) (int, bool) {
	if r.err != nil {
		return 0, false
	}
	v, ok, err := propInt(r.it, prop)
	r.err = err
	return v, ok
}

func (r *reader) timestamp(prop string) *time.Time {
	if r.err != nil {
		return nil
	}
	v, err := propTime(r.it, prop, r.loc)
	r.err = err
	return v
}

type propSet struct {
	prop  string
	value any
}

func applyProps(it automation.Item, sets []propSet) error {
	for _, set := range sets {
		if err := it.Set(set.prop, set.value); err != nil {
			return err
		}
	}
	return nil
}
