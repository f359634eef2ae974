package memory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mailbridge/internal/automation"
)

var errReadOnly = errors.New("memory: property is read-only")

type series struct {
	everyDays int
	until     time.Time
}

type record struct {
	id       string
	seq      int
	kind     automation.ItemKind
	folder   *folder
	props    map[string]any
	sender   *entry
	recips   []*recipient
	files    []File
	series   *series
	response bool
	class    string
}

func newRecord(kind automation.ItemKind) *record {
	rec := &record{kind: kind, props: map[string]any{
		automation.PropSubject: "",
		automation.PropBody:    "",
	}}
	switch kind {
	case automation.ItemMail:
		rec.props[automation.PropHTMLBody] = ""
		rec.props[automation.PropUnread] = false
		rec.props[automation.PropSent] = false
		rec.props[automation.PropImportance] = int32(automation.ImportanceNormal)
	case automation.ItemAppointment:
		rec.props[automation.PropLocation] = ""
		rec.props[automation.PropOrganizer] = ""
		rec.props[automation.PropStart] = automation.NoDate
		rec.props[automation.PropEnd] = automation.NoDate
		rec.props[automation.PropAllDayEvent] = false
		rec.props[automation.PropResponseStatus] = int32(automation.ResponseOrganized)
		rec.props[automation.PropMeetingStatus] = int32(automation.MeetingNonMeeting)
		rec.props[automation.PropResponseRequested] = true
	case automation.ItemTask:
		rec.props[automation.PropDueDate] = automation.NoDate
		rec.props[automation.PropStatus] = int32(automation.TaskNotStarted)
		rec.props[automation.PropImportance] = int32(automation.ImportanceNormal)
		rec.props[automation.PropComplete] = false
		rec.props[automation.PropPercentComplete] = int32(0)
	}
	return rec
}

func (rec *record) messageClass() string {
	switch {
	case rec.class != "":
		return rec.class
	case rec.response:
		return "IPM.Schedule.Meeting.Resp"
	case rec.kind == automation.ItemAppointment:
		return automation.MessageClassAppointment
	case rec.kind == automation.ItemTask:
		return automation.MessageClassTask
	}
	return automation.MessageClassMail
}

var recipientProps = map[string]struct {
	kinds []automation.ItemKind
	kind  automation.RecipientKind
}{
	automation.PropTo:                {[]automation.ItemKind{automation.ItemMail}, automation.RecipientTo},
	automation.PropCC:                {[]automation.ItemKind{automation.ItemMail}, automation.RecipientCC},
	automation.PropBCC:               {[]automation.ItemKind{automation.ItemMail}, automation.RecipientBCC},
	automation.PropRequiredAttendees: {[]automation.ItemKind{automation.ItemAppointment}, automation.RecipientRequired},
	automation.PropOptionalAttendees: {[]automation.ItemKind{automation.ItemAppointment}, automation.RecipientOptional},
}

var boolProps = map[string]bool{
	automation.PropUnread:            true,
	automation.PropAllDayEvent:       true,
	automation.PropComplete:          true,
	automation.PropResponseRequested: true,
}

var timeProps = map[string]bool{
	automation.PropStart:        true,
	automation.PropEnd:          true,
	automation.PropDueDate:      true,
	automation.PropReceivedTime: true,
}

// item is a handle on a record. Occurrences of a recurring series share the
// master record and override Start and End.
type item struct {
	s       *session
	rec     *record
	overlay map[string]any
}

func canonical(prop string) string {
	prop = strings.Trim(strings.TrimSpace(prop), "[]")
	for _, known := range []string{
		automation.PropEntryID, automation.PropMessageClass, automation.PropSubject,
		automation.PropBody, automation.PropHTMLBody, automation.PropSenderName,
		automation.PropSenderEmailAddress, automation.PropSenderEmailType,
		automation.PropReceivedTime, automation.PropUnread, automation.PropSent,
		automation.PropTo, automation.PropCC, automation.PropBCC, automation.PropStart,
		automation.PropEnd, automation.PropLocation, automation.PropOrganizer,
		automation.PropAllDayEvent, automation.PropRequiredAttendees,
		automation.PropOptionalAttendees, automation.PropResponseStatus,
		automation.PropMeetingStatus, automation.PropResponseRequested,
		automation.PropIsRecurring, automation.PropDueDate, automation.PropStatus,
		automation.PropImportance, automation.PropComplete,
		automation.PropPercentComplete, "HasAttachment",
	} {
		if strings.EqualFold(prop, known) {
			return known
		}
	}
	return prop
}

// lookup must be called with app.mu held.
func (it *item) lookup(prop string) (any, bool) {
	prop = canonical(prop)
	if v, ok := it.overlay[prop]; ok {
		return v, true
	}
	rec := it.rec
	switch prop {
	case automation.PropEntryID:
		return rec.id, true
	case automation.PropMessageClass:
		return rec.messageClass(), true
	case "HasAttachment":
		return len(rec.files) > 0, true
	case automation.PropIsRecurring:
		if rec.kind != automation.ItemAppointment {
			return nil, false
		}
		return rec.series != nil, true
	case automation.PropSenderName, automation.PropSenderEmailAddress, automation.PropSenderEmailType:
		if rec.kind != automation.ItemMail {
			return nil, false
		}
		if rec.sender == nil {
			return "", true
		}
		switch prop {
		case automation.PropSenderName:
			return rec.sender.name, true
		case automation.PropSenderEmailAddress:
			return rec.sender.address, true
		}
		return rec.sender.typ, true
	}
	if rp, ok := recipientProps[prop]; ok {
		if !kindIn(rec.kind, rp.kinds) {
			return nil, false
		}
		var names []string
		for _, r := range rec.recips {
			if r.kind == rp.kind {
				names = append(names, r.name)
			}
		}
		return strings.Join(names, "; "), true
	}
	v, ok := rec.props[prop]
	return v, ok
}

func kindIn(k automation.ItemKind, kinds []automation.ItemKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}

// locked runs fn with the application lock held once the session is known to
// be live.
func (it *item) locked(fn func(a *App) error) error {
	a := it.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := it.s.check(); err != nil {
		return err
	}
	return fn(a)
}

func (it *item) Get(property string) (any, error) {
	var out any
	err := it.locked(func(*App) error {
		v, ok := it.lookup(property)
		if !ok {
			return fmt.Errorf("%w: %s", automation.ErrNoSuchProperty, property)
		}
		out = v
		return nil
	})
	return out, err
}

func (it *item) Set(property string, value any) error {
	return it.locked(func(a *App) error {
		prop := canonical(property)
		rec := it.rec
		switch prop {
		case automation.PropEntryID, automation.PropMessageClass, automation.PropIsRecurring, "HasAttachment",
			automation.PropSenderName, automation.PropSenderEmailAddress, automation.PropSenderEmailType:
			return fmt.Errorf("%w: %s", errReadOnly, prop)
		}
		if rp, ok := recipientProps[prop]; ok {
			if !kindIn(rec.kind, rp.kinds) {
				return fmt.Errorf("%w: %s", automation.ErrNoSuchProperty, prop)
			}
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("memory: %s needs a string, got %T", prop, value)
			}
			a.setRecipients(rec, rp.kind, strings.Split(s, ";"))
			return nil
		}
		if boolProps[prop] {
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("memory: %s needs a bool, got %T", prop, value)
			}
		}
		if timeProps[prop] {
			if _, ok := value.(time.Time); !ok {
				return fmt.Errorf("memory: %s needs a time, got %T", prop, value)
			}
		}
		if rec.kind == automation.ItemTask {
			return setTaskProgress(rec, prop, value)
		}
		rec.props[prop] = value
		return nil
	})
}

// setTaskProgress keeps Status, Complete and PercentComplete coupled the way
// the engine does.
func setTaskProgress(rec *record, prop string, value any) error {
	switch prop {
	case automation.PropPercentComplete:
		p, ok := toInt(value)
		if !ok {
			return fmt.Errorf("memory: %s needs a number, got %T", prop, value)
		}
		rec.props[prop] = int32(p)
		rec.props[automation.PropComplete] = p >= 100
		switch {
		case p >= 100:
			rec.props[automation.PropStatus] = int32(automation.TaskComplete)
		case p == 0:
			rec.props[automation.PropStatus] = int32(automation.TaskNotStarted)
		default:
			rec.props[automation.PropStatus] = int32(automation.TaskInProgress)
		}
	case automation.PropComplete:
		done := value.(bool)
		rec.props[prop] = done
		if done {
			rec.props[automation.PropPercentComplete] = int32(100)
			rec.props[automation.PropStatus] = int32(automation.TaskComplete)
		} else if st, _ := toInt(rec.props[automation.PropStatus]); st == automation.TaskComplete {
			rec.props[automation.PropPercentComplete] = int32(0)
			rec.props[automation.PropStatus] = int32(automation.TaskNotStarted)
		}
	case automation.PropStatus:
		st, ok := toInt(value)
		if !ok {
			return fmt.Errorf("memory: %s needs a number, got %T", prop, value)
		}
		rec.props[prop] = int32(st)
		rec.props[automation.PropComplete] = st == automation.TaskComplete
		if st == automation.TaskComplete {
			rec.props[automation.PropPercentComplete] = int32(100)
		}
	default:
		rec.props[prop] = value
	}
	return nil
}

func (it *item) Save() error {
	return it.locked(func(a *App) error {
		rec := it.rec
		if rec.id != "" || rec.response {
			return nil
		}
		kind := automation.FolderDrafts
		switch rec.kind {
		case automation.ItemAppointment:
			kind = automation.FolderCalendar
		case automation.ItemTask:
			kind = automation.FolderTasks
		}
		a.store(rec, a.defaults[kind])
		return nil
	})
}

func (it *item) Send() error {
	return it.locked(func(a *App) error {
		rec := it.rec
		switch {
		case rec.response:
			if rec.id != "" {
				a.unstore(rec)
			}
			return nil
		case rec.kind == automation.ItemAppointment:
			rec.props[automation.PropMeetingStatus] = int32(automation.MeetingMeeting)
			if rec.id == "" {
				a.store(rec, a.defaults[automation.FolderCalendar])
			}
			return nil
		case rec.kind != automation.ItemMail:
			return fmt.Errorf("memory: item of kind %d cannot be sent", rec.kind)
		}
		if len(rec.recips) == 0 {
			return errors.New("memory: message has no recipients")
		}
		for _, r := range rec.recips {
			if !r.resolved {
				return fmt.Errorf("memory: recipient %q could not be resolved", r.name)
			}
		}
		if rec.id != "" {
			a.unstore(rec)
		}
		rec.props[automation.PropSent] = true
		rec.props[automation.PropUnread] = false
		rec.props[automation.PropReceivedTime] = a.now()
		rec.sender = a.lookupEntry("", a.currentUser)
		a.store(rec, a.defaults[automation.FolderSentMail])
		return nil
	})
}

func (it *item) Delete() error {
	return it.locked(func(a *App) error {
		rec := it.rec
		if rec.id == "" {
			return fmt.Errorf("%w: item was never saved", automation.ErrNoSuchItem)
		}
		trash := a.defaults[automation.FolderDeletedItems]
		if rec.folder == trash {
			a.unstore(rec)
			return nil
		}
		a.unstore(rec)
		a.store(rec, trash)
		return nil
	})
}

func (it *item) Move(dest automation.Folder) (automation.Item, error) {
	var out automation.Item
	err := it.locked(func(a *App) error {
		target, ok := dest.(*folderHandle)
		if !ok || target.s.app != a {
			return fmt.Errorf("%w: destination belongs to another store", automation.ErrNoSuchFolder)
		}
		rec := it.rec
		if rec.id == "" {
			return fmt.Errorf("%w: item was never saved", automation.ErrNoSuchItem)
		}
		a.unstore(rec)
		a.store(rec, target.f)
		out = &item{s: it.s, rec: rec}
		return nil
	})
	return out, err
}

func quoted(rec *record) string {
	body, _ := rec.props[automation.PropBody].(string)
	return "\r\n\r\n-----Original Message-----\r\n" + body
}

func (it *item) Reply(all bool) (automation.Item, error) {
	var out automation.Item
	err := it.locked(func(a *App) error {
		src := it.rec
		if src.kind != automation.ItemMail {
			return fmt.Errorf("memory: only mail can be replied to")
		}
		subject, _ := src.props[automation.PropSubject].(string)
		rec := newRecord(automation.ItemMail)
		rec.props[automation.PropSubject] = "RE: " + subject
		rec.props[automation.PropBody] = quoted(src)
		if src.sender != nil {
			rec.recips = append(rec.recips, &recipient{entry: *src.sender, kind: automation.RecipientTo, resolved: true})
		}
		if all {
			for _, r := range src.recips {
				if strings.EqualFold(r.address, a.currentUser) || r.kind == automation.RecipientBCC {
					continue
				}
				cp := *r
				cp.response = automation.ResponseNone
				rec.recips = append(rec.recips, &cp)
			}
		}
		out = &item{s: it.s, rec: rec}
		return nil
	})
	return out, err
}

func (it *item) Forward() (automation.Item, error) {
	var out automation.Item
	err := it.locked(func(a *App) error {
		src := it.rec
		if src.kind != automation.ItemMail {
			return fmt.Errorf("memory: only mail can be forwarded")
		}
		subject, _ := src.props[automation.PropSubject].(string)
		rec := newRecord(automation.ItemMail)
		rec.props[automation.PropSubject] = "FW: " + subject
		rec.props[automation.PropBody] = quoted(src)
		rec.files = append(rec.files, src.files...)
		out = &item{s: it.s, rec: rec}
		return nil
	})
	return out, err
}

var responsePrefix = map[automation.ResponseCode]string{
	automation.ResponseTentative: "Tentative: ",
	automation.ResponseAccepted:  "Accepted: ",
	automation.ResponseDeclined:  "Declined: ",
}

func (it *item) Respond(response automation.ResponseCode) (automation.Item, error) {
	var out automation.Item
	err := it.locked(func(a *App) error {
		src := it.rec
		if src.kind != automation.ItemAppointment {
			return fmt.Errorf("memory: only meetings accept responses")
		}
		prefix, ok := responsePrefix[response]
		if !ok {
			return fmt.Errorf("memory: invalid response %d", response)
		}
		src.props[automation.PropResponseStatus] = int32(response)
		subject, _ := src.props[automation.PropSubject].(string)
		rec := newRecord(automation.ItemMail)
		rec.response = true
		rec.props[automation.PropSubject] = prefix + subject
		if organizer, _ := src.props[automation.PropOrganizer].(string); organizer != "" {
			rec.recips = append(rec.recips, a.parseRecipient(organizer, automation.RecipientTo))
		}
		out = &item{s: it.s, rec: rec}
		return nil
	})
	return out, err
}

func (it *item) Parent() (automation.Folder, error) {
	var out automation.Folder
	err := it.locked(func(*App) error {
		if it.rec.folder == nil {
			return fmt.Errorf("%w: item was never saved", automation.ErrNoSuchFolder)
		}
		out = &folderHandle{s: it.s, f: it.rec.folder}
		return nil
	})
	return out, err
}

func (it *item) Sender() (automation.AddressEntry, error) {
	var out automation.AddressEntry
	err := it.locked(func(*App) error {
		if it.rec.sender == nil {
			return fmt.Errorf("%w: Sender", automation.ErrNoSuchProperty)
		}
		e := *it.rec.sender
		out = &entryHandle{s: it.s, e: &e}
		return nil
	})
	return out, err
}

func (it *item) Recipients() ([]automation.Recipient, error) {
	var out []automation.Recipient
	err := it.locked(func(*App) error {
		for _, r := range it.rec.recips {
			out = append(out, &recipientHandle{s: it.s, r: r})
		}
		return nil
	})
	return out, err
}

func (it *item) Attachments() ([]automation.Attachment, error) {
	var out []automation.Attachment
	err := it.locked(func(*App) error {
		for _, f := range it.rec.files {
			out = append(out, &attachmentHandle{s: it.s, file: f})
		}
		return nil
	})
	return out, err
}

func (it *item) AddAttachment(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory: attach %s: %w", path, err)
	}
	return it.locked(func(*App) error {
		it.rec.files = append(it.rec.files, File{Name: filepath.Base(path), Data: data})
		return nil
	})
}

func (it *item) Release() {}

func (h *attachmentHandle) SaveAsFile(path string) error {
	a := h.s.app
	a.mu.Lock()
	err := h.s.check()
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, h.file.Data, 0o644)
}

// FreeBusy reports 30 days of availability from midnight of start's date, one
// character per interval: 0 free, 1 tentative, 2 busy.
func (h *recipientHandle) FreeBusy(start time.Time, intervalMinutes int) (string, error) {
	if intervalMinutes <= 0 {
		return "", fmt.Errorf("memory: invalid free/busy interval %d", intervalMinutes)
	}
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := h.s.check(); err != nil {
		return "", err
	}
	if !h.r.resolved {
		return "", fmt.Errorf("memory: recipient %q is not resolved", h.r.name)
	}
	start = start.In(a.loc)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, a.loc)
	step := time.Duration(intervalMinutes) * time.Minute
	windowEnd := start.AddDate(0, 0, 30)
	slots := make([]byte, int(windowEnd.Sub(start)/step))
	for i := range slots {
		slots[i] = '0'
	}
	for _, rec := range a.inFolder(a.defaults[automation.FolderCalendar]) {
		status := byte('2')
		if rs, _ := toInt(rec.props[automation.PropResponseStatus]); rs == int64(automation.ResponseDeclined) {
			continue
		} else if rs == int64(automation.ResponseTentative) {
			status = '1'
		}
		forOccurrences(rec, windowEnd, func(s, e time.Time) {
			if !e.After(start) {
				return
			}
			from := int(s.Sub(start) / step)
			to := int((e.Sub(start) + step - 1) / step)
			for i := max(from, 0); i < min(to, len(slots)); i++ {
				if status > slots[i] {
					slots[i] = status
				}
			}
		})
	}
	return string(slots), nil
}

// forOccurrences calls fn for each occurrence of rec starting before limit.
func forOccurrences(rec *record, limit time.Time, fn func(start, end time.Time)) {
	start, ok := rec.props[automation.PropStart].(time.Time)
	if !ok {
		return
	}
	end, _ := rec.props[automation.PropEnd].(time.Time)
	length := end.Sub(start)
	if rec.series == nil {
		if start.Before(limit) {
			fn(start, end)
		}
		return
	}
	for n := 0; ; n++ {
		s := start.AddDate(0, 0, n*rec.series.everyDays)
		if !s.Before(limit) || (!rec.series.until.IsZero() && s.After(rec.series.until)) {
			return
		}
		fn(s, s.Add(length))
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
