// Package memory simulates the desktop application's object model in process.
// It mirrors the engine behaviours the bridge depends on: EntryIDs that change
// when an item moves, recurrence expansion that only works on an ascending
// Start sort, and restrictions evaluated inside the engine.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mailbridge/internal/automation"

	"github.com/google/uuid"
)

// ErrExpansionLimit stands in for the hang a real engine shows when an
// unbounded recurring series is expanded without a restriction.
var ErrExpansionLimit = errors.New("memory: recurrence expansion limit reached")

const defaultMaxExpansion = 100000

type App struct {
	mu           sync.Mutex
	running      bool
	notReady     int
	loc          *time.Location
	now          func() time.Time
	maxExpansion int
	currentUser  string

	root      *folder
	defaults  map[automation.FolderKind]*folder
	items     map[string]*record
	directory map[string]*entry
	sessions  map[*session]bool

	seq     int
	lookups int
	scans   int
}

type Option func(*App)

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(a *App) { a.loc = loc }
}

// WithStartupDelay makes the first n item counts fail with ErrNotReady, the
// way a freshly launched application reports before its store is loaded.
func WithStartupDelay(n int) Option {
	return func(a *App) { a.notReady = n }
}

func WithMaxExpansion(n int) Option {
	return func(a *App) { a.maxExpansion = n }
}

func WithCurrentUser(address string) Option {
	return func(a *App) { a.currentUser = address }
}

func New(opts ...Option) *App {
	a := &App{
		running:      true,
		loc:          time.Local,
		now:          time.Now,
		maxExpansion: defaultMaxExpansion,
		currentUser:  "me@example.com",
		defaults:     map[automation.FolderKind]*folder{},
		items:        map[string]*record{},
		directory:    map[string]*entry{},
		sessions:     map[*session]bool{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.root = &folder{name: "Mailbox - " + a.currentUser}
	for _, def := range []struct {
		name string
		kind automation.FolderKind
	}{
		{"Inbox", automation.FolderInbox},
		{"Drafts", automation.FolderDrafts},
		{"Sent Items", automation.FolderSentMail},
		{"Deleted Items", automation.FolderDeletedItems},
		{"Outbox", automation.FolderOutbox},
		{"Calendar", automation.FolderCalendar},
		{"Tasks", automation.FolderTasks},
	} {
		a.defaults[def.kind] = a.root.add(def.name, def.kind)
	}
	return a
}

// Dial attaches to the simulated application. It fails with ErrNotRunning
// after Quit, the same way attaching to a closed desktop client does.
func (a *App) Dial(ctx context.Context) (automation.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil, automation.ErrNotRunning
	}
	s := &session{app: a}
	a.sessions[s] = true
	return s, nil
}

// Quit closes the application underneath any open session.
func (a *App) Quit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
}

func (a *App) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = true
}

// OpenSessions counts sessions that were dialed and not yet closed.
func (a *App) OpenSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, open := range a.sessions {
		if open {
			n++
		}
	}
	return n
}

// Stats reports how many direct id lookups and folder walks the engine served.
func (a *App) Stats() (lookups, scans int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lookups, a.scans
}

// AddFolder creates a custom folder under the store root.
func (a *App) AddFolder(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.root.child(name) == nil {
		a.root.add(name, 0)
	}
}

// AddDirectoryUser registers a directory principal. An empty smtp simulates an
// entry whose routable address cannot be looked up.
func (a *App) AddDirectoryUser(legacyDN, name, smtp string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.directory[strings.ToLower(legacyDN)] = &entry{name: name, address: legacyDN, typ: "EX", smtp: smtp}
}

type File struct {
	Name string
	Data []byte
}

type Message struct {
	Folder        string
	Subject       string
	Body          string
	HTMLBody      string
	SenderName    string
	SenderAddress string
	To            []string
	CC            []string
	Received      time.Time
	Unread        bool
	Attachments   []File
}

// Deliver places a received message into a folder (Inbox by default).
func (a *App) Deliver(m Message) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.defaults[automation.FolderInbox]
	if m.Folder != "" {
		if f = a.findFolder(m.Folder); f == nil {
			return "", fmt.Errorf("%w: %s", automation.ErrNoSuchFolder, m.Folder)
		}
	}
	received := m.Received
	if received.IsZero() {
		received = a.now()
	}
	rec := newRecord(automation.ItemMail)
	rec.props[automation.PropSubject] = m.Subject
	rec.props[automation.PropBody] = m.Body
	rec.props[automation.PropHTMLBody] = m.HTMLBody
	rec.props[automation.PropReceivedTime] = received
	rec.props[automation.PropUnread] = m.Unread
	rec.props[automation.PropSent] = true
	rec.sender = a.lookupEntry(m.SenderName, m.SenderAddress)
	a.setRecipients(rec, automation.RecipientTo, m.To)
	a.setRecipients(rec, automation.RecipientCC, m.CC)
	for _, file := range m.Attachments {
		rec.files = append(rec.files, file)
	}
	a.store(rec, f)
	return rec.id, nil
}

type Appointment struct {
	Subject   string
	Body      string
	Location  string
	Organizer string
	Start     time.Time
	End       time.Time
	AllDay    bool
	Required  []string
	Optional  []string
	// EveryDays > 0 makes the appointment a daily-style recurring series.
	EveryDays int
	// Until is the last possible occurrence start; zero means no end date.
	Until time.Time
	// Class overrides the message class, e.g. a custom form
	// "IPM.Appointment.Live Meeting Request".
	Class string
}

func (a *App) AddAppointment(ap Appointment) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := newRecord(automation.ItemAppointment)
	rec.class = ap.Class
	rec.props[automation.PropSubject] = ap.Subject
	rec.props[automation.PropBody] = ap.Body
	rec.props[automation.PropLocation] = ap.Location
	rec.props[automation.PropOrganizer] = ap.Organizer
	rec.props[automation.PropStart] = ap.Start
	rec.props[automation.PropEnd] = ap.End
	rec.props[automation.PropAllDayEvent] = ap.AllDay
	rec.props[automation.PropResponseStatus] = int32(automation.ResponseNotResponded)
	rec.props[automation.PropMeetingStatus] = int32(automation.MeetingNonMeeting)
	if len(ap.Required) > 0 || len(ap.Optional) > 0 {
		rec.props[automation.PropMeetingStatus] = int32(automation.MeetingReceived)
		rec.props[automation.PropResponseRequested] = true
	}
	a.setRecipients(rec, automation.RecipientRequired, ap.Required)
	a.setRecipients(rec, automation.RecipientOptional, ap.Optional)
	if ap.EveryDays > 0 {
		rec.series = &series{everyDays: ap.EveryDays, until: ap.Until}
	}
	a.store(rec, a.defaults[automation.FolderCalendar])
	return rec.id
}

// AddRaw stores an item with exactly the given properties, for items that
// lack fields a freshly created item would carry.
func (a *App) AddRaw(kind automation.ItemKind, folderKind automation.FolderKind, props map[string]any) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := &record{kind: kind, props: map[string]any{}}
	for k, v := range props {
		rec.props[k] = v
	}
	a.store(rec, a.defaults[folderKind])
	return rec.id
}

func (a *App) store(rec *record, f *folder) {
	a.seq++
	rec.id = newEntryID()
	rec.seq = a.seq
	rec.folder = f
	a.items[rec.id] = rec
}

func (a *App) unstore(rec *record) {
	delete(a.items, rec.id)
	rec.id = ""
	rec.folder = nil
}

func (a *App) findFolder(name string) *folder {
	for _, f := range a.defaults {
		if strings.EqualFold(f.name, name) {
			return f
		}
	}
	return a.root.child(name)
}

func (a *App) inFolder(f *folder) []*record {
	var out []*record
	for _, rec := range a.items {
		if rec.folder == f {
			out = append(out, rec)
		}
	}
	return out
}

func newEntryID() string {
	id := uuid.New()
	return strings.ToUpper("00000000" + strings.ReplaceAll(id.String(), "-", ""))
}

type folder struct {
	name     string
	kind     automation.FolderKind
	children []*folder
}

func (f *folder) add(name string, kind automation.FolderKind) *folder {
	child := &folder{name: name, kind: kind}
	f.children = append(f.children, child)
	return child
}

func (f *folder) child(name string) *folder {
	for _, c := range f.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}
