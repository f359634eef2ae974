package memory

import (
	"fmt"
	"strings"

	"mailbridge/internal/automation"

	gomail "github.com/emersion/go-message/mail"
)

type session struct {
	app    *App
	closed bool
}

// check must be called with app.mu held.
func (s *session) check() error {
	if s.closed || !s.app.running {
		return automation.ErrDisconnected
	}
	return nil
}

func (s *session) DefaultFolder(kind automation.FolderKind) (automation.Folder, error) {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	f, ok := a.defaults[kind]
	if !ok {
		return nil, fmt.Errorf("%w: default folder %d", automation.ErrNoSuchFolder, kind)
	}
	return &folderHandle{s: s, f: f}, nil
}

func (s *session) StoreRoot() (automation.Folder, error) {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return &folderHandle{s: s, f: a.root}, nil
}

func (s *session) ItemByID(entryID string) (automation.Item, error) {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	a.lookups++
	rec, ok := a.items[entryID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", automation.ErrNoSuchItem, entryID)
	}
	return &item{s: s, rec: rec}, nil
}

func (s *session) CreateItem(kind automation.ItemKind) (automation.Item, error) {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	switch kind {
	case automation.ItemMail, automation.ItemAppointment, automation.ItemTask:
	default:
		return nil, fmt.Errorf("memory: unsupported item kind %d", kind)
	}
	return &item{s: s, rec: newRecord(kind)}, nil
}

func (s *session) CreateRecipient(address string) (automation.Recipient, error) {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return &recipientHandle{s: s, r: a.parseRecipient(address, automation.RecipientTo)}, nil
}

func (s *session) CurrentUserAddress() (string, error) {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.check(); err != nil {
		return "", err
	}
	return a.currentUser, nil
}

func (s *session) Close() error {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	s.closed = true
	a.sessions[s] = false
	return nil
}

type folderHandle struct {
	s *session
	f *folder
}

func (h *folderHandle) Name() (string, error) {
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := h.s.check(); err != nil {
		return "", err
	}
	return h.f.name, nil
}

func (h *folderHandle) Folder(name string) (automation.Folder, error) {
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := h.s.check(); err != nil {
		return nil, err
	}
	child := h.f.child(name)
	if child == nil {
		return nil, fmt.Errorf("%w: %s", automation.ErrNoSuchFolder, name)
	}
	return &folderHandle{s: h.s, f: child}, nil
}

func (h *folderHandle) Folders() ([]automation.Folder, error) {
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := h.s.check(); err != nil {
		return nil, err
	}
	out := make([]automation.Folder, 0, len(h.f.children))
	for _, c := range h.f.children {
		out = append(out, &folderHandle{s: h.s, f: c})
	}
	return out, nil
}

func (h *folderHandle) Items() (automation.Items, error) {
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := h.s.check(); err != nil {
		return nil, err
	}
	return &view{s: h.s, f: h.f}, nil
}

func (h *folderHandle) Release() {}

// entry is an address book entry. Directory principals carry the "EX" type
// and a distinguished name as their address.
type entry struct {
	name    string
	address string
	typ     string
	smtp    string
}

// lookupEntry must be called with a.mu held.
func (a *App) lookupEntry(name, address string) *entry {
	if u, ok := a.directory[strings.ToLower(address)]; ok {
		cp := *u
		if name != "" {
			cp.name = name
		}
		return &cp
	}
	if !strings.Contains(address, "@") {
		for _, u := range a.directory {
			if strings.EqualFold(u.name, address) || (name != "" && strings.EqualFold(u.name, name)) {
				cp := *u
				return &cp
			}
		}
	}
	if name == "" {
		name = address
	}
	return &entry{name: name, address: address, typ: "SMTP"}
}

type entryHandle struct {
	s *session
	e *entry
}

func (h *entryHandle) Name() (string, error)    { return h.e.name, h.locked() }
func (h *entryHandle) Address() (string, error) { return h.e.address, h.locked() }
func (h *entryHandle) Type() (string, error)    { return h.e.typ, h.locked() }

func (h *entryHandle) PrimarySMTPAddress() (string, error) {
	if err := h.locked(); err != nil {
		return "", err
	}
	if h.e.typ != "EX" || h.e.smtp == "" {
		return "", fmt.Errorf("%w: %s", automation.ErrNotDirectoryUser, h.e.address)
	}
	return h.e.smtp, nil
}

func (h *entryHandle) locked() error {
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	return h.s.check()
}

type recipient struct {
	entry
	kind     automation.RecipientKind
	response automation.ResponseCode
	resolved bool
}

// parseRecipient accepts "Name <addr>", a bare address or a directory name.
// It must be called with a.mu held.
func (a *App) parseRecipient(raw string, kind automation.RecipientKind) *recipient {
	raw = strings.TrimSpace(raw)
	name, address := "", raw
	if parsed, err := gomail.ParseAddress(raw); err == nil {
		name, address = parsed.Name, parsed.Address
	}
	e := a.lookupEntry(name, address)
	resolved := e.typ == "EX" || strings.Contains(e.address, "@")
	return &recipient{entry: *e, kind: kind, resolved: resolved}
}

// setRecipients replaces every recipient of the given kind, keeping the
// response of anyone who stays on the list. It must be called with a.mu held.
func (a *App) setRecipients(rec *record, kind automation.RecipientKind, list []string) {
	previous := map[string]automation.ResponseCode{}
	kept := rec.recips[:0]
	for _, r := range rec.recips {
		if r.kind == kind {
			previous[strings.ToLower(r.address)] = r.response
			continue
		}
		kept = append(kept, r)
	}
	rec.recips = kept
	for _, raw := range list {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		r := a.parseRecipient(raw, kind)
		r.response = previous[strings.ToLower(r.address)]
		rec.recips = append(rec.recips, r)
	}
}

type recipientHandle struct {
	s *session
	r *recipient
}

func (h *recipientHandle) locked() error {
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	return h.s.check()
}

func (h *recipientHandle) Name() (string, error)    { return h.r.name, h.locked() }
func (h *recipientHandle) Address() (string, error) { return h.r.address, h.locked() }

func (h *recipientHandle) Kind() (automation.RecipientKind, error) {
	return h.r.kind, h.locked()
}

func (h *recipientHandle) MeetingResponse() (automation.ResponseCode, error) {
	return h.r.response, h.locked()
}

func (h *recipientHandle) AddressEntry() (automation.AddressEntry, error) {
	if err := h.locked(); err != nil {
		return nil, err
	}
	e := h.r.entry
	return &entryHandle{s: h.s, e: &e}, nil
}

func (h *recipientHandle) Resolve() (bool, error) {
	return h.r.resolved, h.locked()
}

type attachmentHandle struct {
	s    *session
	file File
}

func (h *attachmentHandle) FileName() (string, error) {
	a := h.s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	return h.file.Name, h.s.check()
}
