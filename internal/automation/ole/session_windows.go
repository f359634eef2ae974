//go:build windows

package ole

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/filter"
)

// NewDialer attaches to the running application. It never starts one. The
// returned session must only be used from the goroutine that dialed it, with
// that goroutine locked to its OS thread.
func NewDialer(loc *time.Location) automation.Dialer {
	if loc == nil {
		loc = time.Local
	}
	return func(ctx context.Context) (automation.Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := goole.CoInitializeEx(0, goole.COINIT_APARTMENTTHREADED); err != nil {
			var oleErr *goole.OleError
			// S_FALSE: already initialized on this thread.
			if !errors.As(err, &oleErr) || oleErr.Code() != 1 {
				return nil, fmt.Errorf("initialize COM: %w", err)
			}
		}
		s := &session{loc: loc, handles: map[*goole.IDispatch]struct{}{}}
		app, err := oleutil.GetActiveObject(ProgID)
		if err != nil {
			goole.CoUninitialize()
			return nil, s.wrap("GetActiveObject", err)
		}
		s.app = s.track(app)
		ns, err := s.dispatch(app, "GetNamespace", call, "MAPI")
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.ns = ns
		return s, nil
	}
}

type session struct {
	loc     *time.Location
	app     *goole.IDispatch
	ns      *goole.IDispatch
	handles map[*goole.IDispatch]struct{}
	closed  bool
}

func (s *session) track(d *goole.IDispatch) *goole.IDispatch {
	if d != nil {
		s.handles[d] = struct{}{}
	}
	return d
}

func (s *session) release(d *goole.IDispatch) {
	if d == nil {
		return
	}
	if _, ok := s.handles[d]; ok {
		delete(s.handles, d)
		d.Release()
	}
}

func (s *session) wrap(name string, err error) error {
	var oleErr *goole.OleError
	if errors.As(err, &oleErr) {
		return wrapCode(uint32(oleErr.Code()), name, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

type invokeKind int

const (
	call invokeKind = iota
	get
)

func (s *session) invoke(d *goole.IDispatch, name string, kind invokeKind, args ...any) (*goole.VARIANT, error) {
	if s.closed {
		return nil, automation.ErrDisconnected
	}
	var v *goole.VARIANT
	var err error
	if kind == get {
		v, err = oleutil.GetProperty(d, name, args...)
	} else {
		v, err = oleutil.CallMethod(d, name, args...)
	}
	if err != nil {
		return nil, s.wrap(name, err)
	}
	return v, nil
}

// dispatch invokes name and returns the tracked object it yields. A null
// result is reported as ErrNoSuchItem.
func (s *session) dispatch(d *goole.IDispatch, name string, kind invokeKind, args ...any) (*goole.IDispatch, error) {
	v, err := s.invoke(d, name, kind, args...)
	if err != nil {
		return nil, err
	}
	if v.VT != goole.VT_DISPATCH {
		_ = v.Clear()
		return nil, fmt.Errorf("%w: %s returned nothing", automation.ErrNoSuchItem, name)
	}
	out := v.ToIDispatch()
	if out == nil {
		return nil, fmt.Errorf("%w: %s returned nothing", automation.ErrNoSuchItem, name)
	}
	return s.track(out), nil
}

// value invokes name and converts the result to a Go value. Dates come back
// as wall-clock times and are placed in the session's location.
func (s *session) value(d *goole.IDispatch, name string, kind invokeKind, args ...any) (any, error) {
	v, err := s.invoke(d, name, kind, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = v.Clear() }()
	out := v.Value()
	if t, ok := out.(time.Time); ok {
		out = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s.loc)
	}
	return out, nil
}

func (s *session) str(d *goole.IDispatch, name string) (string, error) {
	v, err := s.value(d, name, get)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return fmt.Sprint(v), nil
}

func (s *session) integer(d *goole.IDispatch, name string, kind invokeKind, args ...any) (int, error) {
	v, err := s.value(d, name, kind, args...)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case int16:
		return int(n), nil
	case uint8:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("%s: unexpected %T", name, v)
}

// arg converts a Go value into what the automation layer expects.
func (s *session) arg(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.In(s.loc)
	}
	return v
}

func (s *session) DefaultFolder(kind automation.FolderKind) (automation.Folder, error) {
	f, err := s.dispatch(s.ns, "GetDefaultFolder", call, int(kind))
	if err != nil {
		if errors.Is(err, automation.ErrNoSuchItem) {
			return nil, fmt.Errorf("%w: default folder %d", automation.ErrNoSuchFolder, kind)
		}
		return nil, err
	}
	return &folder{s: s, d: f}, nil
}

func (s *session) StoreRoot() (automation.Folder, error) {
	inbox, err := s.dispatch(s.ns, "GetDefaultFolder", call, int(automation.FolderInbox))
	if err != nil {
		return nil, err
	}
	defer s.release(inbox)
	root, err := s.dispatch(inbox, "Parent", get)
	if err != nil {
		return nil, err
	}
	return &folder{s: s, d: root}, nil
}

func (s *session) ItemByID(entryID string) (automation.Item, error) {
	d, err := s.dispatch(s.ns, "GetItemFromID", call, entryID)
	if err != nil {
		if errors.Is(err, automation.ErrDisconnected) || errors.Is(err, automation.ErrNotReady) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", automation.ErrNoSuchItem, err)
	}
	return &item{s: s, d: d}, nil
}

func (s *session) CreateItem(kind automation.ItemKind) (automation.Item, error) {
	d, err := s.dispatch(s.app, "CreateItem", call, int(kind))
	if err != nil {
		return nil, err
	}
	return &item{s: s, d: d}, nil
}

func (s *session) CreateRecipient(address string) (automation.Recipient, error) {
	d, err := s.dispatch(s.ns, "CreateRecipient", call, address)
	if err != nil {
		return nil, err
	}
	return &recipient{s: s, d: d}, nil
}

// CurrentUserAddress prefers the primary SMTP address over the directory form.
func (s *session) CurrentUserAddress() (string, error) {
	d, err := s.dispatch(s.ns, "CurrentUser", get)
	if err != nil {
		return "", err
	}
	owner := &item{s: s, d: d}
	defer owner.Release()
	r := &recipient{s: s, d: d, owner: owner}
	raw, err := r.Address()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(strings.ToLower(raw), "/o=") {
		return raw, nil
	}
	entry, err := r.AddressEntry()
	if err != nil {
		return raw, nil
	}
	if smtp, err := entry.PrimarySMTPAddress(); err == nil && smtp != "" {
		return smtp, nil
	}
	return raw, nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	for d := range s.handles {
		d.Release()
	}
	s.handles = map[*goole.IDispatch]struct{}{}
	s.closed = true
	goole.CoUninitialize()
	return nil
}

type folder struct {
	s *session
	d *goole.IDispatch
}

func (f *folder) Name() (string, error) { return f.s.str(f.d, "Name") }

func (f *folder) Folder(name string) (automation.Folder, error) {
	folders, err := f.s.dispatch(f.d, "Folders", get)
	if err != nil {
		return nil, err
	}
	defer f.s.release(folders)
	child, err := f.s.dispatch(folders, "Item", call, name)
	if err != nil {
		if errors.Is(err, automation.ErrDisconnected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", automation.ErrNoSuchFolder, name, err)
	}
	return &folder{s: f.s, d: child}, nil
}

func (f *folder) Folders() ([]automation.Folder, error) {
	folders, err := f.s.dispatch(f.d, "Folders", get)
	if err != nil {
		return nil, err
	}
	defer f.s.release(folders)
	n, err := f.s.integer(folders, "Count", get)
	if err != nil {
		return nil, err
	}
	out := make([]automation.Folder, 0, n)
	for i := 1; i <= n; i++ {
		child, err := f.s.dispatch(folders, "Item", call, i)
		if err != nil {
			for _, c := range out {
				c.Release()
			}
			return nil, err
		}
		out = append(out, &folder{s: f.s, d: child})
	}
	return out, nil
}

func (f *folder) Items() (automation.Items, error) {
	d, err := f.s.dispatch(f.d, "Items", get)
	if err != nil {
		return nil, err
	}
	return &items{s: f.s, d: d}, nil
}

func (f *folder) Release() { f.s.release(f.d) }

type items struct {
	s *session
	d *goole.IDispatch
}

func (it *items) Count() (int, error) { return it.s.integer(it.d, "Count", get) }

func (it *items) SetIncludeRecurrences(include bool) error {
	if it.s.closed {
		return automation.ErrDisconnected
	}
	if _, err := oleutil.PutProperty(it.d, "IncludeRecurrences", include); err != nil {
		return it.s.wrap("IncludeRecurrences", err)
	}
	return nil
}

func (it *items) Sort(property string, descending bool) error {
	v, err := it.s.invoke(it.d, "Sort", call, "["+strings.Trim(property, "[]")+"]", descending)
	if err != nil {
		return err
	}
	return v.Clear()
}

func (it *items) Restrict(expr filter.Expr) (automation.Items, error) {
	rendered, err := filter.Render(expr, it.s.loc)
	if err != nil {
		return nil, err
	}
	d, err := it.s.dispatch(it.d, "Restrict", call, rendered)
	if err != nil {
		return nil, err
	}
	return &items{s: it.s, d: d}, nil
}

// ForEach walks with GetFirst/GetNext, the only enumeration that is reliable
// once recurrences are included.
func (it *items) ForEach(fn func(automation.Item) error) error {
	next := "GetFirst"
	for {
		v, err := it.s.invoke(it.d, next, call)
		if err != nil {
			return err
		}
		next = "GetNext"
		if v.VT != goole.VT_DISPATCH {
			_ = v.Clear()
			return nil
		}
		d := v.ToIDispatch()
		if d == nil {
			return nil
		}
		if err := fn(&item{s: it.s, d: it.s.track(d)}); err != nil {
			if errors.Is(err, automation.ErrStop) {
				return nil
			}
			return err
		}
	}
}

func (it *items) Release() { it.s.release(it.d) }
