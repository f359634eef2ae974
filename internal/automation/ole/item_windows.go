//go:build windows

package ole

import (
	"errors"
	"fmt"
	"time"

	goole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"mailbridge/internal/automation"
)

// item owns the recipient, entry and attachment handles read through it and
// releases them with itself.
type item struct {
	s        *session
	d        *goole.IDispatch
	children []*goole.IDispatch
}

func (it *item) adopt(d *goole.IDispatch) *goole.IDispatch {
	if it != nil {
		it.children = append(it.children, d)
	}
	return d
}

func (it *item) Get(property string) (any, error) {
	return it.s.value(it.d, property, get)
}

func (it *item) Set(property string, value any) error {
	if it.s.closed {
		return automation.ErrDisconnected
	}
	if _, err := oleutil.PutProperty(it.d, property, it.s.arg(value)); err != nil {
		return it.s.wrap(property, err)
	}
	return nil
}

func (it *item) do(method string, args ...any) error {
	v, err := it.s.invoke(it.d, method, call, args...)
	if err != nil {
		return err
	}
	return v.Clear()
}

func (it *item) Save() error   { return it.do("Save") }
func (it *item) Send() error   { return it.do("Send") }
func (it *item) Delete() error { return it.do("Delete") }

func (it *item) Move(dest automation.Folder) (automation.Item, error) {
	f, ok := dest.(*folder)
	if !ok {
		return nil, fmt.Errorf("%w: destination is not a COM folder", automation.ErrNoSuchFolder)
	}
	d, err := it.s.dispatch(it.d, "Move", call, f.d)
	if err != nil {
		return nil, err
	}
	return &item{s: it.s, d: d}, nil
}

func (it *item) Reply(all bool) (automation.Item, error) {
	method := "Reply"
	if all {
		method = "ReplyAll"
	}
	d, err := it.s.dispatch(it.d, method, call)
	if err != nil {
		return nil, err
	}
	return &item{s: it.s, d: d}, nil
}

func (it *item) Forward() (automation.Item, error) {
	d, err := it.s.dispatch(it.d, "Forward", call)
	if err != nil {
		return nil, err
	}
	return &item{s: it.s, d: d}, nil
}

// Respond answers without showing any dialog.
func (it *item) Respond(response automation.ResponseCode) (automation.Item, error) {
	d, err := it.s.dispatch(it.d, "Respond", call, int(response), true)
	if err != nil {
		return nil, err
	}
	return &item{s: it.s, d: d}, nil
}

func (it *item) Parent() (automation.Folder, error) {
	d, err := it.s.dispatch(it.d, "Parent", get)
	if err != nil {
		return nil, err
	}
	return &folder{s: it.s, d: d}, nil
}

func (it *item) Sender() (automation.AddressEntry, error) {
	d, err := it.s.dispatch(it.d, "Sender", get)
	if errors.Is(err, automation.ErrNoSuchItem) {
		return nil, fmt.Errorf("%w: Sender", automation.ErrNoSuchProperty)
	}
	if err != nil {
		return nil, err
	}
	return &entry{s: it.s, d: it.adopt(d)}, nil
}

// each visits the 1-indexed members of the collection held in property.
func (it *item) each(property string, fn func(*goole.IDispatch)) error {
	coll, err := it.s.dispatch(it.d, property, get)
	if err != nil {
		return err
	}
	defer it.s.release(coll)
	n, err := it.s.integer(coll, "Count", get)
	if err != nil {
		return err
	}
	for i := 1; i <= n; i++ {
		d, err := it.s.dispatch(coll, "Item", call, i)
		if err != nil {
			return err
		}
		fn(it.adopt(d))
	}
	return nil
}

func (it *item) Recipients() ([]automation.Recipient, error) {
	var out []automation.Recipient
	err := it.each("Recipients", func(d *goole.IDispatch) {
		out = append(out, &recipient{s: it.s, d: d, owner: it})
	})
	return out, err
}

func (it *item) Attachments() ([]automation.Attachment, error) {
	var out []automation.Attachment
	err := it.each("Attachments", func(d *goole.IDispatch) {
		out = append(out, &attachment{s: it.s, d: d})
	})
	return out, err
}

func (it *item) AddAttachment(path string) error {
	coll, err := it.s.dispatch(it.d, "Attachments", get)
	if err != nil {
		return err
	}
	defer it.s.release(coll)
	added, err := it.s.dispatch(coll, "Add", call, path)
	if err != nil {
		return err
	}
	it.s.release(added)
	return nil
}

func (it *item) Release() {
	for _, d := range it.children {
		it.s.release(d)
	}
	it.children = nil
	it.s.release(it.d)
}

type recipient struct {
	s     *session
	d     *goole.IDispatch
	owner *item
}

func (r *recipient) Name() (string, error)    { return r.s.str(r.d, "Name") }
func (r *recipient) Address() (string, error) { return r.s.str(r.d, "Address") }

func (r *recipient) Kind() (automation.RecipientKind, error) {
	n, err := r.s.integer(r.d, "Type", get)
	return automation.RecipientKind(n), err
}

func (r *recipient) MeetingResponse() (automation.ResponseCode, error) {
	n, err := r.s.integer(r.d, "MeetingResponseStatus", get)
	return automation.ResponseCode(n), err
}

func (r *recipient) AddressEntry() (automation.AddressEntry, error) {
	d, err := r.s.dispatch(r.d, "AddressEntry", get)
	if err != nil {
		return nil, err
	}
	return &entry{s: r.s, d: r.owner.adopt(d)}, nil
}

func (r *recipient) Resolve() (bool, error) {
	v, err := r.s.value(r.d, "Resolve", call)
	if err != nil {
		return false, err
	}
	ok, _ := v.(bool)
	return ok, nil
}

// FreeBusy asks for the complete format, which distinguishes out of office and
// working elsewhere from busy.
func (r *recipient) FreeBusy(start time.Time, intervalMinutes int) (string, error) {
	v, err := r.s.value(r.d, "FreeBusy", call, r.s.arg(start), intervalMinutes, true)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

type entry struct {
	s *session
	d *goole.IDispatch
}

func (e *entry) Name() (string, error)    { return e.s.str(e.d, "Name") }
func (e *entry) Address() (string, error) { return e.s.str(e.d, "Address") }
func (e *entry) Type() (string, error)    { return e.s.str(e.d, "Type") }

func (e *entry) PrimarySMTPAddress() (string, error) {
	user, err := e.s.dispatch(e.d, "GetExchangeUser", call)
	if errors.Is(err, automation.ErrNoSuchItem) {
		return "", automation.ErrNotDirectoryUser
	}
	if err != nil {
		return "", err
	}
	defer e.s.release(user)
	return e.s.str(user, "PrimarySmtpAddress")
}

type attachment struct {
	s *session
	d *goole.IDispatch
}

func (a *attachment) FileName() (string, error) { return a.s.str(a.d, "FileName") }

func (a *attachment) SaveAsFile(path string) error {
	v, err := a.s.invoke(a.d, "SaveAsFile", call, path)
	if err != nil {
		return err
	}
	return v.Clear()
}
