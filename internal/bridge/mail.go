package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/filter"
)

type Mail struct {
	b *Bridge
}

type EmailQuery struct {
	Folder     string
	Limit      int
	UnreadOnly bool
}

// Compose describes an outgoing message. With Draft set the message is saved
// to Drafts instead of being dispatched.
type Compose struct {
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	Body        string
	HTMLBody    string
	Attachments []string
	Draft       bool
}

// EmailPatch changes the read state and/or the folder of a message. Moving
// gives the message a new EntryID; callers look it up again.
type EmailPatch struct {
	Unread *bool
	Folder string
}

// SendResult carries either the EntryID of a saved draft or Sent=true for a
// dispatched message, whose new EntryID is not knowable.
type SendResult struct {
	EntryID string `json:"entry_id,omitempty"`
	Sent    bool   `json:"sent"`
}

type ReplyInput struct {
	ID    string
	Body  string
	All   bool
	Draft bool
}

type ForwardInput struct {
	ID    string
	To    []string
	Body  string
	Draft bool
}

type SearchQuery struct {
	Folder         string
	Subject        string
	From           string
	Body           string
	Unread         *bool
	HasAttachments *bool
	ReceivedAfter  *time.Time
	ReceivedBefore *time.Time
	// Raw is a restriction in the engine's bracketed syntax, for example
	// "[Importance] = 2".
	Raw   string
	Limit int
}

func (m *Mail) List(ctx context.Context, q EmailQuery) ([]Email, error) {
	b := m.b
	limit := clampLimit(q.Limit, b.opts.limits.Emails)
	name := q.Folder
	if name == "" {
		name = "Inbox"
	}
	var out []Email
	err := b.conn.Do(ctx, "list_emails", func(s automation.Session) error {
		f, err := folder(s, "list_emails", name)
		if err != nil {
			return err
		}
		defer f.Release()
		var expr filter.Expr
		if q.UnreadOnly {
			expr = filter.Cmp(automation.PropUnread, filter.Eq, true)
		}
		out, err = b.collectEmails(f, expr, limit)
		return err
	})
	return out, err
}

// collectEmails walks a folder newest first, restricted in-engine by expr.
func (b *Bridge) collectEmails(f automation.Folder, expr filter.Expr, limit int) ([]Email, error) {
	items, err := f.Items()
	if err != nil {
		return nil, err
	}
	defer items.Release()
	if err := items.Sort(automation.PropReceivedTime, true); err != nil {
		return nil, err
	}
	view := items
	if expr != nil {
		if view, err = items.Restrict(expr); err != nil {
			return nil, err
		}
		defer view.Release()
	}
	out := []Email{}
	err = view.ForEach(func(it automation.Item) error {
		defer it.Release()
		e, err := b.projectEmail(it, false)
		if err != nil {
			return err
		}
		out = append(out, e)
		if len(out) >= limit {
			return automation.ErrStop
		}
		return nil
	})
	return out, err
}

func (m *Mail) Get(ctx context.Context, id string) (Email, error) {
	b := m.b
	var out Email
	err := b.conn.Do(ctx, "get_email", func(s automation.Session) error {
		it, err := resolve(s, "get_email", id, kindMail)
		if err != nil {
			return err
		}
		defer it.Release()
		out, err = b.projectEmail(it, true)
		return err
	})
	return out, err
}

func (b *Bridge) projectEmail(it automation.Item, full bool) (Email, error) {
	r := &reader{it: it, loc: b.opts.loc}
	e := Email{
		EntryID:      r.str(automation.PropEntryID),
		Subject:      r.str(automation.PropSubject),
		ReceivedTime: r.timestamp(automation.PropReceivedTime),
		Unread:       r.boolean(automation.PropUnread),
		Sent:         r.boolean(automation.PropSent),
	}
	if full {
		e.Body = r.str(automation.PropBody)
		e.HTMLBody = r.str(automation.PropHTMLBody)
	}
	if r.err != nil {
		return Email{}, r.err
	}

	sender, err := b.senderOf(it)
	if err != nil {
		return Email{}, err
	}
	e.Sender = sender
	recips, err := b.recipientsOf(it)
	if err != nil {
		return Email{}, err
	}
	for _, rc := range recips {
		switch rc.kind {
		case automation.RecipientTo:
			e.To = append(e.To, rc.address)
		case automation.RecipientCC:
			e.CC = append(e.CC, rc.address)
		case automation.RecipientBCC:
			e.BCC = append(e.BCC, rc.address)
		}
	}
	atts, err := it.Attachments()
	if err != nil {
		return Email{}, err
	}
	e.HasAttachments = len(atts) > 0
	if parent, err := it.Parent(); err != nil {
		b.log.Debug("message folder unavailable", "error", err)
	} else {
		if e.Folder, err = parent.Name(); err != nil {
			b.log.Debug("message folder name unavailable", "error", err)
		}
		parent.Release()
	}
	return e, nil
}

// Create saves a new message to Drafts and returns its EntryID.
func (m *Mail) Create(ctx context.Context, c Compose) (string, error) {
	c.Draft = true
	res, err := m.Send(ctx, c)
	return res.EntryID, err
}

// Send dispatches c, or saves it as a draft when c.Draft is set. Attachments
// are checked before anything is created.
func (m *Mail) Send(ctx context.Context, c Compose) (SendResult, error) {
	const op = "send_email"
	b := m.b
	if len(nonEmpty(c.To)) == 0 {
		return SendResult{}, invalid(op, "to", "at least one recipient is required")
	}
	paths, err := checkAttachments(op, c.Attachments)
	if err != nil {
		return SendResult{}, err
	}
	var res SendResult
	err = b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := s.CreateItem(automation.ItemMail)
		if err != nil {
			return err
		}
		defer it.Release()
		var sets []propSet
		for _, set := range []propSet{
			{automation.PropTo, joinRecipients(c.To)},
			{automation.PropCC, joinRecipients(c.CC)},
			{automation.PropBCC, joinRecipients(c.BCC)},
			{automation.PropSubject, c.Subject},
			{automation.PropBody, c.Body},
			{automation.PropHTMLBody, c.HTMLBody},
		} {
			if set.value != "" {
				sets = append(sets, set)
			}
		}
		if err := applyProps(it, sets); err != nil {
			return err
		}
		for _, p := range paths {
			if err := it.AddAttachment(p); err != nil {
				return err
			}
		}
		res, err = dispatch(it, c.Draft)
		return err
	})
	return res, err
}

// dispatch either saves it as a draft and reports the new EntryID or sends it.
func dispatch(it automation.Item, draft bool) (SendResult, error) {
	if draft {
		if err := it.Save(); err != nil {
			return SendResult{}, err
		}
		id, err := propString(it, automation.PropEntryID)
		if err != nil {
			return SendResult{}, err
		}
		return SendResult{EntryID: id}, nil
	}
	if err := it.Send(); err != nil {
		return SendResult{}, err
	}
	return SendResult{Sent: true}, nil
}

// SendDraft dispatches a previously saved draft.
func (m *Mail) SendDraft(ctx context.Context, id string) error {
	const op = "send_draft"
	return m.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindMail)
		if err != nil {
			return err
		}
		defer it.Release()
		sent, err := propBool(it, automation.PropSent)
		if err != nil {
			return err
		}
		if sent {
			return invalid(op, "entry_id", "message %s was already sent", id)
		}
		return it.Send()
	})
}

func (m *Mail) Reply(ctx context.Context, in ReplyInput) (SendResult, error) {
	const op = "reply_email"
	var res SendResult
	err := m.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, in.ID, kindMail)
		if err != nil {
			return err
		}
		defer it.Release()
		reply, err := it.Reply(in.All)
		if err != nil {
			return err
		}
		defer reply.Release()
		if err := prependBody(reply, in.Body); err != nil {
			return err
		}
		res, err = dispatch(reply, in.Draft)
		return err
	})
	return res, err
}

func (m *Mail) Forward(ctx context.Context, in ForwardInput) (SendResult, error) {
	const op = "forward_email"
	if len(nonEmpty(in.To)) == 0 {
		return SendResult{}, invalid(op, "to", "at least one recipient is required")
	}
	var res SendResult
	err := m.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, in.ID, kindMail)
		if err != nil {
			return err
		}
		defer it.Release()
		fwd, err := it.Forward()
		if err != nil {
			return err
		}
		defer fwd.Release()
		if err := fwd.Set(automation.PropTo, joinRecipients(in.To)); err != nil {
			return err
		}
		if err := prependBody(fwd, in.Body); err != nil {
			return err
		}
		res, err = dispatch(fwd, in.Draft)
		return err
	})
	return res, err
}

// prependBody puts text above the quoted original.
func prependBody(it automation.Item, text string) error {
	if text == "" {
		return nil
	}
	quoted, err := propString(it, automation.PropBody)
	if err != nil {
		return err
	}
	return it.Set(automation.PropBody, text+"\r\n\r\n"+strings.TrimLeft(quoted, "\r\n"))
}

func (m *Mail) Update(ctx context.Context, id string, patch EmailPatch) error {
	return m.update(ctx, "update_email", id, patch)
}

// update applies patch, reporting failures under op.
func (m *Mail) update(ctx context.Context, op, id string, patch EmailPatch) error {
	if patch.Unread == nil && patch.Folder == "" {
		return invalid(op, "patch", "nothing to update")
	}
	return m.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindMail)
		if err != nil {
			return err
		}
		defer it.Release()
		if patch.Unread != nil {
			if err := it.Set(automation.PropUnread, *patch.Unread); err != nil {
				return err
			}
			if err := it.Save(); err != nil {
				return err
			}
		}
		if patch.Folder == "" {
			return nil
		}
		dest, err := folder(s, op, patch.Folder)
		if err != nil {
			return err
		}
		defer dest.Release()
		moved, err := it.Move(dest)
		if err != nil {
			return err
		}
		if newID, err := propString(moved, automation.PropEntryID); err == nil {
			m.b.log.Debug("message moved", "from", id, "to", newID, "folder", patch.Folder)
		}
		moved.Release()
		return nil
	})
}

func (m *Mail) Mark(ctx context.Context, id string, unread bool) error {
	return m.update(ctx, "mark_email", id, EmailPatch{Unread: &unread})
}

func (m *Mail) Move(ctx context.Context, id, folderName string) error {
	if strings.TrimSpace(folderName) == "" {
		return invalid("move_email", "folder", "folder name is required")
	}
	return m.update(ctx, "move_email", id, EmailPatch{Folder: folderName})
}

func (m *Mail) Delete(ctx context.Context, id string) error {
	const op = "delete_email"
	return m.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindMail)
		if err != nil {
			return err
		}
		defer it.Release()
		return it.Delete()
	})
}

// Search restricts a folder inside the engine. It never walks the folder to
// test items itself.
func (m *Mail) Search(ctx context.Context, q SearchQuery) ([]Email, error) {
	const op = "search_emails"
	b := m.b
	expr, err := q.expr(b.opts.loc)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(q.Limit, b.opts.limits.Search)
	name := q.Folder
	if name == "" {
		name = "Inbox"
	}
	var out []Email
	err = b.conn.Do(ctx, op, func(s automation.Session) error {
		f, err := folder(s, op, name)
		if err != nil {
			return err
		}
		defer f.Release()
		out, err = b.collectEmails(f, expr, limit)
		return err
	})
	return out, err
}

func (q SearchQuery) expr(loc *time.Location) (filter.Expr, error) {
	const op = "search_emails"
	var parts []filter.Expr
	if q.Subject != "" {
		parts = append(parts, filter.Substring(automation.PropSubject, q.Subject))
	}
	if q.From != "" {
		parts = append(parts, filter.AnyOf(
			filter.Substring(automation.PropSenderName, q.From),
			filter.Substring(automation.PropSenderEmailAddress, q.From),
		))
	}
	if q.Body != "" {
		parts = append(parts, filter.Substring(automation.PropBody, q.Body))
	}
	if q.Unread != nil {
		parts = append(parts, filter.Cmp(automation.PropUnread, filter.Eq, *q.Unread))
	}
	if q.HasAttachments != nil {
		parts = append(parts, filter.Cmp(filter.HasAttachment, filter.Eq, *q.HasAttachments))
	}
	if q.ReceivedAfter != nil {
		parts = append(parts, filter.Cmp(automation.PropReceivedTime, filter.Ge, *q.ReceivedAfter))
	}
	if q.ReceivedBefore != nil {
		parts = append(parts, filter.Cmp(automation.PropReceivedTime, filter.Lt, *q.ReceivedBefore))
	}
	if strings.TrimSpace(q.Raw) != "" {
		raw, err := filter.Parse(q.Raw)
		if err != nil {
			return nil, invalid(op, "raw", "%w", err)
		}
		parts = append(parts, raw)
	}
	expr := filter.AllOf(parts...)
	if expr == nil {
		return nil, invalid(op, "query", "at least one search criterion is required")
	}
	if _, err := filter.Render(expr, loc); err != nil {
		if errors.Is(err, filter.ErrUnsupported) {
			return nil, invalid(op, "query", "%w", err)
		}
		return nil, err
	}
	return expr, nil
}

func nonEmpty(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinRecipients(list []string) string {
	return strings.Join(nonEmpty(list), "; ")
}
