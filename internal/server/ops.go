package server

import (
	"context"
	"sort"

	"mailbridge/internal/bridge"
)

// operation is one named procedure. Params lists the accepted parameter names
// for discovery; every parameter is optional at the transport level.
type operation struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params,omitempty"`
	run         func(ctx context.Context, p *params) (Result, error)
}

func (s *Server) operations() []operation {
	b := s.b
	ops := []operation{
		{
			Name:        "list_emails",
			Description: "List recent messages in a folder, newest first",
			Params:      []string{"folder", "limit", "unread"},
			run: func(ctx context.Context, p *params) (Result, error) {
				q := bridge.EmailQuery{Folder: p.str("folder"), Limit: p.integer("limit"), UnreadOnly: p.boolean("unread", false)}
				if p.err != nil {
					return Result{}, p.err
				}
				return records(b.Mail.List(ctx, q))
			},
		},
		{
			Name:        "get_email",
			Description: "Fetch one message with its body",
			Params:      []string{"entry_id"},
			run:         getOp(b.Mail),
		},
		{
			Name:        "send_email",
			Description: "Compose a message; saved as a draft unless draft is false",
			Params:      []string{"to", "cc", "bcc", "subject", "body", "html_body", "attachments", "draft"},
			run: func(ctx context.Context, p *params) (Result, error) {
				c := bridge.Compose{
					To:          p.list("to"),
					CC:          p.list("cc"),
					BCC:         p.list("bcc"),
					Subject:     p.str("subject"),
					Body:        p.str("body"),
					HTMLBody:    p.str("html_body"),
					Attachments: p.list("attachments"),
					Draft:       draftMode(p),
				}
				if p.err != nil {
					return Result{}, p.err
				}
				r, err := b.Mail.Send(ctx, c)
				if err != nil {
					return Result{}, err
				}
				return sendResult(r), nil
			},
		},
		{
			Name:        "send_draft",
			Description: "Send a previously saved draft",
			Params:      []string{"entry_id"},
			run: byID(func(ctx context.Context, id string) error {
				return b.Mail.SendDraft(ctx, id)
			}),
		},
		{
			Name:        "reply_email",
			Description: "Reply to a message; saved as a draft unless draft is false",
			Params:      []string{"entry_id", "body", "reply_all", "draft"},
			run: func(ctx context.Context, p *params) (Result, error) {
				in := bridge.ReplyInput{
					ID:    p.required("entry_id"),
					Body:  p.str("body"),
					All:   p.boolean("reply_all", false),
					Draft: draftMode(p),
				}
				if p.err != nil {
					return Result{}, p.err
				}
				r, err := b.Mail.Reply(ctx, in)
				if err != nil {
					return Result{}, err
				}
				return sendResult(r), nil
			},
		},
		{
			Name:        "forward_email",
			Description: "Forward a message; saved as a draft unless draft is false",
			Params:      []string{"entry_id", "to", "body", "draft"},
			run: func(ctx context.Context, p *params) (Result, error) {
				in := bridge.ForwardInput{
					ID:    p.required("entry_id"),
					To:    p.list("to"),
					Body:  p.str("body"),
					Draft: draftMode(p),
				}
				if p.err != nil {
					return Result{}, p.err
				}
				r, err := b.Mail.Forward(ctx, in)
				if err != nil {
					return Result{}, err
				}
				return sendResult(r), nil
			},
		},
		{
			Name:        "mark_email",
			Description: "Mark a message read or unread; its entry_id is unchanged",
			Params:      []string{"entry_id", "unread"},
			run: func(ctx context.Context, p *params) (Result, error) {
				id := p.required("entry_id")
				unread := p.boolean("unread", false)
				if p.err != nil {
					return Result{}, p.err
				}
				return success(b.Mail.Mark(ctx, id, unread))
			},
		},
		{
			Name:        "move_email",
			Description: "Move a message to a folder by name or path; the message gets a new entry_id",
			Params:      []string{"entry_id", "folder"},
			run: func(ctx context.Context, p *params) (Result, error) {
				id := p.required("entry_id")
				folder := p.required("folder")
				if p.err != nil {
					return Result{}, p.err
				}
				return success(b.Mail.Move(ctx, id, folder))
			},
		},
		{
			Name:        "delete_email",
			Description: "Move a message to Deleted Items",
			Params:      []string{"entry_id"},
			run:         deleteOp(b.Mail),
		},
		{
			Name:        "search_emails",
			Description: "Search a folder with structured criteria or a raw filter_query",
			Params: []string{"folder", "subject", "from", "body", "unread", "has_attachments",
				"received_after", "received_before", "filter_query", "limit"},
			run: func(ctx context.Context, p *params) (Result, error) {
				q := bridge.SearchQuery{
					Folder:         p.str("folder"),
					Subject:        p.str("subject"),
					From:           p.str("from"),
					Body:           p.str("body"),
					Unread:         p.boolPtr("unread"),
					HasAttachments: p.boolPtr("has_attachments"),
					ReceivedAfter:  p.timestamp("received_after"),
					ReceivedBefore: p.timestamp("received_before"),
					Raw:            p.str("filter_query"),
					Limit:          p.integer("limit"),
				}
				if p.err != nil {
					return Result{}, p.err
				}
				return records(b.Mail.Search(ctx, q))
			},
		},
		{
			Name:        "download_attachments",
			Description: "Save a message's attachments into dir and return their paths",
			Params:      []string{"entry_id", "dir"},
			run: func(ctx context.Context, p *params) (Result, error) {
				id := p.required("entry_id")
				dir := p.required("dir")
				if p.err != nil {
					return Result{}, p.err
				}
				paths, err := b.Mail.DownloadAttachments(ctx, id, dir)
				if err != nil {
					return Result{}, err
				}
				if paths == nil {
					paths = []string{}
				}
				return pathsResult(paths), nil
			},
		},
		{
			Name:        "list_folders",
			Description: "List the mail folder tree with item counts",
			run: func(ctx context.Context, p *params) (Result, error) {
				return records(b.Folders(ctx))
			},
		},
		{
			Name:        "list_calendar_events",
			Description: "List appointments overlapping a window of days, recurrences expanded",
			Params:      []string{"start", "days", "all", "limit"},
			run: func(ctx context.Context, p *params) (Result, error) {
				q := bridge.CalendarQuery{Days: p.integer("days"), All: p.boolean("all", false), Limit: p.integer("limit")}
				if t := p.date("start"); t != nil {
					q.Start = *t
				}
				if p.err != nil {
					return Result{}, p.err
				}
				return records(b.Calendar.List(ctx, q))
			},
		},
		{
			Name:        "get_appointment",
			Description: "Fetch one appointment with attendees and response status",
			Params:      []string{"entry_id"},
			run:         getOp(b.Calendar),
		},
		{
			Name:        "create_appointment",
			Description: "Create an appointment, or a meeting when attendees are given",
			Params:      []string{"subject", "start", "end", "location", "body", "all_day", "required_attendees", "optional_attendees"},
			run: func(ctx context.Context, p *params) (Result, error) {
				in := bridge.AppointmentInput{
					Subject:  p.str("subject"),
					Location: p.str("location"),
					Body:     p.str("body"),
					AllDay:   p.boolean("all_day", false),
					Required: p.list("required_attendees"),
					Optional: p.list("optional_attendees"),
				}
				if t := p.timestamp("start"); t != nil {
					in.Start = *t
				}
				if t := p.timestamp("end"); t != nil {
					in.End = *t
				}
				if p.err != nil {
					return Result{}, p.err
				}
				return entryID(b.Calendar.Create(ctx, in))
			},
		},
		{
			Name:        "edit_appointment",
			Description: "Change the given fields of an appointment",
			Params:      []string{"entry_id", "subject", "start", "end", "location", "body", "all_day", "required_attendees", "optional_attendees"},
			run: func(ctx context.Context, p *params) (Result, error) {
				id := p.required("entry_id")
				patch := bridge.AppointmentPatch{
					Subject:  p.strPtr("subject"),
					Start:    p.timestamp("start"),
					End:      p.timestamp("end"),
					Location: p.strPtr("location"),
					Body:     p.strPtr("body"),
					AllDay:   p.boolPtr("all_day"),
					Required: p.list("required_attendees"),
					Optional: p.list("optional_attendees"),
				}
				if p.err != nil {
					return Result{}, p.err
				}
				return success(b.Calendar.Update(ctx, id, patch))
			},
		},
		{
			Name:        "respond_to_meeting",
			Description: "Accept, decline or tentatively accept a meeting",
			Params:      []string{"entry_id", "response"},
			run: func(ctx context.Context, p *params) (Result, error) {
				id := p.required("entry_id")
				raw := p.required("response")
				if p.err != nil {
					return Result{}, p.err
				}
				resp, ok := bridge.ParseMeetingResponse(raw)
				if !ok {
					p.fail("response", "unknown response %q (want accept, decline or tentative)", raw)
					return Result{}, p.err
				}
				return success(b.Calendar.Respond(ctx, id, resp))
			},
		},
		{
			Name:        "delete_appointment",
			Description: "Delete an appointment",
			Params:      []string{"entry_id"},
			run:         deleteOp(b.Calendar),
		},
		{
			Name:        "get_free_busy",
			Description: "Report availability for an address, an appointment's first required attendee or the current user",
			Params:      []string{"email_address", "entry_id", "start_date", "end_date", "interval_minutes"},
			run: func(ctx context.Context, p *params) (Result, error) {
				q := bridge.FreeBusyQuery{
					Address:         p.str("email_address"),
					EntryID:         p.str("entry_id"),
					IntervalMinutes: p.integer("interval_minutes"),
				}
				if t := p.date("start_date"); t != nil {
					q.Start = *t
				}
				if t := p.date("end_date"); t != nil {
					q.End = *t
				}
				if p.err != nil {
					return Result{}, p.err
				}
				fb, err := b.Calendar.FreeBusy(ctx, q)
				if err != nil {
					return Result{}, err
				}
				return recordResult(fb), nil
			},
		},
		{
			Name:        "list_tasks",
			Description: "List incomplete tasks",
			Params:      []string{"include_completed", "limit"},
			run: func(ctx context.Context, p *params) (Result, error) {
				q := bridge.TaskQuery{IncludeCompleted: p.boolean("include_completed", false), Limit: p.integer("limit")}
				if p.err != nil {
					return Result{}, p.err
				}
				return records(b.Tasks.List(ctx, q))
			},
		},
		{
			Name:        "list_all_tasks",
			Description: "List tasks including completed ones",
			Params:      []string{"limit"},
			run: func(ctx context.Context, p *params) (Result, error) {
				q := bridge.TaskQuery{IncludeCompleted: true, Limit: p.integer("limit")}
				if p.err != nil {
					return Result{}, p.err
				}
				return records(b.Tasks.List(ctx, q))
			},
		},
		{
			Name:        "get_task",
			Description: "Fetch one task",
			Params:      []string{"entry_id"},
			run:         getOp(b.Tasks),
		},
		{
			Name:        "create_task",
			Description: "Create a task; due_date is a date taken at local midnight",
			Params:      []string{"subject", "body", "due_date", "importance"},
			run: func(ctx context.Context, p *params) (Result, error) {
				in := bridge.TaskInput{Subject: p.str("subject"), Body: p.str("body"), DueDate: p.date("due_date")}
				if pr := p.priority("importance", "priority"); pr != nil {
					in.Priority = *pr
				}
				if p.err != nil {
					return Result{}, p.err
				}
				return entryID(b.Tasks.Create(ctx, in))
			},
		},
		{
			Name:        "edit_task",
			Description: "Change the given fields of a task; progress, status and completion stay consistent",
			Params:      []string{"entry_id", "subject", "body", "due_date", "importance", "status", "percent_complete", "complete"},
			run: func(ctx context.Context, p *params) (Result, error) {
				id := p.required("entry_id")
				patch := bridge.TaskPatch{
					Subject:         p.strPtr("subject"),
					Body:            p.strPtr("body"),
					DueDate:         p.date("due_date"),
					Priority:        p.priority("importance", "priority"),
					PercentComplete: p.intPtr("percent_complete"),
					Complete:        p.boolPtr("complete"),
				}
				if p.has("status") {
					raw := p.str("status")
					st, ok := bridge.ParseTaskStatus(raw)
					if !ok {
						p.fail("status", "unknown status %q (want notstarted, inprogress or complete)", raw)
					}
					patch.Status = &st
				}
				if p.err != nil {
					return Result{}, p.err
				}
				return success(b.Tasks.Update(ctx, id, patch))
			},
		},
		{
			Name:        "complete_task",
			Description: "Mark a task complete",
			Params:      []string{"entry_id"},
			run: byID(func(ctx context.Context, id string) error {
				return b.Tasks.Complete(ctx, id)
			}),
		},
		{
			Name:        "delete_task",
			Description: "Delete a task",
			Params:      []string{"entry_id"},
			run:         deleteOp(b.Tasks),
		},
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}

// draftMode defaults to a draft: remote callers must opt in to sending.
// save_draft is accepted as an alias.
func draftMode(p *params) bool {
	if p.has("draft") {
		return p.boolean("draft", true)
	}
	return p.boolean("save_draft", true)
}

func getOp[R, C, P any](store bridge.Store[R, C, P]) func(context.Context, *params) (Result, error) {
	return func(ctx context.Context, p *params) (Result, error) {
		id := p.required("entry_id")
		if p.err != nil {
			return Result{}, p.err
		}
		rec, err := store.Get(ctx, id)
		if err != nil {
			return Result{}, err
		}
		return recordResult(rec), nil
	}
}

func deleteOp[R, C, P any](store bridge.Store[R, C, P]) func(context.Context, *params) (Result, error) {
	return byID(store.Delete)
}

func byID(fn func(ctx context.Context, id string) error) func(context.Context, *params) (Result, error) {
	return func(ctx context.Context, p *params) (Result, error) {
		id := p.required("entry_id")
		if p.err != nil {
			return Result{}, p.err
		}
		return success(fn(ctx, id))
	}
}

func records[T any](list []T, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	if list == nil {
		list = []T{}
	}
	return recordsResult(list), nil
}

func entryID(id string, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return entryIDResult(id), nil
}

func success(err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return successResult(), nil
}

