package bridge

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliver(t *testing.T, app *memory.App, m memory.Message) string {
	t.Helper()
	id, err := app.Deliver(m)
	require.NoError(t, err)
	return id
}

func TestSendDraftReturnsIdentifierInDrafts(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	res, err := b.Mail.Send(ctx, Compose{To: []string{"alice@example.com"}, Subject: "Plan", Body: "draft body", Draft: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.EntryID)
	assert.False(t, res.Sent)

	got, err := b.Mail.Get(ctx, res.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "Drafts", got.Folder)
	assert.False(t, got.Sent)
	assert.Equal(t, "Plan", got.Subject)
	assert.Equal(t, "draft body", got.Body)
	require.Len(t, got.To, 1)
	assert.Equal(t, "alice@example.com", got.To[0].Address)
}

func TestSendImmediateLandsInSentItems(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	res, err := b.Mail.Send(ctx, Compose{To: []string{"alice@example.com"}, Subject: "Now"})
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Empty(t, res.EntryID)

	sent, err := b.Mail.List(ctx, EmailQuery{Folder: "sent"})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "Now", sent[0].Subject)
	assert.True(t, sent[0].Sent)
}

func TestSendDraftDispatchesSavedDraft(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	id, err := b.Mail.Create(ctx, Compose{To: []string{"alice@example.com"}, Subject: "Later"})
	require.NoError(t, err)
	require.NoError(t, b.Mail.SendDraft(ctx, id))

	drafts, err := b.Mail.List(ctx, EmailQuery{Folder: "Drafts"})
	require.NoError(t, err)
	assert.Empty(t, drafts)
	sent, err := b.Mail.List(ctx, EmailQuery{Folder: "Sent Items"})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	err = b.Mail.SendDraft(ctx, sent[0].EntryID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendValidatesBeforeCreating(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	_, err := b.Mail.Send(ctx, Compose{Subject: "nobody", Draft: true})
	assert.ErrorIs(t, err, ErrValidation)

	missing := filepath.Join(t.TempDir(), "missing.pdf")
	_, err = b.Mail.Send(ctx, Compose{To: []string{"alice@example.com"}, Attachments: []string{missing}, Draft: true})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = b.Mail.Send(ctx, Compose{To: []string{"alice@example.com"}, Attachments: []string{t.TempDir()}, Draft: true})
	assert.ErrorIs(t, err, ErrValidation)

	drafts, err := b.Mail.List(ctx, EmailQuery{Folder: "Drafts"})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestSendWithAttachment(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	res, err := b.Mail.Send(ctx, Compose{To: []string{"alice@example.com"}, Subject: "files", Attachments: []string{path}, Draft: true})
	require.NoError(t, err)
	got, err := b.Mail.Get(ctx, res.EntryID)
	require.NoError(t, err)
	assert.True(t, got.HasAttachments)
}

func TestListNewestFirstWithLimitAndUnreadFilter(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	for i, subject := range []string{"oldest", "middle", "newest"} {
		deliver(t, app, memory.Message{
			Subject:       subject,
			SenderAddress: "carol@example.com",
			Received:      testNow.Add(time.Duration(i) * time.Hour),
			Unread:        subject != "middle",
		})
	}

	all, err := b.Mail.List(ctx, EmailQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "newest", all[0].Subject)
	assert.Equal(t, "oldest", all[2].Subject)

	two, err := b.Mail.List(ctx, EmailQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, two, 2)

	unread, err := b.UnreadEmails(ctx, 0)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	for _, e := range unread {
		assert.True(t, e.Unread)
	}
}

func TestGetMissingOrWrongKindIsNotFound(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()

	_, err := b.Mail.Get(ctx, "00000000DEADBEEF")
	assert.ErrorIs(t, err, ErrNotFound)

	apptID := app.AddAppointment(memory.Appointment{Subject: "standup", Start: testNow, End: testNow.Add(time.Hour)})
	_, err = b.Mail.Get(ctx, apptID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = b.Mail.Get(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLookupIsDirect(t *testing.T) {
	b, app := newTestBridge(t)
	id := deliver(t, app, memory.Message{Subject: "direct", SenderAddress: "carol@example.com"})

	_, err := b.Mail.Get(context.Background(), id)
	require.NoError(t, err)
	lookups, scans := app.Stats()
	assert.Equal(t, 1, lookups)
	assert.Equal(t, 0, scans)
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	id := deliver(t, app, memory.Message{Subject: "bye", SenderAddress: "carol@example.com"})

	require.NoError(t, b.Mail.Delete(ctx, id))
	_, err := b.Mail.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	trash, err := b.Mail.List(ctx, EmailQuery{Folder: "Trash"})
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, "bye", trash[0].Subject)
}

func TestUpdateMarksAndMoves(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	app.AddFolder("Archive")
	id := deliver(t, app, memory.Message{Subject: "keep", SenderAddress: "carol@example.com", Unread: true})

	require.NoError(t, b.Mail.Mark(ctx, id, false))
	got, err := b.Mail.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Unread)

	require.NoError(t, b.Mail.Move(ctx, id, "archive"))
	_, err = b.Mail.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	archived, err := b.Mail.List(ctx, EmailQuery{Folder: "Archive"})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "Archive", archived[0].Folder)

	err = b.Mail.Move(ctx, archived[0].EntryID, "No Such Folder")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplyAndForwardDrafts(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	id := deliver(t, app, memory.Message{
		Subject:       "Budget",
		Body:          "numbers",
		SenderName:    "Carol",
		SenderAddress: "carol@example.com",
		To:            []string{"me@example.com"},
		CC:            []string{"dave@example.com"},
		Attachments:   []memory.File{{Name: "q1.xlsx", Data: []byte("x")}},
	})

	res, err := b.Mail.Reply(ctx, ReplyInput{ID: id, Body: "thanks", All: true, Draft: true})
	require.NoError(t, err)
	reply, err := b.Mail.Get(ctx, res.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "RE: Budget", reply.Subject)
	assert.Contains(t, reply.Body, "thanks")
	assert.Contains(t, reply.Body, "numbers")
	var to []string
	for _, a := range append(reply.To, reply.CC...) {
		to = append(to, a.Address)
	}
	assert.Contains(t, to, "carol@example.com")
	assert.Contains(t, to, "dave@example.com")
	assert.NotContains(t, to, "me@example.com")

	res, err = b.Mail.Forward(ctx, ForwardInput{ID: id, To: []string{"erin@example.com"}, Draft: true})
	require.NoError(t, err)
	fwd, err := b.Mail.Get(ctx, res.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "FW: Budget", fwd.Subject)
	assert.True(t, fwd.HasAttachments)

	_, err = b.Mail.Forward(ctx, ForwardInput{ID: id, Draft: true})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearchFiltersInEngine(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	deliver(t, app, memory.Message{Subject: "Quarterly report", SenderAddress: "carol@example.com", Received: testNow, Unread: true})
	deliver(t, app, memory.Message{Subject: "Lunch", SenderName: "Dave", SenderAddress: "dave@example.com", Received: testNow.Add(-48 * time.Hour)})
	deliver(t, app, memory.Message{
		Subject:       "Report draft",
		SenderAddress: "dave@example.com",
		Received:      testNow.Add(-time.Hour),
		Attachments:   []memory.File{{Name: "r.pdf", Data: []byte("%PDF")}},
	})

	got, err := b.Mail.Search(ctx, SearchQuery{Subject: "report"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = b.Mail.Search(ctx, SearchQuery{From: "dave"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	yes := true
	got, err = b.Mail.Search(ctx, SearchQuery{HasAttachments: &yes})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Report draft", got[0].Subject)

	after := testNow.Add(-24 * time.Hour)
	got, err = b.Mail.Search(ctx, SearchQuery{ReceivedAfter: &after, Raw: "[Unread] = True"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Quarterly report", got[0].Subject)

	_, err = b.Mail.Search(ctx, SearchQuery{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = b.Mail.Search(ctx, SearchQuery{Raw: "[Unread] = = True"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSenderDirectoryAddressIsResolved(t *testing.T) {
	b, app := newTestBridge(t)
	const dn = "/o=Example/ou=Exchange Administrative Group/cn=Recipients/cn=alice"
	app.AddDirectoryUser(dn, "Alice", "alice@example.com")
	id := deliver(t, app, memory.Message{Subject: "hi", SenderName: "Alice", SenderAddress: dn, CC: []string{dn}})

	got, err := b.Mail.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Sender.Address)
	require.Len(t, got.CC, 1)
	assert.Equal(t, "alice@example.com", got.CC[0].Address)
}

func TestUnknownDirectoryAddressFallsBackToRaw(t *testing.T) {
	b, app := newTestBridge(t)
	const dn = "/o=Example/ou=Exchange/cn=Recipients/cn=ghost"
	id := deliver(t, app, memory.Message{Subject: "boo", SenderAddress: dn})

	got, err := b.Mail.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, dn, got.Sender.Address)
}

type fakeEntry struct {
	typ  string
	smtp string
	err  error
}

func (e fakeEntry) Name() (string, error)    { return "", nil }
func (e fakeEntry) Address() (string, error) { return "", nil }
func (e fakeEntry) Type() (string, error)    { return e.typ, nil }
func (e fakeEntry) PrimarySMTPAddress() (string, error) {
	return e.smtp, e.err
}

func TestResolveAddressIsTotal(t *testing.T) {
	b := New(nil)
	const dn = "/o=Org/ou=Exchange/cn=Recipients/cn=bob"

	cases := []struct {
		name  string
		raw   string
		entry automation.AddressEntry
		want  string
	}{
		{"smtp passes through", "bob@example.com", fakeEntry{typ: "SMTP"}, "bob@example.com"},
		{"directory resolved", dn, fakeEntry{typ: "EX", smtp: "bob@example.com"}, "bob@example.com"},
		{"directory type without prefix", "BOB", fakeEntry{typ: "ex", smtp: " bob@example.com "}, "bob@example.com"},
		{"no entry", dn, nil, dn},
		{"lookup fails", dn, fakeEntry{typ: "EX", err: automation.ErrNotDirectoryUser}, dn},
		{"empty result", dn, fakeEntry{typ: "EX", smtp: ""}, dn},
		{"unroutable result", dn, fakeEntry{typ: "EX", smtp: "not an address"}, dn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := b.ResolveAddress(tc.raw, tc.entry)
			assert.NotEmpty(t, got)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDownloadTwoAttachments(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	id := deliver(t, app, memory.Message{
		Subject:       "files",
		SenderAddress: "carol@example.com",
		Attachments: []memory.File{
			{Name: "report.pdf", Data: []byte("%PDF-1.7")},
			{Name: "photo.jpg", Data: []byte{0xff, 0xd8}},
		},
	})
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := b.Mail.DownloadAttachments(ctx, id, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"report.pdf", "photo.jpg"}, names)
	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	again, err := b.Mail.DownloadAttachments(ctx, id, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "report-1.pdf"), filepath.Join(dir, "photo-1.jpg")}, again)
}

func TestDownloadOverwritePolicy(t *testing.T) {
	app := newTestApp()
	b := New(connect(t, app), WithLocation(time.UTC), WithCollision(CollisionOverwrite))
	id := deliver(t, app, memory.Message{
		Subject:       "one",
		SenderAddress: "carol@example.com",
		Attachments:   []memory.File{{Name: "../../etc/a.txt", Data: []byte("new")}},
	})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0o644))

	paths, err := b.Mail.DownloadAttachments(context.Background(), id, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt")}, paths)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDownloadOverwriteListsSharedNameOnce(t *testing.T) {
	app := newTestApp()
	b := New(connect(t, app), WithLocation(time.UTC), WithCollision(CollisionOverwrite))
	id := deliver(t, app, memory.Message{
		Subject:       "twins",
		SenderAddress: "carol@example.com",
		Attachments: []memory.File{
			{Name: "scan.png", Data: []byte("first")},
			{Name: "scan.png", Data: []byte("second")},
		},
	})
	dir := t.TempDir()

	paths, err := b.Mail.DownloadAttachments(context.Background(), id, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "scan.png")}, paths)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestDownloadRenameFailsWhenNamesRunOut(t *testing.T) {
	prev := maxRenameAttempts
	maxRenameAttempts = 3
	t.Cleanup(func() { maxRenameAttempts = prev })

	b, app := newTestBridge(t)
	id := deliver(t, app, memory.Message{
		Subject:       "busy",
		SenderAddress: "carol@example.com",
		Attachments:   []memory.File{{Name: "a.txt", Data: []byte("new")}},
	})
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "a-1.txt", "a-2.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644))
	}

	paths, err := b.Mail.DownloadAttachments(context.Background(), id, dir)
	require.Error(t, err)
	assert.Nil(t, paths)
	assert.ErrorIs(t, err, ErrOperation)
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "download_attachments", berr.Op)
	assert.Contains(t, err.Error(), "a.txt")

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	_, err = os.Stat(filepath.Join(dir, "a-3.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadWithoutAttachmentsCreatesNothing(t *testing.T) {
	b, app := newTestBridge(t)
	id := deliver(t, app, memory.Message{Subject: "plain", SenderAddress: "carol@example.com"})
	dir := filepath.Join(t.TempDir(), "never")

	paths, err := b.Mail.DownloadAttachments(context.Background(), id, dir)
	require.NoError(t, err)
	assert.Empty(t, paths)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestFoldersListsTreeWithCounts(t *testing.T) {
	b, app := newTestBridge(t)
	app.AddFolder("Archive")
	deliver(t, app, memory.Message{Subject: "a", SenderAddress: "carol@example.com"})
	deliver(t, app, memory.Message{Subject: "b", SenderAddress: "carol@example.com"})

	folders, err := b.Folders(context.Background())
	require.NoError(t, err)
	counts := map[string]int{}
	for _, f := range folders {
		counts[f.Path] = f.Count
	}
	assert.Equal(t, 2, counts["Inbox"])
	assert.Contains(t, counts, "Archive")
	assert.Contains(t, counts, "Calendar")
}

func TestMarkKeepsIDAndErrorsNameTheirOperation(t *testing.T) {
	b, app := newTestBridge(t)
	ctx := context.Background()
	id := deliver(t, app, memory.Message{Subject: "stay", SenderAddress: "carol@example.com"})
	subject := "x"

	require.NoError(t, b.Mail.Mark(ctx, id, true))
	got, err := b.Mail.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Unread)

	for op, err := range map[string]error{
		"mark_email":    b.Mail.Mark(ctx, "missing", true),
		"move_email":    b.Mail.Move(ctx, "missing", "Inbox"),
		"update_email":  b.Mail.Update(ctx, "missing", EmailPatch{Folder: "Inbox"}),
		"complete_task": b.Tasks.Complete(ctx, "missing"),
		"edit_task":     b.Tasks.Update(ctx, "missing", TaskPatch{Subject: &subject}),
	} {
		var typed *Error
		require.True(t, errors.As(err, &typed), op)
		assert.Equal(t, op, typed.Op)
		assert.ErrorIs(t, err, ErrNotFound, op)
	}
}

type orphanItem struct {
	automation.Item
}

func (orphanItem) Parent() (automation.Folder, error) {
	return nil, automation.ErrDisconnected
}

func TestProjectEmailLogsUnavailableFolder(t *testing.T) {
	app := newTestApp()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	b := New(connect(t, app), WithLocation(time.UTC), WithClock(clock), WithLogger(logger))
	id := deliver(t, app, memory.Message{Subject: "loose", SenderAddress: "dan@example.com"})

	var e Email
	err := b.conn.Do(context.Background(), "project", func(s automation.Session) error {
		it, err := s.ItemByID(id)
		if err != nil {
			return err
		}
		defer it.Release()
		e, err = b.projectEmail(orphanItem{it}, false)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "loose", e.Subject)
	assert.Empty(t, e.Folder)
	assert.Contains(t, logs.String(), "message folder unavailable")
}
