package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailbridge/internal/automation"
)

type itemKind int

const (
	kindAny itemKind = iota
	kindMail
	kindAppointment
	kindTask
)

var kindClasses = map[itemKind][]string{
	kindMail:        {"ipm.note", "ipm.schedule"},
	kindAppointment: {"ipm.appointment"},
	kindTask:        {"ipm.task"},
}

// resolve turns an EntryID into a live handle with a single direct lookup.
// An item of another kind is reported as not found.
func resolve(s automation.Session, op, id string, kind itemKind) (automation.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid(op, "entry_id", "entry id is required")
	}
	it, err := s.ItemByID(id)
	if err != nil {
		return nil, translate(op, id, err)
	}
	classes, ok := kindClasses[kind]
	if !ok {
		return it, nil
	}
	class, err := propString(it, automation.PropMessageClass)
	if err != nil {
		it.Release()
		return nil, translate(op, id, err)
	}
	class = strings.ToLower(class)
	for _, prefix := range classes {
		if strings.HasPrefix(class, prefix) {
			return it, nil
		}
	}
	it.Release()
	return nil, notFound(op, id, fmt.Errorf("item is a %s", class))
}

var defaultFolders = map[string]automation.FolderKind{
	"inbox":         automation.FolderInbox,
	"drafts":        automation.FolderDrafts,
	"sent items":    automation.FolderSentMail,
	"sent":          automation.FolderSentMail,
	"deleted items": automation.FolderDeletedItems,
	"trash":         automation.FolderDeletedItems,
	"outbox":        automation.FolderOutbox,
	"calendar":      automation.FolderCalendar,
	"tasks":         automation.FolderTasks,
}

// folder resolves a default folder name, then a folder under the store root,
// then a subfolder of Inbox.
func folder(s automation.Session, op, name string) (automation.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid(op, "folder", "folder name is required")
	}
	if kind, ok := defaultFolders[strings.ToLower(name)]; ok {
		f, err := s.DefaultFolder(kind)
		if err != nil {
			return nil, translate(op, "", err)
		}
		return f, nil
	}

	root, err := s.StoreRoot()
	if err != nil {
		return nil, translate(op, "", err)
	}
	defer root.Release()
	f, err := root.Folder(name)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, automation.ErrNoSuchFolder) {
		return nil, translate(op, "", err)
	}

	inbox, err := s.DefaultFolder(automation.FolderInbox)
	if err != nil {
		return nil, translate(op, "", err)
	}
	defer inbox.Release()
	f, err = inbox.Folder(name)
	if err != nil {
		return nil, &Error{Kind: ErrNotFound, Op: op, Field: "folder", Err: fmt.Errorf("%q: %w", name, err)}
	}
	return f, nil
}

// Folders lists every folder under the store root with its item count.
func (b *Bridge) Folders(ctx context.Context) ([]Folder, error) {
	var out []Folder
	err := b.conn.Do(ctx, "list_folders", func(s automation.Session) error {
		root, err := s.StoreRoot()
		if err != nil {
			return err
		}
		defer root.Release()
		return walkFolders(root, "", &out)
	})
	return out, err
}

func walkFolders(parent automation.Folder, prefix string, out *[]Folder) error {
	children, err := parent.Folders()
	if err != nil {
		return err
	}
	for _, child := range children {
		err := func() error {
			defer child.Release()
			name, err := child.Name()
			if err != nil {
				return err
			}
			items, err := child.Items()
			if err != nil {
				return err
			}
			count, err := items.Count()
			items.Release()
			if err != nil {
				return err
			}
			path := name
			if prefix != "" {
				path = prefix + "/" + name
			}
			*out = append(*out, Folder{Name: name, Path: path, Count: count})
			return walkFolders(child, path, out)
		}()
		if err != nil {
			return err
		}
	}
	return nil
}
