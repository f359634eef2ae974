// Package automation describes the synchronous object model exposed by the
// desktop mail application. Implementations are not safe for concurrent use:
// every call must come from the goroutine (and OS thread) that dialed the session.
package automation

import (
	"context"
	"errors"
	"time"

	"mailbridge/internal/automation/filter"
)

var (
	ErrNotRunning       = errors.New("automation: application is not running")
	ErrDisconnected     = errors.New("automation: session is closed")
	ErrNotReady         = errors.New("automation: object model not ready")
	ErrNoSuchItem       = errors.New("automation: item not found")
	ErrNoSuchFolder     = errors.New("automation: folder not found")
	ErrNoSuchProperty   = errors.New("automation: property not available")
	ErrNotDirectoryUser = errors.New("automation: address entry is not a directory user")
	ErrUnsupported      = errors.New("automation: backend not supported on this platform")
	// ErrStop ends a ForEach walk early without reporting an error.
	ErrStop = errors.New("automation: stop iteration")
)

// Dialer attaches to an already running application instance.
type Dialer func(ctx context.Context) (Session, error)

type Session interface {
	DefaultFolder(kind FolderKind) (Folder, error)
	StoreRoot() (Folder, error)
	ItemByID(entryID string) (Item, error)
	CreateItem(kind ItemKind) (Item, error)
	CreateRecipient(address string) (Recipient, error)
	CurrentUserAddress() (string, error)
	// Close releases every handle held by the session and the runtime
	// references behind them.
	Close() error
}

type Folder interface {
	Name() (string, error)
	Folder(name string) (Folder, error)
	Folders() ([]Folder, error)
	Items() (Items, error)
	Release()
}

// Items is a live, lazily evaluated view over a folder's contents.
type Items interface {
	Count() (int, error)
	SetIncludeRecurrences(include bool) error
	Sort(property string, descending bool) error
	Restrict(expr filter.Expr) (Items, error)
	ForEach(fn func(Item) error) error
	Release()
}

type Item interface {
	Get(property string) (any, error)
	Set(property string, value any) error
	Save() error
	Send() error
	Delete() error
	Move(dest Folder) (Item, error)
	Reply(all bool) (Item, error)
	Forward() (Item, error)
	Respond(response ResponseCode) (Item, error)
	Parent() (Folder, error)
	Sender() (AddressEntry, error)
	Recipients() ([]Recipient, error)
	Attachments() ([]Attachment, error)
	AddAttachment(path string) error
	Release()
}

type Recipient interface {
	Name() (string, error)
	Address() (string, error)
	Kind() (RecipientKind, error)
	MeetingResponse() (ResponseCode, error)
	AddressEntry() (AddressEntry, error)
	Resolve() (bool, error)
	FreeBusy(start time.Time, intervalMinutes int) (string, error)
}

type AddressEntry interface {
	Name() (string, error)
	Address() (string, error)
	Type() (string, error)
	PrimarySMTPAddress() (string, error)
}

type Attachment interface {
	FileName() (string, error)
	SaveAsFile(path string) error
}
