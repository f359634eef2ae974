// Package ole drives the desktop mail application through its COM automation
// interface. The backend only exists on Windows; elsewhere Dial reports
// automation.ErrUnsupported.
package ole

import (
	"fmt"

	"mailbridge/internal/automation"
)

const ProgID = "Outlook.Application"

// HRESULTs the bridge distinguishes.
const (
	hrUnknownName          uint32 = 0x80020006
	hrMemberNotFound       uint32 = 0x80020003
	hrUnavailable          uint32 = 0x800401E3
	hrObjectNotConnected   uint32 = 0x800401FD
	hrDisconnected         uint32 = 0x80010108
	hrServerUnavailable    uint32 = 0x800706BA
	hrRemoteCallFailed     uint32 = 0x800706BE
	hrCallRejected         uint32 = 0x80010001
	hrServerCallRetryLater uint32 = 0x8001010A
)

// classify maps an HRESULT onto the automation sentinels. Unknown codes return
// nil and are reported as plain failures.
func classify(code uint32) error {
	switch code {
	case hrUnknownName, hrMemberNotFound:
		return automation.ErrNoSuchProperty
	case hrUnavailable:
		return automation.ErrNotRunning
	case hrObjectNotConnected, hrDisconnected, hrServerUnavailable, hrRemoteCallFailed:
		return automation.ErrDisconnected
	case hrCallRejected, hrServerCallRetryLater:
		return automation.ErrNotReady
	}
	return nil
}

func wrapCode(code uint32, call string, err error) error {
	if sentinel := classify(code); sentinel != nil {
		return fmt.Errorf("%w: %s: %v", sentinel, call, err)
	}
	return fmt.Errorf("%s: %w", call, err)
}
