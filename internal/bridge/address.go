package bridge

import (
	"strings"

	"mailbridge/internal/automation"

	"github.com/emersion/go-message/mail"
)

const directoryType = "EX"

// ResolveAddress replaces a directory-style address with the principal's
// primary SMTP address. When that is not possible raw is returned unchanged:
// a failed lookup never fails the read that needed it.
func (b *Bridge) ResolveAddress(raw string, entry automation.AddressEntry) string {
	if !isDirectoryAddress(raw, entry) {
		return raw
	}
	if entry == nil {
		b.log.Debug("no address entry for directory address", "address", raw)
		return raw
	}
	smtp, err := entry.PrimarySMTPAddress()
	if err != nil {
		b.log.Debug("directory lookup failed", "address", raw, "error", err)
		return raw
	}
	parsed, err := mail.ParseAddress(strings.TrimSpace(smtp))
	if err != nil || parsed.Address == "" {
		b.log.Debug("directory returned an unroutable address", "address", raw, "smtp", smtp, "error", err)
		return raw
	}
	return parsed.Address
}

func isDirectoryAddress(raw string, entry automation.AddressEntry) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "/o=") {
		return true
	}
	if entry == nil {
		return false
	}
	typ, err := entry.Type()
	return err == nil && strings.EqualFold(typ, directoryType)
}

func (b *Bridge) senderOf(it automation.Item) (Address, error) {
	name, err := propString(it, automation.PropSenderName)
	if err != nil {
		return Address{}, err
	}
	raw, err := propString(it, automation.PropSenderEmailAddress)
	if err != nil {
		return Address{}, err
	}
	entry, err := it.Sender()
	if err != nil {
		b.log.Debug("sender entry unavailable", "error", err)
		entry = nil
	}
	return Address{Name: name, Address: b.ResolveAddress(raw, entry)}, nil
}

type recipientInfo struct {
	kind     automation.RecipientKind
	address  Address
	response automation.ResponseCode
}

func (b *Bridge) recipientsOf(it automation.Item) ([]recipientInfo, error) {
	recips, err := it.Recipients()
	if err != nil {
		return nil, err
	}
	out := make([]recipientInfo, 0, len(recips))
	for _, r := range recips {
		kind, err := r.Kind()
		if err != nil {
			return nil, err
		}
		name, err := r.Name()
		if err != nil {
			return nil, err
		}
		raw, err := r.Address()
		if err != nil {
			return nil, err
		}
		entry, err := r.AddressEntry()
		if err != nil {
			b.log.Debug("recipient entry unavailable", "name", name, "error", err)
			entry = nil
		}
		response, err := r.MeetingResponse()
		if err != nil {
			response = automation.ResponseNone
		}
		out = append(out, recipientInfo{
			kind:     kind,
			address:  Address{Name: name, Address: b.ResolveAddress(raw, entry)},
			response: response,
		})
	}
	return out, nil
}
