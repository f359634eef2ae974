package memory

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	gomail "github.com/emersion/go-message/mail"
)

// ParseMIME turns an RFC 5322 message into a Message ready for Deliver. Only
// the first text/plain and text/html parts are kept; every attachment part
// becomes a File.
func ParseMIME(raw []byte) (Message, error) {
	r, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("memory: parse message: %w", err)
	}
	defer r.Close()

	header := r.Header
	m := Message{Unread: true}
	m.Subject, _ = header.Subject()
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		m.SenderName = from[0].Name
		m.SenderAddress = from[0].Address
	}
	m.To = addresses(header, "To")
	m.CC = addresses(header, "Cc")
	if date, err := header.Date(); err == nil {
		m.Received = date
	}

	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Message{}, fmt.Errorf("memory: read part: %w", err)
		}
		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			switch {
			case strings.HasPrefix(contentType, "text/plain") && m.Body == "":
				m.Body = readAll(part.Body)
			case strings.HasPrefix(contentType, "text/html") && m.HTMLBody == "":
				m.HTMLBody = readAll(part.Body)
			}
		case *gomail.AttachmentHeader:
			name, _ := h.Filename()
			if name == "" {
				name = fmt.Sprintf("attachment-%d", len(m.Attachments)+1)
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return Message{}, fmt.Errorf("memory: read attachment %s: %w", name, err)
			}
			m.Attachments = append(m.Attachments, File{Name: name, Data: data})
		}
	}

	if m.Body == "" && m.HTMLBody != "" {
		m.Body = stripHTML(m.HTMLBody)
	}
	return m, nil
}

// DeliverMIME parses raw and delivers it to folder (Inbox when empty).
func (a *App) DeliverMIME(folder string, raw []byte) (string, error) {
	m, err := ParseMIME(raw)
	if err != nil {
		return "", err
	}
	m.Folder = folder
	return a.Deliver(m)
}

// LoadDir delivers every *.eml file in dir to the Inbox, in name order.
func (a *App) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.eml"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)
	for i, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return i, err
		}
		if _, err := a.DeliverMIME("", raw); err != nil {
			return i, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return len(paths), nil
}

func addresses(header gomail.Header, key string) []string {
	list, err := header.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Address)
	}
	return out
}

func readAll(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

var (
	scriptPattern     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

func stripHTML(s string) string {
	s = scriptPattern.ReplaceAllString(s, "")
	s = stylePattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
