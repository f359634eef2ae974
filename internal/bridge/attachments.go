package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mailbridge/internal/automation"
)

// DownloadAttachments saves every attachment of a message into dir under its
// original file name and returns the written paths. Name clashes follow the
// configured collision policy: rename picks the first free name-N.ext and
// fails once maxRenameAttempts are taken; overwrite replaces the file, and two
// attachments sharing a name leave one file (the later one) listed once.
func (m *Mail) DownloadAttachments(ctx context.Context, id, dir string) ([]string, error) {
	const op = "download_attachments"
	b := m.b
	if strings.TrimSpace(dir) == "" {
		return nil, invalid(op, "dir", "target directory is required")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, invalid(op, "dir", "%w", err)
	}
	saved := []string{}
	seen := map[string]bool{}
	err = b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindMail)
		if err != nil {
			return err
		}
		defer it.Release()
		atts, err := it.Attachments()
		if err != nil {
			return err
		}
		if len(atts) == 0 {
			return nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &Error{Kind: ErrOperation, Op: op, Field: "dir", Err: err}
		}
		for i, att := range atts {
			name, err := att.FileName()
			if err != nil {
				return err
			}
			target := filepath.Join(dir, safeFilename(name, i+1))
			if b.opts.collision != CollisionOverwrite {
				if target, err = ensureUniqueFilename(target); err != nil {
					return &Error{Kind: ErrOperation, Op: op, ID: id, Field: "dir", Err: err}
				}
			}
			if err := att.SaveAsFile(target); err != nil {
				return err
			}
			if !seen[target] {
				seen[target] = true
				saved = append(saved, target)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func safeFilename(name string, n int) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return fmt.Sprintf("attachment-%d", n)
	}
	return name
}

var maxRenameAttempts = 1000

func ensureUniqueFilename(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	ext := filepath.Ext(path)
	for i := 1; i < maxRenameAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", filepath.Base(path), maxRenameAttempts)
}

// checkAttachments requires every path to be a readable regular file and
// returns them made absolute.
func checkAttachments(op string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, invalid(op, "attachments", "%s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, invalid(op, "attachments", "%s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			return nil, invalid(op, "attachments", "%s is not a regular file", p)
		}
		f, err := os.Open(abs)
		if err != nil {
			return nil, invalid(op, "attachments", "%s: %w", p, err)
		}
		_ = f.Close()
		out = append(out, abs)
	}
	return out, nil
}
