// Package security keeps generated artifact paths inside their output
// directory.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxNameLen = 128

// SanitizeFilename makes a safe file name component from an arbitrary
// string such as a model name. Runs of characters outside [A-Za-z0-9._-]
// collapse to a single underscore. Leading and trailing dots and
// underscores are trimmed and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// JoinWithin joins name onto dir and rejects the result if it resolves
// outside dir. The check is lexical so it works for in-memory filesystems.
func JoinWithin(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	rel, err := filepath.Rel(filepath.Clean(dir), path)
	if err != nil {
		return "", fmt.Errorf("path %s is outside %s: %w", name, dir, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path traversal detected: %s attempts to escape %s", name, dir)
	}
	return path, nil
}
