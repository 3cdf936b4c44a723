// Package sanitize validates and normalizes the identifiers that cross the
// API boundary: matter IDs, document IDs, and ingested filenames.
//
// Matter and task IDs end up as NATS subject tokens, which must not contain
// dots, wildcards, or whitespace. Filenames arrive from untrusted ingest
// requests and must never carry path components.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// MaxIdentifierLength caps matter and document IDs. Long IDs are
	// truncated with a hash suffix rather than rejected.
	MaxIdentifierLength = 64

	hashSuffixLength = 9 // "_" + 8 hex chars

	// DefaultToken is used when sanitization produces an empty result.
	DefaultToken = "default"
)

var (
	// ErrInvalidMatterID indicates the matter ID format is invalid.
	ErrInvalidMatterID = errors.New("invalid matter ID format")

	// ErrInvalidDocumentID indicates the document ID format is invalid.
	ErrInvalidDocumentID = errors.New("invalid document ID format")

	// ErrInvalidFilename indicates a filename carries path components or
	// is otherwise unusable.
	ErrInvalidFilename = errors.New("invalid filename")
)

// identifierPattern matches lowercase alphanumeric identifiers with hyphens
// and underscores, up to 64 chars. The same shape is safe in SQLite keys,
// NATS subject tokens, and log fields.
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// SubjectToken normalizes a string for use as a NATS subject token.
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces characters outside [a-z0-9_-] with underscores
//   - Collapses runs of underscores and trims them from the ends
//   - Truncates to MaxIdentifierLength with a hash suffix if too long
//   - Returns DefaultToken if the result would be empty
func SubjectToken(s string) string {
	if s == "" {
		return DefaultToken
	}

	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	token := b.String()
	for strings.Contains(token, "__") {
		token = strings.ReplaceAll(token, "__", "_")
	}
	token = strings.Trim(token, "_")

	if token == "" {
		return DefaultToken
	}
	if len(token) > MaxIdentifierLength {
		token = truncateWithHash(token)
	}
	return token
}

// truncateWithHash shortens a token to MaxIdentifierLength while keeping it
// unique: <truncated>_<8-char-hash-of-original>.
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	suffix := "_" + hex.EncodeToString(hash[:])[:8]

	truncated := strings.TrimRight(s[:MaxIdentifierLength-hashSuffixLength], "_")
	return truncated + suffix
}

// ValidateMatterID checks that a matter ID is safe to use as a storage key
// and subject token. Empty is allowed: tasks may be created without a
// matter.
func ValidateMatterID(id string) error {
	if id == "" {
		return nil
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("%w: contains path characters", ErrInvalidMatterID)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with hyphens or underscores (1-64 chars)", ErrInvalidMatterID)
	}
	return nil
}

// ValidateDocumentID checks a caller-supplied document ID. Empty is allowed;
// the ingest handler generates an ID in that case.
func ValidateDocumentID(id string) error {
	if id == "" {
		return nil
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("%w: contains path characters", ErrInvalidDocumentID)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with hyphens or underscores (1-64 chars)", ErrInvalidDocumentID)
	}
	return nil
}

// SafeFilename strips any path components from an ingested filename and
// rejects names that reduce to nothing. Filenames are stored verbatim in the
// corpus and echoed into privilege logs, so traversal sequences must not
// survive ingestion.
func SafeFilename(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidFilename)
	}
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: contains path traversal", ErrInvalidFilename)
	}

	base := filepath.Base(filepath.Clean(name))
	if base == "" || base == "." || base == "/" || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: no usable base name", ErrInvalidFilename)
	}
	return base, nil
}
