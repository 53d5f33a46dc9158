// Package validation provides centralized input validation for hgtload.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xtxerr/hgtload/internal/errors"
)

// =============================================================================
// File Names
// =============================================================================

// MaxFileNameLength bounds archive and tile names.
const MaxFileNameLength = 255

// ValidateFileName accepts a bare file name made of letters, digits, dots,
// hyphens and underscores. Manifest zip names and archive entries go through
// it before being joined to the work folder.
func ValidateFileName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("file name is empty: %w", errors.ErrInvalidName)
	case len(name) > MaxFileNameLength:
		return fmt.Errorf("file name longer than %d characters: %w", MaxFileNameLength, errors.ErrInvalidName)
	case filepath.Base(name) != name || strings.ContainsAny(name, `/\`):
		return fmt.Errorf("file name %q must not contain a directory: %w", name, errors.ErrInvalidName)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("file name %q starts with a dot: %w", name, errors.ErrInvalidName)
	}

	for i, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("file name %q: invalid character %q at position %d: %w", name, r, i, errors.ErrInvalidName)
	}
	return nil
}

// =============================================================================
// SQL Identifiers
// =============================================================================

// MaxIdentifierLength bounds table names.
const MaxIdentifierLength = 63

// ValidateIdentifier checks that s can be used unquoted as a SQL table name:
// ASCII letters, digits and underscores, not starting with a digit.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("identifier is empty: %w", errors.ErrInvalidName)
	}
	if len(s) > MaxIdentifierLength {
		return fmt.Errorf("identifier %q longer than %d characters: %w", s, MaxIdentifierLength, errors.ErrInvalidName)
	}

	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("identifier %q starts with a digit: %w", s, errors.ErrInvalidName)
			}
		default:
			return fmt.Errorf("invalid character '%c' in identifier %q: %w", r, s, errors.ErrInvalidName)
		}
	}
	return nil
}

// QuoteIdentifier returns s as a double-quoted SQL identifier.
func QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// =============================================================================
// URLs
// =============================================================================

// ValidateDownloadURL accepts absolute http and https URLs.
func ValidateDownloadURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is empty: %w", errors.ErrInvalidDataset)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url %q: %v: %w", raw, err, errors.ErrInvalidDataset)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q: unsupported scheme %q: %w", raw, u.Scheme, errors.ErrInvalidDataset)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host: %w", raw, errors.ErrInvalidDataset)
	}
	return nil
}

// =============================================================================
// Numeric Ranges
// =============================================================================

// ValidatePositive checks that value is at least 1.
func ValidatePositive(field string, value int) error {
	if value < 1 {
		return errors.NewInvalidValue(field, value, "must be at least 1")
	}
	return nil
}

// ValidateNonNegative checks that value is at least 0.
func ValidateNonNegative(field string, value int) error {
	if value < 0 {
		return errors.NewInvalidValue(field, value, "must not be negative")
	}
	return nil
}
