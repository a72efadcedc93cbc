package workflow

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Separator selects how fragments are joined into the display string.
type Separator string

const (
	// SeparatorSpace joins fragments with a single space.
	SeparatorSpace Separator = "space"
	// SeparatorNewline joins fragments with a line feed.
	SeparatorNewline Separator = "newline"
)

// DefaultSeparator is used when no separator is configured.
const DefaultSeparator = SeparatorSpace

// ParseSeparator accepts "space", "newline" or the empty string (default).
func ParseSeparator(s string) (Separator, error) {
	switch Separator(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeparatorSpace:
		return SeparatorSpace, nil
	case SeparatorNewline:
		return SeparatorNewline, nil
	}
	return "", fmt.Errorf("invalid separator: %s (must be one of: space, newline)", s)
}

// Value returns the literal string placed between fragments.
func (s Separator) Value() string {
	if s == SeparatorNewline {
		return "\n"
	}
	return " "
}

// CleanFragment normalizes one engine fragment: NFC form, zero-width and
// control characters removed, whitespace runs collapsed, ends trimmed.
func CleanFragment(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\uFEFF':
			continue
		case '\n', '\r', '\t':
			b.WriteRune(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// JoinFragments cleans every fragment, drops the empty ones and joins the
// rest with sep. It fails when a fragment is not valid UTF-8.
func JoinFragments(fragments []string, sep Separator) (string, []string, error) {
	cleaned := make([]string, 0, len(fragments))
	for i, f := range fragments {
		if !utf8.ValidString(f) {
			return "", nil, fmt.Errorf("fragment %d is not valid UTF-8", i)
		}
		if c := CleanFragment(f); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return strings.Join(cleaned, sep.Value()), cleaned, nil
}
