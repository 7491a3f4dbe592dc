package message

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// mailtoTarget captures the address of a mailto: URI, including the
	// target of a Markdown link such as [label](mailto:a@b.com).
	mailtoTarget = regexp.MustCompile(`(?i)mailto:([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

	mailtoScheme = regexp.MustCompile(`(?i)mailto:`)

	addressPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@(?:[A-Za-z0-9-]+\.)+[A-Za-z]{2,}$`)
)

// addressCutset holds the wrapper characters trimmed from both ends.
const addressCutset = "<>[]()"

// CleanAddress strips mailto: schemes, Markdown link wrappers, brackets and
// all whitespace from a raw header value. It never fails; empty input gives
// an empty result. CleanAddress(CleanAddress(x)) == CleanAddress(x).
func CleanAddress(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	if m := mailtoTarget.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	// Removing one scheme can expose another ("mamailto:ilto:").
	for mailtoScheme.MatchString(s) {
		s = mailtoScheme.ReplaceAllString(s, "")
	}

	return strings.Trim(s, addressCutset)
}

// ValidAddress reports whether raw, once cleaned, is a syntactically valid
// local-part@domain.tld address. No DNS or deliverability check is made.
func ValidAddress(raw string) bool {
	return addressPattern.MatchString(CleanAddress(raw))
}

// NormalizeAddress is the key used for exclusion and dedup membership.
func NormalizeAddress(raw string) string {
	return strings.ToLower(CleanAddress(raw))
}
