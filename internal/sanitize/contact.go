package sanitize

import (
	"strings"
	"unicode"
)

// keepRunes drops every rune for which allowed returns false. Whitespace is
// folded to a plain space so later collapsing sees one kind of separator.
func keepRunes(value string, opts Options, s *state, allowed func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r > unicode.MaxASCII && !opts.AllowUnicode:
			s.remove(RemovedUnicode)
		case allowed(r):
			b.WriteRune(r)
		default:
			s.remove(RemovedDisallowedChars)
		}
	}
	return b.String()
}

// sanitizePhone keeps dialable characters and checks the digit count.
func sanitizePhone(value string, opts Options, s *state) string {
	out := keepRunes(value, opts, s, func(r rune) bool {
		return (r >= '0' && r <= '9') || strings.ContainsRune("+-().", r)
	})
	out = collapseWhitespace(out, s)

	if out == "" {
		s.invalid("phone number is empty")
		return ""
	}

	digits := 0
	for _, r := range out {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 10 || digits > 15 {
		s.invalid("phone number must contain 10-15 digits")
	}
	return out
}

// sanitizeName keeps letters and name punctuation and title-cases the
// result.
func sanitizeName(value string, opts Options, s *state) string {
	out := keepRunes(value, opts, s, func(r rune) bool {
		return unicode.IsLetter(r) || r == '-' || r == '\'' || r == '.'
	})
	out = collapseWhitespace(out, s)
	out = titleCase(out)
	out = truncate(out, opts.MaxLength, s)
	out = strings.TrimSpace(out)

	if out == "" {
		s.invalid("name is empty")
	}
	return out
}

// titleCase upper-cases the first letter of each word and each
// hyphenated part, lower-casing the rest. Letters after an apostrophe are
// not capitalised.
func titleCase(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	upperNext := true
	for _, r := range value {
		if unicode.IsLetter(r) {
			if upperNext {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			upperNext = false
			continue
		}
		b.WriteRune(r)
		upperNext = r == ' ' || r == '-'
	}
	return b.String()
}

// sanitizeAddress keeps characters that appear in postal addresses.
func sanitizeAddress(value string, opts Options, s *state) string {
	out := keepRunes(value, opts, s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("#.,'/-", r)
	})
	if opts.PreventPathTraversal {
		out = stripTraversal(out, s)
	}
	out = collapseWhitespace(out, s)
	out = truncate(out, opts.MaxLength, s)
	out = strings.TrimSpace(out)

	if out == "" {
		s.invalid("address is empty")
	}
	return out
}
