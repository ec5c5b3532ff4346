package sanitize

import (
	"regexp"
	"strings"
)

// emailPattern accepts the common address shapes. Deliverability is checked
// downstream, not here.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// sanitizeEmail normalizes an address. Anything that does not look like an
// address degrades to the empty string.
func sanitizeEmail(value string, _ Options, s *state) string {
	// Trim and lowercase
	out := strings.TrimSpace(value)
	if out != value {
		s.remove(RemovedWhitespace)
	}
	out = strings.ToLower(out)

	if out == "" {
		s.invalid("email is empty")
		return ""
	}

	if reason := checkEmail(out); reason != "" {
		s.remove(RemovedInvalidEmail)
		s.invalid(reason)
		return ""
	}
	return out
}

// checkEmail returns a non-empty reason when email is not acceptable.
func checkEmail(email string) string {
	// Length constraints (RFC 5321)
	if len(email) > 254 {
		return "email exceeds 254 characters"
	}

	if !emailPattern.MatchString(email) {
		return "invalid email format"
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "invalid email format"
	}
	if len(local) > 64 {
		return "email local part exceeds 64 characters"
	}
	if len(domain) > 255 {
		return "email domain exceeds 255 characters"
	}
	if strings.Contains(domain, "..") || strings.HasPrefix(domain, ".") || strings.HasPrefix(domain, "-") {
		return "invalid email domain"
	}
	return ""
}
