package sanitize

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

// sanitizeJSON compacts a JSON document and escapes HTML-significant
// characters inside it. Malformed documents degrade to the empty string.
func sanitizeJSON(value string, opts Options, s *state) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		s.invalid("json is empty")
		return ""
	}
	if !json.Valid([]byte(trimmed)) {
		s.remove(RemovedMalformedJSON)
		s.invalid("invalid json")
		return ""
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(trimmed)); err != nil {
		s.remove(RemovedMalformedJSON)
		s.invalid("invalid json: " + err.Error())
		return ""
	}
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, compact.Bytes())
	out := escaped.String()

	if opts.MaxLength > 0 && len([]rune(out)) > opts.MaxLength {
		s.remove(RemovedExcessLength)
		s.invalid("json exceeds maximum length")
		return ""
	}
	return out
}

// maxIdentifierLength is the PostgreSQL identifier limit.
const maxIdentifierLength = 63

// sqlKeywords are flagged when they appear as a whole identifier or as one
// underscore-separated part of it. Identifiers are always quoted and
// parameterised downstream; this only surfaces suspicious names.
var sqlKeywords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "TRUNCATE": true, "EXEC": true, "EXECUTE": true,
	"UNION": true, "JOIN": true, "WHERE": true, "FROM": true, "GRANT": true,
	"REVOKE": true, "TABLE": true,
}

// sanitizeSQLIdentifier reduces value to a safe bare identifier.
func sanitizeSQLIdentifier(value string, opts Options, s *state) string {
	out := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, value)
	if out != value {
		s.remove(RemovedIdentifierChars)
	}

	if out == "" {
		s.invalid("identifier is empty")
		return ""
	}

	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
		s.warn("identifier cannot start with a digit")
	}

	limit := maxIdentifierLength
	if opts.MaxLength > 0 && opts.MaxLength < limit {
		limit = opts.MaxLength
	}
	out = truncate(out, limit, s)

	for _, part := range strings.Split(strings.ToUpper(out), "_") {
		if sqlKeywords[part] {
			s.warn("identifier contains SQL keyword " + part)
		}
	}
	return out
}
