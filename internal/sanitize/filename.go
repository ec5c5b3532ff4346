package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxFilenameBytes is the common filesystem name limit.
const maxFilenameBytes = 255

// maxExtensionBytes bounds what is treated as an extension when truncating.
const maxExtensionBytes = 16

var (
	dotDot         = regexp.MustCompile(`\.\.+`)
	forbiddenChars = regexp.MustCompile(`[<>:"|?*]`)
	reservedNames  = regexp.MustCompile(`(?i)^(?:con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
)

// sanitizeFilename reduces value to a single safe path component.
func sanitizeFilename(value string, opts Options, s *state) string {
	out := stripControl(value, false, s)

	if strings.ContainsAny(out, `/\`) {
		s.remove(RemovedPathSeparators)
		out = strings.NewReplacer("/", "", `\`, "").Replace(out)
	}
	out = s.strip(out, dotDot, RemovedPathTraversal)
	out = s.strip(out, forbiddenChars, RemovedDisallowedChars)
	if !opts.AllowUnicode {
		out = stripNonASCII(out, s)
	}

	trimmed := strings.TrimRight(strings.TrimSpace(out), ". ")
	if trimmed != out {
		s.remove(RemovedWhitespace)
		out = trimmed
	}

	if out == "" {
		s.invalid("filename is empty")
		return ""
	}

	ext := filepath.Ext(out)
	if len(ext) > maxExtensionBytes || ext == out {
		ext = ""
	}
	base := strings.TrimSuffix(out, ext)
	if reservedNames.MatchString(base) {
		s.remove(RemovedReservedName)
		base = "_" + base
	}

	limit := maxFilenameBytes
	if opts.MaxLength > 0 && opts.MaxLength < limit {
		limit = opts.MaxLength
	}
	if len(base)+len(ext) > limit {
		s.remove(RemovedExcessLength)
		base = truncateBytes(base, limit-len(ext))
		if base == "" {
			ext = truncateBytes(ext, limit)
		}
	}
	return base + ext
}

// truncateBytes cuts value to at most n bytes on a rune boundary.
func truncateBytes(value string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(value) <= n {
		return value
	}
	for n > 0 && !utf8.RuneStart(value[n]) {
		n--
	}
	return value[:n]
}
