// Package sanitize provides type-driven sanitization of untrusted strings.
//
// Every call returns a Result describing the cleaned value together with the
// categories of content that were removed, so callers can log exactly what
// was stripped and decide for themselves whether to block or only warn.
// Sanitize never panics on malformed input.
package sanitize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Type selects the sanitization rules applied to an input.
type Type string

// Supported sanitization types.
const (
	TypeText          Type = "text"
	TypeHTML          Type = "html"
	TypeEmail         Type = "email"
	TypeURL           Type = "url"
	TypePhone         Type = "phone"
	TypeName          Type = "name"
	TypeAddress       Type = "address"
	TypeJSON          Type = "json"
	TypeSQLIdentifier Type = "sql_identifier"
	TypeFilename      Type = "filename"
)

// Valid reports whether t is a supported type.
func (t Type) Valid() bool {
	_, ok := handlers[t]
	return ok
}

// Removed-element categories reported in Result.RemovedElements.
const (
	RemovedScriptTags      = "script tags"
	RemovedEventHandlers   = "event handlers"
	RemovedJavascriptURLs  = "javascript protocol"
	RemovedVBScriptURLs    = "vbscript protocol"
	RemovedPathTraversal   = "path traversal sequences"
	RemovedUnicode         = "unicode characters"
	RemovedControlChars    = "control characters"
	RemovedExcessLength    = "excess length"
	RemovedWhitespace      = "excess whitespace"
	RemovedDisallowedChars = "disallowed characters"
	RemovedHTMLTags        = "html tags"
	RemovedHTMLAttributes  = "html attributes"
	RemovedDangerousURL    = "dangerous protocol"
	RemovedInvalidEmail    = "invalid email"
	RemovedMalformedJSON   = "malformed json"
	RemovedPathSeparators  = "path separators"
	RemovedReservedName    = "reserved device name"
	RemovedIdentifierChars = "invalid identifier characters"
)

// Options tunes sanitization. Use DefaultOptions and override fields; the
// zero value disables every optional protection.
type Options struct {
	AllowHTML            bool
	AllowedTags          []string
	AllowedAttributes    []string
	MaxLength            int // in runes; 0 means unlimited
	StripWhitespace      bool
	NormalizeWhitespace  bool
	PreventInjection     bool
	PreventPathTraversal bool
	AllowUnicode         bool
}

// DefaultOptions returns the default option set: injection and path
// traversal prevention on, unicode off.
func DefaultOptions() Options {
	return Options{
		PreventInjection:     true,
		PreventPathTraversal: true,
	}
}

// Result is the outcome of sanitizing one string.
type Result struct {
	Sanitized       string
	Modified        bool
	RemovedElements []string
	Warnings        []string
	IsValid         bool
}

// minPasses is the fixed-point budget for short inputs. Longer inputs get
// one extra pass per byte, since every pass that changes a value either
// removes something or settles casing.
const minPasses = 6

// Sanitize cleans input according to typ. The rules run repeatedly until
// the value stops changing, so sanitizing an already sanitized value is a
// no-op.
func Sanitize(input string, typ Type, opts Options) Result {
	fn, ok := handlers[typ]
	if !ok {
		fn = sanitizeText
	}

	acc := &state{valid: true}
	value := input
	limit := minPasses + len(input)
	for i := 0; i < limit; i++ {
		pass := &state{valid: true}
		next := fn(value, opts, pass)
		acc.absorb(pass)
		if next == value {
			break
		}
		value = next
	}

	return Result{
		Sanitized:       value,
		Modified:        value != input,
		RemovedElements: acc.removed,
		Warnings:        acc.warnings,
		IsValid:         acc.valid,
	}
}

// Fields sanitizes a set of named values. Fields without an entry in types
// are treated as TypeText. The second return value lists every removed
// category across all fields, in first-seen order of sorted field names.
func Fields(values map[string]string, types map[string]Type, opts Options) (map[string]Result, []string) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]Result, len(values))
	agg := &state{valid: true}
	for _, name := range names {
		typ, ok := types[name]
		if !ok {
			typ = TypeText
		}
		res := Sanitize(values[name], typ, opts)
		for _, c := range res.RemovedElements {
			agg.remove(c)
		}
		out[name] = res
	}
	return out, agg.removed
}

type handlerFunc func(string, Options, *state) string

var handlers map[Type]handlerFunc

func init() {
	handlers = map[Type]handlerFunc{
		TypeText:          sanitizeText,
		TypeHTML:          sanitizeHTML,
		TypeEmail:         sanitizeEmail,
		TypeURL:           sanitizeURL,
		TypePhone:         sanitizePhone,
		TypeName:          sanitizeName,
		TypeAddress:       sanitizeAddress,
		TypeJSON:          sanitizeJSON,
		TypeSQLIdentifier: sanitizeSQLIdentifier,
		TypeFilename:      sanitizeFilename,
	}
}

// state collects what one or more passes removed.
type state struct {
	removed  []string
	warnings []string
	valid    bool
}

func (s *state) remove(category string) {
	for _, c := range s.removed {
		if c == category {
			return
		}
	}
	s.removed = append(s.removed, category)
}

func (s *state) warn(msg string) {
	for _, w := range s.warnings {
		if w == msg {
			return
		}
	}
	s.warnings = append(s.warnings, msg)
}

func (s *state) invalid(msg string) {
	s.valid = false
	s.warn(msg)
}

func (s *state) absorb(other *state) {
	for _, c := range other.removed {
		s.remove(c)
	}
	for _, w := range other.warnings {
		s.warn(w)
	}
	if !other.valid {
		s.valid = false
	}
}

// strip deletes every match of re until none is left, so removing one
// match cannot splice a new one together. re must not match the empty
// string. category is recorded when anything matched.
func (s *state) strip(value string, re *regexp.Regexp, category string) string {
	if !re.MatchString(value) {
		return value
	}
	s.remove(category)
	for re.MatchString(value) {
		value = re.ReplaceAllString(value, "")
	}
	return value
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	scriptBlock   = regexp.MustCompile(`(?is)<\s*script\b[^>]*>.*?<\s*/\s*script\s*>`)
	scriptTag     = regexp.MustCompile(`(?i)<\s*/?\s*script\b[^>]*>?`)
	eventHandler  = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]*)`)
	jsProtocol    = regexp.MustCompile(`(?i)javascript\s*:`)
	vbsProtocol   = regexp.MustCompile(`(?i)vbscript\s*:`)
	traversal     = regexp.MustCompile(`\.\.[/\\]|[/\\]\.\.$`)
)

func stripInjection(value string, s *state) string {
	value = s.strip(value, scriptBlock, RemovedScriptTags)
	value = s.strip(value, scriptTag, RemovedScriptTags)
	value = s.strip(value, eventHandler, RemovedEventHandlers)
	value = s.strip(value, jsProtocol, RemovedJavascriptURLs)
	value = s.strip(value, vbsProtocol, RemovedVBScriptURLs)
	return value
}

func stripTraversal(value string, s *state) string {
	return s.strip(value, traversal, RemovedPathTraversal)
}

// stripControl removes control characters, keeping tab and newlines when
// keepLayout is set.
func stripControl(value string, keepLayout bool, s *state) string {
	removed := false
	out := strings.Map(func(r rune) rune {
		if keepLayout && (r == '\n' || r == '\r' || r == '\t') {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			removed = true
			return -1
		}
		return r
	}, value)
	if removed {
		s.remove(RemovedControlChars)
	}
	return out
}

func stripNonASCII(value string, s *state) string {
	removed := false
	out := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			removed = true
			return -1
		}
		return r
	}, value)
	if removed {
		s.remove(RemovedUnicode)
	}
	return out
}

// collapseWhitespace folds whitespace runs to one space and trims.
func collapseWhitespace(value string, s *state) string {
	out := strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " "))
	if out != value {
		s.remove(RemovedWhitespace)
	}
	return out
}

func trimWhitespace(value string, s *state) string {
	out := strings.TrimSpace(value)
	if out != value {
		s.remove(RemovedWhitespace)
	}
	return out
}

// truncate caps value at max runes.
func truncate(value string, max int, s *state) string {
	if max <= 0 || utf8.RuneCountInString(value) <= max {
		return value
	}
	s.remove(RemovedExcessLength)
	runes := []rune(value)
	return string(runes[:max])
}

// applyWhitespace honours the whitespace options after truncation so a
// truncated value never ends with a dangling space.
func applyWhitespace(value string, opts Options, s *state) string {
	switch {
	case opts.NormalizeWhitespace:
		return collapseWhitespace(value, s)
	case opts.StripWhitespace:
		return trimWhitespace(value, s)
	}
	return value
}
