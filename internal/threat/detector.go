// Package threat scans untrusted strings for common attack payloads and
// classifies the overall severity of what it finds.
//
// Matching is heuristic. The contract is the category list and the severity
// ranking, not the exact expressions.
package threat

import (
	"regexp"
	"strings"
)

// Severity is an ordinal threat tier.
type Severity int

// Severity tiers, lowest first. SeverityNone means no threat was found.
const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lower-case tier name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// Threat category names reported in Assessment.Threats.
const (
	ScriptInjection  = "script_injection"
	SQLInjection     = "sql_injection"
	CommandInjection = "command_injection"
	PathTraversal    = "path_traversal"
	EventHandler     = "event_handler"
	EmbeddedContent  = "embedded_content"
	NullByte         = "null_byte"
	EncodedPayload   = "encoded_payload"
	SQLKeyword       = "sql_keyword"
)

// Pattern is one entry of the detection table.
type Pattern struct {
	Name     string
	Severity Severity
	Expr     *regexp.Regexp
}

// shellCommand names the commands an injected shell payload usually runs.
const shellCommand = `(?:rm|cat|ls|curl|wget|bash|sh|zsh|nc|netcat|chmod|chown|python|perl|whoami|id|uname)`

// shellArgs requires a shell-shaped continuation after the command: end of
// input, another metacharacter, or an argument that looks like a flag, a
// path, a variable, a number or a URL. "salad; id like extra" stays prose.
const shellArgs = "(?:\\s*$|\\s*[;&|<>`]|\\s+(?:-|/|\\.|~|\\$|\\d|[a-z][a-z0-9+.-]*://))"

// patterns is evaluated in order. Several entries may share a name; the
// name is reported once.
var patterns = []Pattern{
	{ScriptInjection, SeverityCritical, regexp.MustCompile(`(?i)<\s*/?\s*script\b`)},
	{ScriptInjection, SeverityCritical, regexp.MustCompile(`(?i)\b(?:javascript|vbscript)\s*:`)},
	{SQLInjection, SeverityCritical, regexp.MustCompile(`(?i)['"]\s*(?:or|and)\s+['"\d][^=]*=`)},
	{SQLInjection, SeverityCritical, regexp.MustCompile(`(?i)\bunion\b(?:\s+all)?\s+select\b`)},
	{SQLInjection, SeverityCritical, regexp.MustCompile(`(?i);\s*(?:drop|delete|truncate|alter|insert|update|exec)\b`)},
	{SQLInjection, SeverityCritical, regexp.MustCompile(`(?i)['"]\s*(?:;|--|#|/\*)`)},
	{CommandInjection, SeverityCritical, regexp.MustCompile(`(?i)(?:;|&&|\|\|?)\s*` + shellCommand + shellArgs)},
	{CommandInjection, SeverityCritical, regexp.MustCompile("(?i)`\\s*" + shellCommand + "(?:\\s[^`]*)?`")},
	{CommandInjection, SeverityCritical, regexp.MustCompile(`\$\([^)]*\)`)},
	{PathTraversal, SeverityHigh, regexp.MustCompile(`\.\.[/\\]`)},
	{PathTraversal, SeverityHigh, regexp.MustCompile(`(?i)%2e%2e(?:%2f|%5c|/|\\)`)},
	{EventHandler, SeverityHigh, regexp.MustCompile(`(?i)\bon(?:load|unload|error|abort|click|dblclick|contextmenu|mouse[a-z]+|pointer[a-z]+|touch[a-z]+|drag[a-z]*|drop|key[a-z]+|focus[a-z]*|blur|change|input|submit|reset|select|resize|scroll|toggle|animation[a-z]+|transition[a-z]+|begin|end|message|hashchange|pageshow|beforeunload)\s*=`)},
	{EmbeddedContent, SeverityMedium, regexp.MustCompile(`(?i)<\s*(?:iframe|object|embed|applet|meta|base)\b`)},
	{NullByte, SeverityMedium, regexp.MustCompile(`\x00|%00`)},
	{EncodedPayload, SeverityLow, regexp.MustCompile(`(?i)%3c|%3e|%27|&#x?0*(?:60|3c|62|3e);`)},
	{SQLKeyword, SeverityLow, regexp.MustCompile(`(?i)\b(?:select|insert|update|delete|drop|union|truncate|exec)\b`)},
}

// Assessment is the result of scanning one or more inputs.
type Assessment struct {
	Threats  []string
	Severity Severity
	Clean    bool
}

// Blocking reports whether the assessment warrants rejecting the request.
func (a Assessment) Blocking() bool {
	return a.Severity >= SeverityHigh
}

// Detect scans input against every pattern. The overall severity is the
// maximum tier among all matches.
func Detect(input string) Assessment {
	a := Assessment{Clean: true}
	if input == "" {
		return a
	}
	a.merge(input)
	return a
}

// DetectAll scans several inputs and merges the findings.
func DetectAll(inputs ...string) Assessment {
	a := Assessment{Clean: true}
	for _, in := range inputs {
		if in == "" {
			continue
		}
		a.merge(in)
	}
	return a
}

func (a *Assessment) merge(input string) {
	for _, p := range patterns {
		if !p.Expr.MatchString(input) {
			continue
		}
		if p.Severity > a.Severity {
			a.Severity = p.Severity
		}
		if !a.has(p.Name) {
			a.Threats = append(a.Threats, p.Name)
		}
		a.Clean = false
	}
}

func (a *Assessment) has(name string) bool {
	for _, t := range a.Threats {
		if t == name {
			return true
		}
	}
	return false
}

// Summary joins the threat names for log output.
func (a Assessment) Summary() string {
	return strings.Join(a.Threats, ",")
}
