package sanitize

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultAllowedTags are the formatting elements kept when AllowHTML is set
// and no explicit tag list is given.
var DefaultAllowedTags = []string{"b", "i", "em", "strong", "p", "br", "ul", "ol", "li"}

var (
	strictPolicy = bluemonday.StrictPolicy()
	anyTag       = regexp.MustCompile(`<\s*/?\s*[a-zA-Z!][^>]*>`)
	tagAttribute = regexp.MustCompile(`<\s*[a-zA-Z][a-zA-Z0-9]*\s+[^>]*=`)
)

// htmlPolicy builds the bluemonday policy for opts.
func htmlPolicy(opts Options) *bluemonday.Policy {
	if !opts.AllowHTML {
		return strictPolicy
	}
	tags := opts.AllowedTags
	if len(tags) == 0 {
		tags = DefaultAllowedTags
	}
	p := bluemonday.NewPolicy()
	p.AllowElements(tags...)
	if len(opts.AllowedAttributes) > 0 {
		p.AllowAttrs(opts.AllowedAttributes...).OnElements(tags...)
	}
	return p
}

// sanitizeHTML handles rich text. Markup outside the allow-list is dropped
// and text content is entity-escaped.
func sanitizeHTML(value string, opts Options, s *state) string {
	value = stripControl(value, true, s)

	if scriptBlock.MatchString(value) || scriptTag.MatchString(value) {
		s.remove(RemovedScriptTags)
	}
	if eventHandler.MatchString(value) {
		s.remove(RemovedEventHandlers)
	}
	if jsProtocol.MatchString(value) {
		s.remove(RemovedJavascriptURLs)
	}

	hadTags := anyTag.MatchString(value)
	hadAttrs := tagAttribute.MatchString(value)

	out := htmlPolicy(opts).Sanitize(value)

	if hadTags && strings.Count(out, "<") < strings.Count(value, "<") {
		s.remove(RemovedHTMLTags)
	}
	if hadAttrs && !tagAttribute.MatchString(out) {
		s.remove(RemovedHTMLAttributes)
	}

	if !opts.AllowUnicode {
		out = stripNonASCII(out, s)
	}
	out = truncateHTML(out, opts.MaxLength, s)
	return applyWhitespace(out, opts, s)
}

// truncateHTML truncates without leaving a partial tag or entity at the end.
func truncateHTML(value string, max int, s *state) string {
	out := truncate(value, max, s)
	if out == value {
		return out
	}
	if i := strings.LastIndexAny(out, "<&"); i >= 0 {
		if !strings.ContainsAny(out[i:], ">;") {
			out = out[:i]
		}
	}
	return out
}
