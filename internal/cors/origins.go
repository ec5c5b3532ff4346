package cors

import (
	"net/url"
	"strings"
)

// DefaultPreviewSuffix is the host suffix of preview deployments accepted by
// DevOrigins when none is configured.
const DefaultPreviewSuffix = ".vercel.app"

// OriginMatcher decides whether a request Origin is allowed.
type OriginMatcher interface {
	Allow(origin string) bool
}

// AllowAll allows every origin when true and none when false.
type AllowAll bool

// Allow implements OriginMatcher.
func (a AllowAll) Allow(string) bool { return bool(a) }

// ExactOrigin allows a single origin. The value "*" allows every origin.
type ExactOrigin string

// Allow implements OriginMatcher.
func (e ExactOrigin) Allow(origin string) bool {
	return string(e) == "*" || string(e) == origin
}

// OriginFunc allows origins for which the predicate returns true.
type OriginFunc func(origin string) bool

// Allow implements OriginMatcher.
func (f OriginFunc) Allow(origin string) bool {
	return f != nil && f(origin)
}

// OriginList allows an origin if any member does.
type OriginList []OriginMatcher

// Allow implements OriginMatcher.
func (l OriginList) Allow(origin string) bool {
	for _, m := range l {
		if m != nil && m.Allow(origin) {
			return true
		}
	}
	return false
}

// Origins builds an OriginList of exact origins, skipping blanks.
func Origins(origins ...string) OriginList {
	list := OriginList{}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			list = append(list, ExactOrigin(o))
		}
	}
	return list
}

// DevOrigins allows local development servers on any port and HTTPS preview
// deployments whose host ends with previewSuffix.
func DevOrigins(previewSuffix string) OriginFunc {
	if previewSuffix == "" {
		previewSuffix = DefaultPreviewSuffix
	}
	if !strings.HasPrefix(previewSuffix, ".") {
		previewSuffix = "." + previewSuffix
	}
	return func(origin string) bool {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" || u.Path != "" {
			return false
		}
		host := u.Hostname()
		switch u.Scheme {
		case "http", "https":
			if host == "localhost" || host == "127.0.0.1" {
				return true
			}
		}
		return u.Scheme == "https" && strings.HasSuffix(host, previewSuffix) && len(host) > len(previewSuffix)
	}
}

// literals reports the literal origins a matcher is configured with. dynamic
// is true when any part of the matcher is a predicate whose accepted set
// cannot be inspected.
func literals(m OriginMatcher) (origins []string, dynamic bool) {
	switch v := m.(type) {
	case nil:
		return nil, false
	case AllowAll:
		if v {
			return []string{"*"}, false
		}
		return nil, false
	case ExactOrigin:
		return []string{string(v)}, false
	case OriginFunc:
		return nil, true
	case OriginList:
		for _, member := range v {
			lits, dyn := literals(member)
			origins = append(origins, lits...)
			dynamic = dynamic || dyn
		}
		return origins, dynamic
	default:
		return nil, true
	}
}
