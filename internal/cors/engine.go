// Package cors applies per-path Cross-Origin Resource Sharing profiles.
//
// Every path is classified into one of four profiles. Preflight requests are
// answered directly by the Engine; actual requests are annotated on their
// way out so headers set by downstream handlers are merged, not replaced.
package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// Kind names a CORS profile.
type Kind string

// Profile kinds.
const (
	KindPublic        Kind = "public"
	KindAuthenticated Kind = "authenticated"
	KindAdmin         Kind = "admin"
	KindWebhook       Kind = "webhook"
)

const (
	headerOrigin         = "Origin"
	headerVary           = "Vary"
	headerRequestMethod  = "Access-Control-Request-Method"
	headerRequestHeaders = "Access-Control-Request-Headers"
	headerAllowOrigin    = "Access-Control-Allow-Origin"
	headerAllowMethods   = "Access-Control-Allow-Methods"
	headerAllowHeaders   = "Access-Control-Allow-Headers"
	headerAllowCreds     = "Access-Control-Allow-Credentials"
	headerExposeHeaders  = "Access-Control-Expose-Headers"
	headerMaxAge         = "Access-Control-Max-Age"
)

// Profile is the CORS behaviour for one class of paths.
type Profile struct {
	Origins          OriginMatcher
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds. Zero disables
	// caching.
	MaxAge int
	// SuccessStatus is the preflight status code. Zero means 204.
	SuccessStatus int
	// Disabled rejects preflight requests with 405 and adds no headers.
	Disabled bool
}

// Profiles holds one profile per kind.
type Profiles struct {
	Public        Profile
	Authenticated Profile
	Admin         Profile
	Webhook       Profile
}

// Get returns the profile for kind. Unknown kinds get the public profile.
func (p Profiles) Get(kind Kind) Profile {
	switch kind {
	case KindAuthenticated:
		return p.Authenticated
	case KindAdmin:
		return p.Admin
	case KindWebhook:
		return p.Webhook
	default:
		return p.Public
	}
}

// Engine answers preflights and annotates responses.
type Engine struct {
	profiles Profiles
}

// NewEngine creates an engine over profiles.
func NewEngine(profiles Profiles) *Engine {
	return &Engine{profiles: profiles}
}

// Profiles returns the configured profiles.
func (e *Engine) Profiles() Profiles {
	return e.profiles
}

// Classify maps a request path to a profile kind.
func Classify(path string) Kind {
	switch {
	case hasSegmentPrefix(path, "/api/webhooks"):
		return KindWebhook
	case hasSegmentPrefix(path, "/api/v1/admin"):
		return KindAdmin
	case hasSegmentPrefix(path, "/api/health"), hasSegmentPrefix(path, "/api/public"):
		return KindPublic
	case strings.HasPrefix(path, "/api/"):
		return KindAuthenticated
	default:
		return KindPublic
	}
}

// hasSegmentPrefix matches prefix as a whole path segment, so /api/healthz
// is not treated as /api/health.
func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Preflight answers an OPTIONS request for path class kind. The configured
// success status is returned even when the origin is not allowed; the
// missing allow-origin header is what denies the browser.
func (e *Engine) Preflight(w http.ResponseWriter, r *http.Request, kind Kind) {
	p := e.profiles.Get(kind)
	h := w.Header()

	if p.Disabled {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	mergeVary(h, headerOrigin, headerRequestMethod, headerRequestHeaders)

	origin := r.Header.Get(headerOrigin)
	if origin != "" && p.Origins != nil && p.Origins.Allow(origin) {
		h.Set(headerAllowOrigin, origin)
		if p.AllowCredentials {
			h.Set(headerAllowCreds, "true")
		}

		if method := allowedMethod(p.AllowedMethods, r.Header.Get(headerRequestMethod)); method != "" {
			h.Set(headerAllowMethods, method)
		}
		if headers := allowedHeaders(p.AllowedHeaders, r.Header.Values(headerRequestHeaders)); len(headers) > 0 {
			h.Set(headerAllowHeaders, strings.Join(headers, ", "))
		}
		if p.MaxAge >= 0 {
			h.Set(headerMaxAge, strconv.Itoa(p.MaxAge))
		}
	}

	status := p.SuccessStatus
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

// Annotate adds CORS headers for an actual (non-preflight) request to h.
// Vary: Origin is merged into any existing Vary values.
func (e *Engine) Annotate(h http.Header, r *http.Request, kind Kind) {
	p := e.profiles.Get(kind)
	if p.Disabled {
		return
	}

	mergeVary(h, headerOrigin)

	origin := r.Header.Get(headerOrigin)
	if origin == "" || p.Origins == nil || !p.Origins.Allow(origin) {
		return
	}
	h.Set(headerAllowOrigin, origin)
	if p.AllowCredentials {
		h.Set(headerAllowCreds, "true")
	}
	if len(p.ExposedHeaders) > 0 {
		h.Set(headerExposeHeaders, strings.Join(p.ExposedHeaders, ", "))
	}
}

// Wrap returns a writer that annotates the response just before the status
// line is sent, after downstream handlers have set their own headers.
func (e *Engine) Wrap(w http.ResponseWriter, r *http.Request, kind Kind) http.ResponseWriter {
	return &annotatingWriter{ResponseWriter: w, annotate: func(h http.Header) { e.Annotate(h, r, kind) }}
}

// Middleware handles CORS for every request: OPTIONS is answered by
// Preflight, anything else is annotated and passed on.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := Classify(r.URL.Path)
		if r.Method == http.MethodOptions {
			e.Preflight(w, r, kind)
			return
		}
		next.ServeHTTP(e.Wrap(w, r, kind), r)
	})
}

type annotatingWriter struct {
	http.ResponseWriter
	annotate func(http.Header)
	done     bool
}

func (a *annotatingWriter) WriteHeader(code int) {
	if !a.done {
		a.done = true
		a.annotate(a.Header())
	}
	a.ResponseWriter.WriteHeader(code)
}

func (a *annotatingWriter) Write(b []byte) (int, error) {
	if !a.done {
		a.WriteHeader(http.StatusOK)
	}
	return a.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (a *annotatingWriter) Unwrap() http.ResponseWriter {
	return a.ResponseWriter
}

// Flush implements http.Flusher when the underlying writer does.
func (a *annotatingWriter) Flush() {
	if !a.done {
		a.WriteHeader(http.StatusOK)
	}
	if f, ok := a.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func allowedMethod(configured []string, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return ""
	}
	for _, m := range configured {
		if strings.EqualFold(m, requested) {
			return m
		}
	}
	return ""
}

// allowedHeaders intersects the requested header names with the configured
// ones, case-insensitively, keeping request order and configured spelling.
func allowedHeaders(configured, requested []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range requested {
		for _, name := range strings.Split(line, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			for _, c := range configured {
				if strings.ToLower(c) == key {
					out = append(out, c)
					seen[key] = true
					break
				}
			}
		}
	}
	return out
}

// mergeVary adds values to the Vary header, skipping ones already present.
func mergeVary(h http.Header, values ...string) {
	present := make(map[string]bool)
	for _, line := range h.Values(headerVary) {
		for _, v := range strings.Split(line, ",") {
			present[strings.ToLower(strings.TrimSpace(v))] = true
		}
	}
	for _, v := range values {
		if !present[strings.ToLower(v)] {
			h.Add(headerVary, v)
			present[strings.ToLower(v)] = true
		}
	}
}
