package cors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxReasonableMaxAge is the largest preflight cache lifetime that does not
// draw a warning.
const maxReasonableMaxAge = 86400

// Default header and method sets.
var (
	DefaultMethods        = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	DefaultPublicMethods  = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}
	DefaultHeaders        = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Requested-With"}
	DefaultExposedHeaders = []string{"X-Request-ID"}
)

// Settings is the environment-driven input to BuildProfiles.
type Settings struct {
	Production     bool
	AllowedOrigins []string
	AdminOrigins   []string
	PreviewSuffix  string

	MaxAgePublic        int
	MaxAgeAuthenticated int
	MaxAgeAdmin         int
}

// DefaultSettings returns settings with the standard max-age values.
func DefaultSettings() Settings {
	return Settings{
		PreviewSuffix:       DefaultPreviewSuffix,
		MaxAgePublic:        300,
		MaxAgeAuthenticated: 3600,
		MaxAgeAdmin:         0,
	}
}

// BuildProfiles derives the four profiles from s. Outside production the
// public, authenticated and admin profiles also accept DevOrigins.
func BuildProfiles(s Settings) Profiles {
	appOrigins := OriginMatcher(Origins(s.AllowedOrigins...))
	adminOrigins := OriginMatcher(Origins(s.AdminOrigins...))
	if !s.Production {
		dev := DevOrigins(s.PreviewSuffix)
		appOrigins = OriginList{appOrigins, dev}
		adminOrigins = OriginList{adminOrigins, dev}
	}

	return Profiles{
		Public: Profile{
			Origins:        appOrigins,
			AllowedMethods: DefaultPublicMethods,
			AllowedHeaders: DefaultHeaders,
			ExposedHeaders: DefaultExposedHeaders,
			MaxAge:         s.MaxAgePublic,
		},
		Authenticated: Profile{
			Origins:          appOrigins,
			AllowedMethods:   DefaultMethods,
			AllowedHeaders:   DefaultHeaders,
			ExposedHeaders:   DefaultExposedHeaders,
			AllowCredentials: true,
			MaxAge:           s.MaxAgeAuthenticated,
		},
		Admin: Profile{
			Origins:          adminOrigins,
			AllowedMethods:   DefaultMethods,
			AllowedHeaders:   DefaultHeaders,
			ExposedHeaders:   DefaultExposedHeaders,
			AllowCredentials: true,
			MaxAge:           s.MaxAgeAdmin,
		},
		Webhook: Profile{Disabled: true},
	}
}

// Report is the outcome of Validate.
type Report struct {
	Errors   []string
	Warnings []string
}

// OK reports whether there are no errors.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// Err joins the errors into one error, or returns nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, msg := range r.Errors {
		errs[i] = errors.New(msg)
	}
	return fmt.Errorf("invalid CORS configuration: %w", errors.Join(errs...))
}

// Validate checks profiles for unsafe or suspicious settings. It is meant to
// run once at startup.
func Validate(production bool, profiles Profiles) Report {
	var r Report
	check := func(kind Kind, p Profile) {
		if p.Disabled {
			return
		}
		origins, dynamic := literals(p.Origins)
		wildcard := false
		for _, o := range origins {
			if o == "*" {
				wildcard = true
			}
		}

		if len(origins) == 0 && !dynamic {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: origin list is empty", kind))
		}
		if production && wildcard {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: wildcard origin is not allowed in production", kind))
		}
		if wildcard && p.AllowCredentials {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: credentials cannot be combined with a wildcard origin", kind))
		}
		for _, o := range origins {
			if strings.HasPrefix(strings.ToLower(o), "http://") {
				r.Warnings = append(r.Warnings, fmt.Sprintf("%s: origin %s does not use HTTPS", kind, o))
			}
		}
		if p.MaxAge > maxReasonableMaxAge {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: max-age %d exceeds %d seconds", kind, p.MaxAge, maxReasonableMaxAge))
		}
	}

	check(KindPublic, profiles.Public)
	check(KindAuthenticated, profiles.Authenticated)
	check(KindAdmin, profiles.Admin)
	check(KindWebhook, profiles.Webhook)
	return r
}
