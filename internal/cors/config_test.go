package cors

import (
	"strings"
	"testing"
)

func hasMessage(list []string, substr string) bool {
	for _, m := range list {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestValidate_ProductionDefaults(t *testing.T) {
	s := DefaultSettings()
	s.Production = true
	s.AllowedOrigins = []string{"https://app.athleticlabs.test"}
	s.AdminOrigins = []string{"https://admin.athleticlabs.test"}

	r := Validate(true, BuildProfiles(s))
	if !r.OK() {
		t.Errorf("expected valid config, got errors %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", r.Warnings)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		profiles   Profiles
		want       string
	}{
		{
			name:       "wildcard in production",
			production: true,
			profiles:   Profiles{Public: Profile{Origins: AllowAll(true)}, Webhook: Profile{Disabled: true}},
			want:       "wildcard origin is not allowed in production",
		},
		{
			name:       "exact wildcard in production",
			production: true,
			profiles:   Profiles{Public: Profile{Origins: ExactOrigin("*")}},
			want:       "wildcard origin is not allowed in production",
		},
		{
			name:     "empty origin list",
			profiles: Profiles{Authenticated: Profile{Origins: Origins()}},
			want:     "authenticated: origin list is empty",
		},
		{
			name:     "nil origins",
			profiles: Profiles{Admin: Profile{}},
			want:     "admin: origin list is empty",
		},
		{
			name:     "credentials with wildcard",
			profiles: Profiles{Authenticated: Profile{Origins: AllowAll(true), AllowCredentials: true}},
			want:     "credentials cannot be combined with a wildcard origin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.production, tt.profiles)
			if r.OK() {
				t.Fatal("expected errors")
			}
			if !hasMessage(r.Errors, tt.want) {
				t.Errorf("errors %v do not contain %q", r.Errors, tt.want)
			}
			if r.Err() == nil {
				t.Error("expected Err() to be non-nil")
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	profiles := Profiles{
		Public:        Profile{Origins: Origins("http://app.athleticlabs.test")},
		Authenticated: Profile{Origins: Origins("https://app.athleticlabs.test"), MaxAge: 7 * 86400},
		Admin:         Profile{Origins: Origins("https://admin.athleticlabs.test")},
		Webhook:       Profile{Disabled: true},
	}
	r := Validate(true, profiles)
	if !r.OK() {
		t.Fatalf("expected no errors, got %v", r.Errors)
	}
	if !hasMessage(r.Warnings, "does not use HTTPS") {
		t.Errorf("expected plaintext warning, got %v", r.Warnings)
	}
	if !hasMessage(r.Warnings, "max-age") {
		t.Errorf("expected max-age warning, got %v", r.Warnings)
	}
}

func TestValidate_DevelopmentPredicate(t *testing.T) {
	r := Validate(false, BuildProfiles(DefaultSettings()))
	if !r.OK() {
		t.Errorf("expected dev profiles with predicate to be valid, got %v", r.Errors)
	}
}

func TestValidate_ProductionRequiresOrigins(t *testing.T) {
	s := DefaultSettings()
	s.Production = true
	r := Validate(true, BuildProfiles(s))
	if r.OK() {
		t.Fatal("expected empty production origin lists to fail")
	}
	for _, kind := range []string{"public", "authenticated", "admin"} {
		if !hasMessage(r.Errors, kind+": origin list is empty") {
			t.Errorf("missing empty-list error for %s in %v", kind, r.Errors)
		}
	}
}

func TestBuildProfiles(t *testing.T) {
	s := DefaultSettings()
	s.AllowedOrigins = []string{"https://app.athleticlabs.test"}
	p := BuildProfiles(s)

	if p.Public.AllowCredentials {
		t.Error("public profile must not allow credentials")
	}
	if !p.Authenticated.AllowCredentials || !p.Admin.AllowCredentials {
		t.Error("authenticated and admin profiles must allow credentials")
	}
	if !p.Webhook.Disabled {
		t.Error("webhook profile must be disabled")
	}
	if p.Public.MaxAge != 300 || p.Authenticated.MaxAge != 3600 || p.Admin.MaxAge != 0 {
		t.Errorf("unexpected max-age values %d/%d/%d", p.Public.MaxAge, p.Authenticated.MaxAge, p.Admin.MaxAge)
	}
	if !p.Authenticated.Origins.Allow("http://localhost:3000") {
		t.Error("expected dev origins outside production")
	}

	s.Production = true
	prod := BuildProfiles(s)
	if prod.Authenticated.Origins.Allow("http://localhost:3000") {
		t.Error("expected no dev origins in production")
	}
}
