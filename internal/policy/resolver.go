// Package policy maps request paths to route authorization rules.
//
// Resolution is three-tiered: an exact page route wins over an API prefix,
// which wins over the static prefix of a dynamic page route. Within each
// tier the first rule in configured order wins. A path that matches nothing
// has no policy and is treated as public.
package policy

import (
	"slices"
	"strings"

	"github.com/athleticlabs/fuelgate/internal/identity"
)

// Rule is one configured route entry.
type Rule struct {
	// Path is an exact page path such as /orders/[orderId] for page rules,
	// or a path prefix for API rules.
	Path         string                `yaml:"path"`
	RequiresAuth bool                  `yaml:"requires_auth"`
	Roles        []identity.Role       `yaml:"roles,omitempty"`
	Permissions  []identity.Permission `yaml:"permissions,omitempty"`
}

// Table is the full route configuration.
type Table struct {
	Pages []Rule `yaml:"pages"`
	APIs  []Rule `yaml:"apis"`
}

// RouteConfig is the authorization requirement for a resolved path.
// Callers must treat it as read-only.
type RouteConfig struct {
	// Pattern is the configured path that matched.
	Pattern      string
	RequiresAuth bool
	// Roles is empty when any authenticated role is accepted.
	Roles []identity.Role
	// Permissions lists flags that must all be granted.
	Permissions []identity.Permission
}

// AllowsRole reports whether role satisfies the role restriction.
func (c *RouteConfig) AllowsRole(role identity.Role) bool {
	return len(c.Roles) == 0 || slices.Contains(c.Roles, role)
}

// RequiresPermissions reports whether a fine-grained check applies.
func (c *RouteConfig) RequiresPermissions() bool {
	return len(c.Permissions) > 0
}

type pageRoute struct {
	exact  string
	prefix string
	config *RouteConfig
}

// Resolver resolves paths against a validated Table. It is immutable and
// safe for concurrent use.
type Resolver struct {
	pages []pageRoute
	apis  []*RouteConfig
}

// NewResolver validates t and builds a resolver from it.
func NewResolver(t Table) (*Resolver, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	r := &Resolver{}
	for _, rule := range t.Pages {
		r.pages = append(r.pages, pageRoute{
			exact:  rule.Path,
			prefix: StaticPrefix(rule.Path),
			config: toConfig(rule),
		})
	}
	for _, rule := range t.APIs {
		r.apis = append(r.apis, toConfig(rule))
	}
	return r, nil
}

// MustDefault returns a resolver over DefaultTable. It panics if the default
// table is invalid, which is a programming error.
func MustDefault() *Resolver {
	r, err := NewResolver(DefaultTable())
	if err != nil {
		panic("policy: invalid default table: " + err.Error())
	}
	return r
}

// Resolve returns the rule governing path, or nil when no rule applies.
func (r *Resolver) Resolve(path string) *RouteConfig {
	for _, p := range r.pages {
		if p.exact == path {
			return p.config
		}
	}
	for _, api := range r.apis {
		if strings.HasPrefix(path, api.Pattern) {
			return api
		}
	}
	for _, p := range r.pages {
		if strings.HasPrefix(path, p.prefix) {
			return p.config
		}
	}
	return nil
}

// StaticPrefix returns the part of a page path before its first dynamic
// segment marker. Paths without a marker are returned unchanged.
func StaticPrefix(path string) string {
	if i := strings.IndexByte(path, '['); i >= 0 {
		return path[:i]
	}
	return path
}

func toConfig(rule Rule) *RouteConfig {
	return &RouteConfig{
		Pattern:      rule.Path,
		RequiresAuth: rule.RequiresAuth,
		Roles:        slices.Clone(rule.Roles),
		Permissions:  slices.Clone(rule.Permissions),
	}
}
