package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/athleticlabs/fuelgate/internal/identity"
)

// ErrInvalidTable is returned when a route table fails validation.
var ErrInvalidTable = errors.New("invalid route policy table")

var (
	anyStaff    = []identity.Role{identity.RoleTeamStaff, identity.RoleTeamAdmin}
	teamManager = []identity.Role{identity.RoleTeamAdmin, identity.RoleAthleticLabsAdmin}
	menuEditors = []identity.Role{identity.RoleTeamAdmin, identity.RoleAthleticLabsStaff, identity.RoleAthleticLabsAdmin}
	labsStaff   = []identity.Role{identity.RoleAthleticLabsStaff, identity.RoleAthleticLabsAdmin}
	labsAdmin   = []identity.Role{identity.RoleAthleticLabsAdmin}
)

// DefaultTable returns the built-in route configuration. More specific page
// rules are listed before the pages they nest under so that static-prefix
// matching reaches them first.
func DefaultTable() Table {
	return Table{
		Pages: []Rule{
			{Path: "/dashboard", RequiresAuth: true},
			{Path: "/checkout", RequiresAuth: true, Roles: anyStaff, Permissions: []identity.Permission{identity.PermPlaceOrders}},
			{Path: "/calendar", RequiresAuth: true},
			{Path: "/order-history", RequiresAuth: true},
			{Path: "/orders/[orderId]", RequiresAuth: true},
			{Path: "/menu-templates/[templateId]", RequiresAuth: true, Roles: menuEditors, Permissions: []identity.Permission{identity.PermManageMenus}},
			{Path: "/menu-templates", RequiresAuth: true, Roles: menuEditors, Permissions: []identity.Permission{identity.PermManageMenus}},
			{Path: "/team-management", RequiresAuth: true, Roles: teamManager, Permissions: []identity.Permission{identity.PermManageTeam}},
			{Path: "/settings", RequiresAuth: true},
			{Path: "/admin/users", RequiresAuth: true, Roles: labsAdmin},
			{Path: "/admin/teams/[teamId]", RequiresAuth: true, Roles: labsStaff},
			{Path: "/admin", RequiresAuth: true, Roles: labsStaff},
		},
		APIs: []Rule{
			{Path: "/api/v1/admin", RequiresAuth: true, Roles: labsStaff},
			{Path: "/api/v1/team", RequiresAuth: true},
			{Path: "/api/v1/orders", RequiresAuth: true},
			{Path: "/api/v1/menu", RequiresAuth: true},
			{Path: "/api/v1/deliveries", RequiresAuth: true},
			{Path: "/api/v1/profile", RequiresAuth: true},
			{Path: "/api/webhooks", RequiresAuth: false},
		},
	}
}

// LoadFile reads a YAML route table from path and validates it.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read route policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML route table. Unknown fields are
// rejected.
func Parse(data []byte) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Table{}, fmt.Errorf("invalid route policy YAML: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks every rule and reports all problems at once.
func (t Table) Validate() error {
	var errs []error

	if len(t.Pages) == 0 && len(t.APIs) == 0 {
		errs = append(errs, errors.New("table contains no rules"))
	}
	for i, rule := range t.Pages {
		errs = append(errs, validateRule("pages", i, rule)...)
		if StaticPrefix(rule.Path) == "/" {
			errs = append(errs, ruleError("pages", i, "page path would match every request"))
		}
		if open := strings.IndexByte(rule.Path, '['); open >= 0 && !strings.Contains(rule.Path[open:], "]") {
			errs = append(errs, ruleError("pages", i, "unterminated dynamic segment"))
		}
	}
	for i, rule := range t.APIs {
		errs = append(errs, validateRule("apis", i, rule)...)
		if strings.ContainsAny(rule.Path, "[]") {
			errs = append(errs, ruleError("apis", i, "api prefixes cannot contain dynamic segments"))
		}
		if rule.Path == "/" {
			errs = append(errs, ruleError("apis", i, "api prefix would match every request"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTable, errors.Join(errs...))
	}
	return nil
}

func validateRule(section string, i int, rule Rule) []error {
	var errs []error
	if strings.TrimSpace(rule.Path) == "" {
		errs = append(errs, ruleError(section, i, "path is required"))
	} else if !strings.HasPrefix(rule.Path, "/") {
		errs = append(errs, ruleError(section, i, "path must start with '/'"))
	}
	for _, role := range rule.Roles {
		if !role.Valid() {
			errs = append(errs, ruleError(section, i, fmt.Sprintf("unknown role %q", role)))
		}
	}
	for _, perm := range rule.Permissions {
		if !perm.Valid() {
			errs = append(errs, ruleError(section, i, fmt.Sprintf("unknown permission %q", perm)))
		}
	}
	if !rule.RequiresAuth && (len(rule.Roles) > 0 || len(rule.Permissions) > 0) {
		errs = append(errs, ruleError(section, i, "roles and permissions require requires_auth"))
	}
	return errs
}

func ruleError(section string, i int, msg string) error {
	return fmt.Errorf("%s[%d]: %s", section, i, msg)
}
