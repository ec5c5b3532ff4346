package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/athleticlabs/fuelgate/internal/identity"
	"github.com/athleticlabs/fuelgate/internal/tracing"
)

// Postgres implements ProfileStore and PermissionStore over the
// application's profiles, teams and team_member_permissions tables.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const profileQuery = `
	SELECT p.id, p.role, COALESCE(p.team_id::text, ''), p.is_active, COALESCE(t.is_active, false)
	FROM profiles p
	LEFT JOIN teams t ON t.id = p.team_id
	WHERE p.id = $1
`

// GetProfile implements ProfileStore. Profile and team activity are read in
// one round-trip.
func (s *Postgres) GetProfile(ctx context.Context, userID string) (_ *identity.Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var (
		p    identity.Profile
		role string
	)
	err = s.db.QueryRowContext(ctx, profileQuery, userID).Scan(
		&p.UserID, &role, &p.TeamID, &p.IsActive, &p.TeamIsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	p.Role, err = identity.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", userID, err)
	}
	return &p, nil
}

const permissionsQuery = `
	SELECT can_place_orders, can_manage_team, can_view_billing,
	       can_manage_menus, can_view_analytics, can_manage_calendar
	FROM team_member_permissions
	WHERE user_id = $1 AND team_id = $2
`

// GetPermissions implements PermissionStore.
func (s *Postgres) GetPermissions(ctx context.Context, userID, teamID string) (_ identity.Permissions, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "team_member_permissions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var placeOrders, manageTeam, viewBilling, manageMenus, viewAnalytics, manageCalendar bool
	err = s.db.QueryRowContext(ctx, permissionsQuery, userID, teamID).Scan(
		&placeOrders, &manageTeam, &viewBilling, &manageMenus, &viewAnalytics, &manageCalendar,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}

	return identity.Permissions{
		identity.PermPlaceOrders:    placeOrders,
		identity.PermManageTeam:     manageTeam,
		identity.PermViewBilling:    viewBilling,
		identity.PermManageMenus:    manageMenus,
		identity.PermViewAnalytics:  viewAnalytics,
		identity.PermManageCalendar: manageCalendar,
	}, nil
}
