package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/athleticlabs/fuelgate/internal/tracing"
)

// PostgresRepository stores audit entries in the access_audit_log table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed audit repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertEntryQuery = `
	INSERT INTO access_audit_log
		(id, user_id, team_id, path, method, ip_address, user_agent, request_id, created_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)
`

// Record implements Sink.
func (r *PostgresRepository) Record(ctx context.Context, ev Event) (err error) {
	if ev.UserID == "" {
		return ErrEmptyUserID
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "access_audit_log", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = r.db.ExecContext(ctx, insertEntryQuery,
		uuid.New().String(), ev.UserID, ev.TeamID, ev.Path, ev.Method,
		ev.IPAddress, ev.UserAgent, ev.RequestID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

const queryByUserQuery = `
	SELECT id, user_id, COALESCE(team_id, ''), path, method,
	       COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''), created_at
	FROM access_audit_log
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT NULLIF($2, 0)
`

// QueryByUser implements Repository.
func (r *PostgresRepository) QueryByUser(ctx context.Context, userID string, limit int) (_ []*Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "access_audit_log", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, queryByUserQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var results []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.Event.UserID, &e.Event.TeamID, &e.Event.Path, &e.Event.Method,
			&e.Event.IPAddress, &e.Event.UserAgent, &e.Event.RequestID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		results = append(results, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return results, nil
}
