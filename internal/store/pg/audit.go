package pg

import (
	"context"
	"database/sql"

	"exgate.org/internal/audit"
)

// AuditLog is the Postgres-backed append-only audit store.
type AuditLog struct {
	db *sql.DB
}

// AuditLog returns the audit store bound to this connection.
func (s *Store) AuditLog() *AuditLog { return &AuditLog{db: s.db} }

var _ audit.Store = (*AuditLog)(nil)

func (a *AuditLog) Append(ctx context.Context, entry *audit.Entry) error {
	_, err := a.db.ExecContext(ctx, `
		insert into audit_log (id, user_id, action, details, created_at)
		values ($1, $2, $3, $4, $5)
	`, entry.ID, entry.UserID, entry.Action, entry.Details, entry.CreatedAt)
	return err
}

func (a *AuditLog) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := a.db.QueryContext(ctx, `
		select id, user_id, action, details, created_at
		from audit_log
		order by created_at desc, id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
