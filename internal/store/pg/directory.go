package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"exgate.org/internal/directory"
)

// Institutions is the Postgres-backed read-only institution directory.
type Institutions struct {
	db *sql.DB
}

// Institutions returns the directory lookup bound to this connection.
func (s *Store) Institutions() *Institutions { return &Institutions{db: s.db} }

var _ directory.Directory = (*Institutions)(nil)

func (d *Institutions) Find(ctx context.Context, id string) (directory.Institution, error) {
	row := d.db.QueryRowContext(ctx, `
		select id, name, kind, services, created_at
		from institutions
		where id = $1
	`, id)
	inst, err := scanInstitution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Institution{}, directory.ErrNotFound
	}
	return inst, err
}

func (d *Institutions) List(ctx context.Context) ([]directory.Institution, error) {
	rows, err := d.db.QueryContext(ctx, `
		select id, name, kind, services, created_at
		from institutions
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []directory.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstitution(row rowScanner) (directory.Institution, error) {
	var (
		inst        directory.Institution
		rawServices []byte
	)
	if err := row.Scan(&inst.ID, &inst.Name, &inst.Kind, &rawServices, &inst.CreatedAt); err != nil {
		return directory.Institution{}, err
	}
	if len(rawServices) > 0 {
		if err := json.Unmarshal(rawServices, &inst.Services); err != nil {
			return directory.Institution{}, fmt.Errorf("decode services: %w", err)
		}
	}
	return inst, nil
}
