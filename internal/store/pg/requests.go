package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exgate.org/internal/exchange"
)

// Requests is the Postgres-backed request store.
type Requests struct {
	db *sql.DB
}

// Requests returns the request store bound to this connection.
func (s *Store) Requests() *Requests { return &Requests{db: s.db} }

var _ exchange.RequestStore = (*Requests)(nil)

const requestColumns = `id, consumer_institution_id, consumer_institution_name, submitted_by,
	services, title, description, status, conversation_active,
	coalesce(admin_note, ''), decision_date, coalesce(reason, ''), created_at, updated_at`

func (r *Requests) Create(ctx context.Context, req *exchange.Request) error {
	services, err := json.Marshal(req.Services)
	if err != nil {
		return fmt.Errorf("marshal services: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		insert into exchange_requests (
			id, consumer_institution_id, consumer_institution_name, submitted_by,
			services, title, description, status, conversation_active, created_at, updated_at
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, req.ID, req.ConsumerInstitutionID, req.ConsumerInstitutionName, req.SubmittedBy,
		services, req.Title, req.Description, string(req.Status), req.ConversationActive, req.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: duplicate request id", exchange.ErrValidation)
		}
		return err
	}
	return nil
}

func (r *Requests) Get(ctx context.Context, id string) (exchange.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		select `+requestColumns+`
		from exchange_requests
		where id = $1
	`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.Request{}, exchange.ErrNotFound
	}
	return req, err
}

func (r *Requests) List(ctx context.Context, status *exchange.Status) ([]exchange.Request, error) {
	query := `
		select ` + requestColumns + `
		from exchange_requests
	`
	var args []any
	if status != nil {
		query += ` where status = $1`
		args = append(args, string(*status))
	}
	query += ` order by created_at desc, id desc`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []exchange.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Decide applies the status transition under a WHERE-status guard. Zero rows
// affected with an existing id means the request was already decided.
func (r *Requests) Decide(ctx context.Context, id string, status exchange.Status, reason string, decidedAt time.Time) (exchange.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		update exchange_requests
		set status = $2, decision_date = $3, reason = nullif($4, ''), updated_at = $3
		where id = $1 and status = 'Submitted'
		returning `+requestColumns+`
	`, id, string(status), decidedAt, reason)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.Request{}, r.classifyMiss(ctx, id)
	}
	return req, err
}

func (r *Requests) SetConversation(ctx context.Context, id string, active bool) (exchange.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		update exchange_requests
		set conversation_active = $2, updated_at = now()
		where id = $1
		returning `+requestColumns+`
	`, id, active)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.Request{}, exchange.ErrNotFound
	}
	return req, err
}

func (r *Requests) SetAdminNote(ctx context.Context, id, note string) (exchange.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		update exchange_requests
		set admin_note = nullif($2, ''), updated_at = now()
		where id = $1
		returning `+requestColumns+`
	`, id, note)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.Request{}, exchange.ErrNotFound
	}
	return req, err
}

// classifyMiss separates "no such request" from "guard matched zero rows".
func (r *Requests) classifyMiss(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `select 1 from exchange_requests where id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.ErrNotFound
	}
	if err != nil {
		return err
	}
	return exchange.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (exchange.Request, error) {
	var (
		req         exchange.Request
		rawServices []byte
		status      string
		decision    sql.NullTime
	)
	err := row.Scan(
		&req.ID, &req.ConsumerInstitutionID, &req.ConsumerInstitutionName, &req.SubmittedBy,
		&rawServices, &req.Title, &req.Description, &status, &req.ConversationActive,
		&req.AdminNote, &decision, &req.Reason, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return exchange.Request{}, err
	}
	req.Status = exchange.Status(status)
	if decision.Valid {
		d := decision.Time
		req.DecisionDate = &d
	}
	if len(rawServices) > 0 {
		if err := json.Unmarshal(rawServices, &req.Services); err != nil {
			return exchange.Request{}, fmt.Errorf("decode services: %w", err)
		}
	}
	return req, nil
}
