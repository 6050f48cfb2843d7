package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"exgate.org/internal/exchange"
)

// Notifications is the Postgres-backed notification store.
type Notifications struct {
	db *sql.DB
}

// Notifications returns the notification store bound to this connection.
func (s *Store) Notifications() *Notifications { return &Notifications{db: s.db} }

var _ exchange.NotificationStore = (*Notifications)(nil)

const notificationColumns = `id, request_id, coalesce(recipient_user_id, ''), message, is_read, created_at`

func (n *Notifications) Create(ctx context.Context, notif *exchange.Notification) error {
	_, err := n.db.ExecContext(ctx, `
		insert into notifications (id, request_id, recipient_user_id, message, is_read, created_at)
		values ($1, $2, nullif($3, ''), $4, $5, $6)
	`, notif.ID, notif.RequestID, notif.RecipientUserID, notif.Message, notif.IsRead, notif.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: request does not exist", exchange.ErrNotFound)
		}
		return err
	}
	return nil
}

func (n *Notifications) ListByRequest(ctx context.Context, requestID string) ([]exchange.Notification, error) {
	rows, err := n.db.QueryContext(ctx, `
		select `+notificationColumns+`
		from notifications
		where request_id = $1
		order by created_at desc, id desc
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (n *Notifications) ListForUser(ctx context.Context, userID string) ([]exchange.Notification, error) {
	rows, err := n.db.QueryContext(ctx, `
		select `+notificationColumns+`
		from notifications
		where recipient_user_id = $1 or recipient_user_id is null
		order by created_at desc, id desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (n *Notifications) SetRead(ctx context.Context, id string, read bool) (exchange.Notification, error) {
	row := n.db.QueryRowContext(ctx, `
		update notifications
		set is_read = $2
		where id = $1
		returning `+notificationColumns+`
	`, id, read)
	notif, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.Notification{}, exchange.ErrNotFound
	}
	return notif, err
}

func (n *Notifications) Delete(ctx context.Context, id string) error {
	res, err := n.db.ExecContext(ctx, `delete from notifications where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return exchange.ErrNotFound
	}
	return nil
}

func collectNotifications(rows *sql.Rows) ([]exchange.Notification, error) {
	var out []exchange.Notification
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, notif)
	}
	return out, rows.Err()
}

func scanNotification(row rowScanner) (exchange.Notification, error) {
	var notif exchange.Notification
	err := row.Scan(&notif.ID, &notif.RequestID, &notif.RecipientUserID,
		&notif.Message, &notif.IsRead, &notif.CreatedAt)
	if err != nil {
		return exchange.Notification{}, err
	}
	return notif, nil
}
