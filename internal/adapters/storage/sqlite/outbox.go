package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// OutboxMessage is a queued notification e-mail.
type OutboxMessage struct {
	ID        int64
	Recipient string
	Subject   string
	BodyHTML  string
	CreatedAt time.Time
	SentAt    *time.Time
}

// SendHTML queues a message in the outbox for a delivery worker to drain.
func (r *Repository) SendHTML(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("outbox recipient is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_outbox(recipient, subject, body_html, created_at) VALUES (?, ?, ?, ?)
	`, to, subject, body, ts(time.Now()))
	return err
}

// PendingNotifications lists unsent messages, oldest first. limit <= 0 means no limit.
func (r *Repository) PendingNotifications(ctx context.Context, limit int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recipient, subject, body_html, created_at, sent_at
		FROM notification_outbox
		WHERE sent_at IS NULL
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]OutboxMessage, 0)
	for rows.Next() {
		var (
			msg        OutboxMessage
			createdRaw string
			sentRaw    sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.Recipient, &msg.Subject, &msg.BodyHTML, &createdRaw, &sentRaw); err != nil {
			return nil, err
		}
		msg.CreatedAt = parseTS(createdRaw)
		msg.SentAt = parseNullTS(sentRaw)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MarkNotificationSent records delivery of an outbox message.
func (r *Repository) MarkNotificationSent(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notification_outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL`, ts(at), id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}
