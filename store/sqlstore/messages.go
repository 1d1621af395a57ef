package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pairchat/models"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

const messageColumns = `id, sender_id, receiver_id, text, image_url, status, created_at`

func (s *MessageStore) Create(ctx context.Context, m models.Message) error {
	const q = `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	var text, image sql.NullString
	if m.Text != nil {
		text = sql.NullString{String: *m.Text, Valid: true}
	}
	if m.ImageURL != "" {
		image = sql.NullString{String: m.ImageURL, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, q, m.ID, m.SenderID, m.ReceiverID, text, image, m.Status, m.CreatedAt); err != nil {
		return mapWriteErr("create message", err)
	}
	return nil
}

// Conversation pages newest-first in SQL and returns the page oldest-first.
func (s *MessageStore) Conversation(ctx context.Context, a, b string, before time.Time, limit int) ([]models.Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))`
	args := []any{a, b, b, a}
	if !before.IsZero() {
		q += ` AND created_at < ?`
		args = append(args, before)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	var page []models.Message
	for rows.Next() {
		var (
			m     models.Message
			text  sql.NullString
			image sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &text, &image, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("list conversation: scan: %w", err)
		}
		if text.Valid {
			t := text.String
			m.Text = &t
		}
		m.ImageURL = image.String
		m.HasImage = image.Valid && image.String != ""
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}

	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// MarkDelivered locks the receiver's sent rows, collects their senders and
// flips them in one transaction so the returned senders match the update.
func (s *MessageStore) MarkDelivered(ctx context.Context, receiverID string) ([]string, error) {
	const (
		lockQ = `
			SELECT DISTINCT sender_id FROM messages
			WHERE receiver_id = ? AND status = 'sent'
			ORDER BY sender_id
			FOR UPDATE
		`
		updateQ = `UPDATE messages SET status = 'delivered' WHERE receiver_id = ? AND status = 'sent'`
	)

	var senders []string
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, lockQ, receiverID)
		if err != nil {
			return fmt.Errorf("mark delivered: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("mark delivered: scan: %w", err)
			}
			senders = append(senders, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("mark delivered: %w", err)
		}
		rows.Close()

		if len(senders) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, updateQ, receiverID); err != nil {
			return fmt.Errorf("mark delivered: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return senders, nil
}

func (s *MessageStore) MarkMessageDelivered(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE messages SET status = 'delivered' WHERE id = ? AND status = 'sent'`
	return execChanged(ctx, s.db, "mark message delivered", q, id)
}

func (s *MessageStore) MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	const q = `
		UPDATE messages SET status = 'seen'
		WHERE sender_id = ? AND receiver_id = ? AND status <> 'seen'
	`
	res, err := s.db.ExecContext(ctx, q, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	return n, nil
}

func (s *MessageStore) UnreadCount(ctx context.Context, receiverID, senderID string) (int, error) {
	const q = `
		SELECT COUNT(*) FROM messages
		WHERE receiver_id = ? AND sender_id = ? AND status <> 'seen'
	`
	var n int
	if err := s.db.QueryRowContext(ctx, q, receiverID, senderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (s *MessageStore) UnreadCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	const q = `
		SELECT sender_id, COUNT(*) FROM messages
		WHERE receiver_id = ? AND status <> 'seen'
		GROUP BY sender_id
	`
	rows, err := s.db.QueryContext(ctx, q, receiverID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			senderID string
			n        int
		)
		if err := rows.Scan(&senderID, &n); err != nil {
			return nil, fmt.Errorf("unread counts: scan: %w", err)
		}
		counts[senderID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	return counts, nil
}
