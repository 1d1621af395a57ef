package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pairchat/models"
)

type FriendshipStore struct {
	db *sql.DB
}

func NewFriendshipStore(db *sql.DB) *FriendshipStore {
	return &FriendshipStore{db: db}
}

const friendshipColumns = `id, requester_id, recipient_id, status, created_at, updated_at`

func scanFriendship(row interface{ Scan(...any) error }) (models.Friendship, error) {
	var f models.Friendship
	err := row.Scan(&f.ID, &f.RequesterID, &f.RecipientID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (s *FriendshipStore) FindByPair(ctx context.Context, a, b string) (models.Friendship, error) {
	const q = `SELECT ` + friendshipColumns + ` FROM friendships WHERE pair_low = ? AND pair_high = ?`
	low, high := models.PairKey(a, b)
	f, err := scanFriendship(s.db.QueryRowContext(ctx, q, low, high))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Friendship{}, fmt.Errorf("friendship %s/%s: %w", a, b, models.ErrNotFound)
	}
	if err != nil {
		return models.Friendship{}, fmt.Errorf("find friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipStore) GetByID(ctx context.Context, id string) (models.Friendship, error) {
	const q = `SELECT ` + friendshipColumns + ` FROM friendships WHERE id = ?`
	f, err := scanFriendship(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Friendship{}, fmt.Errorf("friendship %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Friendship{}, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipStore) Create(ctx context.Context, f models.Friendship) error {
	const q = `
		INSERT INTO friendships (id, requester_id, recipient_id, pair_low, pair_high, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	low, high := models.PairKey(f.RequesterID, f.RecipientID)
	_, err := s.db.ExecContext(ctx, q, f.ID, f.RequesterID, f.RecipientID, low, high, f.Status, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return mapWriteErr("create friendship", err)
	}
	return nil
}

func (s *FriendshipStore) Revive(ctx context.Context, id, requesterID, recipientID string, at time.Time) (bool, error) {
	const q = `
		UPDATE friendships
		SET requester_id = ?, recipient_id = ?, status = 'pending', updated_at = ?
		WHERE id = ? AND status = 'rejected'
	`
	return execChanged(ctx, s.db, "revive friendship", q, requesterID, recipientID, at, id)
}

func (s *FriendshipStore) Accept(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	const (
		lockQ = `
			SELECT requester_id FROM friendships
			WHERE id = ? AND recipient_id = ? AND status = 'pending'
			FOR UPDATE
		`
		updateQ = `UPDATE friendships SET status = 'accepted', updated_at = ? WHERE id = ?`
		linkQ   = `INSERT IGNORE INTO friend_links (user_id, friend_id, created_at) VALUES (?, ?, ?), (?, ?, ?)`
	)

	accepted := false
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		var requesterID string
		err := tx.QueryRowContext(ctx, lockQ, id, recipientID).Scan(&requesterID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("accept friendship: %w", err)
		}
		if _, err := tx.ExecContext(ctx, updateQ, at, id); err != nil {
			return fmt.Errorf("accept friendship: %w", err)
		}
		if _, err := tx.ExecContext(ctx, linkQ, requesterID, recipientID, at, recipientID, requesterID, at); err != nil {
			return fmt.Errorf("link friends: %w", err)
		}
		accepted = true
		return nil
	})
	return accepted, err
}

func (s *FriendshipStore) Reject(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	const q = `
		UPDATE friendships
		SET status = 'rejected', updated_at = ?
		WHERE id = ? AND recipient_id = ? AND status = 'pending'
	`
	return execChanged(ctx, s.db, "reject friendship", q, at, id, recipientID)
}

func (s *FriendshipStore) RemoveAccepted(ctx context.Context, a, b string) (bool, error) {
	const (
		deleteQ = `DELETE FROM friendships WHERE pair_low = ? AND pair_high = ? AND status = 'accepted'`
		unlinkQ = `DELETE FROM friend_links WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`
	)
	low, high := models.PairKey(a, b)

	removed := false
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteQ, low, high)
		if err != nil {
			return fmt.Errorf("remove friendship: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove friendship: %w", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, unlinkQ, a, b, b, a); err != nil {
			return fmt.Errorf("unlink friends: %w", err)
		}
		removed = true
		return nil
	})
	return removed, err
}

func (s *FriendshipStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM friend_links WHERE user_id = ? AND friend_id = ?)`
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, a, b).Scan(&ok); err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return ok, nil
}

func (s *FriendshipStore) ListFriends(ctx context.Context, userID string) ([]models.UserSummary, error) {
	const q = `
		SELECT u.id, u.full_name, u.username, u.profile_pic
		FROM friend_links l
		JOIN users u ON u.id = l.friend_id
		WHERE l.user_id = ?
		ORDER BY u.username ASC
	`
	return querySummaries(ctx, s.db, "list friends", q, userID)
}

func (s *FriendshipStore) ListIncoming(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	const q = `
		SELECT f.id, f.created_at, f.updated_at, u.id, u.full_name, u.username, u.profile_pic
		FROM friendships f
		JOIN users u ON u.id = f.requester_id
		WHERE f.recipient_id = ? AND f.status = 'pending'
		ORDER BY f.updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming: %w", err)
	}
	defer rows.Close()

	var out []models.FriendRequest
	for rows.Next() {
		var r models.FriendRequest
		if err := rows.Scan(
			&r.ID, &r.CreatedAt, &r.UpdatedAt,
			&r.Requester.ID, &r.Requester.FullName, &r.Requester.Username, &r.Requester.ProfilePic,
		); err != nil {
			return nil, fmt.Errorf("list incoming: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list incoming: %w", err)
	}
	return out, nil
}

func (s *FriendshipStore) ListActive(ctx context.Context, userID string) ([]models.Friendship, error) {
	const q = `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE (requester_id = ? OR recipient_id = ?) AND status IN ('pending', 'accepted')
	`
	rows, err := s.db.QueryContext(ctx, q, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	defer rows.Close()

	var out []models.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("list friendships: scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execChanged runs a guarded update and reports whether any row matched.
func execChanged(ctx context.Context, db execer, op, q string, args ...any) (bool, error) {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
