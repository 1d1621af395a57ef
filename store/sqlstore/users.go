package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pairchat/models"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, full_name, username, email, password, profile_pic, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, u models.User) error {
	const q = `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q,
		u.ID, u.FullName, u.Username, u.Email, u.PasswordHash, u.ProfilePic, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("create user", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *UserStore) getOne(ctx context.Context, q, arg string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.FullName, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", arg, models.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListExcept(ctx context.Context, userID string) ([]models.UserSummary, error) {
	const q = `
		SELECT id, full_name, username, profile_pic
		FROM users
		WHERE id <> ?
		ORDER BY username ASC
	`
	return querySummaries(ctx, s.db, "list users", q, userID)
}

func (s *UserStore) Search(ctx context.Context, excludeID, query string, limit int) ([]models.UserSummary, error) {
	const q = `
		SELECT id, full_name, username, profile_pic
		FROM users
		WHERE id <> ? AND (LOWER(username) LIKE ? OR LOWER(full_name) LIKE ?)
		ORDER BY username ASC
		LIMIT ?
	`
	pattern := "%" + escapeLike(query) + "%"
	return querySummaries(ctx, s.db, "search users", q, excludeID, pattern, pattern, limit)
}

func (s *UserStore) UpdateProfilePic(ctx context.Context, userID, url string, at time.Time) error {
	const q = `UPDATE users SET profile_pic = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, url, at, userID)
	if err != nil {
		return fmt.Errorf("update profile pic: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile pic: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID, hash string, at time.Time) error {
	const q = `UPDATE users SET password = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, hash, at, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySummaries(ctx context.Context, db queryer, op, q string, args ...any) ([]models.UserSummary, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.FullName, &u.Username, &u.ProfilePic); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
