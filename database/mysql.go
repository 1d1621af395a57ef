package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Connect opens and pings a MySQL pool. The DSN must set parseTime=true.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Schema is the DDL CreateTables applies, in order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          VARCHAR(36) PRIMARY KEY,
		full_name   VARCHAR(100) NOT NULL,
		username    VARCHAR(20) NOT NULL,
		email       VARCHAR(255) NOT NULL,
		password    VARCHAR(255) NOT NULL,
		profile_pic VARCHAR(512) NOT NULL DEFAULT '',
		created_at  DATETIME(3) NOT NULL,
		updated_at  DATETIME(3) NOT NULL,
		UNIQUE KEY uk_username (username),
		UNIQUE KEY uk_email (email)
	)`,
	`CREATE TABLE IF NOT EXISTS friendships (
		id           VARCHAR(36) PRIMARY KEY,
		requester_id VARCHAR(36) NOT NULL,
		recipient_id VARCHAR(36) NOT NULL,
		pair_low     VARCHAR(36) NOT NULL,
		pair_high    VARCHAR(36) NOT NULL,
		status       ENUM('pending', 'accepted', 'rejected') NOT NULL DEFAULT 'pending',
		created_at   DATETIME(3) NOT NULL,
		updated_at   DATETIME(3) NOT NULL,
		UNIQUE KEY uk_pair (pair_low, pair_high),
		UNIQUE KEY uk_direction (requester_id, recipient_id),
		INDEX idx_recipient_status (recipient_id, status)
	)`,
	`CREATE TABLE IF NOT EXISTS friend_links (
		user_id    VARCHAR(36) NOT NULL,
		friend_id  VARCHAR(36) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		PRIMARY KEY (user_id, friend_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          VARCHAR(36) PRIMARY KEY,
		sender_id   VARCHAR(36) NOT NULL,
		receiver_id VARCHAR(36) NOT NULL,
		text        TEXT NULL,
		image_url   VARCHAR(512) NULL,
		status      ENUM('sent', 'delivered', 'seen') NOT NULL DEFAULT 'sent',
		created_at  DATETIME(3) NOT NULL,
		INDEX idx_receiver_status (receiver_id, status),
		INDEX idx_pair_time (sender_id, receiver_id, created_at)
	)`,
}

func CreateTables(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
