// Package sqlstore implements the service stores on MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"pairchat/models"
)

const mysqlDuplicateEntry = 1062

// mapWriteErr turns a unique key violation into models.ErrDuplicate.
func mapWriteErr(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// inTx runs fn in a transaction and commits if it returns nil.
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Stores bundles the three MySQL stores over one pool.
type Stores struct {
	Users       *UserStore
	Friendships *FriendshipStore
	Messages    *MessageStore
}

func New(db *sql.DB) Stores {
	return Stores{
		Users:       NewUserStore(db),
		Friendships: NewFriendshipStore(db),
		Messages:    NewMessageStore(db),
	}
}
