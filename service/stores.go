package service

import (
	"context"
	"io"
	"time"

	"pairchat/models"
)

type UserStore interface {
	Create(ctx context.Context, u models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	ListExcept(ctx context.Context, userID string) ([]models.UserSummary, error)
	Search(ctx context.Context, excludeID, query string, limit int) ([]models.UserSummary, error)
	UpdateProfilePic(ctx context.Context, userID, url string, at time.Time) error
	UpdatePassword(ctx context.Context, userID, hash string, at time.Time) error
}

// FriendshipStore persists one record per unordered user pair. Every
// mutating method is guarded on the record's current status and reports
// whether a row changed.
type FriendshipStore interface {
	FindByPair(ctx context.Context, a, b string) (models.Friendship, error)
	GetByID(ctx context.Context, id string) (models.Friendship, error)
	// Create fails with models.ErrDuplicate when the pair already has a record.
	Create(ctx context.Context, f models.Friendship) error
	// Revive moves a rejected record back to pending with the new direction.
	Revive(ctx context.Context, id, requesterID, recipientID string, at time.Time) (bool, error)
	// Accept moves a pending record to accepted and adds mutual friend links.
	Accept(ctx context.Context, id, recipientID string, at time.Time) (bool, error)
	Reject(ctx context.Context, id, recipientID string, at time.Time) (bool, error)
	// RemoveAccepted deletes the accepted record and both friend links.
	RemoveAccepted(ctx context.Context, a, b string) (bool, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]models.UserSummary, error)
	ListIncoming(ctx context.Context, userID string) ([]models.FriendRequest, error)
	// ListActive returns the user's pending and accepted records.
	ListActive(ctx context.Context, userID string) ([]models.Friendship, error)
}

// MessageStore persists messages. Status updates only ever move rows forward.
type MessageStore interface {
	Create(ctx context.Context, m models.Message) error
	Conversation(ctx context.Context, a, b string, before time.Time, limit int) ([]models.Message, error)
	// MarkDelivered flips every sent message addressed to receiverID to
	// delivered in one batch and returns the distinct senders of those rows.
	MarkDelivered(ctx context.Context, receiverID string) ([]string, error)
	// MarkMessageDelivered flips a single message from sent to delivered.
	MarkMessageDelivered(ctx context.Context, id string) (bool, error)
	// MarkSeen flips every not-yet-seen message from senderID to receiverID.
	MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error)
	UnreadCount(ctx context.Context, receiverID, senderID string) (int, error)
	UnreadCounts(ctx context.Context, receiverID string) (map[string]int, error)
}

// Presence is the subset of the presence registry the services push through.
type Presence interface {
	IsOnline(userID string) bool
	Send(userID, event string, payload any) bool
}

// ImageStore saves uploaded image bytes and returns a public URL.
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
