package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
)

// Friendship is the single relationship record for an unordered user pair.
// Absence of a record means "no relationship".
type Friendship struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requesterId"`
	RecipientID string           `json:"recipientId"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Involves reports whether userID is one side of the pair.
func (f *Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.RecipientID == userID
}

// Other returns the id on the opposite side of userID.
func (f *Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}

// PairKey returns the canonical (low, high) ordering of two user ids. The
// storage layer keys its uniqueness constraint on it.
func PairKey(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

type FriendRequest struct {
	ID        string      `json:"id"`
	Requester UserSummary `json:"requester"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FriendshipRef annotates a search result with the viewer's relationship.
type FriendshipRef struct {
	FriendshipID string           `json:"friendshipId"`
	Status       FriendshipStatus `json:"status"`
	IsSender     bool             `json:"isSender"`
}

type UserSearchResult struct {
	UserSummary
	Friendship *FriendshipRef `json:"friendship"`
}
