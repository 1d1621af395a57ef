package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pairchat/models"
)

const searchLimit = 20

// errRaced marks an attempt that lost a write race to a concurrent request
// for the same pair.
var errRaced = errors.New("friendship write raced")

// FriendshipLedger runs the friendship state machine for unordered user pairs.
type FriendshipLedger struct {
	Users       UserStore
	Friendships FriendshipStore
	Presence    Presence
	Log         zerolog.Logger
	Now         func() time.Time
	NewID       func() string
}

// Request creates, or revives after a rejection, the pending record from
// actorID to targetID. A uniqueness race is retried once against the record
// that won it.
func (l *FriendshipLedger) Request(ctx context.Context, actorID, targetID string) (models.Friendship, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return models.Friendship{}, models.NewValidationError(map[string]string{"recipientId": "required"})
	}
	if actorID == targetID {
		return models.Friendship{}, models.NewConflictError("cannot send a friend request to yourself")
	}
	if _, err := l.Users.GetByID(ctx, targetID); err != nil {
		return models.Friendship{}, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := l.tryRequest(ctx, actorID, targetID)
		if errors.Is(err, errRaced) {
			l.Log.Debug().Str("requester_id", actorID).Str("recipient_id", targetID).Int("attempt", attempt).Msg("friend request raced, retrying")
			continue
		}
		if err != nil {
			return models.Friendship{}, err
		}

		l.notifyRequest(ctx, f)
		return f, nil
	}
	return models.Friendship{}, fmt.Errorf("friend request %s -> %s: %w", actorID, targetID, models.ErrTransient)
}

func (l *FriendshipLedger) tryRequest(ctx context.Context, actorID, targetID string) (models.Friendship, error) {
	now := nowFrom(l.Now)

	existing, err := l.Friendships.FindByPair(ctx, actorID, targetID)
	if errors.Is(err, models.ErrNotFound) {
		f := models.Friendship{
			ID:          idFrom(l.NewID),
			RequesterID: actorID,
			RecipientID: targetID,
			Status:      models.FriendshipPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := l.Friendships.Create(ctx, f); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return models.Friendship{}, errRaced
			}
			return models.Friendship{}, err
		}
		return f, nil
	}
	if err != nil {
		return models.Friendship{}, err
	}

	switch existing.Status {
	case models.FriendshipPending:
		return models.Friendship{}, models.NewConflictError("friend request already pending")
	case models.FriendshipAccepted:
		return models.Friendship{}, models.NewConflictError("already friends")
	case models.FriendshipRejected:
		ok, err := l.Friendships.Revive(ctx, existing.ID, actorID, targetID, now)
		if err != nil {
			return models.Friendship{}, err
		}
		if !ok {
			return models.Friendship{}, errRaced
		}
		existing.RequesterID = actorID
		existing.RecipientID = targetID
		existing.Status = models.FriendshipPending
		existing.UpdatedAt = now
		return existing, nil
	}
	return models.Friendship{}, fmt.Errorf("friendship %s has unknown status %q", existing.ID, existing.Status)
}

func (l *FriendshipLedger) notifyRequest(ctx context.Context, f models.Friendship) {
	if !l.Presence.IsOnline(f.RecipientID) {
		return
	}
	requester, err := l.Users.GetByID(ctx, f.RequesterID)
	if err != nil {
		l.Log.Warn().Err(err).Str("friendship_id", f.ID).Msg("load requester for notification")
		return
	}
	l.Presence.Send(f.RecipientID, models.EventFriendRequestReceived, models.FriendRequestReceivedEvent{
		FriendshipID: f.ID,
		Requester:    requester.Summary(),
	})
}

// loadForRecipient returns the pending record friendshipID if actorID may
// resolve it.
func (l *FriendshipLedger) loadForRecipient(ctx context.Context, actorID, friendshipID string) (models.Friendship, error) {
	if strings.TrimSpace(friendshipID) == "" {
		return models.Friendship{}, models.NewValidationError(map[string]string{"friendshipId": "required"})
	}
	f, err := l.Friendships.GetByID(ctx, friendshipID)
	if err != nil {
		return models.Friendship{}, err
	}
	if !f.Involves(actorID) {
		return models.Friendship{}, fmt.Errorf("friend request %s: %w", friendshipID, models.ErrNotFound)
	}
	if f.RecipientID != actorID {
		return models.Friendship{}, models.NewConflictError("only the recipient can respond to this request")
	}
	if f.Status != models.FriendshipPending {
		return models.Friendship{}, models.NewConflictError("friend request is no longer pending")
	}
	return f, nil
}

func (l *FriendshipLedger) Accept(ctx context.Context, actorID, friendshipID string) (models.Friendship, error) {
	f, err := l.loadForRecipient(ctx, actorID, friendshipID)
	if err != nil {
		return models.Friendship{}, err
	}

	now := nowFrom(l.Now)
	ok, err := l.Friendships.Accept(ctx, f.ID, actorID, now)
	if err != nil {
		return models.Friendship{}, err
	}
	if !ok {
		return models.Friendship{}, models.NewConflictError("friend request is no longer pending")
	}
	f.Status = models.FriendshipAccepted
	f.UpdatedAt = now

	if l.Presence.IsOnline(f.RequesterID) {
		if me, err := l.Users.GetByID(ctx, actorID); err == nil {
			l.Presence.Send(f.RequesterID, models.EventFriendRequestAccepted, models.FriendRequestAcceptedEvent{
				FriendshipID: f.ID,
				AcceptedBy:   me.Summary(),
			})
		} else {
			l.Log.Warn().Err(err).Str("friendship_id", f.ID).Msg("load accepter for notification")
		}
	}
	return f, nil
}

func (l *FriendshipLedger) Reject(ctx context.Context, actorID, friendshipID string) (models.Friendship, error) {
	f, err := l.loadForRecipient(ctx, actorID, friendshipID)
	if err != nil {
		return models.Friendship{}, err
	}

	now := nowFrom(l.Now)
	ok, err := l.Friendships.Reject(ctx, f.ID, actorID, now)
	if err != nil {
		return models.Friendship{}, err
	}
	if !ok {
		return models.Friendship{}, models.NewConflictError("friend request is no longer pending")
	}
	f.Status = models.FriendshipRejected
	f.UpdatedAt = now
	return f, nil
}

// Remove deletes the accepted friendship between actorID and friendID.
func (l *FriendshipLedger) Remove(ctx context.Context, actorID, friendID string) error {
	if strings.TrimSpace(friendID) == "" {
		return models.NewValidationError(map[string]string{"friendId": "required"})
	}
	ok, err := l.Friendships.RemoveAccepted(ctx, actorID, friendID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("friendship with %s: %w", friendID, models.ErrNotFound)
	}
	return nil
}

func (l *FriendshipLedger) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return l.Friendships.AreFriends(ctx, a, b)
}

func (l *FriendshipLedger) Friends(ctx context.Context, userID string) ([]models.UserSummary, error) {
	friends, err := l.Friendships.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if friends == nil {
		friends = []models.UserSummary{}
	}
	return friends, nil
}

func (l *FriendshipLedger) IncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	requests, err := l.Friendships.ListIncoming(ctx, userID)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []models.FriendRequest{}
	}
	return requests, nil
}

// Search finds users by username or full name and annotates each result with
// the viewer's pending or accepted friendship.
func (l *FriendshipLedger) Search(ctx context.Context, viewerID, query string) ([]models.UserSearchResult, error) {
	query = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(query), "@"))
	if len([]rune(query)) < 2 {
		return nil, models.NewValidationError(map[string]string{"q": "must be at least 2 characters"})
	}

	users, err := l.Users.Search(ctx, viewerID, query, searchLimit)
	if err != nil {
		return nil, err
	}
	active, err := l.Friendships.ListActive(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]*models.FriendshipRef, len(active))
	for _, f := range active {
		refs[f.Other(viewerID)] = &models.FriendshipRef{
			FriendshipID: f.ID,
			Status:       f.Status,
			IsSender:     f.RequesterID == viewerID,
		}
	}

	results := make([]models.UserSearchResult, 0, len(users))
	for _, u := range users {
		results = append(results, models.UserSearchResult{UserSummary: u, Friendship: refs[u.ID]})
	}
	return results, nil
}
