package service

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"pairchat/models"
)

// UnreadAggregator derives unread counts from the message store. It is the
// single definition both the REST snapshot and pushed updates use.
type UnreadAggregator struct {
	Messages    MessageStore
	Users       UserStore
	Friendships FriendshipStore
	Presence    Presence
	// FriendsOnly limits the sidebar to accepted friends plus anyone with
	// unread messages for the viewer.
	FriendsOnly bool
	Log         zerolog.Logger
}

type SidebarEntry struct {
	User        models.UserSummary `json:"user"`
	UnreadCount int                `json:"unreadCount"`
	Online      bool               `json:"online"`
}

// Count returns the number of messages from peerID to viewerID not yet seen.
func (a *UnreadAggregator) Count(ctx context.Context, viewerID, peerID string) (int, error) {
	return a.Messages.UnreadCount(ctx, viewerID, peerID)
}

// Snapshot returns unread counts for viewerID keyed by sender. Senders with
// nothing unread are absent.
func (a *UnreadAggregator) Snapshot(ctx context.Context, viewerID string) (map[string]int, error) {
	counts, err := a.Messages.UnreadCounts(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

// Sidebar builds the conversation list used to hydrate a client.
func (a *UnreadAggregator) Sidebar(ctx context.Context, viewerID string) ([]SidebarEntry, error) {
	var (
		base []models.UserSummary
		err  error
	)
	if a.FriendsOnly {
		base, err = a.Friendships.ListFriends(ctx, viewerID)
	} else {
		base, err = a.Users.ListExcept(ctx, viewerID)
	}
	if err != nil {
		return nil, err
	}

	counts, err := a.Snapshot(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	entries := make([]SidebarEntry, 0, len(base))
	listed := make(map[string]bool, len(base))
	for _, u := range base {
		listed[u.ID] = true
		entries = append(entries, a.entry(u, counts[u.ID]))
	}

	var extra []SidebarEntry
	for senderID, n := range counts {
		if listed[senderID] || n == 0 {
			continue
		}
		u, err := a.Users.GetByID(ctx, senderID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		extra = append(extra, a.entry(u.Summary(), n))
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].User.Username < extra[j].User.Username })
	return append(entries, extra...), nil
}

func (a *UnreadAggregator) entry(u models.UserSummary, unread int) SidebarEntry {
	online := false
	if a.Presence != nil {
		online = a.Presence.IsOnline(u.ID)
	}
	return SidebarEntry{User: u, UnreadCount: unread, Online: online}
}
