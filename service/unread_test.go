package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/models"
	"pairchat/service"
)

func TestUnread_PushAgreesWithSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann, bob := h.user(t, "ann"), h.user(t, "bob")
	h.befriend(t, ann, bob)
	bobConn := h.connect(t, bob)

	for i := 0; i < 3; i++ {
		_, err := h.delivery.Send(ctx, service.SendInput{SenderID: ann, ReceiverID: bob, Text: "hey"})
		require.NoError(t, err)

		pushed, ok := bobConn.Last(models.EventUnreadCountUpdate)
		require.True(t, ok)
		snapshot, err := h.unread.Snapshot(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, snapshot[ann], pushed.(models.UnreadCountEvent).UnreadCount)
	}

	n, err := h.unread.Count(ctx, bob, ann)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSidebar_FriendsPlusUnreadSenders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann, bob, cat := h.user(t, "ann"), h.user(t, "bob"), h.user(t, "cat")
	h.user(t, "dan")
	h.befriend(t, ann, bob)
	h.connect(t, bob)

	// cat wrote to ann while messaging was open to everyone
	h.delivery.RequireFriendship = false
	_, err := h.delivery.Send(ctx, service.SendInput{SenderID: cat, ReceiverID: ann, Text: "hi"})
	require.NoError(t, err)

	entries, err := h.unread.Sidebar(ctx, ann)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]service.SidebarEntry{}
	for _, e := range entries {
		byName[e.User.Username] = e
	}
	assert.True(t, byName["bob"].Online)
	assert.Zero(t, byName["bob"].UnreadCount)
	assert.Equal(t, 1, byName["cat"].UnreadCount)
	assert.False(t, byName["cat"].Online)
	assert.Equal(t, cat, byName["cat"].User.ID)
}

func TestSidebar_UnreadSendersSortedByUsername(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.user(t, "ann")
	senders := []string{h.user(t, "zed"), h.user(t, "eve"), h.user(t, "max")}
	h.delivery.RequireFriendship = false
	for _, id := range senders {
		_, err := h.delivery.Send(ctx, service.SendInput{SenderID: id, ReceiverID: ann, Text: "hi"})
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		entries, err := h.unread.Sidebar(ctx, ann)
		require.NoError(t, err)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.User.Username)
		}
		assert.Equal(t, []string{"eve", "max", "zed"}, names)
	}
}

func TestSidebar_AllUsersWhenNotFriendsOnly(t *testing.T) {
	h := newHarness(t)
	ann := h.user(t, "ann")
	h.user(t, "bob")
	h.user(t, "cat")
	h.unread.FriendsOnly = false

	entries, err := h.unread.Sidebar(context.Background(), ann)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].User.Username)
	assert.Equal(t, "cat", entries[1].User.Username)
}
