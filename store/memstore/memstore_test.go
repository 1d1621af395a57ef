package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/models"
)

func seedUsers(t *testing.T, db *DB, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, db.Users().Create(context.Background(), models.User{ID: n, Username: n, Email: n + "@example.com", FullName: n}))
	}
}

func TestUsers_UniqueUsernameAndEmail(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Users().Create(ctx, models.User{ID: "1", Username: "ann", Email: "ann@example.com"}))

	err := db.Users().Create(ctx, models.User{ID: "2", Username: "ann", Email: "other@example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicate)
	err = db.Users().Create(ctx, models.User{ID: "3", Username: "other", Email: "ann@example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicate)
}

func TestFriendships_OneRecordPerUnorderedPair(t *testing.T) {
	db := New()
	ctx := context.Background()
	fs := db.Friendships()

	require.NoError(t, fs.Create(ctx, models.Friendship{ID: "f1", RequesterID: "a", RecipientID: "b", Status: models.FriendshipPending}))
	err := fs.Create(ctx, models.Friendship{ID: "f2", RequesterID: "b", RecipientID: "a", Status: models.FriendshipPending})
	assert.ErrorIs(t, err, models.ErrDuplicate)
	assert.Equal(t, 1, fs.Count())
}

func TestFriendships_AcceptGuardsRecipientAndStatus(t *testing.T) {
	db := New()
	ctx := context.Background()
	seedUsers(t, db, "a", "b")
	fs := db.Friendships()
	require.NoError(t, fs.Create(ctx, models.Friendship{ID: "f1", RequesterID: "a", RecipientID: "b", Status: models.FriendshipPending}))

	ok, err := fs.Accept(ctx, "f1", "a", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "requester cannot accept")

	ok, err = fs.Accept(ctx, "f1", "b", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Accept(ctx, "f1", "b", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second accept is a no-op")

	friends, err := fs.ListFriends(ctx, "a")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "b", friends[0].ID)

	ok, err = fs.RemoveAccepted(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	are, _ := fs.AreFriends(ctx, "a", "b")
	assert.False(t, are)
	friends, _ = fs.ListFriends(ctx, "b")
	assert.Empty(t, friends)
}

func TestFriendships_ReviveFlipsDirection(t *testing.T) {
	db := New()
	ctx := context.Background()
	fs := db.Friendships()
	require.NoError(t, fs.Create(ctx, models.Friendship{ID: "f1", RequesterID: "a", RecipientID: "b", Status: models.FriendshipRejected}))

	ok, err := fs.Revive(ctx, "f1", "b", "a", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	f, err := fs.GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "b", f.RequesterID)
	assert.Equal(t, models.FriendshipPending, f.Status)

	ok, _ = fs.Revive(ctx, "f1", "b", "a", time.Now())
	assert.False(t, ok, "pending record cannot be revived")
}

func TestMessages_StatusNeverRegresses(t *testing.T) {
	db := New()
	ctx := context.Background()
	ms := db.Messages()
	require.NoError(t, ms.Create(ctx, models.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Status: models.StatusSent}))
	require.NoError(t, ms.Create(ctx, models.Message{ID: "m2", SenderID: "a", ReceiverID: "b", Status: models.StatusSent}))

	n, err := ms.MarkSeen(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	senders, err := ms.MarkDelivered(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, senders)
	ok, _ := ms.MarkMessageDelivered(ctx, "m1")
	assert.False(t, ok)

	m, _ := ms.Get("m1")
	assert.Equal(t, models.StatusSeen, m.Status)

	n, _ = ms.MarkSeen(ctx, "a", "b")
	assert.Zero(t, n)
}

func TestMessages_ConversationPaging(t *testing.T) {
	db := New()
	ctx := context.Background()
	ms := db.Messages()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		sender, receiver := "a", "b"
		if i%2 == 1 {
			sender, receiver = "b", "a"
		}
		require.NoError(t, ms.Create(ctx, models.Message{ID: id, SenderID: sender, ReceiverID: receiver, Status: models.StatusSent, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, ms.Create(ctx, models.Message{ID: "other", SenderID: "a", ReceiverID: "c", CreatedAt: base}))

	latest, err := ms.Conversation(ctx, "a", "b", time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "m3", latest[0].ID)
	assert.Equal(t, "m4", latest[1].ID)

	older, err := ms.Conversation(ctx, "b", "a", latest[0].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "m1", older[0].ID)
	assert.Equal(t, "m2", older[1].ID)
}

func TestMessages_ConversationOrdersByTimeNotInsertion(t *testing.T) {
	db := New()
	ctx := context.Background()
	ms := db.Messages()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// stored out of order, as concurrent sends can be
	for _, m := range []models.Message{
		{ID: "m3", SenderID: "a", ReceiverID: "b", CreatedAt: base.Add(2 * time.Second)},
		{ID: "m1", SenderID: "b", ReceiverID: "a", CreatedAt: base},
		{ID: "m2b", SenderID: "a", ReceiverID: "b", CreatedAt: base.Add(time.Second)},
		{ID: "m2a", SenderID: "b", ReceiverID: "a", CreatedAt: base.Add(time.Second)},
	} {
		m.Status = models.StatusSent
		require.NoError(t, ms.Create(ctx, m))
	}

	all, err := ms.Conversation(ctx, "a", "b", time.Time{}, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, m := range all {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2a", "m2b", "m3"}, ids)

	latest, err := ms.Conversation(ctx, "a", "b", time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "m2b", latest[0].ID)
	assert.Equal(t, "m3", latest[1].ID)
}

func TestMessages_UnreadCounts(t *testing.T) {
	db := New()
	ctx := context.Background()
	ms := db.Messages()
	require.NoError(t, ms.Create(ctx, models.Message{ID: "1", SenderID: "a", ReceiverID: "c", Status: models.StatusSent}))
	require.NoError(t, ms.Create(ctx, models.Message{ID: "2", SenderID: "a", ReceiverID: "c", Status: models.StatusDelivered}))
	require.NoError(t, ms.Create(ctx, models.Message{ID: "3", SenderID: "b", ReceiverID: "c", Status: models.StatusSeen}))

	counts, err := ms.UnreadCounts(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2}, counts)

	n, err := ms.UnreadCount(ctx, "c", "b")
	require.NoError(t, err)
	assert.Zero(t, n)
}
