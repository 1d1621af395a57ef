package service_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pairchat/models"
	"pairchat/presence"
	"pairchat/presence/presencetest"
	"pairchat/service"
	"pairchat/store/memstore"
)

// pngBytes sniffs as image/png.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type memImages struct {
	mu    sync.Mutex
	names []string
}

func (m *memImages) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.names = append(m.names, name)
	m.mu.Unlock()
	return "https://cdn.test/" + name, nil
}

// stepClock advances one millisecond per call so ordering is deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type harness struct {
	db       *memstore.DB
	registry *presence.Registry
	images   *memImages
	accounts *service.Accounts
	ledger   *service.FriendshipLedger
	unread   *service.UnreadAggregator
	delivery *service.DeliveryCoordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zerolog.Nop()
	clock := &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	db := memstore.New()
	users, friendships, messages := db.Users(), db.Friendships(), db.Messages()
	registry := presence.NewRegistry(log)
	images := &memImages{}

	ledger := &service.FriendshipLedger{
		Users:       users,
		Friendships: friendships,
		Presence:    registry,
		Log:         log,
		Now:         clock.Now,
	}
	unread := &service.UnreadAggregator{
		Messages:    messages,
		Users:       users,
		Friendships: friendships,
		Presence:    registry,
		FriendsOnly: true,
		Log:         log,
	}
	delivery := &service.DeliveryCoordinator{
		Users:             users,
		Messages:          messages,
		Friends:           ledger,
		Unread:            unread,
		Presence:          registry,
		Images:            images,
		RequireFriendship: true,
		Log:               log,
		Now:               clock.Now,
	}
	registry.OnConnect(delivery.HandleConnect)

	return &harness{
		db:       db,
		registry: registry,
		images:   images,
		accounts: &service.Accounts{Users: users, Images: images, Now: clock.Now},
		ledger:   ledger,
		unread:   unread,
		delivery: delivery,
	}
}

func (h *harness) user(t *testing.T, name string) string {
	t.Helper()
	u, err := h.accounts.Signup(context.Background(), service.SignupInput{
		FullName: name,
		Username: name,
		Email:    name + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return u.ID
}

func (h *harness) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	f, err := h.ledger.Request(ctx, a, b)
	require.NoError(t, err)
	_, err = h.ledger.Accept(ctx, b, f.ID)
	require.NoError(t, err)
}

func (h *harness) connect(t *testing.T, userID string) *presencetest.Recorder {
	t.Helper()
	rec := presencetest.NewRecorder(userID + "-conn")
	h.registry.Connect(context.Background(), userID, rec)
	return rec
}

func (h *harness) disconnect(userID string, rec *presencetest.Recorder) {
	h.registry.Disconnect(userID, rec)
}

func (h *harness) status(t *testing.T, messageID string) models.MessageStatus {
	t.Helper()
	m, ok := h.db.Messages().Get(messageID)
	require.True(t, ok, "message %s not stored", messageID)
	return m.Status
}
