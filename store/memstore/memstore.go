// Package memstore is an in-process implementation of the service stores.
// It mirrors the MySQL schema's constraints: unique usernames and emails, one
// friendship per unordered pair, and status-guarded message updates.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pairchat/models"
)

// DB holds every table behind one lock so multi-row updates are atomic.
type DB struct {
	mu sync.Mutex

	users       map[string]models.User
	friendships map[string]models.Friendship
	pairs       map[[2]string]string
	links       map[string]map[string]bool
	messages    []models.Message
	messageIdx  map[string]int
}

func New() *DB {
	return &DB{
		users:       make(map[string]models.User),
		friendships: make(map[string]models.Friendship),
		pairs:       make(map[[2]string]string),
		links:       make(map[string]map[string]bool),
		messageIdx:  make(map[string]int),
	}
}

func (db *DB) Users() *UserStore             { return &UserStore{db: db} }
func (db *DB) Friendships() *FriendshipStore { return &FriendshipStore{db: db} }
func (db *DB) Messages() *MessageStore       { return &MessageStore{db: db} }

func pairKey(a, b string) [2]string {
	lo, hi := models.PairKey(a, b)
	return [2]string{lo, hi}
}

type UserStore struct{ db *DB }

func (s *UserStore) Create(_ context.Context, u models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.users {
		if existing.ID == u.ID || existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("create user: %w", models.ErrDuplicate)
		}
	}
	s.db.users[u.ID] = u
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

func (s *UserStore) ListExcept(_ context.Context, userID string) ([]models.UserSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.UserSummary
	for _, u := range s.db.users {
		if u.ID != userID {
			out = append(out, u.Summary())
		}
	}
	sortSummaries(out)
	return out, nil
}

func (s *UserStore) Search(_ context.Context, excludeID, query string, limit int) ([]models.UserSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	query = strings.ToLower(query)
	var out []models.UserSummary
	for _, u := range s.db.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), query) || strings.Contains(strings.ToLower(u.FullName), query) {
			out = append(out, u.Summary())
		}
	}
	sortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *UserStore) UpdateProfilePic(_ context.Context, userID, url string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	u.ProfilePic = url
	u.UpdatedAt = at
	s.db.users[userID] = u
	return nil
}

func (s *UserStore) UpdatePassword(_ context.Context, userID, hash string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	s.db.users[userID] = u
	return nil
}

func sortSummaries(users []models.UserSummary) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}

type FriendshipStore struct{ db *DB }

func (s *FriendshipStore) FindByPair(_ context.Context, a, b string) (models.Friendship, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	id, ok := s.db.pairs[pairKey(a, b)]
	if !ok {
		return models.Friendship{}, fmt.Errorf("friendship %s/%s: %w", a, b, models.ErrNotFound)
	}
	return s.db.friendships[id], nil
}

func (s *FriendshipStore) GetByID(_ context.Context, id string) (models.Friendship, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	f, ok := s.db.friendships[id]
	if !ok {
		return models.Friendship{}, fmt.Errorf("friendship %s: %w", id, models.ErrNotFound)
	}
	return f, nil
}

func (s *FriendshipStore) Create(_ context.Context, f models.Friendship) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := pairKey(f.RequesterID, f.RecipientID)
	if _, exists := s.db.pairs[key]; exists {
		return fmt.Errorf("create friendship: %w", models.ErrDuplicate)
	}
	if _, exists := s.db.friendships[f.ID]; exists {
		return fmt.Errorf("create friendship: %w", models.ErrDuplicate)
	}
	s.db.friendships[f.ID] = f
	s.db.pairs[key] = f.ID
	return nil
}

// transition applies fn to the record id when its status is from. Callers hold no lock.
func (s *FriendshipStore) transition(id string, from models.FriendshipStatus, fn func(*models.Friendship) bool) bool {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	f, ok := s.db.friendships[id]
	if !ok || f.Status != from {
		return false
	}
	if !fn(&f) {
		return false
	}
	s.db.friendships[id] = f
	return true
}

func (s *FriendshipStore) Revive(_ context.Context, id, requesterID, recipientID string, at time.Time) (bool, error) {
	return s.transition(id, models.FriendshipRejected, func(f *models.Friendship) bool {
		if pairKey(f.RequesterID, f.RecipientID) != pairKey(requesterID, recipientID) {
			return false
		}
		f.RequesterID = requesterID
		f.RecipientID = recipientID
		f.Status = models.FriendshipPending
		f.UpdatedAt = at
		return true
	}), nil
}

func (s *FriendshipStore) Accept(_ context.Context, id, recipientID string, at time.Time) (bool, error) {
	return s.transition(id, models.FriendshipPending, func(f *models.Friendship) bool {
		if f.RecipientID != recipientID {
			return false
		}
		f.Status = models.FriendshipAccepted
		f.UpdatedAt = at
		s.db.link(f.RequesterID, f.RecipientID)
		s.db.link(f.RecipientID, f.RequesterID)
		return true
	}), nil
}

func (s *FriendshipStore) Reject(_ context.Context, id, recipientID string, at time.Time) (bool, error) {
	return s.transition(id, models.FriendshipPending, func(f *models.Friendship) bool {
		if f.RecipientID != recipientID {
			return false
		}
		f.Status = models.FriendshipRejected
		f.UpdatedAt = at
		return true
	}), nil
}

func (s *FriendshipStore) RemoveAccepted(_ context.Context, a, b string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := pairKey(a, b)
	id, ok := s.db.pairs[key]
	if !ok || s.db.friendships[id].Status != models.FriendshipAccepted {
		return false, nil
	}
	delete(s.db.friendships, id)
	delete(s.db.pairs, key)
	delete(s.db.links[a], b)
	delete(s.db.links[b], a)
	return true, nil
}

func (s *FriendshipStore) AreFriends(_ context.Context, a, b string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	id, ok := s.db.pairs[pairKey(a, b)]
	return ok && s.db.friendships[id].Status == models.FriendshipAccepted, nil
}

func (s *FriendshipStore) ListFriends(_ context.Context, userID string) ([]models.UserSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.UserSummary
	for friendID := range s.db.links[userID] {
		if u, ok := s.db.users[friendID]; ok {
			out = append(out, u.Summary())
		}
	}
	sortSummaries(out)
	return out, nil
}

func (s *FriendshipStore) ListIncoming(_ context.Context, userID string) ([]models.FriendRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.FriendRequest
	for _, f := range s.db.friendships {
		if f.RecipientID != userID || f.Status != models.FriendshipPending {
			continue
		}
		requester := s.db.users[f.RequesterID]
		out = append(out, models.FriendRequest{
			ID:        f.ID,
			Requester: requester.Summary(),
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *FriendshipStore) ListActive(_ context.Context, userID string) ([]models.Friendship, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Friendship
	for _, f := range s.db.friendships {
		if f.Involves(userID) && f.Status != models.FriendshipRejected {
			out = append(out, f)
		}
	}
	return out, nil
}

// Count returns the number of friendship records, for tests.
func (s *FriendshipStore) Count() int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return len(s.db.friendships)
}

func (db *DB) link(userID, friendID string) {
	if db.links[userID] == nil {
		db.links[userID] = make(map[string]bool)
	}
	db.links[userID][friendID] = true
}

type MessageStore struct{ db *DB }

func (s *MessageStore) Create(_ context.Context, m models.Message) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.messageIdx[m.ID]; exists {
		return fmt.Errorf("create message: %w", models.ErrDuplicate)
	}
	s.db.messageIdx[m.ID] = len(s.db.messages)
	s.db.messages = append(s.db.messages, m)
	return nil
}

// Get returns a message by id, for tests.
func (s *MessageStore) Get(id string) (models.Message, bool) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	i, ok := s.db.messageIdx[id]
	if !ok {
		return models.Message{}, false
	}
	return s.db.messages[i], true
}

func (s *MessageStore) Conversation(_ context.Context, a, b string, before time.Time, limit int) ([]models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var page []models.Message
	for _, m := range s.db.messages {
		if !m.Between(a, b) {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		page = append(page, m)
	}
	// created_at, id ascending, matching the mysql store's ordering
	sort.Slice(page, func(i, j int) bool {
		if !page[i].CreatedAt.Equal(page[j].CreatedAt) {
			return page[i].CreatedAt.Before(page[j].CreatedAt)
		}
		return page[i].ID < page[j].ID
	})
	if limit > 0 && len(page) > limit {
		page = page[len(page)-limit:]
	}
	return page, nil
}

// advance moves every matching row to next when that is a forward step.
func (s *MessageStore) advance(match func(models.Message) bool, next models.MessageStatus) []models.Message {
	var changed []models.Message
	for i, m := range s.db.messages {
		if match(m) && m.Status.CanAdvanceTo(next) {
			s.db.messages[i].Status = next
			changed = append(changed, m)
		}
	}
	return changed
}

func (s *MessageStore) MarkDelivered(_ context.Context, receiverID string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	changed := s.advance(func(m models.Message) bool {
		return m.ReceiverID == receiverID && m.Status == models.StatusSent
	}, models.StatusDelivered)

	seen := make(map[string]bool)
	var senders []string
	for _, m := range changed {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			senders = append(senders, m.SenderID)
		}
	}
	sort.Strings(senders)
	return senders, nil
}

func (s *MessageStore) MarkMessageDelivered(_ context.Context, id string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	changed := s.advance(func(m models.Message) bool {
		return m.ID == id && m.Status == models.StatusSent
	}, models.StatusDelivered)
	return len(changed) > 0, nil
}

func (s *MessageStore) MarkSeen(_ context.Context, senderID, receiverID string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	changed := s.advance(func(m models.Message) bool {
		return m.SenderID == senderID && m.ReceiverID == receiverID
	}, models.StatusSeen)
	return int64(len(changed)), nil
}

func (s *MessageStore) UnreadCount(_ context.Context, receiverID, senderID string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, m := range s.db.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && m.Status != models.StatusSeen {
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) UnreadCounts(_ context.Context, receiverID string) (map[string]int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	counts := make(map[string]int)
	for _, m := range s.db.messages {
		if m.ReceiverID == receiverID && m.Status != models.StatusSeen {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}
