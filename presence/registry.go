package presence

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"pairchat/models"
)

// Handle is a live connection that can receive pushed events.
type Handle interface {
	ID() string
	// Send enqueues without blocking.
	Send(event string, payload any) error
	Close()
}

// ConnectHook runs after a user's handle has been installed.
type ConnectHook func(ctx context.Context, userID string)

// Registry maps each user to at most one live connection. The last connect
// wins; a disconnect only removes the entry it installed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Handle

	hookMu sync.RWMutex
	hooks  []ConnectHook

	log zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Handle),
		log:     log,
	}
}

// OnConnect registers hook to run after every successful Connect.
func (r *Registry) OnConnect(hook ConnectHook) {
	r.hookMu.Lock()
	r.hooks = append(r.hooks, hook)
	r.hookMu.Unlock()
}

func (r *Registry) Connect(ctx context.Context, userID string, h Handle) {
	r.mu.Lock()
	prev := r.entries[userID]
	r.entries[userID] = h
	r.broadcastOnlineLocked()
	r.mu.Unlock()

	if prev != nil && prev != h {
		r.log.Debug().Str("user_id", userID).Str("handle", prev.ID()).Msg("replacing stale connection")
		prev.Close()
	}
	r.log.Info().Str("user_id", userID).Str("handle", h.ID()).Msg("user connected")

	r.hookMu.RLock()
	hooks := append([]ConnectHook(nil), r.hooks...)
	r.hookMu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, userID)
	}
}

// Disconnect removes userID's entry only when it still points at h, so a late
// disconnect from a replaced connection cannot evict the newer one.
func (r *Registry) Disconnect(userID string, h Handle) bool {
	r.mu.Lock()
	cur, ok := r.entries[userID]
	removed := ok && cur == h
	if removed {
		delete(r.entries, userID)
		r.broadcastOnlineLocked()
	}
	r.mu.Unlock()

	if !removed {
		r.log.Debug().Str("user_id", userID).Str("handle", h.ID()).Msg("ignoring stale disconnect")
		return false
	}
	r.log.Info().Str("user_id", userID).Str("handle", h.ID()).Msg("user disconnected")
	return true
}

func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	h, ok := r.entries[userID]
	r.mu.RUnlock()
	return h, ok
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// OnlineUsers returns the ids of present users in ascending order.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

func (r *Registry) onlineLocked() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Send pushes an event to userID if present. It reports whether a handle
// accepted the event; failures are never escalated.
func (r *Registry) Send(userID, event string, payload any) bool {
	h, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	if err := h.Send(event, payload); err != nil {
		r.log.Debug().Err(err).Str("user_id", userID).Str("event", event).Msg("push dropped")
		return false
	}
	return true
}

// Broadcast pushes an event to every present user.
func (r *Registry) Broadcast(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(event, payload)
}

// broadcastOnlineLocked snapshots and enqueues under the write lock, so
// membership pushes reach every handle in the order the changes happened.
func (r *Registry) broadcastOnlineLocked() {
	r.broadcastLocked(models.EventOnlineUsersChanged, r.onlineLocked())
}

// broadcastLocked requires r.mu held for writing. Handle.Send must not block
// or call back into the registry.
func (r *Registry) broadcastLocked(event string, payload any) {
	for id, h := range r.entries {
		if err := h.Send(event, payload); err != nil {
			r.log.Debug().Err(err).Str("user_id", id).Str("event", event).Msg("broadcast dropped")
		}
	}
}
