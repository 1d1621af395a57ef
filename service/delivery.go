package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"pairchat/models"
)

const (
	maxTextLength   = 2000
	defaultPageSize = 50
	maxPageSize     = 100
)

// FriendChecker answers the send policy question.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// DeliveryCoordinator moves messages through sent -> delivered -> seen and
// pushes the resulting events to whoever is present.
type DeliveryCoordinator struct {
	Users    UserStore
	Messages MessageStore
	Friends  FriendChecker
	Unread   *UnreadAggregator
	Presence Presence
	Images   ImageStore
	// RequireFriendship gates sends and conversation reads on an accepted
	// friendship.
	RequireFriendship bool
	Log               zerolog.Logger
	Now               func() time.Time
	NewID             func() string
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      []byte
}

// Send persists a message and pushes it to the receiver and to the sender's
// own connection. The returned record is final.
func (d *DeliveryCoordinator) Send(ctx context.Context, in SendInput) (models.Message, error) {
	text := strings.TrimSpace(in.Text)
	receiverID := strings.TrimSpace(in.ReceiverID)

	fields := map[string]string{}
	switch {
	case receiverID == "":
		fields["receiverId"] = "required"
	case receiverID == in.SenderID:
		fields["receiverId"] = "cannot message yourself"
	}
	if text == "" && len(in.Image) == 0 {
		fields["text"] = "text or image is required"
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		fields["text"] = fmt.Sprintf("must be at most %d characters", maxTextLength)
	}
	if len(fields) > 0 {
		return models.Message{}, models.NewValidationError(fields)
	}

	if _, err := d.Users.GetByID(ctx, receiverID); err != nil {
		return models.Message{}, err
	}
	if err := d.permit(ctx, in.SenderID, receiverID); err != nil {
		return models.Message{}, err
	}

	var imageURL string
	if len(in.Image) > 0 {
		url, err := storeImage(ctx, d.Images, d.NewID, in.Image)
		if err != nil {
			return models.Message{}, err
		}
		imageURL = url
	}

	status := models.StatusSent
	if d.Presence.IsOnline(receiverID) {
		status = models.StatusDelivered
	}

	msg := models.Message{
		ID:         idFrom(d.NewID),
		SenderID:   in.SenderID,
		ReceiverID: receiverID,
		ImageURL:   imageURL,
		HasImage:   imageURL != "",
		Status:     status,
		CreatedAt:  nowFrom(d.Now).Truncate(time.Millisecond),
	}
	if text != "" {
		msg.Text = &text
	}

	if err := d.Messages.Create(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}

	// The receiver may have connected, and run its catch-up, between the
	// presence check and the insert.
	if msg.Status == models.StatusSent && d.Presence.IsOnline(receiverID) {
		ok, err := d.Messages.MarkMessageDelivered(ctx, msg.ID)
		if err != nil {
			d.Log.Warn().Err(err).Str("message_id", msg.ID).Msg("late delivery flip")
		} else if ok {
			msg.Status = models.StatusDelivered
		}
	}

	payload := models.NewMessagePayload(msg)
	if d.Presence.Send(receiverID, models.EventNewMessage, payload) {
		d.pushUnread(ctx, receiverID, msg.SenderID)
	}
	d.Presence.Send(msg.SenderID, models.EventNewMessage, payload)

	d.Log.Debug().
		Str("message_id", msg.ID).
		Str("sender_id", msg.SenderID).
		Str("receiver_id", receiverID).
		Str("status", string(msg.Status)).
		Msg("message sent")
	return msg, nil
}

// CatchUp marks everything sent to userID while it was offline as delivered
// and tells each present sender.
func (d *DeliveryCoordinator) CatchUp(ctx context.Context, userID string) error {
	senders, err := d.Messages.MarkDelivered(ctx, userID)
	if err != nil {
		return fmt.Errorf("catch up %s: %w", userID, err)
	}
	for _, senderID := range senders {
		d.Presence.Send(senderID, models.EventMessagesDelivered, models.MessagesDeliveredEvent{RecipientID: userID})
	}
	if len(senders) > 0 {
		d.Log.Debug().Str("user_id", userID).Int("senders", len(senders)).Msg("delivered pending messages")
	}
	return nil
}

// HandleConnect is the presence connect hook.
func (d *DeliveryCoordinator) HandleConnect(ctx context.Context, userID string) {
	if err := d.CatchUp(ctx, userID); err != nil {
		d.Log.Error().Err(err).Str("user_id", userID).Msg("connect catch-up failed")
	}
}

// MarkSeen marks every message from peerID to viewerID as seen. It returns the
// number of rows that changed; repeating the call changes nothing.
func (d *DeliveryCoordinator) MarkSeen(ctx context.Context, viewerID, peerID string) (int64, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return 0, models.NewValidationError(map[string]string{"senderId": "required"})
	}
	if peerID == viewerID {
		return 0, models.NewValidationError(map[string]string{"senderId": "cannot be yourself"})
	}

	n, err := d.Messages.MarkSeen(ctx, peerID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	if n > 0 {
		d.Presence.Send(peerID, models.EventMessagesSeen, models.MessagesSeenEvent{ByUserID: viewerID})
	}
	d.pushUnread(ctx, viewerID, peerID)
	return n, nil
}

// Conversation returns up to limit messages between viewerID and peerID
// created before the cursor, oldest first. A zero cursor means "latest".
func (d *DeliveryCoordinator) Conversation(ctx context.Context, viewerID, peerID string, before time.Time, limit int) ([]models.Message, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, models.NewValidationError(map[string]string{"id": "required"})
	}
	if err := d.permit(ctx, viewerID, peerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	msgs, err := d.Messages.Conversation(ctx, viewerID, peerID, before, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (d *DeliveryCoordinator) permit(ctx context.Context, a, b string) error {
	if !d.RequireFriendship || d.Friends == nil {
		return nil
	}
	ok, err := d.Friends.AreFriends(ctx, a, b)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("can only message friends: %w", models.ErrForbidden)
	}
	return nil
}

func (d *DeliveryCoordinator) pushUnread(ctx context.Context, viewerID, peerID string) {
	n, err := d.Unread.Count(ctx, viewerID, peerID)
	if err != nil {
		d.Log.Warn().Err(err).Str("viewer_id", viewerID).Str("peer_id", peerID).Msg("unread count for push")
		return
	}
	d.Presence.Send(viewerID, models.EventUnreadCountUpdate, models.UnreadCountEvent{SenderID: peerID, UnreadCount: n})
}
