package models

import "time"

// Push event names.
const (
	EventOnlineUsersChanged    = "onlineUsersChanged"
	EventNewMessage            = "newMessage"
	EventMessagesDelivered     = "messagesDelivered"
	EventMessagesSeen          = "messagesSeen"
	EventUnreadCountUpdate     = "unreadCountUpdate"
	EventFriendRequestReceived = "friendRequestReceived"
	EventFriendRequestAccepted = "friendRequestAccepted"
	EventPong                  = "pong"
	EventError                 = "error"
)

// Client action names.
const (
	ActionPing     = "ping"
	ActionMarkSeen = "markSeen"
)

// Envelope is the frame written to a live connection.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ClientAction is a frame read from a live connection.
type ClientAction struct {
	Action     string `json:"action"`
	SenderID   string `json:"senderId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
}

type NewMessageEvent struct {
	ID         string        `json:"id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Text       *string       `json:"text,omitempty"`
	ImageURL   string        `json:"imageUrl,omitempty"`
	HasImage   bool          `json:"hasImage"`
	Status     MessageStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
}

func NewMessagePayload(m Message) NewMessageEvent {
	return NewMessageEvent(m)
}

type MessagesDeliveredEvent struct {
	RecipientID string `json:"recipientId"`
}

type MessagesSeenEvent struct {
	ByUserID string `json:"byUserId"`
}

type UnreadCountEvent struct {
	SenderID    string `json:"senderId"`
	UnreadCount int    `json:"unreadCount"`
}

type FriendRequestReceivedEvent struct {
	FriendshipID string      `json:"friendshipId"`
	Requester    UserSummary `json:"requester"`
}

type FriendRequestAcceptedEvent struct {
	FriendshipID string      `json:"friendshipId"`
	AcceptedBy   UserSummary `json:"acceptedBy"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
