package models

import "encoding/json"

// EventType names one message kind on the socket, in either direction. The
// inbound set is closed: the dispatcher matches on it exhaustively.
type EventType string

// Inbound (server -> client).
const (
	EventServerMessage EventType = "server_message"
	EventServerError   EventType = "server_error"
	EventServerJoined  EventType = "server_joined"
	EventServerLeft    EventType = "server_left"
	EventServerDeleted EventType = "server_deleted"
	EventActiveUsers   EventType = "active_users_updated"
	EventNewMessage    EventType = "new-message"
	EventMessageRead   EventType = "message_read"
	EventUserTyping    EventType = "user_typing"
)

// Outbound (client -> server).
const (
	IntentJoinServer  EventType = "join_server"
	IntentLeaveServer EventType = "leave_server"
	IntentNewMessage  EventType = "new-message"
	IntentMarkRead    EventType = "mark_message_read"
	IntentTyping      EventType = "typing"
	IntentNotTyping   EventType = "not_typing"
)

// Envelope frames every socket payload.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerNotice is the payload of the server_* status events. Type is "error"
// when the notice is fatal for the session.
type ServerNotice struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type ServerDeleted struct {
	ServerID string `json:"serverId"`
	Content  string `json:"content"`
}

type MessageRead struct {
	MessageID string `json:"messageId"`
}

type UserTyping struct {
	UserID   string `json:"userId"`
	Typing   bool   `json:"typing"`
	TypingTo string `json:"typingTo,omitempty"`
}

// Intent payloads.

type JoinServer struct {
	ServerID string `json:"serverId"`
	UserID   string `json:"userId"`
}

type LeaveServer struct {
	ServerID string `json:"serverId"`
}

type Typing struct {
	ServerID   string `json:"serverId"`
	ReceiverID string `json:"receiverId,omitempty"`
	UserID     string `json:"userId"`
}
