package models

import (
	"fmt"
	"time"
)

// Message is a single chat message. The server assigns MessageID; a message
// appended optimistically before the server acknowledges it has none yet, and
// is identified by its (SenderID, CreatedAt) pair until the echo arrives.
type Message struct {
	MessageID      string    `json:"messageId,omitempty"`
	ServerID       string    `json:"serverId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	AttachmentURL  string    `json:"attachmentUrl,omitempty"`
	ReadBySender   bool      `json:"readBySender"`
	ReadByReceiver bool      `json:"readByReceiver"`
	Sent           bool      `json:"sent"`
}

// DedupKey identifies a message across its optimistic local copy and the
// server echo, which share sender and creation time but not MessageID.
func (m Message) DedupKey() string {
	return fmt.Sprintf("%s-%d", m.SenderID, m.CreatedAt.UnixMilli())
}

// Between reports whether the message belongs to the conversation between a
// and b, in either direction.
func (m Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}
