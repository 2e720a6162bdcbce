package store

import (
	"sync"
	"time"

	"vanish-client/internal/models"
)

// MessageStore holds the session's messages in arrival order. It does not
// enforce uniqueness on append; RelevantTo collapses duplicates at read time,
// the same place the conversation filter is applied.
type MessageStore struct {
	mu       sync.RWMutex
	messages []models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append adds a message, preserving arrival order.
func (s *MessageStore) Append(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Populate replaces the collection wholesale from the initial history fetch.
func (s *MessageStore) Populate(msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]models.Message, len(msgs))
	copy(s.messages, msgs)
}

// MarkRead flips readByReceiver on the matching message. A receipt for a
// message not yet materialized locally is dropped; the flag only ever moves
// false -> true, so calling it twice is the same as calling it once.
func (s *MessageStore) MarkRead(messageID string) bool {
	if messageID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].MessageID == messageID {
			s.messages[i].ReadByReceiver = true
			return true
		}
	}
	return false
}

// RelevantTo returns the conversation between userA and userB in insertion
// order, with duplicates collapsed. An optimistic local entry and its server
// echo share (senderId, createdAt); the later copy wins so the echo's
// messageId and read flags replace the optimistic ones. Entries that carry a
// server messageId are additionally collapsed by that id.
func (s *MessageStore) RelevantTo(userA, userB string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, 0, len(s.messages))
	byKey := make(map[string]int)
	byID := make(map[string]int)

	for _, msg := range s.messages {
		if !msg.Between(userA, userB) {
			continue
		}

		if i, ok := byKey[msg.DedupKey()]; ok {
			out[i] = mergeRead(out[i], msg)
			continue
		}
		if msg.MessageID != "" {
			if i, ok := byID[msg.MessageID]; ok {
				out[i] = mergeRead(out[i], msg)
				continue
			}
		}

		out = append(out, msg)
		byKey[msg.DedupKey()] = len(out) - 1
		if msg.MessageID != "" {
			byID[msg.MessageID] = len(out) - 1
		}
	}
	return out
}

// mergeRead keeps the later copy but never regresses a read flag.
func mergeRead(prev, next models.Message) models.Message {
	if prev.ReadBySender {
		next.ReadBySender = true
	}
	if prev.ReadByReceiver {
		next.ReadByReceiver = true
	}
	if next.MessageID == "" {
		next.MessageID = prev.MessageID
	}
	return next
}

// All returns a copy of every message in arrival order.
func (s *MessageStore) All() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastActivity returns the creation time of the newest message involving
// userID. Used to order the owner's sidebar.
func (s *MessageStore) LastActivity(userID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Involves(userID) {
			return s.messages[i].CreatedAt, true
		}
	}
	return time.Time{}, false
}

// Clear drops every message. Room teardown clears the whole collection at
// once; individual messages are never deleted.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
