package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanish-client/internal/models"
)

func msgAt(id, sender, receiver, content string, at time.Time) models.Message {
	return models.Message{
		MessageID:  id,
		ServerID:   "srv-1",
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  at,
		Sent:       true,
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	s := NewMessageStore()
	now := time.Now()
	s.Append(msgAt("m1", "alice", "bob", "hi", now))

	require.True(t, s.MarkRead("m1"))
	first := s.All()

	require.True(t, s.MarkRead("m1"))
	assert.Equal(t, first, s.All(), "second MarkRead must not change state")
	assert.True(t, s.All()[0].ReadByReceiver)
}

func TestMarkReadUnknownIDIsNoOp(t *testing.T) {
	s := NewMessageStore()
	s.Append(msgAt("m1", "alice", "bob", "hi", time.Now()))
	before := s.All()

	assert.False(t, s.MarkRead("nope"))
	assert.False(t, s.MarkRead(""))
	assert.Equal(t, before, s.All())
}

func TestRelevantToFiltersUnorderedPair(t *testing.T) {
	s := NewMessageStore()
	now := time.Now()
	s.Append(msgAt("m1", "alice", "bob", "a->b", now))
	s.Append(msgAt("m2", "bob", "alice", "b->a", now.Add(time.Second)))
	s.Append(msgAt("m3", "carol", "alice", "c->a", now.Add(2*time.Second)))
	s.Append(msgAt("m4", "alice", "carol", "a->c", now.Add(3*time.Second)))

	got := s.RelevantTo("alice", "bob")
	require.Len(t, got, 2)
	assert.Equal(t, "a->b", got[0].Content)
	assert.Equal(t, "b->a", got[1].Content)

	// Same result regardless of argument order.
	assert.Equal(t, got, s.RelevantTo("bob", "alice"))
}

func TestRelevantToCollapsesOptimisticEcho(t *testing.T) {
	s := NewMessageStore()
	at := time.Now()

	// Optimistic local copy has no messageId yet.
	optimistic := msgAt("", "alice", "bob", "hi", at)
	optimistic.ReadBySender = true
	s.Append(optimistic)

	// Server echo shares (senderId, createdAt) and carries the real id.
	echo := msgAt("m1", "alice", "bob", "hi", at)
	s.Append(echo)

	got := s.RelevantTo("alice", "bob")
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].MessageID)
	assert.True(t, got[0].ReadBySender, "read flag must not regress when the echo wins")
}

func TestRelevantToCollapsesByMessageID(t *testing.T) {
	s := NewMessageStore()
	// Duplicate pushes of the same server message with skewed timestamps.
	s.Append(msgAt("m1", "alice", "bob", "hi", time.Now()))
	s.Append(msgAt("m1", "alice", "bob", "hi", time.Now().Add(5*time.Millisecond)))

	assert.Len(t, s.RelevantTo("alice", "bob"), 1)
}

func TestReadReceiptBeforeMessage(t *testing.T) {
	s := NewMessageStore()

	// Receipt arrives first: nothing to flag, receipt is lost.
	assert.False(t, s.MarkRead("m1"))

	s.Append(msgAt("m1", "alice", "bob", "late", time.Now()))
	got := s.RelevantTo("alice", "bob")
	require.Len(t, got, 1)
	assert.False(t, got[0].ReadByReceiver, "a receipt that raced its message stays lost")
}

func TestPopulateReplacesWholesale(t *testing.T) {
	s := NewMessageStore()
	s.Append(msgAt("old", "alice", "bob", "stale", time.Now()))

	history := []models.Message{
		msgAt("m1", "alice", "bob", "one", time.Now()),
		msgAt("m2", "bob", "alice", "two", time.Now()),
	}
	s.Populate(history)

	require.Equal(t, 2, s.Len())
	assert.Equal(t, "m1", s.All()[0].MessageID)
}

func TestLastActivity(t *testing.T) {
	s := NewMessageStore()
	now := time.Now()
	s.Append(msgAt("m1", "alice", "bob", "first", now))
	s.Append(msgAt("m2", "bob", "alice", "second", now.Add(time.Minute)))
	s.Append(msgAt("m3", "carol", "dave", "other", now.Add(2*time.Minute)))

	at, ok := s.LastActivity("alice")
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute), at)

	_, ok = s.LastActivity("nobody")
	assert.False(t, ok)
}

func TestClearDropsEverything(t *testing.T) {
	s := NewMessageStore()
	s.Append(msgAt("m1", "alice", "bob", "hi", time.Now()))
	s.Clear()
	assert.Zero(t, s.Len())
}
