package transport

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanish-client/internal/models"
)

func envelope(t *testing.T, event models.EventType, payload any) models.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.Envelope{Event: event, Data: data}
}

func TestDispatchRoutesAndDecodes(t *testing.T) {
	d := NewDispatcher()

	var gotNotice models.ServerNotice
	var gotMsg models.Message
	var gotRead models.MessageRead
	var gotTyping models.UserTyping
	var gotSnap models.PresenceSnapshot
	var gotDeleted models.ServerDeleted

	d.Bind(Handlers{
		ServerMessage: func(n models.ServerNotice) { gotNotice = n },
		ServerDeleted: func(ev models.ServerDeleted) { gotDeleted = ev },
		ActiveUsers:   func(s models.PresenceSnapshot) { gotSnap = s },
		NewMessage:    func(m models.Message) { gotMsg = m },
		MessageRead:   func(ev models.MessageRead) { gotRead = ev },
		UserTyping:    func(ev models.UserTyping) { gotTyping = ev },
	})

	require.NoError(t, d.Dispatch(envelope(t, models.EventServerMessage, models.ServerNotice{Type: "status", Content: "hello"})))
	assert.Equal(t, "hello", gotNotice.Content)

	require.NoError(t, d.Dispatch(envelope(t, models.EventServerDeleted, models.ServerDeleted{ServerID: "srv-1"})))
	assert.Equal(t, "srv-1", gotDeleted.ServerID)

	require.NoError(t, d.Dispatch(envelope(t, models.EventActiveUsers, models.PresenceSnapshot{
		At:    time.Now(),
		Users: []models.PresenceRecord{{UserID: "u1"}},
	})))
	assert.Len(t, gotSnap.Users, 1)

	require.NoError(t, d.Dispatch(envelope(t, models.EventNewMessage, models.Message{MessageID: "m1", Content: "hi"})))
	assert.Equal(t, "m1", gotMsg.MessageID)

	require.NoError(t, d.Dispatch(envelope(t, models.EventMessageRead, models.MessageRead{MessageID: "m1"})))
	assert.Equal(t, "m1", gotRead.MessageID)

	require.NoError(t, d.Dispatch(envelope(t, models.EventUserTyping, models.UserTyping{UserID: "u1", Typing: true})))
	assert.True(t, gotTyping.Typing)
}

func TestDispatchUnknownEvent(t *testing.T) {
	d := NewDispatcher()
	err := d.Dispatch(models.Envelope{Event: "mystery_event", Data: json.RawMessage(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery_event")
}

func TestDispatchUnboundHandlerDropsEvent(t *testing.T) {
	d := NewDispatcher()
	// No handlers bound: a known event decodes to nothing and is not an error.
	assert.NoError(t, d.Dispatch(envelope(t, models.EventNewMessage, models.Message{MessageID: "m1"})))
}

func TestDispatchMalformedPayload(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.Bind(Handlers{NewMessage: func(models.Message) { called = true }})

	err := d.Dispatch(models.Envelope{Event: models.EventNewMessage, Data: json.RawMessage(`"not-an-object"`)})
	require.Error(t, err)
	assert.False(t, called)
}

func TestResetKeepsCoreHandlers(t *testing.T) {
	d := NewDispatcher()

	appCalls := 0
	connects := 0
	var lastReason error
	d.Bind(Handlers{NewMessage: func(models.Message) { appCalls++ }})
	d.BindCore(CoreHandlers{
		Connected:    func() { connects++ },
		Disconnected: func(reason error) { lastReason = reason },
	})

	d.Reset()

	require.NoError(t, d.Dispatch(envelope(t, models.EventNewMessage, models.Message{MessageID: "m1"})))
	assert.Zero(t, appCalls, "application handlers are gone after Reset")

	d.connected()
	d.disconnected(errors.New("gone"))
	assert.Equal(t, 1, connects)
	assert.EqualError(t, lastReason, "gone")
}
