// Package session owns the lifecycle of one room membership: it
// authenticates, fetches the initial history, opens the socket, and
// reconciles every server-pushed event into the local stores. The
// presentation layer reads the stores and calls intents here; it never
// touches the transport directly.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"vanish-client/internal/config"
	"vanish-client/internal/creds"
	"vanish-client/internal/models"
	"vanish-client/internal/store"
	"vanish-client/internal/transport"
	"vanish-client/pkg/logger"
)

// APIClient covers the one-shot HTTP calls a session makes on open.
type APIClient interface {
	Messages(ctx context.Context, serverID, token string) ([]models.Message, error)
	ActiveUsers(ctx context.Context, serverID, token string) ([]models.PresenceRecord, error)
}

// CredentialSource resolves this device's identity in a room.
type CredentialSource interface {
	Get(serverID string) (creds.Credentials, error)
}

// AttachmentUploader pushes an attachment to the CDN before its message is
// sent.
type AttachmentUploader interface {
	Upload(ctx context.Context, contentType string, r io.Reader, size int64) (string, error)
}

// Transport is the persistent event channel to the relay.
type Transport interface {
	Connect(serverID, userID, token string) error
	Disconnect(serverID string)
	Emit(event models.EventType, payload any) error
	Connected() bool
}

// Hooks let the presentation layer react to pushes. All callbacks run on the
// transport's read goroutine and must not block.
type Hooks struct {
	Notice  func(models.ServerNotice)
	Message func(models.Message)
	Fatal   func(*FatalError)
}

// Attachment is a pending upload accompanying a message send.
type Attachment struct {
	ContentType string
	Size        int64
	Reader      io.Reader
}

type Controller struct {
	api         APIClient
	credentials CredentialSource
	uploader    AttachmentUploader
	conn        Transport
	dispatcher  *transport.Dispatcher
	hooks       Hooks

	mu      sync.Mutex
	state   models.ConnectionState
	server  models.ServerInfo
	user    creds.Credentials
	isOwner bool

	messages *store.MessageStore
	presence *store.PresenceStore
	typing   *store.TypingTracker
}

func NewController(socketCfg config.SocketConfig, apiClient APIClient, credentials CredentialSource, uploader AttachmentUploader) *Controller {
	d := transport.NewDispatcher()
	c := &Controller{
		api:         apiClient,
		credentials: credentials,
		uploader:    uploader,
		dispatcher:  d,
		conn:        transport.New(socketCfg, d),
		state:       models.StateDisconnected,
		messages:    store.NewMessageStore(),
		presence:    store.NewPresenceStore("", ""),
		typing:      store.NewTypingTracker(),
	}
	d.BindCore(transport.CoreHandlers{
		Connected:    c.onConnected,
		Disconnected: c.onDisconnected,
	})
	return c
}

// SetHooks must be called before Open.
func (c *Controller) SetHooks(h Hooks) {
	c.hooks = h
}

// Open runs the session bootstrap: credentials, history, owner presence
// fetch, then the socket connect (which carries the join itself). Missing or
// expired credentials fail before anything is dialed.
func (c *Controller) Open(ctx context.Context, server models.ServerInfo) error {
	c.mu.Lock()
	switch c.state {
	case models.StateDisconnected, models.StateErrored, models.StateLeft:
	default:
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = models.StateConnecting
	c.server = server
	c.mu.Unlock()

	auth, err := c.credentials.Get(server.ServerID)
	if err != nil {
		return c.fail(&FatalError{Kind: FatalAuth, Reason: "no credentials for this room", Err: err})
	}
	if auth.UserID == "" || auth.Username == "" || auth.Token == "" {
		return c.fail(&FatalError{Kind: FatalAuth, Reason: "incomplete credentials"})
	}
	if creds.TokenExpired(auth.Token, time.Now()) {
		return c.fail(&FatalError{Kind: FatalAuth, Reason: "token expired"})
	}

	isOwner := auth.UserID == server.Owner
	c.mu.Lock()
	c.user = auth
	c.isOwner = isOwner
	c.presence = store.NewPresenceStore(auth.UserID, server.Owner)
	c.mu.Unlock()

	history, err := c.api.Messages(ctx, server.ServerID, auth.Token)
	if err != nil {
		return c.fail(&FatalError{Kind: FatalRoom, Reason: "history fetch failed", Err: err})
	}
	c.messages.Populate(history)

	// Guests get presence over the socket; the owner bootstraps it here.
	if isOwner {
		users, err := c.api.ActiveUsers(ctx, server.ServerID, auth.Token)
		if err != nil {
			return c.fail(&FatalError{Kind: FatalRoom, Reason: "presence fetch failed", Err: err})
		}
		c.currentPresence().ReplaceAll(models.PresenceSnapshot{At: time.Now(), Users: users})
	}

	c.dispatcher.Bind(c.handlers())

	if err := c.conn.Connect(server.ServerID, auth.UserID, auth.Token); err != nil {
		return c.fail(&FatalError{Kind: FatalRoom, Reason: "socket connect failed", Err: err})
	}
	return nil
}

// Close tears the session down: leave the room, drop the application event
// handlers, clear every store. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	serverID := c.server.ServerID
	settled := c.state == models.StateLeft || c.state == models.StateDisconnected
	c.mu.Unlock()
	if settled {
		return
	}

	c.conn.Disconnect(serverID)
	c.clear(models.StateLeft)
}

// SendMessage uploads the attachment (if any), then emits the message and
// appends an optimistic local copy. A not_typing intent always precedes the
// send. Upload failure aborts the send; nothing partial is emitted.
func (c *Controller) SendMessage(ctx context.Context, receiverID, content string, att *Attachment) (models.Message, error) {
	c.mu.Lock()
	if c.state != models.StateJoined {
		c.mu.Unlock()
		return models.Message{}, ErrNotJoined
	}
	serverID := c.server.ServerID
	sender := c.user.UserID
	c.mu.Unlock()

	if receiverID == "" {
		return models.Message{}, ErrNoReceiver
	}
	content = strings.TrimSpace(content)
	if content == "" && att == nil {
		return models.Message{}, ErrEmptyMessage
	}

	// The send supersedes any typing indicator for it.
	if err := c.conn.Emit(models.IntentNotTyping, models.Typing{ServerID: serverID, UserID: sender}); err != nil {
		logger.Debug("not_typing emit: %v", err)
	}

	msg := models.Message{
		ServerID:     serverID,
		SenderID:     sender,
		ReceiverID:   receiverID,
		Content:      content,
		CreatedAt:    time.Now(),
		ReadBySender: true,
		Sent:         true,
	}

	if att != nil {
		url, err := c.uploader.Upload(ctx, att.ContentType, att.Reader, att.Size)
		if err != nil {
			return models.Message{}, fmt.Errorf("attachment upload: %w", err)
		}
		msg.AttachmentURL = url
	}

	// The session may have died while the upload was in flight.
	c.mu.Lock()
	stillJoined := c.state == models.StateJoined
	c.mu.Unlock()
	if !stillJoined {
		return models.Message{}, ErrNotJoined
	}

	if err := c.conn.Emit(models.IntentNewMessage, msg); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	c.messages.Append(msg)
	return msg, nil
}

// MarkRead tells the relay a message was viewed and flips the local flag.
func (c *Controller) MarkRead(messageID string) error {
	if !c.joined() {
		return ErrNotJoined
	}
	if err := c.conn.Emit(models.IntentMarkRead, models.MessageRead{MessageID: messageID}); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	c.messages.MarkRead(messageID)
	return nil
}

// Typing signals that the current user is composing toward receiverID.
func (c *Controller) Typing(receiverID string) error {
	c.mu.Lock()
	joined := c.state == models.StateJoined
	serverID := c.server.ServerID
	sender := c.user.UserID
	c.mu.Unlock()
	if !joined {
		return ErrNotJoined
	}
	return c.conn.Emit(models.IntentTyping, models.Typing{
		ServerID:   serverID,
		ReceiverID: receiverID,
		UserID:     sender,
	})
}

// NotTyping withdraws the typing signal.
func (c *Controller) NotTyping() error {
	c.mu.Lock()
	joined := c.state == models.StateJoined
	serverID := c.server.ServerID
	sender := c.user.UserID
	c.mu.Unlock()
	if !joined {
		return ErrNotJoined
	}
	return c.conn.Emit(models.IntentNotTyping, models.Typing{ServerID: serverID, UserID: sender})
}

// Conversation returns the presentation-ready message list between the
// current user and other, deduplicated and in arrival order.
func (c *Controller) Conversation(otherID string) []models.Message {
	c.mu.Lock()
	self := c.user.UserID
	c.mu.Unlock()
	return c.messages.RelevantTo(self, otherID)
}

// ActiveUsers returns the presence set ordered by most recent conversation
// activity, newest first.
func (c *Controller) ActiveUsers() []models.PresenceRecord {
	return c.currentPresence().SortedByActivity(c.messages.LastActivity)
}

// Peer is the guest's sole conversation partner (the owner). ok is false for
// the owner, whose partner is whichever guest the UI selects.
func (c *Controller) Peer() (models.PresenceRecord, bool) {
	return c.currentPresence().Peer()
}

func (c *Controller) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) IsOwner() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOwner
}

func (c *Controller) User() creds.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Controller) Server() models.ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

func (c *Controller) Messages() *store.MessageStore { return c.messages }

func (c *Controller) TypingUsers() *store.TypingTracker { return c.typing }

// --- inbound reconciliation ---

func (c *Controller) handlers() transport.Handlers {
	return transport.Handlers{
		ServerMessage: c.notify,
		ServerJoined:  c.notify,
		ServerLeft:    c.notify,
		ServerError:   c.onServerError,
		ServerDeleted: c.onServerDeleted,
		ActiveUsers:   c.onActiveUsers,
		NewMessage:    c.onNewMessage,
		MessageRead:   c.onMessageRead,
		UserTyping:    c.onUserTyping,
	}
}

func (c *Controller) onConnected() {
	c.mu.Lock()
	c.state = models.StateJoined
	serverID := c.server.ServerID
	c.mu.Unlock()
	logger.Info("session joined server %s", serverID)
}

func (c *Controller) onDisconnected(reason error) {
	if reason == nil {
		// Deliberate close; Close or the deletion handler already settled
		// the state.
		return
	}
	// The transport retries transient drops itself. Reaching here means
	// every attempt failed, which escalates to a room-level fatal.
	c.clear(models.StateErrored)
	c.fatal(&FatalError{Kind: FatalRoom, Reason: "connection lost", Err: reason})
}

func (c *Controller) onServerError(n models.ServerNotice) {
	logger.Error("server error: %s", n.Content)
	c.notify(n)
	if n.Type != "error" {
		return
	}
	c.clear(models.StateErrored)
	c.fatal(&FatalError{Kind: FatalRoom, Reason: n.Content})
}

func (c *Controller) onServerDeleted(ev models.ServerDeleted) {
	c.mu.Lock()
	owner := c.isOwner
	serverID := c.server.ServerID
	c.mu.Unlock()

	// The relay echoes a deletion back to the owner who requested it.
	if owner {
		logger.Debug("ignoring own deletion echo for %s", ev.ServerID)
		return
	}

	c.conn.Disconnect(serverID)
	c.clear(models.StateLeft)
	c.fatal(&FatalError{Kind: FatalRoom, Reason: "room deleted"})
}

func (c *Controller) onActiveUsers(snap models.PresenceSnapshot) {
	if !c.currentPresence().ReplaceAll(snap) {
		logger.Debug("discarded stale presence snapshot")
	}
}

func (c *Controller) onNewMessage(msg models.Message) {
	c.messages.Append(msg)
	if c.hooks.Message != nil {
		c.hooks.Message(msg)
	}
}

func (c *Controller) onMessageRead(ev models.MessageRead) {
	// A receipt racing ahead of its message finds nothing to flag and is
	// dropped.
	if !c.messages.MarkRead(ev.MessageID) {
		logger.Debug("read receipt for unknown message %s", ev.MessageID)
	}
}

func (c *Controller) onUserTyping(ev models.UserTyping) {
	if !ev.Typing {
		c.typing.Remove(ev.UserID)
		return
	}
	c.mu.Lock()
	self := c.user.UserID
	c.mu.Unlock()
	// Only typing aimed at the current user is tracked.
	if ev.TypingTo != self {
		return
	}
	c.typing.Add(ev.UserID)
}

// --- helpers ---

func (c *Controller) notify(n models.ServerNotice) {
	if c.hooks.Notice != nil {
		c.hooks.Notice(n)
	}
}

func (c *Controller) fatal(ferr *FatalError) {
	if c.hooks.Fatal != nil {
		c.hooks.Fatal(ferr)
	}
}

func (c *Controller) fail(ferr *FatalError) error {
	c.clear(models.StateErrored)
	c.fatal(ferr)
	return ferr
}

// clear runs the teardown sequence as one unit: handlers off first so a
// just-arriving event cannot touch a store the caller has discarded.
func (c *Controller) clear(final models.ConnectionState) {
	c.dispatcher.Reset()
	c.messages.Clear()
	c.typing.Clear()
	c.currentPresence().Clear()
	c.mu.Lock()
	c.state = final
	c.mu.Unlock()
}

func (c *Controller) joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == models.StateJoined
}

func (c *Controller) currentPresence() *store.PresenceStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence
}
