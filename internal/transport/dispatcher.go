package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	"vanish-client/internal/models"
)

// Handlers holds one callback per inbound event type. Nil entries drop the
// event. The set is closed: adding a server event means adding a field here
// and a case to Dispatch, so an unhandled event cannot slip through silently.
type Handlers struct {
	ServerMessage func(models.ServerNotice)
	ServerError   func(models.ServerNotice)
	ServerJoined  func(models.ServerNotice)
	ServerLeft    func(models.ServerNotice)
	ServerDeleted func(models.ServerDeleted)
	ActiveUsers   func(models.PresenceSnapshot)
	NewMessage    func(models.Message)
	MessageRead   func(models.MessageRead)
	UserTyping    func(models.UserTyping)
}

// CoreHandlers track connection lifecycle. They survive Reset so that a fast
// teardown/re-subscribe cycle can never leave the connection without its
// bookkeeping callbacks.
type CoreHandlers struct {
	Connected    func()
	Disconnected func(reason error)
}

// Dispatcher routes decoded envelopes to typed handlers. All dispatching
// happens on the connection's read goroutine, so handlers never interleave.
type Dispatcher struct {
	mu       sync.Mutex
	handlers Handlers
	core     CoreHandlers
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Bind replaces the application handler set.
func (d *Dispatcher) Bind(h Handlers) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = h
}

// BindCore replaces the lifecycle handlers.
func (d *Dispatcher) BindCore(core CoreHandlers) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.core = core
}

// Reset drops all application handlers but keeps the core lifecycle handlers
// registered.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = Handlers{}
}

// Dispatch decodes an envelope and invokes the matching handler.
func (d *Dispatcher) Dispatch(env models.Envelope) error {
	d.mu.Lock()
	h := d.handlers
	d.mu.Unlock()

	switch env.Event {
	case models.EventServerMessage:
		return dispatchAs(env.Data, h.ServerMessage)
	case models.EventServerError:
		return dispatchAs(env.Data, h.ServerError)
	case models.EventServerJoined:
		return dispatchAs(env.Data, h.ServerJoined)
	case models.EventServerLeft:
		return dispatchAs(env.Data, h.ServerLeft)
	case models.EventServerDeleted:
		return dispatchAs(env.Data, h.ServerDeleted)
	case models.EventActiveUsers:
		return dispatchAs(env.Data, h.ActiveUsers)
	case models.EventNewMessage:
		return dispatchAs(env.Data, h.NewMessage)
	case models.EventMessageRead:
		return dispatchAs(env.Data, h.MessageRead)
	case models.EventUserTyping:
		return dispatchAs(env.Data, h.UserTyping)
	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
}

func (d *Dispatcher) connected() {
	d.mu.Lock()
	fn := d.core.Connected
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *Dispatcher) disconnected(reason error) {
	d.mu.Lock()
	fn := d.core.Disconnected
	d.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

func dispatchAs[T any](data json.RawMessage, fn func(T)) error {
	if fn == nil {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	fn(v)
	return nil
}
