package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"vanish-client/internal/config"
	"vanish-client/internal/models"
	"vanish-client/pkg/logger"

	"github.com/gorilla/websocket"
)

var (
	ErrNoEndpoint       = errors.New("socket URL is not configured")
	ErrNotConnected     = errors.New("not connected")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// Conn owns exactly one websocket connection to one relay endpoint at a time.
// Opening a connection for a different server first tears down the current
// one. A successful connect emits the join_server intent itself; joining is
// not a separate step for the caller.
type Conn struct {
	cfg        config.SocketConfig
	dispatcher *Dispatcher

	mu         sync.Mutex
	ws         *websocket.Conn
	send       chan models.Envelope
	done       chan struct{}
	writerDone chan struct{}
	closing    bool
	serverID   string
	userID     string
	token      string
}

func New(cfg config.SocketConfig, d *Dispatcher) *Conn {
	return &Conn{cfg: cfg, dispatcher: d}
}

func (c *Conn) Connect(serverID, userID, token string) error {
	if c.cfg.URL == "" {
		return ErrNoEndpoint
	}

	c.mu.Lock()
	if c.ws != nil && c.serverID == serverID {
		c.mu.Unlock()
		logger.Warn("already connected to server %s", serverID)
		return nil
	}
	prev := c.serverID
	hasPrev := c.ws != nil
	c.mu.Unlock()

	if hasPrev {
		c.Disconnect(prev)
	}

	ws, err := c.dial(token)
	if err != nil {
		return fmt.Errorf("socket handshake: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.serverID = serverID
	c.userID = userID
	c.token = token
	c.closing = false
	c.send = make(chan models.Envelope, 64)
	c.done = make(chan struct{})
	c.writerDone = make(chan struct{})
	send, done, writerDone := c.send, c.done, c.writerDone
	c.mu.Unlock()

	go c.writeLoop(send, done, writerDone)
	go c.readLoop(ws)

	if err := c.Emit(models.IntentJoinServer, models.JoinServer{ServerID: serverID, UserID: userID}); err != nil {
		logger.Error("join emit failed: %v", err)
	}
	c.dispatcher.connected()
	return nil
}

// Disconnect is a no-op when serverID does not match the tracked connection,
// which guards a stale teardown racing a newer connection.
func (c *Conn) Disconnect(serverID string) {
	c.mu.Lock()
	if c.ws == nil || c.serverID != serverID {
		c.mu.Unlock()
		logger.Warn("no active connection for server %s", serverID)
		return
	}
	c.closing = true
	done := c.done
	writerDone := c.writerDone
	c.mu.Unlock()

	// Tell the relay we are leaving before closing the pipe.
	if err := c.Emit(models.IntentLeaveServer, models.LeaveServer{ServerID: serverID}); err != nil {
		logger.Debug("leave emit: %v", err)
	}

	close(done)
	select {
	case <-writerDone:
	case <-time.After(c.cfg.WriteTimeout):
	}
	c.teardown()
}

// Emit queues an outbound intent. It never blocks: a full buffer rejects the
// intent rather than stalling the caller.
func (c *Conn) Emit(event models.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.mu.Lock()
	send := c.send
	connected := c.ws != nil
	c.mu.Unlock()
	if !connected || send == nil {
		return ErrNotConnected
	}

	select {
	case send <- models.Envelope{Event: event, Data: data}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Conn) Connected() bool {
	return c.current() != nil
}

func (c *Conn) dial(token string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	endpoint := fmt.Sprintf("%s/ws?token=%s", c.cfg.URL, url.QueryEscape(token))
	ws, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, err
	}

	ws.SetReadDeadline(time.Now().Add(c.readWait()))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(c.readWait()))
		return nil
	})
	return ws, nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		var env models.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			if c.isClosing() {
				c.dispatcher.disconnected(nil)
				return
			}
			logger.Warn("socket read: %v", err)
			next, rerr := c.reconnect()
			if rerr != nil {
				deliberate := c.isClosing()
				c.teardown()
				if deliberate {
					c.dispatcher.disconnected(nil)
				} else {
					c.dispatcher.disconnected(rerr)
				}
				return
			}
			ws = next
			continue
		}

		ws.SetReadDeadline(time.Now().Add(c.readWait()))
		if err := c.dispatcher.Dispatch(env); err != nil {
			logger.Warn("dispatch %s: %v", env.Event, err)
		}
	}
}

func (c *Conn) writeLoop(send chan models.Envelope, done, writerDone chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	defer close(writerDone)

	for {
		select {
		case env := <-send:
			c.writeEnvelope(env)

		case <-ticker.C:
			ws := c.current()
			if ws == nil {
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("ping failed: %v", err)
			}

		case <-done:
			// Flush anything already queued, then say goodbye.
			for {
				select {
				case env := <-send:
					c.writeEnvelope(env)
				default:
					if ws := c.current(); ws != nil {
						ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
						ws.WriteMessage(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					}
					return
				}
			}
		}
	}
}

// reconnect redials with bounded attempts and replays the join handshake. The
// layer above never sees a transient drop unless every attempt fails.
func (c *Conn) reconnect() (*websocket.Conn, error) {
	c.mu.Lock()
	serverID, userID, token := c.serverID, c.userID, c.token
	c.mu.Unlock()

	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(c.cfg.ReconnectDelay)
		if c.isClosing() {
			return nil, ErrNotConnected
		}

		ws, err := c.dial(token)
		if err != nil {
			logger.Warn("reconnect %d/%d: %v", attempt, c.cfg.ReconnectAttempts, err)
			continue
		}

		c.mu.Lock()
		old := c.ws
		c.ws = ws
		c.mu.Unlock()
		if old != nil {
			old.Close()
		}

		if err := c.Emit(models.IntentJoinServer, models.JoinServer{ServerID: serverID, UserID: userID}); err != nil {
			logger.Error("rejoin emit failed: %v", err)
		}
		c.dispatcher.connected()
		logger.Info("reconnected to server %s", serverID)
		return ws, nil
	}
	return nil, ErrRetriesExhausted
}

func (c *Conn) writeEnvelope(env models.Envelope) {
	ws := c.current()
	if ws == nil {
		return
	}
	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := ws.WriteJSON(env); err != nil {
		logger.Warn("write %s: %v", env.Event, err)
	}
}

func (c *Conn) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

func (c *Conn) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing || c.ws == nil
}

func (c *Conn) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
	c.serverID = ""
	c.userID = ""
	c.token = ""
}

func (c *Conn) readWait() time.Duration {
	return c.cfg.PingInterval + 10*time.Second
}
