// Package transport implements the Broadcast Transport (spec §4.9): a
// single persistent duplex-channel endpoint with "last-connection-wins"
// semantics — at most one client connection is live at any moment, and a
// new connection terminates whatever came before it.
package transport

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"argus/internal/metrics"
	"argus/internal/models"
)

// ErrNoClient is returned by Deliver when no client is currently attached.
var ErrNoClient = errors.New("transport: no client connected")

const (
	pingInterval = 30 * time.Second
	readTimeout  = 90 * time.Second
	writeBuffer  = 100
)

// connection wraps the single live websocket.Conn plus its write channel and
// stop signal.
type connection struct {
	conn      *websocket.Conn
	writeChan chan models.WSEnvelope
	stopChan  chan struct{}
	mu        sync.Mutex
}

// Hub is the process-wide singleton broadcast service: one active
// connection, serialized replacement on reconnect (spec §5: "the
// prior-client termination on new-connection must be serialized with
// incoming frames").
type Hub struct {
	mu       sync.Mutex
	current  *connection
	onAction func(action models.ClientAction, eventID int64)
}

// NewHub returns an empty Hub with no active connection.
func NewHub() *Hub {
	return &Hub{}
}

// OnAction registers the handler invoked for each inbound client action
// frame (spec §6's ClientAction set). May be called at most once, before
// the first Accept.
func (h *Hub) OnAction(fn func(action models.ClientAction, eventID int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAction = fn
}

// Accept registers c as the new (and only) active connection, terminating
// whatever connection was previously live. It blocks, running the
// connection's read/write/ping loops, until the connection closes.
func (h *Hub) Accept(c *websocket.Conn) {
	h.mu.Lock()
	prior := h.current
	conn := &connection{
		conn:      c,
		writeChan: make(chan models.WSEnvelope, writeBuffer),
		stopChan:  make(chan struct{}),
	}
	h.current = conn
	h.mu.Unlock()

	if prior != nil {
		prior.close()
	}

	if m := metrics.Get(); m != nil {
		m.RecordWebSocketConnect()
	}

	defer func() {
		h.mu.Lock()
		if h.current == conn {
			h.current = nil
		}
		h.mu.Unlock()
		conn.close()
		if m := metrics.Get(); m != nil {
			m.RecordWebSocketDisconnect()
		}
	}()

	c.SetReadDeadline(time.Now().Add(readTimeout))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go conn.writeLoop()
	go conn.pingLoop()

	conn.readLoop(h)
}

// Broadcast sends envelope to the current connection, if any. There is no
// back-pressure signal (spec §4.9): a full write channel drops the frame
// rather than blocking the caller.
func (h *Hub) Broadcast(envelope models.WSEnvelope) {
	_ = h.Deliver(envelope)
}

// Deliver is Broadcast plus an explicit failure signal, used by the
// Scheduler's retry queue (spec §4.8): "success is defined as the transport
// accepting the envelope without throwing." A dropped frame (full write
// channel) still counts as accepted, since the drop happens downstream of
// the client having been reachable; only the complete absence of a client
// is treated as a delivery failure worth retrying.
func (h *Hub) Deliver(envelope models.WSEnvelope) error {
	h.mu.Lock()
	conn := h.current
	h.mu.Unlock()
	if conn == nil {
		return ErrNoClient
	}

	select {
	case conn.writeChan <- envelope:
	default:
		log.Printf("⚠️ [TRANSPORT] write channel full, dropping %s frame", envelope.Type)
	}
	return nil
}

// Connected reports whether a client is currently attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current != nil
}

func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
		close(c.writeChan)
		c.conn.Close()
	}
}

func (c *connection) writeLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [TRANSPORT] panic in writeLoop: %v", r)
		}
	}()

	for envelope := range c.writeChan {
		if err := c.conn.WriteJSON(envelope); err != nil {
			log.Printf("❌ [TRANSPORT] write error: %v", err)
			return
		}
		if m := metrics.Get(); m != nil {
			m.RecordWebSocketMessage(string(envelope.Type), "outbound")
		}
	}
}

func (c *connection) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			c.mu.Unlock()
			if err != nil {
				log.Printf("⚠️ [TRANSPORT] ping failed: %v", err)
				return
			}
		}
	}
}

// inboundMessage is the shape of a client→server frame: a popup-button
// action acknowledgement (spec §6's ClientAction set).
type inboundMessage struct {
	Action  models.ClientAction `json:"action"`
	EventID int64               `json:"event_id,omitempty"`
}

func (c *connection) readLoop(h *Hub) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [TRANSPORT] panic in readLoop: %v", r)
		}
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("⚠️ [TRANSPORT] invalid client frame: %v", err)
			continue
		}
		if m := metrics.Get(); m != nil {
			m.RecordWebSocketMessage(string(msg.Action), "inbound")
		}

		h.mu.Lock()
		handler := h.onAction
		h.mu.Unlock()
		if handler != nil && msg.Action != "" {
			handler(msg.Action, msg.EventID)
		}
	}
}
