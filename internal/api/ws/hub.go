package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type clientMessage struct {
	Type string `json:"type"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	// closed is guarded by Hub.mu
	closed bool
}

// Hub fans bookmark events out to connected subscribers. It implements
// bookmark.Publisher.
type Hub struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewHub creates an empty hub
func NewHub(metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		metrics: metrics,
		logger:  logging.OrNop(logger),
		subs:    make(map[*subscriber]struct{}),
	}
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish queues e for every subscriber. Slow subscribers miss events
// rather than block the caller.
func (h *Hub) Publish(e bookmark.Event) {
	data, err := sonic.Marshal(e)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.send <- data:
			h.metrics.RecordWSMessage()
		default:
			h.logger.Warn("Dropping event for slow subscriber",
				zap.String("type", string(e.Type)),
				zap.String("remote_addr", sub.conn.RemoteAddr().String()),
			)
		}
	}
}

// HandleConnection upgrades the request and serves the subscriber until
// it disconnects
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.enqueue(sub, gin.H{"type": "system", "message": "Connected to tabshell bookmark stream"})

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncWSConnections()
	h.logger.Debug("Subscriber connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go h.writePump(sub)
	h.readPump(sub)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	n := len(h.subs)
	for sub := range h.subs {
		sub.closed = true
		close(sub.send)
		delete(h.subs, sub)
	}
	h.mu.Unlock()

	for i := 0; i < n; i++ {
		h.metrics.DecWSConnections()
	}
}

func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.remove(sub)
		_ = sub.conn.Close()
	}()

	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.enqueue(sub, gin.H{"type": "error", "message": "invalid message format"})
			continue
		}

		switch msg.Type {
		case "ping":
			h.enqueue(sub, gin.H{"type": "pong"})
		default:
			h.enqueue(sub, gin.H{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remove unregisters sub once; Close may have done it already.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	if ok {
		sub.closed = true
		close(sub.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.DecWSConnections()
	}
}

// enqueue sends a reply to one subscriber, dropping it when the buffer is full.
func (h *Hub) enqueue(sub *subscriber, msg any) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sub.closed {
		return
	}
	select {
	case sub.send <- data:
	default:
	}
}
