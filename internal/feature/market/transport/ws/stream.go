// Package ws streams live ticks to browser clients over WebSocket.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"options_backend/internal/api"
	"options_backend/internal/feature/market/domain/entity"
	"options_backend/internal/feature/market/transport/http/dto"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 512

	// sendBufferSize is the channel buffer for outgoing ticks per client.
	sendBufferSize = 64
)

// Subscriber registers tick callbacks per symbol. The Multiplexer implements it.
type Subscriber interface {
	Subscribe(symbol string, onPrice func(entity.Tick)) (unsubscribe func())
}

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. The demo UI is served from another host.
		return true
	},
}

// StreamHandler upgrades GET /ws/prices?symbol=S and pushes every tick of S
// to the client until either side goes away.
type StreamHandler struct {
	feed   Subscriber
	logger *slog.Logger

	mu      sync.Mutex
	clients int
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(feed Subscriber, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{feed: feed, logger: logger.With("component", "ws")}
}

// client is a single WebSocket connection bound to one symbol.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// Stream handles the upgrade and runs the connection's pumps.
// GET /ws/prices?symbol=EUR-USD
func (h *StreamHandler) Stream(c *gin.Context) {
	symbol := entity.NormalizeSymbol(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "symbol query parameter is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", "error", err)
		return
	}

	cl := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: h.logger.With("symbol", symbol),
	}

	unsubscribe := h.feed.Subscribe(symbol, cl.push)
	h.track(1)
	cl.logger.Info("ws: client connected", "total_clients", h.Clients())

	go cl.writePump()
	cl.readPump()

	// readPump はクライアント切断で戻る
	unsubscribe()
	cl.stop()
	h.track(-1)
	cl.logger.Info("ws: client disconnected", "total_clients", h.Clients())
}

// Clients returns the number of connected clients.
func (h *StreamHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

func (h *StreamHandler) track(delta int) {
	h.mu.Lock()
	h.clients += delta
	h.mu.Unlock()
}

// push is the Multiplexer callback. It never blocks the poll loop:
// a slow client loses ticks instead.
func (c *client) push(t entity.Tick) {
	b, err := json.Marshal(dto.FromTick(t))
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.logger.Warn("ws: dropping tick for slow client", "seq", t.Seq)
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// readPump drains client frames so that pong and close control frames are processed.
func (c *client) readPump() {
	defer c.stop()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws: unexpected close error", "error", err)
			}
			return
		}
	}
}

// writePump writes queued ticks and periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		}
	}
}
