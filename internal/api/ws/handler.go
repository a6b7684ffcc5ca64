package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware guards the HTTP surface
	},
	EnableCompression: true,
}

// clientMessage is a frame received from a subscriber
type clientMessage struct {
	Type   string `json:"type"`
	Filter Filter `json:"filter"`
}

// Handler serves the transition stream
type Handler struct {
	hub     *Hub
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(hub *Hub, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:     hub,
		metrics: metrics,
		logger:  logger,
	}
}

// conn serializes writes from the pump and the read loop
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(kind, data)
}

func (c *conn) send(m *Message) error {
	m.Timestamp = time.Now().UnixMilli()
	frame, err := sonic.Marshal(m)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, frame)
}

// HandleConnection upgrades the request and streams frames until the
// client goes away. ?identity= and ?task= set the initial filter.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	cn := &conn{ws: ws}
	defer ws.Close()

	sub := h.hub.Subscribe(Filter{
		Identity: types.Identity(c.Query("identity")),
		Task:     id.TaskID(c.Query("task")),
	})
	defer h.hub.Unsubscribe(sub)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	log := h.logger.With(zap.String("subscriber", sub.ID))
	log.Debug("Subscriber connected")

	if err := cn.send(&Message{Type: "system", Message: sub.ID}); err != nil {
		return
	}

	done := make(chan struct{})
	go h.pump(cn, sub, done)
	defer close(done)

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("WebSocket read error", zap.Error(err))
			}
			break
		}
		h.record("in", "frame")

		var msg clientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			cn.send(&Message{Type: "error", Message: "malformed message"})
			continue
		}

		switch msg.Type {
		case "ping":
			cn.send(&Message{Type: "pong"})
		case "filter":
			sub.SetFilter(msg.Filter)
			cn.send(&Message{Type: "filtered"})
		default:
			cn.send(&Message{Type: "error", Message: "unknown message type"})
		}
	}

	log.Debug("Subscriber disconnected", zap.Int("dropped", sub.Dropped()))
}

// pump forwards hub frames and keeps the connection alive
func (h *Handler) pump(cn *conn, sub *Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := cn.write(websocket.TextMessage, frame); err != nil {
				cn.ws.Close()
				return
			}
			h.record("out", "transition")
		case <-ticker.C:
			if err := cn.write(websocket.PingMessage, nil); err != nil {
				cn.ws.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) record(direction, kind string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, kind)
	}
}
