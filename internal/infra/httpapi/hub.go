package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// Event types pushed to feed clients.
const (
	EventReport = "report"
	EventState  = "state"
	EventPoints = "points"
)

// Event is one message on the live feed.
type Event struct {
	Type      string         `json:"type"`
	Namespace string         `json:"namespace"`
	Report    *domain.Report `json:"report,omitempty"`
	State     string         `json:"state,omitempty"`
	Message   string         `json:"message,omitempty"`
	Name      string         `json:"name,omitempty"`
	Points    *int           `json:"points,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans workflow events out to every connected websocket client. It is
// both a ReportSink and a WorkflowListener.
type Hub struct {
	log        *zap.Logger
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			h.log.Debug("feed client connected", zap.String("remote", c.conn.RemoteAddr().String()))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug("feed client disconnected")
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.FeedClients.Set(float64(len(h.clients)))
}

// Clients is the number of connected feed clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

func (h *Hub) publish(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("marshal feed event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
		h.log.Warn("feed backlog full, dropping event", zap.String("type", evt.Type))
	}
}

func (h *Hub) ReportFiled(ctx context.Context, namespace string, report domain.Report) {
	h.publish(Event{Type: EventReport, Namespace: namespace, Report: &report})
}

func (h *Hub) OnStateChange(namespace string, outcome usecase.Outcome) {
	h.publish(Event{Type: EventState, Namespace: namespace, State: string(outcome.State), Message: outcome.Message})
}

func (h *Hub) OnUserUpdated(namespace string, user domain.User) {
	points := user.Points
	h.publish(Event{Type: EventPoints, Namespace: namespace, Name: user.Name, Points: &points})
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
