// Package realtime implements the pub/sub channel provider behind the
// dispatch API: a websocket hub with named channels, pusher-style presence
// channel authentication and the webhook endpoints driven by it.
package realtime

import (
	"net/http"
	"sync"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/snabb-tech/dispatch/core/logger"
)

// Frame is one message on a channel.
type Frame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hub fans published frames out to all websocket subscribers of a channel.
//
// Publish implements core.Notifier and is strictly fire-and-forget: slow
// subscribers are skipped, there is no delivery guarantee.
type Hub struct {
	secret   []byte
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	channels map[string]map[*subscriber]bool
}

type subscriber struct {
	conn    *websocket.Conn
	channel string
	send    chan Frame
}

// NewHub creates a hub. The secret signs presence channel tokens.
func NewHub(secret string) *Hub {
	return &Hub{
		secret: []byte(secret),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		channels: make(map[string]map[*subscriber]bool),
	}
}

// Publish sends the event to every current subscriber of the channel.
func (h *Hub) Publish(channel string, event string, payload []byte) {
	frame := Frame{Channel: channel, Event: event, Data: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.channels[channel] {
		select {
		case sub.send <- frame:
		default:
			// subscriber is not keeping up, drop the frame
		}
	}
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[sub.channel]
	if !ok {
		subs = make(map[*subscriber]bool)
		h.channels[sub.channel] = subs
	}
	subs[sub] = true
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.channels[sub.channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.channels, sub.channel)
		}
	}
	close(sub.send)
}

// ServeWS upgrades the request to a websocket subscription on the channel
// named by the "channel" query parameter. The first frame the subscriber
// receives is connection_established with its socket id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel is missing", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rlog.WithError(err).Debugln("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, channel: channel, send: make(chan Frame, 16)}
	h.register(sub)

	socketID := uuid.New().String()
	established, _ := json.Marshal(map[string]string{"socket_id": socketID})
	sub.send <- Frame{Channel: channel, Event: "connection_established", Data: established}

	go sub.writePump()
	go func() {
		defer h.unregister(sub)
		defer conn.Close()
		for {
			// subscribers only listen; reading detects the close
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (sub *subscriber) writePump() {
	for frame := range sub.send {
		if err := sub.conn.WriteJSON(frame); err != nil {
			return
		}
	}
}
