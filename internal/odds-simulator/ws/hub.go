package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

const writeWait = 2 * time.Second

// Hooks de métricas; qualquer campo pode ser nil.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func()
	OnSent       func()
}

// client serializa as escritas numa conexão; gorilla não aceita escritas concorrentes.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(b)
}

// Hub gerencia conexões WebSocket e assinaturas por evento.
// Cada cotação alterada vira uma mensagem OddsQuote para os inscritos do evento.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	hooks    Hooks

	mu sync.RWMutex
	// eventID -> conexões inscritas
	subs map[string]map[*client]struct{}
}

func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger, hooks Hooks) *Hub {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: allowOrigin},
		log:      log,
		hooks:    hooks,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende subscribe/unsubscribe/ping até o cliente desconectar.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	fire(h.hooks.OnConnect)
	defer func() {
		h.drop(c)
		_ = conn.Close()
		fire(h.hooks.OnDisconnect)
	}()

	for {
		var msg api.StreamMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case api.StreamSubscribe:
			if msg.EventID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.EventID]; !ok {
				h.subs[msg.EventID] = make(map[*client]struct{})
			}
			h.subs[msg.EventID][c] = struct{}{}
			h.mu.Unlock()
		case api.StreamUnsubscribe:
			h.mu.Lock()
			if m, ok := h.subs[msg.EventID]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.EventID)
				}
			}
			h.mu.Unlock()
		case api.StreamPing:
			_ = c.writeJSON(api.StreamMsg{Type: api.StreamPong})
		}
	}
}

// Broadcast envia a cotação aos inscritos do evento.
func (h *Hub) Broadcast(q events.OddsQuote) {
	h.mu.RLock()
	set := h.subs[q.EventID]
	targets := make([]*client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(q)
	if err != nil {
		return
	}
	for _, c := range targets {
		if err := c.write(b); err != nil {
			h.log.Warn("ws write failed", zap.String("event_id", q.EventID), zap.Error(err))
			_ = c.conn.Close()
			continue
		}
		fire(h.hooks.OnSent)
	}
}

// Subscribers conta as conexões inscritas num evento.
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

// drop remove a conexão de todas as assinaturas.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}

// Publish adapta o hub à interface de publicação do servidor.
func (h *Hub) Publish(_ context.Context, q events.OddsQuote) error {
	h.Broadcast(q)
	return nil
}
