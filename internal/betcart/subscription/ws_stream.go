package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 5 * time.Second
)

// WSStream consome o canal WebSocket do serviço de odds.
type WSStream struct {
	URL    string
	Dialer *websocket.Dialer
	Log    *zap.Logger
}

func NewWSStream(url string, log *zap.Logger) *WSStream {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSStream{URL: url, Dialer: websocket.DefaultDialer, Log: log}
}

func (s *WSStream) Dial(ctx context.Context, eventID string) (Conn, error) {
	const op = "subscription.WSStream.Dial"

	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return nil, apperr.Network(op, err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(api.StreamMsg{Type: api.StreamSubscribe, EventID: eventID}); err != nil {
		_ = conn.Close()
		return nil, apperr.Network(op, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c := &wsConn{conn: conn, log: s.Log, done: make(chan struct{})}
	go c.keepalive()
	return c, nil
}

type wsConn struct {
	conn *websocket.Conn
	log  *zap.Logger

	once sync.Once
	done chan struct{}
}

// Read ignora mensagens de controle (pong) e payloads inválidos.
func (c *wsConn) Read(_ context.Context) (events.OddsQuote, error) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return events.OddsQuote{}, io.EOF
			}
			return events.OddsQuote{}, apperr.Network("subscription.wsConn.Read", err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var q events.OddsQuote
		if err := json.Unmarshal(msg, &q); err != nil {
			c.log.Warn("invalid stream message", zap.Error(err))
			continue
		}
		if q.EventID == "" || q.OutcomeCode == "" {
			continue
		}
		return q, nil
	}
}

func (c *wsConn) keepalive() {
	t := time.NewTicker(wsPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
	})
	return err
}
