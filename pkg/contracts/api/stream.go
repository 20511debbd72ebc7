package api

// Tipos de mensagem do canal WebSocket de odds
const (
	StreamSubscribe   = "subscribe"
	StreamUnsubscribe = "unsubscribe"
	StreamPing        = "ping"
	StreamPong        = "pong"
)

// StreamMsg é a mensagem de controle enviada pelo cliente WS.
// EventID é obrigatório em subscribe/unsubscribe.
type StreamMsg struct {
	Type    string `json:"type"`
	EventID string `json:"eventId,omitempty"`
}
