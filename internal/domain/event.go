package domain

import "time"

// EventLevel categorizes bot events for downstream consumers.
type EventLevel string

const (
	EventInfo    EventLevel = "info"
	EventSuccess EventLevel = "success"
	EventBuy     EventLevel = "buy"
	EventSell    EventLevel = "sell"
	EventError   EventLevel = "error"
)

// BotEvent immutable record emitted on every state transition or error.
type BotEvent struct {
	Time    time.Time  `json:"time"`
	Level   EventLevel `json:"level"`
	Message string     `json:"message"`
}
