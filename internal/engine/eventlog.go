package engine

import (
	"sync"

	"pullback-trading-bot/internal/domain"
)

// eventLog retains the most recent events for inspection. It has its own lock
// so Stop and Status can record/read events without waiting on a tick that is
// blocked in a network call.
type eventLog struct {
	mu       sync.Mutex
	capacity int
	events   []domain.BotEvent
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{
		capacity: capacity,
		events:   make([]domain.BotEvent, 0, capacity),
	}
}

func (l *eventLog) Append(e domain.BotEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	if len(l.events) > l.capacity {
		l.events = l.events[1:]
	}
}

// Last returns up to n most recent events, oldest first. n <= 0 returns all
// retained events.
func (l *eventLog) Last(n int) []domain.BotEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]domain.BotEvent, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}
