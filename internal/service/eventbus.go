package service

import (
	"sync"

	"github.com/vodmill/vodmill/internal/domain"
)

// Event is a status transition pushed to subscribers watching a video.
type Event struct {
	Status  domain.VideoStatus `json:"status"`
	Message string             `json:"message,omitempty"`
}

type EventBus struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

func (eb *EventBus) Subscribe(videoID string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[videoID] = append(eb.subscribers[videoID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(videoID string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[videoID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[videoID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[videoID]) == 0 {
		delete(eb.subscribers, videoID)
	}
}

func (eb *EventBus) Publish(videoID string, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[videoID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}
