package event

import (
	"log/slog"
	"sync"
)

type HandlerFunc func(raw any)

type subscription struct {
	id      uint64
	handler HandlerFunc
}

type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
	}
}

// Subscribe registers handler for eventName and returns a func that removes it.
func (b *Bus) Subscribe(eventName string, handler HandlerFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[eventName] = append(b.handlers[eventName], subscription{id: id, handler: handler})
	return func() { b.remove(eventName, id) }
}

func (b *Bus) remove(eventName string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[eventName]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventName] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish runs the handlers inline, in subscription order. Observers rely on
// that order (EXTEND is always seen before the matching RETRACT).
func (b *Bus) Publish(eventName string, evt any) {
	for _, h := range b.snapshot(eventName) {
		b.call(eventName, h, evt)
	}
}

func (b *Bus) snapshot(eventName string) []HandlerFunc {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := b.handlers[eventName]
	handlers := make([]HandlerFunc, len(subs))
	for i, s := range subs {
		handlers[i] = s.handler
	}
	return handlers
}

func (b *Bus) call(eventName string, h HandlerFunc, evt any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "event", eventName, "panic", r)
		}
	}()
	h(evt)
}
