package mirror

import (
	"sort"
	"sync"

	"github.com/lii16com/arkilino/internal/domain"
)

// Handler receives events broadcast by other views.
type Handler func(event domain.Event)

// Bus is the same-device broadcast between open views. Dispatch is
// synchronous: every subscriber except the origin has run when Publish returns.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]Handler)}
}

// Subscribe registers h under id, replacing any previous handler for id.
// The returned func removes it.
func (b *Bus) Subscribe(id string, h Handler) func() {
	b.mu.Lock()
	b.subs[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers event to every subscriber but event.Origin, in id order.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	ids := make([]string, 0, len(b.subs))
	for id := range b.subs {
		if id != event.Origin {
			ids = append(ids, id)
		}
	}
	handlers := make([]Handler, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
