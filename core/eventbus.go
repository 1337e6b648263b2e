package session

import (
	"sync"

	"github.com/koscakluka/ema-playback/core/events"
)

// Listener receives session events. Listeners run on the session loop in
// emission order and may call session methods.
type Listener func(events.Event)

type subscription struct {
	id       uint64
	listener Listener
}

type eventBus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[events.Kind][]subscription
}

func (b *eventBus) on(kind events.Kind, listener Listener) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = map[events.Kind][]subscription{}
	}
	b.nextID++
	id := b.nextID
	b.listeners[kind] = append(b.listeners[kind], subscription{id: id, listener: listener})

	var once sync.Once
	return func() { once.Do(func() { b.off(kind, id) }) }
}

func (b *eventBus) off(kind events.Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscriptions := b.listeners[kind]
	for i, sub := range subscriptions {
		if sub.id == id {
			// copy so emissions holding the old slice are unaffected
			next := make([]subscription, 0, len(subscriptions)-1)
			next = append(next, subscriptions[:i]...)
			b.listeners[kind] = append(next, subscriptions[i+1:]...)
			return
		}
	}
}

// listenersFor returns the listeners for kind followed by wildcard listeners.
func (b *eventBus) listenersFor(kind events.Kind) []Listener {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscriptions := b.listeners[kind]
	wildcard := b.listeners[events.KindAny]
	listeners := make([]Listener, 0, len(subscriptions)+len(wildcard))
	for _, sub := range subscriptions {
		listeners = append(listeners, sub.listener)
	}
	for _, sub := range wildcard {
		listeners = append(listeners, sub.listener)
	}
	return listeners
}

// On registers listener for kind. Use [events.KindAny] to receive every
// event. The returned func removes the listener.
func (s *Session) On(kind events.Kind, listener Listener) (unsubscribe func()) {
	return s.bus.on(kind, listener)
}

// OnStateChange is a typed shorthand for listening to [KindStateChange].
func (s *Session) OnStateChange(listener func(State)) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}
	return s.On(KindStateChange, func(event events.Event) {
		if changed, ok := event.(StateChanged); ok {
			listener(changed.State)
		}
	})
}

// emit delivers event to listeners. Nothing is delivered once the session is
// disposed. Must be called on the loop.
func (s *Session) emit(event events.Event) {
	for _, listener := range s.bus.listenersFor(event.Kind()) {
		if s.disposed.Load() {
			return
		}
		s.callListener(listener, event)
	}
}

func (s *Session) callListener(listener Listener, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session listener panicked", "kind", event.Kind(), "panic", r)
		}
	}()
	listener(event)
}
