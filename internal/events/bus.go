package events

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Observer receives published events.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Logger defines the logging interface for the bus.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

type subscription struct {
	name     string
	observer Observer
}

// Bus fans events out to observers.
type Bus struct {
	session string
	logger  Logger
	now     func() time.Time

	mu        sync.RWMutex
	observers map[uint64]subscription
	nextID    uint64
}

// NewBus creates a bus that stamps every event with session.
func NewBus(session string) *Bus {
	return &Bus{
		session:   session,
		logger:    noopLogger{},
		now:       time.Now,
		observers: make(map[uint64]subscription),
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// Session returns the launch session id.
func (b *Bus) Session() string {
	return b.session
}

// Subscribe registers observer under name and returns a func that removes it.
func (b *Bus) Subscribe(name string, observer Observer) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.observers[id] = subscription{name: name, observer: observer}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			b.mu.Unlock()
		})
	}
}

// Len returns the number of subscribed observers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Publish stamps e with the session and time, if unset, and delivers it to
// every observer in subscription order.
func (b *Bus) Publish(e Event) {
	if e.Session == "" {
		e.Session = b.session
	}
	if e.Time.IsZero() {
		e.Time = b.now().UTC()
	}

	b.mu.RLock()
	ids := make([]uint64, 0, len(b.observers))
	for id := range b.observers {
		ids = append(ids, id)
	}
	subs := make([]subscription, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		subs = append(subs, b.observers[id])
	}
	b.mu.RUnlock()

	b.logger.Debug("publishing event", "type", e.Type, "observers", len(subs))

	for _, sub := range subs {
		b.deliver(sub, e)
	}
}

func (b *Bus) deliver(sub subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event observer panicked",
				"observer", sub.name,
				"type", e.Type,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	sub.observer.OnEvent(e)
}
