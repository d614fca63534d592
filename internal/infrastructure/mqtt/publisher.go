package mqtt

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sim8085-launcher/internal/events"
)

const (
	publishQueueSize  = 64
	publisherDrainMax = 3 * time.Second
)

// messagePublisher is the part of Client the Publisher needs.
type messagePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// backendState is the retained payload on Topics.Backend.
type backendState struct {
	Status  string    `json:"status"`
	Session string    `json:"session"`
	Port    uint16    `json:"port,omitempty"`
	PID     int       `json:"pid,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Time    time.Time `json:"time"`
}

// Publisher forwards lifecycle events to the broker.
//
// OnEvent only enqueues, so a slow or unreachable broker never delays the
// event bus. Messages beyond the queue capacity are dropped and counted.
type Publisher struct {
	pub    messagePublisher
	qos    byte
	queue  chan message
	done   chan struct{}
	logger Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Uint64
}

// NewPublisher starts a Publisher sending through c.
func NewPublisher(c *Client) *Publisher {
	p := newPublisher(c, c.QoS())
	p.SetLogger(c.getLogger())
	return p
}

func newPublisher(pub messagePublisher, qos byte) *Publisher {
	p := &Publisher{
		pub:    pub,
		qos:    qos,
		queue:  make(chan message, publishQueueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		if err := p.pub.Publish(msg.topic, msg.payload, p.qos, msg.retained); err != nil {
			p.getLogger().Warn("mqtt publish failed", "topic", msg.topic, "error", err)
		}
	}
}

// OnEvent implements events.Observer.
func (p *Publisher) OnEvent(e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.getLogger().Warn("encoding event for mqtt", "type", e.Type, "error", err)
		return
	}
	p.enqueue(message{topic: Topics{}.SessionEvents(e.Session), payload: payload})

	if state, ok := backendStateFor(e); ok {
		data, err := json.Marshal(state)
		if err != nil {
			return
		}
		p.enqueue(message{topic: Topics{}.Backend(), payload: data, retained: true})
	}
}

func backendStateFor(e events.Event) (backendState, bool) {
	state := backendState{Session: e.Session, Time: e.Time}
	switch e.Type {
	case events.BackendStarted:
		state.Status = "running"
		state.Port = e.Port
		state.PID = e.PID
	case events.BackendExited:
		state.Status = "exited"
		state.PID = e.PID
	case events.BackendStopped:
		state.Status = "stopped"
		state.PID = e.PID
		state.Outcome = e.Outcome
	default:
		return backendState{}, false
	}
	return state, true
}

func (p *Publisher) enqueue(msg message) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		p.logger.Warn("mqtt queue full, dropping message", "topic", msg.topic)
	}
}

// SetLogger sets the logger used for publish failures and drops.
func (p *Publisher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	p.mu.Lock()
	p.logger = logger
	p.mu.Unlock()
}

func (p *Publisher) getLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Dropped returns how many messages were discarded because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits briefly for queued messages to go
// out. Messages still queued after the drain window are abandoned.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.done:
		case <-time.After(publisherDrainMax):
			p.getLogger().Warn("mqtt publisher drain timed out", "pending", len(p.queue))
		}
	})
}
