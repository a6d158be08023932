package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/infrastructure/mqtt"
)

// DefaultQueueSize bounds the messages waiting for the broker.
const DefaultQueueSize = 256

// Broker is the subset of the MQTT client used by this package.
type Broker interface {
	Topics() mqtt.Topics
	QoS() byte
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// CommandMessage is published on {prefix}/devices/{id}/command.
type CommandMessage struct {
	Action     device.Command `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
	IssuedBy   string         `json:"issuedBy"`
	Timestamp  time.Time      `json:"timestamp"`
}

// RemovedMessage is published on {prefix}/devices/{id}/removed.
type RemovedMessage struct {
	DeviceID  string    `json:"deviceId"`
	Timestamp time.Time `json:"timestamp"`
}

type outbound struct {
	topic    string
	body     any
	retained bool
	clear    bool
}

// Publisher mirrors registry events onto MQTT.
type Publisher struct {
	broker Broker
	topics mqtt.Topics
	queue  chan outbound
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
	logger  Logger
}

// NewPublisher creates a publisher with a queue of queueSize messages.
func NewPublisher(broker Broker, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Publisher{
		broker: broker,
		topics: broker.Topics(),
		queue:  make(chan outbound, queueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Start runs the publishing worker until ctx is cancelled or Stop is
// called.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				p.drain()
				return
			case m := <-p.queue:
				p.send(m)
			}
		}
	}()
}

// Stop flushes queued messages and stops the worker.
func (p *Publisher) Stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Dropped returns how many messages were discarded on a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) drain() {
	for {
		select {
		case m := <-p.queue:
			p.send(m)
		default:
			return
		}
	}
}

func (p *Publisher) send(m outbound) {
	var err error
	if m.clear {
		err = p.broker.Publish(m.topic, nil, p.broker.QoS(), true)
	} else {
		err = p.broker.PublishJSON(m.topic, m.body, m.retained)
	}
	if err != nil {
		p.logger.Warn("mqtt publish failed", "topic", m.topic, "error", err)
	}
}

func (p *Publisher) enqueue(m outbound) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- m:
	default:
		p.dropped.Add(1)
		p.logger.Warn("mqtt publish queue full, message dropped", "topic", m.topic)
	}
}

// OnDeviceEvent implements device.Observer.
func (p *Publisher) OnDeviceEvent(e device.Event) {
	id := e.Device.ID
	if e.Kind == device.EventDeleted {
		p.enqueue(outbound{topic: p.topics.DeviceState(id), clear: true})
		p.enqueue(outbound{topic: p.topics.DeviceRemoved(id), body: RemovedMessage{DeviceID: id, Timestamp: e.At}})
		return
	}

	p.enqueue(outbound{topic: p.topics.DeviceState(id), body: e.Device, retained: true})
	if e.Kind == device.EventControlled {
		p.enqueue(outbound{topic: p.topics.DeviceCommand(id), body: CommandMessage{
			Action:     e.Action,
			Parameters: e.Parameters,
			IssuedBy:   e.ActorID,
			Timestamp:  e.At,
		}})
	}
}
