package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/infrastructure/mqtt"
)

const reportTimeout = 5 * time.Second

// Reporter applies a robot self-report.
type Reporter interface {
	ReportTelemetry(ctx context.Context, id string, report device.TelemetryReport) (*device.Device, error)
}

// Counter records telemetry outcomes.
type Counter interface {
	RecordTelemetry(result string)
}

type nopCounter struct{}

func (nopCounter) RecordTelemetry(string) {}

// Telemetry outcomes passed to Counter.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultUnknown  = "unknown_device"
	ResultFailed   = "failed"
)

// Subscriber feeds robot telemetry from MQTT into the registry.
type Subscriber struct {
	broker   Broker
	reporter Reporter
	counter  Counter
	logger   Logger
}

// NewSubscriber creates a subscriber. counter may be nil.
func NewSubscriber(broker Broker, reporter Reporter, counter Counter) *Subscriber {
	if counter == nil {
		counter = nopCounter{}
	}
	return &Subscriber{broker: broker, reporter: reporter, counter: counter, logger: noopLogger{}}
}

// SetLogger sets the logger for the subscriber.
func (s *Subscriber) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes to every device's telemetry topic.
func (s *Subscriber) Start() error {
	topic := s.broker.Topics().AllDeviceTelemetry()
	if err := s.broker.Subscribe(topic, s.broker.QoS(), s.Handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.logger.Info("listening for robot telemetry", "topic", topic)
	return nil
}

// Handle processes one telemetry message. It satisfies mqtt.MessageHandler.
func (s *Subscriber) Handle(topic string, payload []byte) error {
	id, kind, ok := s.broker.Topics().ParseDeviceTopic(topic)
	if !ok || kind != mqtt.KindTelemetry {
		s.counter.RecordTelemetry(ResultRejected)
		return fmt.Errorf("unexpected telemetry topic %q", topic)
	}

	var report device.TelemetryReport
	if err := json.Unmarshal(payload, &report); err != nil {
		s.counter.RecordTelemetry(ResultRejected)
		return fmt.Errorf("decoding telemetry for %s: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if _, err := s.reporter.ReportTelemetry(ctx, id, report); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			s.counter.RecordTelemetry(ResultUnknown)
		case errors.Is(err, device.ErrEmptyTelemetry), errors.Is(err, device.ErrInvalidLocation),
			errors.Is(err, device.ErrMissingLocation):
			s.counter.RecordTelemetry(ResultRejected)
		default:
			s.counter.RecordTelemetry(ResultFailed)
		}
		return fmt.Errorf("applying telemetry for %s: %w", id, err)
	}

	s.counter.RecordTelemetry(ResultApplied)
	s.logger.Debug("robot telemetry applied", "device_id", id)
	return nil
}
