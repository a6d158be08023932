// Package metrics collects Prometheus metrics for the HTTP surface, the
// realtime channel and the device fleet.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tvmmachans/Customo/internal/device"
)

const namespace = "customo"

// Recorder is the metrics surface used by the API layer and the MQTT
// bridge.
type Recorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordRateLimited(scope string)
	SetWSConnections(n int)
	RecordWSMessage(direction, msgType string)
	RecordWSDropped()
	RecordTelemetry(result string)
}

// Collector implements Recorder on Prometheus and observes device events.
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rateLimited  *prometheus.CounterVec
	wsClients    prometheus.Gauge
	wsMessages   *prometheus.CounterVec
	wsDropped    prometheus.Counter
	deviceEvents *prometheus.CounterVec
	commands     *prometheus.CounterVec
	lowBattery   prometheus.Counter
	telemetry    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"scope"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Currently open realtime connections.",
		}),
		wsMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_total",
			Help:      "Realtime frames by direction and type.",
		}, []string{"direction", "type"}),
		wsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_dropped_total",
			Help:      "Frames dropped because a client's send queue was full.",
		}),
		deviceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_events_total",
			Help:      "Applied device mutations by kind.",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Applied control commands by action.",
		}, []string{"action"}),
		lowBattery: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_low_battery_alerts_total",
			Help:      "Battery reports at or below the alert threshold.",
		}),
		telemetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_telemetry_total",
			Help:      "Robot telemetry messages by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.rateLimited,
		c.wsClients,
		c.wsMessages,
		c.wsDropped,
		c.deviceEvents,
		c.commands,
		c.lowBattery,
		c.telemetry,
	)
	return c
}

// RecordHTTPRequest records one completed request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited records a rejected request.
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// SetWSConnections sets the open connection gauge.
func (c *Collector) SetWSConnections(n int) {
	c.wsClients.Set(float64(n))
}

// RecordWSMessage counts one frame. direction is "in" or "out".
func (c *Collector) RecordWSMessage(direction, msgType string) {
	c.wsMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordWSDropped counts a frame dropped for a slow client.
func (c *Collector) RecordWSDropped() {
	c.wsDropped.Inc()
}

// RecordTelemetry counts a robot telemetry message by outcome.
func (c *Collector) RecordTelemetry(result string) {
	c.telemetry.WithLabelValues(result).Inc()
}

// OnDeviceEvent implements device.Observer.
func (c *Collector) OnDeviceEvent(e device.Event) {
	c.deviceEvents.WithLabelValues(string(e.Kind)).Inc()
	if e.Kind == device.EventControlled {
		c.commands.WithLabelValues(string(e.Action)).Inc()
	}
	if e.LowBattery {
		c.lowBattery.Inc()
	}
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordRateLimited(string)                             {}
func (Nop) SetWSConnections(int)                                 {}
func (Nop) RecordWSMessage(string, string)                       {}
func (Nop) RecordWSDropped()                                     {}
func (Nop) RecordTelemetry(string)                               {}
