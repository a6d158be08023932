// Package telemetry connects the device registry to the physical fleet and
// to time-series history.
//
//   - Publisher mirrors every registry event onto MQTT: the device state
//     (retained), the control command robots act on, and removal notices.
//   - Subscriber consumes robot self-reports from
//     {prefix}/devices/+/telemetry and applies them through
//     Registry.ReportTelemetry.
//   - Recorder writes battery, status, location and command points to
//     InfluxDB.
//
// Publisher and Recorder are device.Observers. Observers run while the
// device is locked, so Publisher hands messages to a worker goroutine
// instead of waiting on the broker.
package telemetry

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
