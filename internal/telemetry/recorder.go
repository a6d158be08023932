package telemetry

import (
	"time"

	"github.com/tvmmachans/Customo/internal/device"
)

// PointWriter is the subset of the InfluxDB client used by Recorder.
type PointWriter interface {
	WriteBattery(deviceID, ownerID string, battery int, low bool, at time.Time)
	WriteStatus(deviceID, ownerID, status string, online bool, at time.Time)
	WriteLocation(deviceID, ownerID, location string, at time.Time)
	WriteCommand(deviceID, ownerID, action string, at time.Time)
}

// Recorder writes device history points. Writes are batched by the
// client and never block.
type Recorder struct {
	writer PointWriter
}

// NewRecorder creates a recorder over w.
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{writer: w}
}

// OnDeviceEvent implements device.Observer.
func (r *Recorder) OnDeviceEvent(e device.Event) {
	d := e.Device
	switch e.Kind {
	case device.EventCreated:
		r.writer.WriteStatus(d.ID, d.UserID, string(d.Status), d.IsOnline, e.At)
		r.writer.WriteBattery(d.ID, d.UserID, d.Battery, e.LowBattery, e.At)
	case device.EventControlled:
		r.writer.WriteCommand(d.ID, d.UserID, string(e.Action), e.At)
		r.writer.WriteStatus(d.ID, d.UserID, string(d.Status), d.IsOnline, e.At)
	case device.EventBattery:
		r.writer.WriteBattery(d.ID, d.UserID, d.Battery, e.LowBattery, e.At)
	case device.EventLocation:
		r.writer.WriteLocation(d.ID, d.UserID, d.Location, e.At)
	}
}
