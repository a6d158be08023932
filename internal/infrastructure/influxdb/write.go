package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the telemetry recorder.
const (
	MeasurementBattery  = "device_battery"
	MeasurementStatus   = "device_status"
	MeasurementLocation = "device_location"
	MeasurementCommand  = "device_command"
)

func deviceTags(deviceID, ownerID string) map[string]string {
	tags := map[string]string{"device_id": deviceID}
	if ownerID != "" {
		tags["owner_id"] = ownerID
	}
	return tags
}

// WriteBattery records a battery level sample.
func (c *Client) WriteBattery(deviceID, ownerID string, battery int, low bool, at time.Time) {
	c.WritePointWithTime(MeasurementBattery, deviceTags(deviceID, ownerID),
		map[string]any{"battery": battery, "low": low}, at)
}

// WriteStatus records the device status and online flag.
func (c *Client) WriteStatus(deviceID, ownerID, status string, online bool, at time.Time) {
	tags := deviceTags(deviceID, ownerID)
	tags["status"] = status
	c.WritePointWithTime(MeasurementStatus, tags, map[string]any{"online": online}, at)
}

// WriteLocation records a free-form location report.
func (c *Client) WriteLocation(deviceID, ownerID, location string, at time.Time) {
	c.WritePointWithTime(MeasurementLocation, deviceTags(deviceID, ownerID),
		map[string]any{"location": location}, at)
}

// WriteCommand records an issued control command.
func (c *Client) WriteCommand(deviceID, ownerID, action string, at time.Time) {
	tags := deviceTags(deviceID, ownerID)
	tags["action"] = action
	c.WritePointWithTime(MeasurementCommand, tags, map[string]any{"count": 1}, at)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point. Dropped silently while
// disconnected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
