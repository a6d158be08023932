package mqtt

import "strings"

// Topic segments under the configured prefix.
const (
	segmentDevices = "devices"
	segmentSystem  = "system"

	KindState     = "state"
	KindCommand   = "command"
	KindTelemetry = "telemetry"
	KindRemoved   = "removed"
)

// Topics builds the topic hierarchy rooted at Prefix:
//
//	{prefix}/devices/{id}/state      retained device JSON (core → robots, dashboards)
//	{prefix}/devices/{id}/command    control commands (core → robot)
//	{prefix}/devices/{id}/telemetry  battery/location reports (robot → core)
//	{prefix}/devices/{id}/removed    device deleted (core → robot)
//	{prefix}/system/status           core online/offline (LWT)
type Topics struct {
	Prefix string
}

func (t Topics) device(id, kind string) string {
	return t.Prefix + "/" + segmentDevices + "/" + id + "/" + kind
}

// DeviceState returns the retained state topic for a device.
func (t Topics) DeviceState(deviceID string) string {
	return t.device(deviceID, KindState)
}

// DeviceCommand returns the command topic a robot listens on.
func (t Topics) DeviceCommand(deviceID string) string {
	return t.device(deviceID, KindCommand)
}

// DeviceTelemetry returns the topic a robot reports on.
func (t Topics) DeviceTelemetry(deviceID string) string {
	return t.device(deviceID, KindTelemetry)
}

// DeviceRemoved returns the topic announcing a device deletion.
func (t Topics) DeviceRemoved(deviceID string) string {
	return t.device(deviceID, KindRemoved)
}

// AllDeviceTelemetry matches telemetry from every robot.
func (t Topics) AllDeviceTelemetry() string {
	return t.device("+", KindTelemetry)
}

// SystemStatus returns the core status topic used for the LWT.
func (t Topics) SystemStatus() string {
	return t.Prefix + "/" + segmentSystem + "/status"
}

// ParseDeviceTopic splits a concrete device topic into its device id and
// kind. ok is false for topics outside the device hierarchy.
func (t Topics) ParseDeviceTopic(topic string) (deviceID, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/"+segmentDevices+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[0] == "+" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
