package device

import "time"

// EventKind names a registry mutation.
type EventKind string

// EventKind constants.
const (
	EventCreated    EventKind = "created"
	EventUpdated    EventKind = "updated"
	EventControlled EventKind = "controlled"
	EventBattery    EventKind = "battery"
	EventLocation   EventKind = "location"
	EventDeleted    EventKind = "deleted"
)

// Event describes one applied mutation. Device is the state after the
// write (before it, for EventDeleted).
type Event struct {
	Kind       EventKind
	Device     Device
	Action     Command
	Parameters map[string]any
	LowBattery bool

	// ActorID is the user that issued the change, empty for robot
	// self-reports.
	ActorID string
	At      time.Time
}

// Observer receives every applied mutation in apply order for a given
// device. OnDeviceEvent runs while the device is locked and must not block
// or call back into the Registry for the same device.
type Observer interface {
	OnDeviceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnDeviceEvent calls f(e).
func (f ObserverFunc) OnDeviceEvent(e Event) { f(e) }
