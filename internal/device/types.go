package device

import (
	"strings"
	"time"
)

// Status is the operating state of a robot.
type Status string

// Status constants.
const (
	StatusActive      Status = "ACTIVE"
	StatusIdle        Status = "IDLE"
	StatusMaintenance Status = "MAINTENANCE"
	StatusOffline     Status = "OFFLINE"
	StatusError       Status = "ERROR"
)

// ValidStatuses lists every status.
var ValidStatuses = []Status{StatusActive, StatusIdle, StatusMaintenance, StatusOffline, StatusError}

// ParseStatus accepts status names in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range ValidStatuses {
		if st == v {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Online reports whether a device in this status counts as online.
func (s Status) Online() bool {
	return s != StatusOffline && s != StatusError
}

// Command is a control action issued by the owner.
type Command string

// Command constants.
const (
	CommandStart       Command = "start"
	CommandStop        Command = "stop"
	CommandPause       Command = "pause"
	CommandReset       Command = "reset"
	CommandMaintenance Command = "maintenance"
)

type commandEffect struct {
	status Status
	tasks  string
}

var commandTable = map[Command]commandEffect{
	CommandStart:       {StatusActive, "Device started and running"},
	CommandStop:        {StatusIdle, "Device stopped"},
	CommandPause:       {StatusIdle, "Device paused"},
	CommandReset:       {StatusIdle, "Device reset"},
	CommandMaintenance: {StatusMaintenance, "Device in maintenance mode"},
}

// ParseCommand accepts command names in any case.
func ParseCommand(s string) (Command, error) {
	c := Command(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := commandTable[c]; !ok {
		return "", ErrInvalidCommand
	}
	return c, nil
}

// Effect returns the status and task text the command applies.
func (c Command) Effect() (Status, string, bool) {
	e, ok := commandTable[c]
	return e.status, e.tasks, ok
}

// Battery bounds.
const (
	MinBattery = 0
	MaxBattery = 100

	// DefaultLowBatteryThreshold triggers a low-battery alert at or below.
	DefaultLowBatteryThreshold = 20
)

// ClampBattery bounds a reported level to [0, 100].
func ClampBattery(level int) int {
	return min(max(level, MinBattery), MaxBattery)
}

// Device is a customer-owned robot.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    Status    `json:"status"`
	Battery   int       `json:"battery"`
	Location  string    `json:"location"`
	IsOnline  bool      `json:"isOnline"`
	Tasks     string    `json:"tasks"`
	LastSeen  time.Time `json:"lastSeen"`
	UserID    string    `json:"userId"`
	ProductID *string   `json:"productId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// applyStatus sets Status and the derived IsOnline together.
func (d *Device) applyStatus(s Status) {
	d.Status = s
	d.IsOnline = s.Online()
}

// CreateInput carries the fields accepted when registering a device.
// Status defaults to OFFLINE and Battery to 100.
type CreateInput struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Status    string  `json:"status,omitempty"`
	Battery   *int    `json:"battery,omitempty"`
	Location  string  `json:"location,omitempty"`
	Tasks     string  `json:"tasks,omitempty"`
	ProductID *string `json:"productId,omitempty"`
}

// UpdateInput carries the descriptive fields an owner may edit. Nil fields
// are left unchanged. Status moves only through Control.
type UpdateInput struct {
	Name      *string `json:"name,omitempty"`
	Type      *string `json:"type,omitempty"`
	Location  *string `json:"location,omitempty"`
	Tasks     *string `json:"tasks,omitempty"`
	ProductID *string `json:"productId,omitempty"`
}

// TelemetryReport is a self-report from a robot. Robots never report status.
type TelemetryReport struct {
	Battery  *int    `json:"battery,omitempty"`
	Location *string `json:"location,omitempty"`
}

// ListFilter narrows an owner's device listing.
type ListFilter struct {
	Status Status
	Type   string
	Online *bool
	Search string
	Page   int
	Limit  int
}

// Pagination defaults.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

func (f *ListFilter) normalise() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}

// Page is one page of an owner's devices.
type Page struct {
	Devices []Device `json:"devices"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	Total   int      `json:"total"`
	Pages   int      `json:"pages"`
}

// Stats summarises an owner's fleet.
type Stats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Online      int `json:"online"`
	Maintenance int `json:"maintenance"`
	LowBattery  int `json:"lowBattery"`
}

// LogLevel classifies a device log entry.
type LogLevel string

// LogLevel constants.
const (
	LogInfo    LogLevel = "INFO"
	LogWarning LogLevel = "WARNING"
	LogError   LogLevel = "ERROR"
)

// LogEntry is one line of a device's activity log.
type LogEntry struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Log listing bounds.
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 200
)
