// Package device provides the Device Registry for Customo Core.
//
// The registry owns every customer robot: its status, battery, location and
// the running task description. All reads and writes are scoped to the
// owning user; a device owned by someone else is reported as not found.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        Device Registry                       │
//	│                                                              │
//	│  ┌──────────────────┐   ┌──────────────────┐                 │
//	│  │     Registry     │──▶│    Repository    │──▶ SQLite       │
//	│  │  (registry.go)   │   │ (repository.go)  │   devices,      │
//	│  │ • per-device lock│   │ • owner-scoped   │   device_logs   │
//	│  │ • command table  │   │   SQL            │                 │
//	│  │ • clamp/derive   │   └──────────────────┘                 │
//	│  └────────┬─────────┘                                        │
//	│           │ Event                                            │
//	└───────────│──────────────────────────────────────────────────┘
//	            ▼
//	   Observers: WebSocket hub, MQTT publisher, InfluxDB recorder, metrics
//
// # Control commands
//
// Status changes only through the flat command table below. No transition is
// guarded by the current status.
//
//	start        → ACTIVE       "Device started and running"
//	stop         → IDLE         "Device stopped"
//	pause        → IDLE         "Device paused"
//	reset        → IDLE         "Device reset"
//	maintenance  → MAINTENANCE  "Device in maintenance mode"
//
// # Invariants
//
//   - IsOnline == (Status not in {OFFLINE, ERROR}) after every write.
//   - Battery is clamped to [0, 100] on every write.
//   - Writes to one device are serialised, and observers see events in the
//     order the writes were applied.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//	registry.AddObserver(hub)
//
//	dev, err := registry.Control(ctx, userID, deviceID, device.CommandStart, nil)
package device
