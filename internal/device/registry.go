package device

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/tvmmachans/Customo/internal/validation"
)

// Logger defines the logging interface used by the Registry.
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

const (
	lockStripes = 64

	maxNameLength     = 255
	maxTypeLength     = 100
	maxLocationLength = 500
	maxTasksLength    = 1000
)

// Registry applies every device mutation and fans the result out to its
// observers.
//
// Thread Safety: writes to one device are serialised through a striped
// mutex, so the order observers see equals the order rows were written.
type Registry struct {
	repo    Repository
	stripes [lockStripes]sync.Mutex

	observers []Observer
	obsMu     sync.RWMutex

	lowBattery int
	logger     Logger
	now        func() time.Time
}

// NewRegistry creates a registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:       repo,
		lowBattery: DefaultLowBatteryThreshold,
		logger:     noopLogger{},
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetLowBatteryThreshold sets the level at or below which a battery report
// raises a low-battery alert.
func (r *Registry) SetLowBatteryThreshold(level int) {
	r.lowBattery = ClampBattery(level)
}

// LowBatteryThreshold returns the configured alert level.
func (r *Registry) LowBatteryThreshold() int {
	return r.lowBattery
}

// AddObserver registers o for every subsequent mutation.
func (r *Registry) AddObserver(o Observer) {
	r.obsMu.Lock()
	r.observers = append(r.observers, o)
	r.obsMu.Unlock()
}

func (r *Registry) lock(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id)) //nolint:errcheck // hash writes never fail
	mu := &r.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// emit delivers e to every observer. A panicking observer is logged and
// skipped; it never fails the mutation.
func (r *Registry) emit(e Event) {
	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("device observer panic recovered",
						"device_id", e.Device.ID, "event", e.Kind, "panic", rec)
				}
			}()
			o.OnDeviceEvent(e)
		}()
	}
}

// appendLog records an activity line. Failures are logged, not returned:
// the device row is already written.
func (r *Registry) appendLog(ctx context.Context, deviceID string, level LogLevel, msg string, details any) {
	entry := &LogEntry{DeviceID: deviceID, Level: level, Message: msg, Timestamp: r.now()}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = string(b)
		}
	}
	if err := r.repo.AppendLog(ctx, entry); err != nil {
		r.logger.Warn("device log append failed", "device_id", deviceID, "error", err)
	}
}

// List returns one page of the owner's devices.
func (r *Registry) List(ctx context.Context, ownerID string, filter ListFilter) (Page, error) {
	filter.normalise()
	filter.Search = strings.TrimSpace(filter.Search)

	devices, total, err := r.repo.List(ctx, ownerID, filter)
	if err != nil {
		return Page{}, err
	}
	pages := 0
	if total > 0 {
		pages = (total + filter.Limit - 1) / filter.Limit
	}
	return Page{Devices: devices, Page: filter.Page, Limit: filter.Limit, Total: total, Pages: pages}, nil
}

// Get returns an owner's device.
func (r *Registry) Get(ctx context.Context, ownerID, id string) (*Device, error) {
	return r.repo.GetForOwner(ctx, ownerID, id)
}

// Create registers a new device for ownerID.
func (r *Registry) Create(ctx context.Context, ownerID string, in CreateInput) (*Device, error) {
	var verr validation.Errors
	name := strings.TrimSpace(in.Name)
	typ := strings.TrimSpace(in.Type)
	if name == "" || len(name) > maxNameLength {
		verr = append(verr, ErrInvalidName)
	}
	if typ == "" || len(typ) > maxTypeLength {
		verr = append(verr, ErrInvalidType)
	}
	status := StatusOffline
	if in.Status != "" {
		s, err := ParseStatus(in.Status)
		if err != nil {
			verr.AddErr(err)
		}
		status = s
	}
	if len(in.Location) > maxLocationLength {
		verr = append(verr, ErrInvalidLocation)
	}
	if len(in.Tasks) > maxTasksLength {
		verr = append(verr, ErrInvalidTasks)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	battery := MaxBattery
	if in.Battery != nil {
		battery = ClampBattery(*in.Battery)
	}

	now := r.now()
	d := &Device{
		Name:      name,
		Type:      typ,
		Battery:   battery,
		Location:  strings.TrimSpace(in.Location),
		Tasks:     in.Tasks,
		LastSeen:  now,
		UserID:    ownerID,
		ProductID: in.ProductID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.applyStatus(status)

	if err := r.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	r.logger.Info("device created", "id", d.ID, "owner", ownerID, "name", d.Name)
	r.appendLog(ctx, d.ID, LogInfo, "Device registered", nil)
	r.emit(Event{Kind: EventCreated, Device: *d, ActorID: ownerID, At: now})
	return d, nil
}

// Update edits an owner's device descriptive fields.
func (r *Registry) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*Device, error) {
	var verr validation.Errors
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		if n == "" || len(n) > maxNameLength {
			verr = append(verr, ErrInvalidName)
		}
		in.Name = &n
	}
	if in.Type != nil {
		t := strings.TrimSpace(*in.Type)
		if t == "" || len(t) > maxTypeLength {
			verr = append(verr, ErrInvalidType)
		}
		in.Type = &t
	}
	if in.Location != nil && len(*in.Location) > maxLocationLength {
		verr = append(verr, ErrInvalidLocation)
	}
	if in.Tasks != nil && len(*in.Tasks) > maxTasksLength {
		verr = append(verr, ErrInvalidTasks)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	return r.mutate(ctx, ownerID, id, func(d *Device, now time.Time) (Event, error) {
		if in.Name != nil {
			d.Name = *in.Name
		}
		if in.Type != nil {
			d.Type = *in.Type
		}
		if in.Location != nil {
			d.Location = strings.TrimSpace(*in.Location)
		}
		if in.Tasks != nil {
			d.Tasks = *in.Tasks
		}
		if in.ProductID != nil {
			d.ProductID = in.ProductID
			if *in.ProductID == "" {
				d.ProductID = nil
			}
		}
		return Event{Kind: EventUpdated}, nil
	}, func(ctx context.Context, d *Device, _ Event) {
		r.appendLog(ctx, d.ID, LogInfo, "Device updated", nil)
	})
}

// Delete removes an owner's device and notifies observers.
func (r *Registry) Delete(ctx context.Context, ownerID, id string) error {
	unlock := r.lock(id)
	defer unlock()

	d, err := r.repo.GetForOwner(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := r.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	r.logger.Info("device deleted", "id", id, "owner", ownerID)
	r.emit(Event{Kind: EventDeleted, Device: *d, ActorID: ownerID, At: r.now()})
	return nil
}

// Control applies a command from the table. No transition is refused on
// account of the current status.
func (r *Registry) Control(ctx context.Context, ownerID, id string, cmd Command, params map[string]any) (*Device, error) {
	status, tasks, ok := cmd.Effect()
	if !ok {
		return nil, ErrInvalidCommand
	}

	return r.mutate(ctx, ownerID, id, func(d *Device, now time.Time) (Event, error) {
		d.applyStatus(status)
		d.Tasks = tasks
		d.LastSeen = now
		return Event{Kind: EventControlled, Action: cmd, Parameters: params}, nil
	}, func(ctx context.Context, d *Device, _ Event) {
		details := map[string]any{"action": cmd, "status": status}
		if len(params) > 0 {
			details["parameters"] = params
		}
		r.appendLog(ctx, d.ID, LogInfo, fmt.Sprintf("Command %q applied", cmd), details)
		r.logger.Debug("device command applied", "id", d.ID, "action", cmd, "status", status)
	})
}

// ReportBattery stores a clamped battery level. lowBattery reports whether
// the stored level is at or below the alert threshold.
func (r *Registry) ReportBattery(ctx context.Context, ownerID, id string, level int) (*Device, bool, error) {
	d, err := r.mutate(ctx, ownerID, id, r.batteryChange(level), r.batteryLog)
	if err != nil {
		return nil, false, err
	}
	return d, d.Battery <= r.lowBattery, nil
}

// ReportLocation replaces the free-form location.
func (r *Registry) ReportLocation(ctx context.Context, ownerID, id, location string) (*Device, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrMissingLocation
	}
	if len(location) > maxLocationLength {
		return nil, ErrInvalidLocation
	}
	return r.mutate(ctx, ownerID, id, locationChange(location), r.locationLog)
}

// ReportTelemetry applies a robot self-report. There is no owner check: the
// device itself is the reporter, authenticated by the transport.
func (r *Registry) ReportTelemetry(ctx context.Context, id string, report TelemetryReport) (*Device, error) {
	if report.Battery == nil && report.Location == nil {
		return nil, ErrEmptyTelemetry
	}
	var loc string
	if report.Location != nil {
		loc = strings.TrimSpace(*report.Location)
		if loc == "" {
			return nil, ErrMissingLocation
		}
		if len(loc) > maxLocationLength {
			return nil, ErrInvalidLocation
		}
	}

	existing, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := existing.UserID

	var d *Device
	if report.Battery != nil {
		if d, err = r.mutate(ctx, owner, id, r.batteryChange(*report.Battery), r.batteryLog); err != nil {
			return nil, err
		}
	}
	if report.Location != nil {
		if d, err = r.mutate(ctx, owner, id, locationChange(loc), r.locationLog); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (r *Registry) batteryChange(level int) changeFunc {
	return func(d *Device, now time.Time) (Event, error) {
		d.Battery = ClampBattery(level)
		d.LastSeen = now
		return Event{Kind: EventBattery, LowBattery: d.Battery <= r.lowBattery}, nil
	}
}

func (r *Registry) batteryLog(ctx context.Context, d *Device, e Event) {
	if e.LowBattery {
		r.appendLog(ctx, d.ID, LogWarning, fmt.Sprintf("Low battery: %d%%", d.Battery), map[string]any{"battery": d.Battery})
		r.logger.Warn("device battery low", "id", d.ID, "battery", d.Battery)
		return
	}
	r.appendLog(ctx, d.ID, LogInfo, fmt.Sprintf("Battery reported: %d%%", d.Battery), nil)
}

func locationChange(location string) changeFunc {
	return func(d *Device, now time.Time) (Event, error) {
		d.Location = location
		d.LastSeen = now
		return Event{Kind: EventLocation}, nil
	}
}

func (r *Registry) locationLog(ctx context.Context, d *Device, _ Event) {
	r.appendLog(ctx, d.ID, LogInfo, "Location updated", map[string]any{"location": d.Location})
}

// Stats summarises the owner's fleet.
func (r *Registry) Stats(ctx context.Context, ownerID string) (Stats, error) {
	return r.repo.Stats(ctx, ownerID, r.lowBattery)
}

// Logs returns the newest activity lines of an owner's device.
func (r *Registry) Logs(ctx context.Context, ownerID, id string, limit int) ([]LogEntry, error) {
	if _, err := r.repo.GetForOwner(ctx, ownerID, id); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	return r.repo.Logs(ctx, id, limit)
}

type changeFunc func(d *Device, now time.Time) (Event, error)

type afterFunc func(ctx context.Context, d *Device, e Event)

// mutate is the single write path: lock, read the owner's row, apply the
// change, re-derive invariants, write the row, log, emit.
func (r *Registry) mutate(ctx context.Context, ownerID, id string, change changeFunc, after afterFunc) (*Device, error) {
	unlock := r.lock(id)
	defer unlock()

	d, err := r.repo.GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := r.now()
	event, err := change(d, now)
	if err != nil {
		return nil, err
	}
	d.Battery = ClampBattery(d.Battery)
	d.applyStatus(d.Status)
	d.UpdatedAt = now

	if err := r.repo.Save(ctx, d); err != nil {
		return nil, err
	}

	if after != nil {
		after(ctx, d, event)
	}

	event.Device = *d
	event.ActorID = ownerID
	event.At = now
	r.emit(event)
	return d, nil
}
