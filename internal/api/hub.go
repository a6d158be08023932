package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/infrastructure/logging"
	"github.com/tvmmachans/Customo/internal/metrics"
	"github.com/tvmmachans/Customo/internal/ticket"
)

// Server → client message types.
const (
	MsgConnected          = "connected"
	MsgDeviceStatus       = "device-status"
	MsgDeviceStatusUpdate = "device-status-update"
	MsgBatteryUpdate      = "battery-update"
	MsgLowBatteryAlert    = "low-battery-alert"
	MsgLocationUpdate     = "location-update"
	MsgDeviceCreated      = "device-created"
	MsgDeviceUpdated      = "device-updated"
	MsgDeviceRemoved      = "device-removed"
	MsgServiceTicket      = "service-ticket"
	MsgLeft               = "left-device-monitoring"
	MsgPong               = "pong"
	MsgError              = "error"
)

// Group names.
const (
	GroupTechnicians = "technicians"
	GroupAdmins      = "admins"
)

// DeviceGroup names the group monitoring one device.
func DeviceGroup(id string) string { return "device:" + id }

// UserGroup names the group of one user's connections.
func UserGroup(id string) string { return "user:" + id }

// Message is the server → client envelope.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// DevicePayload is carried by every device event.
type DevicePayload struct {
	DeviceID   string         `json:"deviceId"`
	Device     *device.Device `json:"device,omitempty"`
	Action     device.Command `json:"action,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Battery    *int           `json:"battery,omitempty"`
	Location   *string        `json:"location,omitempty"`
}

// TicketPayload is carried by service-ticket events.
type TicketPayload struct {
	Action ticket.EventKind `json:"action"`
	Ticket ticket.Ticket    `json:"ticket"`
}

// ErrorPayload is carried by error events.
type ErrorPayload struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Hub owns every connection and its group memberships.
//
// Delivery never blocks: each client has a bounded send queue and a frame
// that does not fit is dropped for that client alone. Sends happen under
// the hub's read lock and removal closes the queue under the write lock,
// so a removed client never receives another frame.
type Hub struct {
	logger  *logging.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu      sync.RWMutex
	clients map[*Client]map[string]struct{}
	groups  map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger, rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Hub{
		logger:  logger,
		metrics: rec,
		now:     time.Now,
		clients: make(map[*Client]map[string]struct{}),
		groups:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client with no memberships.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = make(map[string]struct{})
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetWSConnections(n)
	h.logger.Debug("websocket client connected", "user_id", c.userID(), "clients", n)
}

// Join enrols c in group. It is a no-op for unregistered clients.
func (h *Hub) Join(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	memberships, ok := h.clients[c]
	if !ok {
		return
	}
	members := h.groups[group]
	if members == nil {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
	memberships[group] = struct{}{}
}

// Leave removes c from group.
func (h *Hub) Leave(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, group)
}

func (h *Hub) leaveLocked(c *Client, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if memberships, ok := h.clients[c]; ok {
		delete(memberships, group)
	}
}

// LeaveAll removes c from every group and from the hub, then closes its send
// queue. Safe to call more than once.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	memberships, ok := h.clients[c]
	if ok {
		for group := range memberships {
			h.leaveLocked(c, group)
		}
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SetWSConnections(n)
		h.logger.Debug("websocket client disconnected", "user_id", c.userID(), "clients", n)
	}
}

// DropGroup removes every member from group.
func (h *Hub) DropGroup(group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.groups[group] {
		delete(h.clients[c], group)
	}
	delete(h.groups, group)
}

// Groups returns the groups c belongs to.
func (h *Hub) Groups(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients[c]))
	for g := range h.clients[c] {
		out = append(out, g)
	}
	return out
}

// GroupSize returns the number of members of group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends msg to every member of group.
func (h *Hub) Publish(group string, msg Message) {
	h.PublishMany([]string{group}, msg)
}

// PublishMany sends msg once to every client that belongs to at least one
// of groups.
func (h *Hub) PublishMany(groups []string, msg Message) {
	if msg.Timestamp == "" {
		msg.Timestamp = h.timestamp()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, group := range groups {
		for c := range h.groups[group] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			h.deliverLocked(c, msg.Type, data)
		}
	}
}

// SendTo sends msg to a single client.
func (h *Hub) SendTo(c *Client, msg Message) {
	if msg.Timestamp == "" {
		msg.Timestamp = h.timestamp()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.deliverLocked(c, msg.Type, data)
	}
}

// deliverLocked queues data for c. The caller holds h.mu.
func (h *Hub) deliverLocked(c *Client, msgType string, data []byte) {
	select {
	case c.send <- data:
		h.metrics.RecordWSMessage("out", msgType)
	default:
		h.metrics.RecordWSDropped()
		h.logger.Warn("websocket send queue full, dropping frame",
			"user_id", c.userID(),
			"type", msgType,
		)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.LeaveAll(c)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

func (h *Hub) eventTime(at time.Time) string {
	if at.IsZero() {
		return h.timestamp()
	}
	return at.UTC().Format(time.RFC3339Nano)
}

// OnDeviceEvent fans a registry mutation out to the device's monitors and
// the owner's connections. Staff groups only see ticket events: a device
// is visible to its owner alone.
func (h *Hub) OnDeviceEvent(e device.Event) {
	d := e.Device
	at := h.eventTime(e.At)
	fanout := []string{DeviceGroup(d.ID), UserGroup(d.UserID)}

	switch e.Kind {
	case device.EventCreated:
		h.Publish(UserGroup(d.UserID), Message{
			Type: MsgDeviceCreated, Timestamp: at,
			Payload: DevicePayload{DeviceID: d.ID, Device: &d},
		})
	case device.EventUpdated:
		h.PublishMany(fanout, Message{
			Type: MsgDeviceUpdated, Timestamp: at,
			Payload: DevicePayload{DeviceID: d.ID, Device: &d},
		})
	case device.EventControlled:
		h.PublishMany(fanout, Message{
			Type: MsgDeviceStatusUpdate, Timestamp: at,
			Payload: DevicePayload{DeviceID: d.ID, Device: &d, Action: e.Action, Parameters: e.Parameters},
		})
	case device.EventBattery:
		battery := d.Battery
		payload := DevicePayload{DeviceID: d.ID, Device: &d, Battery: &battery}
		h.PublishMany(fanout, Message{Type: MsgBatteryUpdate, Timestamp: at, Payload: payload})
		if e.LowBattery {
			h.PublishMany(fanout, Message{Type: MsgLowBatteryAlert, Timestamp: at, Payload: payload})
		}
	case device.EventLocation:
		location := d.Location
		h.PublishMany(fanout, Message{
			Type: MsgLocationUpdate, Timestamp: at,
			Payload: DevicePayload{DeviceID: d.ID, Device: &d, Location: &location},
		})
	case device.EventDeleted:
		h.PublishMany(fanout, Message{
			Type: MsgDeviceRemoved, Timestamp: at,
			Payload: DevicePayload{DeviceID: d.ID},
		})
		h.DropGroup(DeviceGroup(d.ID))
	}
}

// OnTicketEvent publishes ticket changes to the technicians group and the
// ticket owner.
func (h *Hub) OnTicketEvent(e ticket.Event) {
	h.PublishMany([]string{GroupTechnicians, UserGroup(e.Ticket.UserID)}, Message{
		Type:      MsgServiceTicket,
		Timestamp: h.eventTime(e.At),
		Payload:   TicketPayload{Action: e.Kind, Ticket: e.Ticket},
	})
}
