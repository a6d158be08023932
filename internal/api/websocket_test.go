package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/device"
)

// ─── Handshake ─────────────────────────────────────────────────────

func TestWebSocket_Handshake(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	token, userID := env.register(t, "alice@example.com")

	t.Run("refused without token", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
		if err == nil {
			conn.Close()
			t.Fatal("dial succeeded without a token")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("response = %v, want 401", resp)
		}
		resp.Body.Close()
	})

	t.Run("refused with bad token", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token=garbage"), nil)
		if err == nil {
			conn.Close()
			t.Fatal("dial succeeded with an invalid token")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("response = %v, want 401", resp)
		}
		resp.Body.Close()
	})

	t.Run("authorization header", func(t *testing.T) {
		header := http.Header{"Authorization": []string{"Bearer " + token}}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		resp.Body.Close()
		defer conn.Close()

		f := readUntil(t, conn, MsgConnected)
		var p connectedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			t.Fatalf("decoding connected payload: %v", err)
		}
		if p.UserID != userID || p.Role != auth.RoleCustomer {
			t.Errorf("connected = %+v, want user %s CUSTOMER", p, userID)
		}
		if len(p.Groups) != 1 || p.Groups[0] != UserGroup(userID) {
			t.Errorf("Groups = %v, want [%s]", p.Groups, UserGroup(userID))
		}
	})

	t.Run("subprotocol pair", func(t *testing.T) {
		dialer := websocket.Dialer{Subprotocols: []string{"bearer", token}}
		conn, resp, err := dialer.Dial(wsURL(ts, ""), nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		resp.Body.Close()
		defer conn.Close()

		if got := conn.Subprotocol(); got != "bearer" {
			t.Errorf("Subprotocol() = %q, want bearer", got)
		}
		readUntil(t, conn, MsgConnected)
	})

	t.Run("disallowed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"https://evil.example"}}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+token), header)
		if err == nil {
			conn.Close()
			t.Fatal("dial succeeded from a disallowed origin")
		}
		if resp != nil {
			resp.Body.Close()
		}
	})
}

func TestWebSocket_StaffGroups(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	token, techID := env.register(t, "tech@example.com")
	env.promote(t, techID, auth.RoleTechnician)

	dialWS(t, ts, token)

	waitFor(t, "technician registration", func() bool { return env.srv.Hub().GroupSize(GroupTechnicians) == 1 })
	if got := env.srv.Hub().GroupSize(GroupAdmins); got != 0 {
		t.Errorf("admins group size = %d, want 0", got)
	}
}

// ─── Device monitoring ─────────────────────────────────────────────

// TestWebSocket_DeviceFlow walks through registration, two monitoring
// connections, a start command and a low battery report.
func TestWebSocket_DeviceFlow(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	token, _ := env.register(t, "alice@example.com")

	d := env.createDevice(t, token, "Bot1", "Security")
	if d.Status != device.StatusOffline || d.Battery != 100 || d.IsOnline {
		t.Fatalf("new device = %+v, want OFFLINE, battery 100, offline", d)
	}

	first := dialWS(t, ts, token)
	second := dialWS(t, ts, token)

	for i, conn := range []*websocket.Conn{first, second} {
		sendFrame(t, conn, WSTypeJoinDevice, "join", map[string]string{"deviceId": d.ID})
		f := readUntil(t, conn, MsgDeviceStatus)
		if f.ID != "join" {
			t.Errorf("conn %d: join reply id = %q, want join", i, f.ID)
		}
		if p := f.devicePayload(t); p.Device == nil || p.Device.ID != d.ID {
			t.Errorf("conn %d: join reply = %+v", i, p)
		}
	}

	sendFrame(t, first, WSTypeDeviceControl, "c1", map[string]string{"deviceId": d.ID, "action": "start"})
	for i, conn := range []*websocket.Conn{first, second} {
		p := readUntil(t, conn, MsgDeviceStatusUpdate).devicePayload(t)
		if p.Action != device.CommandStart {
			t.Errorf("conn %d: Action = %q, want start", i, p.Action)
		}
		if p.Device == nil {
			t.Fatalf("conn %d: status update without device", i)
		}
		if p.Device.Status != device.StatusActive || p.Device.Tasks != "Device started and running" {
			t.Errorf("conn %d: device = %+v, want ACTIVE and running", i, p.Device)
		}
		if !p.Device.IsOnline {
			t.Errorf("conn %d: IsOnline = false after start", i)
		}
	}

	sendFrame(t, first, WSTypeUpdateBattery, "b1", map[string]any{"deviceId": d.ID, "battery": 15})
	update := readUntil(t, second, MsgBatteryUpdate).devicePayload(t)
	if update.Battery == nil || *update.Battery != 15 {
		t.Errorf("battery update = %+v, want 15", update)
	}
	alert := readUntil(t, second, MsgLowBatteryAlert).devicePayload(t)
	if alert.DeviceID != d.ID || alert.Battery == nil || *alert.Battery != 15 {
		t.Errorf("low battery alert = %+v, want device %s at 15", alert, d.ID)
	}

	// The registry holds the final state.
	got, err := env.registry.Get(t.Context(), d.UserID, d.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != device.StatusActive || got.Battery != 15 {
		t.Errorf("stored device = %+v, want ACTIVE at 15", got)
	}
}

func TestWebSocket_RESTMutationsBroadcast(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	token, _ := env.register(t, "alice@example.com")
	d := env.createDevice(t, token, "Bot1", "Security")

	conn := dialWS(t, ts, token)
	sendFrame(t, conn, WSTypeJoinDevice, "", map[string]string{"deviceId": d.ID})
	readUntil(t, conn, MsgDeviceStatus)

	env.mustDo(t, http.StatusOK, http.MethodPut, "/api/devices/"+d.ID+"/location", token, map[string]string{"location": "Dock 4"})
	p := readUntil(t, conn, MsgLocationUpdate).devicePayload(t)
	if p.Location == nil || *p.Location != "Dock 4" {
		t.Errorf("location update = %+v, want Dock 4", p)
	}

	env.mustDo(t, http.StatusOK, http.MethodDelete, "/api/devices/"+d.ID, token, nil)
	if p := readUntil(t, conn, MsgDeviceRemoved).devicePayload(t); p.DeviceID != d.ID {
		t.Errorf("removed = %+v, want %s", p, d.ID)
	}
	waitFor(t, "device group dissolved", func() bool { return env.srv.Hub().GroupSize(DeviceGroup(d.ID)) == 0 })
}

// TestWebSocket_TechnicianSeesNoForeignDevices checks the channel agrees
// with REST: a device the technician cannot read is never pushed to them.
func TestWebSocket_TechnicianSeesNoForeignDevices(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	alice, _ := env.register(t, "alice@example.com")
	techToken, techID := env.register(t, "tech@example.com")
	env.promote(t, techID, auth.RoleTechnician)

	tech := dialWS(t, ts, techToken)
	waitFor(t, "technician registration", func() bool { return env.srv.Hub().GroupSize(GroupTechnicians) == 1 })

	d := env.createDevice(t, alice, "Bot1", "Security")
	env.mustDo(t, http.StatusOK, http.MethodPost, "/api/devices/"+d.ID+"/control", alice, map[string]string{"action": "start"})
	env.mustDo(t, http.StatusOK, http.MethodPut, "/api/devices/"+d.ID+"/battery", alice, map[string]int{"battery": 10})
	env.mustDo(t, http.StatusNotFound, http.MethodGet, "/api/devices/"+d.ID, techToken, nil)

	// Frames are delivered in order, so everything queued before the pong
	// has arrived once the pong is read.
	sendFrame(t, tech, WSTypePing, "p1", nil)
	if err := tech.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	for {
		var f wsFrame
		if err := tech.ReadJSON(&f); err != nil {
			t.Fatalf("reading frame: %v", err)
		}
		if f.Type == MsgPong {
			break
		}
		t.Errorf("technician received %q for a device it cannot read", f.Type)
	}
}

func TestWebSocket_TicketNotifiesTechnicians(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	customer, _ := env.register(t, "cust@example.com")
	techToken, techID := env.register(t, "tech@example.com")
	env.promote(t, techID, auth.RoleTechnician)

	tech := dialWS(t, ts, techToken)

	env.mustDo(t, http.StatusCreated, http.MethodPost, "/api/service/tickets", customer, map[string]any{
		"title": "Stuck", "description": "Arm jammed", "issueType": "hardware",
	})

	f := readUntil(t, tech, MsgServiceTicket)
	var p TicketPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if p.Ticket.Title != "Stuck" {
		t.Errorf("ticket = %+v, want Stuck", p.Ticket)
	}
}

// ─── Frame errors ──────────────────────────────────────────────────

func TestWebSocket_FrameErrors(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	alice, _ := env.register(t, "alice@example.com")
	bob, _ := env.register(t, "bob@example.com")
	d := env.createDevice(t, alice, "Bot1", "Security")

	conn := dialWS(t, ts, bob)

	tests := []struct {
		name    string
		msgType string
		payload any
		want    string
	}{
		{"foreign device", WSTypeJoinDevice, map[string]string{"deviceId": d.ID}, "Device not found"},
		{"foreign control", WSTypeDeviceControl, map[string]string{"deviceId": d.ID, "action": "start"}, "Device not found"},
		{"missing device id", WSTypeJoinDevice, map[string]string{}, errMissingDeviceID.Error()},
		{"missing payload", WSTypeUpdateBattery, nil, "payload: is required"},
		{"missing battery", WSTypeUpdateBattery, map[string]string{"deviceId": d.ID}, device.ErrMissingBattery.Error()},
		{"unknown action", WSTypeDeviceControl, map[string]string{"deviceId": d.ID, "action": "fly"}, device.ErrInvalidCommand.Error()},
		{"unknown type", "dance", nil, "unknown message type: dance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendFrame(t, conn, tt.msgType, "req-"+tt.name, tt.payload)
			f := readUntil(t, conn, MsgError)
			var p ErrorPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if p.Message != tt.want {
				t.Errorf("Message = %q, want %q", p.Message, tt.want)
			}
			if f.ID != "req-"+tt.name || p.RequestID != "req-"+tt.name {
				t.Errorf("ids = %q/%q, want req-%s", f.ID, p.RequestID, tt.name)
			}
		})
	}

	t.Run("connection survives errors", func(t *testing.T) {
		sendFrame(t, conn, WSTypePing, "p1", nil)
		if f := readUntil(t, conn, MsgPong); f.ID != "p1" {
			t.Errorf("pong id = %q, want p1", f.ID)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
			t.Fatalf("write: %v", err)
		}
		f := readUntil(t, conn, MsgError)
		var p ErrorPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if p.Message != "invalid JSON message" {
			t.Errorf("Message = %q", p.Message)
		}
	})
}

func TestWebSocket_LeaveAndDisconnect(t *testing.T) {
	env := newTestEnv(t)
	ts := env.startListener(t)
	token, _ := env.register(t, "alice@example.com")
	d := env.createDevice(t, token, "Bot1", "Security")
	hub := env.srv.Hub()

	conn := dialWS(t, ts, token)
	sendFrame(t, conn, WSTypeJoinDevice, "", map[string]string{"deviceId": d.ID})
	readUntil(t, conn, MsgDeviceStatus)
	if got := hub.GroupSize(DeviceGroup(d.ID)); got != 1 {
		t.Fatalf("device group size = %d, want 1", got)
	}

	sendFrame(t, conn, WSTypeLeaveDevice, "l1", map[string]string{"deviceId": d.ID})
	if f := readUntil(t, conn, MsgLeft); f.ID != "l1" {
		t.Errorf("leave reply id = %q, want l1", f.ID)
	}
	if got := hub.GroupSize(DeviceGroup(d.ID)); got != 0 {
		t.Errorf("device group size after leave = %d, want 0", got)
	}

	conn.Close()
	waitFor(t, "client removal", func() bool { return hub.ClientCount() == 0 })
}
