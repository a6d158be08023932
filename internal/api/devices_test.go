package api

import (
	"net/http"
	"testing"

	"github.com/tvmmachans/Customo/internal/device"
)

func TestDevices_CRUD(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register(t, "alice@example.com")

	d := env.createDevice(t, token, "Bot1", "Security")

	t.Run("defaults on create", func(t *testing.T) {
		if d.Status != device.StatusOffline {
			t.Errorf("Status = %q, want OFFLINE", d.Status)
		}
		if d.Battery != 100 {
			t.Errorf("Battery = %d, want 100", d.Battery)
		}
		if d.IsOnline {
			t.Error("IsOnline = true, want false")
		}
		if d.UserID != userID {
			t.Errorf("UserID = %q, want %q", d.UserID, userID)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusBadRequest, http.MethodPost, "/api/devices", token, map[string]string{"type": "Security"})
		if len(resp.Errors) != 1 || resp.Errors[0].Field != "name" {
			t.Errorf("Errors = %+v, want one name error", resp.Errors)
		}
	})

	t.Run("get", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusOK, http.MethodGet, "/api/devices/"+d.ID, token, nil)
		var out struct {
			Device device.Device `json:"device"`
		}
		decodeData(t, resp, &out)
		if out.Device.Name != "Bot1" {
			t.Errorf("Name = %q, want Bot1", out.Device.Name)
		}
	})

	t.Run("update", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusOK, http.MethodPut, "/api/devices/"+d.ID, token, map[string]string{
			"name": "Bot1-renamed", "location": "Warehouse A",
		})
		var out struct {
			Device device.Device `json:"device"`
		}
		decodeData(t, resp, &out)
		if out.Device.Name != "Bot1-renamed" || out.Device.Location != "Warehouse A" {
			t.Errorf("device = %+v", out.Device)
		}
	})

	t.Run("list with filter", func(t *testing.T) {
		env.createDevice(t, token, "Drone7", "Drone")

		resp := env.mustDo(t, http.StatusOK, http.MethodGet, "/api/devices?type=Drone", token, nil)
		var page device.Page
		decodeData(t, resp, &page)
		if page.Total != 1 || len(page.Devices) != 1 || page.Devices[0].Name != "Drone7" {
			t.Errorf("page = %+v, want only Drone7", page)
		}
	})

	t.Run("bad query", func(t *testing.T) {
		env.mustDo(t, http.StatusBadRequest, http.MethodGet, "/api/devices?page=abc", token, nil)
		env.mustDo(t, http.StatusBadRequest, http.MethodGet, "/api/devices?status=FLYING", token, nil)
	})

	t.Run("delete", func(t *testing.T) {
		env.mustDo(t, http.StatusOK, http.MethodDelete, "/api/devices/"+d.ID, token, nil)
		env.mustDo(t, http.StatusNotFound, http.MethodGet, "/api/devices/"+d.ID, token, nil)
	})
}

func TestDevices_OwnerScoping(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.register(t, "alice@example.com")
	bob, _ := env.register(t, "bob@example.com")

	d := env.createDevice(t, alice, "Bot1", "Security")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"get", http.MethodGet, "/api/devices/" + d.ID, nil},
		{"update", http.MethodPut, "/api/devices/" + d.ID, map[string]string{"name": "mine"}},
		{"control", http.MethodPost, "/api/devices/" + d.ID + "/control", map[string]string{"action": "start"}},
		{"battery", http.MethodPut, "/api/devices/" + d.ID + "/battery", map[string]int{"battery": 5}},
		{"location", http.MethodPut, "/api/devices/" + d.ID + "/location", map[string]string{"location": "Dock"}},
		{"logs", http.MethodGet, "/api/devices/" + d.ID + "/logs", nil},
		{"delete", http.MethodDelete, "/api/devices/" + d.ID, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.mustDo(t, http.StatusNotFound, tt.method, tt.path, bob, tt.body)
			if resp.Message != "Device not found" {
				t.Errorf("Message = %q, want Device not found", resp.Message)
			}
		})
	}

	// Alice's device is untouched.
	resp := env.mustDo(t, http.StatusOK, http.MethodGet, "/api/devices/"+d.ID, alice, nil)
	var out struct {
		Device device.Device `json:"device"`
	}
	decodeData(t, resp, &out)
	if out.Device.Name != "Bot1" || out.Device.Battery != 100 {
		t.Errorf("device changed by another user: %+v", out.Device)
	}
}

func TestDevices_Control(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "alice@example.com")
	d := env.createDevice(t, token, "Bot1", "Security")

	tests := []struct {
		action     string
		wantStatus device.Status
		wantTasks  string
	}{
		{"start", device.StatusActive, "Device started and running"},
		{"pause", device.StatusIdle, "Device paused"},
		{"stop", device.StatusIdle, "Device stopped"},
		{"maintenance", device.StatusMaintenance, "Device in maintenance mode"},
		{"reset", device.StatusIdle, "Device reset"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			resp := env.mustDo(t, http.StatusOK, http.MethodPost, "/api/devices/"+d.ID+"/control", token, map[string]string{"action": tt.action})
			var out struct {
				Device device.Device `json:"device"`
			}
			decodeData(t, resp, &out)
			if out.Device.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", out.Device.Status, tt.wantStatus)
			}
			if out.Device.Tasks != tt.wantTasks {
				t.Errorf("Tasks = %q, want %q", out.Device.Tasks, tt.wantTasks)
			}
			if resp.Message != "Device "+tt.action+" command executed" {
				t.Errorf("Message = %q", resp.Message)
			}
		})
	}

	t.Run("unknown action", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusBadRequest, http.MethodPost, "/api/devices/"+d.ID+"/control", token, map[string]string{"action": "selfdestruct"})
		if len(resp.Errors) != 1 || resp.Errors[0].Field != "action" {
			t.Errorf("Errors = %+v, want one action error", resp.Errors)
		}
	})

	t.Run("logs record commands", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusOK, http.MethodGet, "/api/devices/"+d.ID+"/logs", token, nil)
		var out struct {
			Logs []device.LogEntry `json:"logs"`
		}
		decodeData(t, resp, &out)
		if len(out.Logs) < 6 {
			t.Errorf("logs = %d entries, want registration plus five commands", len(out.Logs))
		}
	})
}

func TestDevices_Battery(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "alice@example.com")
	d := env.createDevice(t, token, "Bot1", "Security")

	tests := []struct {
		name    string
		battery int
		wantLvl int
		wantLow bool
	}{
		{"normal", 80, 80, false},
		{"threshold", 20, 20, true},
		{"above range", 150, 100, false},
		{"below range", -5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.mustDo(t, http.StatusOK, http.MethodPut, "/api/devices/"+d.ID+"/battery", token, map[string]int{"battery": tt.battery})
			var out struct {
				Device     device.Device `json:"device"`
				LowBattery bool          `json:"lowBattery"`
			}
			decodeData(t, resp, &out)
			if out.Device.Battery != tt.wantLvl {
				t.Errorf("Battery = %d, want %d", out.Device.Battery, tt.wantLvl)
			}
			if out.LowBattery != tt.wantLow {
				t.Errorf("LowBattery = %v, want %v", out.LowBattery, tt.wantLow)
			}
		})
	}

	t.Run("missing value", func(t *testing.T) {
		env.mustDo(t, http.StatusBadRequest, http.MethodPut, "/api/devices/"+d.ID+"/battery", token, map[string]string{})
	})
}

func TestDevices_LocationAndStats(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "alice@example.com")
	d := env.createDevice(t, token, "Bot1", "Security")
	env.createDevice(t, token, "Bot2", "Assistant")

	env.mustDo(t, http.StatusBadRequest, http.MethodPut, "/api/devices/"+d.ID+"/location", token, map[string]string{"location": "  "})

	resp := env.mustDo(t, http.StatusOK, http.MethodPut, "/api/devices/"+d.ID+"/location", token, map[string]string{"location": "Lobby"})
	var out struct {
		Device device.Device `json:"device"`
	}
	decodeData(t, resp, &out)
	if out.Device.Location != "Lobby" {
		t.Errorf("Location = %q, want Lobby", out.Device.Location)
	}

	env.mustDo(t, http.StatusOK, http.MethodPost, "/api/devices/"+d.ID+"/control", token, map[string]string{"action": "start"})
	env.mustDo(t, http.StatusOK, http.MethodPut, "/api/devices/"+d.ID+"/battery", token, map[string]int{"battery": 10})

	resp = env.mustDo(t, http.StatusOK, http.MethodGet, "/api/devices/stats/overview", token, nil)
	var stats device.Stats
	decodeData(t, resp, &stats)
	want := device.Stats{Total: 2, Active: 1, Online: 1, Maintenance: 0, LowBattery: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}
