package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tvmmachans/Customo/internal/device"
)

var _ Recorder = (*Collector)(nil)
var _ Recorder = Nop{}
var _ device.Observer = (*Collector)(nil)

// family returns the gathered metric family called name.
func family(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest("GET", "/api/devices", 200, 15*time.Millisecond)
	c.RecordHTTPRequest("GET", "/api/devices", 200, 5*time.Millisecond)
	c.RecordHTTPRequest("POST", "/api/auth/login", 401, time.Millisecond)

	mf := family(t, reg, "customo_http_requests_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("series = %d, want 2", len(mf.GetMetric()))
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	if total != 3 {
		t.Errorf("total requests = %v, want 3", total)
	}

	hist := family(t, reg, "customo_http_request_duration_seconds")
	if got := hist.GetMetric()[0].GetHistogram().GetSampleCount(); got == 0 {
		t.Error("histogram should have samples")
	}
}

func TestOnDeviceEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OnDeviceEvent(device.Event{Kind: device.EventControlled, Action: device.CommandStart})
	c.OnDeviceEvent(device.Event{Kind: device.EventBattery, LowBattery: true})
	c.OnDeviceEvent(device.Event{Kind: device.EventBattery})

	events := family(t, reg, "customo_device_events_total")
	if len(events.GetMetric()) != 2 {
		t.Errorf("event kinds = %d, want 2", len(events.GetMetric()))
	}
	commands := family(t, reg, "customo_device_commands_total")
	if got := commands.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("commands = %v, want 1", got)
	}
	low := family(t, reg, "customo_device_low_battery_alerts_total")
	if got := low.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("low battery alerts = %v, want 1", got)
	}
}

func TestWebSocketGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetWSConnections(3)
	c.SetWSConnections(2)

	mf := family(t, reg, "customo_websocket_connections")
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Errorf("gauge = %v, want 2", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRateLimited("auth")
	c.RecordTelemetry("applied")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"customo_rate_limited_total", "customo_mqtt_telemetry_total"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("response should contain %s", want)
		}
	}
}
