package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tvmmachans/Customo/internal/infrastructure/config"
	"github.com/tvmmachans/Customo/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line-protocol bodies posted to the
// write endpoint.
type fakeInflux struct {
	mu     sync.Mutex
	lines  []string
	pingOK bool
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/ping"):
		if !f.pingOK {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/write"):
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:        true,
		URL:            url,
		Token:          "customo-test-token",
		Org:            "customo",
		Bucket:         "devices",
		BatchSize:      10,
		FlushInterval:  1,
		ConnectTimeout: 2,
	}
}

func waitForLines(t *testing.T, f *fakeInflux, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if lines := f.snapshot(); len(lines) >= n {
			return lines
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got %v", n, f.snapshot())
	return nil
}

// ─── Connection ────────────────────────────────────────────────────

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnhealthy(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{pingOK: false})
	defer srv.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnectAndHealthCheck(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{pingOK: true})
	defer srv.Close()

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{pingOK: true})
	defer srv.Close()

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("first Close() = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}

	if got := client.Failures(); got != 0 {
		t.Errorf("Failures() = %d, want 0", got)
	}

	// Writes after close are dropped without panicking.
	client.WriteBattery("d1", "u1", 50, false, time.Now())
	client.Flush()
}

// ─── Writes ────────────────────────────────────────────────────────

func TestWriteDevicePoints(t *testing.T) {
	fake := &fakeInflux{pingOK: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	client.WriteBattery("d1", "u1", 18, true, at)
	client.WriteStatus("d1", "u1", "ACTIVE", true, at)
	client.WriteLocation("d1", "u1", "Dock 3", at)
	client.WriteCommand("d1", "u1", "start", at)
	client.Flush()

	lines := waitForLines(t, fake, 4)
	joined := strings.Join(lines, "\n")

	for _, want := range []string{
		"device_battery,device_id=d1,owner_id=u1 battery=18i,low=true",
		"device_status,device_id=d1,owner_id=u1,status=ACTIVE online=true",
		`device_location,device_id=d1,owner_id=u1 location="Dock 3"`,
		"device_command,action=start,device_id=d1,owner_id=u1 count=1i",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in:\n%s", want, joined)
		}
	}
}

func TestWriteWithoutOwner(t *testing.T) {
	fake := &fakeInflux{pingOK: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteBattery("d2", "", 90, false, time.Now())
	client.Flush()

	lines := waitForLines(t, fake, 1)
	if strings.Contains(lines[0], "owner_id") {
		t.Errorf("owner_id tag written for empty owner: %s", lines[0])
	}
}
