package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tvmmachans/Customo/internal/device"
)

type controlRequest struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type batteryRequest struct {
	Battery *int `json:"battery"`
}

type locationRequest struct {
	Location string `json:"location"`
}

// handleListDevices returns one page of the caller's devices.
//
// Query parameters:
//   - status: ACTIVE, IDLE, MAINTENANCE, OFFLINE or ERROR
//   - type: exact device type
//   - online: true or false
//   - search: substring of name, type or location
//   - page, limit: pagination (default 1 and 20, limit at most 100)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	filter := device.ListFilter{
		Type:   q.str("type"),
		Online: q.getBool("online"),
		Search: q.str("search"),
		Page:   q.getInt("page"),
		Limit:  q.getInt("limit"),
	}
	if v := q.str("status"); v != "" {
		st, err := device.ParseStatus(v)
		q.check(err)
		filter.Status = st
	}
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	page, err := s.devices.List(r.Context(), userFrom(r.Context()).ID, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", page)
}

// handleGetDevice returns one of the caller's devices.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.Get(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"device": d})
}

// handleCreateDevice registers a device owned by the caller.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var in device.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	d, err := s.devices.Create(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Device created successfully", map[string]any{"device": d})
}

// handleUpdateDevice edits a device's descriptive fields.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var in device.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	d, err := s.devices.Update(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Device updated successfully", map[string]any{"device": d})
}

// handleDeleteDevice removes a device and its log.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.Delete(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Device deleted successfully", nil)
}

// handleControlDevice applies a command from the command table.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cmd, err := device.ParseCommand(req.Action)
	if err != nil {
		writeValidationErrors(w, err)
		return
	}

	d, err := s.devices.Control(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), cmd, req.Parameters)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, fmt.Sprintf("Device %s command executed", cmd), map[string]any{"device": d})
}

// handleDeviceStats summarises the caller's fleet.
func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.devices.Stats(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

// handleUpdateLocation records a new location for a device.
func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := s.devices.ReportLocation(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), req.Location)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Device location updated", map[string]any{"device": d})
}

// handleUpdateBattery records a battery level, clamped to [0, 100].
func (s *Server) handleUpdateBattery(w http.ResponseWriter, r *http.Request) {
	var req batteryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Battery == nil {
		writeValidationErrors(w, device.ErrMissingBattery)
		return
	}

	d, low, err := s.devices.ReportBattery(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), *req.Battery)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Device battery updated", map[string]any{"device": d, "lowBattery": low})
}

// handleDeviceLogs returns a device's activity log, newest first.
func (s *Server) handleDeviceLogs(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	limit := q.getInt("limit")
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	logs, err := s.devices.Logs(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"logs": logs})
}
