package device

import (
	"errors"

	"github.com/tvmmachans/Customo/internal/validation"
)

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // absent, or owned by someone else
//	}
var (
	// ErrDeviceNotFound is returned when a device does not exist or is not
	// owned by the requester.
	ErrDeviceNotFound = errors.New("device: not found")

	ErrInvalidName     = validation.New("name", "is required and must not exceed 255 characters")
	ErrInvalidType     = validation.New("type", "is required and must not exceed 100 characters")
	ErrInvalidStatus   = validation.New("status", "must be one of ACTIVE, IDLE, MAINTENANCE, OFFLINE, ERROR")
	ErrInvalidCommand  = validation.New("action", "must be one of start, stop, pause, reset, maintenance")
	ErrInvalidLocation = validation.New("location", "must not exceed 500 characters")
	ErrInvalidTasks    = validation.New("tasks", "must not exceed 1000 characters")
	ErrMissingLocation = validation.New("location", "is required")
	ErrMissingBattery  = validation.New("battery", "is required")
	ErrEmptyTelemetry  = validation.New("telemetry", "must carry battery or location")
	ErrUnknownProduct  = validation.New("productId", "does not reference a product")
)
