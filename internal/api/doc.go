// Package api implements the HTTP REST API and WebSocket server for Customo Core.
//
// This package provides:
//   - REST endpoints for accounts, devices, products, cart, orders and
//     service tickets under /api
//   - The device channel: a WebSocket hub with named groups that fans
//     registry mutations out to every interested connection
//   - Bearer token authentication and role/permission checks
//   - Middleware stack (request ID, logging, metrics, recovery, CORS,
//     body limit, per-client rate limits)
//
// # Responses
//
// Every REST response except /health and /metrics uses the envelope
//
//	{"success": bool, "message": "...", "data": {...}, "errors": [{"field": "...", "message": "..."}]}
//
// Domain sentinel errors are mapped to status codes in one place
// (writeServiceError) with errors.Is.
//
// # Device channel
//
// A connection authenticates once with the same bearer token as REST and is
// enrolled in user:<id>, plus technicians and admins according to its role.
// Joining device:<id> is owner-checked. The hub is registered as an observer
// on the device registry, so REST and channel mutations broadcast alike.
package api
