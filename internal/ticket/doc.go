// Package ticket manages service tickets raised against the robot fleet.
//
// Lifecycle:
//
//	OPEN ──► IN_PROGRESS ──► COMPLETED
//	  │            │
//	  └────────────┴──────► CANCELLED
//
// COMPLETED and CANCELLED are terminal. Completing a ticket stamps
// completedAt. Customers may cancel their own ticket only while it is OPEN;
// technicians and admins drive every other transition.
//
// Creation and status changes are reported to registered Observers so the
// realtime channel can notify the technicians group.
package ticket
