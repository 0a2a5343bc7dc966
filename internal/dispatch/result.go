// internal/dispatch/result.go
package dispatch

import "notification-dispatch/internal/models"

// Via identifies which path carried a delivery.
type Via string

const (
	ViaRealtime Via = "realtime"
	ViaChannel  Via = "channel"
	ViaNone     Via = ""
)

// Result is the synchronous answer for one dispatch. A caller always gets a
// Result, success or structured failure, and is never blocked on retry
// completion beyond the wrapper's own bounded attempts.
type Result struct {
	NotificationID string
	Status         models.Status
	Suppressed     bool
	SuppressReason string
	FailureReason  string
	Via            Via
}

// BatchResult aggregates one fan-out over multiple recipients.
type BatchResult struct {
	Attempted  int
	Suppressed int
	Failed     int
	Results    []Result
}
