package domain

import "time"

// SessionState is the spoofing session's lifecycle position.
type SessionState string

const (
	// StateIdle means the device reports its real location.
	StateIdle SessionState = "idle"
	// StateRunning means the helper is feeding the override to the OS.
	StateRunning SessionState = "running"
)

// Selection is a staged point awaiting a start request.
type Selection struct {
	Point LocationPoint   `json:"point"`
	Space CoordinateSpace `json:"space"`
}

// SessionSnapshot is the observable state of the spoofing session. Running
// always carries both coordinate renditions of the active point; they are
// computed together in the same transaction and never drift apart.
type SessionSnapshot struct {
	State        SessionState   `json:"state"`
	DisplayPoint *LocationPoint `json:"display_point,omitempty"`
	TruePoint    *LocationPoint `json:"true_point,omitempty"`
	Selected     *Selection     `json:"selected,omitempty"`
	LastError    *OpError       `json:"last_error,omitempty"`
	ChangedAt    time.Time      `json:"changed_at"`
}

// Running reports whether the snapshot shows an active override.
func (s SessionSnapshot) Running() bool {
	return s.State == StateRunning
}
