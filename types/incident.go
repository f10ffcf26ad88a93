package types

import "time"

// Incident statuses. Any status is reachable from any other; transitions
// are gated by role, not by the current value.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

// ValidStatuses lists every status accepted by the workflow engine.
var ValidStatuses = []string{StatusPending, StatusInProgress, StatusCompleted, StatusRejected}

// IsValidStatus reports whether the given status is one of the recognized values.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// UnknownReporter is the sentinel created_by value for incidents whose
// reporter could not be resolved. No reporter notification is sent for it.
const UnknownReporter = "unknown"

// EditableFields lists the incident attributes that may be changed while
// the incident is still pending.
var EditableFields = []string{"type", "description", "floor", "ambient", "urgency"}

// Incident represents a reported campus incident.
// Descriptive fields are mutable only while the status is pending;
// every status transition appends one history entry.
type Incident struct {
	// IncidentID is the unique identifier of the incident.
	IncidentID string `json:"incident_id" db:"incident_id"`

	// Status is the current workflow state of the incident.
	// One of StatusPending, StatusInProgress, StatusCompleted, StatusRejected.
	Status string `json:"status" db:"status"`

	// CreatedBy is the user id of the reporter. May be UnknownReporter
	// when the reporter could not be resolved; the reference is weak and
	// may be stale.
	CreatedBy string `json:"created_by" db:"created_by"`

	// Type categorizes the incident (e.g., "electrical", "plumbing").
	Type string `json:"type" db:"type"`

	// Description is the reporter's free-form account of the incident.
	Description string `json:"description" db:"description"`

	// Floor identifies the building floor where the incident occurred.
	Floor string `json:"floor" db:"floor"`

	// Ambient identifies the room or area where the incident occurred.
	Ambient string `json:"ambient" db:"ambient"`

	// Urgency is the reporter-declared urgency of the incident.
	Urgency string `json:"urgency" db:"urgency"`

	// History is the ordered, append-only audit trail of status
	// transitions applied to the incident.
	History []HistoryEntry `json:"history" db:"history"`

	// CreatedAt is the timestamp when the incident was reported.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent mutation,
	// whether a status transition or a field edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HistoryEntry records a single audited action on an incident.
type HistoryEntry struct {
	// Action names what happened, e.g. "status_changed_to_completed".
	Action string `json:"action"`

	// By is the user id of the actor.
	By string `json:"by"`

	// At is the timestamp of the action.
	At time.Time `json:"at"`
}

// IncidentEdit carries the optional field changes of an edit request.
// Nil pointers mean "leave unchanged"; fields outside EditableFields
// cannot be expressed here at all.
type IncidentEdit struct {
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty"`
	Floor       *string `json:"floor,omitempty"`
	Ambient     *string `json:"ambient,omitempty"`
	Urgency     *string `json:"urgency,omitempty"`
}

// Fields returns the names of the fields the edit actually sets,
// in EditableFields order.
func (e IncidentEdit) Fields() []string {
	var fields []string
	if e.Type != nil {
		fields = append(fields, "type")
	}
	if e.Description != nil {
		fields = append(fields, "description")
	}
	if e.Floor != nil {
		fields = append(fields, "floor")
	}
	if e.Ambient != nil {
		fields = append(fields, "ambient")
	}
	if e.Urgency != nil {
		fields = append(fields, "urgency")
	}
	return fields
}
