package types

import "time"

// Notification type discriminators carried in push payloads.
const (
	NotificationStatusChanged   = "status_changed"
	NotificationIncidentUpdated = "incident_updated"
	NotificationIncidentEdited  = "incident_edited"
	NotificationIncidentCreated = "incident_created"
)

// StatusChangedNotification is broadcast to administrative staff when an
// incident changes status.
type StatusChangedNotification struct {
	Type       string    `json:"type"`
	IncidentID string    `json:"incident_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	UpdatedBy  string    `json:"updated_by"`
	Timestamp  time.Time `json:"timestamp"`
}

// IncidentUpdatedNotification is sent to the reporter when their incident
// changes status.
type IncidentUpdatedNotification struct {
	Type       string    `json:"type"`
	IncidentID string    `json:"incident_id"`
	Message    string    `json:"message"`
	NewStatus  string    `json:"new_status"`
	Timestamp  time.Time `json:"timestamp"`
}

// IncidentEditedNotification is sent to the reporter when an administrator
// edits their pending incident. UpdatedFields names the fields that changed.
type IncidentEditedNotification struct {
	Type          string    `json:"type"`
	IncidentID    string    `json:"incident_id"`
	Message       string    `json:"message"`
	UpdatedFields []string  `json:"updated_fields"`
	Timestamp     time.Time `json:"timestamp"`
}

// IncidentCreatedNotification is broadcast to administrative staff when a
// new incident is reported.
type IncidentCreatedNotification struct {
	Type       string    `json:"type"`
	IncidentID string    `json:"incident_id"`
	Urgency    string    `json:"urgency"`
	ReportedBy string    `json:"reported_by"`
	Timestamp  time.Time `json:"timestamp"`
}
