package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/campus-incidents/apiserver/types"
)

// IncidentRepository defines persistence operations for incidents.
type IncidentRepository interface {
	Get(ctx context.Context, incidentID string) (types.Incident, error)
	List(ctx context.Context, offset, limit int) ([]types.Incident, int, error)
	Create(ctx context.Context, incident types.Incident) (types.Incident, error)
	UpdateStatus(ctx context.Context, incidentID, newStatus string, entry types.HistoryEntry) error
	UpdateFields(ctx context.Context, incidentID string, edit types.IncidentEdit, updatedAt time.Time) error
}

// Notifier pushes messages to connected clients by role or user identity.
// Both calls are fire-and-continue: they never report failure.
type Notifier interface {
	NotifyRole(ctx context.Context, message any, role string)
	NotifyUser(ctx context.Context, message any, userID string)
}

// EventPublisher publishes incident events to the configured broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// StatusUpdate is the success payload of a status transition.
type StatusUpdate struct {
	IncidentID string `json:"incident_id"`
	NewStatus  string `json:"new_status"`
}

// EditResult is the success payload of an incident edit.
type EditResult struct {
	IncidentID string    `json:"incident_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewIncidentInput carries the reporter-supplied attributes of a new incident.
type NewIncidentInput struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Floor       string `json:"floor"`
	Ambient     string `json:"ambient"`
	Urgency     string `json:"urgency"`
}

// IncidentService is the incident workflow engine. Status transitions and
// pending-only edits mutate the store first and then notify the affected
// audiences; a mutation that committed is never rolled back because a
// downstream notification failed.
type IncidentService struct {
	repo         IncidentRepository
	users        UserRepository
	notifier     Notifier
	events       EventPublisher
	eventChannel string
}

// NewIncidentService constructs the workflow engine. events may be nil,
// in which case no broker events are published.
func NewIncidentService(repo IncidentRepository, users UserRepository, notifier Notifier, events EventPublisher, eventChannel string) *IncidentService {
	return &IncidentService{
		repo:         repo,
		users:        users,
		notifier:     notifier,
		events:       events,
		eventChannel: eventChannel,
	}
}

func (s *IncidentService) Get(ctx context.Context, incidentID string) (types.Incident, error) {
	return s.repo.Get(ctx, incidentID)
}

func (s *IncidentService) List(ctx context.Context, offset, limit int) ([]types.Incident, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

// Create records a new incident in pending status with an initial history
// entry and notifies administrative staff of the new report.
func (s *IncidentService) Create(ctx context.Context, input NewIncidentInput, reporterID string) (types.Incident, error) {
	if reporterID == "" {
		reporterID = types.UnknownReporter
	}

	now := time.Now()
	incident := types.Incident{
		IncidentID:  uuid.NewString(),
		Status:      types.StatusPending,
		CreatedBy:   reporterID,
		Type:        input.Type,
		Description: input.Description,
		Floor:       input.Floor,
		Ambient:     input.Ambient,
		Urgency:     input.Urgency,
		History: []types.HistoryEntry{
			{Action: "created", By: reporterID, At: now},
		},
	}

	created, err := s.repo.Create(ctx, incident)
	if err != nil {
		return types.Incident{}, err
	}

	s.notifier.NotifyRole(ctx, types.IncidentCreatedNotification{
		Type:       types.NotificationIncidentCreated,
		IncidentID: created.IncidentID,
		Urgency:    created.Urgency,
		ReportedBy: created.CreatedBy,
		Timestamp:  created.CreatedAt,
	}, types.RoleAdministrativeStaff)
	s.publishEvent(ctx, "incident.created", created.IncidentID, created.CreatedBy, created.Status, nil)

	return created, nil
}

// UpdateStatus transitions an incident to newStatus on behalf of
// actingUserID. Any target status is reachable from any other; the
// operation is gated on the actor's role, not the current status.
func (s *IncidentService) UpdateStatus(ctx context.Context, incidentID, newStatus, actingUserID string) (StatusUpdate, error) {
	if incidentID == "" || newStatus == "" || actingUserID == "" {
		return StatusUpdate{}, fmt.Errorf("%w: incident_id, new_status and user_id are required", ErrValidation)
	}
	if !types.IsValidStatus(newStatus) {
		return StatusUpdate{}, fmt.Errorf("%w: invalid status %q", ErrValidation, newStatus)
	}

	actor, err := s.users.GetByID(ctx, actingUserID)
	if err != nil {
		return StatusUpdate{}, err
	}
	if !types.CanManageIncidents(actor.Role) {
		return StatusUpdate{}, fmt.Errorf("%w: role %q may not update incidents", ErrForbidden, actor.Role)
	}

	incident, err := s.repo.Get(ctx, incidentID)
	if err != nil {
		return StatusUpdate{}, err
	}
	oldStatus := incident.Status

	now := time.Now()
	entry := types.HistoryEntry{
		Action: "status_changed_to_" + newStatus,
		By:     actingUserID,
		At:     now,
	}
	if err := s.repo.UpdateStatus(ctx, incidentID, newStatus, entry); err != nil {
		return StatusUpdate{}, err
	}

	// The mutation is committed; notification and event failures stay
	// internal from here on.
	s.notifier.NotifyRole(ctx, types.StatusChangedNotification{
		Type:       types.NotificationStatusChanged,
		IncidentID: incidentID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		UpdatedBy:  actingUserID,
		Timestamp:  now,
	}, types.RoleAdministrativeStaff)

	if incident.CreatedBy != "" && incident.CreatedBy != types.UnknownReporter {
		s.notifier.NotifyUser(ctx, types.IncidentUpdatedNotification{
			Type:       types.NotificationIncidentUpdated,
			IncidentID: incidentID,
			Message:    fmt.Sprintf("Your incident changed status: %s -> %s", oldStatus, newStatus),
			NewStatus:  newStatus,
			Timestamp:  now,
		}, incident.CreatedBy)
	}

	s.publishEvent(ctx, "incident.status_changed", incidentID, actingUserID, newStatus, nil)

	return StatusUpdate{IncidentID: incidentID, NewStatus: newStatus}, nil
}

// Edit applies changes to the editable descriptive fields of a pending
// incident. Edits bump updated_at but do not append a history entry.
func (s *IncidentService) Edit(ctx context.Context, incidentID string, edit types.IncidentEdit, adminUserID string) (EditResult, error) {
	if incidentID == "" {
		return EditResult{}, fmt.Errorf("%w: incident_id is required", ErrValidation)
	}
	if adminUserID == "" {
		return EditResult{}, fmt.Errorf("%w: admin_user_id is required", ErrValidation)
	}

	actor, err := s.users.GetByID(ctx, adminUserID)
	if err != nil {
		return EditResult{}, err
	}
	if !types.CanManageIncidents(actor.Role) {
		return EditResult{}, fmt.Errorf("%w: role %q may not edit incidents", ErrForbidden, actor.Role)
	}

	incident, err := s.repo.Get(ctx, incidentID)
	if err != nil {
		return EditResult{}, err
	}
	if incident.Status != types.StatusPending {
		return EditResult{}, fmt.Errorf("%w: incidents are editable only while pending", ErrForbidden)
	}

	fields := edit.Fields()
	if len(fields) == 0 {
		return EditResult{}, fmt.Errorf("%w: no valid fields to update", ErrValidation)
	}

	now := time.Now()
	if err := s.repo.UpdateFields(ctx, incidentID, edit, now); err != nil {
		return EditResult{}, err
	}

	if incident.CreatedBy != "" && incident.CreatedBy != types.UnknownReporter {
		s.notifier.NotifyUser(ctx, types.IncidentEditedNotification{
			Type:          types.NotificationIncidentEdited,
			IncidentID:    incidentID,
			Message:       "An administrator updated your incident",
			UpdatedFields: fields,
			Timestamp:     now,
		}, incident.CreatedBy)
	}

	s.publishEvent(ctx, "incident.edited", incidentID, adminUserID, incident.Status, fields)

	return EditResult{IncidentID: incidentID, UpdatedAt: now}, nil
}

// incidentEvent is the broker-side record of a committed workflow mutation.
type incidentEvent struct {
	Type       string    `json:"type"`
	IncidentID string    `json:"incident_id"`
	Actor      string    `json:"actor"`
	Status     string    `json:"status"`
	Fields     []string  `json:"fields,omitempty"`
	At         time.Time `json:"at"`
}

func (s *IncidentService) publishEvent(ctx context.Context, eventType, incidentID, actor, status string, fields []string) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(incidentEvent{
		Type:       eventType,
		IncidentID: incidentID,
		Actor:      actor,
		Status:     status,
		Fields:     fields,
		At:         time.Now(),
	})
	if err != nil {
		log.Printf("events: marshal %s: %v", eventType, err)
		return
	}

	if _, err := s.events.Publish(ctx, s.eventChannel, data, map[string]string{"type": eventType}); err != nil {
		log.Printf("events: publish %s for %s: %v", eventType, incidentID, err)
	}
}
