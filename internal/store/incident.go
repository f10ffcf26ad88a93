package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campus-incidents/apiserver/types"
)

// IncidentRepository handles persistence for incidents.
type IncidentRepository struct {
	db *sql.DB
}

func NewIncidentRepository(db *sql.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

const incidentColumns = `incident_id, status, created_by, type, description, floor, ambient, urgency, history, created_at, updated_at`

func (r *IncidentRepository) Get(ctx context.Context, incidentID string) (types.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE incident_id = $1`, incidentColumns)
	return scanIncident(r.db.QueryRowContext(ctx, query, incidentID))
}

func (r *IncidentRepository) List(ctx context.Context, offset, limit int) ([]types.Incident, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM incidents`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM incidents
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`, incidentColumns)
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	incidents := make([]types.Incident, 0, limit)
	for rows.Next() {
		var incident types.Incident
		var historyJSON []byte
		if err := rows.Scan(
			&incident.IncidentID,
			&incident.Status,
			&incident.CreatedBy,
			&incident.Type,
			&incident.Description,
			&incident.Floor,
			&incident.Ambient,
			&incident.Urgency,
			&historyJSON,
			&incident.CreatedAt,
			&incident.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal(historyJSON, &incident.History)
		incidents = append(incidents, incident)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return incidents, total, nil
}

func (r *IncidentRepository) Create(ctx context.Context, incident types.Incident) (types.Incident, error) {
	now := time.Now()
	incident.CreatedAt = now
	incident.UpdatedAt = now

	historyJSON, err := json.Marshal(incident.History)
	if err != nil {
		return types.Incident{}, err
	}

	const query = `
		INSERT INTO incidents (incident_id, status, created_by, type, description, floor, ambient, urgency, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		incident.IncidentID,
		incident.Status,
		incident.CreatedBy,
		incident.Type,
		incident.Description,
		incident.Floor,
		incident.Ambient,
		incident.Urgency,
		historyJSON,
		incident.CreatedAt,
		incident.UpdatedAt,
	); err != nil {
		return types.Incident{}, err
	}
	return incident, nil
}

// UpdateStatus sets the new status, bumps updated_at, and appends the
// history entry in a single statement so the transition is atomic at the
// row level. Concurrent transitions on the same incident are not
// serialized beyond that; last writer wins on status.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, incidentID, newStatus string, entry types.HistoryEntry) error {
	entryJSON, err := json.Marshal([]types.HistoryEntry{entry})
	if err != nil {
		return err
	}

	const query = `
		UPDATE incidents
		SET status = $2,
			updated_at = $3,
			history = history || $4::jsonb
		WHERE incident_id = $1`
	result, err := r.db.ExecContext(ctx, query, incidentID, newStatus, entry.At, entryJSON)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFields applies an edit to the descriptive fields and bumps
// updated_at. It deliberately does not touch the history column.
func (r *IncidentRepository) UpdateFields(ctx context.Context, incidentID string, edit types.IncidentEdit, updatedAt time.Time) error {
	set := make([]string, 0, 6)
	args := []any{incidentID}

	appendSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	appendSet("type", edit.Type)
	appendSet("description", edit.Description)
	appendSet("floor", edit.Floor)
	appendSet("ambient", edit.Ambient)
	appendSet("urgency", edit.Urgency)

	if len(set) == 0 {
		return errors.New("no fields to update")
	}

	args = append(args, updatedAt)
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))

	query := fmt.Sprintf(`UPDATE incidents SET %s WHERE incident_id = $1`, strings.Join(set, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIncident(row *sql.Row) (types.Incident, error) {
	var incident types.Incident
	var historyJSON []byte
	err := row.Scan(
		&incident.IncidentID,
		&incident.Status,
		&incident.CreatedBy,
		&incident.Type,
		&incident.Description,
		&incident.Floor,
		&incident.Ambient,
		&incident.Urgency,
		&historyJSON,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Incident{}, ErrNotFound
		}
		return types.Incident{}, err
	}
	_ = json.Unmarshal(historyJSON, &incident.History)
	return incident, nil
}
