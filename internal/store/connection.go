package store

import (
	"context"
	"database/sql"

	"github.com/campus-incidents/apiserver/types"
)

// ConnectionRepository is the connection registry: it maps live connection
// handles to the role and user identity declared at connect time.
type ConnectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Upsert registers a connection. Re-registering the same handle replaces
// the previous profile, so the call is idempotent.
func (r *ConnectionRepository) Upsert(ctx context.Context, conn types.Connection) error {
	const query = `
		INSERT INTO connections (connection_handle, role, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (connection_handle)
		DO UPDATE SET role = EXCLUDED.role, user_id = EXCLUDED.user_id`
	_, err := r.db.ExecContext(ctx, query, conn.Handle, conn.Role, conn.UserID)
	return err
}

// Delete removes a connection by handle. Deleting a handle that is not
// registered is a no-op, not an error.
func (r *ConnectionRepository) Delete(ctx context.Context, handle string) error {
	const query = `DELETE FROM connections WHERE connection_handle = $1`
	_, err := r.db.ExecContext(ctx, query, handle)
	return err
}

// FindByRole returns every connection whose declared role matches.
// No ordering guarantee.
func (r *ConnectionRepository) FindByRole(ctx context.Context, role string) ([]types.Connection, error) {
	const query = `
		SELECT connection_handle, role, user_id
		FROM connections
		WHERE role = $1`
	return r.query(ctx, query, role)
}

// FindByUser returns every connection whose declared user id matches.
// No ordering guarantee.
func (r *ConnectionRepository) FindByUser(ctx context.Context, userID string) ([]types.Connection, error) {
	const query = `
		SELECT connection_handle, role, user_id
		FROM connections
		WHERE user_id = $1`
	return r.query(ctx, query, userID)
}

func (r *ConnectionRepository) query(ctx context.Context, query string, arg any) ([]types.Connection, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []types.Connection
	for rows.Next() {
		var conn types.Connection
		if err := rows.Scan(&conn.Handle, &conn.Role, &conn.UserID); err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}
	return connections, rows.Err()
}
