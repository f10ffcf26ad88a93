package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campus-incidents/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (types.User, error) {
	const query = `
		SELECT user_id, first_name, last_name, dni, email, role, password_hash, created_at
		FROM users
		WHERE user_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT user_id, first_name, last_name, dni, email, role, password_hash, created_at
		FROM users
		WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByDNI(ctx context.Context, dni string) (types.User, error) {
	const query = `
		SELECT user_id, first_name, last_name, dni, email, role, password_hash, created_at
		FROM users
		WHERE dni = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, dni))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	user.CreatedAt = time.Now()

	const query = `
		INSERT INTO users (user_id, first_name, last_name, dni, email, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.UserID,
		user.FirstName,
		user.LastName,
		user.DNI,
		user.Email,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
	); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) scanOne(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.UserID,
		&user.FirstName,
		&user.LastName,
		&user.DNI,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
