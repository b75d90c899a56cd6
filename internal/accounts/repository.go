// Package accounts persists the user accounts created when leads convert.
package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no account matches the query.
var ErrNotFound = errors.New("account not found")

const userColumns = `id, phone, first_name, last_name, email, lead_id, created_at`

type User struct {
	ID        uuid.UUID
	Phone     string
	FirstName string
	LastName  string
	Email     *string
	LeadID    *uuid.UUID
	CreatedAt time.Time
}

type CreateUserParams struct {
	Phone     string
	FirstName string
	LastName  string
	Email     *string
	LeadID    *uuid.UUID
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTx inserts the account inside the caller's transaction so it commits
// or rolls back together with the lead's conversion.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, params CreateUserParams) (User, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO users (phone, first_name, last_name, email, lead_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		params.Phone, params.FirstName, params.LastName, params.Email, params.LeadID,
	)
	return scanUser(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *Repository) GetByPhone(ctx context.Context, phone string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *Repository) GetByLeadID(ctx context.Context, leadID uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lead_id = $1`, leadID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Phone, &user.FirstName, &user.LastName,
		&user.Email, &user.LeadID, &user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
