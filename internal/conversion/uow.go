package conversion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"institute_backend/internal/accounts"
	"institute_backend/internal/leads/repository"
)

// PgUnitOfWork commits account creation and the lead's conversion freeze
// atomically. If either write fails, neither persists.
type PgUnitOfWork struct {
	pool     *pgxpool.Pool
	leads    *repository.Repository
	accounts *accounts.Repository
}

func NewPgUnitOfWork(pool *pgxpool.Pool, leadsRepo *repository.Repository, accountsRepo *accounts.Repository) *PgUnitOfWork {
	return &PgUnitOfWork{pool: pool, leads: leadsRepo, accounts: accountsRepo}
}

func (u *PgUnitOfWork) Convert(ctx context.Context, leadID uuid.UUID, phase string, params accounts.CreateUserParams) (accounts.User, repository.Lead, error) {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return accounts.User{}, repository.Lead{}, fmt.Errorf("begin conversion tx: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	user, err := u.accounts.CreateTx(ctx, tx, params)
	if err != nil {
		return accounts.User{}, repository.Lead{}, fmt.Errorf("create account: %w", err)
	}

	lead, err := u.leads.MarkConvertedTx(ctx, tx, leadID, user.ID, phase)
	if err != nil {
		// Includes repository.ErrStatusChanged when another conversion won;
		// the rollback also discards the account insert.
		return accounts.User{}, repository.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return accounts.User{}, repository.Lead{}, fmt.Errorf("commit conversion tx: %w", err)
	}
	return user, lead, nil
}
