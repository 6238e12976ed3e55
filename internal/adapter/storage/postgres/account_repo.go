package postgres

import (
	"context"
	"errors"
	"fmt"

	"luka-points/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, email, name, role, balance, password_hash, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account and fills in its generated id and
// timestamps.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (email, name, role, balance, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		a.Email, a.Name, a.Role, a.Balance, a.PasswordHash,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by id (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id), "get account by id")
}

// GetByEmail fetches an account by its normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, email), "get account by email")
}

// GetByRef resolves an opaque reference, numeric id or email, to an
// account. Returns (nil, nil) when no account matches.
func (r *AccountRepo) GetByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	if id, ok := ref.NumericID(); ok {
		return r.GetByID(ctx, id)
	}
	return r.GetByEmail(ctx, ref.String())
}

// GetByIDForUpdate fetches an account with a pessimistic row lock. This
// MUST be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return r.scanOne(tx.QueryRow(ctx, query, id), "get account for update")
}

// UpdateBalance overwrites an account's balance within a transaction.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, accountID int64, balance int64) error {
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, accountID)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %d", accountID)
	}
	return nil
}

func (r *AccountRepo) scanOne(row pgx.Row, op string) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Role, &a.Balance,
		&a.PasswordHash, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
