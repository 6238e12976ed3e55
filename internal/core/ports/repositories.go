package ports

import (
	"context"

	"luka-points/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for
// pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// GetByRef resolves an opaque reference (numeric id or email) to an
	// account. Returns (nil, nil) when no account matches.
	GetByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, accountID int64, balance int64) error
}

// TransferRepository defines persistence operations for the append-only
// transfer log.
type TransferRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	// ListByAccount returns transfers where the account is source or
	// destination, newest first.
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Transfer, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
