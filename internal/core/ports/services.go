package ports

import (
	"context"
	"time"

	"luka-points/internal/core/domain"

	"github.com/google/uuid"
)

// BalanceStore is the storage abstraction holding current per-account
// point balances. Callers must not depend on which backend is active;
// references are opaque (email for the embedded store, numeric id for
// the relational backend).
type BalanceStore interface {
	// GetBalance returns the current balance. Fails with ACC_001 when no
	// account matches the reference.
	GetBalance(ctx context.Context, ref domain.AccountRef) (int64, error)
	// SetBalance overwrites the stored balance. No optimistic-concurrency
	// token is used; two concurrent writers can race.
	SetBalance(ctx context.Context, ref domain.AccountRef, balance int64) error
	AccountExists(ctx context.Context, ref domain.AccountRef) (bool, error)
}

// TransferLog owns the append-only transfer records.
type TransferLog interface {
	Append(ctx context.Context, transfer *domain.Transfer) error
	ListByAccount(ctx context.Context, ref domain.AccountRef) ([]domain.Transfer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
}

// AtomicTransferStore is implemented by backends whose storage engine
// offers real transactions. ExecuteTransfer performs the debit, the
// credit and the record append as one atomic unit, re-checking funds
// under a row lock.
type AtomicTransferStore interface {
	ExecuteTransfer(ctx context.Context, intent domain.TransferIntent) (*domain.Transfer, error)
}

// TransferService drives the validate-then-execute transfer flow.
type TransferService interface {
	// Transfer moves amount points from source to destination and appends
	// a completed record. Validation errors (TRF_001..TRF_004) are
	// deterministic and recoverable; execution failures surface as
	// TRF_005 with the cause attached.
	Transfer(ctx context.Context, source, destination domain.AccountRef, amount int64) (*domain.Transfer, error)
	// TransferFromPayment executes a scanned payment request. It converges
	// on exactly the same validation as a manually entered transfer.
	TransferFromPayment(ctx context.Context, source domain.AccountRef, p domain.PaymentRequest) (*domain.Transfer, error)
	// History returns the transfers involving ref, newest first.
	History(ctx context.Context, ref domain.AccountRef) ([]domain.Transfer, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
}

// AuthService handles registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	Email    string
	Name     string
	Role     domain.Role
	Password string
}

// LoginResult is a successful authentication outcome.
type LoginResult struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
}

// TokenClaims are the claims carried by an access token.
type TokenClaims struct {
	AccountID int64
	Email     string
	Role      domain.Role
}

// TokenService issues and validates bearer tokens.
type TokenService interface {
	Generate(account *domain.Account) (string, time.Time, error)
	Validate(token string) (*TokenClaims, error)
}

// HashService hashes and verifies passwords.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}
