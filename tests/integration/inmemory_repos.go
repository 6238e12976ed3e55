package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"luka-points/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[int64]*domain.Account
	nextID   int64
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[int64]*domain.Account), nextID: 1}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("email already exists")
		}
	}
	a.ID = r.nextID
	r.nextID++
	copied := *a
	r.accounts[a.ID] = &copied
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (r *inMemoryAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(email)
	for _, a := range r.accounts {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) GetByRef(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	if id, ok := ref.NumericID(); ok {
		return r.GetByID(ctx, id)
	}
	return r.GetByEmail(ctx, ref.String())
}

func (r *inMemoryAccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, accountID int64, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found: %d", accountID)
	}
	a.Balance = balance
	return nil
}

// --- In-Memory Transfer Repo ---

type inMemoryTransferRepo struct {
	mu        sync.RWMutex
	transfers []domain.Transfer
}

func newInMemoryTransferRepo() *inMemoryTransferRepo {
	return &inMemoryTransferRepo{}
}

func (r *inMemoryTransferRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, *t)
	return nil
}

func (r *inMemoryTransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.transfers {
		if r.transfers[i].ID == id {
			copied := r.transfers[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransferRepo) ListByAccount(ctx context.Context, accountID int64) ([]domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref := domain.RefFromID(accountID)
	var out []domain.Transfer
	// Newest first, matching the SQL ordering.
	for i := len(r.transfers) - 1; i >= 0; i-- {
		if r.transfers[i].Involves(ref) {
			out = append(out, r.transfers[i])
		}
	}
	return out, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
