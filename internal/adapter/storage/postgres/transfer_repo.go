package postgres

import (
	"context"
	"errors"
	"fmt"

	"luka-points/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, source_account_id, destination_account_id, amount, status, created_at`

// TransferRepo implements ports.TransferRepository over the append-only
// transfers table. Records are only ever inserted; there is no update
// path.
type TransferRepo struct {
	pool Pool
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

// Create inserts a transfer record within a transaction.
func (r *TransferRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transfer) error {
	query := `INSERT INTO transfers (id, source_account_id, destination_account_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	srcID, ok := t.Source.NumericID()
	if !ok {
		return fmt.Errorf("source reference %q is not numeric", t.Source)
	}
	dstID, ok := t.Destination.NumericID()
	if !ok {
		return fmt.Errorf("destination reference %q is not numeric", t.Destination)
	}

	_, err := tx.Exec(ctx, query,
		t.ID, srcID, dstID, t.Amount, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID fetches a single transfer record. Returns (nil, nil) when no
// record matches.
func (r *TransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	t, err := scanTransfer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer by id: %w", err)
	}
	return t, nil
}

// ListByAccount returns every transfer where the account appears as
// source or destination, newest first.
func (r *TransferRepo) ListByAccount(ctx context.Context, accountID int64) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		t     domain.Transfer
		srcID int64
		dstID int64
	)
	err := row.Scan(&t.ID, &srcID, &dstID, &t.Amount, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Source = domain.RefFromID(srcID)
	t.Destination = domain.RefFromID(dstID)
	return &t, nil
}
