package postgres

import (
	"context"
	"fmt"
	"time"

	"luka-points/internal/core/domain"
	"luka-points/internal/core/ports"
	"luka-points/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store adapts the relational repositories to the balance-store and
// transfer-log abstractions. It also implements AtomicTransferStore:
// when this backend is active, transfers run inside a single database
// transaction with pessimistic row locks, so the debit, the credit and
// the record append commit or roll back together.
type Store struct {
	accounts   ports.AccountRepository
	transfers  ports.TransferRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewStore wires the repositories into a Store.
func NewStore(
	accounts ports.AccountRepository,
	transfers ports.TransferRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *Store {
	return &Store{
		accounts:   accounts,
		transfers:  transfers,
		transactor: transactor,
		log:        log.With().Str("component", "postgres_store").Logger(),
	}
}

// GetBalance returns the current balance for the referenced account.
func (s *Store) GetBalance(ctx context.Context, ref domain.AccountRef) (int64, error) {
	account, err := s.accounts.GetByRef(ctx, ref)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, apperror.ErrAccountNotFound()
	}
	return account.Balance, nil
}

// SetBalance overwrites the stored balance outside any transfer flow.
// It exists for administrative adjustments and for the two-step
// executor; the atomic path never uses it.
func (s *Store) SetBalance(ctx context.Context, ref domain.AccountRef, balance int64) error {
	account, err := s.accounts.GetByRef(ctx, ref)
	if err != nil {
		return err
	}
	if account == nil {
		return apperror.ErrAccountNotFound()
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set balance: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.accounts.UpdateBalance(ctx, tx, account.ID, balance); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AccountExists reports whether the reference resolves to an account.
func (s *Store) AccountExists(ctx context.Context, ref domain.AccountRef) (bool, error) {
	account, err := s.accounts.GetByRef(ctx, ref)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}

// Append inserts a transfer record in its own short transaction.
func (s *Store) Append(ctx context.Context, t *domain.Transfer) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.transfers.Create(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListByAccount returns the transfers involving ref, newest first.
func (s *Store) ListByAccount(ctx context.Context, ref domain.AccountRef) ([]domain.Transfer, error) {
	account, err := s.accounts.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return s.transfers.ListByAccount(ctx, account.ID)
}

// GetByID returns a single transfer record, or (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return s.transfers.GetByID(ctx, id)
}

// ExecuteTransfer performs the debit, the credit and the record append
// as one transaction. Both account rows are locked in ascending id
// order to avoid deadlocks between concurrent transfers of the same
// pair, and the source balance is re-checked under the lock.
func (s *Store) ExecuteTransfer(ctx context.Context, intent domain.TransferIntent) (*domain.Transfer, error) {
	source, err := s.accounts.GetByRef(ctx, intent.Source)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	destination, err := s.accounts.GetByRef(ctx, intent.Destination)
	if err != nil {
		return nil, err
	}
	if destination == nil {
		return nil, apperror.ErrRecipientNotFound()
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrTransferFailed(fmt.Errorf("begin transfer: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Consistent lock order regardless of transfer direction.
	first, second := source.ID, destination.ID
	if first > second {
		first, second = second, first
	}
	lockedFirst, err := s.accounts.GetByIDForUpdate(ctx, tx, first)
	if err != nil {
		return nil, apperror.ErrTransferFailed(err)
	}
	lockedSecond, err := s.accounts.GetByIDForUpdate(ctx, tx, second)
	if err != nil {
		return nil, apperror.ErrTransferFailed(err)
	}
	if lockedFirst == nil || lockedSecond == nil {
		return nil, apperror.ErrTransferFailed(fmt.Errorf("account row vanished during transfer"))
	}

	lockedSource, lockedDest := lockedFirst, lockedSecond
	if lockedSource.ID != source.ID {
		lockedSource, lockedDest = lockedSecond, lockedFirst
	}

	// The balance may have moved since validation.
	if lockedSource.Balance < intent.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.accounts.UpdateBalance(ctx, tx, lockedSource.ID, lockedSource.Balance-intent.Amount); err != nil {
		return nil, apperror.ErrTransferFailed(err)
	}
	if err := s.accounts.UpdateBalance(ctx, tx, lockedDest.ID, lockedDest.Balance+intent.Amount); err != nil {
		return nil, apperror.ErrTransferFailed(err)
	}

	transfer := &domain.Transfer{
		ID:          uuid.New(),
		Source:      source.Ref(),
		Destination: destination.Ref(),
		Amount:      intent.Amount,
		Status:      domain.TransferStatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.transfers.Create(ctx, tx, transfer); err != nil {
		return nil, apperror.ErrTransferFailed(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrTransferFailed(fmt.Errorf("commit transfer: %w", err))
	}

	s.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Int64("source_id", source.ID).
		Int64("destination_id", destination.ID).
		Int64("amount", intent.Amount).
		Msg("transfer committed")

	return transfer, nil
}
