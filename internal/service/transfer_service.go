package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"luka-points/internal/core/domain"
	"luka-points/internal/core/ports"
	"luka-points/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransferMode selects how the executor guards the debit/credit pair.
type TransferMode string

const (
	// ModeBestEffort reproduces the original contract: no locking between
	// the balance read and the two writes. Two concurrent transfers
	// debiting the same source can both observe sufficient funds and
	// over-draw the account, and a failure after the debit leaves the
	// books inconsistent. Kept for compatibility testing.
	ModeBestEffort TransferMode = "best_effort"

	// ModeSerialized wraps the read-debit-credit-append sequence in a
	// critical section keyed by the account pair. When the store offers
	// real transactions (ports.AtomicTransferStore), the whole sequence
	// is delegated to a single backend transaction instead.
	ModeSerialized TransferMode = "serialized"
)

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	store ports.BalanceStore
	tlog  ports.TransferLog
	mode  TransferMode
	locks accountLocks
	log   zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(store ports.BalanceStore, tlog ports.TransferLog, mode TransferMode, log zerolog.Logger) *TransferServiceImpl {
	if mode == "" {
		mode = ModeSerialized
	}
	return &TransferServiceImpl{
		store: store,
		tlog:  tlog,
		mode:  mode,
		log:   log,
	}
}

// Transfer validates and executes a point movement from source to
// destination. The source balance and recipient existence are read fresh
// immediately before validation.
func (s *TransferServiceImpl) Transfer(ctx context.Context, source, destination domain.AccountRef, amount int64) (*domain.Transfer, error) {
	balance, err := s.store.GetBalance(ctx, source)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.AccountExists(ctx, destination)
	if err != nil {
		return nil, err
	}

	intent, err := ValidateTransfer(source, destination, amount, balance, exists)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, intent)
}

// TransferFromPayment executes a scanned payment request. The payload is
// re-validated, then the flow converges on the same path as a manually
// entered transfer.
func (s *TransferServiceImpl) TransferFromPayment(ctx context.Context, source domain.AccountRef, p domain.PaymentRequest) (*domain.Transfer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.Transfer(ctx, source, p.Recipient(), p.Amount)
}

// History returns all transfers involving ref, newest first. The order is
// enforced here rather than assumed from the log backend.
func (s *TransferServiceImpl) History(ctx context.Context, ref domain.AccountRef) ([]domain.Transfer, error) {
	transfers, err := s.tlog.ListByAccount(ctx, ref)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
	})
	return transfers, nil
}

// Get fetches a single transfer record.
func (s *TransferServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	tr, err := s.tlog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, apperror.ErrTransferNotFound()
	}
	return tr, nil
}

func (s *TransferServiceImpl) execute(ctx context.Context, intent *domain.TransferIntent) (*domain.Transfer, error) {
	if s.mode != ModeBestEffort {
		if atomic, ok := s.store.(ports.AtomicTransferStore); ok {
			tr, err := atomic.ExecuteTransfer(ctx, *intent)
			if err != nil {
				return nil, err
			}
			s.logCompleted(tr)
			return tr, nil
		}

		unlock := s.locks.lockPair(intent.Source, intent.Destination)
		defer unlock()
	}

	tr, err := s.executeTwoStep(ctx, intent)
	if err != nil {
		return nil, err
	}
	s.logCompleted(tr)
	return tr, nil
}

// executeTwoStep performs the debit/credit pair as two independent
// writes. If the credit or the record append fails after the debit
// succeeded, the points are gone and no compensation is attempted; the
// discrepancy is left to manual intervention.
func (s *TransferServiceImpl) executeTwoStep(ctx context.Context, intent *domain.TransferIntent) (*domain.Transfer, error) {
	// Re-read the source balance. This narrows the window between
	// validation and the debit; it does not close it in best-effort mode.
	sourceBalance, err := s.store.GetBalance(ctx, intent.Source)
	if err != nil {
		return nil, apperror.ErrTransferFailed(fmt.Errorf("re-read source balance: %w", err))
	}
	if intent.Amount > sourceBalance {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.store.SetBalance(ctx, intent.Source, sourceBalance-intent.Amount); err != nil {
		return nil, apperror.ErrTransferFailed(fmt.Errorf("debit source: %w", err))
	}

	destBalance, err := s.store.GetBalance(ctx, intent.Destination)
	if err != nil {
		s.log.Error().Err(err).
			Str("source", intent.Source.String()).
			Str("destination", intent.Destination.String()).
			Int64("amount", intent.Amount).
			Msg("debit succeeded but destination read failed, books are inconsistent")
		return nil, apperror.ErrTransferFailed(fmt.Errorf("read destination balance: %w", err))
	}

	if err := s.store.SetBalance(ctx, intent.Destination, destBalance+intent.Amount); err != nil {
		s.log.Error().Err(err).
			Str("source", intent.Source.String()).
			Str("destination", intent.Destination.String()).
			Int64("amount", intent.Amount).
			Msg("debit succeeded but credit failed, books are inconsistent")
		return nil, apperror.ErrTransferFailed(fmt.Errorf("credit destination: %w", err))
	}

	tr := &domain.Transfer{
		ID:          uuid.New(),
		Source:      intent.Source,
		Destination: intent.Destination,
		Amount:      intent.Amount,
		Status:      domain.TransferStatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.tlog.Append(ctx, tr); err != nil {
		s.log.Error().Err(err).
			Str("transfer_id", tr.ID.String()).
			Msg("balances moved but record append failed")
		return nil, apperror.ErrTransferFailed(fmt.Errorf("append transfer record: %w", err))
	}

	return tr, nil
}

func (s *TransferServiceImpl) logCompleted(tr *domain.Transfer) {
	s.log.Info().
		Str("transfer_id", tr.ID.String()).
		Str("source", tr.Source.String()).
		Str("destination", tr.Destination.String()).
		Int64("amount", tr.Amount).
		Msg("transfer completed")
}

// accountLocks hands out one mutex per account reference. Pairs are
// always acquired in lexicographic order so two opposing transfers
// cannot deadlock each other.
type accountLocks struct {
	mu sync.Map // AccountRef -> *sync.Mutex
}

func (l *accountLocks) get(ref domain.AccountRef) *sync.Mutex {
	m, _ := l.mu.LoadOrStore(ref, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func (l *accountLocks) lockPair(a, b domain.AccountRef) func() {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	mFirst := l.get(first)
	mSecond := l.get(second)
	mFirst.Lock()
	mSecond.Lock()
	return func() {
		mSecond.Unlock()
		mFirst.Unlock()
	}
}
