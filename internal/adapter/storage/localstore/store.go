// Package localstore is the embedded balance backend. It keeps the
// whole program state as a single JSON snapshot on disk, keyed by
// email, and rewrites the file on every mutation. It exists for
// development and offline runs; concurrent writers race exactly as the
// storage contract allows.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"luka-points/internal/core/domain"
	"luka-points/pkg/apperror"

	"github.com/google/uuid"
)

// snapshot is the on-disk document.
type snapshot struct {
	Version   int                         `json:"version"`
	Balances  map[domain.AccountRef]int64 `json:"balances"`
	Transfers []domain.Transfer           `json:"transfers"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Store implements ports.BalanceStore and ports.TransferLog over a JSON
// file. It does not implement AtomicTransferStore: a JSON file has no
// transactions, so transfers against this backend run the two-step
// executor.
type Store struct {
	mu   sync.RWMutex
	file *os.File
	snap *snapshot
	path string
}

// Open opens or creates the snapshot file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	s := &Store{file: f, path: path}
	if err := s.load(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	return s, nil
}

// Close releases the underlying file.
func (s *Store) Close() error { return s.file.Close() }

func (s *Store) load() error {
	info, err := s.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		s.snap = &snapshot{
			Version:   1,
			Balances:  map[domain.AccountRef]int64{},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		return s.flushLocked()
	}
	dec := json.NewDecoder(s.file)
	var snap snapshot
	if err := dec.Decode(&snap); err != nil {
		return err
	}
	if snap.Balances == nil {
		snap.Balances = map[domain.AccountRef]int64{}
	}
	s.snap = &snap
	return nil
}

func (s *Store) flushLocked() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(s.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.snap); err != nil {
		return err
	}
	// truncate in case new content is shorter
	pos, _ := s.file.Seek(0, io.SeekCurrent)
	if err := s.file.Truncate(pos); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *Store) withWrite(ctx context.Context, fn func(*snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := fn(s.snap); err != nil {
		return err
	}
	s.snap.UpdatedAt = time.Now()
	return s.flushLocked()
}

func (s *Store) withRead(fn func(*snapshot)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.snap)
}

// Seed registers an account reference with an initial balance if it is
// not present yet. Existing balances are left untouched.
func (s *Store) Seed(ctx context.Context, ref domain.AccountRef, balance int64) error {
	return s.withWrite(ctx, func(snap *snapshot) error {
		if _, ok := snap.Balances[ref]; !ok {
			snap.Balances[ref] = balance
		}
		return nil
	})
}

// GetBalance returns the stored balance for ref.
func (s *Store) GetBalance(ctx context.Context, ref domain.AccountRef) (int64, error) {
	var (
		balance int64
		ok      bool
	)
	s.withRead(func(snap *snapshot) {
		balance, ok = snap.Balances[ref]
	})
	if !ok {
		return 0, apperror.ErrAccountNotFound()
	}
	return balance, nil
}

// SetBalance overwrites the stored balance. The read-modify-write of a
// transfer is not atomic against other writers.
func (s *Store) SetBalance(ctx context.Context, ref domain.AccountRef, balance int64) error {
	return s.withWrite(ctx, func(snap *snapshot) error {
		if _, ok := snap.Balances[ref]; !ok {
			return apperror.ErrAccountNotFound()
		}
		snap.Balances[ref] = balance
		return nil
	})
}

// AccountExists reports whether ref has been seeded.
func (s *Store) AccountExists(ctx context.Context, ref domain.AccountRef) (bool, error) {
	var ok bool
	s.withRead(func(snap *snapshot) {
		_, ok = snap.Balances[ref]
	})
	return ok, nil
}

// Append adds a transfer record to the snapshot.
func (s *Store) Append(ctx context.Context, t *domain.Transfer) error {
	return s.withWrite(ctx, func(snap *snapshot) error {
		snap.Transfers = append(snap.Transfers, *t)
		return nil
	})
}

// ListByAccount returns the transfers involving ref, newest first. The
// snapshot holds records in append order, so they are sorted here.
func (s *Store) ListByAccount(ctx context.Context, ref domain.AccountRef) ([]domain.Transfer, error) {
	var out []domain.Transfer
	s.withRead(func(snap *snapshot) {
		for _, t := range snap.Transfers {
			if t.Involves(ref) {
				out = append(out, t)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID returns a single transfer record, or (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	var out *domain.Transfer
	s.withRead(func(snap *snapshot) {
		for i := range snap.Transfers {
			if snap.Transfers[i].ID == id {
				t := snap.Transfers[i]
				out = &t
				break
			}
		}
	})
	return out, nil
}
