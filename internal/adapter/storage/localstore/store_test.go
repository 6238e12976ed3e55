package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"luka-points/internal/core/domain"
	"luka-points/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.json")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_SeedAndBalance(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	alice := domain.RefFromEmail("alice@example.com")

	require.NoError(t, s.Seed(ctx, alice, 500))

	balance, err := s.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	// Seeding again never resets an existing balance.
	require.NoError(t, s.SetBalance(ctx, alice, 321))
	require.NoError(t, s.Seed(ctx, alice, 500))
	balance, err = s.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(321), balance)
}

func TestStore_UnknownAccount(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	ghost := domain.RefFromEmail("ghost@example.com")

	_, err := s.GetBalance(ctx, ghost)
	assert.True(t, apperror.HasCode(err, "ACC_001"), "got %v", err)

	err = s.SetBalance(ctx, ghost, 10)
	assert.True(t, apperror.HasCode(err, "ACC_001"), "got %v", err)

	exists, err := s.AccountExists(ctx, ghost)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.json")
	ctx := context.Background()
	alice := domain.RefFromEmail("alice@example.com")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, alice, 500))
	transfer := domain.Transfer{
		ID:          uuid.New(),
		Source:      alice,
		Destination: domain.RefFromEmail("bob@example.com"),
		Amount:      75,
		Status:      domain.TransferStatusCompleted,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.Append(ctx, &transfer))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	balance, err := s.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	got, err := s.GetByID(ctx, transfer.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, transfer.Amount, got.Amount)
}

func TestStore_ListByAccountNewestFirst(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	alice := domain.RefFromEmail("alice@example.com")
	bob := domain.RefFromEmail("bob@example.com")
	carol := domain.RefFromEmail("carol@example.com")

	base := time.Now().UTC()
	for i, tr := range []domain.Transfer{
		{ID: uuid.New(), Source: alice, Destination: bob, Amount: 10, Status: domain.TransferStatusCompleted},
		{ID: uuid.New(), Source: bob, Destination: alice, Amount: 20, Status: domain.TransferStatusCompleted},
		{ID: uuid.New(), Source: bob, Destination: carol, Amount: 30, Status: domain.TransferStatusCompleted},
	} {
		tr.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Append(ctx, &tr))
	}

	list, err := s.ListByAccount(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(20), list[0].Amount)
	assert.Equal(t, int64(10), list[1].Amount)

	list, err = s.ListByAccount(ctx, carol)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(30), list[0].Amount)
}

func TestStore_GetByIDMissing(t *testing.T) {
	s, _ := openTestStore(t)

	got, err := s.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}
