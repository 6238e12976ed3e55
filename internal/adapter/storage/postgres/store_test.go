package postgres

import (
	"context"
	"testing"

	"luka-points/internal/core/domain"
	"luka-points/pkg/apperror"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(mock pgxmock.PgxPoolIface) *Store {
	return NewStore(
		NewAccountRepo(mock),
		NewTransferRepo(mock),
		NewTransactor(mock),
		zerolog.Nop(),
	)
}

func expectAccountByID(mock pgxmock.PgxPoolIface, a *domain.Account) {
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(a.ID).
		WillReturnRows(accountRow(a))
}

func TestStore_ExecuteTransfer_Commits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	source := newTestAccount(1)
	source.Balance = 500
	destination := newTestAccount(2)
	destination.Email = "bob@example.com"
	destination.Balance = 100

	expectAccountByID(mock, source)
	expectAccountByID(mock, destination)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(source.ID).
		WillReturnRows(accountRow(source))
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(destination.ID).
		WillReturnRows(accountRow(destination))
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(425), source.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(175), destination.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(pgxmock.AnyArg(), source.ID, destination.ID, int64(75),
			domain.TransferStatusCompleted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store := newTestStore(mock)
	transfer, err := store.ExecuteTransfer(context.Background(), domain.TransferIntent{
		Source:        source.Ref(),
		Destination:   destination.Ref(),
		Amount:        75,
		SourceBalance: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, source.Ref(), transfer.Source)
	assert.Equal(t, destination.Ref(), transfer.Destination)
	assert.Equal(t, int64(75), transfer.Amount)
	assert.Equal(t, domain.TransferStatusCompleted, transfer.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ExecuteTransfer_LocksLowerIDFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Transfer from the higher id to the lower: lock order must still be
	// ascending.
	source := newTestAccount(9)
	source.Balance = 200
	destination := newTestAccount(4)
	destination.Email = "bob@example.com"
	destination.Balance = 50

	expectAccountByID(mock, source)
	expectAccountByID(mock, destination)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(destination.ID).
		WillReturnRows(accountRow(destination))
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(source.ID).
		WillReturnRows(accountRow(source))
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(170), source.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(80), destination.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(pgxmock.AnyArg(), source.ID, destination.ID, int64(30),
			domain.TransferStatusCompleted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store := newTestStore(mock)
	_, err = store.ExecuteTransfer(context.Background(), domain.TransferIntent{
		Source:        source.Ref(),
		Destination:   destination.Ref(),
		Amount:        30,
		SourceBalance: 200,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ExecuteTransfer_RechecksFundsUnderLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	source := newTestAccount(1)
	source.Balance = 500
	destination := newTestAccount(2)
	destination.Email = "bob@example.com"
	destination.Balance = 100

	expectAccountByID(mock, source)
	expectAccountByID(mock, destination)

	// By the time the row lock is held the balance has dropped below the
	// requested amount.
	drained := *source
	drained.Balance = 20

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(source.ID).
		WillReturnRows(accountRow(&drained))
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(destination.ID).
		WillReturnRows(accountRow(destination))
	mock.ExpectRollback()

	store := newTestStore(mock)
	_, err = store.ExecuteTransfer(context.Background(), domain.TransferIntent{
		Source:        source.Ref(),
		Destination:   destination.Ref(),
		Amount:        75,
		SourceBalance: 500,
	})
	assert.True(t, apperror.HasCode(err, "TRF_004"), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := newTestAccount(3)
	expectAccountByID(mock, a)

	store := newTestStore(mock)
	balance, err := store.GetBalance(context.Background(), a.Ref())
	require.NoError(t, err)
	assert.Equal(t, a.Balance, balance)
}

func TestStore_GetBalance_UnknownAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows(accountTestColumns()))

	store := newTestStore(mock)
	_, err = store.GetBalance(context.Background(), domain.RefFromID(99))
	assert.True(t, apperror.HasCode(err, "ACC_001"), "got %v", err)
}

func TestStore_AccountExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := newTestAccount(3)
	expectAccountByID(mock, a)
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE email").
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows(accountTestColumns()))

	store := newTestStore(mock)

	exists, err := store.AccountExists(context.Background(), a.Ref())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.AccountExists(context.Background(), domain.RefFromEmail("nobody@example.com"))
	require.NoError(t, err)
	assert.False(t, exists)
}
