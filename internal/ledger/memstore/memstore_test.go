package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/backoffice/internal/investor"
	"github.com/seaward/backoffice/internal/ledger"
	"github.com/seaward/backoffice/internal/ledger/balance"
	"github.com/seaward/backoffice/internal/ledger/memstore"
)

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := uuid.New()
	s.AddInvestor(id, decimal.NewFromInt(10))

	rtx, err := s.BeginRecord(ctx)
	require.NoError(t, err)

	_, err = rtx.LockInvestor(ctx, id)
	require.NoError(t, err)
	require.NoError(t, rtx.InsertTransaction(ctx, &ledger.Transaction{InvestorID: id, Type: ledger.TypeDeposit, Amount: decimal.NewFromInt(5)}))
	require.NoError(t, rtx.UpdateBalances(ctx, id, balance.Result{AccountBalance: decimal.NewFromInt(5), CurrentBalance: decimal.NewFromFloat(5.5)}))
	require.NoError(t, rtx.Rollback())

	txs, err := s.ListTransactions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, txs)

	got, ok := s.Balances(id)
	require.True(t, ok)
	assert.True(t, got.AccountBalance.IsZero())

	// Rollback released the lock.
	rtx, err = s.BeginRecord(ctx)
	require.NoError(t, err)
	_, err = rtx.LockInvestor(ctx, id)
	require.NoError(t, err)
	require.NoError(t, rtx.Commit())
	assert.NoError(t, rtx.Rollback())
}

func TestStore_LockIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := uuid.New()
	s.AddInvestor(id, decimal.Zero)

	first, _ := s.BeginRecord(ctx)
	_, err := first.LockInvestor(ctx, id)
	require.NoError(t, err)

	acquired := make(chan struct{})

	go func() {
		second, _ := s.BeginRecord(ctx)
		_, _ = second.LockInvestor(ctx, id)
		close(acquired)
		_ = second.Rollback()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Commit())

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestStore_UnknownInvestor(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	rtx, _ := s.BeginRecord(ctx)
	_, err := rtx.LockInvestor(ctx, uuid.New())
	assert.ErrorIs(t, err, investor.ErrNotFound)
	assert.NoError(t, rtx.Rollback())

	assert.ErrorIs(t, s.DeleteInvestor(ctx, uuid.New()), investor.ErrNotFound)

	txs, err := s.ListTransactions(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}
