package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/seaward/backoffice/internal/cache"
	"github.com/seaward/backoffice/internal/events"
	"github.com/seaward/backoffice/internal/investor"
	"github.com/seaward/backoffice/internal/ledger"
	"github.com/seaward/backoffice/internal/ledger/balance"
	"github.com/seaward/backoffice/internal/ledger/memstore"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_RecordTransaction_Validation(t *testing.T) {
	tests := []struct {
		name   string
		typ    ledger.Type
		amount decimal.Decimal
	}{
		{name: "UnknownType", typ: "Transfer", amount: dec("10")},
		{name: "LowercaseType", typ: "deposit", amount: dec("10")},
		{name: "ZeroAmount", typ: ledger.TypeDeposit, amount: decimal.Zero},
		{name: "NegativeAmount", typ: ledger.TypeWithdrawal, amount: dec("-5")},
		{name: "RoundsToZero", typ: ledger.TypeDeposit, amount: dec("0.004")},
		{name: "AboveColumnPrecision", typ: ledger.TypeDeposit, amount: dec("10000000000000")},
		{name: "RoundsAboveColumnPrecision", typ: ledger.TypeDeposit, amount: dec("9999999999999.995")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			// No repository call is expected: validation happens before any write.
			svc := ledger.NewService(ledger.NewMockRepository(ctrl), ledger.NewMockCache(ctrl), ledger.NewMockPublisher(ctrl))

			_, err := svc.RecordTransaction(context.Background(), uuid.New(), tt.typ, tt.amount)
			assert.ErrorIs(t, err, ledger.ErrInvalidInput)
		})
	}
}

func TestService_RecordTransaction(t *testing.T) {
	id := uuid.New()
	dbErr := errors.New("connection reset")

	type testCase struct {
		name      string
		typ       ledger.Type
		amount    decimal.Decimal
		setupMock func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, c *ledger.MockCache, p *ledger.MockPublisher)
		want      balance.Result
		wantErr   error
	}

	tests := []testCase{
		{
			name:   "DepositCommits",
			typ:    ledger.TypeDeposit,
			amount: dec("100"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, c *ledger.MockCache, p *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				gomock.InOrder(
					tx.EXPECT().LockInvestor(gomock.Any(), id).Return(dec("10"), nil),
					tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{Deposits: decimal.Zero, Withdrawals: decimal.Zero}, nil),
					tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).
						DoAndReturn(func(_ context.Context, rec *ledger.Transaction) error {
							assert.Equal(t, id, rec.InvestorID)
							assert.Equal(t, ledger.TypeDeposit, rec.Type)
							assert.True(t, dec("100").Equal(rec.Amount))
							rec.ID = uuid.New()
							return nil
						}),
					tx.EXPECT().UpdateBalances(gomock.Any(), id, gomock.Any()).Return(nil),
					tx.EXPECT().Commit().Return(nil),
				)
				tx.EXPECT().Rollback().Return(nil).AnyTimes()
				c.EXPECT().Incr(gomock.Any(), investor.GenerationKey(id)).Return(int64(1), nil)
				p.EXPECT().Publish(gomock.Any(), id.String(), gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, value []byte) error {
						var ev ledger.Event
						require.NoError(t, json.Unmarshal(value, &ev))
						assert.Equal(t, ledger.EventTransactionRecorded, ev.Kind)
						assert.Equal(t, id, ev.InvestorID)
						return nil
					})
			},
			want: balance.Result{AccountBalance: dec("100"), CurrentBalance: dec("110")},
		},
		{
			name:   "InvestorNotFound",
			typ:    ledger.TypeDeposit,
			amount: dec("100"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(decimal.Zero, investor.ErrNotFound)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: investor.ErrNotFound,
		},
		{
			name:   "MaximumAmountAccepted",
			typ:    ledger.TypeDeposit,
			amount: dec("9999999999999.99"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, c *ledger.MockCache, p *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(decimal.Zero, nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{}, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().UpdateBalances(gomock.Any(), id, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil).AnyTimes()
				c.EXPECT().Incr(gomock.Any(), gomock.Any()).Return(int64(1), nil)
				p.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
			},
			want: balance.Result{AccountBalance: dec("9999999999999.99"), CurrentBalance: dec("9999999999999.99")},
		},
		{
			name:   "AccountBalanceOverflowWritesNothing",
			typ:    ledger.TypeDeposit,
			amount: dec("1"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(decimal.Zero, nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{Deposits: dec("9999999999999.99")}, nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrInvalidInput,
		},
		{
			name:   "CurrentBalanceOverflowWritesNothing",
			typ:    ledger.TypeDeposit,
			amount: dec("1"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(dec("50"), nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{Deposits: dec("9000000000000")}, nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrInvalidInput,
		},
		{
			name:   "InsufficientFundsWritesNothing",
			typ:    ledger.TypeWithdrawal,
			amount: dec("100"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(dec("10"), nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{Deposits: dec("100"), Withdrawals: dec("40")}, nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: ledger.ErrInsufficientFunds,
		},
		{
			name:   "BeginFails",
			typ:    ledger.TypeDeposit,
			amount: dec("1"),
			setupMock: func(repo *ledger.MockRepository, _ *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(nil, dbErr)
			},
			wantErr: dbErr,
		},
		{
			name:   "InsertFailsRollsBack",
			typ:    ledger.TypeDeposit,
			amount: dec("1"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(decimal.Zero, nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{}, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: dbErr,
		},
		{
			name:   "UpdateFailsRollsBack",
			typ:    ledger.TypeDeposit,
			amount: dec("1"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(decimal.Zero, nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{}, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().UpdateBalances(gomock.Any(), id, gomock.Any()).Return(dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: dbErr,
		},
		{
			name:   "CommitFails",
			typ:    ledger.TypeDeposit,
			amount: dec("1"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, _ *ledger.MockCache, _ *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(decimal.Zero, nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{}, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().UpdateBalances(gomock.Any(), id, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: dbErr,
		},
		{
			name:   "SideEffectFailuresDoNotFailTheWrite",
			typ:    ledger.TypeDeposit,
			amount: dec("5"),
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockRecordTx, c *ledger.MockCache, p *ledger.MockPublisher) {
				repo.EXPECT().BeginRecord(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockInvestor(gomock.Any(), id).Return(decimal.Zero, nil)
				tx.EXPECT().Totals(gomock.Any(), id).Return(balance.Totals{}, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().UpdateBalances(gomock.Any(), id, gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil).AnyTimes()
				c.EXPECT().Incr(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("redis down"))
				p.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
			},
			want: balance.Result{AccountBalance: dec("5"), CurrentBalance: dec("5")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			tx := ledger.NewMockRecordTx(ctrl)
			c := ledger.NewMockCache(ctrl)
			p := ledger.NewMockPublisher(ctrl)
			tt.setupMock(repo, tx, c, p)

			got, err := ledger.NewService(repo, c, p).RecordTransaction(context.Background(), id, tt.typ, tt.amount)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.AccountBalance.Equal(got.AccountBalance), "account balance %s", got.AccountBalance)
			assert.True(t, tt.want.CurrentBalance.Equal(got.CurrentBalance), "current balance %s", got.CurrentBalance)
		})
	}
}

func TestService_DeleteInvestor(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := ledger.NewMockRepository(ctrl)
		c := ledger.NewMockCache(ctrl)
		p := ledger.NewMockPublisher(ctrl)

		repo.EXPECT().DeleteInvestor(gomock.Any(), id).Return(nil)
		c.EXPECT().Incr(gomock.Any(), investor.GenerationKey(id)).Return(int64(1), nil)
		p.EXPECT().Publish(gomock.Any(), id.String(), gomock.Any()).Return(nil)

		assert.NoError(t, ledger.NewService(repo, c, p).DeleteInvestor(context.Background(), id))
	})

	t.Run("NotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := ledger.NewMockRepository(ctrl)
		repo.EXPECT().DeleteInvestor(gomock.Any(), id).Return(investor.ErrNotFound)

		err := ledger.NewService(repo, ledger.NewMockCache(ctrl), ledger.NewMockPublisher(ctrl)).DeleteInvestor(context.Background(), id)
		assert.ErrorIs(t, err, investor.ErrNotFound)
	})
}

func TestService_ListTransactions_NilBecomesEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := ledger.NewMockRepository(ctrl)
	repo.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(nil, nil)

	got, err := ledger.NewService(repo, ledger.NewMockCache(ctrl), ledger.NewMockPublisher(ctrl)).
		ListTransactions(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func newMemService(roi string) (*ledger.Service, *memstore.Store, uuid.UUID) {
	repo := memstore.New()
	id := uuid.New()
	repo.AddInvestor(id, dec(roi))

	return ledger.NewService(repo, cache.Noop{}, events.Noop{}), repo, id
}

func TestService_WorkedExample(t *testing.T) {
	ctx := context.Background()
	svc, repo, id := newMemService("10")

	res, err := svc.RecordTransaction(ctx, id, ledger.TypeDeposit, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", res.AccountBalance.StringFixed(2))
	assert.Equal(t, "110.00", res.CurrentBalance.StringFixed(2))

	res, err = svc.RecordTransaction(ctx, id, ledger.TypeWithdrawal, dec("40"))
	require.NoError(t, err)
	assert.Equal(t, "60.00", res.AccountBalance.StringFixed(2))
	assert.Equal(t, "66.00", res.CurrentBalance.StringFixed(2))

	_, err = svc.RecordTransaction(ctx, id, ledger.TypeWithdrawal, dec("100"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	stored, ok := repo.Balances(id)
	require.True(t, ok)
	assert.Equal(t, "60.00", stored.AccountBalance.StringFixed(2))
	assert.Equal(t, "66.00", stored.CurrentBalance.StringFixed(2))

	txs, err := svc.ListTransactions(ctx, id)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.TypeWithdrawal, txs[0].Type)
	assert.Equal(t, ledger.TypeDeposit, txs[1].Type)
}

func TestService_WithdrawEntireBalance(t *testing.T) {
	ctx := context.Background()
	svc, _, id := newMemService("7.5")

	_, err := svc.RecordTransaction(ctx, id, ledger.TypeDeposit, dec("250.50"))
	require.NoError(t, err)

	res, err := svc.RecordTransaction(ctx, id, ledger.TypeWithdrawal, dec("250.50"))
	require.NoError(t, err)
	assert.True(t, res.AccountBalance.IsZero())
	assert.True(t, res.CurrentBalance.IsZero())
}

func TestService_BalancesMatchLog(t *testing.T) {
	ctx := context.Background()
	svc, repo, id := newMemService("12.5")

	ops := []struct {
		typ    ledger.Type
		amount string
	}{
		{ledger.TypeDeposit, "100"},
		{ledger.TypeDeposit, "0.01"},
		{ledger.TypeWithdrawal, "33.33"},
		{ledger.TypeWithdrawal, "500"},
		{ledger.TypeDeposit, "19.99"},
		{ledger.TypeWithdrawal, "86.67"},
	}

	for _, op := range ops {
		_, _ = svc.RecordTransaction(ctx, id, op.typ, dec(op.amount))

		txs, err := svc.ListTransactions(ctx, id)
		require.NoError(t, err)

		principal := decimal.Zero
		for _, tx := range txs {
			if tx.Type == ledger.TypeDeposit {
				principal = principal.Add(tx.Amount)
			} else {
				principal = principal.Sub(tx.Amount)
			}
		}

		stored, ok := repo.Balances(id)
		require.True(t, ok)
		assert.True(t, principal.Equal(stored.AccountBalance), "account %s != log %s", stored.AccountBalance, principal)
		assert.True(t, balance.Current(stored.AccountBalance, dec("12.5")).Equal(stored.CurrentBalance))
		assert.False(t, stored.AccountBalance.IsNegative())
	}
}

func TestService_ConcurrentWithdrawalsSerialize(t *testing.T) {
	ctx := context.Background()

	for range 50 {
		svc, repo, id := newMemService("10")

		_, err := svc.RecordTransaction(ctx, id, ledger.TypeDeposit, dec("100"))
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			errs = make([]error, 2)
		)

		for i := range errs {
			wg.Add(1)

			go func() {
				defer wg.Done()
				_, errs[i] = svc.RecordTransaction(ctx, id, ledger.TypeWithdrawal, dec("100"))
			}()
		}

		wg.Wait()

		var ok, insufficient int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ledger.ErrInsufficientFunds):
				insufficient++
			}
		}

		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, insufficient)

		stored, _ := repo.Balances(id)
		assert.True(t, stored.AccountBalance.IsZero())
	}
}

func TestService_DeleteRemovesLog(t *testing.T) {
	ctx := context.Background()
	svc, _, id := newMemService("10")

	_, err := svc.RecordTransaction(ctx, id, ledger.TypeDeposit, dec("10"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvestor(ctx, id))

	txs, err := svc.ListTransactions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, txs)

	assert.ErrorIs(t, svc.DeleteInvestor(ctx, id), investor.ErrNotFound)

	_, err = svc.RecordTransaction(ctx, id, ledger.TypeDeposit, dec("10"))
	assert.ErrorIs(t, err, investor.ErrNotFound)
}
