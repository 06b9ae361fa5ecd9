// Package memstore is an in-process ledger repository. Each investor has its
// own lock, taken by LockInvestor and released on Commit or Rollback, which
// gives the same serialization as a row lock in the database.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/investor"
	"github.com/seaward/backoffice/internal/ledger"
	"github.com/seaward/backoffice/internal/ledger/balance"
)

type account struct {
	roi      decimal.Decimal
	balances balance.Result
	lock     *sync.Mutex
}

type Store struct {
	mu        sync.Mutex
	investors map[uuid.UUID]*account
	txs       map[uuid.UUID][]*ledger.Transaction
	now       func() time.Time
}

func New() *Store {
	return &Store{
		investors: make(map[uuid.UUID]*account),
		txs:       make(map[uuid.UUID][]*ledger.Transaction),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddInvestor registers an investor with zero balances.
func (s *Store) AddInvestor(id uuid.UUID, roi decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.investors[id] = &account{
		roi:      roi,
		balances: balance.Result{AccountBalance: decimal.Zero, CurrentBalance: decimal.Zero},
		lock:     &sync.Mutex{},
	}
}

// Balances returns the stored snapshot for the investor.
func (s *Store) Balances(id uuid.UUID) (balance.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.investors[id]
	if !ok {
		return balance.Result{}, false
	}

	return acc.balances, true
}

func (s *Store) BeginRecord(context.Context) (ledger.RecordTx, error) {
	return &recordTx{store: s}, nil
}

func (s *Store) ListTransactions(_ context.Context, investorID uuid.UUID) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := slices.Clone(s.txs[investorID])
	slices.Reverse(txs)

	if txs == nil {
		txs = []*ledger.Transaction{}
	}

	return txs, nil
}

func (s *Store) DeleteInvestor(_ context.Context, investorID uuid.UUID) error {
	acc, ok := s.account(investorID)
	if !ok {
		return investor.ErrNotFound
	}

	acc.lock.Lock()
	defer acc.lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.investors[investorID] != acc {
		return investor.ErrNotFound
	}

	delete(s.txs, investorID)
	delete(s.investors, investorID)

	return nil
}

func (s *Store) account(id uuid.UUID) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.investors[id]

	return acc, ok
}

type recordTx struct {
	store    *Store
	acc      *account
	id       uuid.UUID
	pending  []*ledger.Transaction
	balances *balance.Result
	done     bool
}

func (r *recordTx) LockInvestor(_ context.Context, investorID uuid.UUID) (decimal.Decimal, error) {
	acc, ok := r.store.account(investorID)
	if !ok {
		return decimal.Zero, investor.ErrNotFound
	}

	acc.lock.Lock()

	// The investor may have been deleted while we waited.
	if cur, ok := r.store.account(investorID); !ok || cur != acc {
		acc.lock.Unlock()
		return decimal.Zero, investor.ErrNotFound
	}

	r.acc = acc
	r.id = investorID

	r.store.mu.Lock()
	roi := acc.roi
	r.store.mu.Unlock()

	return roi, nil
}

func (r *recordTx) Totals(_ context.Context, investorID uuid.UUID) (balance.Totals, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	totals := balance.Totals{Deposits: decimal.Zero, Withdrawals: decimal.Zero}

	for _, tx := range r.store.txs[investorID] {
		switch tx.Type {
		case ledger.TypeDeposit:
			totals.Deposits = totals.Deposits.Add(tx.Amount)
		case ledger.TypeWithdrawal:
			totals.Withdrawals = totals.Withdrawals.Add(tx.Amount)
		}
	}

	return totals, nil
}

func (r *recordTx) InsertTransaction(_ context.Context, tx *ledger.Transaction) error {
	tx.ID = uuid.New()
	tx.Date = r.store.now()

	r.pending = append(r.pending, tx)

	return nil
}

func (r *recordTx) UpdateBalances(_ context.Context, _ uuid.UUID, res balance.Result) error {
	r.balances = &res
	return nil
}

func (r *recordTx) Commit() error {
	if r.done {
		return nil
	}

	r.store.mu.Lock()
	if r.acc != nil {
		r.store.txs[r.id] = append(r.store.txs[r.id], r.pending...)

		if r.balances != nil {
			r.acc.balances = *r.balances
		}
	}
	r.store.mu.Unlock()

	r.release()

	return nil
}

func (r *recordTx) Rollback() error {
	if r.done {
		return nil
	}

	r.pending = nil
	r.balances = nil
	r.release()

	return nil
}

func (r *recordTx) release() {
	r.done = true

	if r.acc != nil {
		r.acc.lock.Unlock()
		r.acc = nil
	}
}
