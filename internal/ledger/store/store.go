package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/investor"
	"github.com/seaward/backoffice/internal/ledger"
	"github.com/seaward/backoffice/internal/ledger/balance"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) BeginRecord(ctx context.Context) (ledger.RecordTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &recordTx{tx: dbTx}, nil
}

func (s *Store) ListTransactions(ctx context.Context, investorID uuid.UUID) ([]*ledger.Transaction, error) {
	query := `
		SELECT id, investor_id, transaction_type, amount, transaction_date
		FROM investor_transactions
		WHERE investor_id = $1
		ORDER BY transaction_date DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, investorID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	txs := []*ledger.Transaction{}

	for rows.Next() {
		var (
			tx  ledger.Transaction
			typ string
		)

		if err := rows.Scan(&tx.ID, &tx.InvestorID, &typ, &tx.Amount, &tx.Date); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		tx.Type = ledger.Type(typ)
		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

func (s *Store) DeleteInvestor(ctx context.Context, investorID uuid.UUID) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	var id uuid.UUID

	err = dbTx.QueryRowContext(ctx, `SELECT id FROM investors WHERE id = $1 FOR UPDATE`, investorID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return investor.ErrNotFound
		}

		return fmt.Errorf("locking investor: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM investor_transactions WHERE investor_id = $1`, investorID); err != nil {
		return fmt.Errorf("deleting transactions: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM investors WHERE id = $1`, investorID); err != nil {
		return fmt.Errorf("deleting investor: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

type recordTx struct {
	tx *sql.Tx
}

func (r *recordTx) LockInvestor(ctx context.Context, investorID uuid.UUID) (decimal.Decimal, error) {
	var roi decimal.Decimal

	err := r.tx.QueryRowContext(ctx, `SELECT roi FROM investors WHERE id = $1 FOR UPDATE`, investorID).Scan(&roi)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, investor.ErrNotFound
		}

		return decimal.Zero, fmt.Errorf("locking investor: %w", err)
	}

	return roi, nil
}

func (r *recordTx) Totals(ctx context.Context, investorID uuid.UUID) (balance.Totals, error) {
	query := `
		SELECT transaction_type, SUM(amount)
		FROM investor_transactions
		WHERE investor_id = $1
		GROUP BY transaction_type
	`

	rows, err := r.tx.QueryContext(ctx, query, investorID)
	if err != nil {
		return balance.Totals{}, fmt.Errorf("summing transactions: %w", err)
	}
	defer rows.Close()

	totals := balance.Totals{Deposits: decimal.Zero, Withdrawals: decimal.Zero}

	for rows.Next() {
		var (
			typ string
			sum decimal.Decimal
		)

		if err := rows.Scan(&typ, &sum); err != nil {
			return balance.Totals{}, fmt.Errorf("scanning totals: %w", err)
		}

		switch ledger.Type(typ) {
		case ledger.TypeDeposit:
			totals.Deposits = sum
		case ledger.TypeWithdrawal:
			totals.Withdrawals = sum
		}
	}

	if err := rows.Err(); err != nil {
		return balance.Totals{}, fmt.Errorf("iterating totals: %w", err)
	}

	return totals, nil
}

func (r *recordTx) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO investor_transactions (investor_id, transaction_type, amount, transaction_date)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, transaction_date
	`

	err := r.tx.QueryRowContext(ctx, query, tx.InvestorID, string(tx.Type), tx.Amount).Scan(&tx.ID, &tx.Date)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}

	return nil
}

func (r *recordTx) UpdateBalances(ctx context.Context, investorID uuid.UUID, res balance.Result) error {
	query := `
		UPDATE investors
		SET account_balance = $1, current_balance = $2, updated_at = NOW()
		WHERE id = $3
	`

	if _, err := r.tx.ExecContext(ctx, query, res.AccountBalance, res.CurrentBalance, investorID); err != nil {
		return fmt.Errorf("updating balances: %w", err)
	}

	return nil
}

func (r *recordTx) Commit() error {
	return r.tx.Commit()
}

func (r *recordTx) Rollback() error {
	return r.tx.Rollback()
}
