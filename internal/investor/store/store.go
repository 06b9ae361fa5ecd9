package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/seaward/backoffice/internal/investor"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order matches selectInvestorColumns.
func scanInvestor(s scanner) (*investor.Investor, error) {
	var inv investor.Investor

	var status string

	if err := s.Scan(
		&inv.ID, &inv.Name, &inv.AccountType, &status, &inv.InvestmentTerm, &inv.ROI,
		&inv.DateJoined, &inv.DatePayable, &inv.AccountBalance, &inv.CurrentBalance,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.Status = investor.Status(status)

	return &inv, nil
}

const selectInvestorColumns = `
	id, name, account_type, status, investment_term, roi,
	date_joined, date_payable, account_balance, current_balance, created_at, updated_at
`

func (s *Store) CreateInvestor(ctx context.Context, inv *investor.Investor) error {
	query := `
		INSERT INTO investors (name, account_type, status, investment_term, roi, date_joined, date_payable, account_balance, current_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		inv.Name,
		inv.AccountType,
		inv.Status,
		inv.InvestmentTerm,
		inv.ROI,
		inv.DateJoined,
		inv.DatePayable,
		inv.AccountBalance,
		inv.CurrentBalance,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating investor: %w", err)
	}

	return nil
}

func (s *Store) GetInvestor(ctx context.Context, id uuid.UUID) (*investor.Investor, error) {
	query := `SELECT ` + selectInvestorColumns + ` FROM investors WHERE id = $1`

	inv, err := scanInvestor(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, investor.ErrNotFound
		}

		return nil, fmt.Errorf("getting investor: %w", err)
	}

	return inv, nil
}

func (s *Store) ListInvestors(ctx context.Context) ([]*investor.Investor, error) {
	query := `SELECT ` + selectInvestorColumns + ` FROM investors ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing investors: %w", err)
	}
	defer rows.Close()

	invs := []*investor.Investor{}

	for rows.Next() {
		inv, err := scanInvestor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning investor: %w", err)
		}

		invs = append(invs, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating investors: %w", err)
	}

	return invs, nil
}

// UpdateInvestor locks the investor row for the duration of apply, so patches
// serialize with ledger writes on the same investor. Balances other than the
// derived current balance are never written here.
func (s *Store) UpdateInvestor(ctx context.Context, id uuid.UUID, apply func(*investor.Investor) error) (*investor.Investor, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `SELECT ` + selectInvestorColumns + ` FROM investors WHERE id = $1 FOR UPDATE`

	inv, err := scanInvestor(dbTx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, investor.ErrNotFound
		}

		return nil, fmt.Errorf("locking investor: %w", err)
	}

	if err := apply(inv); err != nil {
		return nil, err
	}

	update := `
		UPDATE investors
		SET name = $1, account_type = $2, status = $3, investment_term = $4, roi = $5,
			date_joined = $6, date_payable = $7, current_balance = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`

	err = dbTx.QueryRowContext(ctx, update,
		inv.Name,
		inv.AccountType,
		inv.Status,
		inv.InvestmentTerm,
		inv.ROI,
		inv.DateJoined,
		inv.DatePayable,
		inv.CurrentBalance,
		inv.ID,
	).Scan(&inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating investor: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return inv, nil
}
