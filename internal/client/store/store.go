package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/client"
	"github.com/seaward/backoffice/internal/database"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(s scanner) (*client.Client, error) {
	var c client.Client

	if err := s.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.PolicyNumber, &c.PolicyType, &c.Premium,
		&c.PolicyStart, &c.PolicyEnd, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &c, nil
}

const selectClientColumns = `
	id, name, email, phone, policy_number, policy_type, premium,
	policy_start, policy_end, created_at, updated_at
`

const insertClient = `
	INSERT INTO clients (name, email, phone, policy_number, policy_type, premium, policy_start, policy_end, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	RETURNING id, created_at
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insert(ctx context.Context, q querier, c *client.Client) error {
	err := q.QueryRowContext(ctx, insertClient,
		c.Name,
		c.Email,
		c.Phone,
		c.PolicyNumber,
		c.PolicyType,
		c.Premium,
		c.PolicyStart,
		c.PolicyEnd,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", client.ErrDuplicatePolicy, c.PolicyNumber)
		}

		return fmt.Errorf("creating client: %w", err)
	}

	return nil
}

func (s *Store) CreateClient(ctx context.Context, c *client.Client) error {
	return insert(ctx, s.db, c)
}

func (s *Store) CreateClients(ctx context.Context, cs []*client.Client) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, c := range cs {
		if err := insert(ctx, dbTx, c); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*client.Client, error) {
	query := `SELECT ` + selectClientColumns + ` FROM clients WHERE id = $1`

	c, err := scanClient(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, client.ErrNotFound
		}

		return nil, fmt.Errorf("getting client: %w", err)
	}

	return c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]*client.Client, error) {
	query := `SELECT ` + selectClientColumns + ` FROM clients ORDER BY name ASC`

	return s.list(ctx, query)
}

func (s *Store) ListDue(ctx context.Context, from, to time.Time) ([]*client.Client, error) {
	query := `SELECT ` + selectClientColumns + `
		FROM clients
		WHERE policy_end >= $1 AND policy_end <= $2
		ORDER BY policy_end ASC`

	return s.list(ctx, query, from, to)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*client.Client, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	cs := []*client.Client{}

	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning client: %w", err)
		}

		cs = append(cs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating clients: %w", err)
	}

	return cs, nil
}

func (s *Store) UpdateClient(ctx context.Context, id uuid.UUID, apply func(*client.Client) error) (*client.Client, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `SELECT ` + selectClientColumns + ` FROM clients WHERE id = $1 FOR UPDATE`

	c, err := scanClient(dbTx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, client.ErrNotFound
		}

		return nil, fmt.Errorf("locking client: %w", err)
	}

	if err := apply(c); err != nil {
		return nil, err
	}

	update := `
		UPDATE clients
		SET name = $1, email = $2, phone = $3, policy_number = $4, policy_type = $5,
			premium = $6, policy_start = $7, policy_end = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`

	err = dbTx.QueryRowContext(ctx, update,
		c.Name,
		c.Email,
		c.Phone,
		c.PolicyNumber,
		c.PolicyType,
		c.Premium,
		c.PolicyStart,
		c.PolicyEnd,
		c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", client.ErrDuplicatePolicy, c.PolicyNumber)
		}

		return nil, fmt.Errorf("updating client: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return c, nil
}

// DeleteClient locks the client so no document can be attached concurrently,
// collects the storage keys and deletes the row. Renewals and documents go
// with it through ON DELETE CASCADE.
func (s *Store) DeleteClient(ctx context.Context, id uuid.UUID) ([]string, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	var locked uuid.UUID
	if err := dbTx.QueryRowContext(ctx, `SELECT id FROM clients WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, client.ErrNotFound
		}

		return nil, fmt.Errorf("locking client: %w", err)
	}

	keys, err := documentKeys(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("deleting client: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return keys, nil
}

// documentKeys closes its rows before returning so the transaction's
// connection is free for the next statement.
func documentKeys(ctx context.Context, dbTx *sql.Tx, clientID uuid.UUID) ([]string, error) {
	rows, err := dbTx.QueryContext(ctx, `SELECT storage_key FROM client_documents WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing document keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning document key: %w", err)
		}

		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document keys: %w", err)
	}

	return keys, nil
}

func (s *Store) ListRenewals(ctx context.Context, clientID uuid.UUID) ([]*client.Renewal, error) {
	query := `
		SELECT id, client_id, previous_end, new_end, premium, renewed_at
		FROM client_renewals
		WHERE client_id = $1
		ORDER BY renewed_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing renewals: %w", err)
	}
	defer rows.Close()

	rs := []*client.Renewal{}

	for rows.Next() {
		var r client.Renewal
		if err := rows.Scan(&r.ID, &r.ClientID, &r.PreviousEnd, &r.NewEnd, &r.Premium, &r.RenewedAt); err != nil {
			return nil, fmt.Errorf("scanning renewal: %w", err)
		}

		rs = append(rs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating renewals: %w", err)
	}

	return rs, nil
}

func (s *Store) BeginRenewal(ctx context.Context) (client.RenewalTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &renewalTx{tx: dbTx}, nil
}

type renewalTx struct {
	tx *sql.Tx
}

func (r *renewalTx) LockClient(ctx context.Context, id uuid.UUID) (*client.Client, error) {
	query := `SELECT ` + selectClientColumns + ` FROM clients WHERE id = $1 FOR UPDATE`

	c, err := scanClient(r.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, client.ErrNotFound
		}

		return nil, fmt.Errorf("locking client: %w", err)
	}

	return c, nil
}

func (r *renewalTx) InsertRenewal(ctx context.Context, rn *client.Renewal) error {
	query := `
		INSERT INTO client_renewals (client_id, previous_end, new_end, premium, renewed_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, renewed_at
	`

	err := r.tx.QueryRowContext(ctx, query, rn.ClientID, rn.PreviousEnd, rn.NewEnd, rn.Premium).
		Scan(&rn.ID, &rn.RenewedAt)
	if err != nil {
		return fmt.Errorf("inserting renewal: %w", err)
	}

	return nil
}

func (r *renewalTx) UpdatePolicy(ctx context.Context, id uuid.UUID, end time.Time, premium decimal.Decimal) error {
	query := `UPDATE clients SET policy_end = $1, premium = $2, updated_at = NOW() WHERE id = $3`

	if _, err := r.tx.ExecContext(ctx, query, end, premium, id); err != nil {
		return fmt.Errorf("updating policy: %w", err)
	}

	return nil
}

func (r *renewalTx) Commit() error {
	return r.tx.Commit()
}

func (r *renewalTx) Rollback() error {
	return r.tx.Rollback()
}
