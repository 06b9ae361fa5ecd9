package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxRenewalMonths = 60

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=client
type Repository interface {
	CreateClient(ctx context.Context, c *Client) error
	// CreateClients inserts all clients in one database transaction.
	CreateClients(ctx context.Context, cs []*Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*Client, error)
	ListClients(ctx context.Context) ([]*Client, error)
	ListDue(ctx context.Context, from, to time.Time) ([]*Client, error)
	UpdateClient(ctx context.Context, id uuid.UUID, apply func(*Client) error) (*Client, error)
	// DeleteClient removes the client with its renewals and documents and
	// returns the storage keys of the removed documents.
	DeleteClient(ctx context.Context, id uuid.UUID) ([]string, error)
	ListRenewals(ctx context.Context, clientID uuid.UUID) ([]*Renewal, error)

	CreateDocument(ctx context.Context, d *Document) error
	ListDocuments(ctx context.Context, clientID uuid.UUID) ([]*Document, error)
	GetDocument(ctx context.Context, clientID, id uuid.UUID) (*Document, error)
	// DeleteDocument removes the row and returns it.
	DeleteDocument(ctx context.Context, clientID, id uuid.UUID) (*Document, error)

	BeginRenewal(ctx context.Context) (RenewalTx, error)
}

type RenewalTx interface {
	LockClient(ctx context.Context, id uuid.UUID) (*Client, error)
	InsertRenewal(ctx context.Context, r *Renewal) error
	UpdatePolicy(ctx context.Context, id uuid.UUID, end time.Time, premium decimal.Decimal) error
	Commit() error
	Rollback() error
}

// BlobStore keeps document bodies outside the database.
type BlobStore interface {
	// Put stores the body under key and returns the object's URL.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// PresignGet returns a short-lived download URL for key.
	PresignGet(ctx context.Context, key string) (string, error)
}

type Service struct {
	repo  Repository
	blobs BlobStore
	now   func() time.Time
}

func NewService(repo Repository, blobs BlobStore) *Service {
	return &Service{repo: repo, blobs: blobs, now: time.Now}
}

type CreateParams struct {
	Name         string
	Email        string
	Phone        string
	PolicyNumber string
	PolicyType   string
	Premium      decimal.Decimal
	PolicyStart  *time.Time
	PolicyEnd    *time.Time
}

// Patch is a sparse update; nil fields are left untouched.
type Patch struct {
	Name         *string
	Email        *string
	Phone        *string
	PolicyNumber *string
	PolicyType   *string
	Premium      *decimal.Decimal
	PolicyStart  *time.Time
	PolicyEnd    *time.Time
}

type RenewParams struct {
	Months  int
	Premium *decimal.Decimal
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Client, error) {
	c, err := s.build(params)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateClient(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) build(params CreateParams) (*Client, error) {
	start := dateOnly(s.now())
	if params.PolicyStart != nil {
		start = dateOnly(*params.PolicyStart)
	}

	end := start.AddDate(1, 0, 0)
	if params.PolicyEnd != nil {
		end = dateOnly(*params.PolicyEnd)
	}

	c := &Client{
		Name:         strings.TrimSpace(params.Name),
		Email:        strings.TrimSpace(params.Email),
		Phone:        strings.TrimSpace(params.Phone),
		PolicyNumber: strings.TrimSpace(params.PolicyNumber),
		PolicyType:   strings.TrimSpace(params.PolicyType),
		Premium:      params.Premium.Round(2),
		PolicyStart:  start,
		PolicyEnd:    end,
	}

	if err := validate(c); err != nil {
		return nil, err
	}

	return c, nil
}

func validate(c *Client) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case c.PolicyNumber == "":
		return fmt.Errorf("%w: policy number is required", ErrInvalidInput)
	case c.Premium.IsNegative():
		return fmt.Errorf("%w: premium must not be negative", ErrInvalidInput)
	case c.PolicyEnd.Before(c.PolicyStart):
		return fmt.Errorf("%w: policy end is before policy start", ErrInvalidInput)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.repo.GetClient(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Client, error) {
	return s.repo.ListClients(ctx)
}

// ListDue returns clients whose policy ends between today and today+within.
func (s *Service) ListDue(ctx context.Context, within time.Duration) ([]*Client, error) {
	if within < 0 {
		return nil, fmt.Errorf("%w: window must not be negative", ErrInvalidInput)
	}

	from := dateOnly(s.now())

	return s.repo.ListDue(ctx, from, from.Add(within))
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Client, error) {
	return s.repo.UpdateClient(ctx, id, func(c *Client) error {
		if patch.Name != nil {
			c.Name = strings.TrimSpace(*patch.Name)
		}

		if patch.Email != nil {
			c.Email = strings.TrimSpace(*patch.Email)
		}

		if patch.Phone != nil {
			c.Phone = strings.TrimSpace(*patch.Phone)
		}

		if patch.PolicyNumber != nil {
			c.PolicyNumber = strings.TrimSpace(*patch.PolicyNumber)
		}

		if patch.PolicyType != nil {
			c.PolicyType = strings.TrimSpace(*patch.PolicyType)
		}

		if patch.Premium != nil {
			c.Premium = patch.Premium.Round(2)
		}

		if patch.PolicyStart != nil {
			c.PolicyStart = dateOnly(*patch.PolicyStart)
		}

		if patch.PolicyEnd != nil {
			c.PolicyEnd = dateOnly(*patch.PolicyEnd)
		}

		return validate(c)
	})
}

// Delete removes the client, its renewal history and its documents.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	keys, err := s.repo.DeleteClient(ctx, id)
	if err != nil {
		return err
	}

	for _, key := range keys {
		s.removeObject(ctx, key)
	}

	return nil
}

func (s *Service) Renewals(ctx context.Context, clientID uuid.UUID) ([]*Renewal, error) {
	return s.repo.ListRenewals(ctx, clientID)
}

// Renew extends the policy by the given number of months, counted from the
// later of the current end date and today.
func (s *Service) Renew(ctx context.Context, clientID uuid.UUID, params RenewParams) (*Renewal, error) {
	if params.Months < 1 || params.Months > maxRenewalMonths {
		return nil, fmt.Errorf("%w: months must be between 1 and %d", ErrInvalidInput, maxRenewalMonths)
	}

	if params.Premium != nil && params.Premium.IsNegative() {
		return nil, fmt.Errorf("%w: premium must not be negative", ErrInvalidInput)
	}

	rtx, err := s.repo.BeginRenewal(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin renewal: %w", err)
	}
	defer rtx.Rollback()

	c, err := rtx.LockClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	base := c.PolicyEnd
	if today := dateOnly(s.now()); today.After(base) {
		base = today
	}

	premium := c.Premium
	if params.Premium != nil {
		premium = params.Premium.Round(2)
	}

	r := &Renewal{
		ClientID:    clientID,
		PreviousEnd: c.PolicyEnd,
		NewEnd:      base.AddDate(0, params.Months, 0),
		Premium:     premium,
	}

	if err := rtx.InsertRenewal(ctx, r); err != nil {
		return nil, err
	}

	if err := rtx.UpdatePolicy(ctx, clientID, r.NewEnd, premium); err != nil {
		return nil, err
	}

	if err := rtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit renewal: %w", err)
	}

	slog.Info("policy renewed", "client_id", clientID, "previous_end", r.PreviousEnd, "new_end", r.NewEnd)

	return r, nil
}

type ImportResult struct {
	Imported []*Client
	Skipped  int
}

// Import creates clients from a CSV export. Rows that fail to parse are
// skipped; rows that parse but fail validation abort the whole import.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, skipped, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	cs := make([]*Client, 0, len(rows))

	for i, params := range rows {
		c, err := s.build(params)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		cs = append(cs, c)
	}

	if len(cs) == 0 {
		return &ImportResult{Imported: cs, Skipped: skipped}, nil
	}

	if err := s.repo.CreateClients(ctx, cs); err != nil {
		return nil, err
	}

	slog.Info("clients imported", "count", len(cs), "skipped", skipped)

	return &ImportResult{Imported: cs, Skipped: skipped}, nil
}
