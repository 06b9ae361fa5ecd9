package investor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/seaward/backoffice/internal/ledger/balance"
)

var tracer = otel.Tracer("github.com/seaward/backoffice/internal/investor")

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=investor
type Repository interface {
	CreateInvestor(ctx context.Context, inv *Investor) error
	GetInvestor(ctx context.Context, id uuid.UUID) (*Investor, error)
	ListInvestors(ctx context.Context) ([]*Investor, error)
	// UpdateInvestor loads the row under a lock, calls apply and persists the
	// result in the same database transaction.
	UpdateInvestor(ctx context.Context, id uuid.UUID, apply func(*Investor) error) (*Investor, error)
}

// Cache stores JSON investor snapshots under generation-versioned keys. Any
// Get error is treated as a miss. Counter reads a missing key as zero.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
}

func NewService(repo Repository, cache Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

type CreateParams struct {
	Name           string
	AccountType    string
	InvestmentTerm string
	ROI            decimal.Decimal
	DateJoined     *time.Time
	DatePayable    *time.Time
}

// Patch is a sparse update. A nil field is left untouched; a non-nil field is
// applied even when it holds a zero value.
type Patch struct {
	Name             *string
	AccountType      *string
	Status           *Status
	InvestmentTerm   *string
	ROI              *decimal.Decimal
	DateJoined       *time.Time
	DatePayable      *time.Time
	ClearDatePayable bool
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Investor, error) {
	ctx, span := tracer.Start(ctx, "investor.Create")
	defer span.End()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if err := validateROI(params.ROI); err != nil {
		return nil, err
	}

	joined := today()
	if params.DateJoined != nil {
		joined = dateOnly(*params.DateJoined)
	}

	inv := &Investor{
		Name:           name,
		AccountType:    params.AccountType,
		Status:         StatusActive,
		InvestmentTerm: params.InvestmentTerm,
		ROI:            params.ROI,
		DateJoined:     joined,
		AccountBalance: decimal.Zero,
		CurrentBalance: decimal.Zero,
	}

	if params.DatePayable != nil {
		payable := dateOnly(*params.DatePayable)
		inv.DatePayable = &payable
	}

	if err := s.repo.CreateInvestor(ctx, inv); err != nil {
		return nil, err
	}

	slog.Info("investor created", "investor_id", inv.ID, "account_type", inv.AccountType)

	return inv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Investor, error) {
	ctx, span := tracer.Start(ctx, "investor.Get")
	defer span.End()

	span.SetAttributes(attribute.String("investor_id", id.String()))

	// The generation is read before the row. A write that commits after the
	// row was read bumps it, so the snapshot stored below is never served.
	gen, err := s.cache.Counter(ctx, GenerationKey(id))
	if err != nil {
		slog.Warn("investor snapshot cache unavailable", "investor_id", id, "error", err)
		return s.repo.GetInvestor(ctx, id)
	}

	key := SnapshotKey(id, gen)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached Investor
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}

		slog.Warn("discarding unreadable investor snapshot", "investor_id", id)
	}

	inv, err := s.repo.GetInvestor(ctx, id)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, inv)

	return inv, nil
}

func (s *Service) List(ctx context.Context) ([]*Investor, error) {
	ctx, span := tracer.Start(ctx, "investor.List")
	defer span.End()

	return s.repo.ListInvestors(ctx)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Investor, error) {
	ctx, span := tracer.Start(ctx, "investor.Update")
	defer span.End()

	if err := patch.validate(); err != nil {
		return nil, err
	}

	inv, err := s.repo.UpdateInvestor(ctx, id, func(inv *Investor) error {
		patch.apply(inv)

		if patch.ROI != nil {
			current := balance.Current(inv.AccountBalance, inv.ROI)
			if !balance.InRange(current) {
				return fmt.Errorf("%w: current balance at roi %s exceeds %s", ErrInvalidInput, inv.ROI, balance.MaxAmount)
			}

			inv.CurrentBalance = current
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.cache.Incr(ctx, GenerationKey(id)); err != nil {
		slog.Warn("failed to retire investor snapshot", "investor_id", id, "error", err)
	}

	return inv, nil
}

func (s *Service) store(ctx context.Context, key string, inv *Investor) {
	raw, err := json.Marshal(inv)
	if err != nil {
		slog.Warn("failed to encode investor snapshot", "investor_id", inv.ID, "error", err)
		return
	}

	if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
		slog.Warn("failed to cache investor snapshot", "investor_id", inv.ID, "error", err)
	}
}

func (p Patch) validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}

	if p.Status != nil && strings.TrimSpace(string(*p.Status)) == "" {
		return fmt.Errorf("%w: status must not be empty", ErrInvalidInput)
	}

	if p.ROI != nil {
		if err := validateROI(*p.ROI); err != nil {
			return err
		}
	}

	if p.ClearDatePayable && p.DatePayable != nil {
		return fmt.Errorf("%w: date_payable cannot be set and cleared", ErrInvalidInput)
	}

	return nil
}

func (p Patch) apply(inv *Investor) {
	if p.Name != nil {
		inv.Name = strings.TrimSpace(*p.Name)
	}

	if p.AccountType != nil {
		inv.AccountType = *p.AccountType
	}

	if p.Status != nil {
		inv.Status = *p.Status
	}

	if p.InvestmentTerm != nil {
		inv.InvestmentTerm = *p.InvestmentTerm
	}

	if p.ROI != nil {
		inv.ROI = *p.ROI
	}

	if p.DateJoined != nil {
		inv.DateJoined = dateOnly(*p.DateJoined)
	}

	switch {
	case p.ClearDatePayable:
		inv.DatePayable = nil
	case p.DatePayable != nil:
		payable := dateOnly(*p.DatePayable)
		inv.DatePayable = &payable
	}
}

func validateROI(roi decimal.Decimal) error {
	if roi.IsNegative() {
		return fmt.Errorf("%w: roi must not be negative", ErrInvalidInput)
	}

	if roi.GreaterThan(MaxROI) {
		return fmt.Errorf("%w: roi must not exceed %s", ErrInvalidInput, MaxROI)
	}

	return nil
}

func today() time.Time {
	return dateOnly(time.Now())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
