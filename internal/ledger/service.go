package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seaward/backoffice/internal/investor"
	"github.com/seaward/backoffice/internal/ledger/balance"
	"github.com/seaward/backoffice/internal/observability"
)

var tracer = otel.Tracer("github.com/seaward/backoffice/internal/ledger")

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	BeginRecord(ctx context.Context) (RecordTx, error)
	ListTransactions(ctx context.Context, investorID uuid.UUID) ([]*Transaction, error)
	// DeleteInvestor removes the investor's transactions and then the investor
	// in one database transaction.
	DeleteInvestor(ctx context.Context, investorID uuid.UUID) error
}

// RecordTx is one atomic unit of a ledger write. LockInvestor must be called
// first; it holds the investor exclusively until Commit or Rollback.
type RecordTx interface {
	LockInvestor(ctx context.Context, investorID uuid.UUID) (decimal.Decimal, error)
	Totals(ctx context.Context, investorID uuid.UUID) (balance.Totals, error)
	InsertTransaction(ctx context.Context, tx *Transaction) error
	UpdateBalances(ctx context.Context, investorID uuid.UUID, res balance.Result) error
	Commit() error
	Rollback() error
}

// Cache bumps the investor snapshot generation so readers skip older entries.
type Cache interface {
	Incr(ctx context.Context, key string) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Service struct {
	repo   Repository
	cache  Cache
	events Publisher
}

func NewService(repo Repository, cache Cache, events Publisher) *Service {
	return &Service{repo: repo, cache: cache, events: events}
}

// RecordTransaction validates the request, then locks the investor, derives
// the new balances from the log and persists the transaction together with the
// updated snapshot. Nothing is written when any step fails.
func (s *Service) RecordTransaction(ctx context.Context, investorID uuid.UUID, typ Type, amount decimal.Decimal) (res balance.Result, err error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordTransaction")
	defer span.End()

	span.SetAttributes(
		attribute.String("investor_id", investorID.String()),
		attribute.String("transaction_type", string(typ)),
		attribute.String("amount", amount.String()),
	)

	start := time.Now()
	defer func() {
		outcome := outcomeOf(err)
		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		observability.LedgerTransactions.WithLabelValues(typeLabel(typ), outcome).Inc()
		observability.LedgerRecordDuration.Observe(time.Since(start).Seconds())
	}()

	if _, err := ParseType(string(typ)); err != nil {
		return balance.Result{}, err
	}

	amount = balance.Round(amount)
	if !amount.IsPositive() {
		return balance.Result{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	if !balance.InRange(amount) {
		return balance.Result{}, fmt.Errorf("%w: amount must not exceed %s", ErrInvalidInput, balance.MaxAmount)
	}

	rtx, err := s.repo.BeginRecord(ctx)
	if err != nil {
		return balance.Result{}, fmt.Errorf("begin record: %w", err)
	}
	defer rtx.Rollback()

	roi, err := rtx.LockInvestor(ctx, investorID)
	if err != nil {
		return balance.Result{}, err
	}

	totals, err := rtx.Totals(ctx, investorID)
	if err != nil {
		return balance.Result{}, err
	}

	res, err = ComputeBalances(totals, roi, typ, amount)
	if err != nil {
		return balance.Result{}, err
	}

	if !balance.InRange(res.AccountBalance) || !balance.InRange(res.CurrentBalance) {
		return balance.Result{}, fmt.Errorf("%w: resulting balance exceeds %s", ErrInvalidInput, balance.MaxAmount)
	}

	tx := &Transaction{
		InvestorID: investorID,
		Type:       typ,
		Amount:     amount,
	}
	if err := rtx.InsertTransaction(ctx, tx); err != nil {
		return balance.Result{}, err
	}

	if err := rtx.UpdateBalances(ctx, investorID, res); err != nil {
		return balance.Result{}, err
	}

	if err := rtx.Commit(); err != nil {
		return balance.Result{}, fmt.Errorf("commit record: %w", err)
	}

	slog.Info("transaction recorded",
		"investor_id", investorID,
		"transaction_id", tx.ID,
		"type", typ,
		"amount", amount,
		"account_balance", res.AccountBalance,
		"current_balance", res.CurrentBalance)

	s.afterCommit(ctx, Event{
		Kind:           EventTransactionRecorded,
		InvestorID:     investorID,
		TransactionID:  &tx.ID,
		Type:           typ,
		Amount:         &amount,
		AccountBalance: &res.AccountBalance,
		CurrentBalance: &res.CurrentBalance,
		OccurredAt:     tx.Date,
	})

	return res, nil
}

// DeleteInvestor removes the investor and its whole transaction log.
func (s *Service) DeleteInvestor(ctx context.Context, investorID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "ledger.DeleteInvestor")
	defer span.End()

	span.SetAttributes(attribute.String("investor_id", investorID.String()))

	if err := s.repo.DeleteInvestor(ctx, investorID); err != nil {
		if !errors.Is(err, investor.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return err
	}

	slog.Info("investor deleted", "investor_id", investorID)

	s.afterCommit(ctx, Event{
		Kind:       EventInvestorDeleted,
		InvestorID: investorID,
		OccurredAt: time.Now().UTC(),
	})

	return nil
}

// ListTransactions returns the investor's log, most recent first. An unknown
// investor has an empty log.
func (s *Service) ListTransactions(ctx context.Context, investorID uuid.UUID) ([]*Transaction, error) {
	ctx, span := tracer.Start(ctx, "ledger.ListTransactions")
	defer span.End()

	txs, err := s.repo.ListTransactions(ctx, investorID)
	if err != nil {
		return nil, err
	}

	if txs == nil {
		txs = []*Transaction{}
	}

	return txs, nil
}

// afterCommit retires the cached snapshot and publishes the event. Failures
// are logged only; the write is already durable.
func (s *Service) afterCommit(ctx context.Context, ev Event) {
	if _, err := s.cache.Incr(ctx, investor.GenerationKey(ev.InvestorID)); err != nil {
		slog.Warn("failed to retire investor snapshot", "investor_id", ev.InvestorID, "error", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to encode ledger event", "event", ev.Kind, "error", err)
		return
	}

	if err := s.events.Publish(ctx, ev.InvestorID.String(), payload); err != nil {
		slog.Warn("failed to publish ledger event", "event", ev.Kind, "investor_id", ev.InvestorID, "error", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, investor.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func typeLabel(typ Type) string {
	if _, err := ParseType(string(typ)); err != nil {
		return "unknown"
	}

	return string(typ)
}
