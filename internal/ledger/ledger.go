package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/ledger/balance"
)

var (
	ErrInvalidInput      = errors.New("invalid transaction input")
	ErrInsufficientFunds = balance.ErrInsufficientFunds
)

// Type is the closed set of ledger movements.
type Type string

const (
	TypeDeposit    Type = "Deposit"
	TypeWithdrawal Type = "Withdrawal"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeDeposit, TypeWithdrawal:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, s)
	}
}

// Transaction is an immutable log entry owned by one investor.
type Transaction struct {
	ID         uuid.UUID
	InvestorID uuid.UUID
	Type       Type
	Amount     decimal.Decimal
	Date       time.Time
}

// ComputeBalances applies a new transaction of the given type and amount on
// top of the prior totals.
func ComputeBalances(totals balance.Totals, roi decimal.Decimal, typ Type, amount decimal.Decimal) (balance.Result, error) {
	switch typ {
	case TypeDeposit:
		return balance.Deposit(totals, roi, amount), nil
	case TypeWithdrawal:
		return balance.Withdraw(totals, roi, amount)
	default:
		return balance.Result{}, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, typ)
	}
}

// Event is published after a ledger write commits.
type Event struct {
	Kind           string           `json:"event"`
	InvestorID     uuid.UUID        `json:"investor_id"`
	TransactionID  *uuid.UUID       `json:"transaction_id,omitempty"`
	Type           Type             `json:"transaction_type,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	AccountBalance *decimal.Decimal `json:"account_balance,omitempty"`
	CurrentBalance *decimal.Decimal `json:"current_balance,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

const (
	EventTransactionRecorded = "transaction.recorded"
	EventInvestorDeleted     = "investor.deleted"
)
