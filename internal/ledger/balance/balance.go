// Package balance derives investor balances from transaction totals.
//
// Every function is pure. Results are rounded to two fractional digits, the
// precision the balances are persisted with.
package balance

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept on every persisted amount.
const Places = 2

var ErrInsufficientFunds = errors.New("insufficient funds")

// MaxAmount is the largest value a NUMERIC(15,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

var hundred = decimal.NewFromInt(100)

// Totals are the per-type sums over an investor's prior transactions.
type Totals struct {
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
}

// Principal is the net of deposits and withdrawals.
func (t Totals) Principal() decimal.Decimal {
	return t.Deposits.Sub(t.Withdrawals)
}

// Result holds the balances after applying a transaction.
type Result struct {
	AccountBalance decimal.Decimal
	CurrentBalance decimal.Decimal
}

// InRange reports whether d can be persisted without overflowing.
func InRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxAmount)
}

func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Current applies simple interest at roi percent to the account balance.
func Current(accountBalance, roi decimal.Decimal) decimal.Decimal {
	interest := accountBalance.Mul(roi).Div(hundred)
	return Round(accountBalance.Add(interest))
}

func Deposit(t Totals, roi, amount decimal.Decimal) Result {
	account := Round(t.Principal().Add(amount))

	return Result{
		AccountBalance: account,
		CurrentBalance: Current(account, roi),
	}
}

// Withdraw fails with ErrInsufficientFunds when amount exceeds the principal.
// Withdrawing the whole principal is allowed.
func Withdraw(t Totals, roi, amount decimal.Decimal) (Result, error) {
	principal := t.Principal()
	if amount.GreaterThan(principal) {
		return Result{}, ErrInsufficientFunds
	}

	account := Round(principal.Sub(amount))

	return Result{
		AccountBalance: account,
		CurrentBalance: Current(account, roi),
	}, nil
}
