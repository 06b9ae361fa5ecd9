package investor

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("investor not found")
	ErrInvalidInput = errors.New("invalid investor input")
)

// Status is a label set at creation; nothing transitions it algorithmically.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Investor is an account holder. AccountBalance and CurrentBalance are a cache
// of what the ledger derives from the transaction log and ROI; they are only
// written by the ledger or when the ROI changes.
type Investor struct {
	ID             uuid.UUID
	Name           string
	AccountType    string
	Status         Status
	InvestmentTerm string
	ROI            decimal.Decimal // percentage
	DateJoined     time.Time
	DatePayable    *time.Time
	AccountBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// MaxROI is the largest percentage a NUMERIC(7,4) column holds.
var MaxROI = decimal.RequireFromString("999.9999")

// GenerationKey holds a counter bumped on every write to the investor. Cached
// snapshots are keyed by it, so an entry filled from a read that raced a write
// is never served once the write has bumped the counter.
func GenerationKey(id uuid.UUID) string {
	return "investor:" + id.String() + ":gen"
}

func SnapshotKey(id uuid.UUID, generation int64) string {
	return "investor:" + id.String() + ":v" + strconv.FormatInt(generation, 10)
}
