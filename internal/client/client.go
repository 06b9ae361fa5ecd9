package client

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("client not found")
	ErrInvalidInput    = errors.New("invalid client input")
	ErrDuplicatePolicy = errors.New("policy number already exists")

	ErrDocumentNotFound = errors.New("document not found")
)

// MaxDocumentSize bounds a single uploaded document.
const MaxDocumentSize = 10 << 20

// Client is an insurance policy holder.
type Client struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Phone        string
	PolicyNumber string
	PolicyType   string
	Premium      decimal.Decimal
	PolicyStart  time.Time
	PolicyEnd    time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Renewal records one extension of a client's policy.
type Renewal struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	PreviousEnd time.Time
	NewEnd      time.Time
	Premium     decimal.Decimal
	RenewedAt   time.Time
}

// Document is a file attached to a client. The body lives in object storage
// under Key; the row keeps what is needed to list and fetch it.
type Document struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	Name        string
	ContentType string
	Size        int64
	Key         string
	URL         string
	UploadedAt  time.Time
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
