package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/http/respond"
	"github.com/seaward/backoffice/internal/investor"
	"github.com/seaward/backoffice/internal/ledger"
)

type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/process", h.process)
	r.Get("/{id}", h.list)
}

type processRequest struct {
	InvestorID      string          `json:"investor_id"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
}

type processResponse struct {
	Message        string         `json:"message"`
	AccountBalance respond.Amount `json:"account_balance"`
	CurrentBalance respond.Amount `json:"current_balance"`
}

type transactionResponse struct {
	TransactionDate time.Time      `json:"transaction_date"`
	TransactionType ledger.Type    `json:"transaction_type"`
	Amount          respond.Amount `json:"amount"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	investorID, err := uuid.Parse(req.InvestorID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid investor_id")
		return
	}

	res, err := h.svc.RecordTransaction(r.Context(), investorID, ledger.Type(req.TransactionType), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, processResponse{
		Message:        "Transaction processed successfully",
		AccountBalance: respond.Amount(res.AccountBalance),
		CurrentBalance: respond.Amount(res.CurrentBalance),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	txs, err := h.svc.ListTransactions(r.Context(), id)
	if err != nil {
		respond.Internal(w, r, err)
		return
	}

	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = transactionResponse{
			TransactionDate: tx.Date,
			TransactionType: tx.Type,
			Amount:          respond.Amount(tx.Amount),
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respond.Error(w, http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, investor.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "investor not found")
	default:
		respond.Internal(w, r, err)
	}
}
