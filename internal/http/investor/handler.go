package investor

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
	svc    *investor.Service
	ledger *ledger.Service
}

// NewHandler wires investor CRUD. Deletes go through the ledger so the
// transaction log is removed with the account.
func NewHandler(svc *investor.Service, ledgerSvc *ledger.Service) *Handler {
	return &Handler{svc: svc, ledger: ledgerSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createRequest struct {
	Name           string             `json:"name"`
	AccountType    string             `json:"account_type"`
	InvestmentTerm string             `json:"investment_term"`
	ROI            decimal.Decimal    `json:"roi"`
	DateJoined     *respond.DateParam `json:"date_joined"`
	DatePayable    *respond.DateParam `json:"date_payable"`
}

type updateRequest struct {
	Name             *string            `json:"name"`
	AccountType      *string            `json:"account_type"`
	Status           *investor.Status   `json:"status"`
	InvestmentTerm   *string            `json:"investment_term"`
	ROI              *decimal.Decimal   `json:"roi"`
	DateJoined       *respond.DateParam `json:"date_joined"`
	DatePayable      *respond.DateParam `json:"date_payable"`
	ClearDatePayable bool               `json:"clear_date_payable"`
}

type investorResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	AccountType    string          `json:"account_type"`
	Status         investor.Status `json:"status"`
	InvestmentTerm string          `json:"investment_term"`
	ROI            string          `json:"roi"`
	DateJoined     respond.Date    `json:"date_joined"`
	DatePayable    *respond.Date   `json:"date_payable"`
	AccountBalance respond.Amount  `json:"account_balance"`
	CurrentBalance respond.Amount  `json:"current_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at"`
}

func toResponse(inv *investor.Investor) investorResponse {
	resp := investorResponse{
		ID:             inv.ID,
		Name:           inv.Name,
		AccountType:    inv.AccountType,
		Status:         inv.Status,
		InvestmentTerm: inv.InvestmentTerm,
		ROI:            inv.ROI.String(),
		DateJoined:     respond.Date(inv.DateJoined),
		AccountBalance: respond.Amount(inv.AccountBalance),
		CurrentBalance: respond.Amount(inv.CurrentBalance),
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}

	if inv.DatePayable != nil {
		resp.DatePayable = new(respond.Date(*inv.DatePayable))
	}

	return resp
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	inv, err := h.svc.Create(r.Context(), investor.CreateParams{
		Name:           req.Name,
		AccountType:    req.AccountType,
		InvestmentTerm: req.InvestmentTerm,
		ROI:            req.ROI,
		DateJoined:     req.DateJoined.Time(),
		DatePayable:    req.DatePayable.Time(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	invs, err := h.svc.List(r.Context())
	if err != nil {
		respond.Internal(w, r, err)
		return
	}

	resp := make([]investorResponse, len(invs))
	for i, inv := range invs {
		resp[i] = toResponse(inv)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	inv, err := h.svc.Update(r.Context(), id, investor.Patch{
		Name:             req.Name,
		AccountType:      req.AccountType,
		Status:           req.Status,
		InvestmentTerm:   req.InvestmentTerm,
		ROI:              req.ROI,
		DateJoined:       req.DateJoined.Time(),
		DatePayable:      req.DatePayable.Time(),
		ClearDatePayable: req.ClearDatePayable,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.ledger.DeleteInvestor(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"message": "Investor deleted successfully"})
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, investor.ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, investor.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "investor not found")
	default:
		respond.Internal(w, r, err)
	}
}
