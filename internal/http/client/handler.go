package client

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/blob"
	"github.com/seaward/backoffice/internal/client"
	"github.com/seaward/backoffice/internal/http/respond"
)

const (
	defaultDueDays = 30
	maxImportSize  = 10 << 20

	// maxFormOverhead covers multipart boundaries and headers around a file.
	maxFormOverhead = 1 << 20
)

type Handler struct {
	svc *client.Service
}

func NewHandler(svc *client.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/due", h.due)
	r.Post("/import", h.importCSV)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/renew", h.renew)
	r.Get("/{id}/renewals", h.renewals)
	r.Post("/{id}/documents", h.uploadDocument)
	r.Get("/{id}/documents", h.documents)
	r.Get("/{id}/documents/{docID}", h.downloadDocument)
	r.Delete("/{id}/documents/{docID}", h.deleteDocument)
}

type createRequest struct {
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	Phone        string             `json:"phone"`
	PolicyNumber string             `json:"policy_number"`
	PolicyType   string             `json:"policy_type"`
	Premium      decimal.Decimal    `json:"premium"`
	PolicyStart  *respond.DateParam `json:"policy_start"`
	PolicyEnd    *respond.DateParam `json:"policy_end"`
}

type updateRequest struct {
	Name         *string            `json:"name"`
	Email        *string            `json:"email"`
	Phone        *string            `json:"phone"`
	PolicyNumber *string            `json:"policy_number"`
	PolicyType   *string            `json:"policy_type"`
	Premium      *decimal.Decimal   `json:"premium"`
	PolicyStart  *respond.DateParam `json:"policy_start"`
	PolicyEnd    *respond.DateParam `json:"policy_end"`
}

type renewRequest struct {
	Months  int              `json:"months"`
	Premium *decimal.Decimal `json:"premium"`
}

type clientResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	PolicyNumber string         `json:"policy_number"`
	PolicyType   string         `json:"policy_type"`
	Premium      respond.Amount `json:"premium"`
	PolicyStart  respond.Date   `json:"policy_start"`
	PolicyEnd    respond.Date   `json:"policy_end"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at"`
}

type renewalResponse struct {
	ID          uuid.UUID      `json:"id"`
	ClientID    uuid.UUID      `json:"client_id"`
	PreviousEnd respond.Date   `json:"previous_end"`
	NewEnd      respond.Date   `json:"new_end"`
	Premium     respond.Amount `json:"premium"`
	RenewedAt   time.Time      `json:"renewed_at"`
}

type documentResponse struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"client_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type importResponse struct {
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Clients  []clientResponse `json:"clients"`
}

func toResponse(c *client.Client) clientResponse {
	return clientResponse{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		PolicyNumber: c.PolicyNumber,
		PolicyType:   c.PolicyType,
		Premium:      respond.Amount(c.Premium),
		PolicyStart:  respond.Date(c.PolicyStart),
		PolicyEnd:    respond.Date(c.PolicyEnd),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toResponses(cs []*client.Client) []clientResponse {
	resp := make([]clientResponse, len(cs))
	for i, c := range cs {
		resp[i] = toResponse(c)
	}

	return resp
}

func toRenewalResponse(r *client.Renewal) renewalResponse {
	return renewalResponse{
		ID:          r.ID,
		ClientID:    r.ClientID,
		PreviousEnd: respond.Date(r.PreviousEnd),
		NewEnd:      respond.Date(r.NewEnd),
		Premium:     respond.Amount(r.Premium),
		RenewedAt:   r.RenewedAt,
	}
}

func toDocumentResponse(d *client.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		ClientID:    d.ClientID,
		Name:        d.Name,
		ContentType: d.ContentType,
		Size:        d.Size,
		URL:         d.URL,
		UploadedAt:  d.UploadedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	c, err := h.svc.Create(r.Context(), client.CreateParams{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PolicyNumber: req.PolicyNumber,
		PolicyType:   req.PolicyType,
		Premium:      req.Premium,
		PolicyStart:  req.PolicyStart.Time(),
		PolicyEnd:    req.PolicyEnd.Time(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.List(r.Context())
	if err != nil {
		respond.Internal(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponses(cs))
}

// due lists policies ending within ?within_days= (default 30) of today.
func (h *Handler) due(w http.ResponseWriter, r *http.Request) {
	days := defaultDueDays

	if raw := r.URL.Query().Get("within_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "within_days must be an integer")
			return
		}

		days = n
	}

	cs, err := h.svc.ListDue(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponses(cs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(c))
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

	c, err := h.svc.Update(r.Context(), id, client.Patch{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PolicyNumber: req.PolicyNumber,
		PolicyType:   req.PolicyType,
		Premium:      req.Premium,
		PolicyStart:  req.PolicyStart.Time(),
		PolicyEnd:    req.PolicyEnd.Time(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req renewRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rn, err := h.svc.Renew(r.Context(), id, client.RenewParams{Months: req.Months, Premium: req.Premium})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toRenewalResponse(rn))
}

func (h *Handler) renewals(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	rs, err := h.svc.Renewals(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]renewalResponse, len(rs))
	for i, rn := range rs {
		resp[i] = toRenewalResponse(rn)
	}

	respond.JSON(w, http.StatusOK, resp)
}

// importCSV accepts either a multipart form with a "file" field or a raw
// text/csv body.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	var src io.Reader

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			respond.Error(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		src = file
	} else {
		src = http.MaxBytesReader(w, r.Body, maxImportSize)
	}

	result, err := h.svc.Import(r.Context(), src)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, importResponse{
		Imported: len(result.Imported),
		Skipped:  result.Skipped,
		Clients:  toResponses(result.Imported),
	})
}

// uploadDocument takes a multipart form with a "file" field.
func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		respond.Error(w, http.StatusBadRequest, "expected a multipart form")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, client.MaxDocumentSize+maxFormOverhead)
	if err := r.ParseMultipartForm(client.MaxDocumentSize); err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	doc, err := h.svc.UploadDocument(r.Context(), id, client.UploadParams{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) documents(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	docs, err := h.svc.Documents(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]documentResponse, len(docs))
	for i, d := range docs {
		resp[i] = toDocumentResponse(d)
	}

	respond.JSON(w, http.StatusOK, resp)
}

// downloadDocument redirects to a short-lived presigned URL.
func (h *Handler) downloadDocument(w http.ResponseWriter, r *http.Request) {
	id, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	url, err := h.svc.DocumentURL(r.Context(), id, docID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), id, docID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func documentParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, ok := idParam(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	docID, err := uuid.Parse(chi.URLParam(r, "docID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid document id")
		return uuid.Nil, uuid.Nil, false
	}

	return id, docID, true
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
	case errors.Is(err, client.ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, client.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "client not found")
	case errors.Is(err, client.ErrDocumentNotFound):
		respond.Error(w, http.StatusNotFound, "document not found")
	case errors.Is(err, blob.ErrNotConfigured):
		respond.Error(w, http.StatusServiceUnavailable, "document storage is not configured")
	case errors.Is(err, client.ErrDuplicatePolicy):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		respond.Internal(w, r, err)
	}
}
