package ferry

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/ferry"
	"github.com/seaward/backoffice/internal/http/respond"
)

type Handler struct {
	svc *ferry.Service
}

func NewHandler(svc *ferry.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.createCustomer)
		r.Get("/", h.listCustomers)
		r.Get("/{id}", h.getCustomer)
		r.Put("/{id}", h.updateCustomer)
		r.Delete("/{id}", h.deleteCustomer)
		r.Get("/{id}/bookings", h.listBookings)
	})

	r.Route("/fare-types", func(r chi.Router) {
		r.Post("/", h.createFareType)
		r.Get("/", h.listFareTypes)
		r.Get("/{id}", h.getFareType)
		r.Put("/{id}", h.updateFareType)
		r.Delete("/{id}", h.deleteFareType)
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.createBooking)
		r.Get("/{id}", h.getBooking)
		r.Post("/{id}/cancel", h.cancelBooking)
	})
}

type customerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type customerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type fareTypeRequest struct {
	Kind ferry.FareKind  `json:"kind"`
	Name string          `json:"name"`
	Fare decimal.Decimal `json:"fare"`
}

type fareTypeResponse struct {
	ID        uuid.UUID      `json:"id"`
	Kind      ferry.FareKind `json:"kind"`
	Name      string         `json:"name"`
	Fare      respond.Amount `json:"fare"`
	CreatedAt time.Time      `json:"created_at"`
}

type bookingRequest struct {
	CustomerID      uuid.UUID         `json:"customer_id"`
	VehicleTypeID   *uuid.UUID        `json:"vehicle_type_id"`
	PassengerTypeID uuid.UUID         `json:"passenger_type_id"`
	Passengers      int               `json:"passengers"`
	Route           string            `json:"route"`
	TravelDate      respond.DateParam `json:"travel_date"`
}

type bookingResponse struct {
	ID              uuid.UUID           `json:"id"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	VehicleTypeID   *uuid.UUID          `json:"vehicle_type_id"`
	PassengerTypeID uuid.UUID           `json:"passenger_type_id"`
	Passengers      int                 `json:"passengers"`
	Route           string              `json:"route"`
	TravelDate      respond.Date        `json:"travel_date"`
	Total           respond.Amount      `json:"total"`
	Status          ferry.BookingStatus `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
}

func toCustomerResponse(c *ferry.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Phone: c.Phone, Email: c.Email, CreatedAt: c.CreatedAt}
}

func toFareTypeResponse(f *ferry.FareType) fareTypeResponse {
	return fareTypeResponse{ID: f.ID, Kind: f.Kind, Name: f.Name, Fare: respond.Amount(f.Fare), CreatedAt: f.CreatedAt}
}

func toBookingResponse(b *ferry.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		CustomerID:      b.CustomerID,
		VehicleTypeID:   b.VehicleTypeID,
		PassengerTypeID: b.PassengerTypeID,
		Passengers:      b.Passengers,
		Route:           b.Route,
		TravelDate:      respond.Date(b.TravelDate),
		Total:           respond.Amount(b.Total),
		Status:          b.Status,
		CreatedAt:       b.CreatedAt,
	}
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	c, err := h.svc.CreateCustomer(r.Context(), ferry.CustomerParams(req))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toCustomerResponse(c))
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCustomers(r.Context())
	if err != nil {
		respond.Internal(w, r, err)
		return
	}

	resp := make([]customerResponse, len(cs))
	for i, c := range cs {
		resp[i] = toCustomerResponse(c)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	c, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	c, err := h.svc.UpdateCustomer(r.Context(), id, ferry.CustomerParams(req))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	bs, err := h.svc.ListBookings(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]bookingResponse, len(bs))
	for i, b := range bs {
		resp[i] = toBookingResponse(b)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) createFareType(w http.ResponseWriter, r *http.Request) {
	var req fareTypeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	f, err := h.svc.CreateFareType(r.Context(), ferry.FareTypeParams(req))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toFareTypeResponse(f))
}

// listFareTypes accepts an optional ?kind=vehicle|passenger filter.
func (h *Handler) listFareTypes(w http.ResponseWriter, r *http.Request) {
	var kind *ferry.FareKind

	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, err := ferry.ParseFareKind(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}

		kind = &k
	}

	fs, err := h.svc.ListFareTypes(r.Context(), kind)
	if err != nil {
		respond.Internal(w, r, err)
		return
	}

	resp := make([]fareTypeResponse, len(fs))
	for i, f := range fs {
		resp[i] = toFareTypeResponse(f)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getFareType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	f, err := h.svc.GetFareType(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toFareTypeResponse(f))
}

func (h *Handler) updateFareType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req fareTypeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	f, err := h.svc.UpdateFareType(r.Context(), id, ferry.FareTypeParams(req))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toFareTypeResponse(f))
}

func (h *Handler) deleteFareType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteFareType(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), ferry.BookingParams{
		CustomerID:      req.CustomerID,
		VehicleTypeID:   req.VehicleTypeID,
		PassengerTypeID: req.PassengerTypeID,
		Passengers:      req.Passengers,
		Route:           req.Route,
		TravelDate:      time.Time(req.TravelDate),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	b, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	b, err := h.svc.CancelBooking(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toBookingResponse(b))
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
	case errors.Is(err, ferry.ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ferry.ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ferry.ErrInUse):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		respond.Internal(w, r, err)
	}
}
