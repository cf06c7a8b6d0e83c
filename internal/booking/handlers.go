package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/middleware"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/util/respond"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createResponse struct {
	Success bool                 `json:"success"`
	Payment *Redirect            `json:"payment,omitempty"`
	Booking *OfflineConfirmation `json:"booking,omitempty"`
	Message string               `json:"message"`
}

type listResponse struct {
	Success    bool               `json:"success"`
	Bookings   []booking.Booking  `json:"bookings"`
	Pagination booking.Pagination `json:"pagination"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Initiate(r.Context(), middleware.UserIDFromContext(r.Context()), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrForbidden):
			respond.Error(w, http.StatusForbidden, err.Error())
		case errors.Is(err, gateway.ErrGateway):
			respond.Error(w, http.StatusInternalServerError, "Failed to initialize payment")
		default:
			logger.Log.Error().Err(err).Msg("booking creation failed")
			respond.Error(w, http.StatusInternalServerError, "Failed to create booking")
		}
		return
	}
	if res.Offline != nil {
		respond.JSON(w, http.StatusCreated, createResponse{
			Success: true,
			Booking: res.Offline,
			Message: "Booking created successfully (cash payment)",
		})
		return
	}
	respond.JSON(w, http.StatusOK, createResponse{
		Success: true,
		Payment: res.Redirect,
		Message: "Payment initialized successfully",
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(q.Get("page"), q.Get("limit"))
	items, p, err := h.svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), q.Get("filter"), page, limit)
	h.writeList(w, items, p, err)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(q.Get("page"), q.Get("limit"))
	items, p, err := h.svc.AdminList(r.Context(), q.Get("filter"), q.Get("search"), page, limit)
	h.writeList(w, items, p, err)
}

func (h *Handler) writeList(w http.ResponseWriter, items []booking.Booking, p booking.Pagination, err error) {
	if err != nil {
		if errors.Is(err, ErrValidation) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Log.Error().Err(err).Msg("list bookings failed")
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch bookings")
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{Success: true, Bookings: items, Pagination: p})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.svc.UpdateStatus)
}

func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.svc.UpdatePaymentStatus)
}

func (h *Handler) updateStatus(
	w http.ResponseWriter,
	r *http.Request,
	update func(ctx context.Context, id, status string) (*booking.Booking, error),
) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b, err := update(r.Context(), chi.URLParam(r, "id"), req.Status)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, map[string]any{"success": true, "booking": b})
	case errors.Is(err, ErrValidation):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		logger.Log.Error().Err(err).Msg("update status failed")
		respond.Error(w, http.StatusInternalServerError, "Failed to update booking")
	}
}

func pageParams(pageStr, limitStr string) (int, int) {
	page, _ := strconv.Atoi(pageStr)
	limit, _ := strconv.Atoi(limitStr)
	return page, limit
}
