package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/util/respond"
	"github.com/go-chi/chi/v5"
)

// Gateway is the subset of the provider client used by the HTTP handlers.
type Gateway interface {
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*gateway.Transaction, error)
	GetTransaction(ctx context.Context, reference string) (*gateway.Transaction, error)
	ListTransactions(ctx context.Context, page, perPage int) (*gateway.TransactionList, error)
}

type Handler struct {
	proc *Processor
	gw   Gateway
}

func NewHandler(proc *Processor, gw Gateway) *Handler {
	return &Handler{proc: proc, gw: gw}
}

type initializeRequest struct {
	Amount      float64        `json:"amount"`
	Email       string         `json:"email"`
	Reference   string         `json:"reference"`
	Metadata    map[string]any `json:"metadata"`
	BookingData *booking.Draft `json:"bookingData"`
	Channels    []string       `json:"channels"`
}

type verifyRequest struct {
	Reference string `json:"reference"`
}

type providerResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Webhook must sit behind the signature middleware; the body is trusted here.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	// signed payloads that do not parse are acknowledged without writes
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		logger.Log.Error().Err(err).Int("size", len(body)).Msg("malformed webhook payload")
		respond.JSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	err = h.proc.Dispatch(r.Context(), ev)
	if !Acknowledged(err) {
		respond.Error(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// Initialize is a generic passthrough to the provider.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 || req.Email == "" || req.Reference == "" || req.Metadata == nil || req.BookingData == nil {
		respond.Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	res, err := h.gw.Initialize(r.Context(), gateway.InitializeRequest{
		Amount:    req.Amount,
		Email:     req.Email,
		Reference: req.Reference,
		Metadata:  req.Metadata,
		Draft:     req.BookingData,
		Channels:  req.Channels,
	})
	if err != nil {
		logger.Log.Error().Err(err).Str("reference", req.Reference).Msg("payment initialization failed")
		respond.Error(w, http.StatusInternalServerError, "Failed to initialize payment")
		return
	}
	respond.JSON(w, http.StatusOK, providerResponse{Status: true, Message: "Authorization URL created", Data: res})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		respond.Error(w, http.StatusBadRequest, "Missing reference")
		return
	}
	tx, err := h.gw.Verify(r.Context(), req.Reference)
	if err != nil {
		h.gatewayError(w, err, req.Reference, "Failed to verify payment")
		return
	}
	respond.JSON(w, http.StatusOK, providerResponse{Status: true, Message: "Verification successful", Data: tx})
}

func (h *Handler) Transaction(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	tx, err := h.gw.GetTransaction(r.Context(), ref)
	if err != nil {
		h.gatewayError(w, err, ref, "Failed to fetch transaction")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "transaction": tx})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	list, err := h.gw.ListTransactions(r.Context(), page, perPage)
	if err != nil {
		logger.Log.Error().Err(err).Msg("list transactions failed")
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": list.Transactions,
		"meta":         list.Meta,
	})
}

func (h *Handler) gatewayError(w http.ResponseWriter, err error, ref, msg string) {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound {
		respond.Error(w, http.StatusNotFound, gwErr.Message)
		return
	}
	logger.Log.Error().Err(err).Str("reference", ref).Msg(msg)
	respond.Error(w, http.StatusInternalServerError, msg)
}
