package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/middleware"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/types/payment"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, h http.HandlerFunc, userID string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/bookings/create", bytes.NewReader(b))
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCreateHandler(t *testing.T) {
	cashRepo := &mockRepo{createBookingFn: func(ctx context.Context, b *booking.Booking, p *payment.Payment) error { return nil }}

	tests := []struct {
		name     string
		gw       *fakeGateway
		modify   func(r *Request)
		userID   string
		status   int
		contains string
	}{
		{"card", &fakeGateway{}, func(r *Request) {}, "profile-1", http.StatusOK, "authorization_url"},
		{"cash", &fakeGateway{}, func(r *Request) { r.PaymentMethod = "cash" }, "profile-1", http.StatusCreated, "order_number"},
		{"missing field", &fakeGateway{}, func(r *Request) { r.Address = "" }, "", http.StatusBadRequest, "Missing required fields"},
		{"forbidden", &fakeGateway{}, func(r *Request) {}, "intruder", http.StatusForbidden, "user mismatch"},
		{"gateway down", &fakeGateway{err: &gateway.Error{StatusCode: 502}}, func(r *Request) {}, "", http.StatusInternalServerError, "Failed to initialize payment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(NewService(cashRepo, tt.gw, nil))
			req := validRequest()
			tt.modify(&req)

			rec := postJSON(t, h.Create, tt.userID, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, strings.ToLower(rec.Body.String()), strings.ToLower(tt.contains))
		})
	}
}

func TestCreateHandlerBadJSON(t *testing.T) {
	h := NewHandler(NewService(&mockRepo{}, &fakeGateway{}, nil))
	req := httptest.NewRequest(http.MethodPost, "/api/bookings/create", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListHandler(t *testing.T) {
	repo := &mockRepo{listBookingsFn: func(ctx context.Context, f booking.Filter) ([]booking.Booking, int, error) {
		assert.Equal(t, "profile-1", f.UserID)
		return []booking.Booking{{ID: "b1", OrderNumber: "ORD-20261019-0001", Items: []booking.Item{{Name: "Shirt"}}}}, 1, nil
	}}
	h := NewHandler(NewService(repo, &fakeGateway{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/bookings?filter=all&page=1", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "profile-1"))
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success    bool               `json:"success"`
		Bookings   []booking.Booking  `json:"bookings"`
		Pagination booking.Pagination `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Bookings, 1)
	assert.Len(t, resp.Bookings[0].Items, 1)
	assert.Equal(t, booking.Pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1}, resp.Pagination)
}

func TestUpdateStatusHandler(t *testing.T) {
	repo := &mockRepo{
		findBookingByIDFn: func(ctx context.Context, id string) (*booking.Booking, error) {
			return &booking.Booking{ID: id, BookingStatus: booking.StatusConfirmed}, nil
		},
		updateBookingStatusFn: func(ctx context.Context, id string, from, to booking.Status) error { return nil },
	}
	h := NewHandler(NewService(repo, &fakeGateway{}, nil))
	r := chi.NewRouter()
	r.Patch("/api/admin/bookings/{id}/status", h.UpdateStatus)

	tests := []struct {
		body   string
		status int
	}{
		{`{"status":"in_progress"}`, http.StatusOK},
		{`{"status":"pending"}`, http.StatusConflict},
		{`{"status":"nope"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/bookings/b1/status", strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, tt.body)
	}
}
