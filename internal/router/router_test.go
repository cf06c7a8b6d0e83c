package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antonminaichev/laundry-booking/internal/booking"
	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/lock"
	"github.com/antonminaichev/laundry-booking/internal/middleware"
	"github.com/antonminaichev/laundry-booking/internal/mq"
	"github.com/antonminaichev/laundry-booking/internal/payment"
	"github.com/antonminaichev/laundry-booking/internal/storage/memory"
	bookingmodel "github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret     = "jwt-secret"
	paystackKey   = "sk_test_123"
	customerID    = "profile-42"
	customerEmail = "jane@example.com"
)

// fakeProvider records initialize calls the way the hosted gateway would receive them.
type fakeProvider struct {
	mu   sync.Mutex
	init map[string]any
}

func (p *fakeProvider) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+paystackKey, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/transaction/initialize":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			p.mu.Lock()
			p.init = body
			p.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{
				"status":  true,
				"message": "Authorization URL created",
				"data": map[string]any{
					"authorization_url": "https://checkout.example/" + body["reference"].(string),
					"access_code":       "ac",
					"reference":         body["reference"],
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

type app struct {
	router   http.Handler
	store    *memory.Storage
	events   *mq.Recorder
	provider *fakeProvider
}

func newApp(t *testing.T) *app {
	t.Helper()
	provider := &fakeProvider{}
	srv := httptest.NewServer(provider.handler(t))
	t.Cleanup(srv.Close)

	store := memory.New()
	events := &mq.Recorder{}
	gw := gateway.NewClient(srv.URL, paystackKey, "http://localhost:3000", "KES", 2*time.Second)

	bookingSvc := booking.NewService(store, gw, events)
	proc := payment.NewProcessor(bookingSvc, store, lock.NewLocalLocker(), events)

	r := NewRouter(
		booking.NewHandler(bookingSvc),
		payment.NewHandler(proc, gw),
		[]byte(jwtSecret),
		paystackKey,
		middleware.NewRateLimiter(100, 100),
	)
	return &app{router: r, store: store, events: events, provider: provider}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             role,
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func (a *app) do(t *testing.T, method, path, bearer string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestCardBookingEndToEnd(t *testing.T) {
	a := newApp(t)
	userToken := token(t, customerID, "customer")

	createBody, _ := json.Marshal(map[string]any{
		"user_id":        customerID,
		"pickup_date":    "2026-10-20",
		"delivery_date":  "2026-10-22",
		"time_slot":      "09:00-11:00",
		"address":        "12 Moi Avenue, Nairobi",
		"payment_method": "card",
		"user_email":     customerEmail,
		"items": []map[string]any{
			{"name": "Shirt", "quantity": 2, "price": 150},
			{"name": "Dress", "quantity": 1, "price": 250},
		},
	})
	rec := a.do(t, http.MethodPost, "/api/bookings/create", userToken, createBody, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		Success bool `json:"success"`
		Payment struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"payment"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, created.Success)
	ref := created.Payment.Reference
	assert.Regexp(t, `^PAY-\d{8}-\d{4}$`, ref)
	assert.Equal(t, "https://checkout.example/"+ref, created.Payment.AuthorizationURL)

	// what the provider received
	init := a.provider.init
	require.NotNil(t, init)
	assert.Equal(t, 55000.0, init["amount"])
	assert.Equal(t, "KES", init["currency"])
	assert.Equal(t, customerEmail, init["email"])
	assert.Equal(t, "http://localhost:3000/payment/callback", init["callback_url"])
	assert.Equal(t, []any{"card", "bank", "mobile_money"}, init["channels"])
	metadata := init["metadata"].(map[string]any)
	assert.Equal(t, customerID, metadata["user_id"])

	// nothing is stored before the charge is confirmed
	nb, _, _ := a.store.Counts()
	assert.Zero(t, nb)

	webhook, _ := json.Marshal(map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": ref,
			"amount":    55000,
			"status":    "success",
			"currency":  "KES",
			"metadata":  metadata,
		},
	})
	sig := gateway.ComputeSignature(webhook, paystackKey)

	for i := 0; i < 2; i++ {
		rec = a.do(t, http.MethodPost, "/api/payment/webhook", "", webhook, map[string]string{gateway.SignatureHeader: sig})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	nb, ni, np := a.store.Counts()
	assert.Equal(t, 1, nb)
	assert.Equal(t, 2, ni)
	assert.Equal(t, 1, np)

	pay, err := a.store.FindPaymentByReference(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, bookingmodel.PaymentCompleted, pay.PaymentStatus)
	assert.Equal(t, 550.0, pay.Amount)

	b, err := a.store.FindBookingByID(context.Background(), pay.BookingID)
	require.NoError(t, err)
	assert.Equal(t, 550.0, b.Total)
	assert.Equal(t, bookingmodel.StatusConfirmed, b.BookingStatus)
	assert.Equal(t, bookingmodel.PaymentCompleted, b.PaymentStatus)
	assert.Equal(t, customerID, b.UserID)
	assert.Equal(t, []string{mq.KeyBookingConfirmed}, a.events.Keys())

	// the customer sees it in their list
	rec = a.do(t, http.MethodGet, "/api/bookings?filter=confirmed", userToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), b.OrderNumber)

	// and an admin can move it forward
	adminToken := token(t, "admin-1", middleware.RoleAdmin)
	rec = a.do(t, http.MethodPatch, "/api/admin/bookings/"+b.ID+"/status", adminToken, []byte(`{"status":"in_progress"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	a := newApp(t)
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-1","amount":100}}`)

	tests := []struct {
		name   string
		header map[string]string
	}{
		{"missing", nil},
		{"wrong secret", map[string]string{gateway.SignatureHeader: gateway.ComputeSignature(body, "other")}},
		{"other body", map[string]string{gateway.SignatureHeader: gateway.ComputeSignature([]byte("{}"), paystackKey)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/api/payment/webhook", "", body, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	nb, _, _ := a.store.Counts()
	assert.Zero(t, nb)
	assert.Empty(t, a.events.Events)
}

func TestAuthAndRoles(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/api/bookings", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/bookings", token(t, customerID, "customer"), nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/bookings", token(t, "admin-1", middleware.RoleAdmin), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/payment/callback?reference=PAY-1&trxref=PAY-1&status=cancelled", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"state":"error"`))
}

func TestCashBookingStoredImmediately(t *testing.T) {
	a := newApp(t)
	body, _ := json.Marshal(map[string]any{
		"user_id":        customerID,
		"pickup_date":    "2026-10-20",
		"delivery_date":  "2026-10-20",
		"address":        "Kilimani",
		"payment_method": "cash",
		"user_email":     customerEmail,
		"items":          []map[string]any{{"name": "Duvet", "quantity": 1, "price": 800}},
	})
	rec := a.do(t, http.MethodPost, "/api/bookings/create", token(t, customerID, ""), body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, a.provider.init)

	nb, ni, np := a.store.Counts()
	assert.Equal(t, []int{1, 1, 1}, []int{nb, ni, np})
}
