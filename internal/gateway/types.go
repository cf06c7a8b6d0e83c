package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/antonminaichev/laundry-booking/internal/types/booking"
)

var ErrGateway = errors.New("payment gateway error")

// Error is returned when the provider cannot be reached or answers with a failure.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway: status %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool { return target == ErrGateway }

func (e *Error) Unwrap() error { return e.Err }

type envelope[T any] struct {
	Status  bool      `json:"status"`
	Message string    `json:"message"`
	Data    T         `json:"data"`
	Meta    *ListMeta `json:"meta,omitempty"`
}

type InitializeRequest struct {
	Amount    float64
	Email     string
	Reference string
	Metadata  map[string]any
	Draft     *booking.Draft
	Channels  []string
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type initializeBody struct {
	Amount      int64          `json:"amount"`
	Email       string         `json:"email"`
	Reference   string         `json:"reference"`
	Currency    string         `json:"currency"`
	CallbackURL string         `json:"callback_url"`
	Channels    []string       `json:"channels"`
	Metadata    map[string]any `json:"metadata"`
}

type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Transaction is the provider's view of a charge. Amount is in minor units.
type Transaction struct {
	ID              int64           `json:"id"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Status          string          `json:"status"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          string          `json:"paid_at"`
	CreatedAt       string          `json:"created_at"`
	Channel         string          `json:"channel"`
	Currency        string          `json:"currency"`
	Customer        Customer        `json:"customer"`
	Metadata        json.RawMessage `json:"metadata"`
}

const TransactionSuccess = "success"

// Metadata is the part of transaction metadata this service writes.
type Metadata struct {
	UserID    string `json:"user_id"`
	Reference string `json:"reference"`
	Draft     string `json:"booking_draft"`
}

// ParseMetadata tolerates the provider sending metadata as null or an empty string.
func (t Transaction) ParseMetadata() (Metadata, error) {
	var m Metadata
	raw := t.Metadata
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: metadata: %v", booking.ErrDecode, err)
	}
	return m, nil
}

type ListMeta struct {
	Total     int `json:"total"`
	Skipped   int `json:"skipped"`
	PerPage   int `json:"perPage"`
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
}

type TransactionList struct {
	Transactions []Transaction `json:"data"`
	Meta         ListMeta      `json:"meta"`
}

func ToMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}

func FromMinor(minor int64) float64 {
	return float64(minor) / 100
}
