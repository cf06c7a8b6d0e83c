package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DraftVersion is the current schema version written by EncodeDraft.
const DraftVersion = 1

// DraftMetadataKey is the gateway metadata key holding the encoded draft.
const DraftMetadataKey = "booking_draft"

var ErrDecode = errors.New("malformed booking draft")

// Draft is a booking that lives only inside gateway metadata until the payment is confirmed.
type Draft struct {
	Version             int         `json:"v"`
	UserID              string      `json:"user_id"`
	PickupDate          time.Time   `json:"pickup_date"`
	DeliveryDate        time.Time   `json:"delivery_date"`
	TimeSlot            string      `json:"time_slot,omitempty"`
	Address             string      `json:"address"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	PaymentMethod       string      `json:"payment_method"`
	Items               []DraftItem `json:"items"`
	Total               float64     `json:"total"`
}

type DraftItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// ComputeTotal returns the sum of quantity × unit price.
func ComputeTotal(items []DraftItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.Price
	}
	return total
}

// EncodeDraft serializes d into a JSON string meant to be nested as a value
// inside the gateway's own JSON metadata object.
func EncodeDraft(d Draft) (string, error) {
	if d.Version == 0 {
		d.Version = DraftVersion
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}
	return string(b), nil
}

func DecodeDraft(s string) (Draft, error) {
	var d Draft
	if s == "" {
		return d, fmt.Errorf("%w: empty", ErrDecode)
	}
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if d.Version != DraftVersion {
		return Draft{}, fmt.Errorf("%w: unsupported version %d", ErrDecode, d.Version)
	}
	if d.UserID == "" || len(d.Items) == 0 {
		return Draft{}, fmt.Errorf("%w: missing user or items", ErrDecode)
	}
	return d, nil
}
