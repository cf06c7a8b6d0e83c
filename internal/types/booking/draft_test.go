package booking

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDraft() Draft {
	return Draft{
		Version:       DraftVersion,
		UserID:        "user-1",
		PickupDate:    time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC),
		DeliveryDate:  time.Date(2026, 10, 22, 9, 0, 0, 0, time.UTC),
		TimeSlot:      "09:00-11:00",
		Address:       "Kenyatta Ave 12, Nairobi",
		PaymentMethod: "card",
		Items: []DraftItem{
			{Name: "Shirt", Quantity: 2, Price: 150},
			{Name: "Dress", Quantity: 1, Price: 250},
		},
		Total: 550,
	}
}

func TestDraftRoundTrip(t *testing.T) {
	d := sampleDraft()
	s, err := EncodeDraft(d)
	require.NoError(t, err)

	got, err := DecodeDraft(s)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestEncodeDraftSetsVersion(t *testing.T) {
	d := sampleDraft()
	d.Version = 0
	s, err := EncodeDraft(d)
	require.NoError(t, err)

	got, err := DecodeDraft(s)
	require.NoError(t, err)
	assert.Equal(t, DraftVersion, got.Version)
}

// The draft travels as a string value inside the gateway metadata object.
func TestDraftSurvivesNestedMetadata(t *testing.T) {
	d := sampleDraft()
	s, err := EncodeDraft(d)
	require.NoError(t, err)

	outer, err := json.Marshal(map[string]any{"user_id": d.UserID, DraftMetadataKey: s})
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(outer, &meta))
	inner, ok := meta[DraftMetadataKey].(string)
	require.True(t, ok, "draft must stay a JSON string inside metadata")

	got, err := DecodeDraft(inner)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestDecodeDraftErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"malformed json", `{"v":1,"user_id":`},
		{"unknown version", `{"v":7,"user_id":"u","items":[{"name":"a","quantity":1,"price":1}]}`},
		{"missing version", `{"user_id":"u","items":[{"name":"a","quantity":1,"price":1}]}`},
		{"missing items", `{"v":1,"user_id":"u"}`},
		{"missing user", `{"v":1,"items":[{"name":"a","quantity":1,"price":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDraft(tt.input)
			assert.True(t, errors.Is(err, ErrDecode), "got %v", err)
		})
	}
}

func TestComputeTotal(t *testing.T) {
	assert.Equal(t, 550.0, ComputeTotal(sampleDraft().Items))
	assert.Equal(t, 0.0, ComputeTotal(nil))
	assert.Equal(t, 0.0, ComputeTotal([]DraftItem{{Name: "Sock", Quantity: 0, Price: 40}}))
}
