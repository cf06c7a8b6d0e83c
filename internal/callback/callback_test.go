package callback

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		status  Status
		delayMS int64
		message string
	}{
		{"no reference", "trxref=PAY-1&status=success", StatusError, 0, "Invalid payment reference"},
		{"no trxref", "reference=PAY-1", StatusError, 0, "Invalid payment reference"},
		{"cancelled", "reference=PAY-1&trxref=PAY-1&status=cancelled", StatusError, 0, "Payment was cancelled"},
		{"success", "reference=PAY-1&trxref=PAY-1&status=success", StatusSuccess, 5000, ""},
		{"no status", "reference=PAY-1&trxref=PAY-1", StatusPending, 3000, ""},
		{"unknown status", "reference=PAY-1&trxref=PAY-1&status=weird", StatusPending, 3000, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			st := Resolve(q)
			assert.Equal(t, tt.status, st.Status)
			assert.Equal(t, tt.delayMS, st.RedirectAfterMS)
			assert.Equal(t, RedirectTarget, st.RedirectTo)
			if tt.message != "" {
				assert.Equal(t, tt.message, st.Message)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(rec, httptest.NewRequest(http.MethodGet, "/api/payment/callback?reference=PAY-1&trxref=PAY-1&status=success", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st State
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, "PAY-1", st.Reference)
}
