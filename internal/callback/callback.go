package callback

import (
	"net/http"
	"net/url"
	"time"

	"github.com/antonminaichev/laundry-booking/internal/util/respond"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

const (
	RedirectTarget = "/dashboard"
	SuccessDelay   = 5 * time.Second
	PendingDelay   = 3 * time.Second
)

// State is what the payment return page shows. It never reflects stored
// booking state; only the webhook creates bookings.
type State struct {
	Status          Status `json:"state"`
	Message         string `json:"message"`
	Reference       string `json:"reference,omitempty"`
	RedirectTo      string `json:"redirect_to,omitempty"`
	RedirectAfterMS int64  `json:"redirect_after_ms,omitempty"`
}

func Resolve(q url.Values) State {
	ref, trxref := q.Get("reference"), q.Get("trxref")
	if ref == "" || trxref == "" {
		return State{Status: StatusError, Message: "Invalid payment reference", RedirectTo: RedirectTarget}
	}

	switch q.Get("status") {
	case "cancelled":
		return State{Status: StatusError, Message: "Payment was cancelled", Reference: ref, RedirectTo: RedirectTarget}
	case "success":
		return State{
			Status:          StatusSuccess,
			Message:         "Payment completed successfully! Your booking is being created...",
			Reference:       ref,
			RedirectTo:      RedirectTarget,
			RedirectAfterMS: SuccessDelay.Milliseconds(),
		}
	}
	return State{
		Status:          StatusPending,
		Message:         "Payment is being processed. You will receive a confirmation shortly.",
		Reference:       ref,
		RedirectTo:      RedirectTarget,
		RedirectAfterMS: PendingDelay.Milliseconds(),
	}
}

func Handler(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, Resolve(r.URL.Query()))
}
