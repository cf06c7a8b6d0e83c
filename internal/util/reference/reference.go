package reference

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// PrefixPayment is sent to the gateway; PrefixCash never leaves the service,
// so offline bookings cannot take a reference a checkout is waiting on.
const (
	PrefixPayment = "PAY"
	PrefixCash    = "CSH"
	PrefixOrder   = "ORD"
)

// Generate returns <PREFIX>-<YYYYMMDD>-<4 random digits> for the current UTC date.
// Uniqueness is enforced by the storage layer, not here.
func Generate(prefix string) string {
	return format(prefix, time.Now().UTC(), rand.IntN(10000))
}

func format(prefix string, now time.Time, n int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), n%10000)
}
