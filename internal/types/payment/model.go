package payment

import (
	"time"

	"github.com/antonminaichev/laundry-booking/internal/types/booking"
)

type Method string

const (
	MethodCard        Method = "card"
	MethodMobileMoney Method = "mobile-money"
	MethodCash        Method = "cash"
)

// Gateway channel identifiers.
const (
	ChannelCard        = "card"
	ChannelBank        = "bank"
	ChannelMobileMoney = "mobile_money"
)

func ParseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case MethodCard, MethodMobileMoney, MethodCash:
		return m, true
	case "":
		return MethodCard, true
	}
	return "", false
}

// Online reports whether the method is charged through the gateway.
func (m Method) Online() bool {
	return m == MethodCard || m == MethodMobileMoney
}

// Channels returns the gateway channels offered for the method.
func (m Method) Channels() []string {
	if m == MethodMobileMoney {
		return []string{ChannelMobileMoney}
	}
	return []string{ChannelCard, ChannelBank, ChannelMobileMoney}
}

type Payment struct {
	ID                   string                `db:"id" json:"id"`
	BookingID            string                `db:"booking_id" json:"booking_id"`
	UserID               string                `db:"user_id" json:"user_id"`
	Amount               float64               `db:"amount" json:"amount"`
	PaymentMethod        Method                `db:"payment_method" json:"payment_method"`
	PaymentStatus        booking.PaymentStatus `db:"payment_status" json:"payment_status"`
	TransactionReference string                `db:"transaction_reference" json:"transaction_reference"`
	CreatedAt            time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time             `db:"updated_at" json:"updated_at"`
}
