package booking

import "time"

type Booking struct {
	ID                  string        `db:"id" json:"id"`
	UserID              string        `db:"user_id" json:"user_id"`
	OrderNumber         string        `db:"order_number" json:"order_number"`
	PaymentReference    string        `db:"payment_reference" json:"payment_reference"`
	PickupDate          time.Time     `db:"pickup_date" json:"pickup_date"`
	DeliveryDate        time.Time     `db:"delivery_date" json:"delivery_date"`
	TimeSlot            string        `db:"time_slot" json:"time_slot"`
	Address             string        `db:"address" json:"address"`
	SpecialInstructions string        `db:"special_instructions" json:"special_instructions"`
	Total               float64       `db:"total" json:"total"`
	PaymentMethod       string        `db:"payment_method" json:"payment_method"`
	PaymentStatus       PaymentStatus `db:"payment_status" json:"payment_status"`
	BookingStatus       Status        `db:"booking_status" json:"booking_status"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
	Items               []Item        `db:"-" json:"booking_items"`
}

// Item is one product line. Price holds the line total, UnitPrice the per-piece price.
type Item struct {
	ID        string    `db:"id" json:"id"`
	BookingID string    `db:"booking_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UnitPrice float64   `db:"unit_price" json:"unit_price"`
	Price     float64   `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Filter narrows booking listings. An empty Status means all statuses.
type Filter struct {
	UserID string
	Status Status
	Search string
	Page   int
	Limit  int
}

func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = (total + limit - 1) / limit
	}
	return p
}
