package storage

import (
	"context"
	"errors"

	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/types/payment"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate means the payment reference was already materialized.
	ErrDuplicate = errors.New("payment reference already processed")
	// ErrOrderNumberTaken means the generated order number collided; retry with a new one.
	ErrOrderNumberTaken = errors.New("order number already taken")
	// ErrConflict means the row changed status since it was read.
	ErrConflict = errors.New("status changed concurrently")
)

// BookingRepository stores bookings with their items.
type BookingRepository interface {
	// CreateBooking writes the booking, its items and the payment row atomically.
	CreateBooking(ctx context.Context, b *booking.Booking, p *payment.Payment) error
	FindBookingByID(ctx context.Context, id string) (*booking.Booking, error)
	ListBookings(ctx context.Context, f booking.Filter) ([]booking.Booking, int, error)
	UpdateBookingStatus(ctx context.Context, id string, from, to booking.Status) error
	UpdatePaymentStatus(ctx context.Context, id string, from, to booking.PaymentStatus) error
}

// PaymentRepository looks up payments.
type PaymentRepository interface {
	FindPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error)
}

// Storage combines all repositories.
type Storage interface {
	BookingRepository
	PaymentRepository

	// connection management
	Ping(ctx context.Context) error
	Close() error
}
