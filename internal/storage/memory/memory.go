package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antonminaichev/laundry-booking/internal/storage"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/types/payment"
)

// Storage keeps everything in process memory and enforces the same unique
// keys as the Postgres schema.
type Storage struct {
	mu       sync.RWMutex
	bookings map[string]booking.Booking
	byRef    map[string]string
	byOrder  map[string]string
	payments map[string]payment.Payment
}

func New() *Storage {
	return &Storage{
		bookings: make(map[string]booking.Booking),
		byRef:    make(map[string]string),
		byOrder:  make(map[string]string),
		payments: make(map[string]payment.Payment),
	}
}

func (s *Storage) CreateBooking(ctx context.Context, b *booking.Booking, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRef[b.PaymentReference]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.payments[p.TransactionReference]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.byOrder[b.OrderNumber]; ok {
		return storage.ErrOrderNumberTaken
	}

	cp := *b
	cp.Items = append([]booking.Item(nil), b.Items...)
	s.bookings[b.ID] = cp
	s.byRef[b.PaymentReference] = b.ID
	s.byOrder[b.OrderNumber] = b.ID
	s.payments[p.TransactionReference] = *p
	return nil
}

func (s *Storage) FindBookingByID(ctx context.Context, id string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	b.Items = append([]booking.Item(nil), b.Items...)
	return &b, nil
}

func (s *Storage) ListBookings(ctx context.Context, f booking.Filter) ([]booking.Booking, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var out []booking.Booking
	for _, b := range s.bookings {
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if f.Status != "" && b.BookingStatus != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.OrderNumber), search) &&
			!strings.Contains(strings.ToLower(b.Address), search) {
			continue
		}
		b.Items = append([]booking.Item(nil), b.Items...)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := len(out)
	from := min(f.Offset(), total)
	to := total
	if f.Limit > 0 {
		to = min(from+f.Limit, total)
	}
	return out[from:to], total, nil
}

func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, from, to booking.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return storage.ErrNotFound
	}
	if b.BookingStatus != from {
		return storage.ErrConflict
	}
	b.BookingStatus = to
	b.UpdatedAt = time.Now().UTC()
	s.bookings[id] = b
	return nil
}

func (s *Storage) UpdatePaymentStatus(ctx context.Context, id string, from, to booking.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return storage.ErrNotFound
	}
	if b.PaymentStatus != from {
		return storage.ErrConflict
	}
	now := time.Now().UTC()
	b.PaymentStatus = to
	b.UpdatedAt = now
	s.bookings[id] = b
	for ref, p := range s.payments {
		if p.BookingID == id {
			p.PaymentStatus = to
			p.UpdatedAt = now
			s.payments[ref] = p
		}
	}
	return nil
}

func (s *Storage) FindPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[reference]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// Counts returns the number of bookings, items and payments held.
func (s *Storage) Counts() (bookings, items, payments int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		items += len(b.Items)
	}
	return len(s.bookings), items, len(s.payments)
}

func (s *Storage) Ping(ctx context.Context) error { return nil }

func (s *Storage) Close() error { return nil }
