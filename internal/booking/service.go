package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/mq"
	"github.com/antonminaichev/laundry-booking/internal/storage"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/types/payment"
	"github.com/antonminaichev/laundry-booking/internal/util/reference"
	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("invalid booking request")
	ErrForbidden         = errors.New("user mismatch")
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

const (
	DefaultUserLimit  = 10
	DefaultAdminLimit = 20
	maxLimit          = 100

	// orderNumberAttempts bounds retries when a generated order number collides.
	orderNumberAttempts = 3
	// referenceAttempts bounds retries when a cash reference collides.
	referenceAttempts = 3
)

// Initializer starts a hosted checkout.
type Initializer interface {
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
}

type Service struct {
	repo   storage.BookingRepository
	gw     Initializer
	events mq.Publisher
}

func NewService(repo storage.BookingRepository, gw Initializer, events mq.Publisher) *Service {
	if events == nil {
		events = mq.Nop{}
	}
	return &Service{repo: repo, gw: gw, events: events}
}

type Request struct {
	UserID              string              `json:"user_id"`
	PickupDate          string              `json:"pickup_date"`
	DeliveryDate        string              `json:"delivery_date"`
	TimeSlot            string              `json:"time_slot"`
	Address             string              `json:"address"`
	SpecialInstructions string              `json:"special_instructions"`
	PaymentMethod       string              `json:"payment_method"`
	Items               []booking.DraftItem `json:"items"`
	Email               string              `json:"user_email"`
}

type Redirect struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// OfflineConfirmation is returned for cash bookings, which are stored immediately.
type OfflineConfirmation struct {
	BookingID   string  `json:"booking_id"`
	OrderNumber string  `json:"order_number"`
	Reference   string  `json:"reference"`
	Total       float64 `json:"total"`
}

// Result holds exactly one of Redirect or Offline.
type Result struct {
	Redirect *Redirect
	Offline  *OfflineConfirmation
}

// Event is the payload of booking events on the bus.
type Event struct {
	BookingID     string                `json:"booking_id"`
	OrderNumber   string                `json:"order_number"`
	UserID        string                `json:"user_id"`
	Reference     string                `json:"reference"`
	Total         float64               `json:"total"`
	PaymentMethod string                `json:"payment_method"`
	BookingStatus booking.Status        `json:"booking_status"`
	PaymentStatus booking.PaymentStatus `json:"payment_status"`
}

func NewEvent(b *booking.Booking) Event {
	return Event{
		BookingID:     b.ID,
		OrderNumber:   b.OrderNumber,
		UserID:        b.UserID,
		Reference:     b.PaymentReference,
		Total:         b.Total,
		PaymentMethod: b.PaymentMethod,
		BookingStatus: b.BookingStatus,
		PaymentStatus: b.PaymentStatus,
	}
}

// Initiate validates the request and either starts a gateway checkout or,
// for cash, stores a pending booking right away. callerID is the authenticated
// profile; empty skips the ownership check.
func (s *Service) Initiate(ctx context.Context, callerID string, req Request) (*Result, error) {
	draft, method, err := buildDraft(req)
	if err != nil {
		return nil, err
	}
	if callerID != "" && callerID != draft.UserID {
		return nil, ErrForbidden
	}
	if !method.Online() {
		b, err := s.createOffline(ctx, draft)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, mq.KeyBookingCreated, b)
		return &Result{Offline: &OfflineConfirmation{
			BookingID:   b.ID,
			OrderNumber: b.OrderNumber,
			Reference:   b.PaymentReference,
			Total:       b.Total,
		}}, nil
	}

	ref := reference.Generate(reference.PrefixPayment)

	res, err := s.gw.Initialize(ctx, gateway.InitializeRequest{
		Amount:    draft.Total,
		Email:     req.Email,
		Reference: ref,
		Metadata:  map[string]any{"user_id": draft.UserID, "reference": ref},
		Draft:     &draft,
		Channels:  method.Channels(),
	})
	if err != nil {
		logger.Log.Error().Err(err).Str("reference", ref).Msg("payment initialization failed")
		return nil, err
	}
	logger.Log.Info().Str("reference", ref).Str("method", string(method)).Float64("total", draft.Total).Msg("payment initialized")

	out := &Redirect{AuthorizationURL: res.AuthorizationURL, Reference: res.Reference}
	if out.Reference == "" {
		out.Reference = ref
	}
	return &Result{Redirect: out}, nil
}

func buildDraft(req Request) (booking.Draft, payment.Method, error) {
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if req.PickupDate == "" {
		missing = append(missing, "pickup_date")
	}
	if req.DeliveryDate == "" {
		missing = append(missing, "delivery_date")
	}
	if strings.TrimSpace(req.Address) == "" {
		missing = append(missing, "address")
	}
	if len(req.Items) == 0 {
		missing = append(missing, "items")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "user_email")
	}
	if len(missing) > 0 {
		return booking.Draft{}, "", fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	method, ok := payment.ParseMethod(req.PaymentMethod)
	if !ok {
		return booking.Draft{}, "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.PaymentMethod)
	}
	pickup, err := parseDate(req.PickupDate)
	if err != nil {
		return booking.Draft{}, "", fmt.Errorf("%w: pickup_date: %v", ErrValidation, err)
	}
	delivery, err := parseDate(req.DeliveryDate)
	if err != nil {
		return booking.Draft{}, "", fmt.Errorf("%w: delivery_date: %v", ErrValidation, err)
	}
	if delivery.Before(pickup) {
		return booking.Draft{}, "", fmt.Errorf("%w: delivery_date is before pickup_date", ErrValidation)
	}

	for i, it := range req.Items {
		if strings.TrimSpace(it.Name) == "" {
			return booking.Draft{}, "", fmt.Errorf("%w: item %d has no name", ErrValidation, i)
		}
		if it.Quantity < 0 || it.Price < 0 {
			return booking.Draft{}, "", fmt.Errorf("%w: item %q has negative quantity or price", ErrValidation, it.Name)
		}
	}
	total := booking.ComputeTotal(req.Items)
	if total <= 0 {
		return booking.Draft{}, "", fmt.Errorf("%w: no items selected", ErrValidation)
	}

	return booking.Draft{
		Version:             booking.DraftVersion,
		UserID:              req.UserID,
		PickupDate:          pickup,
		DeliveryDate:        delivery,
		TimeSlot:            req.TimeSlot,
		Address:             strings.TrimSpace(req.Address),
		SpecialInstructions: req.SpecialInstructions,
		PaymentMethod:       string(method),
		Items:               req.Items,
		Total:               total,
	}, method, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

// createOffline stores a pending cash booking under a fresh reference,
// regenerating it when it collides with a stored one.
func (s *Service) createOffline(ctx context.Context, d booking.Draft) (*booking.Booking, error) {
	for attempt := 1; ; attempt++ {
		ref := reference.Generate(reference.PrefixCash)
		b, err := s.Materialize(ctx, d, ref, d.Total, booking.StatusPending, booking.PaymentPending)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) || attempt == referenceAttempts {
			return nil, err
		}
		logger.Log.Warn().Str("reference", ref).Msg("cash reference taken, regenerating")
	}
}

// Materialize stores the draft as a booking with its items and one payment row
// in a single transaction. total is the amount actually charged.
// Returns storage.ErrDuplicate if the reference was already stored.
func (s *Service) Materialize(
	ctx context.Context,
	d booking.Draft,
	ref string,
	total float64,
	bs booking.Status,
	ps booking.PaymentStatus,
) (*booking.Booking, error) {
	for attempt := 1; ; attempt++ {
		b, p := newRecords(d, ref, total, bs, ps, time.Now().UTC())
		err := s.repo.CreateBooking(ctx, b, p)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, storage.ErrOrderNumberTaken) || attempt == orderNumberAttempts {
			return nil, err
		}
		logger.Log.Warn().Str("reference", ref).Str("order_number", b.OrderNumber).Msg("order number taken, regenerating")
	}
}

func newRecords(
	d booking.Draft,
	ref string,
	total float64,
	bs booking.Status,
	ps booking.PaymentStatus,
	now time.Time,
) (*booking.Booking, *payment.Payment) {
	b := &booking.Booking{
		ID:                  uuid.NewString(),
		UserID:              d.UserID,
		OrderNumber:         reference.Generate(reference.PrefixOrder),
		PaymentReference:    ref,
		PickupDate:          d.PickupDate,
		DeliveryDate:        d.DeliveryDate,
		TimeSlot:            d.TimeSlot,
		Address:             d.Address,
		SpecialInstructions: d.SpecialInstructions,
		Total:               total,
		PaymentMethod:       d.PaymentMethod,
		PaymentStatus:       ps,
		BookingStatus:       bs,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, it := range d.Items {
		b.Items = append(b.Items, booking.Item{
			ID:        uuid.NewString(),
			BookingID: b.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Price:     float64(it.Quantity) * it.Price,
			CreatedAt: now,
		})
	}
	method, _ := payment.ParseMethod(d.PaymentMethod)
	p := &payment.Payment{
		ID:                   uuid.NewString(),
		BookingID:            b.ID,
		UserID:               d.UserID,
		Amount:               total,
		PaymentMethod:        method,
		PaymentStatus:        ps,
		TransactionReference: ref,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return b, p
}

func (s *Service) List(ctx context.Context, userID, filter string, page, limit int) ([]booking.Booking, booking.Pagination, error) {
	if userID == "" {
		return nil, booking.Pagination{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.list(ctx, booking.Filter{UserID: userID}, filter, page, limit, DefaultUserLimit)
}

func (s *Service) AdminList(ctx context.Context, filter, search string, page, limit int) ([]booking.Booking, booking.Pagination, error) {
	return s.list(ctx, booking.Filter{Search: strings.TrimSpace(search)}, filter, page, limit, DefaultAdminLimit)
}

func (s *Service) list(ctx context.Context, f booking.Filter, filter string, page, limit, defLimit int) ([]booking.Booking, booking.Pagination, error) {
	if filter != "" && filter != "all" {
		st, ok := booking.ParseStatus(filter)
		if !ok {
			return nil, booking.Pagination{}, fmt.Errorf("%w: unknown filter %q", ErrValidation, filter)
		}
		f.Status = st
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	f.Page, f.Limit = page, limit

	items, total, err := s.repo.ListBookings(ctx, f)
	if err != nil {
		return nil, booking.Pagination{}, err
	}
	if items == nil {
		items = []booking.Booking{}
	}
	return items, booking.NewPagination(page, limit, total), nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*booking.Booking, error) {
	to, ok := booking.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.BookingStatus.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.BookingStatus, to)
	}
	if err := s.repo.UpdateBookingStatus(ctx, id, b.BookingStatus, to); err != nil {
		return nil, mapUpdateErr(err)
	}
	b.BookingStatus = to
	s.publish(ctx, mq.KeyBookingStatusChanged, b)
	return b, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id, status string) (*booking.Booking, error) {
	to, ok := booking.ParsePaymentStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, status)
	}
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.PaymentStatus.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.PaymentStatus, to)
	}
	if err := s.repo.UpdatePaymentStatus(ctx, id, b.PaymentStatus, to); err != nil {
		return nil, mapUpdateErr(err)
	}
	b.PaymentStatus = to
	s.publish(ctx, mq.KeyBookingStatusChanged, b)
	return b, nil
}

func (s *Service) find(ctx context.Context, id string) (*booking.Booking, error) {
	b, err := s.repo.FindBookingByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}

func mapUpdateErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return err
}

func (s *Service) publish(ctx context.Context, key string, b *booking.Booking) {
	if err := s.events.PublishJSON(ctx, key, NewEvent(b)); err != nil {
		logger.Log.Warn().Err(err).Str("key", key).Str("booking_id", b.ID).Msg("publish event failed")
	}
}
