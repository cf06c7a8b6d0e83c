package payment

import (
	"context"
	"errors"
	"fmt"

	bookingsvc "github.com/antonminaichev/laundry-booking/internal/booking"
	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/lock"
	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/mq"
	"github.com/antonminaichev/laundry-booking/internal/storage"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
)

// Webhook event types.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

// Event is the webhook envelope sent by the provider.
type Event struct {
	Event string              `json:"event"`
	Data  gateway.Transaction `json:"data"`
}

// ErrReferenceConflict means the reference is stored for a different payment
// than the charge being confirmed. It is not acknowledged, so the provider retries.
var ErrReferenceConflict = errors.New("reference stored for another payment")

type Materializer interface {
	Materialize(
		ctx context.Context,
		d booking.Draft,
		ref string,
		total float64,
		bs booking.Status,
		ps booking.PaymentStatus,
	) (*booking.Booking, error)
}

type Processor struct {
	bookings Materializer
	payments storage.PaymentRepository
	locker   lock.Locker
	events   mq.Publisher
}

func NewProcessor(
	bookings Materializer,
	payments storage.PaymentRepository,
	locker lock.Locker,
	events mq.Publisher,
) *Processor {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if events == nil {
		events = mq.Nop{}
	}
	return &Processor{bookings: bookings, payments: payments, locker: locker, events: events}
}

// Dispatch routes a verified event. booking.ErrDecode and storage.ErrDuplicate
// mean the event must be acknowledged without retry; ErrReferenceConflict is not.
func (p *Processor) Dispatch(ctx context.Context, ev Event) error {
	log := logger.Log.With().Str("event", ev.Event).Str("reference", ev.Data.Reference).Logger()

	switch ev.Event {
	case EventChargeSuccess:
		_, err := p.ConfirmCharge(ctx, ev.Data)
		return err
	case EventChargeFailed:
		log.Warn().Str("gateway_response", ev.Data.GatewayResponse).Msg("charge failed")
		meta, _ := ev.Data.ParseMetadata()
		failed := FailedEvent{
			Reference:       ev.Data.Reference,
			UserID:          meta.UserID,
			Amount:          gateway.FromMinor(ev.Data.Amount),
			GatewayResponse: ev.Data.GatewayResponse,
		}
		if err := p.events.PublishJSON(ctx, mq.KeyPaymentFailed, failed); err != nil {
			log.Warn().Err(err).Msg("publish payment.failed")
		}
		return nil
	case EventTransferSuccess, EventTransferFailed:
		log.Info().Msg("transfer event ignored")
		return nil
	default:
		log.Info().Msg("unhandled webhook event")
		return nil
	}
}

type FailedEvent struct {
	Reference       string  `json:"reference"`
	UserID          string  `json:"user_id"`
	Amount          float64 `json:"amount"`
	GatewayResponse string  `json:"gateway_response"`
}

// ConfirmCharge turns a successful transaction into a confirmed booking.
// The charged amount wins over the total stored in the draft.
func (p *Processor) ConfirmCharge(ctx context.Context, tx gateway.Transaction) (*booking.Booking, error) {
	log := logger.Log.With().Str("reference", tx.Reference).Logger()

	meta, err := tx.ParseMetadata()
	if err != nil {
		log.Error().Err(err).Msg("cannot read transaction metadata")
		return nil, err
	}
	draft, err := booking.DecodeDraft(meta.Draft)
	if err != nil {
		log.Error().Err(err).Msg("cannot decode booking draft")
		return nil, err
	}
	ref := tx.Reference
	if ref == "" {
		ref = meta.Reference
	}
	if ref == "" {
		log.Error().Msg("transaction without reference")
		return nil, fmt.Errorf("%w: missing reference", booking.ErrDecode)
	}

	unlock, err := p.locker.Lock(ctx, ref)
	if err != nil {
		log.Error().Err(err).Msg("cannot lock reference")
		return nil, err
	}
	defer unlock()

	total := gateway.FromMinor(tx.Amount)
	if total != draft.Total {
		log.Warn().Float64("charged", total).Float64("draft_total", draft.Total).Msg("charged amount differs from draft")
	}

	b, err := p.bookings.Materialize(ctx, draft, ref, total, booking.StatusConfirmed, booking.PaymentCompleted)
	if errors.Is(err, storage.ErrDuplicate) {
		if err := p.sameCharge(ctx, ref, draft, total); err != nil {
			log.Error().Err(err).Msg("reference already used")
			return nil, err
		}
		log.Info().Msg("charge already processed")
		return nil, storage.ErrDuplicate
	}
	if err != nil {
		log.Error().Err(err).Msg("cannot store booking")
		return nil, err
	}

	log.Info().Str("booking_id", b.ID).Str("order_number", b.OrderNumber).Float64("total", b.Total).Msg("booking confirmed")
	if err := p.events.PublishJSON(ctx, mq.KeyBookingConfirmed, bookingsvc.NewEvent(b)); err != nil {
		log.Warn().Err(err).Msg("publish booking.confirmed")
	}
	return b, nil
}

// sameCharge checks that the payment stored under ref was created by this
// charge: an online payment of the same user and amount.
func (p *Processor) sameCharge(ctx context.Context, ref string, d booking.Draft, total float64) error {
	existing, err := p.payments.FindPaymentByReference(ctx, ref)
	if err != nil {
		return fmt.Errorf("lookup stored payment: %w", err)
	}
	if !existing.PaymentMethod.Online() || existing.UserID != d.UserID || existing.Amount != total {
		return fmt.Errorf("%w: method %s, user %s", ErrReferenceConflict, existing.PaymentMethod, existing.UserID)
	}
	return nil
}

// Acknowledged reports whether err still warrants a 2xx to the provider.
func Acknowledged(err error) bool {
	return err == nil || errors.Is(err, booking.ErrDecode) || errors.Is(err, storage.ErrDuplicate)
}
