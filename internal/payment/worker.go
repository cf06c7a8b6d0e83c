package payment

import (
	"context"
	"errors"
	"time"

	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/storage"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
)

// ReconcileGateway lists recent charges and re-verifies them.
type ReconcileGateway interface {
	Verify(ctx context.Context, reference string) (*gateway.Transaction, error)
	ListTransactions(ctx context.Context, page, perPage int) (*gateway.TransactionList, error)
}

type Confirmer interface {
	ConfirmCharge(ctx context.Context, tx gateway.Transaction) (*booking.Booking, error)
}

func workerLoop(
	ctx context.Context,
	id int,
	gw ReconcileGateway,
	jobs <-chan string,
	svc Confirmer,
) {
	log := logger.Log.With().Int("worker", id).Logger()
	log.Debug().Msg("started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("context cancelled, stopping")
			return

		case ref, ok := <-jobs:
			if !ok {
				log.Debug().Msg("jobs channel closed, stopping")
				return
			}

			tx, err := gw.Verify(ctx, ref)
			if err != nil {
				log.Error().Err(err).Str("reference", ref).Msg("verify failed")
				continue
			}
			if tx == nil || tx.Status != gateway.TransactionSuccess {
				log.Info().Str("reference", ref).Msg("charge not confirmed by provider")
				continue
			}
			if tx.Reference == "" {
				tx.Reference = ref
			}

			b, err := svc.ConfirmCharge(ctx, *tx)
			switch {
			case err == nil:
				log.Info().Str("reference", ref).Str("order_number", b.OrderNumber).Msg("booking recovered")
			case errors.Is(err, storage.ErrDuplicate):
				log.Debug().Str("reference", ref).Msg("already processed")
			default:
				log.Error().Err(err).Str("reference", ref).Msg("confirm failed")
			}
		}
	}
}

// unconfirmed returns references of successful charges that carry a booking
// draft and have no local payment row. Charges without a draft were not
// started by this service and are never queued.
func unconfirmed(ctx context.Context, gw ReconcileGateway, payments storage.PaymentRepository, pageSize int) ([]string, error) {
	list, err := gw.ListTransactions(ctx, 1, pageSize)
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, tx := range list.Transactions {
		if tx.Status != gateway.TransactionSuccess || tx.Reference == "" {
			continue
		}
		if meta, err := tx.ParseMetadata(); err != nil || meta.Draft == "" {
			continue
		}
		_, err := payments.FindPaymentByReference(ctx, tx.Reference)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return refs, err
		}
		refs = append(refs, tx.Reference)
	}
	return refs, nil
}

// DispatcherLoop periodically picks up charges whose webhook never arrived
// and pushes them through the same confirmation path.
func DispatcherLoop(
	ctx context.Context,
	gw ReconcileGateway,
	payments storage.PaymentRepository,
	svc Confirmer,
	workerCount int,
	pageSize int,
	interval time.Duration,
) {
	jobs := make(chan string, workerCount*3)

	for i := 1; i <= workerCount; i++ {
		go workerLoop(ctx, i, gw, jobs, svc)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logger.Log.With().Str("component", "reconcile").Logger()
	log.Info().Dur("interval", interval).Msg("reconcile loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("context cancelled, closing jobs")
			close(jobs)
			return
		case <-ticker.C:
			refs, err := unconfirmed(ctx, gw, payments, pageSize)
			if err != nil {
				log.Error().Err(err).Msg("list transactions failed")
				continue
			}
			if len(refs) == 0 {
				log.Debug().Msg("no unconfirmed charges")
				continue
			}
			log.Info().Int("count", len(refs)).Msg("unconfirmed charges found")
			for _, ref := range refs {
				select {
				case jobs <- ref:
				default:
					log.Warn().Str("reference", ref).Msg("jobs channel full, skipping until next tick")
				}
			}
		}
	}
}
