package router

import (
	"github.com/antonminaichev/laundry-booking/internal/booking"
	"github.com/antonminaichev/laundry-booking/internal/callback"
	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/middleware"
	"github.com/antonminaichev/laundry-booking/internal/payment"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	bookingH *booking.Handler,
	paymentH *payment.Handler,
	jwtSecret []byte,
	webhookSecret string,
	limiter *middleware.RateLimiter,
) chi.Router {
	r := chi.NewRouter()

	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)

	// the provider signs the raw body, so no gzip here
	r.With(middleware.WebhookSignature(webhookSecret)).Post("/api/payment/webhook", paymentH.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.GzipHandler)

		r.Get("/api/payment/callback", callback.Handler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTMiddleware(jwtSecret))

			r.With(limiter.Handler).Post("/api/bookings/create", bookingH.Create)
			r.With(limiter.Handler).Post("/api/payment/initialize", paymentH.Initialize)
			r.Post("/api/payment/verify", paymentH.Verify)
			r.Get("/api/bookings", bookingH.List)

			r.Route("/api/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/bookings", bookingH.AdminList)
				r.Patch("/bookings/{id}/status", bookingH.UpdateStatus)
				r.Patch("/bookings/{id}/payment-status", bookingH.UpdatePaymentStatus)
				r.Get("/payments/transactions", paymentH.Transactions)
				r.Get("/payments/transactions/{reference}", paymentH.Transaction)
			})
		})
	})

	return r
}
