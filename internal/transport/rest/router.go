package rest

import (
	"crypto/rsa"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/jotpay/payment-service/internal/payment"
	"github.com/jotpay/payment-service/internal/transport/middleware"
	"github.com/jotpay/payment-service/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, healthHandler *HealthHandler, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, adminHandler *payment.AdminHandler, adminPublicKey *rsa.PublicKey, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.MetricsMiddleware)

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Prometheus scrape endpoint
	router.Handle("/metrics", middleware.PrometheusHandler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		if healthHandler != nil {
			r.Get("/health", healthHandler.readinessHandler)
			r.Get("/ping", healthHandler.livenessHandler)
		}

		// Processor status reports, no auth: signature is out of
		// scope for the relay, unknown transactions still get 200
		if webhookHandler != nil {
			r.Post("/webhook/payment-status", webhookHandler.HandleStatusWebhook)
		}

		if paymentHandler != nil {
			r.Route("/payments", func(pr chi.Router) {
				pr.Post("/", paymentHandler.InitiatePayment)
				pr.Get("/", paymentHandler.ListPayments)
				pr.Get("/{transactionID}", paymentHandler.GetPayment)
			})
		}

		// Manual override surface for operators
		if adminHandler != nil && adminPublicKey != nil {
			r.Group(func(ar chi.Router) {
				ar.Use(middleware.AdminAuth(adminPublicKey, logger))
				ar.Post("/admin/payments/{transactionID}/status", adminHandler.UpdateStatus)
				ar.Get("/admin/wallet/balance", adminHandler.WalletBalance)
			})
		}
	})
}
