package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/dabeastttt/test-demo/internal/http/middleware"
	"github.com/dabeastttt/test-demo/internal/messaging"
	"github.com/dabeastttt/test-demo/internal/onboarding"
	"github.com/dabeastttt/test-demo/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger            *logging.Logger
	MessagingHandler  *messaging.Handler
	OnboardingHandler *onboarding.Handler
	MetricsHandler    http.Handler

	// OnboardingRatePerMinute caps /initiate-onboarding requests per IP.
	// Zero disables the limiter.
	OnboardingRatePerMinute int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.MessagingHandler != nil {
		r.Route("/webhooks/twilio", func(r chi.Router) {
			r.Post("/call-status", cfg.MessagingHandler.CallStatus)
			r.Post("/voice", cfg.MessagingHandler.Voice)
			r.Post("/voicemail", cfg.MessagingHandler.Voicemail)
			r.Post("/sms", cfg.MessagingHandler.SMS)
		})
	}

	if cfg.OnboardingHandler != nil {
		if cfg.OnboardingRatePerMinute > 0 {
			r.With(httpmiddleware.RateLimitPerMinute(cfg.OnboardingRatePerMinute)).
				Post("/initiate-onboarding", cfg.OnboardingHandler.Initiate)
		} else {
			r.Post("/initiate-onboarding", cfg.OnboardingHandler.Initiate)
		}
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
