package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dabeastttt/test-demo/internal/api/router"
	appconfig "github.com/dabeastttt/test-demo/internal/config"
	"github.com/dabeastttt/test-demo/internal/conversation"
	"github.com/dabeastttt/test-demo/internal/messaging"
	"github.com/dabeastttt/test-demo/internal/notify"
	"github.com/dabeastttt/test-demo/internal/observability/metrics"
	"github.com/dabeastttt/test-demo/internal/onboarding"
	"github.com/dabeastttt/test-demo/internal/transcribe"
	"github.com/dabeastttt/test-demo/pkg/logging"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting missed-call assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	store := conversation.NewStore(cfg.ConversationTTL)
	defer store.Stop()

	// LLM is optional; without it the heuristic extractor and static
	// replies keep the flow working.
	var llm conversation.LLMClient
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to init Gemini client, continuing without LLM", "error", err)
		} else {
			defer gemini.Close()
			llm = gemini
		}
	}

	var extractor conversation.IntentExtractor = conversation.HeuristicExtractor{}
	if llm != nil {
		extractor = conversation.NewLLMExtractor(llm, logger)
	}

	machine := conversation.NewMachine(store, extractor, llm, conversation.MachineConfig{
		TradieName:      cfg.TradieName,
		OwnerPhone:      messaging.NormalizeAU(cfg.TradiePhone),
		WindowStartHour: cfg.WindowStartHour,
		WindowEndHour:   cfg.WindowEndHour,
	}, logger)

	var sms notify.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		sms = messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	} else {
		logger.Warn("Twilio credentials missing, using stub SMS sender")
		sms = notify.NewStubSMSSender(logger)
	}

	var email notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		email = sg
	}

	dispatcher := notify.NewDispatcher(sms, email, cfg.OwnerEmail, logger)

	var transcriber transcribe.Transcriber
	if cfg.DeepgramAPIKey != "" {
		dg, err := transcribe.NewDeepgramTranscriber(cfg.DeepgramAPIKey, "")
		if err != nil {
			logger.Error("failed to init Deepgram client, voicemails will relay untranscribed", "error", err)
		} else {
			transcriber = dg
		}
	}

	recordings := messaging.NewRecordingFetcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken)

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	voicemailPath := "/webhooks/twilio/voicemail"
	if cfg.PublicBaseURL != "" {
		voicemailPath = cfg.PublicBaseURL + voicemailPath
	}

	messagingHandler := messaging.NewHandler(messaging.HandlerConfig{
		WebhookSecret: cfg.TwilioWebhookSecret,
		TradieName:    cfg.TradieName,
		VoicemailPath: voicemailPath,
	}, machine, dispatcher, recordings, transcriber, webhookMetrics, logger)

	onboardingHandler := onboarding.NewHandler(onboarding.NewRegistry(), sms, logger)

	r := router.New(&router.Config{
		Logger:                  logger,
		MessagingHandler:        messagingHandler,
		OnboardingHandler:       onboardingHandler,
		MetricsHandler:          promhttp.Handler(),
		OnboardingRatePerMinute: cfg.OnboardingRatePerMinute,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
