package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dabeastttt/test-demo/internal/conversation"
	"github.com/dabeastttt/test-demo/internal/observability/metrics"
	"github.com/dabeastttt/test-demo/internal/transcribe"
	"github.com/dabeastttt/test-demo/pkg/logging"
)

var twilioTracer = otel.Tracer("missedcall.internal.messaging.twilio")

const twimlEmpty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type stateMachine interface {
	HandleMissedCall(ctx context.Context, callerID string) conversation.Outcome
	HandleVoicemail(ctx context.Context, callerID, transcription string) conversation.Outcome
	HandleSMS(ctx context.Context, callerID, body string) conversation.Outcome
}

type messageDispatcher interface {
	Dispatch(ctx context.Context, msgs []conversation.Message) int
}

type recordingFetcher interface {
	Fetch(ctx context.Context, recordingURL string) ([]byte, error)
}

// HandlerConfig carries the knobs the webhook handler needs beyond its
// collaborators.
type HandlerConfig struct {
	WebhookSecret string
	TradieName    string
	// VoicemailPath is where the TwiML Record verb posts its results.
	VoicemailPath string
}

// Handler handles Twilio telephony webhook requests.
type Handler struct {
	cfg         HandlerConfig
	machine     stateMachine
	dispatcher  messageDispatcher
	recordings  recordingFetcher
	transcriber transcribe.Transcriber
	metrics     *metrics.WebhookMetrics
	logger      *logging.Logger
}

// NewHandler creates a new telephony webhook handler. recordings and
// transcriber may be nil, in which case voicemails are relayed without a
// transcription.
func NewHandler(cfg HandlerConfig, machine stateMachine, dispatcher messageDispatcher, recordings recordingFetcher, transcriber transcribe.Transcriber, m *metrics.WebhookMetrics, logger *logging.Logger) *Handler {
	if machine == nil {
		panic("messaging: state machine cannot be nil")
	}
	if dispatcher == nil {
		panic("messaging: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.VoicemailPath == "" {
		cfg.VoicemailPath = "/webhooks/twilio/voicemail"
	}
	return &Handler{
		cfg:         cfg,
		machine:     machine,
		dispatcher:  dispatcher,
		recordings:  recordings,
		transcriber: transcriber,
		metrics:     m,
		logger:      logger,
	}
}

// CallStatus handles POST call-status callbacks. It always acknowledges
// with 200; everything behind it is best-effort.
func (h *Handler) CallStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.call_status")
	defer span.End()
	defer func() { h.metrics.ObserveWebhookLatency("call_status", time.Since(start).Seconds()) }()

	if !h.verifySignature(w, r) {
		return
	}
	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse call-status webhook", "error", err)
		h.metrics.ObserveInbound("call_status", "malformed")
		h.ackPlain(w)
		return
	}

	from := NormalizeAU(webhook.From)
	span.SetAttributes(
		attribute.String("missedcall.from", from),
		attribute.String("missedcall.call_status", webhook.CallStatus),
	)

	if !isMissedCallStatus(webhook.CallStatus) {
		h.metrics.ObserveInbound("call_status", "ignored")
		h.ackPlain(w)
		return
	}
	if from == "" {
		h.logger.Warn("call-status event without a usable From number")
		h.metrics.ObserveInbound("call_status", "invalid_from")
		h.ackPlain(w)
		return
	}

	out := h.machine.HandleMissedCall(ctx, from)
	h.deliver(ctx, out.Messages)

	h.metrics.ObserveInbound("call_status", "ok")
	h.ackPlain(w)
}

// Voice handles POST voice webhooks for an incoming call, answering with a
// TwiML document that greets the caller and records a voicemail.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, span := twilioTracer.Start(r.Context(), "messaging.twilio.voice")
	defer span.End()
	defer func() { h.metrics.ObserveWebhookLatency("voice", time.Since(start).Seconds()) }()

	if !h.verifySignature(w, r) {
		return
	}

	greeting := fmt.Sprintf(
		"Hi, you've reached %s. We can't get to the phone right now. Leave a message after the beep and we'll text you straight back.",
		h.cfg.TradieName)
	twiml := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><Response><Say voice="alice">%s</Say><Record action="%s" method="POST" maxLength="60" playBeep="true"/></Response>`,
		xmlEscape(greeting), xmlEscape(h.cfg.VoicemailPath))

	h.metrics.ObserveInbound("voice", "ok")
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twiml))
}

// Voicemail handles POST recording callbacks: fetch the audio, transcribe
// it, and run the voicemail transition.
func (h *Handler) Voicemail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.voicemail")
	defer span.End()
	defer func() { h.metrics.ObserveWebhookLatency("voicemail", time.Since(start).Seconds()) }()

	if !h.verifySignature(w, r) {
		return
	}
	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse voicemail webhook", "error", err)
		h.metrics.ObserveInbound("voicemail", "malformed")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := NormalizeAU(webhook.From)
	if webhook.RecordingURL == "" || from == "" {
		err := errors.New("missing required voicemail fields")
		h.logger.Error("invalid voicemail payload", "error", err)
		h.metrics.ObserveInbound("voicemail", "malformed")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	span.SetAttributes(attribute.String("missedcall.from", from))

	transcription := h.transcribeRecording(ctx, webhook.RecordingURL)

	out := h.machine.HandleVoicemail(ctx, from, transcription)
	h.deliver(ctx, out.Messages)

	h.metrics.ObserveInbound("voicemail", "ok")
	h.ackPlain(w)
}

// SMS handles POST inbound-message webhooks and acknowledges with the empty
// TwiML envelope Twilio expects.
func (h *Handler) SMS(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.sms")
	defer span.End()
	defer func() { h.metrics.ObserveWebhookLatency("sms", time.Since(start).Seconds()) }()

	if !h.verifySignature(w, r) {
		return
	}
	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse sms webhook", "error", err)
		h.metrics.ObserveInbound("sms", "malformed")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := NormalizeAU(webhook.From)
	if from == "" || strings.TrimSpace(webhook.Body) == "" {
		err := errors.New("missing required sms fields")
		h.logger.Error("invalid sms payload", "error", err)
		h.metrics.ObserveInbound("sms", "malformed")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	span.SetAttributes(attribute.String("missedcall.from", from))

	out := h.machine.HandleSMS(ctx, from, webhook.Body)
	h.deliver(ctx, out.Messages)

	h.metrics.ObserveInbound("sms", "ok")
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twimlEmpty))
}

// transcribeRecording is fully guarded: any failure degrades to an empty
// transcription, which downstream wording handles. The audio buffer's
// lifetime is this function.
func (h *Handler) transcribeRecording(ctx context.Context, recordingURL string) string {
	if h.recordings == nil || h.transcriber == nil {
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	audio, err := h.recordings.Fetch(fetchCtx, recordingURL)
	if err != nil {
		h.logger.Error("recording fetch failed", "error", err)
		return ""
	}

	sttCtx, cancel2 := context.WithTimeout(ctx, 30*time.Second)
	defer cancel2()
	text, err := h.transcriber.Transcribe(sttCtx, audio)
	if err != nil {
		h.logger.Error("transcription failed", "error", err)
		return ""
	}
	return text
}

// deliver filters messages through the mobile-validity gate and hands the
// rest to the dispatcher with a bounded timeout. Failures are the
// dispatcher's to log; they never affect the webhook response.
func (h *Handler) deliver(ctx context.Context, msgs []conversation.Message) {
	if len(msgs) == 0 {
		return
	}

	sendable := msgs[:0:0]
	for _, msg := range msgs {
		if msg.Kind == conversation.KindCallerReply && !IsValidMobile(msg.To) {
			h.logger.Warn("dropping caller reply to non-mobile number", "to", msg.To)
			continue
		}
		sendable = append(sendable, msg)
	}
	if len(sendable) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	h.dispatcher.Dispatch(sendCtx, sendable)
}

func (h *Handler) verifySignature(w http.ResponseWriter, r *http.Request) bool {
	if h.cfg.WebhookSecret == "" {
		return true
	}
	if !ValidateTwilioSignature(r, h.cfg.WebhookSecret, buildAbsoluteURL(r)) {
		h.logger.Warn("invalid twilio signature", "path", r.URL.Path)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (h *Handler) ackPlain(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func isMissedCallStatus(status string) bool {
	switch status {
	case "no-answer", "busy", "failed", "canceled":
		return true
	default:
		return false
	}
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}
