package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dabeastttt/test-demo/pkg/logging"
)

// MessageKind labels who an outbound message is for.
type MessageKind string

const (
	KindCallerReply MessageKind = "caller_reply"
	KindOwnerAlert  MessageKind = "owner_alert"
)

// Message is a composed outbound SMS. The machine never sends anything
// itself; the dispatcher decides delivery.
type Message struct {
	To   string
	Body string
	Kind MessageKind
}

// Outcome is the structured result of applying one inbound event.
type Outcome struct {
	Conversation Conversation
	Messages     []Message
	// Changed is false when the event was suppressed and the store was
	// left untouched.
	Changed bool
}

// MachineConfig carries the business identity the machine writes into
// message bodies.
type MachineConfig struct {
	TradieName      string
	OwnerPhone      string
	WindowStartHour int
	WindowEndHour   int
}

// Machine applies inbound telephony events to per-caller conversations.
// It borrows a record from the store for the duration of one event and
// writes the updated value back before returning.
type Machine struct {
	store     *Store
	extractor IntentExtractor
	llm       LLMClient
	cfg       MachineConfig
	logger    *logging.Logger
}

// NewMachine creates the state machine. llm may be nil, which disables the
// time-negotiation fallback in favor of a static ask-again reply.
func NewMachine(store *Store, extractor IntentExtractor, llm LLMClient, cfg MachineConfig, logger *logging.Logger) *Machine {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if extractor == nil {
		extractor = HeuristicExtractor{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.WindowStartHour == 0 && cfg.WindowEndHour == 0 {
		cfg.WindowStartHour, cfg.WindowEndHour = 13, 15
	}
	return &Machine{store: store, extractor: extractor, llm: llm, cfg: cfg, logger: logger}
}

// HandleMissedCall processes a missed/busy call-status event.
func (m *Machine) HandleMissedCall(ctx context.Context, callerID string) Outcome {
	existing, ok := m.store.Get(callerID)
	if ok && existing.Origin == OriginVoicemail && existing.Transcription != "" {
		// The caller already left a voicemail for this exchange; a trailing
		// call-status event must not double-message them.
		m.logger.Info("missed-call event suppressed after voicemail", "caller", callerID)
		return Outcome{Conversation: existing}
	}

	conv := Conversation{
		CallerID:      callerID,
		State:         StateAwaitingDetails,
		Origin:        OriginMissedCall,
		OwnerNotified: true,
	}

	msgs := []Message{{
		To:   callerID,
		Kind: KindCallerReply,
		Body: fmt.Sprintf(
			"Hi, you've reached %s. Sorry we missed your call! Reply with your name and what you're after (quote or booking) and we'll sort a call back between %s and %s.",
			m.cfg.TradieName, m.windowStart(), m.windowEnd()),
	}}
	if !ok || !existing.OwnerNotified {
		msgs = append(msgs, Message{
			To:   m.cfg.OwnerPhone,
			Kind: KindOwnerAlert,
			Body: fmt.Sprintf("Missed call from %s. I've texted them to grab their details.", callerID),
		})
	}

	m.store.Put(conv)
	return Outcome{Conversation: conv, Messages: msgs, Changed: true}
}

// HandleVoicemail processes a completed voicemail with its transcription.
// An empty transcription is allowed; the owner alert notes it.
func (m *Machine) HandleVoicemail(ctx context.Context, callerID, transcription string) Outcome {
	conv := Conversation{
		CallerID:      callerID,
		State:         StateAwaitingDetails,
		Origin:        OriginVoicemail,
		Transcription: transcription,
		OwnerNotified: true,
	}

	ownerBody := fmt.Sprintf("New voicemail from %s.", callerID)
	if strings.TrimSpace(transcription) != "" {
		ownerBody += fmt.Sprintf(" They said: %q", transcription)
	} else {
		ownerBody += " Couldn't make out the message."
	}

	msgs := []Message{
		{
			To:   callerID,
			Kind: KindCallerReply,
			Body: fmt.Sprintf(
				"Hi, thanks for leaving %s a message. Reply with your name and what you're after (quote or booking) and we'll sort a call back between %s and %s.",
				m.cfg.TradieName, m.windowStart(), m.windowEnd()),
		},
		{To: m.cfg.OwnerPhone, Kind: KindOwnerAlert, Body: ownerBody},
	}

	m.store.Put(conv)
	return Outcome{Conversation: conv, Messages: msgs, Changed: true}
}

// HandleSMS processes an inbound text from a caller.
func (m *Machine) HandleSMS(ctx context.Context, callerID, body string) Outcome {
	conv, ok := m.store.Get(callerID)
	if !ok {
		conv = Conversation{CallerID: callerID, State: StateNew}
	}

	switch conv.State {
	case StateAwaitingDetails:
		return m.captureDetails(ctx, conv, body)
	case StateScheduling:
		return m.scheduleTime(ctx, conv, body)
	default:
		// New, done, or anything unexpected: a fresh contextless exchange.
		return Outcome{
			Conversation: conv,
			Messages: []Message{{
				To:   callerID,
				Kind: KindCallerReply,
				Body: fmt.Sprintf("Thanks for your message! %s will get back to you as soon as possible.", m.cfg.TradieName),
			}},
		}
	}
}

func (m *Machine) captureDetails(ctx context.Context, conv Conversation, body string) Outcome {
	info := m.extractor.Extract(ctx, body)
	conv.State = StateScheduling
	conv.CustomerInfo = &info

	ownerBody := fmt.Sprintf("%s (%s) is after a %s: %s.", info.Name, conv.CallerID, info.Intent, info.Description)
	if conv.Origin == OriginVoicemail && strings.TrimSpace(conv.Transcription) != "" {
		ownerBody += fmt.Sprintf(" Voicemail: %q", conv.Transcription)
	}

	msgs := []Message{
		{
			To:   conv.CallerID,
			Kind: KindCallerReply,
			Body: fmt.Sprintf("Thanks %s! What time suits you for a call back between %s and %s?",
				info.Name, m.windowStart(), m.windowEnd()),
		},
		{To: m.cfg.OwnerPhone, Kind: KindOwnerAlert, Body: ownerBody},
	}

	m.store.Put(conv)
	return Outcome{Conversation: conv, Messages: msgs, Changed: true}
}

func (m *Machine) scheduleTime(ctx context.Context, conv Conversation, body string) Outcome {
	if parsed, ok := ParseTime(body); ok {
		conv.State = StateDone

		name, intent := defaultName, defaultIntent
		if conv.CustomerInfo != nil {
			name, intent = conv.CustomerInfo.Name, conv.CustomerInfo.Intent
		}
		msgs := []Message{
			{
				To:   conv.CallerID,
				Kind: KindCallerReply,
				Body: fmt.Sprintf("Locked in! %s will call you at %s.", m.cfg.TradieName, parsed),
			},
			{
				To:   m.cfg.OwnerPhone,
				Kind: KindOwnerAlert,
				Body: fmt.Sprintf("Call back booked: %s (%s), %s, at %s.", name, conv.CallerID, intent, parsed),
			},
		}

		m.store.Put(conv)
		return Outcome{Conversation: conv, Messages: msgs, Changed: true}
	}

	// No parseable time: negotiate and stay in scheduling. Advancing to
	// done requires a concrete time.
	reply := m.negotiateTime(ctx, body)
	m.store.Put(conv)
	return Outcome{
		Conversation: conv,
		Messages:     []Message{{To: conv.CallerID, Kind: KindCallerReply, Body: reply}},
		Changed:      true,
	}
}

func (m *Machine) negotiateTime(ctx context.Context, body string) string {
	fallback := fmt.Sprintf("Sorry, I didn't catch a time there. What time between %s and %s works for you?",
		m.windowStart(), m.windowEnd())
	if m.llm == nil {
		return fallback
	}

	llmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	system := fmt.Sprintf(
		"You schedule call backs for %s, a tradesperson. The customer was asked for a preferred time between %s and %s but their reply didn't contain a clear time. Write one short friendly SMS asking them to name a time in that window. No preamble, just the SMS text.",
		m.cfg.TradieName, m.windowStart(), m.windowEnd())
	resp, err := m.llm.Complete(llmCtx, LLMRequest{
		System:      []string{system},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: body}},
		MaxTokens:   128,
		Temperature: 0.4,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			m.logger.Warn("time negotiation fell back to static reply", "error", err)
		}
		return fallback
	}
	return strings.TrimSpace(resp.Text)
}

func (m *Machine) windowStart() string { return formatHour(m.cfg.WindowStartHour) }
func (m *Machine) windowEnd() string   { return formatHour(m.cfg.WindowEndHour) }

// formatHour renders a 24-hour value the way people text, e.g. 13 -> "1pm".
func formatHour(h int) string {
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return fmt.Sprintf("%dam", h)
	case h == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", h-12)
	}
}
