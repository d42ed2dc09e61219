package conversation

import "time"

// State tracks a caller's progress through the scheduling dialogue.
type State int

const (
	// StateNew is the implicit state of a caller with no record.
	StateNew State = iota
	// StateAwaitingDetails means the intro SMS went out and we are waiting
	// for the caller's name and what they need.
	StateAwaitingDetails
	// StateScheduling means details are captured and we asked for a
	// preferred call-back time.
	StateScheduling
	// StateDone is terminal for the life of the process.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAwaitingDetails:
		return "awaiting_details"
	case StateScheduling:
		return "scheduling"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Origin records which telephony event created the conversation.
type Origin string

const (
	OriginMissedCall Origin = "missed_call"
	OriginVoicemail  Origin = "voicemail"
)

// CustomerInfo is the structured record the intent extractor produces.
type CustomerInfo struct {
	Name        string `json:"name"`
	Intent      string `json:"intent"`
	Description string `json:"description"`
}

// Conversation is the ephemeral per-caller record. CallerID is the store
// key and always a normalized phone number.
type Conversation struct {
	CallerID      string
	State         State
	Origin        Origin
	Transcription string
	CustomerInfo  *CustomerInfo

	// OwnerNotified suppresses duplicate owner alerts when repeat
	// missed-call events arrive for a live conversation.
	OwnerNotified bool

	UpdatedAt time.Time
}
