package conversation

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/dabeastttt/test-demo/pkg/logging"
)

const (
	defaultName   = "Customer"
	defaultIntent = "other"
)

var (
	nameRE    = regexp.MustCompile(`(?i)\bmy name is\s+([a-z][a-z'\-]*(?:\s+[a-z][a-z'\-]*)?)`)
	quoteRE   = regexp.MustCompile(`(?i)\bquote\b`)
	bookingRE = regexp.MustCompile(`(?i)\bbook(?:ing)?\b`)
)

// IntentExtractor turns a caller's free text into a structured record. All
// implementations are total: every field is populated and no error reaches
// the caller.
type IntentExtractor interface {
	Extract(ctx context.Context, freeText string) CustomerInfo
}

// HeuristicExtractor pattern-matches the caller's message without any
// external service.
type HeuristicExtractor struct{}

var _ IntentExtractor = HeuristicExtractor{}

// Extract matches a "my name is X" pattern and a small intent vocabulary.
// The raw text always becomes the description.
func (HeuristicExtractor) Extract(_ context.Context, freeText string) CustomerInfo {
	info := CustomerInfo{
		Name:        defaultName,
		Intent:      defaultIntent,
		Description: freeText,
	}
	if m := nameRE.FindStringSubmatch(freeText); m != nil {
		info.Name = strings.TrimSpace(m[1])
	}
	switch {
	case quoteRE.MatchString(freeText):
		info.Intent = "quote"
	case bookingRE.MatchString(freeText):
		info.Intent = "booking"
	}
	return info
}

// LLMExtractor asks the language model for the three fields as JSON and
// falls back to the defaults on any service or parse failure.
type LLMExtractor struct {
	llm    LLMClient
	logger *logging.Logger
}

// NewLLMExtractor creates a model-assisted extractor.
func NewLLMExtractor(llm LLMClient, logger *logging.Logger) *LLMExtractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMExtractor{llm: llm, logger: logger}
}

var _ IntentExtractor = (*LLMExtractor)(nil)

const extractSystemPrompt = `You read a single SMS from a customer who missed a tradesperson's call.
Reply with a JSON object and nothing else, with exactly these keys:
"name" (the customer's name, or "Customer" if not given),
"intent" (one of "quote", "booking", "other"),
"description" (one short sentence describing what they need).`

func (e *LLMExtractor) Extract(ctx context.Context, freeText string) CustomerInfo {
	fallback := CustomerInfo{Name: defaultName, Intent: defaultIntent, Description: freeText}
	if e.llm == nil {
		return fallback
	}

	resp, err := e.llm.Complete(ctx, LLMRequest{
		System:       []string{extractSystemPrompt},
		Messages:     []ChatMessage{{Role: ChatRoleUser, Content: freeText}},
		MaxTokens:    256,
		Temperature:  0,
		JSONResponse: true,
	})
	if err != nil {
		e.logger.Warn("intent extraction fell back to defaults", "error", err)
		return fallback
	}

	var info CustomerInfo
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text)), &info); err != nil {
		e.logger.Warn("intent extraction returned unparseable JSON", "error", err)
		return fallback
	}

	if strings.TrimSpace(info.Name) == "" {
		info.Name = defaultName
	}
	switch strings.ToLower(strings.TrimSpace(info.Intent)) {
	case "quote":
		info.Intent = "quote"
	case "booking":
		info.Intent = "booking"
	default:
		info.Intent = defaultIntent
	}
	if strings.TrimSpace(info.Description) == "" {
		info.Description = freeText
	}
	return info
}

// stripCodeFence removes a markdown fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
