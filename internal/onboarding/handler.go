package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dabeastttt/test-demo/internal/messaging"
	"github.com/dabeastttt/test-demo/pkg/logging"
)

// Tradie is a registered business owner.
type Tradie struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry keeps registered tradies in memory, keyed by normalized phone.
// Registering the same phone twice updates the existing record.
type Registry struct {
	mu      sync.RWMutex
	tradies map[string]Tradie
}

func NewRegistry() *Registry {
	return &Registry{tradies: map[string]Tradie{}}
}

func (r *Registry) Register(name, phone string) Tradie {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tradies[phone]
	if !ok {
		t = Tradie{ID: uuid.New().String(), CreatedAt: time.Now().UTC()}
	}
	t.Name = name
	t.Phone = phone
	r.tradies[phone] = t
	return t
}

func (r *Registry) Lookup(phone string) (Tradie, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tradies[phone]
	return t, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tradies)
}

type smsSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Handler handles tradie onboarding endpoints.
type Handler struct {
	registry *Registry
	sms      smsSender
	logger   *logging.Logger
}

// NewHandler creates a new onboarding handler. sms may be nil, in which
// case no welcome message goes out.
func NewHandler(registry *Registry, sms smsSender, logger *logging.Logger) *Handler {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{registry: registry, sms: sms, logger: logger}
}

// InitiateRequest is the request body for starting onboarding.
type InitiateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Initiate registers a tradie and texts them a welcome message.
// POST /initiate-onboarding
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	phone := messaging.NormalizeAU(req.Phone)
	if strings.TrimSpace(req.Phone) == "" || !messaging.IsValidMobile(phone) {
		http.Error(w, `{"error": "a valid Australian mobile number is required"}`, http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "there"
	}

	tradie := h.registry.Register(name, phone)
	h.logger.Info("tradie onboarded", "tradie_id", tradie.ID, "phone", phone)

	if h.sms != nil {
		body := fmt.Sprintf("Hi %s! Your missed-call assistant is live. We'll text your callers back and keep you posted here.", name)
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := h.sms.SendSMS(ctx, phone, body); err != nil {
			h.logger.Error("welcome sms failed", "tradie_id", tradie.ID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
