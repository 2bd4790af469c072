package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEvent records the outcome of a single metered call. Events are
// append-only: once written they are never updated or deleted, which is what
// the billing and audit guarantees rest on.
type UsageEvent struct {
	ID           string        `json:"id"`
	SubscriberID string        `json:"subscriberId"`
	Endpoint     string        `json:"endpoint"`
	Kind         OperationKind `json:"kind"`
	Timestamp    time.Time     `json:"timestamp"`

	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`

	EstimatedCost  float64 `json:"estimatedCost"`
	ResponseTimeMS int     `json:"responseTimeMs"`

	IsSuccess    bool   `json:"isSuccess"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	ClientIP string `json:"clientIp,omitempty"`
}

// NewUsageEvent creates an event with a fresh id and a UTC timestamp.
func NewUsageEvent(subscriberID, endpoint string, kind OperationKind) *UsageEvent {
	return &UsageEvent{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		Endpoint:     endpoint,
		Kind:         kind,
		Timestamp:    time.Now().UTC(),
	}
}

// NormalizeTokens fills TotalTokens from the prompt/completion split when the
// provider did not supply its own total.
func (e *UsageEvent) NormalizeTokens() {
	if e.TotalTokens == 0 {
		e.TotalTokens = e.PromptTokens + e.CompletionTokens
	}
}
