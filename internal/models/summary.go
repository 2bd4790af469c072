package models

import "time"

// UsageSummary is the current-month usage overview for one subscriber.
type UsageSummary struct {
	SubscriberID           string     `json:"subscriberId"`
	PlanName               string     `json:"planName"`
	RequestsUsed           int        `json:"requestsUsed"`
	RequestsLimit          int        `json:"requestsLimit"`
	TokensUsed             int        `json:"tokensUsed"`
	TokensLimit            int        `json:"tokensLimit"`
	RequestsPercent        float64    `json:"requestsPercent"`
	TokensPercent          float64    `json:"tokensPercent"`
	EstimatedCostThisMonth float64    `json:"estimatedCostThisMonth"`
	BillingPeriod          string     `json:"billingPeriod"`
	SubscriptionExpiry     *time.Time `json:"subscriptionExpiry,omitempty"`
}

// DailyUsage is one day's aggregated successful usage. Days without events
// are omitted from series.
type DailyUsage struct {
	Date     time.Time `json:"date"`
	Requests int       `json:"requests"`
	Tokens   int       `json:"tokens"`
	Cost     float64   `json:"cost"`
}

// TopSubscriber is one row of the admin "top by requests this month" list.
type TopSubscriber struct {
	SubscriberID string `json:"subscriberId"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Requests     int    `json:"requests"`
	Tokens       int    `json:"tokens"`
}

// AdminStats is the cross-subscriber rollup for the admin dashboard.
// ErrorsToday counts failed events only; every other counter is success-only,
// matching how quota is billed.
type AdminStats struct {
	TotalSubscribers  int             `json:"totalSubscribers"`
	ActiveSubscribers int             `json:"activeSubscribers"`
	SubscribersByPlan map[string]int  `json:"subscribersByPlan"`
	RequestsToday     int             `json:"requestsToday"`
	RequestsThisMonth int             `json:"requestsThisMonth"`
	TokensThisMonth   int             `json:"tokensThisMonth"`
	CostThisMonth     float64         `json:"costThisMonth"`
	ErrorsToday       int             `json:"errorsToday"`
	TopSubscribers    []TopSubscriber `json:"topSubscribers"`
}
