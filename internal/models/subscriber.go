package models

import "time"

// Role distinguishes regular subscribers from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Subscriber is the read-only projection of an API user that the metering
// core consumes. The auth surface owns the full record; the core never
// mutates it.
type Subscriber struct {
	ID       string `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"fullName"`
	Company  string `db:"company" json:"company"`

	Role     Role `db:"role" json:"role"`
	IsActive bool `db:"is_active" json:"isActive"`

	PlanID                string     `db:"plan_id" json:"planId"`
	SubscriptionStartDate time.Time  `db:"-" json:"subscriptionStartDate"`
	SubscriptionEndDate   *time.Time `db:"-" json:"subscriptionEndDate,omitempty"`
}

// Expired reports whether the subscription lapsed before now. A subscriber
// without an end date never expires.
func (s *Subscriber) Expired(now time.Time) bool {
	return s.SubscriptionEndDate != nil && s.SubscriptionEndDate.Before(now)
}
