// Package quota decides whether a subscriber may run one more metered call
// in the current billing period.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vanban_gateway/internal/models"
	"vanban_gateway/internal/storage"
)

// PlanGetter resolves a plan id against the plan registry.
type PlanGetter interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
}

// UsageCounter returns the successful request count and token sum for a
// subscriber since the given instant.
type UsageCounter interface {
	MonthlyTotals(ctx context.Context, subscriberID string, since time.Time) (requests int, tokens int, cost float64, err error)
}

// Reason classifies why a call was denied.
type Reason string

const (
	ReasonInvalidPlan       Reason = "invalid_plan"
	ReasonInactive          Reason = "inactive"
	ReasonExpired           Reason = "expired"
	ReasonRequestsExhausted Reason = "requests_exhausted"
	ReasonTokensExhausted   Reason = "tokens_exhausted"
)

// Decision is the outcome of an evaluation. A denial is an expected outcome,
// not an error: errors from Evaluate are infrastructure failures only.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason, format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Evaluator computes admission decisions from the plan registry and the
// usage ledger. It holds no mutable state; current usage is recomputed from
// the ledger on every call.
type Evaluator struct {
	plans PlanGetter
	usage UsageCounter
}

// NewEvaluator creates a new evaluator
func NewEvaluator(plans PlanGetter, usage UsageCounter) *Evaluator {
	return &Evaluator{plans: plans, usage: usage}
}

// StartOfMonth returns the first instant of now's calendar month in UTC,
// the quota reset boundary.
func StartOfMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Evaluate runs the admission checks in order, short-circuiting at the first
// failure: plan lookup, active flag, expiry, then the month-window request
// and token ceilings. Plans without a request ceiling skip the ledger scan
// entirely. Only successful events count against quota; a failed call gave
// the subscriber nothing, so it costs nothing.
func (e *Evaluator) Evaluate(ctx context.Context, sub *models.Subscriber, now time.Time) (Decision, error) {
	plan, err := e.plans.GetByID(ctx, sub.PlanID)
	if errors.Is(err, storage.ErrPlanNotFound) {
		// The subscriber record points at a plan the catalog no longer
		// serves. A denial, not an infrastructure error.
		return deny(ReasonInvalidPlan, "Gói subscription không hợp lệ."), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve plan: %w", err)
	}

	if !sub.IsActive {
		return deny(ReasonInactive, "Tài khoản đã bị khóa."), nil
	}

	if sub.Expired(now) {
		return deny(ReasonExpired, "Gói subscription đã hết hạn. Vui lòng gia hạn."), nil
	}

	if plan.UnlimitedRequests() {
		return allow(), nil
	}

	requests, tokens, _, err := e.usage.MonthlyTotals(ctx, sub.ID, StartOfMonth(now))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count monthly usage: %w", err)
	}

	if requests >= plan.MaxRequestsPerMonth {
		return deny(ReasonRequestsExhausted,
			"Đã hết quota request tháng này (%d/%d). Vui lòng nâng cấp gói.",
			requests, plan.MaxRequestsPerMonth), nil
	}

	if !plan.UnlimitedTokens() && tokens >= plan.MaxTokensPerMonth {
		return deny(ReasonTokensExhausted,
			"Đã hết quota token tháng này (%d/%d). Vui lòng nâng cấp gói.",
			tokens, plan.MaxTokensPerMonth), nil
	}

	return allow(), nil
}
