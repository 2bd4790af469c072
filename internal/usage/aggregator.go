// Package usage derives reporting views from the usage ledger: per-subscriber
// monthly summaries, daily series, and the cross-subscriber admin rollup.
// Everything here is read-only; the ledger is the single source of truth.
package usage

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"vanban_gateway/internal/models"
	"vanban_gateway/internal/quota"
	"vanban_gateway/internal/storage"
	"vanban_gateway/internal/utils"
)

// Aggregator computes reporting views. It holds no state of its own; an
// optional cache shortens repeated dashboard reads.
type Aggregator struct {
	plans  *storage.PlanRepository
	usage  *storage.UsageRepository
	subs   *storage.SubscriberRepository
	cache  Cache
	logger *utils.Logger
}

// NewAggregator creates a new aggregator. Pass a NoopCache when no cache is
// configured.
func NewAggregator(plans *storage.PlanRepository, usage *storage.UsageRepository, subs *storage.SubscriberRepository, cache Cache, logger *utils.Logger) *Aggregator {
	if cache == nil {
		cache = NewNoopCache()
	}
	return &Aggregator{plans: plans, usage: usage, subs: subs, cache: cache, logger: logger}
}

// percentOf returns used/limit as a percentage rounded to one decimal, or 0
// when the limit is unlimited.
func percentOf(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Round(float64(used)/float64(limit)*1000) / 10
}

// MonthlySummary returns the subscriber's current-month usage against their
// plan's ceilings. Counts and cost include successful events only.
func (a *Aggregator) MonthlySummary(ctx context.Context, subscriberID string, now time.Time) (*models.UsageSummary, error) {
	if cached, ok := a.cache.GetSummary(ctx, subscriberID, now); ok {
		return cached, nil
	}

	sub, err := a.subs.GetByID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	plan, err := a.plans.GetByID(ctx, sub.PlanID)
	if errors.Is(err, storage.ErrPlanNotFound) {
		// Historical subscribers can point at a retired plan; report against
		// the free tier rather than failing the dashboard.
		fallback := models.DefaultPlans()[0]
		plan = &fallback
	} else if err != nil {
		return nil, err
	}

	requests, tokens, cost, err := a.usage.MonthlyTotals(ctx, subscriberID, quota.StartOfMonth(now))
	if err != nil {
		return nil, err
	}

	summary := &models.UsageSummary{
		SubscriberID:           subscriberID,
		PlanName:               plan.Name,
		RequestsUsed:           requests,
		RequestsLimit:          plan.MaxRequestsPerMonth,
		TokensUsed:             tokens,
		TokensLimit:            plan.MaxTokensPerMonth,
		RequestsPercent:        percentOf(requests, plan.MaxRequestsPerMonth),
		TokensPercent:          percentOf(tokens, plan.MaxTokensPerMonth),
		EstimatedCostThisMonth: cost,
		BillingPeriod:          now.UTC().Format("01/2006"),
		SubscriptionExpiry:     sub.SubscriptionEndDate,
	}

	a.cache.SetSummary(ctx, summary, now)
	return summary, nil
}

// DailySeries returns per-day usage over the trailing window, grouped by UTC
// calendar date. Days without events are omitted; requests, tokens, and cost
// aggregate successful events only.
func (a *Aggregator) DailySeries(ctx context.Context, subscriberID string, windowDays int, now time.Time) ([]models.DailyUsage, error) {
	start := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -windowDays)

	events, err := a.usage.ListBySubscriberSince(ctx, subscriberID, start, false)
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]*models.DailyUsage)
	for _, ev := range events {
		day := ev.Timestamp.UTC().Truncate(24 * time.Hour)
		entry, ok := byDay[day]
		if !ok {
			entry = &models.DailyUsage{Date: day}
			byDay[day] = entry
		}
		if ev.IsSuccess {
			entry.Requests++
			entry.Tokens += ev.TotalTokens
			entry.Cost += ev.EstimatedCost
		}
	}

	series := make([]models.DailyUsage, 0, len(byDay))
	for _, entry := range byDay {
		series = append(series, *entry)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// AdminRollup computes the operator dashboard: subscriber counts, the
// independent today/this-month windows, and the month's top ten subscribers
// by successful request count (ties broken by id). ErrorsToday counts failed
// events: operators need failure visibility even though failures are never
// billed.
func (a *Aggregator) AdminRollup(ctx context.Context, now time.Time) (*models.AdminStats, error) {
	if cached, ok := a.cache.GetAdminStats(ctx, now); ok {
		return cached, nil
	}

	now = now.UTC()
	startOfMonth := quota.StartOfMonth(now)
	startOfDay := now.Truncate(24 * time.Hour)

	subs, err := a.subs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	monthly, err := a.usage.ListAllSince(ctx, startOfMonth)
	if err != nil {
		return nil, err
	}
	daily, err := a.usage.ListAllSince(ctx, startOfDay)
	if err != nil {
		return nil, err
	}

	stats := &models.AdminStats{
		TotalSubscribers:  len(subs),
		SubscribersByPlan: make(map[string]int),
	}

	subsByID := make(map[string]*models.Subscriber, len(subs))
	for _, sub := range subs {
		subsByID[sub.ID] = sub
		stats.SubscribersByPlan[sub.PlanID]++
		if sub.IsActive {
			stats.ActiveSubscribers++
		}
	}

	for _, ev := range daily {
		if ev.IsSuccess {
			stats.RequestsToday++
		} else {
			stats.ErrorsToday++
		}
	}

	type tally struct {
		requests int
		tokens   int
	}
	perSubscriber := make(map[string]*tally)
	for _, ev := range monthly {
		if !ev.IsSuccess {
			continue
		}
		stats.RequestsThisMonth++
		stats.TokensThisMonth += ev.TotalTokens
		stats.CostThisMonth += ev.EstimatedCost

		t, ok := perSubscriber[ev.SubscriberID]
		if !ok {
			t = &tally{}
			perSubscriber[ev.SubscriberID] = t
		}
		t.requests++
		t.tokens += ev.TotalTokens
	}

	top := make([]models.TopSubscriber, 0, len(perSubscriber))
	for id, t := range perSubscriber {
		row := models.TopSubscriber{SubscriberID: id, Requests: t.requests, Tokens: t.tokens}
		if sub, ok := subsByID[id]; ok {
			row.FullName = sub.FullName
			row.Email = sub.Email
		} else {
			row.FullName = "Unknown"
		}
		top = append(top, row)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Requests != top[j].Requests {
			return top[i].Requests > top[j].Requests
		}
		return top[i].SubscriberID < top[j].SubscriberID
	})
	if len(top) > 10 {
		top = top[:10]
	}
	stats.TopSubscribers = top

	a.cache.SetAdminStats(ctx, stats, now)
	return stats, nil
}
