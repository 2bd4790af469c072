package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"vanban_gateway/internal/models"
	"vanban_gateway/internal/storage"
	"vanban_gateway/internal/usage"
	"vanban_gateway/internal/utils"
)

// AdminHandler serves the operator dashboard and catalog administration.
type AdminHandler struct {
	aggregator  *usage.Aggregator
	plans       *storage.PlanRepository
	subscribers *storage.SubscriberRepository
	logger      *utils.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(aggregator *usage.Aggregator, plans *storage.PlanRepository, subscribers *storage.SubscriberRepository, logger *utils.Logger) *AdminHandler {
	return &AdminHandler{aggregator: aggregator, plans: plans, subscribers: subscribers, logger: logger}
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.aggregator.AdminRollup(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("admin rollup failed", "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute admin stats")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

type adminUserRow struct {
	*models.Subscriber
	Usage *models.UsageSummary `json:"usage,omitempty"`
}

// ListUsers handles GET /api/admin/users. Each row carries the subscriber's
// current-month summary so the dashboard renders in one round trip.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.ListAll(r.Context())
	if err != nil {
		h.logger.Error("subscriber listing failed", "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list subscribers")
		return
	}

	now := time.Now()
	rows := make([]adminUserRow, 0, len(subs))
	for _, sub := range subs {
		row := adminUserRow{Subscriber: sub}
		summary, err := h.aggregator.MonthlySummary(r.Context(), sub.ID, now)
		if err != nil {
			// One broken summary must not blank the whole listing.
			h.logger.Warn("usage summary failed in listing", "subscriber", sub.ID, "err", err)
		} else {
			row.Usage = summary
		}
		rows = append(rows, row)
	}

	utils.RespondWithJSON(w, http.StatusOK, rows)
}

type userUsageResponse struct {
	Subscriber *models.Subscriber   `json:"subscriber"`
	Summary    *models.UsageSummary `json:"summary"`
	Daily      []models.DailyUsage  `json:"daily"`
}

// UserUsage handles GET /api/admin/users/{id}/usage?days=30
func (h *AdminHandler) UserUsage(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 90 {
			utils.RespondWithError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = parsed
	}

	id := r.PathValue("id")
	sub, err := h.subscribers.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrSubscriberNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Subscriber not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to resolve subscriber")
		return
	}

	now := time.Now()
	summary, err := h.aggregator.MonthlySummary(r.Context(), id, now)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute usage summary")
		return
	}
	daily, err := h.aggregator.DailySeries(r.Context(), id, days, now)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute daily usage")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, userUsageResponse{Subscriber: sub, Summary: summary, Daily: daily})
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

// SetUserActive handles PUT /api/admin/users/{id}/active: lock or unlock an
// account. A locked subscriber's API key stops authenticating immediately.
func (h *AdminHandler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "isActive is required")
		return
	}

	id := r.PathValue("id")
	err := h.subscribers.SetActive(r.Context(), id, *req.IsActive)
	if errors.Is(err, storage.ErrSubscriberNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Subscriber not found")
		return
	}
	if err != nil {
		h.logger.Error("set active failed", "subscriber", id, "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update subscriber")
		return
	}

	message := "Đã khóa tài khoản."
	if *req.IsActive {
		message = "Đã mở khóa tài khoản."
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}

// UpsertPlan handles PUT /api/admin/plans
func (h *AdminHandler) UpsertPlan(w http.ResponseWriter, r *http.Request) {
	var plan models.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if plan.ID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Plan id is required")
		return
	}

	if err := h.plans.Upsert(r.Context(), &plan); err != nil {
		h.logger.Error("plan upsert failed", "plan", plan.ID, "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save plan")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, plan)
}

type updateSubscriberPlanRequest struct {
	SubscriberID        string     `json:"subscriberId"`
	PlanID              string     `json:"planId"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate,omitempty"`
}

// UpdateSubscriberPlan handles PUT /api/admin/subscribers/plan
func (h *AdminHandler) UpdateSubscriberPlan(w http.ResponseWriter, r *http.Request) {
	var req updateSubscriberPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SubscriberID == "" || req.PlanID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "subscriberId and planId are required")
		return
	}

	// Reject assignment to a plan the catalog does not carry.
	if _, err := h.plans.GetByID(r.Context(), req.PlanID); err != nil {
		if errors.Is(err, storage.ErrPlanNotFound) {
			utils.RespondWithError(w, http.StatusBadRequest, "Unknown plan id")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to resolve plan")
		return
	}

	err := h.subscribers.UpdatePlan(r.Context(), req.SubscriberID, req.PlanID, req.SubscriptionEndDate)
	if errors.Is(err, storage.ErrSubscriberNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Subscriber not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update subscriber plan")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
