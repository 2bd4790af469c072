package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"vanban_gateway/internal/middleware"
	"vanban_gateway/internal/usage"
	"vanban_gateway/internal/utils"
)

// UsageHandler serves per-subscriber reporting endpoints.
type UsageHandler struct {
	aggregator *usage.Aggregator
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(aggregator *usage.Aggregator) *UsageHandler {
	return &UsageHandler{aggregator: aggregator}
}

// Summary handles GET /api/usage/summary
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.GetSubscriber(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	summary, err := h.aggregator.MonthlySummary(r.Context(), sub.ID, time.Now())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute usage summary")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// Daily handles GET /api/usage/daily?days=30
func (h *UsageHandler) Daily(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.GetSubscriber(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 90 {
			utils.RespondWithError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = parsed
	}

	series, err := h.aggregator.DailySeries(r.Context(), sub.ID, days, time.Now())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute daily usage")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, series)
}
