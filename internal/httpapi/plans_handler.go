package httpapi

import (
	"net/http"

	"vanban_gateway/internal/storage"
	"vanban_gateway/internal/utils"
)

// PlansHandler serves the public plan catalog.
type PlansHandler struct {
	plans *storage.PlanRepository
}

// NewPlansHandler creates a new plans handler
func NewPlansHandler(plans *storage.PlanRepository) *PlansHandler {
	return &PlansHandler{plans: plans}
}

// List handles GET /api/plans
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list plans")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, plans)
}
