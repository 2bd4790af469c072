package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"vanban_gateway/internal/gate"
	"vanban_gateway/internal/middleware"
	"vanban_gateway/internal/models"
	"vanban_gateway/internal/provider"
	"vanban_gateway/internal/storage"
	"vanban_gateway/internal/usage"
	"vanban_gateway/internal/utils"
)

// AIHandler proxies metered AI calls through the admission gate.
type AIHandler struct {
	gate   *gate.Gate
	gemini *provider.Client
	plans  *storage.PlanRepository
	cache  usage.Cache
	logger *utils.Logger
}

// NewAIHandler creates a new AI handler
func NewAIHandler(g *gate.Gate, gemini *provider.Client, plans *storage.PlanRepository, cache usage.Cache, logger *utils.Logger) *AIHandler {
	return &AIHandler{gate: g, gemini: gemini, plans: plans, cache: cache, logger: logger}
}

type generateRequest struct {
	Prompt            string   `json:"prompt"`
	SystemInstruction string   `json:"systemInstruction,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	MaxTokens         int      `json:"maxTokens,omitempty"`
}

type visionRequest struct {
	Prompt     string `json:"prompt,omitempty"`
	Base64Data string `json:"base64Data"`
	MimeType   string `json:"mimeType"`
	MaxTokens  int    `json:"maxTokens,omitempty"`
}

type generateResponse struct {
	Content          string `json:"content"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	TotalTokens      int    `json:"totalTokens"`
}

// Generate handles POST /api/ai/generate
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.GetSubscriber(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Prompt không được để trống.")
		return
	}

	maxTokens := h.maxTokensFor(r.Context(), sub, req.MaxTokens)

	var resp *provider.Response
	h.run(w, r, sub, models.OpGenerate, func(ctx context.Context) (*gate.Result, error) {
		var err error
		resp, err = h.gemini.Generate(ctx, provider.GenerateParams{
			Prompt:            req.Prompt,
			SystemInstruction: req.SystemInstruction,
			Temperature:       req.Temperature,
			MaxOutputTokens:   maxTokens,
		})
		if err != nil {
			return nil, err
		}
		return toGateResult(resp), nil
	}, func() {
		utils.RespondWithJSON(w, http.StatusOK, generateResponse{
			Content:          resp.Text,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			TotalTokens:      resp.TotalTokens,
		})
	})
}

// Extract handles POST /api/ai/extract: structured document extraction from
// an image or PDF.
func (h *AIHandler) Extract(w http.ResponseWriter, r *http.Request) {
	h.vision(w, r, models.OpExtract,
		"Trích xuất thông tin văn bản hành chính từ tài liệu sau, trả về JSON.")
}

// ReadText handles POST /api/ai/read-text: plain OCR of an image or PDF.
func (h *AIHandler) ReadText(w http.ResponseWriter, r *http.Request) {
	h.vision(w, r, models.OpReadText,
		"Đọc toàn bộ text trong tài liệu sau, giữ nguyên định dạng.")
}

func (h *AIHandler) vision(w http.ResponseWriter, r *http.Request, kind models.OperationKind, defaultPrompt string) {
	sub, ok := middleware.GetSubscriber(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req visionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Base64Data == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Base64Data không được để trống.")
		return
	}
	if req.MimeType == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "MimeType không được để trống.")
		return
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	maxTokens := h.maxTokensFor(r.Context(), sub, req.MaxTokens)

	var resp *provider.Response
	h.run(w, r, sub, kind, func(ctx context.Context) (*gate.Result, error) {
		var err error
		resp, err = h.gemini.GenerateVision(ctx, provider.VisionParams{
			Prompt:          prompt,
			Base64Data:      req.Base64Data,
			MimeType:        req.MimeType,
			MaxOutputTokens: maxTokens,
		})
		if err != nil {
			return nil, err
		}
		return toGateResult(resp), nil
	}, func() {
		utils.RespondWithJSON(w, http.StatusOK, generateResponse{
			Content:          resp.Text,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			TotalTokens:      resp.TotalTokens,
		})
	})
}

// run pushes one metered operation through the gate and maps its error
// taxonomy onto status codes: denial -> 429, provider failure -> 502,
// record failure -> 500. The three must stay distinguishable so clients
// know whether to upgrade, retry, or report.
func (h *AIHandler) run(w http.ResponseWriter, r *http.Request, sub *models.Subscriber, kind models.OperationKind, op gate.Operation, onSuccess func()) {
	params := gate.Params{
		Endpoint: r.URL.Path,
		Kind:     kind,
		ClientIP: clientIP(r),
	}

	_, err := h.gate.Run(r.Context(), sub, params, op)
	if err != nil {
		if denial, ok := gate.AsDenial(err); ok {
			utils.RespondWithDenial(w, denial.Decision.Message, string(denial.Decision.Reason))
			return
		}
		if recErr, ok := gate.AsRecordError(err); ok {
			// The call may have succeeded upstream; what failed is the usage
			// record. Logged loudly because it silently skews billing.
			h.logger.Error("usage record write failed",
				"subscriber", sub.ID, "kind", kindLabel(kind), "err", recErr.AppendErr)
			utils.RespondWithError(w, http.StatusInternalServerError, "Không thể ghi nhận usage. Vui lòng thử lại.")
			return
		}
		h.logger.Warn("provider call failed", "subscriber", sub.ID, "kind", kindLabel(kind), "err", err)
		utils.RespondWithError(w, http.StatusBadGateway, "Lỗi gọi AI: "+err.Error())
		return
	}

	h.cache.Invalidate(r.Context(), sub.ID, time.Now())
	onSuccess()
}

// maxTokensFor caps the per-request output tokens at the plan's advisory
// limit when the client did not ask for less.
func (h *AIHandler) maxTokensFor(ctx context.Context, sub *models.Subscriber, requested int) int {
	planCap := 4096
	plan, err := h.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		h.logger.Warn("plan lookup failed, using default token cap",
			"subscriber", sub.ID, "plan", sub.PlanID, "err", err)
	} else if plan.MaxTokensPerRequest > 0 {
		planCap = plan.MaxTokensPerRequest
	}
	if requested > 0 && requested < planCap {
		return requested
	}
	return planCap
}

func toGateResult(resp *provider.Response) *gate.Result {
	return &gate.Result{
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
		EstimatedCost:    resp.EstimatedCostVND,
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
