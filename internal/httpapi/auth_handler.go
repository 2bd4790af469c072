package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"vanban_gateway/internal/auth"
	"vanban_gateway/internal/middleware"
	"vanban_gateway/internal/models"
	"vanban_gateway/internal/storage"
	"vanban_gateway/internal/utils"
)

// AuthHandler owns subscriber onboarding (register, profile, key rotation)
// and admin session tokens. Metered calls authenticate with API keys; the
// password login exists for the admin dashboard only.
type AuthHandler struct {
	subscribers *storage.SubscriberRepository
	jwtSecret   []byte
	logger      *utils.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(subscribers *storage.SubscriberRepository, jwtSecret []byte, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{subscribers: subscribers, jwtSecret: jwtSecret, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Company  string `json:"company,omitempty"`
}

type registerResponse struct {
	Subscriber *models.Subscriber `json:"subscriber"`
	APIKey     string             `json:"apiKey"`
	Message    string             `json:"message"`
}

// Register handles POST /api/auth/register. The generated API key appears
// once in the response; only its hash is stored, so it cannot be shown again.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		utils.RespondWithError(w, http.StatusBadRequest, "Email không hợp lệ.")
		return
	case len(req.Password) < 6:
		utils.RespondWithError(w, http.StatusBadRequest, "Mật khẩu phải có ít nhất 6 ký tự.")
		return
	case req.FullName == "":
		utils.RespondWithError(w, http.StatusBadRequest, "Họ tên không được để trống.")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("password hashing failed", "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Đăng ký thất bại.")
		return
	}
	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("api key generation failed", "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Đăng ký thất bại.")
		return
	}

	sub := &models.Subscriber{
		Email:    req.Email,
		FullName: req.FullName,
		Company:  strings.TrimSpace(req.Company),
		IsActive: true,
	}
	err = h.subscribers.Create(r.Context(), sub, passwordHash, auth.HashAPIKey(apiKey))
	if errors.Is(err, storage.ErrDuplicateEmail) {
		utils.RespondWithError(w, http.StatusConflict, "Email đã được sử dụng.")
		return
	}
	if err != nil {
		h.logger.Error("subscriber registration failed", "email", req.Email, "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Đăng ký thất bại.")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, registerResponse{
		Subscriber: sub,
		APIKey:     apiKey,
		Message:    "Đăng ký thành công! Hãy lưu lại API key.",
	})
}

// Me handles GET /api/auth/me: the authenticated subscriber's own profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.GetSubscriber(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sub)
}

type regenerateKeyResponse struct {
	APIKey  string `json:"apiKey"`
	Message string `json:"message"`
}

// RegenerateKey handles POST /api/auth/regenerate-key. The previous key stops
// resolving as soon as the new hash lands; there is no grace period.
func (h *AuthHandler) RegenerateKey(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.GetSubscriber(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("api key generation failed", "subscriber", sub.ID, "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Không thể tạo API key.")
		return
	}
	if err := h.subscribers.UpdateAPIKeyHash(r.Context(), sub.ID, auth.HashAPIKey(apiKey)); err != nil {
		h.logger.Error("api key rotation failed", "subscriber", sub.ID, "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Không thể tạo API key.")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, regenerateKeyResponse{
		APIKey:  apiKey,
		Message: "API key đã được tạo lại. Hãy cập nhật trong app.",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx := r.Context()
	sub, err := h.subscribers.GetByEmail(ctx, req.Email)
	if errors.Is(err, storage.ErrSubscriberNotFound) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	hash, err := h.subscribers.PasswordHashByEmail(ctx, req.Email)
	if err != nil || !auth.CheckPassword(hash, req.Password) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if sub.Role != models.RoleAdmin || !sub.IsActive {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	token, expiresAt, err := auth.GenerateAdminToken(sub.ID, h.jwtSecret)
	if err != nil {
		h.logger.Error("token generation failed", "subscriber", sub.ID, "err", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if err := h.subscribers.RecordLogin(ctx, sub.ID, clientIP(r)); err != nil {
		h.logger.Warn("failed to record login", "subscriber", sub.ID, "err", err)
	}

	utils.RespondWithJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
