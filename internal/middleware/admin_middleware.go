package middleware

import (
	"context"
	"net/http"
	"strings"

	"vanban_gateway/internal/auth"
	"vanban_gateway/internal/models"
	"vanban_gateway/internal/utils"
)

const (
	// AdminIDKey is the context key for the authenticated admin's subscriber id
	AdminIDKey ContextKey = "adminID"
)

// AdminLookup resolves a subscriber id for the admin role re-check.
type AdminLookup interface {
	GetByID(ctx context.Context, id string) (*models.Subscriber, error)
}

// AdminJWTMiddleware protects admin routes with a bearer session token. The
// role is re-checked against storage so a demoted admin's outstanding tokens
// stop working immediately.
func AdminJWTMiddleware(secret []byte, store AdminLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing admin token")
				return
			}

			subscriberID, err := auth.ValidateAdminToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid admin token")
				return
			}

			ctx := r.Context()
			sub, err := store.GetByID(ctx, subscriberID)
			if err != nil || sub.Role != models.RoleAdmin || !sub.IsActive {
				utils.RespondWithError(w, http.StatusForbidden, "Admin access required")
				return
			}

			ctx = context.WithValue(ctx, AdminIDKey, subscriberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminID retrieves the authenticated admin id from the request context
func GetAdminID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AdminIDKey).(string)
	return id, ok
}
