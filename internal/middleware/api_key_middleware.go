package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vanban_gateway/internal/auth"
	"vanban_gateway/internal/models"
	"vanban_gateway/internal/storage"
	"vanban_gateway/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// SubscriberKey is the context key for the authenticated subscriber
	SubscriberKey ContextKey = "subscriber"
)

// SubscriberStore resolves a hashed API key to a subscriber projection.
type SubscriberStore interface {
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Subscriber, error)
}

// APIKeyMiddleware authenticates metered routes. Authentication failures are
// 401/403, deliberately distinct from the 429 the handlers use for quota
// denials so clients can tell "fix your key" from "upgrade or wait".
func APIKeyMiddleware(store SubscriberStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					apiKey = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if apiKey == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing API key")
				return
			}
			if !auth.ValidFormat(apiKey) {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}

			ctx := r.Context()
			sub, err := store.GetByAPIKeyHash(ctx, auth.HashAPIKey(apiKey))
			if errors.Is(err, storage.ErrSubscriberNotFound) {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			if err != nil {
				utils.RespondWithError(w, http.StatusInternalServerError, "Error validating API key")
				return
			}

			if !sub.IsActive {
				utils.RespondWithError(w, http.StatusForbidden, "Account is disabled")
				return
			}

			ctx = context.WithValue(ctx, SubscriberKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubscriber retrieves the authenticated subscriber from the request context
func GetSubscriber(ctx context.Context) (*models.Subscriber, bool) {
	sub, ok := ctx.Value(SubscriberKey).(*models.Subscriber)
	return sub, ok
}
