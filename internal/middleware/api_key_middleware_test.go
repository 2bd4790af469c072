package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanban_gateway/internal/auth"
	"vanban_gateway/internal/models"
	"vanban_gateway/internal/storage"
)

type fakeSubscriberStore struct {
	byHash map[string]*models.Subscriber
	err    error
}

func (s *fakeSubscriberStore) GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Subscriber, error) {
	if s.err != nil {
		return nil, s.err
	}
	sub, ok := s.byHash[keyHash]
	if !ok {
		return nil, storage.ErrSubscriberNotFound
	}
	return sub, nil
}

const testAPIKey = "vbp_0123456789abcdef0123456789abcdef"

func storeWith(sub *models.Subscriber) *fakeSubscriberStore {
	return &fakeSubscriberStore{byHash: map[string]*models.Subscriber{
		auth.HashAPIKey(testAPIKey): sub,
	}}
}

func echoSubscriber(t *testing.T, seen **models.Subscriber) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := GetSubscriber(r.Context())
		require.True(t, ok, "subscriber must be on the context")
		*seen = sub
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyMiddleware_XAPIKeyHeader(t *testing.T) {
	active := &models.Subscriber{ID: "sub-1", IsActive: true}
	var seen *models.Subscriber
	handler := APIKeyMiddleware(storeWith(active))(echoSubscriber(t, &seen))

	req := httptest.NewRequest(http.MethodPost, "/api/ai/generate", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "sub-1", seen.ID)
}

func TestAPIKeyMiddleware_BearerFallback(t *testing.T) {
	active := &models.Subscriber{ID: "sub-1", IsActive: true}
	var seen *models.Subscriber
	handler := APIKeyMiddleware(storeWith(active))(echoSubscriber(t, &seen))

	req := httptest.NewRequest(http.MethodPost, "/api/ai/generate", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
}

func TestAPIKeyMiddleware_Rejections(t *testing.T) {
	cases := []struct {
		name       string
		setHeaders func(r *http.Request)
		store      *fakeSubscriberStore
		wantStatus int
	}{
		{
			name:       "missing key",
			setHeaders: func(r *http.Request) {},
			store:      storeWith(&models.Subscriber{ID: "sub-1", IsActive: true}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed key never reaches storage",
			setHeaders: func(r *http.Request) {
				r.Header.Set("X-API-Key", "not-a-key")
			},
			store:      &fakeSubscriberStore{err: errors.New("storage must not be called")},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown key",
			setHeaders: func(r *http.Request) {
				r.Header.Set("X-API-Key", "vbp_ffffffffffffffffffffffffffffffff")
			},
			store:      storeWith(&models.Subscriber{ID: "sub-1", IsActive: true}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "inactive subscriber",
			setHeaders: func(r *http.Request) {
				r.Header.Set("X-API-Key", testAPIKey)
			},
			store:      storeWith(&models.Subscriber{ID: "sub-1", IsActive: false}),
			wantStatus: http.StatusForbidden,
		},
		{
			name: "storage failure",
			setHeaders: func(r *http.Request) {
				r.Header.Set("X-API-Key", testAPIKey)
			},
			store:      &fakeSubscriberStore{err: errors.New("db closed")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			handler := APIKeyMiddleware(tc.store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/ai/generate", nil)
			tc.setHeaders(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.False(t, called, "rejected requests must not reach the handler")
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

type fakeAdminLookup struct {
	byID map[string]*models.Subscriber
}

func (s *fakeAdminLookup) GetByID(ctx context.Context, id string) (*models.Subscriber, error) {
	sub, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrSubscriberNotFound
	}
	return sub, nil
}

func TestAdminJWTMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	lookup := &fakeAdminLookup{byID: map[string]*models.Subscriber{
		"admin-1":   {ID: "admin-1", Role: models.RoleAdmin, IsActive: true},
		"user-1":    {ID: "user-1", Role: models.RoleUser, IsActive: true},
		"demoted-1": {ID: "demoted-1", Role: models.RoleAdmin, IsActive: false},
	}}

	token := func(id string) string {
		tok, _, err := auth.GenerateAdminToken(id, secret)
		require.NoError(t, err)
		return tok
	}

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
		wantID     string
	}{
		{"valid admin", "Bearer " + token("admin-1"), http.StatusOK, "admin-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ""},
		{"unknown subscriber", "Bearer " + token("ghost"), http.StatusForbidden, ""},
		{"role revoked in storage", "Bearer " + token("user-1"), http.StatusForbidden, ""},
		{"deactivated admin", "Bearer " + token("demoted-1"), http.StatusForbidden, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotID string
			handler := AdminJWTMiddleware(secret, lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetAdminID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantID, gotID)
		})
	}
}
