package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getchdocs/getchdocs-api/internal/auth"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

func bearer(t *testing.T, tokens *auth.Tokens, u *model.User) string {
	t.Helper()
	signed, _, err := tokens.Issue(u)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestAuth(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)

	var seen *model.User
	h := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CurrentUser(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"other secret", bearer(t, auth.NewTokens("other", time.Hour), &model.User{ID: "user-1"}), http.StatusUnauthorized},
		{"valid", bearer(t, tokens, &model.User{ID: "user-1", Name: "Ana", Role: model.RoleAdmin}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Body.String(), `"error"`)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, &model.User{ID: "user-1", Name: "Ana", Role: model.RoleAdmin}, seen)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	h := Auth(tokens)(RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for role, want := range map[model.Role]int{
		model.RoleAdmin: http.StatusNoContent,
		model.RoleUser:  http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", bearer(t, tokens, &model.User{ID: "user-1", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestLoggingCorrelationID(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Use(Logging(logger.NewNop()))
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = GetCorrelationID(r.Context())
	})

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/things/1", nil)
	req.Header.Set("X-Correlation-ID", id)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, id, got)
	assert.Equal(t, id, rec.Header().Get("X-Correlation-ID"))

	req = httptest.NewRequest(http.MethodGet, "/things/1", nil)
	req.Header.Set("X-Correlation-ID", "not a uuid\r\n")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	_, err := uuid.Parse(got)
	assert.NoError(t, err)
	assert.Equal(t, got, rec.Header().Get("X-Correlation-ID"))
}

func TestLoggingSeesAuthenticatedUser(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)

	var userID string
	inner := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r)
		userID = *r.Context().Value(userSlotKey).(*string)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, tokens, &model.User{ID: "user-9"}))
	Logging(logger.NewNop())(h).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "user-9", userID)
}

func TestUserRateLimit(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	h := Auth(tokens)(UserRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	send := func(id string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", bearer(t, tokens, &model.User{ID: id}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("user-a"))
	assert.Equal(t, http.StatusOK, send("user-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("user-a"))
	assert.Equal(t, http.StatusOK, send("user-b"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateDocumentID(uuid.NewString()))
	assert.Error(t, ValidateDocumentID("../etc"))

	assert.NoError(t, ValidateUserID("user-"+uuid.NewString()))
	assert.Error(t, ValidateUserID("admin"))
	assert.Error(t, ValidateUserID("user-"))

	n, err := ParseLimit("", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	n, err = ParseLimit("5000", 100)
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, n)

	_, err = ParseLimit("-1", 100)
	assert.Error(t, err)
	_, err = ParseLimit("ten", 100)
	assert.Error(t, err)
}
