package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func devAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("SKIP_AUTH", "")
	t.Setenv("VERIFY_JWT_SIGNATURE", "")
	return NewAuthenticator(zerolog.Nop())
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func echoClaims(t *testing.T, got **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r.Context())
		require.True(t, ok)
		*got = claims
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareMissingToken(t *testing.T) {
	a := devAuthenticator(t)
	rec := httptest.NewRecorder()

	a.Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agents", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"missing token"`)
}

func TestMiddlewareHealthBypassesAuth(t *testing.T) {
	a := devAuthenticator(t)
	rec := httptest.NewRecorder()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	a.Middleware(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareParsesKeycloakClaims(t *testing.T) {
	a := devAuthenticator(t)
	token := signToken(t, jwt.MapClaims{
		"sub":                "user-1",
		"email":              "sam@example.com",
		"preferred_username": "sam",
		"realm_access":       map[string]interface{}{"roles": []interface{}{"viewer", "supervisor"}},
		"groups":             []interface{}{"/support/tier2"},
		"exp":                float64(time.Now().Add(time.Hour).Unix()),
	})

	var got *Claims
	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.Middleware(echoClaims(t, &got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sam@example.com", got.Email)
	assert.Equal(t, "sam", got.Name)
	assert.Equal(t, RoleSupervisor, got.Role)
	assert.Equal(t, "user-1", got.Subject)
	assert.True(t, InGroup(got, "/support/tier2"))
}

func TestMiddlewareTokenFromQuery(t *testing.T) {
	a := devAuthenticator(t)
	token := signToken(t, jwt.MapClaims{"cognito:groups": []interface{}{"orchestrator-admins"}})

	var got *Claims
	rec := httptest.NewRecorder()
	a.Middleware(echoClaims(t, &got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, []string{"orchestrator-admins"}, got.Groups)
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	a := devAuthenticator(t)
	token := signToken(t, jwt.MapClaims{"exp": float64(time.Now().Add(-time.Minute).Unix())})

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}

func TestMiddlewareSkipAuth(t *testing.T) {
	t.Setenv("SKIP_AUTH", "true")
	a := NewAuthenticator(zerolog.Nop())

	var got *Claims
	rec := httptest.NewRecorder()
	a.Middleware(echoClaims(t, &got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agents", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RoleAdmin, got.Role)
}

func TestVerificationRequiresIssuer(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SKIP_AUTH", "")
	t.Setenv("OIDC_ISSUER", "")
	a := NewAuthenticator(zerolog.Nop())

	_, err := a.validateToken(signToken(t, jwt.MapClaims{}))
	assert.ErrorContains(t, err, "OIDC_ISSUER")
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{"no user", nil, http.StatusForbidden},
		{"viewer", &Claims{Role: RoleViewer}, http.StatusForbidden},
		{"supervisor", &Claims{Role: RoleSupervisor}, http.StatusOK},
		{"admin", &Claims{Role: RoleAdmin}, http.StatusOK},
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireRole(RoleAdmin, RoleSupervisor)(ok)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/agents", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
