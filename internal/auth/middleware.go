package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Roles, highest privilege first
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
	RoleViewer     = "viewer"
)

var rolePriority = []string{RoleAdmin, RoleSupervisor, RoleAgent, RoleViewer}

type Claims struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

// JWKSManager handles JWKS fetching and caching
type JWKSManager struct {
	jwks       keyfunc.Keyfunc
	issuerURL  string
	mu         sync.RWMutex
	lastUpdate time.Time
}

// refresh fetches the JWKS from the OIDC provider
func (m *JWKSManager) refresh(logger zerolog.Logger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keycloak layout
	jwksURL := strings.TrimSuffix(m.issuerURL, "/") + "/protocol/openid-connect/certs"
	logger.Info().Str("url", jwksURL).Msg("fetching JWKS")

	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return fmt.Errorf("failed to create keyfunc: %w", err)
	}

	m.jwks = k
	m.lastUpdate = time.Now()
	logger.Info().Msg("JWKS loaded")
	return nil
}

// getKeyfunc returns the JWT keyfunc for token verification
func (m *JWKSManager) getKeyfunc() jwt.Keyfunc {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.jwks == nil {
		return nil
	}
	return m.jwks.Keyfunc
}

// Authenticator validates bearer tokens issued by the OIDC provider
type Authenticator struct {
	skipAuth        bool
	verifySignature bool
	issuer          string

	jwksOnce sync.Once
	jwksErr  error
	jwks     *JWKSManager

	logger zerolog.Logger
}

// NewAuthenticator reads SKIP_AUTH, ENV, VERIFY_JWT_SIGNATURE and OIDC_ISSUER
func NewAuthenticator(logger zerolog.Logger) *Authenticator {
	env := os.Getenv("ENV")
	verify := os.Getenv("VERIFY_JWT_SIGNATURE") == "true"
	// Outside development the signature is always checked
	if env != "development" && env != "" {
		verify = true
	}
	return &Authenticator{
		skipAuth:        os.Getenv("SKIP_AUTH") == "true",
		verifySignature: verify,
		issuer:          os.Getenv("OIDC_ISSUER"),
		logger:          logger.With().Str("component", "auth").Logger(),
	}
}

// Middleware validates JWT tokens from OIDC provider
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if a.skipAuth {
			a.logger.Debug().Msg("SKIP_AUTH enabled, bypassing authentication")
			ctx := context.WithValue(r.Context(), UserContextKey, &Claims{
				Email:  "dev@orchestrator.local",
				Name:   "Dev User",
				Role:   RoleAdmin,
				Groups: []string{"developers"},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			a.logger.Debug().Str("path", r.URL.Path).Msg("missing authorization token")
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := a.validateToken(tokenString)
		if err != nil {
			a.logger.Warn().Err(err).Msg("token validation failed")
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		a.logger.Debug().
			Str("email", claims.Email).
			Str("role", claims.Role).
			Msg("user authenticated")

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole only lets users with one of roles through
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if ok {
				for _, role := range roles {
					if HasRole(claims, role) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			writeError(w, http.StatusForbidden, strings.Join(roles, " or ")+" role required")
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(body), status)
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// Browsers cannot set headers on WebSocket upgrades
	return r.URL.Query().Get("token")
}

// validateToken validates the JWT token with optional signature verification
func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	var token *jwt.Token
	var err error

	if a.verifySignature {
		token, err = a.parseAndVerifyToken(tokenString)
		if err != nil {
			return nil, err
		}
	} else {
		token, _, err = new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	claims := &Claims{}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}
	claims.Role = extractRoleFromMapClaims(mapClaims)
	claims.Groups = extractGroupsFromMapClaims(mapClaims)
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}

	// Verified tokens have their expiry checked by the parser
	if !a.verifySignature {
		if exp, ok := mapClaims["exp"].(float64); ok {
			expTime := time.Unix(int64(exp), 0)
			claims.ExpiresAt = jwt.NewNumericDate(expTime)
			if expTime.Before(time.Now()) {
				return nil, fmt.Errorf("token expired")
			}
		}
	}

	return claims, nil
}

// parseAndVerifyToken verifies the JWT signature using JWKS
func (a *Authenticator) parseAndVerifyToken(tokenString string) (*jwt.Token, error) {
	a.jwksOnce.Do(func() {
		if a.issuer == "" {
			a.jwksErr = fmt.Errorf("OIDC_ISSUER not configured for JWT verification")
			return
		}
		a.jwks = &JWKSManager{issuerURL: a.issuer}
		if err := a.jwks.refresh(a.logger); err != nil {
			a.jwksErr = fmt.Errorf("failed to initialize JWKS: %w", err)
		}
	})
	if a.jwksErr != nil {
		return nil, a.jwksErr
	}

	kf := a.jwks.getKeyfunc()
	if kf == nil {
		return nil, fmt.Errorf("JWKS not available")
	}

	token, err := jwt.Parse(tokenString, kf, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return token, nil
}

// extractRoleFromMapClaims extracts role from various possible token claim locations
func extractRoleFromMapClaims(mapClaims jwt.MapClaims) string {
	// Keycloak
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realmAccess["roles"].([]interface{}); ok {
			for _, priority := range rolePriority {
				for _, role := range roles {
					if roleStr, ok := role.(string); ok && roleStr == priority {
						return roleStr
					}
				}
			}
		}
	}

	// AWS Cognito and custom group claims
	for _, key := range []string{"cognito:groups", "custom:groups"} {
		groups, ok := mapClaims[key].([]interface{})
		if !ok {
			continue
		}
		for _, group := range groups {
			groupStr, ok := group.(string)
			if !ok {
				continue
			}
			for _, role := range rolePriority[:3] {
				if strings.Contains(groupStr, role) {
					return role
				}
			}
		}
	}

	return RoleViewer
}

// extractGroupsFromMapClaims extracts groups from token claims
func extractGroupsFromMapClaims(mapClaims jwt.MapClaims) []string {
	var groups []string
	for _, key := range []string{"groups", "cognito:groups"} {
		if claim, ok := mapClaims[key].([]interface{}); ok {
			for _, group := range claim {
				if groupStr, ok := group.(string); ok {
					groups = append(groups, groupStr)
				}
			}
		}
	}
	return groups
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// HasRole checks if user has specific role
func HasRole(claims *Claims, role string) bool {
	return claims.Role == role
}

// InGroup checks if user is in specific group
func InGroup(claims *Claims, group string) bool {
	for _, g := range claims.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// WithClaims attaches claims to ctx, for callers that authenticate out of band
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}
