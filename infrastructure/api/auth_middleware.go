package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// AuthConfig holds tenant authentication configuration
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" json:"-"`
}

// TenantClaims are the JWT claims issued by the PurpleKit core platform. The
// org_id claim is the caller's organization and scopes every query this
// service runs.
type TenantClaims struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates platform JWTs and threads the tenant id through
// the request context. The tenant is an explicit parameter from here on; no
// session state, no ambient tenant.
type AuthMiddleware struct {
	config AuthConfig
	logger *logrus.Logger
}

// NewAuthMiddleware creates a new tenant authentication middleware
func NewAuthMiddleware(config AuthConfig, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		config: config,
		logger: logger,
	}
}

type contextKey string

const tenantContextKey contextKey = "tenant_id"

// Authenticate returns the middleware wrapping protected routes.
func (m *AuthMiddleware) Authenticate() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
				return
			}

			claims := &TenantClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(m.config.JWTSecret), nil
			})
			if err != nil || !parsed.Valid {
				m.logger.WithError(err).WithFields(logrus.Fields{
					"remote_addr": r.RemoteAddr,
					"path":        r.URL.Path,
				}).Warn("Rejected request with invalid token")
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
				return
			}

			orgID, err := uuid.Parse(claims.OrgID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "token carries no organization")
				return
			}

			ctx := WithTenant(r.Context(), orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithTenant returns a context carrying the tenant id.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// TenantFromContext extracts the tenant id placed by the auth middleware.
func TenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(tenantContextKey).(uuid.UUID)
	return tenantID, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
