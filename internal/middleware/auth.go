package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"servus-backend/internal/apperr"
	"servus-backend/internal/auth"
	"servus-backend/internal/models"
	"servus-backend/pkg/utils"
)

type contextKey string

const actorKey contextKey = "actor"

// UserLoader resolves the user behind a token and rejects deactivated accounts.
type UserLoader interface {
	ActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      UserLoader
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
	}
}

// bearerToken reads "Authorization: Bearer <token>". Websocket handshakes
// cannot set headers from browsers, so they may pass ?token= instead.
func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// Authenticate validates the token, then reloads the user so role changes and
// deactivation take effect immediately.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			utils.WriteError(w, r, apperr.Unauthorized("authorization header required"))
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			utils.WriteError(w, r, apperr.Unauthorized("invalid or expired token"))
			return
		}

		user, err := m.users.ActiveUser(r.Context(), claims.UserID)
		if err != nil {
			utils.WriteError(w, r, err)
			return
		}

		ctx := WithActor(r.Context(), user.Actor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithActor stores the caller's identity on ctx.
func WithActor(ctx context.Context, actor models.ActorIdentity) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the identity set by Authenticate.
func ActorFromContext(ctx context.Context) (models.ActorIdentity, bool) {
	actor, ok := ctx.Value(actorKey).(models.ActorIdentity)
	return actor, ok
}

// RequireRole lets the request through only if the authenticated caller holds
// one of roles. It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				utils.WriteError(w, r, apperr.Unauthorized("authentication required"))
				return
			}
			if !actor.HasRole(roles...) {
				utils.WriteError(w, r, apperr.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
