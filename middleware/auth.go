package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"yardtrack/models"
)

const (
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

type contextKey string

const (
	contextKeyActor       contextKey = "actor"
	contextKeyActorHolder contextKey = "actor_holder"
)

// actorHolder carries the authenticated actor id back up to RequestLogger.
type actorHolder struct {
	id string
}

func withActorHolder(ctx context.Context, h *actorHolder) context.Context {
	return context.WithValue(ctx, contextKeyActorHolder, h)
}

// ActorFrom returns the authenticated actor put in the context by Authenticate.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(contextKeyActor).(models.Actor)
	return a, ok
}

func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, a)
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}

// Authenticate requires Authorization: Bearer <token>.
func Authenticate(jwtm *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderAuthorization)
			if !strings.HasPrefix(raw, BearerPrefix) {
				deny(w, http.StatusUnauthorized, "missing or malformed Authorization header")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(raw, BearerPrefix))
			actor, err := jwtm.ParseAccess(token)
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if h, ok := r.Context().Value(contextKeyActorHolder).(*actorHolder); ok {
				h.id = actor.ID
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole lets through only actors with one of roles. It must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, http.StatusForbidden, "insufficient role")
		})
	}
}
