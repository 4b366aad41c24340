package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/sekolah/school-api/internal/model"
)

type ctxKey int

const userKey ctxKey = iota

func withUser(ctx context.Context, user *model.UserInfo) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// userFrom returns the authenticated user, or nil for anonymous requests
func userFrom(ctx context.Context) *model.UserInfo {
	user, _ := ctx.Value(userKey).(*model.UserInfo)
	return user
}

func actorFrom(ctx context.Context) model.Actor {
	user := userFrom(ctx)
	if user == nil {
		return model.Actor{}
	}
	return model.Actor{ID: user.ID, Username: user.Username}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireAuth rejects requests without a valid bearer token
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			h.respondError(w, http.StatusUnauthorized, "access token required")
			return
		}
		user, err := h.auth.Verify(token)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// optionalAuth attaches the user when a valid token is present. Missing or
// invalid tokens fall through as anonymous.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if user, err := h.auth.Verify(token); err == nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func scopeOf(ctx context.Context) model.Scope {
	if userFrom(ctx) != nil {
		return model.ScopeAdmin
	}
	return model.ScopePublic
}
