package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/rohits-web03/dispatch/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	SessionCookie = "session_id"
	SessionHeader = "Session-Id"
)

type contextKey string

const userKey contextKey = "user"

// SessionResolver maps a session token to a user id.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (uint, error)
}

type UserLoader interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// SessionToken returns the session token from the cookie, falling back to
// the Session-Id header.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(SessionHeader)
}

// Authenticate attaches the signed-in user to the request context when the
// request carries a live session. Requests without one pass through
// anonymously; RequireUser and RequireModerator gate individual routes.
func Authenticate(sessions SessionResolver, users UserLoader, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, services.ErrUnauthenticated) {
					log.WithError(err).Error("resolve session")
				}
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.Get(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, services.ErrNotFound) {
					log.WithError(err).Error("load session user")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			utils.Fail(w, http.StatusUnauthorized, string(services.KindUnauthenticated), "Unauthorized")
			return
		}
		next(w, r)
	}
}

func RequireModerator(next http.HandlerFunc) http.HandlerFunc {
	return RequireUser(func(w http.ResponseWriter, r *http.Request) {
		if !UserFrom(r.Context()).IsModerator() {
			utils.Fail(w, http.StatusForbidden, string(services.KindForbidden), "Moderator access required")
			return
		}
		next(w, r)
	})
}
