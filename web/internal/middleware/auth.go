package middleware

import (
	"log/slog"
	"net/http"

	"github.com/devilmonastery/creatorlink/internal/pkg/logger"
	"github.com/devilmonastery/creatorlink/internal/pkg/urlutil"
	"github.com/devilmonastery/creatorlink/web/internal/session"
)

// AuthMiddleware handles authentication checks for requests
type AuthMiddleware struct {
	sessionManager *session.Manager
	loginURL       string
	log            *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware. Unauthenticated requests
// are redirected to loginURL with a next parameter pointing back.
func NewAuthMiddleware(sessionManager *session.Manager, loginURL string, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{
		sessionManager: sessionManager,
		loginURL:       loginURL,
		log:            log.With(slog.String("component", "auth_middleware")),
	}
}

// RequireAuth is middleware that ensures the user is authenticated
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.sessionManager.GetValidatedUser(r)
		if err != nil {
			m.log.Debug("no valid session, redirecting to login",
				slog.String("path", r.URL.Path),
				slog.String("reason", err.Error()))

			reason := "login"
			if err == session.ErrTokenExpired {
				reason = "expired"
			}
			target, urlErr := urlutil.LoginRedirectURL(m.loginURL, reason, r.URL.RequestURI())
			if urlErr != nil {
				m.log.Error("invalid login url", slog.Any("error", urlErr))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		ctx := session.WithUser(r.Context(), user)
		ctx = logger.WithContext(ctx, logger.WithUser(logger.FromContext(ctx), user.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
