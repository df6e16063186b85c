package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/creatorlink/internal/pkg/logger"
)

// SessionComplete accepts the identity token from the login service and
// stores it in the auth cookie
func (h *Handler) SessionComplete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	token := r.URL.Query().Get("token")
	user, err := h.sessionManager.ValidateToken(token)
	if err != nil {
		log.Warn("rejected identity token", slog.String("error", err.Error()))
		h.redirectToLogin(w, r, "invalid")
		return
	}

	if err := h.sessionManager.SetToken(r, w, token); err != nil {
		log.Error("failed to save session", slog.String("error", err.Error()))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	log.Info("session established", slog.String("user_id", user.UserID))
	http.Redirect(w, r, localRedirect(r.URL.Query().Get("next"), h.dashboardPath), http.StatusSeeOther)
}

// Logout handles user logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.ClearToken(r, w); err != nil {
		logger.FromContext(r.Context()).Error("error clearing session", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, h.loginURL, http.StatusSeeOther)
}

// localRedirect allows only same-origin absolute paths
func localRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
