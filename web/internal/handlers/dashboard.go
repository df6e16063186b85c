package handlers

import (
	"log/slog"
	"net/http"

	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/internal/pkg/logger"
	"github.com/devilmonastery/creatorlink/internal/pkg/timeutil"
	"github.com/devilmonastery/creatorlink/web/internal/session"
)

// Dashboard renders the connected-account page
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	if user == nil {
		h.redirectToLogin(w, r, "login")
		return
	}

	status, err := h.status.Status(r.Context(), user.UserID)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to load dashboard status", slog.String("error", err.Error()))
		http.Error(w, "Failed to load account status", http.StatusInternalServerError)
		return
	}

	data := h.newTemplateData(w, r)
	data["State"] = string(status.State)
	data["LinkResult"] = r.URL.Query().Get("link")

	if status.State == linking.Linked && status.Account != nil {
		acct := status.Account
		data["Handle"] = acct.DisplayHandle()
		data["Name"] = acct.ExternalUsername
		data["Followers"] = acct.Metrics.Followers
		data["Videos"] = acct.Metrics.Videos
		data["Verified"] = acct.Metrics.Verified
		data["LinkedAt"] = timeutil.FormatInZone(acct.LinkedAt, user.Timezone)
	}

	w.Header().Set("Cache-Control", "no-store")
	h.renderTemplate(w, "dashboard.html", data)
}
