package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/internal/pkg/logger"
)

func (h *Handler) auditStarted(r *http.Request, userID, attemptID string) {
	entry := entities.NewAuditLog(&userID, entities.ActionLinkStarted, entities.ResourceLinkedAccount).
		WithMetadata("provider", h.providerName).
		WithMetadata("attempt_id", attemptID)
	h.writeAudit(r, entry)
}

func (h *Handler) auditOutcome(r *http.Request, outcome linking.Outcome, attemptID string) {
	var userID *string
	if outcome.UserID != "" {
		userID = &outcome.UserID
	}

	action := entities.ActionLinkCompleted
	if outcome.Err != nil {
		action = entities.ActionLinkFailed
	}

	entry := entities.NewAuditLog(userID, action, entities.ResourceLinkedAccount).
		WithMetadata("provider", h.providerName).
		WithMetadata("identity_source", string(outcome.IdentitySource))
	if attemptID != "" {
		entry.WithMetadata("attempt_id", attemptID)
	}
	if outcome.Account != nil {
		entry.WithResourceID(outcome.Account.ExternalID)
	}
	if outcome.Err != nil {
		entry.WithError(outcome.Err).WithMetadata("kind", string(outcome.Err.Kind))
	}
	h.writeAudit(r, entry)
}

func (h *Handler) auditDisconnected(r *http.Request, userID string) {
	entry := entities.NewAuditLog(&userID, entities.ActionLinkDisconnected, entities.ResourceLinkedAccount).
		WithMetadata("provider", h.providerName)
	h.writeAudit(r, entry)
}

// writeAudit persists an audit row. Failures are logged and never change
// the response.
func (h *Handler) writeAudit(r *http.Request, entry *entities.AuditLog) {
	if h.auditLogs == nil {
		return
	}
	entry.WithIPAddress(requestIP(r)).WithUserAgent(r.UserAgent())

	if err := h.auditLogs.Create(r.Context(), entry); err != nil {
		logger.FromContext(r.Context()).Warn("failed to write audit log",
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()))
	}
}

func requestIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return r.RemoteAddr
}
