package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/internal/pkg/idgen"
	"github.com/devilmonastery/creatorlink/internal/pkg/logger"
	"github.com/devilmonastery/creatorlink/internal/pkg/urlutil"
	"github.com/devilmonastery/creatorlink/web/internal/render"
	"github.com/devilmonastery/creatorlink/web/internal/session"
)

// attemptIDKey correlates the start and callback audit rows of one attempt
const attemptIDKey = "link_attempt_id"

// StartLink records the initiator and sends the browser to the provider
func (h *Handler) StartLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	userID := ""
	if user := session.UserFromContext(ctx); user != nil {
		userID = user.UserID
	}

	short, long := h.sessionManager.LinkScopes(r, w)
	builder := linking.NewAuthorizationRequestBuilder(
		h.provider,
		linking.NewTokenStore(long),
		linking.NewDualScopeRepository(short, long, log),
		log,
	)

	authURL, err := builder.Build(ctx, userID)
	if err != nil {
		if errors.Is(err, linking.ErrNotAuthenticated) {
			h.redirectToLogin(w, r, "login")
			return
		}
		log.Error("failed to start link", slog.String("error", err.Error()))
		h.flash(w, r, session.FlashError, "Could not start linking. Please try again.")
		http.Redirect(w, r, urlutil.DashboardURL(h.dashboardPath, "error", "start_failed"), http.StatusSeeOther)
		return
	}

	attemptID := idgen.AttemptID()
	if err := long.Set(ctx, attemptIDKey, attemptID); err != nil {
		log.Warn("failed to store link attempt id", slog.String("error", err.Error()))
	}
	h.auditStarted(r, userID, attemptID)

	log.Info("redirecting to provider for account link",
		slog.String("provider", h.providerName),
		slog.String("attempt_id", attemptID))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// LinkCallback completes a link attempt from the provider redirect
func (h *Handler) LinkCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	short, long := h.sessionManager.LinkScopes(r, w)
	attemptID, _, err := long.Get(ctx, attemptIDKey)
	if err != nil {
		log.Warn("failed to read link attempt id", slog.String("error", err.Error()))
	}
	if attemptID != "" {
		log = log.With(slog.String("attempt_id", attemptID))
	}

	processor := linking.NewCallbackProcessor(
		linking.NewTokenStore(long).WithLedger(h.stateLedger, h.stateTTL),
		linking.NewDualScopeRepository(short, long, log),
		h.sessionManager.Identity(r),
		h.exchanger,
		h.accounts,
		h.retry,
		log,
	)
	if h.status != nil {
		processor.AddObserver(h.status)
	}

	outcome := processor.Process(ctx, linking.ParseCallbackParams(r.URL.Query()))

	// A forged callback must not erase the legitimate attempt's correlation id
	if attemptID != "" && (outcome.Err == nil || outcome.Err.Kind != linking.KindCsrfViolation) {
		if err := long.Delete(ctx, attemptIDKey); err != nil {
			log.Warn("failed to clear link attempt id", slog.String("error", err.Error()))
		}
	}

	h.auditOutcome(r, outcome, attemptID)
	h.redirectForOutcome(w, r, outcome)
}

// redirectForOutcome sends the browser to the place the user can recover from
func (h *Handler) redirectForOutcome(w http.ResponseWriter, r *http.Request, outcome linking.Outcome) {
	if outcome.Err == nil {
		msg := "Your account is now linked."
		if outcome.Account != nil && outcome.Account.DisplayHandle() != "" {
			msg = "Linked " + outcome.Account.DisplayHandle() + "."
		}
		h.flash(w, r, session.FlashSuccess, msg)
		http.Redirect(w, r, urlutil.DashboardURL(h.dashboardPath, "linked", ""), http.StatusSeeOther)
		return
	}

	kind := outcome.Err.Kind
	msg := kind.Message()
	if kind == linking.KindExchangeFailed {
		if detail := render.SanitizeDetail(outcome.Err.Detail); detail != "" {
			msg += " (" + detail + ")"
		}
	}
	h.flash(w, r, session.FlashError, msg)

	if kind == linking.KindSessionExpired {
		h.redirectToLogin(w, r, "expired")
		return
	}
	http.Redirect(w, r, urlutil.DashboardURL(h.dashboardPath, "error", string(kind)), http.StatusSeeOther)
}

// LinkStatus returns the connection status as JSON
func (h *Handler) LinkStatus(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	if user == nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": string(linking.KindNotAuthenticated)})
		return
	}

	status, err := h.status.Status(r.Context(), user.UserID)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to read link status", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// Disconnect clears the user's linked account
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	if user == nil {
		h.redirectToLogin(w, r, "login")
		return
	}

	if err := h.status.Disconnect(r.Context(), user.UserID); err != nil {
		logger.FromContext(r.Context()).Error("failed to disconnect account", slog.String("error", err.Error()))
		h.flash(w, r, session.FlashError, "Could not disconnect your account. Please try again.")
		http.Redirect(w, r, urlutil.DashboardURL(h.dashboardPath, "error", "disconnect_failed"), http.StatusSeeOther)
		return
	}

	h.auditDisconnected(r, user.UserID)
	h.flash(w, r, session.FlashSuccess, "Your account has been disconnected.")
	http.Redirect(w, r, urlutil.DashboardURL(h.dashboardPath, "disconnected", ""), http.StatusSeeOther)
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	target, err := urlutil.LoginRedirectURL(h.loginURL, reason, h.dashboardPath)
	if err != nil {
		h.log.Error("invalid login url", slog.String("error", err.Error()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) flash(w http.ResponseWriter, r *http.Request, level, msg string) {
	if err := h.sessionManager.AddFlash(r, w, level, msg); err != nil {
		logger.FromContext(r.Context()).Warn("failed to save flash", slog.String("error", err.Error()))
	}
}
