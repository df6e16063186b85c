package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/web/internal/render"
	"github.com/devilmonastery/creatorlink/web/internal/session"
)

// Deps are the collaborators the web handlers need
type Deps struct {
	Sessions  *session.Manager
	Templates *render.TemplateSet
	Exchanger linking.Exchanger
	Accounts  repositories.LinkedAccountRepository
	Audit     repositories.AuditRepository
	Status    *linking.StatusService
	Health    repositories.HealthChecker
	// StateLedger rejects a state token already redeemed by another request.
	// Defaults to an in-process ledger.
	StateLedger linking.StateLedger
	StateTTL    time.Duration

	Provider      linking.ProviderConfig
	ProviderName  string
	Retry         linking.RetryPolicy
	LoginURL      string
	DashboardPath string

	Logger *slog.Logger
}

// Handler holds dependencies for all web handlers
type Handler struct {
	sessionManager *session.Manager
	templates      *render.TemplateSet
	exchanger      linking.Exchanger
	accounts       repositories.LinkedAccountRepository
	auditLogs      repositories.AuditRepository
	status         *linking.StatusService
	health         repositories.HealthChecker
	stateLedger    linking.StateLedger
	stateTTL       time.Duration

	provider      linking.ProviderConfig
	providerName  string
	retry         linking.RetryPolicy
	loginURL      string
	dashboardPath string

	log *slog.Logger
}

// New creates a new handler with dependencies
func New(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	dashboardPath := deps.DashboardPath
	if dashboardPath == "" {
		dashboardPath = "/dashboard"
	}
	providerName := deps.ProviderName
	if providerName == "" {
		providerName = "tiktok"
	}
	stateTTL := deps.StateTTL
	if stateTTL <= 0 {
		stateTTL = time.Hour
	}
	stateLedger := deps.StateLedger
	if stateLedger == nil {
		stateLedger = linking.NewMemoryStateLedger(0, stateTTL)
	}

	return &Handler{
		sessionManager: deps.Sessions,
		templates:      deps.Templates,
		exchanger:      deps.Exchanger,
		accounts:       deps.Accounts,
		auditLogs:      deps.Audit,
		status:         deps.Status,
		health:         deps.Health,
		stateLedger:    stateLedger,
		stateTTL:       stateTTL,
		provider:       deps.Provider,
		providerName:   providerName,
		retry:          deps.Retry,
		loginURL:       deps.LoginURL,
		dashboardPath:  dashboardPath,
		log:            log.With(slog.String("component", "web_handler")),
	}
}

// newTemplateData creates a new template data map with standard fields populated
// Callers can add page-specific fields to the returned map
func (h *Handler) newTemplateData(w http.ResponseWriter, r *http.Request) map[string]interface{} {
	return map[string]interface{}{
		"User":     session.UserFromContext(r.Context()),
		"Provider": h.providerName,
		"Flashes":  h.sessionManager.Flashes(r, w),
	}
}

// renderTemplate renders a template with data
func (h *Handler) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	if h.templates == nil {
		http.Error(w, "Templates not loaded", http.StatusInternalServerError)
		return
	}
	h.log.Debug("rendering template", slog.String("template", name))

	err := h.templates.Execute(w, name, data)
	if err != nil {
		h.log.Error("template rendering failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// writeJSON writes v as a JSON response body
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode json response", slog.String("error", err.Error()))
	}
}

// Health reports liveness and database reachability
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context()); err != nil {
			h.log.Warn("health check failed", slog.String("error", err.Error()))
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
